// Package internal contains the core implementation packages for lode.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the lode CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - config: layered configuration assembly, deep merge, and change detection
//   - startup: the phased startup sequence and singleton container
//   - plugins: the plugin registry and capability interfaces
//   - queue: in-process task queue, handler registry, and worker pool
//   - storage: persistent state and data stores
//   - cache: byte cache providers (in-process LRU and Redis)
//   - indexer: the built-in fetch/extract/store content pipeline
//   - monitoring: Prometheus metrics and health endpoints
//   - watcher: configuration directory monitoring with debouncing
//   - logging: structured logging with a buffered bootstrap sink
//   - errors: typed application errors with codes and causes
//
// # Inter-Package Communication
//
// Packages communicate through the interfaces package: stores, the
// cache, and the task queue are created once during startup from
// plugin-contributed factories and handed to consumers as a frozen
// singleton container. Plugins never construct shared infrastructure
// themselves; they receive it through the startup sequence.
package internal
