package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lodeworks/lode/internal/interfaces"
	"github.com/lodeworks/lode/internal/logging"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// HealthCheck represents a single health check result
type HealthCheck struct {
	Name        string        `json:"name"`
	Status      HealthStatus  `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration"`
	Critical    bool          `json:"critical"`
}

// HealthChecker defines the interface for health check functions
type HealthChecker interface {
	Check(ctx context.Context) HealthCheck
	Name() string
	IsCritical() bool
}

// HealthCheckFunc is a function that implements HealthChecker
type HealthCheckFunc struct {
	name     string
	checkFn  func(ctx context.Context) HealthCheck
	critical bool
}

// Check executes the health check function
func (h *HealthCheckFunc) Check(ctx context.Context) HealthCheck {
	return h.checkFn(ctx)
}

// Name returns the health check name
func (h *HealthCheckFunc) Name() string {
	return h.name
}

// IsCritical returns whether this check is critical
func (h *HealthCheckFunc) IsCritical() bool {
	return h.critical
}

// NewHealthCheckFunc creates a new health check function
func NewHealthCheckFunc(
	name string,
	critical bool,
	checkFn func(ctx context.Context) HealthCheck,
) *HealthCheckFunc {
	return &HealthCheckFunc{
		name:     name,
		checkFn:  checkFn,
		critical: critical,
	}
}

// HealthMonitor manages and executes health checks
type HealthMonitor struct {
	checks   map[string]HealthChecker
	results  map[string]HealthCheck
	mutex    sync.RWMutex
	logger   logging.Logger
	interval time.Duration
	timeout  time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]HealthCheck `json:"checks"`
	Summary   HealthSummary          `json:"summary"`
}

// HealthSummary provides a summary of health check results
type HealthSummary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Degraded  int `json:"degraded"`
	Unknown   int `json:"unknown"`
	Critical  int `json:"critical"`
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(logger logging.Logger) *HealthMonitor {
	return &HealthMonitor{
		checks:   make(map[string]HealthChecker),
		results:  make(map[string]HealthCheck),
		logger:   logger.WithComponent("health_monitor"),
		interval: 30 * time.Second,
		timeout:  10 * time.Second,
		stopChan: make(chan struct{}),
	}
}

// RegisterCheck registers a health check
func (hm *HealthMonitor) RegisterCheck(checker HealthChecker) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	hm.checks[checker.Name()] = checker
	hm.logger.Debug(context.Background(), "Registered health check",
		"name", checker.Name(),
		"critical", checker.IsCritical())
}

// Start begins periodic health checking
func (hm *HealthMonitor) Start() {
	hm.wg.Add(1)
	go hm.monitorLoop()
	hm.logger.Info(context.Background(), "Health monitor started", "interval", hm.interval.String())
}

// Stop stops the health monitor. Safe to call more than once.
func (hm *HealthMonitor) Stop() {
	select {
	case <-hm.stopChan:
	default:
		close(hm.stopChan)
	}
	hm.wg.Wait()
}

// monitorLoop runs the health check monitoring loop
func (hm *HealthMonitor) monitorLoop() {
	defer hm.wg.Done()

	ticker := time.NewTicker(hm.interval)
	defer ticker.Stop()

	// Run initial health checks
	hm.RunChecks()

	for {
		select {
		case <-ticker.C:
			hm.RunChecks()
		case <-hm.stopChan:
			return
		}
	}
}

// RunChecks executes all registered health checks concurrently and records
// their results.
func (hm *HealthMonitor) RunChecks() {
	hm.mutex.RLock()
	checks := make(map[string]HealthChecker, len(hm.checks))
	for name, checker := range hm.checks {
		checks[name] = checker
	}
	hm.mutex.RUnlock()

	var wg sync.WaitGroup
	resultsChan := make(chan HealthCheck, len(checks))

	for _, checker := range checks {
		wg.Add(1)
		go func(checker HealthChecker) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), hm.timeout)
			defer cancel()

			start := time.Now()
			result := checker.Check(ctx)
			result.Duration = time.Since(start)
			result.LastChecked = time.Now()

			resultsChan <- result
		}(checker)
	}

	wg.Wait()
	close(resultsChan)

	hm.mutex.Lock()
	for result := range resultsChan {
		hm.results[result.Name] = result

		if result.Status != HealthStatusHealthy {
			hm.logger.Warn(context.Background(), nil, "Health check failed",
				"name", result.Name,
				"status", string(result.Status),
				"message", result.Message)
		}
	}
	hm.mutex.Unlock()
}

// GetHealth returns the current health status
func (hm *HealthMonitor) GetHealth() HealthResponse {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()

	checks := make(map[string]HealthCheck, len(hm.results))
	for name, result := range hm.results {
		checks[name] = result
	}

	return HealthResponse{
		Status:    calculateOverallStatus(checks),
		Timestamp: time.Now(),
		Checks:    checks,
		Summary:   calculateSummary(checks),
	}
}

func calculateSummary(checks map[string]HealthCheck) HealthSummary {
	summary := HealthSummary{
		Total: len(checks),
	}

	for _, check := range checks {
		switch check.Status {
		case HealthStatusHealthy:
			summary.Healthy++
		case HealthStatusUnhealthy:
			summary.Unhealthy++
		case HealthStatusDegraded:
			summary.Degraded++
		case HealthStatusUnknown:
			summary.Unknown++
		}

		if check.Critical {
			summary.Critical++
		}
	}

	return summary
}

func calculateOverallStatus(checks map[string]HealthCheck) HealthStatus {
	// A failing critical check makes the whole application unhealthy.
	for _, check := range checks {
		if check.Critical && check.Status == HealthStatusUnhealthy {
			return HealthStatusUnhealthy
		}
	}

	for _, check := range checks {
		if check.Status == HealthStatusDegraded {
			return HealthStatusDegraded
		}
	}

	// A failing non-critical check only degrades the application.
	for _, check := range checks {
		if !check.Critical && check.Status == HealthStatusUnhealthy {
			return HealthStatusDegraded
		}
	}

	return HealthStatusHealthy
}

// HTTPHandler returns an HTTP handler for health checks
func (hm *HealthMonitor) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.GetHealth()

		w.Header().Set("Content-Type", "application/json")

		switch health.Status {
		case HealthStatusHealthy, HealthStatusDegraded:
			w.WriteHeader(http.StatusOK)
		case HealthStatusUnhealthy:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(health); err != nil {
			hm.logger.Error(context.Background(), err, "Failed to encode health response")
		}
	}
}

// Predefined health checks

// StateStoreHealthChecker probes the state store with a read.
func StateStoreHealthChecker(store interfaces.StateStore) HealthChecker {
	return NewHealthCheckFunc("state_store", true, func(ctx context.Context) HealthCheck {
		check := HealthCheck{Name: "state_store", Critical: true}

		if _, err := store.List(ctx, "_system.health"); err != nil {
			check.Status = HealthStatusUnhealthy
			check.Message = fmt.Sprintf("state store unreachable: %v", err)
			return check
		}

		check.Status = HealthStatusHealthy
		check.Message = "state store is reachable"
		return check
	})
}

// DataStoreHealthChecker probes the data store via its stats query.
func DataStoreHealthChecker(store interfaces.DataStore) HealthChecker {
	return NewHealthCheckFunc("data_store", true, func(ctx context.Context) HealthCheck {
		check := HealthCheck{Name: "data_store", Critical: true}

		stats, err := store.Stats(ctx)
		if err != nil {
			check.Status = HealthStatusUnhealthy
			check.Message = fmt.Sprintf("data store unreachable: %v", err)
			return check
		}

		check.Status = HealthStatusHealthy
		check.Message = fmt.Sprintf("%d items stored", stats.Count)
		return check
	})
}

// CacheHealthChecker writes and reads back a probe entry.
func CacheHealthChecker(store interfaces.CacheStore) HealthChecker {
	return NewHealthCheckFunc("cache", false, func(ctx context.Context) HealthCheck {
		check := HealthCheck{Name: "cache", Critical: false}

		key := fmt.Sprintf("_health:%d", time.Now().UnixNano())
		if err := store.Set(ctx, key, []byte("ok"), time.Minute); err != nil {
			check.Status = HealthStatusUnhealthy
			check.Message = fmt.Sprintf("cache write failed: %v", err)
			return check
		}
		if _, found, err := store.Get(ctx, key); err != nil || !found {
			check.Status = HealthStatusDegraded
			check.Message = "cache read-back failed"
			_ = store.Delete(ctx, key)
			return check
		}
		_ = store.Delete(ctx, key)

		check.Status = HealthStatusHealthy
		check.Message = "cache is responsive"
		return check
	})
}

// QueueHealthChecker reports degraded once the queue backs up.
func QueueHealthChecker(q interfaces.TaskQueue, capacity int) HealthChecker {
	return NewHealthCheckFunc("queue", false, func(ctx context.Context) HealthCheck {
		check := HealthCheck{Name: "queue", Critical: false}

		stats := q.Stats()
		if capacity > 0 && stats.Depth >= capacity {
			check.Status = HealthStatusDegraded
			check.Message = fmt.Sprintf("queue is full (%d tasks)", stats.Depth)
			return check
		}

		check.Status = HealthStatusHealthy
		check.Message = fmt.Sprintf("%d tasks queued", stats.Depth)
		return check
	})
}
