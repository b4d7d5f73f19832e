package cmd

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lodeworks/lode/internal/plugins"
	"github.com/lodeworks/lode/internal/plugins/builtin"
	"github.com/lodeworks/lode/internal/startup"
)

// startupOptions translates resolved flags and environment into the
// explicit options the startup manager takes.
func startupOptions(overlays ...string) startup.Options {
	return startup.Options{
		ConfigDir:  configDir(),
		ConfigFile: viper.GetString("config_file"),
		Overlays:   overlays,
		LogLevel:   viper.GetString("log_level"),
		LogFormat:  viper.GetString("log_format"),
	}
}

// newRegistry builds the plugin registry with the built-in plugins.
func newRegistry() (*plugins.Registry, error) {
	registry := plugins.NewRegistry()
	for _, p := range builtin.All() {
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// addQuietFlags registers flags shared by the one-shot commands that
// suppress the long-running surfaces.
func addQuietFlags(flags *pflag.FlagSet) {
	flags.Bool("no-monitoring", true, "disable the metrics endpoint for this run")
	flags.Bool("no-watcher", true, "disable the config directory watcher for this run")
}

// quietOverlays converts the one-shot flags into configuration overlays.
func quietOverlays(flags *pflag.FlagSet) []string {
	var overlays []string
	if ok, _ := flags.GetBool("no-monitoring"); ok {
		overlays = append(overlays, "monitoring:\n  enabled: false\n")
	}
	if ok, _ := flags.GetBool("no-watcher"); ok {
		overlays = append(overlays, "watcher:\n  enabled: false\n")
	}
	return overlays
}
