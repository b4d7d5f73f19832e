package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lodeworks/lode/internal/config"
	"github.com/lodeworks/lode/internal/startup"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the merged configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration",
	Long: `Show assembles plugin defaults, configuration directory files, and
overrides exactly as startup would, and prints the merged result. No
state is read or written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry()
		if err != nil {
			return err
		}

		mgr := config.NewManager(nil)
		for _, p := range registry.ConfigurationProviders() {
			if err := mgr.AddProvider(p); err != nil {
				return err
			}
		}
		if dir := configDir(); dir != "" {
			if err := mgr.LoadDirectory(cmd.Context(), dir); err != nil {
				return err
			}
		}
		if file := startupOptions().ConfigFile; file != "" {
			if err := mgr.LoadFile(cmd.Context(), file); err != nil {
				return err
			}
		}

		merged := mgr.Build()

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			data, err := json.MarshalIndent(merged.AsMap(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
		case "yaml":
			data, err := config.EncodeYAML(configMapping(merged))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
		default:
			return fmt.Errorf("unknown format %q (expected yaml or json)", format)
		}
		return nil
	},
}

var configDiffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show configuration changes since the previous run",
	Long: `Diff assembles the configuration, compares it against the snapshot
persisted by the previous run, and prints the changed paths. Like
startup, it persists the new merged snapshot, so a following run or
diff starts from this state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry()
		if err != nil {
			return err
		}

		opts := startupOptions(quietOverlays(cmd.Flags())...)
		opts.SynchronousQueue = true

		app, err := startup.NewManager(registry, opts).Run(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = app.Shutdown(ctx)
		}()

		changes := app.Config().LastChanges()
		out := cmd.OutOrStdout()
		if changes.Empty() {
			fmt.Fprintln(out, "No configuration changes since the previous run")
			return nil
		}

		removed := make(map[string]bool, len(changes.RemovedPaths()))
		for _, path := range changes.RemovedPaths() {
			removed[path] = true
		}
		for _, path := range changes.AddedPaths() {
			if removed[path] {
				fmt.Fprintf(out, "~ %s: %v -> %v\n", path,
					app.Config().Removal(path, nil), app.Config().Addition(path, nil))
				delete(removed, path)
				continue
			}
			fmt.Fprintf(out, "+ %s: %v\n", path, app.Config().Addition(path, nil))
		}
		for _, path := range changes.RemovedPaths() {
			if removed[path] {
				fmt.Fprintf(out, "- %s: %v\n", path, app.Config().Removal(path, nil))
			}
		}
		return nil
	},
}

// configMapping rebuilds a Mapping from a view's plain map for YAML
// output.
func configMapping(cfg *config.Configuration) config.Mapping {
	value, err := config.FromAny(cfg.AsMap())
	if err != nil {
		return config.Mapping{}
	}
	return value.Map()
}

func init() {
	configShowCmd.Flags().String("format", "yaml", "output format (yaml, json)")
	addQuietFlags(configDiffCmd.Flags())
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configDiffCmd)
	rootCmd.AddCommand(configCmd)
}
