package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lodeworks/lode/internal/config"
	"github.com/lodeworks/lode/internal/errors"
	"github.com/lodeworks/lode/internal/interfaces"
	"github.com/lodeworks/lode/internal/storage"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and state store health",
	Long: `Doctor loads every configuration file the way startup would and
reports per-file outcomes, then verifies that the state store opens
and whether a previous run's snapshot is present. It never modifies
state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		registry, err := newRegistry()
		if err != nil {
			return err
		}

		mgr := config.NewManager(nil)
		for _, p := range registry.ConfigurationProviders() {
			if err := mgr.AddProvider(p); err != nil {
				fmt.Fprintf(out, "FAIL  provider %s: %v\n", p.ConfigurationID(), err)
				return err
			}
			fmt.Fprintf(out, "ok    provider %s\n", p.ConfigurationID())
		}

		dir := configDir()
		if dir == "" {
			fmt.Fprintln(out, "warn  no configuration directory resolved")
		} else if _, err := os.Stat(dir); os.IsNotExist(err) {
			fmt.Fprintf(out, "warn  configuration directory %s does not exist\n", dir)
		} else {
			if err := mgr.LoadDirectory(cmd.Context(), dir); err != nil {
				return err
			}
			report := mgr.Report()
			if len(report.Files) == 0 {
				fmt.Fprintf(out, "ok    %s contains no configuration files\n", dir)
			}
			for _, file := range report.Files {
				if file.Loaded {
					fmt.Fprintf(out, "ok    %s\n", file.Path)
				} else {
					fmt.Fprintf(out, "FAIL  %s: %v\n", file.Path, file.Err)
				}
			}
		}

		// State store check against the merged configuration.
		cfg := mgr.Build()
		if cfg.GetString("storage.state.driver", "sqlite") != "sqlite" {
			fmt.Fprintln(out, "ok    state store is not file-backed, skipping check")
			return nil
		}
		path := cfg.GetString("storage.state.path", "lode-state.db")
		store, err := storage.NewSQLiteStateStore(path)
		if err != nil {
			fmt.Fprintf(out, "FAIL  state store %s: %v\n", path, err)
			return err
		}
		defer func() { _ = store.Close() }()

		entry, err := store.Get(cmd.Context(), config.StatePartition, config.StateKey)
		switch {
		case errors.Is(err, interfaces.ErrNotFound):
			fmt.Fprintf(out, "ok    state store %s (no previous snapshot; next run is a first run)\n", path)
		case err != nil:
			fmt.Fprintf(out, "FAIL  state store %s: %v\n", path, err)
			return err
		default:
			fmt.Fprintf(out, "ok    state store %s (snapshot from %s)\n",
				path, entry.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
