package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lodeworks/lode/internal/startup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the engine and run until interrupted",
	Long: `Run executes the full startup sequence, starts the queue workers,
the monitoring endpoint, and the configuration watcher, then waits for
SIGINT or SIGTERM and shuts down gracefully.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry()
		if err != nil {
			return err
		}

		app, err := startup.NewManager(registry, startupOptions()).Run(cmd.Context())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return app.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
