package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lodeworks/lode/internal/interfaces"
	"github.com/lodeworks/lode/internal/plugins/builtin"
	"github.com/lodeworks/lode/internal/startup"
)

var indexCmd = &cobra.Command{
	Use:   "index <url>...",
	Short: "Fetch and index the given URLs, then exit",
	Long: `Index runs a one-shot pipeline: startup with an inline task queue,
one indexing task per invocation, graceful shutdown. Results land in
the data store configured under storage.data.`,
	Args: cobra.MinimumNArgs(1),
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

		urls := make([]interface{}, len(args))
		for i, arg := range args {
			urls[i] = arg
		}
		err = app.Queue().Enqueue(cmd.Context(), interfaces.Task{
			Name:    builtin.TaskIndex,
			Payload: map[string]interface{}{"urls": urls},
		})
		if err != nil {
			return err
		}

		stats, err := app.Singletons().DataStore().Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d url(s); %d item(s) in store\n",
			len(args), stats.Count)
		return nil
	},
}

func init() {
	addQuietFlags(indexCmd.Flags())
	rootCmd.AddCommand(indexCmd)
}
