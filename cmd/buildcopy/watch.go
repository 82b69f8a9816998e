package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"buildcopy/internal/host"
	"buildcopy/internal/plugin"

	"github.com/spf13/cobra"
)

// newWatchCmd creates the command that copies once and then keeps
// destinations in sync until interrupted
func newWatchCmd(a *app) *cobra.Command {
	var stopWatching bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Copy every pattern, then re-copy on changes",
		Long: `Run one build pass, then watch the sources of every pattern with
watch: true and re-copy them when files are added or changed. Press Ctrl+C
to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.cfg.Options
			opts.Watch = true
			if cmd.Flags().Changed("stop-watching") {
				opts.StopWatching = stopWatching
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			build := host.New()
			p := plugin.New(opts)
			p.Setup(build)
			defer build.Dispose()

			if err := build.Rebuild(ctx); err != nil {
				return err
			}

			report := p.LastReport()
			out := cmd.OutOrStdout()
			renderReport(out, report)
			if report.Watching == 0 {
				fmt.Fprintln(out, warningText("Nothing to watch. Set watch: true on a pattern to enable it."))
				return nil
			}

			fmt.Fprintln(out, infoText("Watching for changes. Press Ctrl+C to stop."))
			<-ctx.Done()
			fmt.Fprintln(out, infoText("\nStopping watchers..."))
			build.Dispose()
			fmt.Fprintln(out, successText("Watchers stopped"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&stopWatching, "stop-watching", false, "close each watcher right after arming it")
	return cmd
}
