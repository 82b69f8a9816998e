package main

import (
	"fmt"

	"buildcopy/internal/host"
	"buildcopy/internal/plugin"

	"github.com/spf13/cobra"
)

// newRunCmd creates the command that performs a single copy pass
func newRunCmd(a *app) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Copy every configured pattern once",
		Long:  `Run one build pass: copy each pattern's sources into its destinations and prune filtered entries.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.cfg.Options
			opts.Watch = false

			build := host.New()
			p := plugin.New(opts)
			p.Setup(build)
			defer build.Dispose()

			if err := build.Rebuild(cmd.Context()); err != nil {
				return err
			}

			report := p.LastReport()
			renderReport(cmd.OutOrStdout(), report)
			if strict && len(report.Failures) > 0 {
				return fmt.Errorf("%d source(s) failed to copy", len(report.Failures))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "exit with an error when any source fails to copy")
	return cmd
}
