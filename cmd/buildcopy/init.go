package main

import (
	"fmt"
	"os"

	"buildcopy/internal/config"

	"github.com/spf13/cobra"
)

// newInitCmd creates the command that writes a starter configuration
func newInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveConfig(config.Sample(), path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successText("Wrote "+path))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
