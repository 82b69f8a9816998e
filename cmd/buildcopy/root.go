package main

import (
	"fmt"
	"strings"

	"buildcopy/internal/config"
	"buildcopy/internal/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what every subcommand needs once the root command has run.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	a.v.SetEnvPrefix("BUILDCOPY")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "buildcopy",
		Short: "Copy build assets into output directories",
		Long: `buildcopy copies files and directories from configured sources into
one or more destinations after a build, keeping only the top-level entries
your include and exclude globs allow. In watch mode it re-copies a source
whenever a file in it is added or changed.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" {
				return nil
			}
			return a.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./"+config.DefaultPath+")")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.Bool("json", false, "emit JSON log entries")
	flags.String("log-file", "", "also write log entries to this file")
	flags.Bool("poll", false, "poll for changes instead of using filesystem events")
	flags.Duration("interval", 0, "polling interval (default 200ms)")
	flags.Bool("track-new", false, "include entries created in a source during the build")
	for _, name := range []string{"verbose", "json", "log-file", "poll", "interval", "track-new"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(newRunCmd(a))
	rootCmd.AddCommand(newWatchCmd(a))
	rootCmd.AddCommand(newInitCmd(a))

	return rootCmd
}

func (a *app) configPath() string {
	if a.cfgFile != "" {
		return a.cfgFile
	}
	return config.DefaultPath
}

// load reads the config file, applies flag and environment overrides and
// sets up logging.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfigFile(a.configPath())
	if err != nil {
		return err
	}

	if a.v.IsSet("verbose") {
		cfg.Log.Verbose = a.v.GetBool("verbose")
	}
	if a.v.IsSet("json") {
		cfg.Log.JSON = a.v.GetBool("json")
	}
	if a.v.IsSet("log-file") {
		cfg.Log.File = a.v.GetString("log-file")
	}
	if a.v.IsSet("poll") {
		cfg.Poll = a.v.GetBool("poll")
	}
	if a.v.IsSet("interval") {
		cfg.Interval = a.v.GetDuration("interval")
	}
	if a.v.IsSet("track-new") {
		cfg.TrackNew = a.v.GetBool("track-new")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts := []log.Option{log.WithOutput(cmd.ErrOrStderr())}
	if cfg.Log.JSON {
		opts = append(opts, log.WithJSON())
	}
	if cfg.Log.File != "" {
		opts = append(opts, log.WithFile(cfg.Log.File))
	}
	log.Configure(opts...)
	log.SetDebug(cfg.Log.Verbose)

	if len(cfg.Patterns) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), warningText("No patterns configured in "+a.configPath()))
	}
	a.cfg = cfg
	return nil
}
