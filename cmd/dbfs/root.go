package main

import (
	"github.com/spf13/cobra"

	"github.com/dbfs/dbfs/internal/config"
)

var version = "dev"

type rootFlags struct {
	configFile string
	logLevel   string
	logFile    string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:     "dbfs",
		Short:   "Mount SQL Server catalog views as files",
		Version: version,
		Long: `dbfs exposes the system catalog of one or more SQL Server instances
as a local directory tree. Reading a view file runs the matching
catalog query and returns its output; files ending in .json return the
same data as a JSON document. A customQueries directory per server
holds the output of user-provided query files, refreshed on every
listing.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "path to the configuration file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	cmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "write logs to this file instead of stderr")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newMountCmd(flags))
	cmd.AddCommand(newVerifyCmd(flags))

	return cmd
}

// loadConfig merges defaults, the config file, environment overrides,
// and command line flags, in that order.
func loadConfig(flags *rootFlags) (*config.Configuration, error) {
	cfg := config.NewDefault()
	if flags.configFile != "" {
		if err := cfg.LoadFromFile(flags.configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	if flags.logLevel != "" {
		cfg.Global.LogLevel = flags.logLevel
	}
	if flags.logFile != "" {
		cfg.Global.LogFile = flags.logFile
	}
	if flags.verbose {
		cfg.Global.Verbose = true
	}
	return cfg, nil
}
