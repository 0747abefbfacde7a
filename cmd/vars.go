package cmd

import "github.com/spf13/cobra"

var (
	configPath string
	envFile    string
	verbose    bool

	episodes int
	dumpPath string
	noSave   bool
	addr     string
)

func AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file loaded before the config")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log episode and checkpoint events to stderr")
}
