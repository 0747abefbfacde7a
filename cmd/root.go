package cmd

import (
	"gridlearn/config"

	"github.com/spf13/cobra"
)

func RootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gridlearn",
		Short:         "Tabular Q-learning in a maze or a snake arena",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnv(envFile)
		},
	}
	AddFlags(cmd)

	cmd.AddCommand(
		TrainCommand(),
		ServeCommand(),
	)

	return cmd
}
