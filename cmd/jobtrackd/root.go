package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           "jobtrackd",
		Short:         "Asynchronous job runner with status tracking",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			// A missing .env is fine; the environment may already be set.
			_ = godotenv.Load()
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./jobtrack.yaml)")

	root.AddCommand(newServeCmd(v, &cfgFile))
	return root
}
