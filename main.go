package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mbolis/merchant-survey/config"
	"github.com/mbolis/merchant-survey/log"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:           "qsurvey",
		Short:         "Business category survey collection",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Finalize(cmd.Flags()); err != nil {
				log.Error("main.config:", err)
				return err
			}
			if cfg.Debug {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
	}
	cfg.BindStorageFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCommand(&cfg))
	cmd.AddCommand(newExportCommand(&cfg))
	return cmd
}
