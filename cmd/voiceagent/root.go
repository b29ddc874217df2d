package main

import (
	"fmt"

	"github.com/koscakluka/ema-dialogue/internal/config"
	"github.com/spf13/cobra"
)

type cli struct {
	configFile string
	settings   config.Settings
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "voiceagent",
		Short:         "Real-time voice advisor with retrieval and task tracking",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var opts []config.Option
			if c.configFile != "" {
				opts = append(opts, config.WithConfigFile(c.configFile))
			}
			settings, err := config.Load(opts...)
			if err != nil {
				return fmt.Errorf("failed to load settings: %w", err)
			}
			c.settings = settings
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.configFile, "config", "", "YAML settings file (environment variables take precedence)")

	rootCmd.AddCommand(
		newServeCommand(c),
		newSearchCommand(c),
		newSchemaCommand(),
	)
	return rootCmd
}
