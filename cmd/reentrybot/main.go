package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reentrybot/internal/cfg"
	"reentrybot/internal/logx"
)

var (
	cfgFile string
	config  cfg.Config
)

var rootCmd = &cobra.Command{
	Use:           "reentrybot",
	Short:         "Moving-average trend bot with stop-loss and same-direction re-entry",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := cfg.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		config = c
		logx.Setup(c.LogLevel, c.LogPretty)
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or .env; default ./.env when present)")
	rootCmd.AddCommand(runCmd(), backtestCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
