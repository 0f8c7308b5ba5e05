package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mbc-net/ai-support-agent/internal/agentcfg"
	"github.com/mbc-net/ai-support-agent/internal/i18n"
)

func newSetLanguageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-language <locale>",
		Short: "Set the CLI display language (en, ja)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			locale := args[0]
			if !i18n.Supported(locale) {
				fmt.Fprintf(os.Stderr, "configuration error: unsupported locale %q\n", locale)
				os.Exit(1)
			}

			configDir := resolveConfigDir()
			cfg, err := loadOrEmptyConfig(configDir)
			if err != nil {
				return fmt.Errorf("set-language: %w", err)
			}
			cfg.Locale = locale

			if err := agentcfg.Save(configDir, cfg); err != nil {
				return fmt.Errorf("set-language: %w", err)
			}

			fmt.Printf("Language set to %q.\n", locale)
			return nil
		},
	}
}
