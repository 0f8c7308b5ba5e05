package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print this agent's configuration and registered projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir := resolveConfigDir()
			cfg, err := loadOrEmptyConfig(configDir)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			fmt.Printf("Agent ID:     %s\n", cfg.AgentID)
			fmt.Printf("Created:      %s\n", cfg.CreatedAt.Format("2006-01-02 15:04:05"))
			if cfg.LastConnected != nil {
				fmt.Printf("Last connect: %s\n", cfg.LastConnected.Format("2006-01-02 15:04:05"))
			} else {
				fmt.Println("Last connect: never")
			}
			if cfg.DefaultProjectDir != "" {
				fmt.Printf("Default dir:  %s\n", cfg.DefaultProjectDir)
			}
			if cfg.Locale != "" {
				fmt.Printf("Locale:       %s\n", cfg.Locale)
			}

			if len(cfg.Projects) == 0 {
				fmt.Println("Projects:     none configured")
				return nil
			}
			fmt.Println("Projects:")
			for _, p := range cfg.Projects {
				dir := p.ProjectDir
				if dir == "" {
					dir = "(default)"
				}
				fmt.Printf("  - %s  %s  dir=%s\n", p.ProjectCode, p.APIURL, dir)
			}
			return nil
		},
	}
}
