package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mbc-net/ai-support-agent/internal/agentcfg"
)

func newRemoveProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove-project <project-code>",
		Short: "Remove a project registration from this agent's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectCode := args[0]

			configDir := resolveConfigDir()
			cfg, err := loadOrEmptyConfig(configDir)
			if err != nil {
				return fmt.Errorf("remove-project: %w", err)
			}

			kept := make([]agentcfg.ProjectRegistration, 0, len(cfg.Projects))
			found := false
			for _, p := range cfg.Projects {
				if p.ProjectCode == projectCode {
					found = true
					continue
				}
				kept = append(kept, p)
			}
			if !found {
				fmt.Fprintf(os.Stderr, "configuration error: no project %q configured\n", projectCode)
				os.Exit(1)
			}
			cfg.Projects = kept

			if err := agentcfg.Save(configDir, cfg); err != nil {
				return fmt.Errorf("remove-project: %w", err)
			}

			fmt.Printf("Project %q removed.\n", projectCode)
			return nil
		},
	}
	return cmd
}
