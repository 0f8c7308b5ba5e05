package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mbc-net/ai-support-agent/internal/agentcfg"
)

func newSetProjectDirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-project-dir <project-code> <dir>",
		Short: "Set the working directory a project's commands run against",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectCode, dir := args[0], args[1]

			configDir := resolveConfigDir()
			cfg, err := loadOrEmptyConfig(configDir)
			if err != nil {
				return fmt.Errorf("set-project-dir: %w", err)
			}

			found := false
			for i, p := range cfg.Projects {
				if p.ProjectCode == projectCode {
					cfg.Projects[i].ProjectDir = dir
					found = true
					break
				}
			}
			if !found {
				fmt.Fprintf(os.Stderr, "configuration error: no project %q configured\n", projectCode)
				os.Exit(1)
			}

			if err := agentcfg.Save(configDir, cfg); err != nil {
				return fmt.Errorf("set-project-dir: %w", err)
			}

			fmt.Printf("Project %q directory set to %q.\n", projectCode, dir)
			return nil
		},
	}
}
