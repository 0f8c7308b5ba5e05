package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mbc-net/ai-support-agent/internal/agentcfg"
)

func newAddProjectCmd() *cobra.Command {
	var (
		projectCode string
		token       string
		apiURL      string
		projectDir  string
	)

	cmd := &cobra.Command{
		Use:   "add-project",
		Short: "Add a project registration to this agent's configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectCode == "" || token == "" || apiURL == "" {
				fmt.Fprintln(os.Stderr, "configuration error: --project-code, --token, and --api-url are required")
				os.Exit(1)
			}
			if err := validateAPIURLOrExit(apiURL); err != nil {
				return err
			}

			configDir := resolveConfigDir()
			cfg, err := loadOrEmptyConfig(configDir)
			if err != nil {
				return fmt.Errorf("add-project: %w", err)
			}

			if _, exists := cfg.ProjectByCode(projectCode); exists {
				fmt.Fprintf(os.Stderr, "configuration error: project %q is already configured\n", projectCode)
				os.Exit(1)
			}

			cfg.Projects = append(cfg.Projects, agentcfg.ProjectRegistration{
				ProjectCode: projectCode,
				Token:       token,
				APIURL:      apiURL,
				ProjectDir:  projectDir,
			})

			if err := agentcfg.Save(configDir, cfg); err != nil {
				return fmt.Errorf("add-project: %w", err)
			}

			fmt.Printf("Project %q added.\n", projectCode)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectCode, "project-code", "", "unique project code")
	cmd.Flags().StringVar(&token, "token", "", "project token")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "control-plane API base URL")
	cmd.Flags().StringVar(&projectDir, "project-dir", "", "working directory for commands run against this project")
	return cmd
}
