package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbc-net/ai-support-agent/internal/agentcfg"
	"github.com/mbc-net/ai-support-agent/internal/loginserver"
)

// loginTimeout bounds how long the CLI waits for the browser callback before
// giving up (spec.md §8 scenario 6).
const loginTimeout = 5 * time.Minute

func newLoginCmd() *cobra.Command {
	var apiURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate via the browser and register this agent with a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			if apiURL == "" {
				fmt.Fprintln(os.Stderr, "configuration error: --api-url is required")
				os.Exit(1)
			}
			if err := validateAPIURLOrExit(apiURL); err != nil {
				return err
			}

			srv, err := loginserver.New()
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			addr, err := srv.Start()
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			defer srv.Close()

			loginURL := fmt.Sprintf("%s/cli-login?callback=http://%s/callback&nonce=%s", apiURL, addr, srv.Nonce())
			fmt.Printf("Open the following URL in your browser to finish login:\n\n  %s\n\n", loginURL)
			fmt.Println("Waiting for browser callback...")

			ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
			defer cancel()

			result, err := srv.WaitForCallback(ctx)
			if err != nil {
				return fmt.Errorf("login: timed out waiting for browser callback: %w", err)
			}

			configDir := resolveConfigDir()
			cfg, err := loadOrEmptyConfig(configDir)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}

			projectCode := result.ProjectCode
			if projectCode == "" {
				projectCode = "default"
			}
			reg := agentcfg.ProjectRegistration{ProjectCode: projectCode, Token: result.Token, APIURL: apiURL}
			replaceOrAppendProject(cfg, reg)

			if err := agentcfg.Save(configDir, cfg); err != nil {
				return fmt.Errorf("login: %w", err)
			}

			fmt.Printf("Logged in. Project %q registered.\n", projectCode)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", "", "control-plane API base URL")
	return cmd
}

// replaceOrAppendProject overwrites an existing registration with the same
// project code, or appends a new one.
func replaceOrAppendProject(cfg *agentcfg.AgentConfig, reg agentcfg.ProjectRegistration) {
	for i, p := range cfg.Projects {
		if p.ProjectCode == reg.ProjectCode {
			cfg.Projects[i] = reg
			return
		}
	}
	cfg.Projects = append(cfg.Projects, reg)
}
