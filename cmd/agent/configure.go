package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mbc-net/ai-support-agent/internal/agentcfg"
)

func newConfigureCmd() *cobra.Command {
	var (
		defaultProjectDir string
		chatMode          string
		autoUpdate        string
		mcpServersFile    string
	)

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Update agent-wide settings (default project directory, chat mode, auto-update)",
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir := resolveConfigDir()
			cfg, err := loadOrEmptyConfig(configDir)
			if err != nil {
				return fmt.Errorf("configure: %w", err)
			}

			if cmd.Flags().Changed("default-project-dir") {
				cfg.DefaultProjectDir = defaultProjectDir
			}
			if cmd.Flags().Changed("chat-mode") {
				cfg.AgentChatMode = chatMode
			}
			if cmd.Flags().Changed("auto-update") {
				enabled := autoUpdate == "true" || autoUpdate == "on" || autoUpdate == "1"
				cfg.AutoUpdate = &enabled
			}
			if cmd.Flags().Changed("mcp-servers-file") {
				outPath, err := writeLocalMCPConfig(configDir, mcpServersFile)
				if err != nil {
					return fmt.Errorf("configure: %w", err)
				}
				cfg.LocalMCPConfigPath = outPath
			}

			if err := agentcfg.Save(configDir, cfg); err != nil {
				return fmt.Errorf("configure: %w", err)
			}

			fmt.Println("Configuration updated.")
			return nil
		},
	}

	cmd.Flags().StringVar(&defaultProjectDir, "default-project-dir", "", "default working directory for new project registrations")
	cmd.Flags().StringVar(&chatMode, "chat-mode", "", "preferred chat execution mode: local, remote, or auto")
	cmd.Flags().StringVar(&autoUpdate, "auto-update", "", "enable (true) or disable (false) the background auto-updater")
	cmd.Flags().StringVar(&mcpServersFile, "mcp-servers-file", "", "YAML file of MCP server definitions for the local coding CLI")
	return cmd
}

// writeLocalMCPConfig reads a YAML document of MCP server definitions and
// writes the equivalent JSON file the local coding CLI's --mcp-config flag
// expects, returning the written path.
func writeLocalMCPConfig(configDir, yamlPath string) (string, error) {
	raw, err := os.ReadFile(yamlPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", yamlPath, err)
	}

	var servers map[string]any
	if err := yaml.Unmarshal(raw, &servers); err != nil {
		return "", fmt.Errorf("parse %s: %w", yamlPath, err)
	}

	out, err := json.MarshalIndent(servers, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode mcp config: %w", err)
	}

	outPath := filepath.Join(configDir, "mcp-config.json")
	if err := os.WriteFile(outPath, out, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", outPath, err)
	}
	return outPath, nil
}
