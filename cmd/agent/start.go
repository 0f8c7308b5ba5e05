package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mbc-net/ai-support-agent/common/environment"
	"github.com/mbc-net/ai-support-agent/internal/controlplane"
	"github.com/mbc-net/ai-support-agent/internal/reporter"
	"github.com/mbc-net/ai-support-agent/internal/runtime"
	"github.com/mbc-net/ai-support-agent/internal/supervisor"
	"github.com/mbc-net/ai-support-agent/internal/updater"
)

func newStartCmd() *cobra.Command {
	var (
		token            string
		apiURL           string
		pollIntervalMS   int64
		heartbeatMS      int64
		noAutoUpdate     bool
		updateChannel    string
		claudeExecutable string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the agent and begin serving its configured projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			rep := reporter.FromEnv(version)

			configDir := resolveConfigDir()
			configs, err := supervisor.Resolve(supervisor.CLIOverride{Token: token, APIURL: apiURL}, configDir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
				os.Exit(1)
			}

			cfg, err := loadOrEmptyConfig(configDir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
				os.Exit(1)
			}

			opts := supervisor.Options{
				AgentID:            cfg.AgentID,
				PollInterval:       pollIntervalMS,
				HeartbeatInterval:  heartbeatMS,
				CacheDir:           configDir,
				ClaudeExecutable:   claudeExecutable,
				Locale:             cfg.AgentChatMode,
				RemoteAPIKey:       environment.StringOr("ANTHROPIC_API_KEY", ""),
				LocalMCPConfigPath: cfg.LocalMCPConfigPath,
			}

			ctx := context.Background()
			sup, err := supervisor.Start(ctx, configs, opts)
			if err != nil {
				if rep != nil {
					rep.Report(ctx, err, map[string]string{"phase": "start"})
				}
				fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
				os.Exit(1)
			}

			if !noAutoUpdate {
				if fetcher := controlplaneVersionClient(configs); fetcher != nil {
					if checker, err := updater.New(fetcher, logOnlyInstaller{}, updateChannel, version); err == nil {
						checker.Start(ctx)
						sup.AttachUpdater(checker)
					} else {
						slog.Warn("start: auto-updater disabled", "err", err)
					}
				}
			}

			sup.WaitForShutdownSignal()
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "project token (used with --api-url for a direct single-project run)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "control-plane API base URL")
	cmd.Flags().Int64Var(&pollIntervalMS, "poll-interval", 0, "polling interval in milliseconds (default 3000)")
	cmd.Flags().Int64Var(&heartbeatMS, "heartbeat-interval", 0, "heartbeat interval in milliseconds (default 60000)")
	cmd.Flags().BoolVar(&noAutoUpdate, "no-auto-update", false, "disable the background auto-updater")
	cmd.Flags().StringVar(&updateChannel, "update-channel", "latest", "release channel: latest, beta, or alpha")
	cmd.Flags().StringVar(&claudeExecutable, "claude-executable", "claude", "path to the local coding CLI binary")

	return cmd
}

// controlplaneVersionClient picks a client bound to the first configured
// project to check for updates against; the version endpoint is
// project-agnostic in practice.
func controlplaneVersionClient(configs []runtime.Config) updater.VersionFetcher {
	if len(configs) == 0 {
		return nil
	}
	return controlplane.New(configs[0].APIURL, configs[0].Token)
}

// logOnlyInstaller reports an available update without replacing the running
// binary; this agent ships no self-replace mechanics, so the operator's
// package manager or container image owns the actual upgrade.
type logOnlyInstaller struct{}

func (logOnlyInstaller) Install(ctx context.Context, newVersion string) error {
	slog.Info("start: newer agent version available", "version", newVersion)
	return nil
}
