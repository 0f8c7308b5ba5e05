package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mbc-net/ai-support-agent/internal/agentcfg"
	"github.com/mbc-net/ai-support-agent/internal/obslog"
	"github.com/mbc-net/ai-support-agent/internal/supervisor"
)

// setupLogging configures the global slog logger per --verbose.
func setupLogging() {
	level := "info"
	if verbose {
		level = "debug"
	}
	obslog.Setup(level, "text")
}

// resolveConfigDir resolves the agent config directory, exiting with code 1
// on failure since this is a configuration error (spec.md §7).
func resolveConfigDir() string {
	dir, err := agentcfg.ConfigDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	return dir
}

// loadOrEmptyConfig loads the agent config, returning a fresh empty config
// instead of erroring when none exists yet (the natural state before the
// first "login"/"add-project" call).
func loadOrEmptyConfig(dir string) (*agentcfg.AgentConfig, error) {
	cfg, err := agentcfg.Load(dir)
	if err == nil {
		return cfg, nil
	}
	if err == agentcfg.ErrNoConfig {
		hostname, _ := os.Hostname()
		agentID, genErr := agentcfg.GenerateAgentID(hostname)
		if genErr != nil {
			return nil, genErr
		}
		return &agentcfg.AgentConfig{AgentID: agentID, CreatedAt: time.Now()}, nil
	}
	return nil, err
}

// validateAPIURLOrExit prints a configuration error and exits with code 1
// when url does not use http or https, matching the other configuration
// error paths in this package.
func validateAPIURLOrExit(url string) error {
	if err := supervisor.ValidateAPIURL(url); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	return nil
}
