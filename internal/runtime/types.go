// Package runtime implements one project's end-to-end lifecycle: capability
// probing, registration, transport selection (realtime vs. polling),
// heartbeats, command processing, and config resync (spec.md §4.6).
package runtime

import (
	"context"
	"time"

	"github.com/mbc-net/ai-support-agent/internal/agentcfg"
)

const (
	defaultPollInterval      = 3000 * time.Millisecond
	minTimerInterval         = 1 * time.Second
	maxTimerInterval         = 300 * time.Second
	defaultHeartbeatInterval = 60 * time.Second
	capabilityProbeTimeout   = 5 * time.Second
)

// Config is the static configuration for one project runtime, derived from
// a ProjectRegistration plus process-wide overrides (CLI flags, env vars).
type Config struct {
	ProjectCode        string
	Token              string
	APIURL             string
	ProjectDir         string
	AgentID            string
	PollInterval       time.Duration
	HeartbeatInterval  time.Duration
	CacheDBPath        string
	ClaudeExecutable   string
	Locale             string
	RemoteAPIKey       string
	RemoteModel        string
	RemoteBaseURL      string
	ChatModeOverride   string
	LocalMCPConfigPath string
}

// clampInterval bounds d to [minTimerInterval, maxTimerInterval], falling
// back to def when d is zero.
func clampInterval(d, def time.Duration) time.Duration {
	if d <= 0 {
		d = def
	}
	if d < minTimerInterval {
		return minTimerInterval
	}
	if d > maxTimerInterval {
		return maxTimerInterval
	}
	return d
}

// onSetupFunc and onConfigSyncFunc are the executor callbacks a Runtime
// supplies for the setup/config_sync command types.
type onSetupFunc func(ctx context.Context) ([]byte, error)
type onConfigSyncFunc func(ctx context.Context) ([]byte, error)

// projectForRegistration adapts a runtime Config into the shape the agent
// config store persists.
func projectForRegistration(cfg Config) agentcfg.ProjectRegistration {
	return agentcfg.ProjectRegistration{
		ProjectCode: cfg.ProjectCode,
		Token:       cfg.Token,
		APIURL:      cfg.APIURL,
		ProjectDir:  cfg.ProjectDir,
	}
}
