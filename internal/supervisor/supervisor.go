// Package supervisor orchestrates one project runtime per configured
// project, applies the project-selection rules, and handles process
// shutdown signals (spec.md §4.7).
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/mbc-net/ai-support-agent/common/environment"
	"github.com/mbc-net/ai-support-agent/internal/agentcfg"
	"github.com/mbc-net/ai-support-agent/internal/executor"
	"github.com/mbc-net/ai-support-agent/internal/runtime"
	"github.com/mbc-net/ai-support-agent/internal/updater"
)

// ErrNoProjects is returned by Resolve when no project could be selected by
// any of the three rules (spec.md §4.7, rule 3).
var ErrNoProjects = errors.New("supervisor: no projects configured")

// CLIOverride carries the flags that can short-circuit normal project
// resolution ("start --token ... --api-url ...").
type CLIOverride struct {
	Token  string
	APIURL string
}

// Options configures a Supervisor's timers and chat backend beyond what
// comes from agentcfg.
type Options struct {
	AgentID            string
	PollInterval       int64 // milliseconds, 0 = default
	HeartbeatInterval  int64 // milliseconds, 0 = default
	CacheDir           string
	ClaudeExecutable   string
	Locale             string
	RemoteAPIKey       string
	ChatModeOverride   string
	LocalMCPConfigPath string
}

// Supervisor owns a fixed set of project runtimes for the lifetime of one
// process invocation.
type Supervisor struct {
	runtimes []*runtime.Runtime
	checker  *updater.Checker
}

// Resolve applies the three project-selection rules in order and returns
// the runtime.Config set to start.
func Resolve(cli CLIOverride, configDir string) ([]runtime.Config, error) {
	if cli.Token != "" && cli.APIURL != "" {
		return []runtime.Config{{
			ProjectCode: "cli-direct",
			Token:       cli.Token,
			APIURL:      cli.APIURL,
		}}, nil
	}

	cfg, err := agentcfg.Load(configDir)
	if err != nil && !errors.Is(err, agentcfg.ErrNoConfig) {
		return nil, fmt.Errorf("supervisor: load config: %w", err)
	}
	noConfig := errors.Is(err, agentcfg.ErrNoConfig)

	if noConfig {
		if token := environment.StringOr("AGENT_TOKEN", ""); token != "" {
			if apiURL := environment.StringOr("AGENT_API_URL", ""); apiURL != "" {
				return []runtime.Config{{
					ProjectCode: "env-default",
					Token:       token,
					APIURL:      apiURL,
				}}, nil
			}
		}
		return nil, ErrNoProjects
	}

	if len(cfg.Projects) == 0 {
		return nil, ErrNoProjects
	}

	out := make([]runtime.Config, 0, len(cfg.Projects))
	for _, p := range cfg.Projects {
		out = append(out, runtime.Config{
			ProjectCode: p.ProjectCode,
			Token:       p.Token,
			APIURL:      p.APIURL,
			ProjectDir:  p.ProjectDir,
		})
	}
	return out, nil
}

// ValidateAPIURL enforces that every project's API URL uses http or https
// (spec.md §4.7).
func ValidateAPIURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("supervisor: invalid API URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("supervisor: API URL %q must use http or https", raw)
	}
	return nil
}

// Start builds one Runtime per config entry, applying opts, and starts
// each. If any fails to start, the ones already started are stopped and
// the first error is returned.
func Start(ctx context.Context, configs []runtime.Config, opts Options) (*Supervisor, error) {
	sup := &Supervisor{}

	for _, c := range configs {
		if err := ValidateAPIURL(c.APIURL); err != nil {
			sup.StopAll()
			return nil, err
		}

		c.AgentID = opts.AgentID
		c.ClaudeExecutable = opts.ClaudeExecutable
		c.Locale = opts.Locale
		c.RemoteAPIKey = opts.RemoteAPIKey
		c.ChatModeOverride = opts.ChatModeOverride
		c.LocalMCPConfigPath = opts.LocalMCPConfigPath
		if opts.PollInterval > 0 {
			c.PollInterval = time.Duration(opts.PollInterval) * time.Millisecond
		}
		if opts.HeartbeatInterval > 0 {
			c.HeartbeatInterval = time.Duration(opts.HeartbeatInterval) * time.Millisecond
		}
		if opts.CacheDir != "" {
			c.CacheDBPath = filepath.Join(opts.CacheDir, c.ProjectCode+".db")
		}

		rt, err := runtime.New(c, executor.NewRouter())
		if err != nil {
			sup.StopAll()
			return nil, fmt.Errorf("supervisor: create runtime for %s: %w", c.ProjectCode, err)
		}
		if err := rt.Start(ctx); err != nil {
			slog.Error("supervisor: runtime failed to start", "project", c.ProjectCode, "err", err)
			sup.StopAll()
			return nil, fmt.Errorf("supervisor: start runtime for %s: %w", c.ProjectCode, err)
		}
		sup.runtimes = append(sup.runtimes, rt)
	}

	return sup, nil
}

// AttachUpdater installs the optional auto-updater; StopAll stops it too.
func (s *Supervisor) AttachUpdater(checker *updater.Checker) {
	s.checker = checker
}

// StopAll stops every managed runtime and the updater, if any.
func (s *Supervisor) StopAll() {
	var wg sync.WaitGroup
	for _, rt := range s.runtimes {
		wg.Add(1)
		go func(rt *runtime.Runtime) {
			defer wg.Done()
			rt.Stop()
		}(rt)
	}
	wg.Wait()
	if s.checker != nil {
		s.checker.Stop()
	}
}

// WaitForShutdownSignal blocks until SIGINT or SIGTERM, then stops every
// runtime and the updater, and returns (spec.md §4.7).
func (s *Supervisor) WaitForShutdownSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	slog.Info("supervisor: received shutdown signal")
	s.StopAll()
}
