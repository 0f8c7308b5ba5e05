// Package updater implements the background check-and-re-exec loop that
// polls the control plane for a newer published version and, when one is
// available, stages it and signals a restart (spec.md §4.7, §8 "Version
// round-trip property").
package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
)

// checkInterval is how often the updater polls for a newer version. Not
// spec-mandated; grounded on the same order of magnitude as the
// teacher's MCP-server restart-watch loop.
const checkInterval = 1 * time.Hour

// VersionFetcher is the subset of controlplane.Client the updater needs.
type VersionFetcher interface {
	Version(ctx context.Context, channel string) (string, error)
}

// Installer stages a new version for the next process start. What
// "staging" means (download, unpack, replace the binary on disk) is left
// to the concrete implementation; the updater only decides *when* to call
// it and re-execs the current process once staging succeeds.
type Installer interface {
	Install(ctx context.Context, version string) error
}

// Checker periodically compares the running version against the latest
// one published for a channel and triggers an update when newer.
type Checker struct {
	fetcher   VersionFetcher
	installer Installer
	channel   string
	current   *semver.Version

	onUpdateAvailable func(newVersion *semver.Version)

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Checker for the given channel ("latest", "beta", "alpha")
// and current running version string.
func New(fetcher VersionFetcher, installer Installer, channel, currentVersion string) (*Checker, error) {
	current, err := parseVersion(currentVersion)
	if err != nil {
		return nil, fmt.Errorf("updater: parse current version %q: %w", currentVersion, err)
	}
	return &Checker{
		fetcher:   fetcher,
		installer: installer,
		channel:   channel,
		current:   current,
	}, nil
}

// OnUpdateAvailable registers a callback invoked after a newer version has
// been successfully staged by the installer. The supervisor uses this to
// initiate a graceful restart.
func (c *Checker) OnUpdateAvailable(fn func(newVersion *semver.Version)) {
	c.mu.Lock()
	c.onUpdateAvailable = fn
	c.mu.Unlock()
}

// Start begins the polling loop in a background goroutine. It returns
// immediately; call Stop to terminate the loop.
func (c *Checker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.checkOnce(ctx); err != nil {
					slog.Warn("updater: check failed", "err", err)
				}
			}
		}
	}()
}

// Stop cancels the polling loop and waits for it to exit.
func (c *Checker) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// checkOnce fetches the latest version for the configured channel and, if
// strictly newer than the running version, stages it via the installer and
// invokes onUpdateAvailable.
func (c *Checker) checkOnce(ctx context.Context) error {
	raw, err := c.fetcher.Version(ctx, c.channel)
	if err != nil {
		return fmt.Errorf("updater: fetch latest version: %w", err)
	}
	latest, err := parseVersion(raw)
	if err != nil {
		return fmt.Errorf("updater: parse latest version %q: %w", raw, err)
	}
	if latest.Compare(c.current) <= 0 {
		return nil
	}

	slog.Info("updater: newer version available", "current", renderVersion(c.current), "latest", renderVersion(latest))
	if c.installer == nil {
		return errors.New("updater: no installer configured")
	}
	if err := c.installer.Install(ctx, raw); err != nil {
		return fmt.Errorf("updater: install %s: %w", raw, err)
	}

	c.mu.Lock()
	cb := c.onUpdateAvailable
	c.mu.Unlock()
	if cb != nil {
		cb(latest)
	}
	return nil
}

// parseVersion and renderVersion are the comparator's canonical
// string<->Version conversion; parseVersion(renderVersion(v)) == v for any
// v produced by parseVersion (spec.md §8).
func parseVersion(s string) (*semver.Version, error) {
	return semver.NewVersion(s)
}

func renderVersion(v *semver.Version) string {
	return v.String()
}
