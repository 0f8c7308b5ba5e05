// Package projectconfig coalesces config-resync triggers (heartbeat hash
// changes, realtime config-update notifications) behind a fixed debounce
// window so that a burst of near-simultaneous triggers produces exactly one
// fetch (spec.md §4.6, §4.8, §8 scenario 5).
package projectconfig

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mbc-net/ai-support-agent/internal/controlplane"
)

// DebounceWindow is the fixed delay between the last trigger in a burst and
// the resulting fetch.
const DebounceWindow = 2 * time.Second

// Fetcher is the subset of controlplane.Client a Syncer needs.
type Fetcher interface {
	ProjectConfig(ctx context.Context) (*controlplane.ProjectConfigResponse, error)
}

// ApplyFunc applies a freshly fetched snapshot (tools, dirs, system prompt,
// AWS profile materialisation) and is supplied by the project runtime.
type ApplyFunc func(ctx context.Context, snapshot *controlplane.ProjectConfigResponse) error

// Syncer debounces resync triggers for one project and performs the
// eventual fetch+apply.
type Syncer struct {
	client Fetcher
	apply  ApplyFunc

	mu    sync.Mutex
	timer *time.Timer
}

// New creates a Syncer. apply is called once per debounced fetch, on the
// timer goroutine; it is never called concurrently with itself.
func New(client Fetcher, apply ApplyFunc) *Syncer {
	return &Syncer{client: client, apply: apply}
}

// ScheduleResync (re)arms the debounce timer. Calling it repeatedly within
// DebounceWindow of the previous call collapses all calls into a single
// fetch, DebounceWindow after the last one.
func (s *Syncer) ScheduleResync() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(DebounceWindow, s.fire)
}

// Stop cancels any pending debounced fetch.
func (s *Syncer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Syncer) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.SyncNow(ctx); err != nil {
		slog.Warn("projectconfig: debounced resync failed", "err", err)
	}
}

// SyncNow performs an immediate fetch+apply, bypassing debounce. Used for
// the initial sync at runtime start and by the debounce timer itself.
func (s *Syncer) SyncNow(ctx context.Context) (*controlplane.ProjectConfigResponse, error) {
	snapshot, err := s.client.ProjectConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("projectconfig: fetch: %w", err)
	}
	if s.apply != nil {
		if err := s.apply(ctx, snapshot); err != nil {
			return snapshot, fmt.Errorf("projectconfig: apply: %w", err)
		}
	}
	return snapshot, nil
}
