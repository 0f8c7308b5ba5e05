package projectconfig

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mbc-net/ai-support-agent/internal/controlplane"
)

type countingFetcher struct {
	calls atomic.Int32
}

func (f *countingFetcher) ProjectConfig(ctx context.Context) (*controlplane.ProjectConfigResponse, error) {
	f.calls.Add(1)
	return &controlplane.ProjectConfigResponse{ConfigHash: "h1"}, nil
}

func TestSyncer_DebouncesBurstIntoSingleFetch(t *testing.T) {
	fetcher := &countingFetcher{}
	syncer := New(fetcher, nil)

	syncer.ScheduleResync()
	time.Sleep(100 * time.Millisecond)
	syncer.ScheduleResync()
	time.Sleep(100 * time.Millisecond)
	syncer.ScheduleResync()

	time.Sleep(DebounceWindow + 500*time.Millisecond)

	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("fetch count = %d, want 1", got)
	}
}

func TestSyncer_StopCancelsPendingFetch(t *testing.T) {
	fetcher := &countingFetcher{}
	syncer := New(fetcher, nil)

	syncer.ScheduleResync()
	syncer.Stop()

	time.Sleep(DebounceWindow + 200*time.Millisecond)

	if got := fetcher.calls.Load(); got != 0 {
		t.Fatalf("fetch count = %d, want 0", got)
	}
}

func TestSyncer_SyncNowAppliesSnapshot(t *testing.T) {
	fetcher := &countingFetcher{}
	var applied *controlplane.ProjectConfigResponse
	syncer := New(fetcher, func(ctx context.Context, snapshot *controlplane.ProjectConfigResponse) error {
		applied = snapshot
		return nil
	})

	snapshot, err := syncer.SyncNow(context.Background())
	if err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	if applied != snapshot {
		t.Errorf("apply did not receive the fetched snapshot")
	}
	if snapshot.ConfigHash != "h1" {
		t.Errorf("ConfigHash = %q", snapshot.ConfigHash)
	}
}
