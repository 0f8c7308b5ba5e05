package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mbc-net/ai-support-agent/internal/cache"
	"github.com/mbc-net/ai-support-agent/internal/chatpipeline"
	"github.com/mbc-net/ai-support-agent/internal/command"
	"github.com/mbc-net/ai-support-agent/internal/controlplane"
	"github.com/mbc-net/ai-support-agent/internal/executor"
	"github.com/mbc-net/ai-support-agent/internal/projectconfig"
	"github.com/mbc-net/ai-support-agent/internal/realtime"
	"github.com/mbc-net/ai-support-agent/internal/sysinfo"
)

// Runtime owns one project's end-to-end lifecycle (spec.md §4.6).
type Runtime struct {
	cfg    Config
	client *controlplane.Client
	router *executor.Router
	cache  *cache.Store

	mu             sync.Mutex
	tenantCode     string
	subscriber     *realtime.Subscriber
	pollTimer      *time.Timer
	heartbeatTimer *time.Timer
	syncer         *projectconfig.Syncer
	chatState      *chatConfigState
	stopped        bool

	pollInFlight atomic.Bool
	caps         capabilities
}

// New constructs a Runtime for one project. The cache database is opened
// eagerly; callers should call Stop to release it even if Start is never
// called.
func New(cfg Config, router *executor.Router) (*Runtime, error) {
	store, err := cache.Open(cfg.CacheDBPath)
	if err != nil {
		return nil, fmt.Errorf("runtime: open cache: %w", err)
	}
	return &Runtime{
		cfg:    cfg,
		client: controlplane.New(cfg.APIURL, cfg.Token),
		router: router,
		cache:  store,
	}, nil
}

// Start runs the §4.6 startup sequence. It returns once the runtime has
// reached steady state (timers armed or realtime subscribed); it does not
// block for the runtime's lifetime.
func (r *Runtime) Start(ctx context.Context) error {
	r.caps = probeCapabilities(r.cfg.ClaudeExecutable, r.cfg.RemoteAPIKey, r.cfg.ChatModeOverride, "")
	r.chatState = newChatConfigState(chatpipeline.Config{
		AgentID:          r.cfg.AgentID,
		ActiveMode:       r.caps.active,
		Locale:           r.cfg.Locale,
		ClaudeExecutable: r.cfg.ClaudeExecutable,
		RemoteAPIKey:     r.cfg.RemoteAPIKey,
		RemoteModel:      r.cfg.RemoteModel,
		RemoteBaseURL:    r.cfg.RemoteBaseURL,
		MCPConfigPath:    r.cfg.LocalMCPConfigPath,
	})

	info := sysinfo.Probe()
	regResp, err := r.client.Register(ctx, controlplane.RegisterRequest{
		ProjectCode: r.cfg.ProjectCode,
		Hostname:    info.Hostname,
		OS:          info.OS,
		Arch:        info.Arch,
	})
	if err != nil {
		slog.Error("runtime: register failed, stopping", "project", r.cfg.ProjectCode, "err", err)
		return fmt.Errorf("runtime: register: %w", err)
	}

	r.mu.Lock()
	r.tenantCode = regResp.TenantCode
	r.mu.Unlock()

	r.syncer = projectconfig.New(r.client, r.applySnapshot)

	if regResp.TransportMode == "realtime" && regResp.RealtimeEndpoint != "" && regResp.RealtimeAPIKey != "" {
		sub := realtime.New(regResp.RealtimeEndpoint, regResp.RealtimeAPIKey)
		sub.OnReconnect(func() { r.checkPending(context.Background()) })
		sub.OnFatalDisconnect(func() { r.fallBackToPolling() })

		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		connErr := sub.Connect(connectCtx)
		cancel()
		if connErr == nil {
			if subErr := sub.Subscribe(ctx, regResp.TenantCode, r.onNotification); subErr == nil {
				r.mu.Lock()
				r.subscriber = sub
				r.mu.Unlock()
			} else {
				slog.Warn("runtime: realtime subscribe failed, falling back to polling", "err", subErr)
				r.armPolling()
			}
		} else {
			slog.Warn("runtime: realtime connect failed, falling back to polling", "err", connErr)
			r.armPolling()
		}
	} else {
		r.armPolling()
	}

	r.armHeartbeat()

	if _, err := r.syncer.SyncNow(ctx); err != nil {
		slog.Warn("runtime: initial project config sync failed", "project", r.cfg.ProjectCode, "err", err)
	}

	return nil
}

// Stop clears both timers, disconnects the subscriber, clears the debounce
// timer, and releases the cache handle.
func (r *Runtime) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	if r.pollTimer != nil {
		r.pollTimer.Stop()
	}
	if r.heartbeatTimer != nil {
		r.heartbeatTimer.Stop()
	}
	sub := r.subscriber
	syncer := r.syncer
	r.mu.Unlock()

	if sub != nil {
		sub.Disconnect()
	}
	if syncer != nil {
		syncer.Stop()
	}
	if r.cache != nil {
		if err := r.cache.Close(); err != nil {
			slog.Warn("runtime: close cache", "err", err)
		}
	}
}

func (r *Runtime) fallBackToPolling() {
	r.mu.Lock()
	r.subscriber = nil
	r.mu.Unlock()
	r.armPolling()
}

// armPolling schedules the single-flight polling loop.
func (r *Runtime) armPolling() {
	interval := clampInterval(r.cfg.PollInterval, defaultPollInterval)
	r.mu.Lock()
	if r.pollTimer != nil {
		r.pollTimer.Stop()
	}
	r.pollTimer = time.AfterFunc(interval, r.pollTick)
	r.mu.Unlock()
}

func (r *Runtime) pollTick() {
	if !r.pollInFlight.CompareAndSwap(false, true) {
		r.rearmPolling()
		return
	}
	defer r.pollInFlight.Store(false)
	defer r.rearmPolling()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pending, err := r.client.PendingCommands(ctx)
	if err != nil {
		slog.Warn("runtime: poll pending commands failed", "project", r.cfg.ProjectCode, "err", err)
		return
	}
	for _, p := range pending {
		r.processCommand(ctx, p.CommandID)
	}
}

func (r *Runtime) rearmPolling() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	interval := clampInterval(r.cfg.PollInterval, defaultPollInterval)
	r.pollTimer = time.AfterFunc(interval, r.pollTick)
}

// armHeartbeat schedules the recurring heartbeat timer.
func (r *Runtime) armHeartbeat() {
	interval := clampInterval(r.cfg.HeartbeatInterval, defaultHeartbeatInterval)
	r.mu.Lock()
	if r.heartbeatTimer != nil {
		r.heartbeatTimer.Stop()
	}
	r.heartbeatTimer = time.AfterFunc(interval, r.heartbeatTick)
	r.mu.Unlock()
}

func (r *Runtime) heartbeatTick() {
	defer r.armHeartbeat()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	info := sysinfo.Probe()
	resp, err := r.client.Heartbeat(ctx, controlplane.HeartbeatRequest{
		AgentID:            r.cfg.AgentID,
		SystemInfo:         info,
		AvailableChatModes: availableModeStrings(r.caps.available),
		ActiveChatMode:     string(r.caps.active),
	})
	if err != nil {
		slog.Warn("runtime: heartbeat failed", "project", r.cfg.ProjectCode, "err", err)
		return
	}
	if resp.ConfigHash == "" {
		return
	}

	cachedHash, err := r.cache.LastHash(ctx, r.cfg.ProjectCode)
	if err != nil {
		slog.Warn("runtime: read cached config hash failed", "err", err)
		return
	}
	if resp.ConfigHash != cachedHash {
		r.mu.Lock()
		syncer := r.syncer
		r.mu.Unlock()
		if syncer != nil {
			syncer.ScheduleResync()
		}
	}
}

// applySnapshot is the projectconfig.ApplyFunc bound to this runtime: it
// updates the in-memory chat config and persists the snapshot to cache.
func (r *Runtime) applySnapshot(ctx context.Context, snapshot *controlplane.ProjectConfigResponse) error {
	if err := applyProjectConfig(ctx, r.client, r.cfg.ProjectDir, r.chatState, snapshot); err != nil {
		slog.Warn("runtime: apply project config failed", "project", r.cfg.ProjectCode, "err", err)
	}
	if snapshot != nil {
		if err := r.cache.Put(ctx, r.cfg.ProjectCode, *snapshot); err != nil {
			return fmt.Errorf("runtime: cache snapshot: %w", err)
		}
	}
	return nil
}

// onNotification handles one realtime notification (spec.md §4.6,
// "Notification handling").
func (r *Runtime) onNotification(n command.Notification) {
	switch n.Action {
	case command.ActionAgentCommand:
		var content command.AgentCommandContent
		if err := json.Unmarshal(n.Content, &content); err != nil || content.CommandID == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		r.processCommand(ctx, content.CommandID)
	case command.ActionConfigUpdate:
		r.mu.Lock()
		syncer := r.syncer
		r.mu.Unlock()
		if syncer != nil {
			syncer.ScheduleResync()
		}
	}
}

// checkPending is invoked after a successful realtime reconnect to recover
// any commands that were issued while disconnected.
func (r *Runtime) checkPending(ctx context.Context) {
	pending, err := r.client.PendingCommands(ctx)
	if err != nil {
		slog.Warn("runtime: checkPending failed", "project", r.cfg.ProjectCode, "err", err)
		return
	}
	for _, p := range pending {
		r.processCommand(ctx, p.CommandID)
	}
}

// processCommand fetches one command's detail, dispatches it through the
// executor, and submits the result (spec.md §4.6, "On each command").
func (r *Runtime) processCommand(ctx context.Context, commandID string) {
	cmd, err := r.client.CommandDetail(ctx, commandID)
	if err != nil {
		slog.Warn("runtime: fetch command detail failed", "commandId", commandID, "err", err)
		result := command.Failure(commandID, command.StatusError, err.Error(), nil, nil, 0, time.Now())
		if subErr := r.client.SubmitResult(ctx, commandID, result); subErr != nil {
			slog.Warn("runtime: submit failure result failed", "commandId", commandID, "err", subErr)
		}
		return
	}

	result := r.router.Dispatch(ctx, *cmd, r.buildExecutorContext(commandID))
	if err := r.client.SubmitResult(ctx, commandID, result); err != nil {
		slog.Warn("runtime: submit result failed", "commandId", commandID, "err", err)
	}
}

func (r *Runtime) buildExecutorContext(commandID string) *executor.Context {
	return &executor.Context{
		CommandID:   commandID,
		AgentID:     r.cfg.AgentID,
		ProjectCode: r.cfg.ProjectCode,
		ProjectDir:  r.cfg.ProjectDir,
		OnSetup:     r.onSetup,
		OnConfigSync: func(ctx context.Context) (json.RawMessage, error) {
			snapshot, err := r.syncer.SyncNow(ctx)
			if err != nil {
				return nil, err
			}
			return json.Marshal(snapshot)
		},
		ChatHandler: r.handleChat,
	}
}

func (r *Runtime) onSetup(ctx context.Context) (json.RawMessage, error) {
	snapshot, err := r.syncer.SyncNow(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snapshot)
}

// handleChat adapts executor.Context.ChatHandler to chatpipeline.Run,
// streaming chunks through a per-command chunkSender.
func (r *Runtime) handleChat(ctx context.Context, ectx *executor.Context, payload json.RawMessage) (json.RawMessage, error) {
	cfg := r.chatState.snapshot()
	sender := chatpipeline.NewChunkSender(r.client, ectx.CommandID)
	if err := chatpipeline.Run(ctx, cfg, payload, sender); err != nil {
		return nil, err
	}
	return nil, nil
}
