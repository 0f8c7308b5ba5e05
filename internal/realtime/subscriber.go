package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/mbc-net/ai-support-agent/internal/command"
)

// Subscriber is a single graphql-ws connection bound to one project's
// realtime endpoint. It is not safe for concurrent Connect/Subscribe calls
// but the read loop and WriteMessage path are internally serialised.
type Subscriber struct {
	endpoint string
	apiKey   string

	mu             sync.Mutex
	conn           *websocket.Conn
	state          State
	tenantCode     string
	subID          string
	onNotification func(command.Notification)
	onReconnect    func()
	onFatal        func()
	userClosed     bool
	kaTimeoutMS    int
	kaTimer        *time.Timer
}

// New creates a Subscriber for the given realtime endpoint (as advertised
// by the register response) and API key.
func New(endpoint, apiKey string) *Subscriber {
	return &Subscriber{
		endpoint:    endpoint,
		apiKey:      apiKey,
		state:       StateIdle,
		kaTimeoutMS: defaultKeepAliveTimeout,
	}
}

// OnFatalDisconnect registers a callback invoked once reconnect attempts
// are exhausted; the project runtime uses this to fall back to polling.
func (s *Subscriber) OnFatalDisconnect(fn func()) {
	s.mu.Lock()
	s.onFatal = fn
	s.mu.Unlock()
}

// Connect dials the endpoint, performs the connection_init/connection_ack
// handshake, and starts the background read loop. It blocks until the
// handshake completes or ctx is done.
func (s *Subscriber) Connect(ctx context.Context) error {
	dialURL, err := buildDialURL(s.endpoint, s.apiKey)
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, dialURL, &websocket.DialOptions{
		Subprotocols: []string{"graphql-ws"},
	})
	if err != nil {
		return fmt.Errorf("realtime: dial: %w", err)
	}
	conn.SetReadLimit(4 << 20)

	s.mu.Lock()
	s.conn = conn
	s.state = StateConnecting
	s.mu.Unlock()

	acked := make(chan error, 1)
	go s.readLoop(acked)

	if err := s.send(ctx, envelope{Type: msgConnectionInit}); err != nil {
		conn.Close(websocket.StatusInternalError, "init failed")
		return fmt.Errorf("realtime: send connection_init: %w", err)
	}
	s.setState(StateInitialised)

	select {
	case err := <-acked:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	tenant := s.tenantCode
	s.mu.Unlock()
	if tenant != "" {
		return s.startSubscription(ctx, tenant)
	}
	return nil
}

// Subscribe binds a tenant and notification callback, sending the `start`
// message. If Connect has not yet reached Acked, the binding is recorded
// and the start is issued once connection_ack arrives.
func (s *Subscriber) Subscribe(ctx context.Context, tenantCode string, onNotification func(command.Notification)) error {
	s.mu.Lock()
	s.tenantCode = tenantCode
	s.onNotification = onNotification
	acked := s.state == StateAcked
	s.mu.Unlock()

	if acked {
		return s.startSubscription(ctx, tenantCode)
	}
	return nil
}

func (s *Subscriber) startSubscription(ctx context.Context, tenantCode string) error {
	subID := fmt.Sprintf("sub-%d", subscriptionTimestamp())
	s.mu.Lock()
	s.subID = subID
	s.mu.Unlock()

	payload := map[string]any{
		"query": "subscription OnMessage($tenantCode: String!) { onMessage(tenantCode: $tenantCode) { id table pk sk tenantCode action content } }",
		"variables": map[string]string{
			"tenantCode": tenantCode,
		},
	}
	return s.send(ctx, envelope{Type: msgStart, ID: subID, Payload: payload})
}

// subscriptionTimestamp is overridable in tests; production code must not
// call time.Now() directly per workflow constraints on the caller side, but
// this package is allowed to since it runs outside the orchestration script.
var subscriptionTimestamp = func() int64 { return time.Now().UnixNano() / int64(time.Millisecond) }

// Disconnect terminates the subscription: it sends `stop` if subscribed,
// then closes the socket. Reconnect logic is suppressed afterward.
func (s *Subscriber) Disconnect() {
	s.mu.Lock()
	s.userClosed = true
	conn := s.conn
	subID := s.subID
	state := s.state
	s.stopKeepAlive()
	s.state = StateTerminal
	s.mu.Unlock()

	if conn == nil {
		return
	}
	if state == StateAcked && subID != "" {
		_ = s.send(context.Background(), envelope{Type: msgStop, ID: subID})
	}
	conn.Close(websocket.StatusNormalClosure, "disconnect")
}

func (s *Subscriber) send(ctx context.Context, env envelope) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("realtime: not connected")
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func (s *Subscriber) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// readLoop consumes messages until the connection closes, dispatching by
// message type. ackedCh receives exactly one value: nil once connection_ack
// is seen, or the terminal read error if the socket closes first.
func (s *Subscriber) readLoop(ackedCh chan<- error) {
	ctx := context.Background()
	ackSent := false
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if !ackSent {
				ackedCh <- err
			}
			s.handleClose(err)
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("realtime: malformed message", "err", err)
			continue
		}

		switch env.Type {
		case msgConnectionAck:
			var ack connectionAckPayload
			if b, merr := json.Marshal(env.Payload); merr == nil {
				_ = json.Unmarshal(b, &ack)
			}
			s.mu.Lock()
			if ack.ConnectionTimeoutMS > 0 {
				s.kaTimeoutMS = ack.ConnectionTimeoutMS
			}
			s.state = StateAcked
			s.resetKeepAliveLocked()
			s.mu.Unlock()
			if !ackSent {
				ackSent = true
				ackedCh <- nil
			}

		case msgData:
			s.mu.Lock()
			s.resetKeepAliveLocked()
			cb := s.onNotification
			s.mu.Unlock()
			if cb == nil {
				continue
			}
			var dp dataPayload
			if b, merr := json.Marshal(env.Payload); merr == nil {
				if uerr := json.Unmarshal(b, &dp); uerr == nil {
					cb(dp.Data.OnMessage)
				}
			}

		case msgKeepAlive:
			s.mu.Lock()
			s.resetKeepAliveLocked()
			s.mu.Unlock()

		case msgStartAck:
			slog.Debug("realtime: subscription acknowledged", "id", env.ID)

		case msgComplete:
			slog.Debug("realtime: subscription complete", "id", env.ID)
			s.mu.Lock()
			s.subID = ""
			s.mu.Unlock()

		case msgError:
			slog.Warn("realtime: protocol error message", "id", env.ID)

		default:
			slog.Debug("realtime: unhandled message type", "type", env.Type)
		}
	}
}

// resetKeepAliveLocked must be called with s.mu held. It arms a timer that
// force-closes the socket if no ka/data message arrives within the server's
// advertised timeout.
func (s *Subscriber) resetKeepAliveLocked() {
	s.stopKeepAlive()
	timeout := time.Duration(s.kaTimeoutMS) * time.Millisecond
	conn := s.conn
	s.kaTimer = time.AfterFunc(timeout, func() {
		if conn != nil {
			conn.Close(websocket.StatusPolicyViolation, "keep-alive timeout")
		}
	})
}

func (s *Subscriber) stopKeepAlive() {
	if s.kaTimer != nil {
		s.kaTimer.Stop()
		s.kaTimer = nil
	}
}

// handleClose reacts to a socket close that was not requested via
// Disconnect: it attempts bounded reconnects with exponential back-off and
// no jitter, invoking onReconnect on success or onFatal once attempts are
// exhausted.
func (s *Subscriber) handleClose(closeErr error) {
	s.mu.Lock()
	userClosed := s.userClosed
	s.stopKeepAlive()
	if !userClosed {
		s.state = StateReconnecting
	}
	onFatal := s.onFatal
	s.mu.Unlock()

	if userClosed {
		return
	}
	slog.Warn("realtime: connection closed, reconnecting", "err", closeErr)

	for attempt := 0; attempt < maxReconnectAttempts; attempt++ {
		delay := time.Duration(reconnectBaseDelayMS*(1<<uint(attempt))) * time.Millisecond
		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.Connect(ctx)
		cancel()
		if err == nil {
			s.mu.Lock()
			cb := s.onReconnect
			s.mu.Unlock()
			if cb != nil {
				cb()
			}
			return
		}
		slog.Warn("realtime: reconnect attempt failed", "attempt", attempt, "err", err)
	}

	s.mu.Lock()
	s.state = StateTerminal
	s.mu.Unlock()
	if onFatal != nil {
		onFatal()
	}
}

// OnReconnect registers a callback invoked after a successful reconnect;
// the project runtime uses this to reconcile any commands queued while
// disconnected.
func (s *Subscriber) OnReconnect(fn func()) {
	s.mu.Lock()
	s.onReconnect = fn
	s.mu.Unlock()
}

// State returns the subscriber's current state.
func (s *Subscriber) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
