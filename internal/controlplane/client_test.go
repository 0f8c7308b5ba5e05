package controlplane_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mbc-net/ai-support-agent/internal/command"
	"github.com/mbc-net/ai-support-agent/internal/controlplane"
)

func TestClient_SendsBearerToken(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(controlplane.RegisterResponse{AgentID: "a1", TransportMode: "polling"})
	}))
	defer ts.Close()

	client := controlplane.New(ts.URL, "tok-abc")
	_, err := client.Register(context.Background(), controlplane.RegisterRequest{ProjectCode: "p1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if gotAuth != "Bearer tok-abc" {
		t.Errorf("Authorization header = %q, want %q", gotAuth, "Bearer tok-abc")
	}
}

func TestClient_RegisterAndPendingAndDetail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/agent/register", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(controlplane.RegisterResponse{AgentID: "a", TransportMode: "polling"})
	})
	mux.HandleFunc("/api/agent/commands/pending", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]controlplane.PendingCommand{{CommandID: "c1", Type: command.TypeExecuteCommand}})
	})
	mux.HandleFunc("/api/agent/commands/c1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(command.Command{ID: "c1", Type: command.TypeExecuteCommand, Payload: json.RawMessage(`{"command":"echo hi"}`)})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := controlplane.New(ts.URL, "t")
	reg, err := client.Register(context.Background(), controlplane.RegisterRequest{ProjectCode: "p1"})
	if err != nil || reg.AgentID != "a" {
		t.Fatalf("Register: resp=%+v err=%v", reg, err)
	}

	pending, err := client.PendingCommands(context.Background())
	if err != nil || len(pending) != 1 || pending[0].CommandID != "c1" {
		t.Fatalf("PendingCommands: %+v, err=%v", pending, err)
	}

	detail, err := client.CommandDetail(context.Background(), "c1")
	if err != nil || detail.ID != "c1" {
		t.Fatalf("CommandDetail: %+v, err=%v", detail, err)
	}
}

func TestClient_SubmitResult_IsIdempotentFromCallerPerspective(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer ts.Close()

	client := controlplane.New(ts.URL, "t")
	result := command.Success("c1", json.RawMessage(`{"ok":true}`), nil, 0, time.Now().UTC())

	if err := client.SubmitResult(context.Background(), "c1", result); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := client.SubmitResult(context.Background(), "c1", result); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls reaching the server, got %d", calls)
	}
}

func TestClient_RetriesOn503ThenSucceeds(t *testing.T) {
	var attempts int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(controlplane.RegisterResponse{AgentID: "a", TransportMode: "polling"})
	}))
	defer ts.Close()

	client := controlplane.New(ts.URL, "t")
	resp, err := client.Register(context.Background(), controlplane.RegisterRequest{ProjectCode: "p1"})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if resp.AgentID != "a" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestClient_DoesNotRetryOn400(t *testing.T) {
	var attempts int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	client := controlplane.New(ts.URL, "t")
	_, err := client.Register(context.Background(), controlplane.RegisterRequest{ProjectCode: "p1"})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-retryable status, got %d", attempts)
	}
}

