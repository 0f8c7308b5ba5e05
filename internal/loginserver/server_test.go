package loginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func postCallback(t *testing.T, addr string, body map[string]string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post("http://"+addr+"/callback", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestServer_AcceptsFirstCallbackWithCorrectNonce(t *testing.T) {
	srv, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(srv.Nonce()) != 64 {
		t.Fatalf("nonce length = %d, want 64", len(srv.Nonce()))
	}
	addr, err := srv.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Close()

	resp := postCallback(t, addr, map[string]string{"nonce": srv.Nonce(), "token": "tok-123"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := srv.WaitForCallback(ctx)
	if err != nil {
		t.Fatalf("WaitForCallback: %v", err)
	}
	if result.Token != "tok-123" {
		t.Errorf("token = %q", result.Token)
	}
}

func TestServer_RejectsSecondCallbackWithSameNonce(t *testing.T) {
	srv, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addr, err := srv.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Close()

	first := postCallback(t, addr, map[string]string{"nonce": srv.Nonce(), "token": "tok-123"})
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first status = %d, want 200", first.StatusCode)
	}

	second := postCallback(t, addr, map[string]string{"nonce": srv.Nonce(), "token": "tok-456"})
	if second.StatusCode != http.StatusBadRequest {
		t.Fatalf("second status = %d, want 400", second.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(second.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Nonce already used" {
		t.Errorf("error = %q, want %q", body["error"], "Nonce already used")
	}
}

func TestServer_RejectsWrongNonce(t *testing.T) {
	srv, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addr, err := srv.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Close()

	resp := postCallback(t, addr, map[string]string{"nonce": "0000", "token": "tok-123"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
