package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestFromEnv_NilWhenDSNUnset(t *testing.T) {
	os.Unsetenv("SENTRY_DSN")
	if r := FromEnv("v1.0.0"); r != nil {
		t.Errorf("expected nil Reporter, got %+v", r)
	}
}

func TestReport_NilReceiverIsNoOp(t *testing.T) {
	var r *Reporter
	r.Report(context.Background(), errors.New("boom"), nil) // must not panic
}

func TestReport_PostsRedactedEnvelope(t *testing.T) {
	received := make(chan event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var ev event
		if err := json.NewDecoder(req.Body).Decode(&ev); err != nil {
			t.Errorf("decode body: %v", err)
		}
		received <- ev
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	os.Setenv("SENTRY_DSN", srv.URL)
	os.Setenv("SENTRY_ENVIRONMENT", "staging")
	defer os.Unsetenv("SENTRY_DSN")
	defer os.Unsetenv("SENTRY_ENVIRONMENT")

	r := FromEnv("v1.0.0")
	if r == nil {
		t.Fatal("expected non-nil Reporter")
	}

	r.Report(context.Background(), errors.New("token=supersecretvalue failed"), map[string]string{"cmd": "echo"})

	ev := <-received
	if ev.Environment != "staging" {
		t.Errorf("environment = %q", ev.Environment)
	}
	if strings.Contains(ev.Message, "supersecretvalue") {
		t.Errorf("message leaked secret: %q", ev.Message)
	}
}
