// Package reporter implements the optional error-reporting sink gated by
// SENTRY_DSN/SENTRY_ENVIRONMENT (spec.md §4.1, §6). No example repo in the
// retrieval pack imports a Sentry SDK or any other error-reporting client
// library to ground a richer implementation on, so this is a minimal
// envelope POST over net/http (see DESIGN.md).
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/mbc-net/ai-support-agent/common/environment"
	"github.com/mbc-net/ai-support-agent/common/redact"
)

const requestTimeout = 5 * time.Second

// Reporter posts captured errors to an external sink. A nil *Reporter is
// valid and Report is a no-op on it, so callers can construct one
// unconditionally and skip a nil-check at every call site.
type Reporter struct {
	dsn         string
	environment string
	release     string
	httpClient  *http.Client
}

// FromEnv builds a Reporter from SENTRY_DSN/SENTRY_ENVIRONMENT. It returns
// nil when SENTRY_DSN is unset, meaning error reporting is disabled.
func FromEnv(release string) *Reporter {
	dsn, ok := environment.String("SENTRY_DSN")
	if !ok || dsn == "" {
		return nil
	}
	return &Reporter{
		dsn:         dsn,
		environment: environment.StringOr("SENTRY_ENVIRONMENT", "production"),
		release:     release,
		httpClient:  &http.Client{Timeout: requestTimeout},
	}
}

// event is the envelope body posted to the configured DSN.
type event struct {
	Message     string            `json:"message"`
	Environment string            `json:"environment"`
	Release     string            `json:"release"`
	Platform    string            `json:"platform"`
	Timestamp   time.Time         `json:"timestamp"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Report sends err (and optional key/value context) to the configured sink.
// It never returns an error to the caller: a reporting failure must not
// affect the operation that triggered it, so failures are swallowed after
// being attempted once.
func (r *Reporter) Report(ctx context.Context, err error, extra map[string]string) {
	if r == nil || err == nil {
		return
	}

	safeExtra := make(map[string]string, len(extra))
	for k, v := range extra {
		safeExtra[k] = redact.Line(v)
	}

	ev := event{
		Message:     redact.Line(err.Error()),
		Environment: r.environment,
		Release:     r.release,
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
		Timestamp:   time.Now(),
		Extra:       safeExtra,
	}

	body, marshalErr := json.Marshal(ev)
	if marshalErr != nil {
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, reqErr := http.NewRequestWithContext(reqCtx, http.MethodPost, r.dsn, bytes.NewReader(body))
	if reqErr != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, doErr := r.httpClient.Do(req)
	if doErr != nil {
		return
	}
	resp.Body.Close()
}
