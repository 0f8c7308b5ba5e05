package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// buildDialURL derives the wss:// subscription URL from an http(s) realtime
// endpoint advertised by the register response, appending /realtime and the
// two base64-encoded query parameters the protocol requires (spec.md §4.5,
// §6).
func buildDialURL(endpoint, apiKey string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("realtime: parse endpoint: %w", err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "wss", "ws":
		// already a websocket scheme
	default:
		return "", fmt.Errorf("realtime: unsupported endpoint scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime"

	header := map[string]string{
		"host":         u.Host,
		"x-api-key":    apiKey,
		"content-type": "application/json",
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("realtime: marshal header: %w", err)
	}
	payloadJSON := []byte("{}")

	q := u.Query()
	q.Set("header", base64.StdEncoding.EncodeToString(headerJSON))
	q.Set("payload", base64.StdEncoding.EncodeToString(payloadJSON))
	u.RawQuery = q.Encode()

	return u.String(), nil
}
