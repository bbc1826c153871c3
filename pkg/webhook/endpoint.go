// Package webhook delivers bot events to external HTTP endpoints with
// signing, retries and per-endpoint circuit breaking.
package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"

	"github.com/voicetyped/botkit/pkg/events"
)

// Endpoint is a delivery target. An endpoint without event types receives
// every event.
type Endpoint struct {
	ID         string             `json:"id"`
	URL        string             `json:"url"`
	Secret     string             `json:"-"`
	EventTypes []events.EventType `json:"event_types,omitempty"`
}

// Matches reports whether the endpoint subscribes to et.
func (e Endpoint) Matches(et events.EventType) bool {
	return len(e.EventTypes) == 0 || slices.Contains(e.EventTypes, et)
}

// ParseEndpoints builds endpoints from configured URLs sharing one secret.
// A URL may carry a filter after a '|' separator, e.g.
// "https://crm.example.com/hook|turn.failed;dialog.ended".
func ParseEndpoints(urls []string, secret string) []Endpoint {
	var out []Endpoint
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		target, filter, _ := strings.Cut(raw, "|")
		ep := Endpoint{ID: endpointID(target), URL: target, Secret: secret}
		for _, et := range strings.Split(filter, ";") {
			if et = strings.TrimSpace(et); et != "" {
				ep.EventTypes = append(ep.EventTypes, events.EventType(et))
			}
		}
		out = append(out, ep)
	}
	return out
}

// endpointID is stable across restarts so dead letters stay attributable.
func endpointID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:6])
}
