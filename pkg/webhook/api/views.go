package api

import (
	"time"

	"github.com/voicetyped/botkit/pkg/events"
	"github.com/voicetyped/botkit/pkg/webhook"
)

// EndpointView is an endpoint as the API shows it. Secrets never leave the
// process.
type EndpointView struct {
	ID           string             `json:"id"`
	URL          string             `json:"url"`
	EventTypes   []events.EventType `json:"event_types"`
	Signed       bool               `json:"signed"`
	CircuitState string             `json:"circuit_state"`
}

func endpointView(ep webhook.Endpoint, circuit string) EndpointView {
	types := ep.EventTypes
	if types == nil {
		types = []events.EventType{}
	}
	return EndpointView{
		ID:           ep.ID,
		URL:          ep.URL,
		EventTypes:   types,
		Signed:       ep.Secret != "",
		CircuitState: circuit,
	}
}

// DeadLetterView is a dead letter without its payload.
type DeadLetterView struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	LastError string    `json:"last_error"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

func deadLetterView(dl webhook.DeadLetter) DeadLetterView {
	return DeadLetterView{
		ID:        dl.ID,
		EventID:   dl.EventID,
		EventType: dl.EventType,
		LastError: dl.LastError,
		Attempts:  dl.Attempts,
		CreatedAt: dl.CreatedAt.UTC(),
	}
}

type errorBody struct {
	Error string `json:"error"`
}
