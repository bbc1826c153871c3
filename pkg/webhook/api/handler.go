// Package api exposes read and replay endpoints for event webhooks.
package api

import (
	"errors"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/voicetyped/botkit/pkg/events"
	"github.com/voicetyped/botkit/pkg/webhook"
)

// Handler provides REST endpoints for webhook inspection.
type Handler struct {
	endpoints map[string]webhook.Endpoint
	order     []string
	deliverer *webhook.Deliverer
	repo      *webhook.Repository
	publisher *events.Publisher
}

// NewHandler creates a new webhook API handler. repo may be nil when dead
// letters are not persisted.
func NewHandler(endpoints []webhook.Endpoint, deliverer *webhook.Deliverer, repo *webhook.Repository, publisher *events.Publisher) *Handler {
	h := &Handler{
		endpoints: make(map[string]webhook.Endpoint, len(endpoints)),
		deliverer: deliverer,
		repo:      repo,
		publisher: publisher,
	}
	for _, ep := range endpoints {
		h.endpoints[ep.ID] = ep
		h.order = append(h.order, ep.ID)
	}
	return h
}

// RegisterRoutes registers all webhook API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/webhooks", h.List)
	mux.HandleFunc("GET /api/v1/webhooks/{id}/dead-letters", h.ListDeadLetters)
	mux.HandleFunc("POST /api/v1/webhooks/{id}/dead-letters/{dlid}/replay", h.ReplayDeadLetter)
	mux.HandleFunc("POST /api/v1/webhooks/{id}/test", h.Test)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigStd.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func (h *Handler) endpoint(w http.ResponseWriter, r *http.Request) (webhook.Endpoint, bool) {
	ep, ok := h.endpoints[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "webhook not found")
	}
	return ep, ok
}

// List handles GET /api/v1/webhooks
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	resp := make([]EndpointView, 0, len(h.order))
	for _, id := range h.order {
		ep := h.endpoints[id]
		resp = append(resp, endpointView(ep, h.deliverer.CircuitState(ep.ID)))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListDeadLetters handles GET /api/v1/webhooks/{id}/dead-letters
func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	ep, ok := h.endpoint(w, r)
	if !ok {
		return
	}
	if h.repo == nil {
		writeError(w, http.StatusNotImplemented, "dead letters are not persisted")
		return
	}
	letters, err := h.repo.ListDeadLetters(r.Context(), ep.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}

	resp := make([]DeadLetterView, 0, len(letters))
	for _, dl := range letters {
		resp = append(resp, deadLetterView(dl))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReplayDeadLetter handles POST /api/v1/webhooks/{id}/dead-letters/{dlid}/replay
func (h *Handler) ReplayDeadLetter(w http.ResponseWriter, r *http.Request) {
	ep, ok := h.endpoint(w, r)
	if !ok {
		return
	}
	if h.repo == nil {
		writeError(w, http.StatusNotImplemented, "dead letters are not persisted")
		return
	}

	dl, err := h.repo.GetDeadLetter(r.Context(), r.PathValue("dlid"))
	if errors.Is(err, webhook.ErrDeadLetterNotFound) || (err == nil && (dl.EndpointID != ep.ID || !dl.Replayable)) {
		writeError(w, http.StatusNotFound, "dead letter not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load dead letter")
		return
	}

	var env events.Envelope
	if err := sonic.ConfigStd.UnmarshalFromString(dl.Payload, &env); err != nil {
		writeError(w, http.StatusInternalServerError, "corrupt dead letter payload")
		return
	}
	if err := h.deliverer.Deliver(r.Context(), ep, env); err != nil {
		writeError(w, http.StatusBadGateway, "replay failed: "+err.Error())
		return
	}
	if err := h.repo.MarkDeadLetterReplayed(r.Context(), dl.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark dead letter replayed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Test handles POST /api/v1/webhooks/{id}/test
func (h *Handler) Test(w http.ResponseWriter, r *http.Request) {
	ep, ok := h.endpoint(w, r)
	if !ok {
		return
	}

	if err := h.publisher.Emit(r.Context(), events.WebhookTest, "", events.WebhookTestData{
		Endpoint: ep.ID,
		Message:  "This is a test webhook delivery from botkit",
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to publish test event")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "test event published"})
}
