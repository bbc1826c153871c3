package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicetyped/botkit/pkg/events"
	"github.com/voicetyped/botkit/pkg/storage"
	"github.com/voicetyped/botkit/pkg/urlvalidation"
	"github.com/voicetyped/botkit/pkg/webhook"
)

func TestHandler(t *testing.T) {
	ctx := t.Context()

	var healthy atomic.Bool
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	st, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	repo := webhook.NewRepository(st.Provider())
	require.NoError(t, repo.Migrate(ctx))

	eps := webhook.ParseEndpoints([]string{target.URL}, "secret")
	deliverer := webhook.NewDeliverer(webhook.DelivererConfig{MaxRetries: 1}, repo, urlvalidation.AllowPrivateIPs())
	pub := events.NewLocalPublisher("test")

	mux := http.NewServeMux()
	NewHandler(eps, deliverer, repo, pub).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// A failed delivery lands in the dead letter table.
	require.Error(t, deliverer.Deliver(ctx, eps[0], events.Envelope{ID: "evt-1", Type: events.TurnFailed}))

	resp, err := http.Get(srv.URL + "/api/v1/webhooks")
	require.NoError(t, err)
	var list []EndpointView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Len(t, list, 1)
	assert.Equal(t, eps[0].ID, list[0].ID)
	assert.Equal(t, "closed", list[0].CircuitState)
	assert.True(t, list[0].Signed)

	resp, err = http.Get(srv.URL + "/api/v1/webhooks/" + eps[0].ID + "/dead-letters")
	require.NoError(t, err)
	var letters []DeadLetterView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&letters))
	resp.Body.Close()
	require.Len(t, letters, 1)
	assert.Equal(t, "evt-1", letters[0].EventID)

	healthy.Store(true)
	replay := srv.URL + "/api/v1/webhooks/" + eps[0].ID + "/dead-letters/" + letters[0].ID + "/replay"
	resp, err = http.Post(replay, "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// A replayed letter cannot be replayed twice.
	resp, err = http.Post(replay, "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	sub := pub.Subscribe("t", 1)
	defer pub.Unsubscribe("t")
	resp, err = http.Post(srv.URL+"/api/v1/webhooks/"+eps[0].ID+"/test", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	env := <-sub
	assert.Equal(t, events.WebhookTest, env.Type)

	resp, err = http.Get(srv.URL + "/api/v1/webhooks/unknown/dead-letters")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
