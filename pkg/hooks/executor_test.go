package hooks

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/voicetyped/botkit/pkg/events"
	"github.com/voicetyped/botkit/pkg/urlvalidation"
)

func TestExecutorSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Error("expected application/json content type")
		}

		var req HookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		if req.ConversationID != "conv-1" || req.DialogID != "reserveTable" {
			t.Errorf("request = %+v", req)
		}
		if req.Values["size"] != float64(12) {
			t.Errorf("values = %v, want size 12", req.Values)
		}

		_ = json.NewEncoder(w).Encode(HookResponse{
			Values: map[string]any{"table": "T4"},
			Reply:  "Table T4 is yours.",
			Data:   map[string]any{"confidence": 0.95},
		})
	}))
	defer ts.Close()

	pub := events.NewLocalPublisher("test")
	results := pub.Subscribe("t", 4)

	exec := NewExecutor(pub, urlvalidation.AllowPrivateIPs())
	req := HookRequest{
		ConversationID: "conv-1",
		DialogID:       "reserveTable",
		Step:           2,
		Values:         map[string]any{"size": 12},
	}

	resp, err := exec.Execute(t.Context(), HookConfig{URL: ts.URL, TimeoutSec: 5}, req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Values["table"] != "T4" || resp.Reply != "Table T4 is yours." {
		t.Errorf("response = %+v", resp)
	}

	select {
	case env := <-results:
		if env.Type != events.HookResult || env.ConversationID != "conv-1" {
			t.Errorf("event = %+v, want hook.result for conv-1", env)
		}
	case <-time.After(time.Second):
		t.Fatal("no hook.result event")
	}
}

func TestExecutorBearerAuth(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(HookResponse{})
	}))
	defer ts.Close()

	exec := NewExecutor(nil, urlvalidation.AllowPrivateIPs())
	cfg := HookConfig{
		URL:        ts.URL,
		AuthType:   "bearer",
		AuthSecret: "my-token",
		TimeoutSec: 5,
	}

	if _, err := exec.Execute(t.Context(), cfg, HookRequest{ConversationID: "c1"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if gotAuth != "Bearer my-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer my-token")
	}
}

func TestExecutorHMACAuth(t *testing.T) {
	var gotSig string
	var gotBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	exec := NewExecutor(nil, urlvalidation.AllowPrivateIPs())
	cfg := HookConfig{URL: ts.URL, AuthType: "hmac", AuthSecret: "s3cret"}

	resp, err := exec.Execute(t.Context(), cfg, HookRequest{ConversationID: "c1"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp == nil {
		t.Fatal("nil response for empty body")
	}
	if want := Sign("s3cret", gotBody); gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}
}

func TestExecutorHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer ts.Close()

	pub := events.NewLocalPublisher("test")
	ch := pub.Subscribe("t", 1)
	defer pub.Unsubscribe("t")

	exec := NewExecutor(pub, urlvalidation.AllowPrivateIPs())
	_, err := exec.Execute(t.Context(), HookConfig{URL: ts.URL, TimeoutSec: 5}, HookRequest{ConversationID: "c1"})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusInternalServerError || se.Body != "internal error" {
		t.Fatalf("Execute error = %v, want HTTP 500 status error", err)
	}

	select {
	case env := <-ch:
		if env.Type != events.HookError || env.ConversationID != "c1" {
			t.Errorf("event = %+v, want hook.error for c1", env)
		}
	case <-time.After(time.Second):
		t.Fatal("no hook.error event")
	}
}

func TestExecutorRejectsPrivateURL(t *testing.T) {
	exec := NewExecutor(nil)
	if _, err := exec.Execute(t.Context(), HookConfig{URL: "http://127.0.0.1/hook"}, HookRequest{}); err == nil {
		t.Error("expected loopback URL to be rejected")
	}
}
