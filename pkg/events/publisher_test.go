package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestLocalPublisherFanOut(t *testing.T) {
	pub := NewLocalPublisher("bot")
	ch := pub.Subscribe("test", 4)
	defer pub.Unsubscribe("test")

	err := pub.Emit(t.Context(), DialogStarted, "conv-1", &DialogStartedData{
		DialogID: "reserveTable",
		Depth:    1,
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	select {
	case env := <-ch:
		if env.Type != DialogStarted {
			t.Errorf("type = %q, want %q", env.Type, DialogStarted)
		}
		if env.Source != "bot" {
			t.Errorf("source = %q, want %q", env.Source, "bot")
		}
		if env.ConversationID != "conv-1" {
			t.Errorf("conversation_id = %q, want %q", env.ConversationID, "conv-1")
		}
		if env.ID == "" {
			t.Error("expected event id")
		}
		var payload DialogStartedData
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if payload.DialogID != "reserveTable" {
			t.Errorf("dialog_id = %q, want %q", payload.DialogID, "reserveTable")
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	pub := NewLocalPublisher("bot")
	ch := pub.Subscribe("x", 1)
	pub.Unsubscribe("x")

	if _, ok := <-ch; ok {
		t.Error("expected closed channel")
	}
}

func TestFullSubscriberDoesNotBlock(t *testing.T) {
	pub := NewLocalPublisher("bot")
	_ = pub.Subscribe("slow", 1)
	defer pub.Unsubscribe("slow")

	for i := 0; i < 3; i++ {
		if err := pub.Emit(t.Context(), TurnCompleted, "c", &TurnData{}); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
}

func TestNilPublisherEmitAsync(t *testing.T) {
	var pub *Publisher
	pub.EmitAsync(t.Context(), TurnFailed, "c", &TurnData{Error: "boom"})
}

func TestEventTypeConstants(t *testing.T) {
	types := []EventType{
		ConversationStarted, DialogStarted, DialogEnded,
		PromptRetry, TurnCompleted, TurnFailed, DialogsReloaded,
		HookResult, HookError, WebhookTest,
	}

	seen := make(map[EventType]bool)
	for _, et := range types {
		if et == "" {
			t.Error("empty event type constant")
		}
		if seen[et] {
			t.Errorf("duplicate event type: %q", et)
		}
		seen[et] = true
	}
}
