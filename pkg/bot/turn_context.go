package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/voicetyped/botkit/pkg/activity"
)

// SendHook observes every outbound activity before it is buffered. A hook
// error aborts the send.
type SendHook func(ctx context.Context, tc *TurnContext, out activity.Activity) error

// TurnContext carries one inbound activity and collects the replies produced
// while it is processed. It is not shared across turns.
type TurnContext struct {
	activity activity.Activity

	mu        sync.Mutex
	responses []activity.Activity
	responded bool
	values    map[string]any
	hooks     []SendHook
}

// NewTurnContext creates a turn context for an inbound activity.
func NewTurnContext(in activity.Activity) *TurnContext {
	return &TurnContext{
		activity: in,
		values:   make(map[string]any),
	}
}

// Activity returns the inbound activity.
func (tc *TurnContext) Activity() activity.Activity {
	return tc.activity
}

// ConversationID returns the id of the conversation this turn belongs to.
func (tc *TurnContext) ConversationID() string {
	return tc.activity.Conversation.ID
}

// OnSend registers a hook run for each outbound activity.
func (tc *TurnContext) OnSend(h SendHook) {
	tc.mu.Lock()
	tc.hooks = append(tc.hooks, h)
	tc.mu.Unlock()
}

// SendActivity addresses out as a reply to the inbound activity and queues it.
func (tc *TurnContext) SendActivity(ctx context.Context, out activity.Activity) error {
	out = out.ApplyReply(tc.activity)

	tc.mu.Lock()
	hooks := append([]SendHook(nil), tc.hooks...)
	tc.mu.Unlock()

	for _, h := range hooks {
		if err := h(ctx, tc, out); err != nil {
			return fmt.Errorf("send activity: %w", err)
		}
	}

	tc.mu.Lock()
	tc.responses = append(tc.responses, out)
	tc.responded = true
	tc.mu.Unlock()
	return nil
}

// SendText sends a plain message.
func (tc *TurnContext) SendText(ctx context.Context, text string) error {
	return tc.SendActivity(ctx, activity.NewMessage(text))
}

// Sendf sends a formatted message.
func (tc *TurnContext) Sendf(ctx context.Context, format string, args ...any) error {
	return tc.SendText(ctx, fmt.Sprintf(format, args...))
}

// Responded reports whether anything was sent during this turn.
func (tc *TurnContext) Responded() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.responded
}

// Responses returns a copy of the activities sent so far.
func (tc *TurnContext) Responses() []activity.Activity {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]activity.Activity(nil), tc.responses...)
}

// Set stores a turn-scoped value.
func (tc *TurnContext) Set(key string, v any) {
	tc.mu.Lock()
	tc.values[key] = v
	tc.mu.Unlock()
}

// Get returns a turn-scoped value.
func (tc *TurnContext) Get(key string) (any, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	v, ok := tc.values[key]
	return v, ok
}

// Delete removes a turn-scoped value.
func (tc *TurnContext) Delete(key string) {
	tc.mu.Lock()
	delete(tc.values, key)
	tc.mu.Unlock()
}
