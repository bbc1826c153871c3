package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of event flowing through the system.
type EventType string

const (
	ConversationStarted EventType = "conversation.started"
	DialogStarted       EventType = "dialog.started"
	DialogEnded         EventType = "dialog.ended"
	PromptRetry         EventType = "prompt.retry"
	TurnCompleted       EventType = "turn.completed"
	TurnFailed          EventType = "turn.failed"
	DialogsReloaded     EventType = "dialogs.reloaded"
	HookResult          EventType = "hook.result"
	HookError           EventType = "hook.error"
	WebhookTest         EventType = "webhook.test"
)

// Envelope wraps every bot event on the queue and on local feeds.
type Envelope struct {
	ID             string          `json:"id"`
	Type           EventType       `json:"type"`
	Source         string          `json:"source"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Data           json.RawMessage `json:"data"`
}

// ConversationStartedData is the payload for conversation.started events.
type ConversationStartedData struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
}

// DialogStartedData is the payload for dialog.started events.
type DialogStartedData struct {
	DialogID string `json:"dialog_id"`
	Depth    int    `json:"depth"`
}

// DialogEndedData is the payload for dialog.ended events.
type DialogEndedData struct {
	DialogID string `json:"dialog_id"`
	Reason   string `json:"reason"`
	Depth    int    `json:"depth"`
}

// PromptRetryData is the payload for prompt.retry events.
type PromptRetryData struct {
	DialogID string `json:"dialog_id"`
	Attempts int    `json:"attempts"`
	Input    string `json:"input"`
}

// TurnData is the payload for turn.completed and turn.failed events.
type TurnData struct {
	ChannelID  string `json:"channel_id"`
	ActivityID string `json:"activity_id"`
	Replies    int    `json:"replies"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// DialogsReloadedData is the payload for dialogs.reloaded events.
type DialogsReloadedData struct {
	Dialogs []string `json:"dialogs"`
	Error   string   `json:"error,omitempty"`
}

// HookResultData is the payload for hook.result events.
type HookResultData struct {
	HookURL    string         `json:"hook_url"`
	StatusCode int            `json:"status_code"`
	Response   map[string]any `json:"response,omitempty"`
}

// HookErrorData is the payload for hook.error events.
type HookErrorData struct {
	HookURL string `json:"hook_url"`
	Error   string `json:"error"`
}

// WebhookTestData is the payload for webhook.test events.
type WebhookTestData struct {
	Endpoint string `json:"endpoint"`
	Message  string `json:"message"`
}
