package hooks

// HookConfig describes how to call an external hook endpoint.
type HookConfig struct {
	URL        string            `yaml:"url"         json:"url"`
	AuthType   string            `yaml:"auth_type"   json:"auth_type"`   // "bearer", "hmac", "none"
	AuthSecret string            `yaml:"auth_secret" json:"auth_secret"` // token or HMAC key
	TimeoutSec int               `yaml:"timeout_sec" json:"timeout_sec"`
	Headers    map[string]string `yaml:"headers"     json:"headers,omitempty"`
}

// HookRequest is the payload sent to a hook endpoint from a dialog step.
type HookRequest struct {
	ConversationID string         `json:"conversation_id"`
	ChannelID      string         `json:"channel_id"`
	UserID         string         `json:"user_id,omitempty"`
	DialogID       string         `json:"dialog_id"`
	Step           int            `json:"step"`
	Text           string         `json:"text,omitempty"`
	Values         map[string]any `json:"values"`
}

// HookResponse is the expected response from a hook endpoint. Values are
// merged into the dialog's values and Reply, when set, is sent to the user.
type HookResponse struct {
	Values map[string]any `json:"values,omitempty"`
	Reply  string         `json:"reply,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}
