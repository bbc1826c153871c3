package activity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
)

// Type discriminates inbound and outbound activities.
type Type string

const (
	TypeMessage            Type = "message"
	TypeConversationUpdate Type = "conversationUpdate"
	TypeEvent              Type = "event"
	TypeTyping             Type = "typing"
	TypeEndOfConversation  Type = "endOfConversation"
)

// Input hints tell the channel whether the bot expects a reply.
const (
	InputHintAccepting = "acceptingInput"
	InputHintExpecting = "expectingInput"
	InputHintIgnoring  = "ignoringInput"
)

// ErrInvalidActivity is returned when an activity lacks its routing fields.
var ErrInvalidActivity = errors.New("invalid activity")

// ChannelAccount identifies a user or bot on a channel.
type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// ConversationAccount identifies a conversation on a channel.
type ConversationAccount struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	IsGroup bool   `json:"is_group,omitempty"`
}

// CardAction is a button a channel may render next to a message.
type CardAction struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// SuggestedActions are quick replies offered to the user.
type SuggestedActions struct {
	Actions []CardAction `json:"actions"`
}

// Attachment carries structured content such as cards.
type Attachment struct {
	ContentType string          `json:"content_type"`
	Name        string          `json:"name,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
}

// Activity is one unit of communication between a channel and the bot.
type Activity struct {
	ID               string              `json:"id,omitempty"`
	Type             Type                `json:"type"`
	Timestamp        time.Time           `json:"timestamp"`
	ChannelID        string              `json:"channel_id"`
	Conversation     ConversationAccount `json:"conversation"`
	From             ChannelAccount      `json:"from"`
	Recipient        ChannelAccount      `json:"recipient"`
	ReplyToID        string              `json:"reply_to_id,omitempty"`
	Text             string              `json:"text,omitempty"`
	Speak            string              `json:"speak,omitempty"`
	InputHint        string              `json:"input_hint,omitempty"`
	Name             string              `json:"name,omitempty"`
	Value            json.RawMessage     `json:"value,omitempty"`
	Attachments      []Attachment        `json:"attachments,omitempty"`
	SuggestedActions *SuggestedActions   `json:"suggested_actions,omitempty"`
	MembersAdded     []ChannelAccount    `json:"members_added,omitempty"`
}

// NewMessage builds an outbound message activity with the given text.
func NewMessage(text string) Activity {
	return Activity{Type: TypeMessage, Text: text}
}

// IsMessage reports whether the activity carries user text.
func (a Activity) IsMessage() bool {
	return a.Type == TypeMessage
}

// TrimmedText returns the message text without surrounding whitespace.
func (a Activity) TrimmedText() string {
	return strings.TrimSpace(a.Text)
}

// Validate checks the fields every inbound activity must carry.
func (a Activity) Validate() error {
	switch {
	case a.Type == "":
		return fmt.Errorf("%w: type is required", ErrInvalidActivity)
	case a.ChannelID == "":
		return fmt.Errorf("%w: channel_id is required", ErrInvalidActivity)
	case a.Conversation.ID == "":
		return fmt.Errorf("%w: conversation.id is required", ErrInvalidActivity)
	case a.From.ID == "":
		return fmt.Errorf("%w: from.id is required", ErrInvalidActivity)
	}
	return nil
}

// ApplyReply addresses an outbound activity as a reply to in.
// Fields already set on out are kept.
func (a Activity) ApplyReply(in Activity) Activity {
	if a.ID == "" {
		a.ID = xid.New().String()
	}
	if a.Type == "" {
		a.Type = TypeMessage
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	if a.ChannelID == "" {
		a.ChannelID = in.ChannelID
	}
	if a.Conversation.ID == "" {
		a.Conversation = in.Conversation
	}
	if a.From.ID == "" {
		a.From = in.Recipient
	}
	if a.Recipient.ID == "" {
		a.Recipient = in.From
	}
	if a.ReplyToID == "" {
		a.ReplyToID = in.ID
	}
	return a
}

// ConversationReference is enough information to address a conversation
// outside of a turn.
type ConversationReference struct {
	ChannelID    string              `json:"channel_id"`
	Conversation ConversationAccount `json:"conversation"`
	User         ChannelAccount      `json:"user"`
	Bot          ChannelAccount      `json:"bot"`
	ActivityID   string              `json:"activity_id,omitempty"`
}

// Reference returns the conversation reference of an inbound activity.
func (a Activity) Reference() ConversationReference {
	return ConversationReference{
		ChannelID:    a.ChannelID,
		Conversation: a.Conversation,
		User:         a.From,
		Bot:          a.Recipient,
		ActivityID:   a.ID,
	}
}
