// Package client talks to a running bot service over Connect.
package client

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/xid"

	"github.com/voicetyped/botkit/internal/connectutil"
	"github.com/voicetyped/botkit/pkg/activity"
	"github.com/voicetyped/botkit/pkg/botapi"
)

// Client wraps the bot service client with conversation helpers.
type Client struct {
	svc botapi.BotServiceClient
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...connect.ClientOption) *Client {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			MaxConnsPerHost:     50,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
	return NewFromHTTPClient(httpClient, baseURL, opts...)
}

// NewFromHTTPClient creates a client using httpClient.
func NewFromHTTPClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	opts = append(connectutil.DefaultClientOptions(), opts...)
	return &Client{svc: botapi.NewBotServiceClient(httpClient, baseURL, opts...)}
}

// NewFromService wraps an existing service client.
func NewFromService(svc botapi.BotServiceClient) *Client {
	return &Client{svc: svc}
}

// Send delivers one activity and returns the bot's replies.
func (c *Client) Send(ctx context.Context, in activity.Activity) ([]activity.Activity, error) {
	resp, err := c.svc.ProcessActivity(ctx, connect.NewRequest(&botapi.ProcessActivityRequest{Activity: in}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.Activities, nil
}

// Stack returns the dialog stack of a conversation.
func (c *Client) Stack(ctx context.Context, ref botapi.ConversationRef) (*botapi.GetConversationResponse, error) {
	resp, err := c.svc.GetConversation(ctx, connect.NewRequest(&botapi.GetConversationRequest{Conversation: ref}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Dialogs lists the dialog ids the service knows.
func (c *Client) Dialogs(ctx context.Context) ([]string, error) {
	resp, err := c.svc.ListDialogs(ctx, connect.NewRequest(&botapi.ListDialogsRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.Dialogs, nil
}

// Reset drops the state of a conversation.
func (c *Client) Reset(ctx context.Context, ref botapi.ConversationRef) error {
	_, err := c.svc.ResetConversation(ctx, connect.NewRequest(&botapi.ResetConversationRequest{Conversation: ref}))
	return err
}

// Conversation sends messages as one user in one conversation.
type Conversation struct {
	client *Client
	ref    botapi.ConversationRef
	userID string
}

// Conversation starts a conversation on channelID. An empty conversationID
// is replaced by a fresh id.
func (c *Client) Conversation(channelID, conversationID, userID string) *Conversation {
	if conversationID == "" {
		conversationID = xid.New().String()
	}
	return &Conversation{
		client: c,
		ref:    botapi.ConversationRef{ChannelID: channelID, ConversationID: conversationID},
		userID: userID,
	}
}

// Ref returns the conversation address.
func (cv *Conversation) Ref() botapi.ConversationRef { return cv.ref }

// Activity builds an inbound activity of type t addressed to the conversation.
func (cv *Conversation) Activity(t activity.Type, text string) activity.Activity {
	return activity.Activity{
		ID:           xid.New().String(),
		Type:         t,
		Timestamp:    time.Now().UTC(),
		ChannelID:    cv.ref.ChannelID,
		Conversation: activity.ConversationAccount{ID: cv.ref.ConversationID},
		From:         activity.ChannelAccount{ID: cv.userID, Role: "user"},
		Recipient:    activity.ChannelAccount{ID: "bot", Role: "bot"},
		Text:         text,
	}
}

// Join announces the user, which makes the bot send its welcome.
func (cv *Conversation) Join(ctx context.Context) ([]activity.Activity, error) {
	in := cv.Activity(activity.TypeConversationUpdate, "")
	in.MembersAdded = []activity.ChannelAccount{in.From}
	return cv.client.Send(ctx, in)
}

// Say sends a message and returns the replies.
func (cv *Conversation) Say(ctx context.Context, text string) ([]activity.Activity, error) {
	return cv.client.Send(ctx, cv.Activity(activity.TypeMessage, text))
}

// Reset drops the conversation's state.
func (cv *Conversation) Reset(ctx context.Context) error {
	return cv.client.Reset(ctx, cv.ref)
}
