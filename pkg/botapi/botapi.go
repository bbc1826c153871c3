// Package botapi defines the botkit.v1.BotService wire types together with
// Connect handler and client constructors. Messages are plain Go structs and
// travel as JSON.
package botapi

import (
	"context"
	"encoding/json"
	"net/http"

	"connectrpc.com/connect"

	"github.com/voicetyped/botkit/pkg/activity"
	"github.com/voicetyped/botkit/pkg/dialog"
)

// ServiceName is the fully-qualified name of the bot service.
const ServiceName = "botkit.v1.BotService"

// Procedure paths of the bot service.
const (
	ProcessActivityProcedure   = "/" + ServiceName + "/ProcessActivity"
	GetConversationProcedure   = "/" + ServiceName + "/GetConversation"
	ListDialogsProcedure       = "/" + ServiceName + "/ListDialogs"
	ResetConversationProcedure = "/" + ServiceName + "/ResetConversation"
)

type ProcessActivityRequest struct {
	Activity activity.Activity `json:"activity"`
}

type ProcessActivityResponse struct {
	Activities []activity.Activity `json:"activities"`
	// Status is the dialog stack status after the turn, when a dialog ran.
	Status string `json:"status,omitempty"`
}

// ConversationRef addresses one conversation on a channel.
type ConversationRef struct {
	ChannelID      string `json:"channel_id"`
	ConversationID string `json:"conversation_id"`
}

type GetConversationRequest struct {
	Conversation ConversationRef `json:"conversation"`
}

type GetConversationResponse struct {
	Conversation ConversationRef         `json:"conversation"`
	Stack        []dialog.DialogInstance `json:"stack"`
	State        json.RawMessage         `json:"state,omitempty"`
}

type ListDialogsRequest struct{}

type ListDialogsResponse struct {
	Dialogs []string `json:"dialogs"`
}

type ResetConversationRequest struct {
	Conversation ConversationRef `json:"conversation"`
}

type ResetConversationResponse struct{}

// BotServiceHandler is implemented by the server side of the bot service.
type BotServiceHandler interface {
	ProcessActivity(context.Context, *connect.Request[ProcessActivityRequest]) (*connect.Response[ProcessActivityResponse], error)
	GetConversation(context.Context, *connect.Request[GetConversationRequest]) (*connect.Response[GetConversationResponse], error)
	ListDialogs(context.Context, *connect.Request[ListDialogsRequest]) (*connect.Response[ListDialogsResponse], error)
	ResetConversation(context.Context, *connect.Request[ResetConversationRequest]) (*connect.Response[ResetConversationResponse], error)
}

// NewBotServiceHandler builds an HTTP handler serving every procedure of svc.
// It returns the path prefix to mount the handler on. opts must carry a codec
// able to encode plain structs.
func NewBotServiceHandler(svc BotServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(ProcessActivityProcedure, connect.NewUnaryHandler(ProcessActivityProcedure, svc.ProcessActivity, opts...))
	mux.Handle(GetConversationProcedure, connect.NewUnaryHandler(GetConversationProcedure, svc.GetConversation, opts...))
	mux.Handle(ListDialogsProcedure, connect.NewUnaryHandler(ListDialogsProcedure, svc.ListDialogs, opts...))
	mux.Handle(ResetConversationProcedure, connect.NewUnaryHandler(ResetConversationProcedure, svc.ResetConversation, opts...))
	return "/" + ServiceName + "/", mux
}

// BotServiceClient is a client for the bot service.
type BotServiceClient interface {
	ProcessActivity(context.Context, *connect.Request[ProcessActivityRequest]) (*connect.Response[ProcessActivityResponse], error)
	GetConversation(context.Context, *connect.Request[GetConversationRequest]) (*connect.Response[GetConversationResponse], error)
	ListDialogs(context.Context, *connect.Request[ListDialogsRequest]) (*connect.Response[ListDialogsResponse], error)
	ResetConversation(context.Context, *connect.Request[ResetConversationRequest]) (*connect.Response[ResetConversationResponse], error)
}

type botServiceClient struct {
	processActivity   *connect.Client[ProcessActivityRequest, ProcessActivityResponse]
	getConversation   *connect.Client[GetConversationRequest, GetConversationResponse]
	listDialogs       *connect.Client[ListDialogsRequest, ListDialogsResponse]
	resetConversation *connect.Client[ResetConversationRequest, ResetConversationResponse]
}

// NewBotServiceClient creates a client for the service at baseURL.
func NewBotServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) BotServiceClient {
	return &botServiceClient{
		processActivity:   connect.NewClient[ProcessActivityRequest, ProcessActivityResponse](httpClient, baseURL+ProcessActivityProcedure, opts...),
		getConversation:   connect.NewClient[GetConversationRequest, GetConversationResponse](httpClient, baseURL+GetConversationProcedure, opts...),
		listDialogs:       connect.NewClient[ListDialogsRequest, ListDialogsResponse](httpClient, baseURL+ListDialogsProcedure, opts...),
		resetConversation: connect.NewClient[ResetConversationRequest, ResetConversationResponse](httpClient, baseURL+ResetConversationProcedure, opts...),
	}
}

func (c *botServiceClient) ProcessActivity(ctx context.Context, req *connect.Request[ProcessActivityRequest]) (*connect.Response[ProcessActivityResponse], error) {
	return c.processActivity.CallUnary(ctx, req)
}

func (c *botServiceClient) GetConversation(ctx context.Context, req *connect.Request[GetConversationRequest]) (*connect.Response[GetConversationResponse], error) {
	return c.getConversation.CallUnary(ctx, req)
}

func (c *botServiceClient) ListDialogs(ctx context.Context, req *connect.Request[ListDialogsRequest]) (*connect.Response[ListDialogsResponse], error) {
	return c.listDialogs.CallUnary(ctx, req)
}

func (c *botServiceClient) ResetConversation(ctx context.Context, req *connect.Request[ResetConversationRequest]) (*connect.Response[ResetConversationResponse], error) {
	return c.resetConversation.CallUnary(ctx, req)
}
