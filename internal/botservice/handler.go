// Package botservice serves a bot over Connect, REST and WebSocket. All
// transports funnel into the same adapter so turns of one conversation stay
// serialised whichever way they arrive.
package botservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"

	"github.com/voicetyped/botkit/pkg/activity"
	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/botapi"
	"github.com/voicetyped/botkit/pkg/dialog"
	"github.com/voicetyped/botkit/pkg/state"
	"github.com/voicetyped/botkit/pkg/storage"
)

// systemUserID is the sender of turns the service runs on its own behalf.
const systemUserID = "botkit"

// Ensure we implement the interface.
var _ botapi.BotServiceHandler = (*Handler)(nil)

// Config wires a bot into the service.
type Config struct {
	Adapter      *bot.Adapter
	Bot          bot.Handler
	Conversation *state.BotState
	DialogState  *state.Property[*dialog.DialogState]
	Dialogs      func() *dialog.DialogSet
}

// Handler implements botapi.BotServiceHandler and the HTTP transports.
type Handler struct {
	cfg Config
}

// NewHandler creates a bot service handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{cfg: cfg}
}

// RegisterRoutes mounts the Connect service, the REST messages endpoint and
// the WebSocket stream on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, opts ...connect.HandlerOption) {
	path, svc := botapi.NewBotServiceHandler(h, opts...)
	mux.Handle(path, svc)
	mux.HandleFunc("POST /api/v1/messages", h.PostMessage)
	mux.HandleFunc("GET /api/v1/stream", h.Stream)
}

// process runs one turn and reports the resulting stack status.
func (h *Handler) process(ctx context.Context, in activity.Activity) ([]activity.Activity, string, error) {
	var status string
	handler := bot.HandlerFunc(func(ctx context.Context, tc *bot.TurnContext) error {
		if err := h.cfg.Bot.OnTurn(ctx, tc); err != nil {
			return err
		}
		if res, ok := dialog.LastResult(tc); ok {
			status = res.Status.String()
		}
		return nil
	})
	out, err := h.cfg.Adapter.ProcessActivity(ctx, in, handler)
	if out == nil {
		out = []activity.Activity{}
	}
	return out, status, err
}

func (h *Handler) ProcessActivity(ctx context.Context, req *connect.Request[botapi.ProcessActivityRequest]) (*connect.Response[botapi.ProcessActivityResponse], error) {
	out, status, err := h.process(ctx, req.Msg.Activity)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&botapi.ProcessActivityResponse{Activities: out, Status: status}), nil
}

// refTurn builds a turn context addressing ref without running a turn.
func refTurn(ref botapi.ConversationRef) (*bot.TurnContext, error) {
	in := activity.Activity{
		Type:         activity.TypeEvent,
		ChannelID:    ref.ChannelID,
		Conversation: activity.ConversationAccount{ID: ref.ConversationID},
		From:         activity.ChannelAccount{ID: systemUserID},
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return bot.NewTurnContext(in), nil
}

func (h *Handler) GetConversation(ctx context.Context, req *connect.Request[botapi.GetConversationRequest]) (*connect.Response[botapi.GetConversationResponse], error) {
	ref := req.Msg.Conversation
	tc, err := refTurn(ref)
	if err != nil {
		return nil, toConnectError(err)
	}

	ds, ok, err := h.cfg.DialogState.Get(ctx, tc, nil)
	if err != nil {
		return nil, toConnectError(err)
	}
	if !ok || ds == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("conversation %s/%s has no dialog state", ref.ChannelID, ref.ConversationID))
	}
	snapshot, err := h.cfg.Conversation.Snapshot(ctx, tc)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&botapi.GetConversationResponse{
		Conversation: ref,
		Stack:        ds.DialogStack,
		State:        snapshot,
	}), nil
}

func (h *Handler) ListDialogs(_ context.Context, _ *connect.Request[botapi.ListDialogsRequest]) (*connect.Response[botapi.ListDialogsResponse], error) {
	return connect.NewResponse(&botapi.ListDialogsResponse{Dialogs: h.cfg.Dialogs().IDs()}), nil
}

// ResetConversation deletes the conversation's state inside a turn so it
// cannot race with a turn in flight.
func (h *Handler) ResetConversation(ctx context.Context, req *connect.Request[botapi.ResetConversationRequest]) (*connect.Response[botapi.ResetConversationResponse], error) {
	ref := req.Msg.Conversation
	in := activity.Activity{
		Type:         activity.TypeEndOfConversation,
		ChannelID:    ref.ChannelID,
		Conversation: activity.ConversationAccount{ID: ref.ConversationID},
		From:         activity.ChannelAccount{ID: systemUserID},
	}
	// The adapter's error handler turns failures into an apology, so the
	// delete error is kept here to fail the call.
	var deleteErr error
	reset := bot.HandlerFunc(func(ctx context.Context, tc *bot.TurnContext) error {
		deleteErr = h.cfg.Conversation.Delete(ctx, tc)
		return deleteErr
	})
	if _, err := h.cfg.Adapter.ProcessActivity(ctx, in, reset); err != nil {
		return nil, toConnectError(err)
	}
	if deleteErr != nil {
		return nil, toConnectError(deleteErr)
	}
	return connect.NewResponse(&botapi.ResetConversationResponse{}), nil
}

// toConnectError maps domain errors to Connect codes.
func toConnectError(err error) error {
	var ce *connect.Error
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, activity.ErrInvalidActivity),
		errors.Is(err, state.ErrMissingIdentity),
		errors.Is(err, storage.ErrInvalidKey):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, dialog.ErrDialogNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, storage.ErrPreconditionFailed),
		errors.Is(err, dialog.ErrStackOverflow):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// httpStatus maps a Connect code to the REST status code.
func httpStatus(code connect.Code) int {
	switch code {
	case connect.CodeInvalidArgument:
		return http.StatusBadRequest
	case connect.CodeNotFound:
		return http.StatusNotFound
	case connect.CodeFailedPrecondition:
		return http.StatusConflict
	case connect.CodeCanceled:
		return 499
	case connect.CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
