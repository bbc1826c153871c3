package dialog

import (
	"context"

	"github.com/voicetyped/botkit/pkg/activity"
	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/events"
)

// StartFunc starts a conversation on an empty stack.
type StartFunc func(ctx context.Context, dc *DialogContext) (DialogTurnResult, error)

// BeginOnEmpty returns a StartFunc that begins the dialog id.
func BeginOnEmpty(id string) StartFunc {
	return func(ctx context.Context, dc *DialogContext) (DialogTurnResult, error) {
		return dc.BeginDialog(ctx, id, nil)
	}
}

// Runner is a bot.Handler that drives a dialog set. Message turns continue
// the active dialog, or call Start when the stack is empty. Members joining
// the conversation are greeted with Welcome.
type Runner struct {
	// Dialogs returns the set used for the turn. It is called once per turn
	// so reloadable sets take effect on the next turn.
	Dialogs func() *DialogSet
	Start   StartFunc
	Welcome string
}

// NewRunner creates a runner over a fixed dialog set.
func NewRunner(set *DialogSet, start StartFunc) *Runner {
	return &Runner{Dialogs: func() *DialogSet { return set }, Start: start}
}

func (r *Runner) OnTurn(ctx context.Context, tc *bot.TurnContext) error {
	in := tc.Activity()
	set := r.Dialogs()

	switch in.Type {
	case activity.TypeConversationUpdate:
		return r.greet(ctx, tc, set)
	case activity.TypeMessage:
	default:
		return nil
	}

	dc, err := set.CreateContext(ctx, tc)
	if err != nil {
		return err
	}
	res, err := dc.ContinueDialog(ctx)
	if err != nil {
		return err
	}
	if res.Status == StatusEmpty && r.Start != nil {
		res, err = r.Start(ctx, dc)
		if err != nil {
			return err
		}
	}
	tc.Set(lastResultKey, res)
	return nil
}

func (r *Runner) greet(ctx context.Context, tc *bot.TurnContext, set *DialogSet) error {
	in := tc.Activity()
	for _, m := range in.MembersAdded {
		if m.ID == in.Recipient.ID {
			continue
		}
		set.publisher.EmitAsync(ctx, events.ConversationStarted, in.Conversation.ID, &events.ConversationStartedData{
			ChannelID: in.ChannelID,
			UserID:    m.ID,
		})
		if r.Welcome != "" {
			if err := tc.SendText(ctx, r.Welcome); err != nil {
				return err
			}
		}
	}
	return nil
}

const lastResultKey = "dialog.result"

// LastResult returns the stack result a Runner produced for the turn.
func LastResult(tc *bot.TurnContext) (DialogTurnResult, bool) {
	v, ok := tc.Get(lastResultKey)
	if !ok {
		return DialogTurnResult{}, false
	}
	res, ok := v.(DialogTurnResult)
	return res, ok
}
