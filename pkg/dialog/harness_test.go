package dialog_test

import (
	"context"
	"testing"

	"github.com/voicetyped/botkit/pkg/activity"
	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/dialog"
	"github.com/voicetyped/botkit/pkg/state"
	"github.com/voicetyped/botkit/pkg/storage"
)

// harness runs turns of a single conversation through an adapter that
// persists the dialog stack in memory storage.
type harness struct {
	t       *testing.T
	store   *storage.MemoryStorage
	conv    *state.BotState
	set     *dialog.DialogSet
	adapter *bot.Adapter
	root    string

	last  dialog.DialogTurnResult
	depth int
}

func newHarness(t *testing.T, root string, opts ...dialog.SetOption) *harness {
	t.Helper()
	store := storage.NewMemoryStorage()
	conv := state.NewConversationState(store)
	return &harness{
		t:       t,
		store:   store,
		conv:    conv,
		set:     dialog.NewDialogSet(state.NewProperty[*dialog.DialogState](conv, "DialogState"), opts...),
		adapter: bot.NewAdapter(bot.WithTurnErrorHandler(nil)).Use(state.AutoSave(conv)),
		root:    root,
	}
}

func message(text string) activity.Activity {
	return activity.Activity{
		Type:         activity.TypeMessage,
		ChannelID:    "test",
		Conversation: activity.ConversationAccount{ID: "conv"},
		From:         activity.ChannelAccount{ID: "user"},
		Recipient:    activity.ChannelAccount{ID: "bot"},
		Text:         text,
	}
}

// handler continues the active dialog or begins the root dialog.
func (h *harness) handler() bot.Handler {
	return bot.HandlerFunc(func(ctx context.Context, tc *bot.TurnContext) error {
		dc, err := h.set.CreateContext(ctx, tc)
		if err != nil {
			return err
		}
		res, err := dc.ContinueDialog(ctx)
		if err != nil {
			return err
		}
		if res.Status == dialog.StatusEmpty && h.root != "" {
			if res, err = dc.BeginDialog(ctx, h.root, nil); err != nil {
				return err
			}
		}
		h.last = res
		h.depth = dc.State().Depth()
		return nil
	})
}

func (h *harness) turn(text string) ([]string, error) {
	out, err := h.adapter.ProcessActivity(h.t.Context(), message(text), h.handler())
	texts := make([]string, len(out))
	for i, a := range out {
		texts[i] = a.Text
	}
	return texts, err
}

func (h *harness) say(text string) []string {
	h.t.Helper()
	texts, err := h.turn(text)
	if err != nil {
		h.t.Fatalf("turn %q: %v", text, err)
	}
	return texts
}

func (h *harness) stored() storage.Item {
	h.t.Helper()
	key, err := h.conv.StorageKey(bot.NewTurnContext(message("")))
	if err != nil {
		h.t.Fatalf("StorageKey: %v", err)
	}
	items, err := h.store.Read(h.t.Context(), []string{key})
	if err != nil {
		h.t.Fatalf("Read: %v", err)
	}
	return items[key]
}

func expectReplies(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("replies = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reply %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// recorder logs every call it receives and always waits.
type recorder struct {
	dialog.Base
	log *[]string
}

func newRecorder(id string, log *[]string) *recorder {
	return &recorder{Base: dialog.NewBase(id), log: log}
}

func (r *recorder) BeginDialog(context.Context, *dialog.DialogContext, any) (dialog.DialogTurnResult, error) {
	*r.log = append(*r.log, "begin "+r.ID())
	return dialog.EndOfTurn, nil
}

func (r *recorder) ContinueDialog(context.Context, *dialog.DialogContext) (dialog.DialogTurnResult, error) {
	*r.log = append(*r.log, "continue "+r.ID())
	return dialog.EndOfTurn, nil
}

func (r *recorder) ResumeDialog(context.Context, *dialog.DialogContext, dialog.DialogReason, any) (dialog.DialogTurnResult, error) {
	*r.log = append(*r.log, "resume "+r.ID())
	return dialog.EndOfTurn, nil
}

func (r *recorder) EndDialog(_ context.Context, _ *bot.TurnContext, _ *dialog.DialogInstance, reason dialog.DialogReason) error {
	*r.log = append(*r.log, "end "+r.ID()+" "+reason.String())
	return nil
}
