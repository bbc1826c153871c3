package dialog

import (
	"context"
	"fmt"

	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/events"
)

// DialogContext drives the dialog stack of one conversation for one turn.
// It only mutates the in-memory DialogState; persisting it is left to the
// caller once the turn succeeded.
type DialogContext struct {
	dialogs *DialogSet
	tc      *bot.TurnContext
	state   *DialogState
	parent  *DialogContext
}

// NewDialogContext binds a stack to a turn. CreateContext is the usual way
// to obtain one.
func NewDialogContext(dialogs *DialogSet, tc *bot.TurnContext, ds *DialogState) *DialogContext {
	if ds == nil {
		ds = NewDialogState()
	}
	return &DialogContext{dialogs: dialogs, tc: tc, state: ds}
}

// TurnContext returns the turn the context is bound to.
func (dc *DialogContext) TurnContext() *bot.TurnContext { return dc.tc }

// Dialogs returns the set ids are resolved against.
func (dc *DialogContext) Dialogs() *DialogSet { return dc.dialogs }

// State returns the stack.
func (dc *DialogContext) State() *DialogState { return dc.state }

// Parent returns the enclosing context of a component dialog, if any.
func (dc *DialogContext) Parent() *DialogContext { return dc.parent }

// Stack returns a copy of the stack, bottom first.
func (dc *DialogContext) Stack() []DialogInstance {
	return append([]DialogInstance(nil), dc.state.DialogStack...)
}

// ActiveDialog returns the top instance or nil. The pointer is only valid
// until the stack changes.
func (dc *DialogContext) ActiveDialog() *DialogInstance {
	n := len(dc.state.DialogStack)
	if n == 0 {
		return nil
	}
	return &dc.state.DialogStack[n-1]
}

// FindDialog resolves id in this context's set, then in enclosing contexts.
func (dc *DialogContext) FindDialog(id string) (Dialog, bool) {
	for c := dc; c != nil; c = c.parent {
		if d, ok := c.dialogs.Find(id); ok {
			return d, true
		}
	}
	return nil, false
}

// Child creates a context over a separate stack whose dialogs come from set.
// Component dialogs use it to run their inner stack.
func (dc *DialogContext) Child(set *DialogSet, ds *DialogState) *DialogContext {
	child := NewDialogContext(set, dc.tc, ds)
	child.parent = dc
	return child
}

func (dc *DialogContext) root() *DialogContext {
	c := dc
	for c.parent != nil {
		c = c.parent
	}
	return c
}

// Publisher returns the event publisher of the root dialog set, if any.
func (dc *DialogContext) Publisher() *events.Publisher {
	if set := dc.root().dialogs; set != nil {
		return set.publisher
	}
	return nil
}

func (dc *DialogContext) maxDepth() int {
	if set := dc.root().dialogs; set != nil {
		return set.maxDepth
	}
	return DefaultMaxDepth
}

// depth counts instances on this and all enclosing stacks.
func (dc *DialogContext) depth() int {
	n := 0
	for c := dc; c != nil; c = c.parent {
		n += len(c.state.DialogStack)
	}
	return n
}

// BeginDialog pushes a new instance of id and starts it. The started dialog
// may begin, prompt or end further dialogs within the same call.
func (dc *DialogContext) BeginDialog(ctx context.Context, id string, options any) (DialogTurnResult, error) {
	d, ok := dc.FindDialog(id)
	if !ok {
		return DialogTurnResult{}, &DialogNotFoundError{ID: id}
	}
	if limit := dc.maxDepth(); limit > 0 && dc.depth() >= limit {
		return DialogTurnResult{}, fmt.Errorf("%w: beginning %q at depth %d", ErrStackOverflow, id, dc.depth())
	}

	dc.state.DialogStack = append(dc.state.DialogStack, DialogInstance{ID: id})
	dc.Publisher().EmitAsync(ctx, events.DialogStarted, dc.tc.ConversationID(), &events.DialogStartedData{
		DialogID: id,
		Depth:    dc.depth(),
	})

	return d.BeginDialog(ctx, dc, options)
}

// Prompt begins a prompt dialog. It is BeginDialog with prompt options.
func (dc *DialogContext) Prompt(ctx context.Context, id string, options PromptOptions) (DialogTurnResult, error) {
	return dc.BeginDialog(ctx, id, options)
}

// ContinueDialog routes the turn's input to the top instance. An empty stack
// reports StatusEmpty and does nothing.
func (dc *DialogContext) ContinueDialog(ctx context.Context) (DialogTurnResult, error) {
	inst := dc.ActiveDialog()
	if inst == nil {
		return DialogTurnResult{Status: StatusEmpty}, nil
	}
	d, ok := dc.FindDialog(inst.ID)
	if !ok {
		return DialogTurnResult{}, &DialogNotFoundError{ID: inst.ID}
	}
	return d.ContinueDialog(ctx, dc)
}

// EndDialog pops the top instance and resumes its parent with result. When
// the stack becomes empty the result is returned with StatusComplete.
func (dc *DialogContext) EndDialog(ctx context.Context, result any) (DialogTurnResult, error) {
	if err := dc.endActiveDialog(ctx, ReasonEndCalled); err != nil {
		return DialogTurnResult{}, err
	}

	inst := dc.ActiveDialog()
	if inst == nil {
		return DialogTurnResult{Status: StatusComplete, Result: result}, nil
	}
	d, ok := dc.FindDialog(inst.ID)
	if !ok {
		return DialogTurnResult{}, &DialogNotFoundError{ID: inst.ID}
	}
	return d.ResumeDialog(ctx, dc, ReasonEndCalled, result)
}

// ReplaceDialog ends the top instance without resuming its parent and
// begins id in its place, so the stack does not grow.
func (dc *DialogContext) ReplaceDialog(ctx context.Context, id string, options any) (DialogTurnResult, error) {
	if _, ok := dc.FindDialog(id); !ok {
		return DialogTurnResult{}, &DialogNotFoundError{ID: id}
	}
	if err := dc.endActiveDialog(ctx, ReasonReplaceCalled); err != nil {
		return DialogTurnResult{}, err
	}
	return dc.BeginDialog(ctx, id, options)
}

// CancelAllDialogs pops every instance.
func (dc *DialogContext) CancelAllDialogs(ctx context.Context) (DialogTurnResult, error) {
	if len(dc.state.DialogStack) == 0 {
		return DialogTurnResult{Status: StatusEmpty}, nil
	}
	for len(dc.state.DialogStack) > 0 {
		if err := dc.endActiveDialog(ctx, ReasonCancelCalled); err != nil {
			return DialogTurnResult{}, err
		}
	}
	return DialogTurnResult{Status: StatusCancelled}, nil
}

// RepromptDialog asks the top instance to repeat its pending question.
func (dc *DialogContext) RepromptDialog(ctx context.Context) error {
	inst := dc.ActiveDialog()
	if inst == nil {
		return nil
	}
	d, ok := dc.FindDialog(inst.ID)
	if !ok {
		return &DialogNotFoundError{ID: inst.ID}
	}
	return d.RepromptDialog(ctx, dc.tc, inst)
}

func (dc *DialogContext) endActiveDialog(ctx context.Context, reason DialogReason) error {
	inst := dc.ActiveDialog()
	if inst == nil {
		return nil
	}
	depth := dc.depth()
	if d, ok := dc.FindDialog(inst.ID); ok {
		if err := d.EndDialog(ctx, dc.tc, inst, reason); err != nil {
			return fmt.Errorf("end dialog %q: %w", inst.ID, err)
		}
	}
	id := inst.ID
	dc.state.DialogStack = dc.state.DialogStack[:len(dc.state.DialogStack)-1]

	dc.Publisher().EmitAsync(ctx, events.DialogEnded, dc.tc.ConversationID(), &events.DialogEndedData{
		DialogID: id,
		Reason:   reason.String(),
		Depth:    depth,
	})
	return nil
}
