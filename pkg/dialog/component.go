package dialog

import (
	"context"

	"github.com/voicetyped/botkit/pkg/bot"
)

// ComponentDialog groups dialogs behind one id. It runs its own inner stack,
// stored inside its instance state, and ends with the inner result once
// that stack completes.
type ComponentDialog struct {
	Base
	initial string
	dialogs *DialogSet
}

// NewComponentDialog creates a component that starts initialDialogID.
func NewComponentDialog(id, initialDialogID string) *ComponentDialog {
	return &ComponentDialog{
		Base:    NewBase(id),
		initial: initialDialogID,
		dialogs: NewDialogSet(nil),
	}
}

// AddDialog registers an inner dialog.
func (c *ComponentDialog) AddDialog(d Dialog) *ComponentDialog {
	c.dialogs.Add(d)
	if c.initial == "" {
		c.initial = d.ID()
	}
	return c
}

// Dialogs returns the inner set.
func (c *ComponentDialog) Dialogs() *DialogSet { return c.dialogs }

func (c *ComponentDialog) BeginDialog(ctx context.Context, dc *DialogContext, options any) (DialogTurnResult, error) {
	inner := NewDialogState()
	child := dc.Child(c.dialogs, inner)
	res, err := child.BeginDialog(ctx, c.initial, options)
	if err != nil {
		return DialogTurnResult{}, err
	}
	return c.settle(ctx, dc, inner, res)
}

func (c *ComponentDialog) ContinueDialog(ctx context.Context, dc *DialogContext) (DialogTurnResult, error) {
	inner, err := c.inner(dc.ActiveDialog())
	if err != nil {
		return DialogTurnResult{}, err
	}
	res, err := dc.Child(c.dialogs, inner).ContinueDialog(ctx)
	if err != nil {
		return DialogTurnResult{}, err
	}
	return c.settle(ctx, dc, inner, res)
}

// ResumeDialog only happens if an inner dialog began something on the outer
// stack; the component re-asks its pending question.
func (c *ComponentDialog) ResumeDialog(ctx context.Context, dc *DialogContext, _ DialogReason, _ any) (DialogTurnResult, error) {
	if err := c.RepromptDialog(ctx, dc.TurnContext(), dc.ActiveDialog()); err != nil {
		return DialogTurnResult{}, err
	}
	return EndOfTurn, nil
}

func (c *ComponentDialog) RepromptDialog(ctx context.Context, tc *bot.TurnContext, inst *DialogInstance) error {
	inner, err := c.inner(inst)
	if err != nil {
		return err
	}
	return NewDialogContext(c.dialogs, tc, inner).RepromptDialog(ctx)
}

func (c *ComponentDialog) EndDialog(ctx context.Context, tc *bot.TurnContext, inst *DialogInstance, reason DialogReason) error {
	if reason != ReasonCancelCalled {
		return nil
	}
	inner, err := c.inner(inst)
	if err != nil {
		return err
	}
	_, err = NewDialogContext(c.dialogs, tc, inner).CancelAllDialogs(ctx)
	return err
}

func (c *ComponentDialog) inner(inst *DialogInstance) (*DialogState, error) {
	ds, err := LoadState[*DialogState](inst)
	if err != nil {
		return nil, err
	}
	if ds == nil {
		ds = NewDialogState()
	}
	return ds, nil
}

// settle stores the inner stack, or ends the component once the inner stack
// is no longer waiting.
func (c *ComponentDialog) settle(ctx context.Context, dc *DialogContext, inner *DialogState, res DialogTurnResult) (DialogTurnResult, error) {
	if res.Status != StatusWaiting {
		return dc.EndDialog(ctx, res.Result)
	}
	inst := dc.ActiveDialog()
	if inst == nil || inst.ID != c.ID() {
		return res, nil
	}
	if err := SaveState(inst, inner); err != nil {
		return DialogTurnResult{}, err
	}
	return res, nil
}
