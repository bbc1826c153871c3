package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/voicetyped/botkit/pkg/bot"
)

var (
	// ErrDialogNotFound is returned when a dialog id does not resolve
	// against the dialog set. It indicates a deployment mismatch.
	ErrDialogNotFound = errors.New("dialog not found")

	// ErrStackOverflow is returned when beginning a dialog would exceed the
	// configured stack depth.
	ErrStackOverflow = errors.New("dialog stack depth exceeded")
)

// DialogNotFoundError names the dialog id that failed to resolve.
type DialogNotFoundError struct {
	ID string
}

func (e *DialogNotFoundError) Error() string {
	return fmt.Sprintf("dialog %q not found", e.ID)
}

func (e *DialogNotFoundError) Is(target error) bool {
	return target == ErrDialogNotFound
}

// DialogTurnStatus reports what the stack did during a turn.
type DialogTurnStatus int

const (
	// StatusEmpty means no dialog was active.
	StatusEmpty DialogTurnStatus = iota
	// StatusWaiting means the active dialog waits for the next input.
	StatusWaiting
	// StatusComplete means the outermost dialog ended.
	StatusComplete
	// StatusCancelled means the stack was cancelled.
	StatusCancelled
)

func (s DialogTurnStatus) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusWaiting:
		return "waiting"
	case StatusComplete:
		return "complete"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// DialogTurnResult is returned by every stack operation.
type DialogTurnResult struct {
	Status DialogTurnStatus
	Result any
}

// EndOfTurn suspends the active dialog until the next input.
var EndOfTurn = DialogTurnResult{Status: StatusWaiting}

// DialogReason says why a dialog is resumed or ended.
type DialogReason int

const (
	ReasonBeginCalled DialogReason = iota
	ReasonContinueCalled
	ReasonEndCalled
	ReasonReplaceCalled
	ReasonCancelCalled
	ReasonNextCalled
)

func (r DialogReason) String() string {
	switch r {
	case ReasonBeginCalled:
		return "begin"
	case ReasonContinueCalled:
		return "continue"
	case ReasonEndCalled:
		return "end"
	case ReasonReplaceCalled:
		return "replace"
	case ReasonCancelCalled:
		return "cancel"
	case ReasonNextCalled:
		return "next"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// DialogInstance is one entry of the dialog stack.
type DialogInstance struct {
	ID    string          `json:"id"`
	State json.RawMessage `json:"state,omitempty"`
}

// DialogState is the persisted dialog stack of a conversation. The last
// element is the top.
type DialogState struct {
	DialogStack []DialogInstance `json:"dialog_stack"`
}

// NewDialogState returns an empty stack.
func NewDialogState() *DialogState {
	return &DialogState{DialogStack: []DialogInstance{}}
}

// Depth returns the number of active dialogs.
func (s *DialogState) Depth() int { return len(s.DialogStack) }

// Dialog is a named unit of conversation logic driven by a DialogContext.
type Dialog interface {
	// ID is the unique name the dialog is registered and persisted under.
	ID() string

	// BeginDialog runs when the dialog is pushed. Its instance is already
	// on top of the stack.
	BeginDialog(ctx context.Context, dc *DialogContext, options any) (DialogTurnResult, error)

	// ContinueDialog runs when new input arrives for the top instance.
	ContinueDialog(ctx context.Context, dc *DialogContext) (DialogTurnResult, error)

	// ResumeDialog runs when a child dialog ended and this instance is top
	// again.
	ResumeDialog(ctx context.Context, dc *DialogContext, reason DialogReason, result any) (DialogTurnResult, error)

	// RepromptDialog asks the user again for the pending input.
	RepromptDialog(ctx context.Context, tc *bot.TurnContext, inst *DialogInstance) error

	// EndDialog runs before the instance is popped.
	EndDialog(ctx context.Context, tc *bot.TurnContext, inst *DialogInstance, reason DialogReason) error
}

// Base supplies default behaviour for Dialog implementations: continuing
// or resuming ends the dialog, reprompt and end are no-ops.
type Base struct {
	id string
}

// NewBase creates a Base with the given id.
func NewBase(id string) Base { return Base{id: id} }

func (b Base) ID() string { return b.id }

func (b Base) ContinueDialog(ctx context.Context, dc *DialogContext) (DialogTurnResult, error) {
	return dc.EndDialog(ctx, nil)
}

func (b Base) ResumeDialog(ctx context.Context, dc *DialogContext, _ DialogReason, result any) (DialogTurnResult, error) {
	return dc.EndDialog(ctx, result)
}

func (b Base) RepromptDialog(context.Context, *bot.TurnContext, *DialogInstance) error { return nil }

func (b Base) EndDialog(context.Context, *bot.TurnContext, *DialogInstance, DialogReason) error {
	return nil
}

// As converts a step or dialog result to T.
func As[T any](v any) (T, bool) {
	t, ok := v.(T)
	return t, ok
}
