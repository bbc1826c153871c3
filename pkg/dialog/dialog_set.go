package dialog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/events"
	"github.com/voicetyped/botkit/pkg/state"
)

// DefaultMaxDepth bounds the dialog stack unless configured otherwise.
const DefaultMaxDepth = 64

// SetOption configures a DialogSet.
type SetOption func(*DialogSet)

// WithMaxDepth bounds the stack. Zero disables the bound.
func WithMaxDepth(n int) SetOption {
	return func(s *DialogSet) { s.maxDepth = n }
}

// WithPublisher emits dialog lifecycle events.
func WithPublisher(p *events.Publisher) SetOption {
	return func(s *DialogSet) { s.publisher = p }
}

// DialogSet maps dialog ids to dialogs. It is filled at startup and only
// read while turns run.
type DialogSet struct {
	accessor  *state.Property[*DialogState]
	dialogs   map[string]Dialog
	maxDepth  int
	publisher *events.Publisher
}

// NewDialogSet creates a set whose stacks are persisted through accessor.
// Sets used only inside component dialogs may pass nil.
func NewDialogSet(accessor *state.Property[*DialogState], opts ...SetOption) *DialogSet {
	s := &DialogSet{
		accessor: accessor,
		dialogs:  make(map[string]Dialog),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers d. It panics on an empty or duplicate id since both are
// programming errors.
func (s *DialogSet) Add(d Dialog) *DialogSet {
	id := d.ID()
	if id == "" {
		panic("dialog: Add called with empty dialog id")
	}
	if _, dup := s.dialogs[id]; dup {
		panic(fmt.Sprintf("dialog: duplicate dialog id %q", id))
	}
	s.dialogs[id] = d
	return s
}

// TryAdd registers d and reports duplicates as errors. Used when dialogs
// come from configuration rather than code.
func (s *DialogSet) TryAdd(d Dialog) error {
	id := d.ID()
	if id == "" {
		return errors.New("dialog id is empty")
	}
	if _, dup := s.dialogs[id]; dup {
		return fmt.Errorf("duplicate dialog id %q", id)
	}
	s.dialogs[id] = d
	return nil
}

// Find looks up a dialog by id.
func (s *DialogSet) Find(id string) (Dialog, bool) {
	if s == nil {
		return nil, false
	}
	d, ok := s.dialogs[id]
	return d, ok
}

// IDs returns the registered ids in sorted order.
func (s *DialogSet) IDs() []string {
	ids := make([]string, 0, len(s.dialogs))
	for id := range s.dialogs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CreateContext loads the conversation's stack, starting an empty one when
// none is stored, and binds it to the turn.
func (s *DialogSet) CreateContext(ctx context.Context, tc *bot.TurnContext) (*DialogContext, error) {
	if s.accessor == nil {
		return nil, errors.New("dialog set has no state accessor")
	}
	ds, _, err := s.accessor.Get(ctx, tc, NewDialogState)
	if err != nil {
		return nil, fmt.Errorf("load dialog state: %w", err)
	}
	if ds == nil {
		ds = NewDialogState()
		if err := s.accessor.Set(ctx, tc, ds); err != nil {
			return nil, err
		}
	}
	return NewDialogContext(s, tc, ds), nil
}
