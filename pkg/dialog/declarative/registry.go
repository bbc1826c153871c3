package declarative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"

	"github.com/voicetyped/botkit/pkg/dialog"
	"github.com/voicetyped/botkit/pkg/events"
)

// SetFactory returns a fresh dialog set holding the dialogs defined in code.
type SetFactory func() *dialog.DialogSet

// Registry owns the dialog set turns resolve against. Every reload builds a
// new set from the factory plus the loaded definitions and swaps it in, so a
// running turn keeps the snapshot it started with.
type Registry struct {
	loader    *Loader
	newSet    SetFactory
	publisher *events.Publisher
	opts      []BuildOption

	current atomic.Pointer[dialog.DialogSet]
}

// NewRegistry creates a registry. The loader may be nil, in which case only
// code dialogs are served. The publisher may be nil.
func NewRegistry(loader *Loader, newSet SetFactory, publisher *events.Publisher, opts ...BuildOption) *Registry {
	r := &Registry{
		loader:    loader,
		newSet:    newSet,
		publisher: publisher,
		opts:      opts,
	}
	r.current.Store(newSet())
	return r
}

// Current returns the active dialog set.
func (r *Registry) Current() *dialog.DialogSet {
	return r.current.Load()
}

// Load reads all definitions and swaps in a set built from them.
func (r *Registry) Load(ctx context.Context) error {
	if r.loader == nil {
		return nil
	}
	defs, err := r.loader.LoadAll()
	if err != nil {
		return err
	}
	return r.apply(ctx, defs)
}

// Watch reloads definitions whenever the dialog directory changes. It blocks
// until ctx is done.
func (r *Registry) Watch(ctx context.Context) error {
	if r.loader == nil {
		<-ctx.Done()
		return nil
	}
	return r.loader.WatchAndReload(ctx.Done(), func(defs map[string]*Definition) {
		if err := r.apply(ctx, defs); err != nil {
			slog.WarnContext(ctx, "dialog set rebuild failed", slog.String("error", err.Error()))
		}
	})
}

func (r *Registry) apply(ctx context.Context, defs map[string]*Definition) error {
	set, err := r.build(defs)
	names := slices.Sorted(maps.Keys(defs))

	if err != nil {
		r.publisher.EmitAsync(ctx, events.DialogsReloaded, "", &events.DialogsReloadedData{
			Dialogs: names,
			Error:   err.Error(),
		})
		return err
	}

	r.current.Store(set)
	slog.InfoContext(ctx, "dialogs loaded", slog.Int("count", len(names)))
	r.publisher.EmitAsync(ctx, events.DialogsReloaded, "", &events.DialogsReloadedData{Dialogs: names})
	return nil
}

func (r *Registry) build(defs map[string]*Definition) (*dialog.DialogSet, error) {
	set := r.newSet()
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(defs)) {
		if err := defs[name].Build(set, r.opts...); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("build dialogs: %w", err)
	}
	return set, nil
}
