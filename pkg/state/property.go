package state

import (
	"context"
	"fmt"

	"github.com/voicetyped/botkit/pkg/bot"
)

// Property is a typed accessor for one entry of a bag. Values are decoded
// once per turn and the same value is handed out on every Get, so pointer
// types can be mutated in place and are written back on save.
type Property[T any] struct {
	bag  *BotState
	name string
}

// NewProperty creates an accessor for name in bag.
func NewProperty[T any](bag *BotState, name string) *Property[T] {
	return &Property[T]{bag: bag, name: name}
}

// Name returns the property name.
func (p *Property[T]) Name() string { return p.name }

// Get returns the property value. When the property is missing and def is not
// nil, def's value is stored and returned; otherwise the zero value is
// returned with ok false.
func (p *Property[T]) Get(ctx context.Context, tc *bot.TurnContext, def func() T) (v T, ok bool, err error) {
	if err := p.bag.Load(ctx, tc, false); err != nil {
		return v, false, err
	}
	c := p.bag.cached(tc)

	if cur, found := c.values[p.name]; found {
		typed, isT := cur.(T)
		if !isT {
			return v, false, fmt.Errorf("property %q holds %T", p.name, cur)
		}
		return typed, true, nil
	}

	if raw, found := c.raw[p.name]; found {
		if err := codec.Unmarshal(raw, &v); err != nil {
			return v, false, fmt.Errorf("decode property %q: %w", p.name, err)
		}
		delete(c.raw, p.name)
		c.values[p.name] = v
		return v, true, nil
	}

	if def == nil {
		return v, false, nil
	}
	v = def()
	c.values[p.name] = v
	return v, true, nil
}

// Set replaces the property value.
func (p *Property[T]) Set(ctx context.Context, tc *bot.TurnContext, v T) error {
	if err := p.bag.Load(ctx, tc, false); err != nil {
		return err
	}
	c := p.bag.cached(tc)
	delete(c.raw, p.name)
	c.values[p.name] = v
	return nil
}

// Delete removes the property.
func (p *Property[T]) Delete(ctx context.Context, tc *bot.TurnContext) error {
	if err := p.bag.Load(ctx, tc, false); err != nil {
		return err
	}
	c := p.bag.cached(tc)
	delete(c.raw, p.name)
	delete(c.values, p.name)
	return nil
}
