// Package state keeps conversation and user scoped property bags on top of a
// storage.Storage and writes them back once per turn.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/voicetyped/botkit/pkg/activity"
	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/storage"
)

// ErrMissingIdentity is returned when the activity lacks the id a bag is
// keyed by.
var ErrMissingIdentity = errors.New("state: activity lacks scope identity")

var codec = sonic.ConfigStd

// KeyFunc derives the storage key of a bag from the inbound activity.
type KeyFunc func(in activity.Activity) (string, error)

// BotState is a property bag persisted under one storage key per turn scope.
type BotState struct {
	name    string
	storage storage.Storage
	key     KeyFunc
}

// cached is the per-turn view of a bag.
type cached struct {
	key      string
	raw      map[string]json.RawMessage
	values   map[string]any
	snapshot []byte
	etag     string
}

// New creates a bag. name must be unique among the bags used in one turn.
func New(name string, s storage.Storage, key KeyFunc) *BotState {
	return &BotState{name: name, storage: s, key: key}
}

// NewConversationState creates the bag scoped to channel and conversation.
func NewConversationState(s storage.Storage) *BotState {
	return New("ConversationState", s, func(in activity.Activity) (string, error) {
		if in.ChannelID == "" || in.Conversation.ID == "" {
			return "", fmt.Errorf("%w: conversation", ErrMissingIdentity)
		}
		return in.ChannelID + "/conversations/" + in.Conversation.ID, nil
	})
}

// NewUserState creates the bag scoped to channel and user.
func NewUserState(s storage.Storage) *BotState {
	return New("UserState", s, func(in activity.Activity) (string, error) {
		if in.ChannelID == "" || in.From.ID == "" {
			return "", fmt.Errorf("%w: user", ErrMissingIdentity)
		}
		return in.ChannelID + "/users/" + in.From.ID, nil
	})
}

// Name returns the bag name.
func (b *BotState) Name() string { return b.name }

// StorageKey returns the key the bag of tc is stored under.
func (b *BotState) StorageKey(tc *bot.TurnContext) (string, error) {
	return b.key(tc.Activity())
}

func (b *BotState) cacheKey() string { return "state:" + b.name }

func (b *BotState) cached(tc *bot.TurnContext) *cached {
	v, ok := tc.Get(b.cacheKey())
	if !ok {
		return nil
	}
	return v.(*cached)
}

// Load reads the bag into the turn cache. It is a no-op when already loaded
// unless force is set.
func (b *BotState) Load(ctx context.Context, tc *bot.TurnContext, force bool) error {
	if c := b.cached(tc); c != nil && !force {
		return nil
	}

	key, err := b.key(tc.Activity())
	if err != nil {
		return err
	}

	items, err := b.storage.Read(ctx, []string{key})
	if err != nil {
		return fmt.Errorf("load %s: %w", b.name, err)
	}

	c := &cached{
		key:    key,
		raw:    make(map[string]json.RawMessage),
		values: make(map[string]any),
	}
	if it, ok := items[key]; ok && len(it.Value) > 0 {
		if err := codec.Unmarshal(it.Value, &c.raw); err != nil {
			return fmt.Errorf("decode %s: %w", b.name, err)
		}
		c.snapshot = it.Value
		c.etag = it.ETag
	}
	tc.Set(b.cacheKey(), c)
	return nil
}

// encode renders the current bag, including values handed out by accessors.
func (c *cached) encode() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(c.raw)+len(c.values))
	maps.Copy(out, c.raw)
	for name, v := range c.values {
		b, err := codec.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode property %q: %w", name, err)
		}
		out[name] = b
	}
	return codec.Marshal(out)
}

// changed reports whether doc differs from what was loaded.
func (c *cached) changed(doc []byte) bool {
	if c.snapshot == nil {
		return len(c.raw)+len(c.values) > 0
	}
	return !jsonpatch.Equal(doc, c.snapshot)
}

// SaveChanges writes the bag if it changed since it was loaded, or always
// when force is set.
func (b *BotState) SaveChanges(ctx context.Context, tc *bot.TurnContext, force bool) error {
	return SaveAll(ctx, tc, force, b)
}

// SaveAll writes every changed bag in a single storage write. Bags must share
// one storage.
func SaveAll(ctx context.Context, tc *bot.TurnContext, force bool, bags ...*BotState) error {
	if len(bags) == 0 {
		return nil
	}
	store := bags[0].storage

	changes := make(map[string]storage.Item)
	pending := make(map[string]*cached)
	docs := make(map[string][]byte)

	for _, b := range bags {
		if b.storage != store {
			return fmt.Errorf("save %s: bags use different storages", b.name)
		}
		c := b.cached(tc)
		if c == nil {
			continue
		}
		doc, err := c.encode()
		if err != nil {
			return fmt.Errorf("save %s: %w", b.name, err)
		}
		if !force && !c.changed(doc) {
			continue
		}
		etag := c.etag
		if force {
			etag = storage.AnyETag
		}
		changes[c.key] = storage.Item{Value: doc, ETag: etag}
		pending[c.key] = c
		docs[c.key] = doc
	}

	if len(changes) == 0 {
		return nil
	}

	etags, err := store.Write(ctx, changes)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	for key, c := range pending {
		c.snapshot = docs[key]
		c.etag = etags[key]
	}
	return nil
}

// Clear empties the cached bag. The empty bag is written on the next save.
func (b *BotState) Clear(tc *bot.TurnContext) {
	if c := b.cached(tc); c != nil {
		c.raw = make(map[string]json.RawMessage)
		c.values = make(map[string]any)
		if c.snapshot == nil {
			c.snapshot = []byte(`{}`)
		}
	}
}

// Delete removes the bag from storage and from the turn cache.
func (b *BotState) Delete(ctx context.Context, tc *bot.TurnContext) error {
	key, err := b.key(tc.Activity())
	if err != nil {
		return err
	}
	tc.Delete(b.cacheKey())
	if err := b.storage.Delete(ctx, []string{key}); err != nil {
		return fmt.Errorf("delete %s: %w", b.name, err)
	}
	return nil
}

// Snapshot returns the encoded bag as currently cached.
func (b *BotState) Snapshot(ctx context.Context, tc *bot.TurnContext) (json.RawMessage, error) {
	if err := b.Load(ctx, tc, false); err != nil {
		return nil, err
	}
	return b.cached(tc).encode()
}

// AutoSave returns middleware that saves bags after the rest of the turn
// succeeded. Nothing is written when the turn fails.
func AutoSave(bags ...*BotState) bot.Middleware {
	return bot.MiddlewareFunc(func(ctx context.Context, tc *bot.TurnContext, next bot.Next) error {
		if err := next(ctx); err != nil {
			return err
		}
		return SaveAll(ctx, tc, false, bags...)
	})
}
