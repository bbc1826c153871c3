package state

import (
	"context"
	"errors"
	"testing"

	"github.com/voicetyped/botkit/pkg/activity"
	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/storage"
)

type countingStorage struct {
	*storage.MemoryStorage
	writes int
}

func (c *countingStorage) Write(ctx context.Context, changes map[string]storage.Item) (map[string]string, error) {
	c.writes++
	return c.MemoryStorage.Write(ctx, changes)
}

type profile struct {
	Name  string `json:"name"`
	Turns int    `json:"turns"`
}

func turn(text string) *bot.TurnContext {
	return bot.NewTurnContext(activity.Activity{
		Type:         activity.TypeMessage,
		ChannelID:    "test",
		Conversation: activity.ConversationAccount{ID: "conv"},
		From:         activity.ChannelAccount{ID: "user"},
		Text:         text,
	})
}

func TestPropertyRoundTrip(t *testing.T) {
	store := &countingStorage{MemoryStorage: storage.NewMemoryStorage()}
	user := NewUserState(store)
	prop := NewProperty[*profile](user, "profile")

	tc := turn("one")
	p, _, err := prop.Get(t.Context(), tc, func() *profile { return &profile{} })
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	p.Name = "Ada"
	p.Turns++
	if err := user.SaveChanges(t.Context(), tc, false); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}

	tc = turn("two")
	p, ok, err := prop.Get(t.Context(), tc, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected stored profile")
	}
	if p.Name != "Ada" || p.Turns != 1 {
		t.Errorf("got %+v, want Ada/1", p)
	}
}

func TestUnchangedStateIsNotWritten(t *testing.T) {
	store := &countingStorage{MemoryStorage: storage.NewMemoryStorage()}
	conv := NewConversationState(store)
	count := NewProperty[int](conv, "count")

	tc := turn("x")
	if err := count.Set(t.Context(), tc, 3); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := conv.SaveChanges(t.Context(), tc, false); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}

	tc = turn("y")
	if _, _, err := count.Get(t.Context(), tc, nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := conv.SaveChanges(t.Context(), tc, false); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}

	if store.writes != 1 {
		t.Errorf("writes = %d, want 1", store.writes)
	}

	if err := conv.SaveChanges(t.Context(), tc, true); err != nil {
		t.Fatalf("forced SaveChanges: %v", err)
	}
	if store.writes != 2 {
		t.Errorf("writes = %d, want 2 after force", store.writes)
	}
}

func TestAutoSaveSkipsFailedTurns(t *testing.T) {
	store := &countingStorage{MemoryStorage: storage.NewMemoryStorage()}
	conv := NewConversationState(store)
	count := NewProperty[int](conv, "count")

	a := bot.NewAdapter(bot.WithTurnErrorHandler(nil)).Use(AutoSave(conv))
	in := turn("x").Activity()

	_, err := a.ProcessActivity(t.Context(), in, bot.HandlerFunc(func(ctx context.Context, tc *bot.TurnContext) error {
		if err := count.Set(ctx, tc, 1); err != nil {
			return err
		}
		return errors.New("fail after mutation")
	}))
	if err == nil {
		t.Fatal("expected turn error")
	}
	if store.Len() != 0 {
		t.Fatalf("failed turn persisted state")
	}

	_, err = a.ProcessActivity(t.Context(), in, bot.HandlerFunc(func(ctx context.Context, tc *bot.TurnContext) error {
		return count.Set(ctx, tc, 2)
	}))
	if err != nil {
		t.Fatalf("ProcessActivity: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("successful turn did not persist state")
	}
}

func TestSaveAllSingleWrite(t *testing.T) {
	store := &countingStorage{MemoryStorage: storage.NewMemoryStorage()}
	conv := NewConversationState(store)
	user := NewUserState(store)

	tc := turn("x")
	if err := NewProperty[string](conv, "a").Set(t.Context(), tc, "c"); err != nil {
		t.Fatal(err)
	}
	if err := NewProperty[string](user, "b").Set(t.Context(), tc, "u"); err != nil {
		t.Fatal(err)
	}
	if err := SaveAll(t.Context(), tc, false, conv, user); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if store.writes != 1 || store.Len() != 2 {
		t.Errorf("writes=%d items=%d, want 1 and 2", store.writes, store.Len())
	}
}

func TestConcurrentWriterConflict(t *testing.T) {
	store := storage.NewMemoryStorage()
	conv := NewConversationState(store)
	count := NewProperty[int](conv, "count")

	seed := turn("seed")
	_ = count.Set(t.Context(), seed, 1)
	if err := conv.SaveChanges(t.Context(), seed, false); err != nil {
		t.Fatal(err)
	}

	a, b := turn("a"), turn("b")
	_, _, _ = count.Get(t.Context(), a, nil)
	_, _, _ = count.Get(t.Context(), b, nil)
	_ = count.Set(t.Context(), a, 2)
	_ = count.Set(t.Context(), b, 3)

	if err := conv.SaveChanges(t.Context(), a, false); err != nil {
		t.Fatalf("first writer: %v", err)
	}
	err := conv.SaveChanges(t.Context(), b, false)
	if !errors.Is(err, storage.ErrPreconditionFailed) {
		t.Fatalf("got %v, want ErrPreconditionFailed", err)
	}
}

func TestMissingIdentity(t *testing.T) {
	user := NewUserState(storage.NewMemoryStorage())
	tc := bot.NewTurnContext(activity.Activity{Type: activity.TypeMessage, ChannelID: "c"})
	_, _, err := NewProperty[int](user, "x").Get(t.Context(), tc, nil)
	if !errors.Is(err, ErrMissingIdentity) {
		t.Fatalf("got %v, want ErrMissingIdentity", err)
	}
}

func TestClearAndDelete(t *testing.T) {
	store := storage.NewMemoryStorage()
	conv := NewConversationState(store)
	name := NewProperty[string](conv, "name")

	tc := turn("x")
	_ = name.Set(t.Context(), tc, "v")
	if err := conv.SaveChanges(t.Context(), tc, false); err != nil {
		t.Fatal(err)
	}

	tc = turn("y")
	if err := conv.Load(t.Context(), tc, false); err != nil {
		t.Fatal(err)
	}
	conv.Clear(tc)
	if err := conv.SaveChanges(t.Context(), tc, false); err != nil {
		t.Fatal(err)
	}
	tc = turn("z")
	if _, ok, _ := name.Get(t.Context(), tc, nil); ok {
		t.Error("expected cleared property")
	}

	if err := conv.Delete(t.Context(), tc); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("items = %d, want 0", store.Len())
	}
}
