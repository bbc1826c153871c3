package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	name string
	open func(t *testing.T) Storage
}

func backends() []backend {
	return []backend{
		{"memory", func(t *testing.T) Storage { return NewMemoryStorage() }},
		{"redis", func(t *testing.T) Storage {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewRedisStorage(client, WithPrefix("test"))
		}},
		{"sqlite", func(t *testing.T) Storage {
			s, err := OpenSQLite(t.Context(), filepath.Join(t.TempDir(), "state.db"))
			require.NoError(t, err)
			return s
		}},
	}
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestStorage_ReadMissing(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			items, err := s.Read(context.Background(), []string{"nope"})
			require.NoError(t, err)
			assert.Empty(t, items)
		})
	}
}

func TestStorage_WriteRead(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()

			etags, err := s.Write(ctx, map[string]Item{
				"a": {Value: raw(t, map[string]int{"n": 1})},
				"b": {Value: raw(t, "two")},
			})
			require.NoError(t, err)
			require.Len(t, etags, 2)

			items, err := s.Read(ctx, []string{"a", "b", "c"})
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.JSONEq(t, `{"n":1}`, string(items["a"].Value))
			assert.JSONEq(t, `"two"`, string(items["b"].Value))
			assert.Equal(t, etags["a"], items["a"].ETag)
		})
	}
}

func TestStorage_ETagConflict(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()

			first, err := s.Write(ctx, map[string]Item{"k": {Value: raw(t, 1)}})
			require.NoError(t, err)

			// Matching etag wins.
			second, err := s.Write(ctx, map[string]Item{"k": {Value: raw(t, 2), ETag: first["k"]}})
			require.NoError(t, err)
			assert.NotEqual(t, first["k"], second["k"])

			// Stale etag loses and leaves the item untouched.
			_, err = s.Write(ctx, map[string]Item{"k": {Value: raw(t, 3), ETag: first["k"]}})
			assert.ErrorIs(t, err, ErrPreconditionFailed)

			items, err := s.Read(ctx, []string{"k"})
			require.NoError(t, err)
			assert.JSONEq(t, `2`, string(items["k"].Value))

			// Wildcard always wins.
			_, err = s.Write(ctx, map[string]Item{"k": {Value: raw(t, 4), ETag: AnyETag}})
			require.NoError(t, err)
		})
	}
}

func TestStorage_Delete(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()

			_, err := s.Write(ctx, map[string]Item{"k": {Value: raw(t, true)}})
			require.NoError(t, err)
			require.NoError(t, s.Delete(ctx, []string{"k", "missing"}))

			items, err := s.Read(ctx, []string{"k"})
			require.NoError(t, err)
			assert.Empty(t, items)
		})
	}
}

func TestStorage_InvalidKey(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			_, err := s.Read(context.Background(), []string{""})
			assert.ErrorIs(t, err, ErrInvalidKey)
			_, err = s.Write(context.Background(), map[string]Item{"": {Value: raw(t, 1)}})
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestRedisStorage_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStorage(client, WithTTL(time.Minute))

	_, err := s.Write(context.Background(), map[string]Item{"k": {Value: raw(t, 1)}})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("botkit:state:k"))

	mr.FastForward(2 * time.Minute)
	items, err := s.Read(context.Background(), []string{"k"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRedisStorage_DocumentLayout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStorage(client)
	ctx := context.Background()

	etags, err := s.Write(ctx, map[string]Item{"k": {Value: raw(t, map[string]int{"turns": 2})}})
	require.NoError(t, err)

	doc, err := mr.Get("botkit:state:k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":{"turns":2},"etag":"`+etags["k"]+`"}`, doc)

	// Documents written by other clients decode the same way.
	require.NoError(t, mr.Set("botkit:state:other", `{"value":[1,2],"etag":"e1"}`))
	items, err := s.Read(ctx, []string{"other"})
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(items["other"].Value))
	assert.Equal(t, "e1", items["other"].ETag)
}

func TestMemoryStorage_CopiesValues(t *testing.T) {
	s := NewMemoryStorage()
	v := raw(t, "x")
	_, err := s.Write(context.Background(), map[string]Item{"k": {Value: v}})
	require.NoError(t, err)

	v[1] = 'y'
	items, err := s.Read(context.Background(), []string{"k"})
	require.NoError(t, err)
	assert.Equal(t, `"x"`, string(items["k"].Value))
	assert.Equal(t, 1, s.Len())
}
