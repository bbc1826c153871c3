package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"
)

const defaultRedisPrefix = "botkit"

var codec = sonic.ConfigStd

// RedisOption configures a RedisStorage.
type RedisOption func(*RedisStorage)

// WithTTL expires items that were not written for ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStorage) {
		s.ttl = ttl
	}
}

// WithPrefix namespaces all keys.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStorage) {
		s.prefix = prefix
	}
}

// RedisStorage stores items as JSON documents in Redis and enforces ETags
// with WATCH/MULTI transactions.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStorage wraps a go-redis client.
func NewRedisStorage(client redis.UniversalClient, opts ...RedisOption) *RedisStorage {
	s := &RedisStorage{client: client, prefix: defaultRedisPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStorage) key(k string) string {
	return s.prefix + ":state:" + k
}

func (s *RedisStorage) Read(ctx context.Context, keys []string) (map[string]Item, error) {
	if err := validateKeys(keys); err != nil {
		return nil, err
	}
	out := make(map[string]Item, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rks := make([]string, len(keys))
	for i, k := range keys {
		rks[i] = s.key(k)
	}

	vals, err := s.client.MGet(ctx, rks...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var it Item
		if err := codec.UnmarshalFromString(str, &it); err != nil {
			return nil, fmt.Errorf("decode %q: %w", keys[i], err)
		}
		out[keys[i]] = it
	}
	return out, nil
}

func (s *RedisStorage) Write(ctx context.Context, changes map[string]Item) (map[string]string, error) {
	if len(changes) == 0 {
		return map[string]string{}, nil
	}

	keys := make([]string, 0, len(changes))
	for k := range changes {
		if k == "" {
			return nil, ErrInvalidKey
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rks := make([]string, len(keys))
	for i, k := range keys {
		rks[i] = s.key(k)
	}

	etags := make(map[string]string, len(keys))
	txf := func(tx *redis.Tx) error {
		for i, k := range keys {
			want := changes[k].ETag
			if want == "" || want == AnyETag {
				continue
			}
			raw, err := tx.Get(ctx, rks[i]).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return err
			}
			var cur Item
			if err := codec.Unmarshal(raw, &cur); err != nil {
				return fmt.Errorf("decode %q: %w", k, err)
			}
			if conflicts(want, cur.ETag, true) {
				return preconditionError(k)
			}
		}

		docs := make([][]byte, len(keys))
		for i, k := range keys {
			etag := xid.New().String()
			doc, err := codec.Marshal(Item{Value: changes[k].Value, ETag: etag})
			if err != nil {
				return fmt.Errorf("encode %q: %w", k, err)
			}
			docs[i] = doc
			etags[k] = etag
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i := range keys {
				pipe.Set(ctx, rks[i], docs[i], s.ttl)
			}
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, rks...)
	switch {
	case err == nil:
		return etags, nil
	case errors.Is(err, redis.TxFailedErr):
		return nil, fmt.Errorf("%w: concurrent write", ErrPreconditionFailed)
	case errors.Is(err, ErrPreconditionFailed):
		return nil, err
	default:
		return nil, fmt.Errorf("redis write: %w", err)
	}
}

func (s *RedisStorage) Delete(ctx context.Context, keys []string) error {
	if err := validateKeys(keys); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	rks := make([]string, len(keys))
	for i, k := range keys {
		rks[i] = s.key(k)
	}
	if err := s.client.Del(ctx, rks...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
