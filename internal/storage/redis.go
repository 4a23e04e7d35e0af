package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// RedisStore is a Store implementation over a rueidis client. Each store
// gets its own key prefix so multiple stores can share a database index
// without colliding.
type RedisStore struct {
	client rueidis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStore creates a Redis-backed store with the given key prefix.
func NewRedisStore(client rueidis.Client, prefix string, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix + ":",
		logger: logger.Named("redisstore"),
	}
}

// Get unmarshals the document stored under key into dest.
func (s *RedisStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := s.client.Do(ctx, s.client.B().Get().Key(s.prefix+key).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to get %q: %w", key, err)
	}

	if err := sonic.Unmarshal(raw, dest); err != nil {
		return false, err
	}

	return true, nil
}

// Set stores value under key.
func (s *RedisStore) Set(ctx context.Context, key string, value any) error {
	raw, err := sonic.Marshal(value)
	if err != nil {
		return err
	}

	err = s.client.Do(ctx,
		s.client.B().Set().Key(s.prefix+key).Value(rueidis.BinaryString(raw)).Build(),
	).Error()
	if err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}

	return nil
}

// Delete removes the document under key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	err := s.client.Do(ctx, s.client.B().Del().Key(s.prefix+key).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}

	return nil
}

// Keys returns all keys currently present in the store, with the store
// prefix stripped.
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	raw, err := s.client.Do(ctx, s.client.B().Keys().Pattern(s.prefix+"*").Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	keys := make([]string, 0, len(raw))
	for _, key := range raw {
		keys = append(keys, strings.TrimPrefix(key, s.prefix))
	}

	return keys, nil
}
