package otp

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "otp:"
	issuePrefix = "otp:issued:"
)

// RedisStore keeps each entry in a hash that expires with the code.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, email, codeHash string, ttl time.Duration) error {
	key := keyPrefix + email
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "code", codeHash, "attempts", 0)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Get(ctx context.Context, email string) (*Entry, error) {
	fields, err := s.client.HGetAll(ctx, keyPrefix+email).Result()
	if err != nil {
		return nil, err
	}
	code, ok := fields["code"]
	if !ok {
		return nil, nil
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	return &Entry{CodeHash: code, Attempts: attempts}, nil
}

func (s *RedisStore) IncrementAttempts(ctx context.Context, email string) (int, error) {
	n, err := s.client.HIncrBy(ctx, keyPrefix+email, "attempts", 1).Result()
	return int(n), err
}

func (s *RedisStore) Delete(ctx context.Context, email string) error {
	return s.client.Del(ctx, keyPrefix+email).Err()
}

func (s *RedisStore) CountIssue(ctx context.Context, email string, window time.Duration) (int, error) {
	key := issuePrefix + email
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}
