package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"parcelview/internal/errors"
)

const redisKeyPrefix = "parcelview:session:"

// RedisStore keeps sessions as JSON values under parcelview:session:<id>,
// expiring ttl after the last Put.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisClient opens a client. It does not connect until first use.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// NewRedisStore wraps rdb.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Ping checks the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := r.rdb.Get(ctx, redisKeyPrefix+id).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.New(errors.ErrCodeSessionNotFound, "session not found")
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "redis get session")
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "decode session")
	}
	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode session")
	}
	if err := r.rdb.Set(ctx, redisKeyPrefix+s.ID, raw, r.ttl).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "redis set session")
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "redis delete session")
	}
	return nil
}

// Close closes the client.
func (r *RedisStore) Close() error { return r.rdb.Close() }
