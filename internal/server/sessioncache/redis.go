package sessioncache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix    = "cerberus:session:"
	valueActive  = "active"
	valueRevoked = "revoked"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to redis and pings it once.
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

type Redis struct {
	rdb goredis.UniversalClient
}

func NewRedis(rdb goredis.UniversalClient) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) Lookup(ctx context.Context, sessionID string) (State, error) {
	v, err := r.rdb.Get(ctx, keyPrefix+sessionID).Result()
	if errors.Is(err, goredis.Nil) {
		return Unknown, nil
	}
	if err != nil {
		return Unknown, fmt.Errorf("redis get: %w", err)
	}
	switch v {
	case valueActive:
		return Active, nil
	case valueRevoked:
		return Revoked, nil
	}
	return Unknown, nil
}

func (r *Redis) MarkActive(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.rdb.SetNX(ctx, keyPrefix+sessionID, valueActive, ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	return nil
}

func (r *Redis) MarkRevoked(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return r.Forget(ctx, sessionID)
	}
	if err := r.rdb.Set(ctx, keyPrefix+sessionID, valueRevoked, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Forget(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
