// Package cache holds the key-value cache used for availability grids.
package cache

import (
	"context"
	"errors"
	"time"
)

var ErrMiss = errors.New("cache: miss")

// Cache stores string values. Get returns ErrMiss for absent keys.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Nop never stores anything; it is used when REDIS_URL is unset.
type Nop struct{}

var _ Cache = Nop{}

func (Nop) Get(ctx context.Context, key string) (string, error) { return "", ErrMiss }

func (Nop) Set(ctx context.Context, key string, value string, ttl time.Duration) error { return nil }

func (Nop) Del(ctx context.Context, keys ...string) (int64, error) { return 0, nil }

func (Nop) Ping(ctx context.Context) error { return nil }

func (Nop) Close() error { return nil }
