// Package redisdoc implements the persistence port on Redis. Each entity
// kind is one hash of JSON documents keyed by identity, and the change log
// is a list of JSON documents in sequence order.
package redisdoc

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// DefaultKeyPrefix namespaces keys when the config leaves it empty.
const DefaultKeyPrefix = "stockroom:"

// Key suffixes under the prefix.
const (
	characteristicsKey = "characteristics"
	groupsKey          = "groups"
	recordsKey         = "records"
	changesKey         = "changes"
)

// Config holds connection parameters.
type Config struct {
	Addrs     []string
	Password  string
	KeyPrefix string
}

// Backend implements types.Persistence and types.ChangeSink via rueidis.
type Backend struct {
	client rueidis.Client
	prefix string
}

// NewBackend connects to the Redis servers in cfg.
func NewBackend(cfg Config) (*Backend, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Password:     cfg.Password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return newBackend(client, cfg.KeyPrefix), nil
}

// NewBackendForTest wraps an existing client, typically a mock.
func NewBackendForTest(c rueidis.Client, prefix string) *Backend {
	return newBackend(c, prefix)
}

func newBackend(c rueidis.Client, prefix string) *Backend {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Backend{client: c, prefix: prefix}
}

// Ping checks connectivity.
func (b *Backend) Ping(ctx context.Context) error {
	cmd := b.client.B().Ping().Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// WaitForReady polls Ping until the server responds or timeout expires.
func (b *Backend) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for redis: %w", ctx.Err())
		case <-ticker.C:
			if err := b.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Close shuts down the client.
func (b *Backend) Close() error {
	b.client.Close()
	return nil
}

func (b *Backend) key(suffix string) string { return b.prefix + suffix }
