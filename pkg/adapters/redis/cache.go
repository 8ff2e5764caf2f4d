package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/kiosk/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "kiosk:"

// Cache implements ports.FlowCache using Redis.
// Replicas sharing a prefix share the converted document.
type Cache struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Cache)

// WithTTL sets the expiration of the cached document.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// New creates a new Redis cache with options.
func New(address, password string, db int, opts ...Option) *Cache {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis cache from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Cache {
	cache := &Cache{
		client: client,
		prefix: DefaultPrefix,
		ttl:    0, // No expiration by default
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

// Client exposes the underlying client, e.g. to build a Locker on it.
func (c *Cache) Client() *backend.Client {
	return c.client
}

func (c *Cache) key() string {
	return c.prefix + "flow"
}

// Get loads the cached document.
func (c *Cache) Get(ctx context.Context) (*domain.FlowDocument, error) {
	val, err := c.client.Get(ctx, c.key()).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get flow from redis: %w", err)
	}

	var doc domain.FlowDocument
	if err := json.Unmarshal(val, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached flow: %w", err)
	}
	return &doc, nil
}

// Set stores the document as JSON.
func (c *Cache) Set(ctx context.Context, doc *domain.FlowDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal flow: %w", err)
	}
	// Use 0 for no expiration if ttl is not set.
	if err := c.client.Set(ctx, c.key(), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save flow to redis: %w", err)
	}
	return nil
}

// Clear removes the cached document.
func (c *Cache) Clear(ctx context.Context) error {
	return c.client.Del(ctx, c.key()).Err()
}

// Close closes the redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
