// Package resolve defines the uniform resolver contract shared by all data
// backends, plus the read-through cache and query metrics that sit in front
// of them.
package resolve

import (
	"context"
	"time"

	"github.com/rinkside-ai/rinkside/internal/model"
)

// Resolver fetches records for schema object types from one backend.
// Implementations return (nil, nil) from GetByID when the id does not exist;
// errors are reserved for backend failures.
type Resolver interface {
	// Backend returns the backend tag this resolver serves ("bigquery",
	// "parquet", ...). The mediator dispatches on it.
	Backend() string

	GetByID(ctx context.Context, objectType *model.ObjectType, id string, projection []string) (model.Record, error)

	GetByFilter(ctx context.Context, objectType *model.ObjectType, filters map[string]any, projection []string, limit, offset int) ([]model.Record, error)

	TraverseLink(ctx context.Context, link *model.LinkType, fromID string, toType *model.ObjectType, projection []string, limit int) ([]model.Record, error)
}

// Hard ceiling on rows per query. Config.MaxRows may be lower, never higher.
const maxRowsCap = 10000

// Config tunes resolver behaviour. Start from DefaultConfig and override;
// Normalize clamps out-of-range values back to defaults.
type Config struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	CacheEntries int
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	MaxRows      int
	MaxBatchSize int
}

// DefaultConfig returns the standard resolver tuning.
func DefaultConfig() Config {
	return Config{
		CacheEnabled: true,
		CacheTTL:     5 * time.Minute,
		CacheEntries: maxRowsCap * 10,
		Timeout:      30 * time.Second,
		MaxRetries:   3,
		RetryDelay:   time.Second,
		MaxRows:      maxRowsCap,
		MaxBatchSize: 1000,
	}
}

// Normalize fills unset numeric fields with defaults and enforces the row
// cap. CacheEnabled is left as given.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if c.CacheTTL <= 0 {
		c.CacheTTL = def.CacheTTL
	}
	if c.CacheEntries <= 0 {
		c.CacheEntries = def.CacheEntries
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.MaxRows <= 0 || c.MaxRows > maxRowsCap {
		c.MaxRows = maxRowsCap
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = def.MaxBatchSize
	}
	return c
}

// ClampLimit bounds a requested limit to the configured row cap. A zero or
// negative request means "as many as allowed".
func (c Config) ClampLimit(requested int) int {
	if requested <= 0 || requested > c.MaxRows {
		return c.MaxRows
	}
	return requested
}

// QueryContext derives a child context carrying the per-query timeout.
func (c Config) QueryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.Timeout)
}

// Retry runs fn up to 1+MaxRetries times, sleeping RetryDelay between
// attempts. retriable decides which errors are worth another attempt; nil
// retries everything. Context cancellation stops the loop immediately.
func Retry(ctx context.Context, cfg Config, retriable func(error) bool, fn func() error) error {
	var err error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.RetryDelay):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if retriable != nil && !retriable(err) {
			return err
		}
	}
	return err
}
