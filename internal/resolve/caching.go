package resolve

import (
	"context"
	"log/slog"
	"time"

	"github.com/rinkside-ai/rinkside/internal/model"
)

// CachingResolver wraps a backend resolver with the read-through record
// cache and query metrics. It satisfies Resolver, so the mediator can treat
// cached and raw resolvers uniformly.
type CachingResolver struct {
	inner   Resolver
	cfg     Config
	cache   *Cache
	metrics *Metrics
	logger  *slog.Logger
}

// NewCaching wraps inner with caching and metrics per cfg.
func NewCaching(inner Resolver, cfg Config, metrics *Metrics, logger *slog.Logger) *CachingResolver {
	cfg = cfg.Normalize()
	return &CachingResolver{
		inner:   inner,
		cfg:     cfg,
		cache:   NewCache(cfg.CacheTTL, cfg.CacheEntries),
		metrics: metrics,
		logger:  logger.With("component", "resolve", "backend", inner.Backend()),
	}
}

// Backend reports the wrapped resolver's backend tag.
func (r *CachingResolver) Backend() string { return r.inner.Backend() }

// Config returns the normalized configuration in effect.
func (r *CachingResolver) Config() Config { return r.cfg }

// InvalidateCache drops all cached records.
func (r *CachingResolver) InvalidateCache() { r.cache.Invalidate() }

// RegisterSchema forwards schema bindings to the wrapped resolver when it
// takes them.
func (r *CachingResolver) RegisterSchema(objectTypes []model.ObjectType) {
	if reg, ok := r.inner.(interface{ RegisterSchema([]model.ObjectType) }); ok {
		reg.RegisterSchema(objectTypes)
	}
}

// GetByIDCached returns the cached record when present and fresh; otherwise
// it delegates to the backend and stores the result.
func (r *CachingResolver) GetByIDCached(ctx context.Context, objectType *model.ObjectType, id string, projection []string) (model.Record, error) {
	if !r.cfg.CacheEnabled {
		return r.GetByID(ctx, objectType, id, projection)
	}

	key := CacheKey(objectType.Name, id, projection)
	if record, ok := r.cache.Get(key); ok {
		r.metrics.Record(ctx, QuerySample{Backend: r.Backend(), Rows: 1, CacheHit: true})
		return record, nil
	}

	record, err := r.GetByID(ctx, objectType, id, projection)
	if err != nil || record == nil {
		return record, err
	}
	r.cache.Put(key, record)
	return record, nil
}

// GetByID delegates to the backend with timing and the per-query timeout.
func (r *CachingResolver) GetByID(ctx context.Context, objectType *model.ObjectType, id string, projection []string) (model.Record, error) {
	qctx, cancel := r.cfg.QueryContext(ctx)
	defer cancel()

	start := time.Now()
	record, err := r.inner.GetByID(qctx, objectType, id, projection)
	r.observe(ctx, start, boolToRows(record != nil), err)
	return record, err
}

// GetByFilter delegates to the backend, clamping the limit to the row cap.
func (r *CachingResolver) GetByFilter(ctx context.Context, objectType *model.ObjectType, filters map[string]any, projection []string, limit, offset int) ([]model.Record, error) {
	qctx, cancel := r.cfg.QueryContext(ctx)
	defer cancel()

	start := time.Now()
	records, err := r.inner.GetByFilter(qctx, objectType, filters, projection, r.cfg.ClampLimit(limit), offset)
	r.observe(ctx, start, len(records), err)
	return records, err
}

// TraverseLink delegates to the backend, clamping the limit to the row cap.
func (r *CachingResolver) TraverseLink(ctx context.Context, link *model.LinkType, fromID string, toType *model.ObjectType, projection []string, limit int) ([]model.Record, error) {
	qctx, cancel := r.cfg.QueryContext(ctx)
	defer cancel()

	start := time.Now()
	records, err := r.inner.TraverseLink(qctx, link, fromID, toType, projection, r.cfg.ClampLimit(limit))
	r.observe(ctx, start, len(records), err)
	return records, err
}

func (r *CachingResolver) observe(ctx context.Context, start time.Time, rows int, err error) {
	elapsed := time.Since(start)
	r.metrics.Record(ctx, QuerySample{
		Backend:    r.Backend(),
		DurationMS: float64(elapsed.Microseconds()) / 1000.0,
		Rows:       rows,
	})
	if err != nil {
		r.logger.Warn("backend query failed", "error", err, "elapsed", elapsed)
	}
}

func boolToRows(found bool) int {
	if found {
		return 1
	}
	return 0
}
