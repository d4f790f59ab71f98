// Package mediator is the single funnel for governed operations: it joins
// schema lookup, policy evaluation, resolver dispatch, result filtering,
// and audit. Every operation writes an audit record whether it succeeds or
// fails; an audit write failure is logged and never masks the outcome.
package mediator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rinkside-ai/rinkside/internal/fault"
	"github.com/rinkside-ai/rinkside/internal/model"
	"github.com/rinkside-ai/rinkside/internal/policy"
	"github.com/rinkside-ai/rinkside/internal/registry"
	"github.com/rinkside-ai/rinkside/internal/resolve"
	"github.com/rinkside-ai/rinkside/internal/storage"
	"github.com/rinkside-ai/rinkside/internal/telemetry"
)

// Audit operation names.
const (
	opGetObject     = "get_object"
	opQueryObjects  = "query_objects"
	opTraverseLink  = "traverse_link"
	opExecuteAction = "execute_action"
	opLoadSchema    = "load_schema"
	opPublishSchema = "publish_schema"
)

const auditWriteTimeout = 5 * time.Second

// ActionHandler executes one action type. The mediator validates input and
// enforces policy before the handler runs; the handler owns the side effect.
type ActionHandler func(ctx context.Context, actor policy.Actor, action *model.ActionType, input map[string]any) (model.Record, error)

// schemaRegistrar is implemented by resolvers that take table or file
// bindings from the schema.
type schemaRegistrar interface {
	RegisterSchema([]model.ObjectType)
}

// cacheInvalidator is implemented by resolvers that hold cached records.
type cacheInvalidator interface {
	InvalidateCache()
}

// Mediator composes the registry, policy engine, resolvers, and audit store.
type Mediator struct {
	registry *registry.Registry
	engine   *policy.Engine
	db       *storage.DB
	logger   *slog.Logger

	tracer     trace.Tracer
	opCount    metric.Int64Counter
	opDuration metric.Float64Histogram

	mu        sync.RWMutex
	resolvers map[string]resolve.Resolver
	handlers  map[string]ActionHandler
}

// New creates a mediator. Resolvers and action handlers are registered
// separately.
func New(reg *registry.Registry, engine *policy.Engine, db *storage.DB, logger *slog.Logger) *Mediator {
	meter := telemetry.Meter("rinkside/mediator")
	count, _ := meter.Int64Counter("rinkside.mediator.operations",
		metric.WithDescription("Mediated operations by outcome"),
	)
	dur, _ := meter.Float64Histogram("rinkside.mediator.duration",
		metric.WithDescription("Mediated operation duration (ms)"),
		metric.WithUnit("ms"),
	)
	return &Mediator{
		registry:   reg,
		engine:     engine,
		db:         db,
		logger:     logger.With("component", "mediator"),
		tracer:     telemetry.Tracer("rinkside/mediator"),
		opCount:    count,
		opDuration: dur,
		resolvers:  make(map[string]resolve.Resolver),
		handlers:   make(map[string]ActionHandler),
	}
}

// RegisterResolver makes r available for object types tagged with its
// backend.
func (m *Mediator) RegisterResolver(r resolve.Resolver) {
	m.mu.Lock()
	m.resolvers[r.Backend()] = r
	m.mu.Unlock()
}

// RegisterActionHandler binds the handler that executes the named action.
func (m *Mediator) RegisterActionHandler(name string, h ActionHandler) {
	m.mu.Lock()
	m.handlers[name] = h
	m.mu.Unlock()
}

func (m *Mediator) resolverFor(ot *model.ObjectType) (resolve.Resolver, error) {
	backend := ot.Backend()
	m.mu.RLock()
	r, ok := m.resolvers[backend]
	m.mu.RUnlock()
	if !ok {
		return nil, fault.Internal("no resolver registered for backend %s", backend)
	}
	return r, nil
}

func (m *Mediator) handlerFor(name string) (ActionHandler, bool) {
	m.mu.RLock()
	h, ok := m.handlers[name]
	m.mu.RUnlock()
	return h, ok
}

// decide resolves the named policy and evaluates access. A missing or empty
// policy reference evaluates against nil and denies.
func (m *Mediator) decide(ctx context.Context, actor policy.Actor, operation, targetKind, targetID, policyRef string) (policy.Decision, error) {
	var pol *model.SecurityPolicy
	if policyRef != "" {
		var err error
		pol, err = m.registry.GetSecurityPolicy(ctx, policyRef, "")
		if err != nil {
			return policy.Decision{}, err
		}
	}

	d := m.engine.EvaluateAccess(actor, operation, targetKind, targetID, pol)
	if !d.Allowed {
		return d, fault.Forbidden("%s", d.Reason)
	}
	return d, nil
}

// observe opens the operation span and hands back a closure that closes it
// and updates the instruments.
func (m *Mediator) observe(ctx context.Context, operation, targetType string) (context.Context, func(err error)) {
	ctx, span := m.tracer.Start(ctx, "mediator."+operation, trace.WithAttributes(
		attribute.String("rinkside.target_type", targetType),
	))
	start := time.Now()
	return ctx, func(err error) {
		attrs := metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.Bool("success", err == nil),
		)
		if m.opCount != nil {
			m.opCount.Add(ctx, 1, attrs)
		}
		if m.opDuration != nil {
			m.opDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000.0, attrs)
		}
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

// Audit records an operation dispatched outside the mediator, for callers
// that front other subsystems (clip extraction, cutting, index queries)
// with the same trail.
func (m *Mediator) Audit(ctx context.Context, actor policy.Actor, operation, targetType, targetID string, start time.Time, opErr error) {
	m.audit(ctx, actor, operation, targetType, targetID, start, opErr)
}

// audit writes one access record. The write is detached from the caller's
// cancellation so a timed-out operation still leaves its trace.
func (m *Mediator) audit(ctx context.Context, actor policy.Actor, operation, targetType, targetID string, start time.Time, opErr error) {
	entry := storage.AccessAuditEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Operation:  operation,
		TargetType: targetType,
		TargetID:   targetID,
		Success:    opErr == nil,
		ElapsedMS:  float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if opErr != nil {
		entry.Error = opErr.Error()
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	if err := m.db.InsertAccessAudit(actx, entry); err != nil {
		m.logger.Error("audit write failed",
			"operation", operation, "target_type", targetType, "error", err)
	}
}

// applyDecision narrows resolver output to what the decision permits: row
// filter first, then column filters per record.
func (m *Mediator) applyDecision(records []model.Record, d policy.Decision) []model.Record {
	if d.RowFilter != "" {
		records = resolve.ApplyRowFilter(records, d.RowFilter, m.logger)
	}
	if len(d.ColumnFilters) == 0 {
		return records
	}
	out := make([]model.Record, len(records))
	for i, rec := range records {
		out[i] = policy.ApplyColumnFilters(rec, d.ColumnFilters)
	}
	return out
}
