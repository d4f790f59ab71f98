package mediator

import (
	"context"
	"time"

	"github.com/rinkside-ai/rinkside/internal/model"
	"github.com/rinkside-ai/rinkside/internal/policy"
	"github.com/rinkside-ai/rinkside/internal/schemadoc"
)

// LoadSchema ingests a schema document as a new draft version, with audit.
func (m *Mediator) LoadSchema(ctx context.Context, actor policy.Actor, doc *schemadoc.Document, version string) (model.SchemaVersion, []schemadoc.Issue, error) {
	start := time.Now()
	sv, issues, err := m.registry.LoadFromDocument(ctx, doc, actor.ID)
	m.audit(ctx, actor, opLoadSchema, "schema_version", version, start, err)
	return sv, issues, err
}

// PublishSchema activates a draft version, then flushes every derived
// cache: policy decisions and resolver records reflect the old schema, and
// resolvers re-read their table and file bindings from the new one.
func (m *Mediator) PublishSchema(ctx context.Context, actor policy.Actor, version string) (model.SchemaVersion, error) {
	start := time.Now()
	sv, err := m.registry.Publish(ctx, version, actor.ID)
	m.audit(ctx, actor, opPublishSchema, "schema_version", version, start, err)
	if err != nil {
		return sv, err
	}

	m.engine.InvalidateCache()
	m.refreshResolvers(ctx)
	return sv, nil
}

func (m *Mediator) refreshResolvers(ctx context.Context) {
	objectTypes, err := m.registry.GetAllObjectTypes(ctx, "")
	if err != nil {
		m.logger.Warn("resolver binding refresh failed", "error", err)
		objectTypes = nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.resolvers {
		if inv, ok := r.(cacheInvalidator); ok {
			inv.InvalidateCache()
		}
		if reg, ok := r.(schemaRegistrar); ok && objectTypes != nil {
			reg.RegisterSchema(objectTypes)
		}
	}
}
