package mediator

import (
	"context"
	"time"

	"github.com/rinkside-ai/rinkside/internal/fault"
	"github.com/rinkside-ai/rinkside/internal/model"
	"github.com/rinkside-ai/rinkside/internal/policy"
	"github.com/rinkside-ai/rinkside/internal/resolve"
)

// GetObject fetches one record by id under policy. A row excluded by the
// decision's row filter reports not-found, the same as a missing id.
func (m *Mediator) GetObject(ctx context.Context, actor policy.Actor, objectTypeName, id string, projection []string) (model.Record, error) {
	ctx, finish := m.observe(ctx, opGetObject, objectTypeName)
	start := time.Now()
	rec, err := m.getObject(ctx, actor, objectTypeName, id, projection)
	m.audit(ctx, actor, opGetObject, objectTypeName, id, start, err)
	finish(err)
	return rec, err
}

func (m *Mediator) getObject(ctx context.Context, actor policy.Actor, objectTypeName, id string, projection []string) (model.Record, error) {
	ot, err := m.registry.GetObjectType(ctx, objectTypeName, "")
	if err != nil {
		return nil, err
	}
	if ot == nil {
		return nil, fault.NotFound("object type %s not found", objectTypeName)
	}

	decision, err := m.decide(ctx, actor, model.OpRead, "object", id, ot.PolicyRef)
	if err != nil {
		return nil, err
	}

	r, err := m.resolverFor(ot)
	if err != nil {
		return nil, err
	}

	rec, err := fetchByID(ctx, r, ot, id, projection)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fault.NotFound("%s %s not found", ot.Name, id)
	}

	filtered := m.applyDecision([]model.Record{rec}, decision)
	if len(filtered) == 0 {
		return nil, fault.NotFound("%s %s not found", ot.Name, id)
	}
	return filtered[0], nil
}

// QueryObjects lists records matching filters under policy.
func (m *Mediator) QueryObjects(ctx context.Context, actor policy.Actor, objectTypeName string, filters map[string]any, projection []string, limit, offset int) ([]model.Record, error) {
	ctx, finish := m.observe(ctx, opQueryObjects, objectTypeName)
	start := time.Now()
	recs, err := m.queryObjects(ctx, actor, objectTypeName, filters, projection, limit, offset)
	m.audit(ctx, actor, opQueryObjects, objectTypeName, "", start, err)
	finish(err)
	return recs, err
}

func (m *Mediator) queryObjects(ctx context.Context, actor policy.Actor, objectTypeName string, filters map[string]any, projection []string, limit, offset int) ([]model.Record, error) {
	ot, err := m.registry.GetObjectType(ctx, objectTypeName, "")
	if err != nil {
		return nil, err
	}
	if ot == nil {
		return nil, fault.NotFound("object type %s not found", objectTypeName)
	}

	decision, err := m.decide(ctx, actor, model.OpList, "object", "", ot.PolicyRef)
	if err != nil {
		return nil, err
	}

	r, err := m.resolverFor(ot)
	if err != nil {
		return nil, err
	}

	recs, err := r.GetByFilter(ctx, ot, filters, projection, limit, offset)
	if err != nil {
		return nil, err
	}
	return m.applyDecision(recs, decision), nil
}

// TraverseLink walks the named link from fromID and returns target records
// under the target type's policy.
func (m *Mediator) TraverseLink(ctx context.Context, actor policy.Actor, linkName, fromID string, projection []string, limit int) ([]model.Record, error) {
	ctx, finish := m.observe(ctx, opTraverseLink, linkName)
	start := time.Now()
	recs, err := m.traverseLink(ctx, actor, linkName, fromID, projection, limit)
	m.audit(ctx, actor, opTraverseLink, linkName, fromID, start, err)
	finish(err)
	return recs, err
}

func (m *Mediator) traverseLink(ctx context.Context, actor policy.Actor, linkName, fromID string, projection []string, limit int) ([]model.Record, error) {
	link, err := m.registry.GetLinkType(ctx, linkName, "")
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, fault.NotFound("link type %s not found", linkName)
	}

	toType, err := m.registry.GetObjectType(ctx, link.ToObject, "")
	if err != nil {
		return nil, err
	}
	if toType == nil {
		return nil, fault.NotFound("link %s target type %s not found", linkName, link.ToObject)
	}

	decision, err := m.decide(ctx, actor, model.OpRead, "link", fromID, toType.PolicyRef)
	if err != nil {
		return nil, err
	}

	r, err := m.resolverFor(toType)
	if err != nil {
		return nil, err
	}

	recs, err := r.TraverseLink(ctx, link, fromID, toType, projection, limit)
	if err != nil {
		return nil, err
	}
	return m.applyDecision(recs, decision), nil
}

// fetchByID prefers the cached read path when the resolver carries one.
func fetchByID(ctx context.Context, r resolve.Resolver, ot *model.ObjectType, id string, projection []string) (model.Record, error) {
	if cr, ok := r.(*resolve.CachingResolver); ok {
		return cr.GetByIDCached(ctx, ot, id, projection)
	}
	return r.GetByID(ctx, ot, id, projection)
}
