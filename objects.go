package rinkside

import "context"

// GetObject fetches one object by primary key, subject to the actor's
// policy. Column filters are applied before the record is returned; a
// row-filtered object reads as not found rather than forbidden.
func (c *Core) GetObject(ctx context.Context, actor Actor, objectType, id string, projection []string) (Record, error) {
	return c.mediator.GetObject(ctx, fromPublicActor(actor), objectType, id, projection)
}

// QueryObjects lists objects matching equality filters, subject to the
// actor's policy. Limit is clamped to the resolver row cap.
func (c *Core) QueryObjects(ctx context.Context, actor Actor, objectType string, filters map[string]any, projection []string, limit, offset int) ([]Record, error) {
	return c.mediator.QueryObjects(ctx, fromPublicActor(actor), objectType, filters, projection, limit, offset)
}

// TraverseLink follows a named link from one object, subject to the
// actor's policy on the target type.
func (c *Core) TraverseLink(ctx context.Context, actor Actor, link, fromID string, projection []string, limit int) ([]Record, error) {
	return c.mediator.TraverseLink(ctx, fromPublicActor(actor), link, fromID, projection, limit)
}

// ExecuteAction validates input against the action's schema, checks the
// actor's policy, and invokes the registered handler under the action's
// timeout.
func (c *Core) ExecuteAction(ctx context.Context, actor Actor, action string, input map[string]any) (Record, error) {
	return c.mediator.ExecuteAction(ctx, fromPublicActor(actor), action, input)
}
