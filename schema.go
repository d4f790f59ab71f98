package rinkside

import (
	"context"

	"github.com/rinkside-ai/rinkside/internal/schemadoc"
)

// ValidateSchema parses and validates an authored YAML schema document
// without touching the database. Findings come back in document order;
// an error means the document was not even parseable.
func (c *Core) ValidateSchema(doc []byte) ([]SchemaIssue, error) {
	parsed, err := schemadoc.ParseDocument(doc)
	if err != nil {
		return nil, err
	}
	return toPublicIssues(schemadoc.Validate(parsed)), nil
}

// LoadSchema ingests a schema document as a new draft version. Warnings
// load with issues attached; error-severity findings reject the load.
func (c *Core) LoadSchema(ctx context.Context, actor Actor, doc []byte) (SchemaVersion, []SchemaIssue, error) {
	parsed, err := schemadoc.ParseDocument(doc)
	if err != nil {
		return SchemaVersion{}, nil, err
	}
	sv, issues, err := c.mediator.LoadSchema(ctx, fromPublicActor(actor), parsed, parsed.SchemaVersion)
	return toPublicVersion(sv), toPublicIssues(issues), err
}

// PublishSchema activates a draft version. At most one version is active;
// the previous active version is deprecated in the same transaction, and
// every derived cache is flushed.
func (c *Core) PublishSchema(ctx context.Context, actor Actor, version string) (SchemaVersion, error) {
	sv, err := c.mediator.PublishSchema(ctx, fromPublicActor(actor), version)
	return toPublicVersion(sv), err
}

// ActiveSchema returns the active schema version, or nil when none has
// been published yet.
func (c *Core) ActiveSchema(ctx context.Context) (*SchemaVersion, error) {
	sv, err := c.registry.GetActive(ctx)
	if err != nil || sv == nil {
		return nil, err
	}
	pub := toPublicVersion(*sv)
	return &pub, nil
}

// ListSchemaVersions returns all schema versions, newest first.
func (c *Core) ListSchemaVersions(ctx context.Context) ([]SchemaVersion, error) {
	versions, err := c.registry.ListVersions(ctx)
	if err != nil {
		return nil, err
	}
	return toPublicVersions(versions), nil
}

// ListObjectTypes returns the object types of a schema version. The empty
// version selects the active one.
func (c *Core) ListObjectTypes(ctx context.Context, version string) ([]ObjectType, error) {
	objectTypes, err := c.registry.GetAllObjectTypes(ctx, version)
	if err != nil {
		return nil, err
	}
	out := make([]ObjectType, len(objectTypes))
	for i, ot := range objectTypes {
		out[i] = toPublicObjectType(ot)
	}
	return out, nil
}

// ListLinkTypes returns the link types of a schema version. The empty
// version selects the active one.
func (c *Core) ListLinkTypes(ctx context.Context, version string) ([]LinkType, error) {
	linkTypes, err := c.registry.GetAllLinkTypes(ctx, version)
	if err != nil {
		return nil, err
	}
	out := make([]LinkType, len(linkTypes))
	for i, lt := range linkTypes {
		out[i] = toPublicLinkType(lt)
	}
	return out, nil
}
