// Package registry persists schema versions and serves metadata lookups.
// At most one version is active at a time; publishing flips the flag in a
// single transaction. Lookups against the active version go through a small
// in-process cache that is invalidated on every publish. No behaviour
// depends on cache residency.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rinkside-ai/rinkside/internal/fault"
	"github.com/rinkside-ai/rinkside/internal/model"
	"github.com/rinkside-ai/rinkside/internal/schemadoc"
	"github.com/rinkside-ai/rinkside/internal/storage"
)

const (
	publishRetries   = 3
	publishBaseDelay = 50 * time.Millisecond
)

// Registry is the schema registry.
type Registry struct {
	db     *storage.DB
	logger *slog.Logger

	mu     sync.RWMutex
	active *model.SchemaVersion
}

// New creates a Registry backed by db.
func New(db *storage.DB, logger *slog.Logger) *Registry {
	return &Registry{db: db, logger: logger.With("component", "registry")}
}

// LoadFromDocument validates a schema document, converts it, and writes the
// version with all owned entities in a single transaction. The version lands
// in draft state. Validation issues are always returned, including warnings
// on success.
func (r *Registry) LoadFromDocument(ctx context.Context, doc *schemadoc.Document, actor string) (model.SchemaVersion, []schemadoc.Issue, error) {
	bundle, issues, err := schemadoc.Build(doc)
	if err != nil {
		return model.SchemaVersion{}, issues, err
	}

	var created model.SchemaVersion
	err = storage.WithRetry(ctx, publishRetries, publishBaseDelay, func() error {
		var inner error
		created, inner = r.db.CreateVersion(ctx, bundle, actor)
		return inner
	})
	if errors.Is(err, storage.ErrDuplicateVersion) {
		return model.SchemaVersion{}, issues, fault.Conflict("version %s already exists", bundle.Version.Version)
	}
	if err != nil {
		return model.SchemaVersion{}, issues, fault.Backend(err, "load schema version %s", bundle.Version.Version)
	}

	r.logger.Info("schema version loaded",
		"version", created.Version,
		"object_types", len(bundle.ObjectTypes),
		"link_types", len(bundle.LinkTypes),
		"action_types", len(bundle.ActionTypes),
		"policies", len(bundle.Policies),
		"actor", actor)
	return created, issues, nil
}

// Publish transitions a draft version to published, deactivating the
// previous active version in the same transaction, and invalidates the
// active-version cache.
func (r *Registry) Publish(ctx context.Context, version, actor string) (model.SchemaVersion, error) {
	var published model.SchemaVersion
	err := storage.WithRetry(ctx, publishRetries, publishBaseDelay, func() error {
		var inner error
		published, inner = r.db.PublishVersion(ctx, version)
		return inner
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return model.SchemaVersion{}, fault.NotFound("schema version %q does not exist", version)
	case errors.Is(err, storage.ErrNotDraft):
		return model.SchemaVersion{}, fault.Conflict("version %s is not in draft state", version)
	case err != nil:
		return model.SchemaVersion{}, fault.Backend(err, "publish schema version %s", version)
	}

	r.mu.Lock()
	r.active = nil
	r.mu.Unlock()

	r.logger.Info("schema version published", "version", published.Version, "actor", actor)
	return published, nil
}

// GetActive returns the single active version, or nil when none exists.
func (r *Registry) GetActive(ctx context.Context) (*model.SchemaVersion, error) {
	r.mu.RLock()
	cached := r.active
	r.mu.RUnlock()
	if cached != nil {
		v := *cached
		return &v, nil
	}

	v, err := r.db.GetActiveVersion(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fault.Backend(err, "get active schema version")
	}

	r.mu.Lock()
	r.active = &v
	r.mu.Unlock()
	out := v
	return &out, nil
}

// InvalidateCache drops the cached active version. Publish does this
// automatically; callers only need it when the database changes underneath
// the process.
func (r *Registry) InvalidateCache() {
	r.mu.Lock()
	r.active = nil
	r.mu.Unlock()
}

// ListVersions returns all schema versions, newest first.
func (r *Registry) ListVersions(ctx context.Context) ([]model.SchemaVersion, error) {
	versions, err := r.db.ListVersions(ctx)
	if err != nil {
		return nil, fault.Backend(err, "list schema versions")
	}
	return versions, nil
}

// GetVersion returns the named version, or nil when it does not exist.
func (r *Registry) GetVersion(ctx context.Context, version string) (*model.SchemaVersion, error) {
	v, err := r.db.GetVersion(ctx, version)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fault.Backend(err, "get schema version %s", version)
	}
	return &v, nil
}

// resolveVersion maps an optional version string to a stored version. The
// empty string selects the active version. Returns nil when no version
// matches.
func (r *Registry) resolveVersion(ctx context.Context, version string) (*model.SchemaVersion, error) {
	if version == "" {
		return r.GetActive(ctx)
	}
	return r.GetVersion(ctx, version)
}

// GetObjectType returns the named object type from the given version (""
// selects the active version). Returns nil when the version or the name does
// not exist.
func (r *Registry) GetObjectType(ctx context.Context, name, version string) (*model.ObjectType, error) {
	v, err := r.resolveVersion(ctx, version)
	if err != nil || v == nil {
		return nil, err
	}
	ot, err := r.db.GetObjectType(ctx, v.ID, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fault.Backend(err, "get object type %s", name)
	}
	return ot, nil
}

// GetLinkType returns the named link type, or nil. Empty version selects the
// active version.
func (r *Registry) GetLinkType(ctx context.Context, name, version string) (*model.LinkType, error) {
	v, err := r.resolveVersion(ctx, version)
	if err != nil || v == nil {
		return nil, err
	}
	lt, err := r.db.GetLinkType(ctx, v.ID, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fault.Backend(err, "get link type %s", name)
	}
	return lt, nil
}

// GetActionType returns the named action type, or nil. Empty version selects
// the active version.
func (r *Registry) GetActionType(ctx context.Context, name, version string) (*model.ActionType, error) {
	v, err := r.resolveVersion(ctx, version)
	if err != nil || v == nil {
		return nil, err
	}
	at, err := r.db.GetActionType(ctx, v.ID, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fault.Backend(err, "get action type %s", name)
	}
	return at, nil
}

// GetSecurityPolicy returns the named policy with rules in evaluation order,
// or nil. Empty version selects the active version.
func (r *Registry) GetSecurityPolicy(ctx context.Context, name, version string) (*model.SecurityPolicy, error) {
	v, err := r.resolveVersion(ctx, version)
	if err != nil || v == nil {
		return nil, err
	}
	sp, err := r.db.GetSecurityPolicy(ctx, v.ID, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fault.Backend(err, "get security policy %s", name)
	}
	return sp, nil
}

// GetAllObjectTypes returns every object type in the given version (""
// selects the active version). Empty when no version matches.
func (r *Registry) GetAllObjectTypes(ctx context.Context, version string) ([]model.ObjectType, error) {
	v, err := r.resolveVersion(ctx, version)
	if err != nil || v == nil {
		return nil, err
	}
	objects, err := r.db.GetAllObjectTypes(ctx, v.ID)
	if err != nil {
		return nil, fault.Backend(err, "list object types")
	}
	return objects, nil
}

// GetAllLinkTypes returns every link type in the given version. Empty when
// no version matches.
func (r *Registry) GetAllLinkTypes(ctx context.Context, version string) ([]model.LinkType, error) {
	v, err := r.resolveVersion(ctx, version)
	if err != nil || v == nil {
		return nil, err
	}
	links, err := r.db.GetAllLinkTypes(ctx, v.ID)
	if err != nil {
		return nil, fault.Backend(err, "list link types")
	}
	return links, nil
}

// ValidateDocument parses and validates raw document bytes without touching
// the database.
func ValidateDocument(data []byte) ([]schemadoc.Issue, error) {
	doc, err := schemadoc.ParseDocument(data)
	if err != nil {
		return nil, fault.InvalidRequest("schema document is not valid YAML: %v", err)
	}
	return schemadoc.Validate(doc), nil
}
