// Package columnar resolves schema objects from parquet files under a
// configured data root. The schema document addresses this backend by its
// "parquet" tag.
package columnar

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/rinkside-ai/rinkside/internal/fault"
	"github.com/rinkside-ai/rinkside/internal/model"
	"github.com/rinkside-ai/rinkside/internal/resolve"
)

type binding struct {
	path string
	pk   string
}

// Resolver reads object records from column files. Files are opened per
// query; the resolver itself is stateless beyond its bindings.
type Resolver struct {
	root   string
	cfg    resolve.Config
	logger *slog.Logger

	mu       sync.RWMutex
	bindings map[string]binding
}

// New creates a columnar resolver rooted at dataRoot.
func New(dataRoot string, cfg resolve.Config, logger *slog.Logger) *Resolver {
	return &Resolver{
		root:     dataRoot,
		cfg:      cfg.Normalize(),
		logger:   logger.With("component", "columnar"),
		bindings: make(map[string]binding),
	}
}

// Backend returns the backend tag schema documents use for this resolver.
func (r *Resolver) Backend() string { return model.BackendColumnar }

// RegisterSchema records file bindings for every object type the schema
// assigns to this backend.
func (r *Resolver) RegisterSchema(objectTypes []model.ObjectType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range objectTypes {
		ot := &objectTypes[i]
		if ot.Backend() != model.BackendColumnar {
			continue
		}
		r.bindings[ot.Name] = r.bindingFromType(ot)
	}
}

func (r *Resolver) bindingFor(ot *model.ObjectType) binding {
	r.mu.RLock()
	b, ok := r.bindings[ot.Name]
	r.mu.RUnlock()
	if ok {
		return b
	}
	return r.bindingFromType(ot)
}

func (r *Resolver) bindingFromType(ot *model.ObjectType) binding {
	b := binding{
		path: filepath.Join(r.root, "analytics", model.SnakeCase(ot.Name)+".parquet"),
		pk:   ot.PrimaryKey,
	}
	if b.pk == "" {
		b.pk = model.DefaultPKColumn(ot.Name)
	}
	if ot.Resolver != nil {
		if p := ot.Resolver.ConfigString("path"); p != "" {
			if filepath.IsAbs(p) {
				b.path = p
			} else {
				b.path = filepath.Join(r.root, p)
			}
		}
		if c := ot.Resolver.ConfigString("primary_key_column"); c != "" {
			b.pk = c
		}
	}
	return b
}

// GetByID scans the object's file for the first row whose primary key
// matches id. The projection always includes the primary-key column.
func (r *Resolver) GetByID(ctx context.Context, objectType *model.ObjectType, id string, projection []string) (model.Record, error) {
	b := r.bindingFor(objectType)

	var found model.Record
	err := scanFile(ctx, b.path, func(rec model.Record) bool {
		if stringValue(rec[b.pk]) == id {
			found = rec
			return false
		}
		return true
	})
	if err != nil {
		return nil, fault.Backend(err, "columnar: get %s %s", objectType.Name, id)
	}
	if found == nil {
		return nil, nil
	}
	return projectRecord(found, projection, b.pk), nil
}

// GetByFilter scans the object's file applying scalar equality filters
// during the scan and list filters afterwards. Offset and limit apply after
// filtering.
func (r *Resolver) GetByFilter(ctx context.Context, objectType *model.ObjectType, filters map[string]any, projection []string, limit, offset int) ([]model.Record, error) {
	b := r.bindingFor(objectType)
	limit = r.cfg.ClampLimit(limit)

	scalars, lists := splitFilters(filters)

	var matched []model.Record
	err := scanFile(ctx, b.path, func(rec model.Record) bool {
		if !matchScalars(rec, scalars) || !matchLists(rec, lists) {
			return true
		}
		matched = append(matched, rec)
		// Keep scanning until offset+limit rows matched; later rows cannot
		// change the selected window.
		return len(matched) < offset+limit
	})
	if err != nil {
		return nil, fault.Backend(err, "columnar: query %s", objectType.Name)
	}

	if offset > 0 {
		if offset >= len(matched) {
			return []model.Record{}, nil
		}
		matched = matched[offset:]
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]model.Record, len(matched))
	for i, rec := range matched {
		out[i] = projectRecord(rec, projection, b.pk)
	}
	return out, nil
}

// TraverseLink supports foreign-key links only; join tables have no columnar
// representation and return empty.
func (r *Resolver) TraverseLink(ctx context.Context, link *model.LinkType, fromID string, toType *model.ObjectType, projection []string, limit int) ([]model.Record, error) {
	switch link.Resolver.Type {
	case model.LinkForeignKey:
		if link.Resolver.ToField == "" {
			return nil, fault.InvalidRequest("columnar: link %s has no to_field", link.Name)
		}
		return r.GetByFilter(ctx, toType, map[string]any{link.Resolver.ToField: fromID}, projection, limit, 0)

	case model.LinkJoinTable:
		r.logger.Warn("join_table traversal unsupported on columnar backend",
			"link", link.Name, "from_id", fromID)
		return []model.Record{}, nil

	default:
		return nil, fault.InvalidRequest("columnar: link %s has unknown resolver type %q", link.Name, link.Resolver.Type)
	}
}

func splitFilters(filters map[string]any) (scalars map[string]string, lists map[string][]string) {
	scalars = make(map[string]string)
	lists = make(map[string][]string)
	for k, v := range filters {
		switch x := v.(type) {
		case []any:
			vals := make([]string, len(x))
			for i, it := range x {
				vals[i] = stringValue(it)
			}
			lists[k] = vals
		case []string:
			lists[k] = x
		default:
			scalars[k] = stringValue(v)
		}
	}
	return scalars, lists
}

func matchScalars(rec model.Record, scalars map[string]string) bool {
	for k, want := range scalars {
		v, ok := rec[k]
		if !ok || stringValue(v) != want {
			return false
		}
	}
	return true
}

func matchLists(rec model.Record, lists map[string][]string) bool {
	for k, wants := range lists {
		v, ok := rec[k]
		if !ok {
			return false
		}
		got := stringValue(v)
		hit := false
		for _, want := range wants {
			if got == want {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// projectRecord narrows rec to the projection, always keeping the primary
// key so callers can re-identify rows.
func projectRecord(rec model.Record, projection []string, pk string) model.Record {
	if len(projection) == 0 {
		return rec
	}
	out := make(model.Record, len(projection)+1)
	if v, ok := rec[pk]; ok {
		out[pk] = v
	}
	for _, col := range projection {
		if v, ok := rec[col]; ok {
			out[col] = v
		}
	}
	return out
}
