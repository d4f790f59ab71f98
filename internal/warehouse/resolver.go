// Package warehouse resolves schema objects against the SQL warehouse. The
// schema document addresses this backend by its "bigquery" tag; execution
// runs on the configured relational store through pgx.
package warehouse

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rinkside-ai/rinkside/internal/fault"
	"github.com/rinkside-ai/rinkside/internal/model"
	"github.com/rinkside-ai/rinkside/internal/resolve"
	"github.com/rinkside-ai/rinkside/internal/storage"
)

type binding struct {
	table string
	pk    string
}

// Resolver is the warehouse-backed implementation of resolve.Resolver. It
// keeps a registry of object-type table bindings; unregistered types fall
// back to naming conventions.
type Resolver struct {
	db     *storage.DB
	cfg    resolve.Config
	logger *slog.Logger

	mu       sync.RWMutex
	bindings map[string]binding
}

// New creates a warehouse resolver over db.
func New(db *storage.DB, cfg resolve.Config, logger *slog.Logger) *Resolver {
	return &Resolver{
		db:       db,
		cfg:      cfg.Normalize(),
		logger:   logger.With("component", "warehouse"),
		bindings: make(map[string]binding),
	}
}

// Backend returns the backend tag schema documents use for this resolver.
func (r *Resolver) Backend() string { return model.BackendWarehouse }

// RegisterSchema records table bindings for every object type the schema
// assigns to this backend. Later registrations replace earlier ones.
func (r *Resolver) RegisterSchema(objectTypes []model.ObjectType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range objectTypes {
		ot := &objectTypes[i]
		if ot.Backend() != model.BackendWarehouse {
			continue
		}
		r.bindings[ot.Name] = bindingFromType(ot)
	}
}

// RegisterBinding overrides the table binding for one object type.
func (r *Resolver) RegisterBinding(objectType, table, pkColumn string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[objectType] = binding{table: table, pk: pkColumn}
}

func (r *Resolver) bindingFor(ot *model.ObjectType) binding {
	r.mu.RLock()
	b, ok := r.bindings[ot.Name]
	r.mu.RUnlock()
	if ok {
		return b
	}
	return bindingFromType(ot)
}

func bindingFromType(ot *model.ObjectType) binding {
	b := binding{table: model.DefaultTableName(ot.Name), pk: ot.PrimaryKey}
	if b.pk == "" {
		b.pk = model.DefaultPKColumn(ot.Name)
	}
	if ot.Resolver != nil {
		if t := ot.Resolver.ConfigString("table"); t != "" {
			b.table = t
		}
		if c := ot.Resolver.ConfigString("primary_key_column"); c != "" {
			b.pk = c
		}
	}
	return b
}

// GetByID fetches a single record by primary key, or (nil, nil) when no row
// matches.
func (r *Resolver) GetByID(ctx context.Context, objectType *model.ObjectType, id string, projection []string) (model.Record, error) {
	b := r.bindingFor(objectType)
	query, err := buildGetByID(b.table, b.pk, projection)
	if err != nil {
		return nil, err
	}

	records, err := r.collect(ctx, query, id)
	if err != nil {
		return nil, fault.Backend(err, "warehouse: get %s %s", objectType.Name, id)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// GetByFilter fetches records matching every filter conjunctively.
func (r *Resolver) GetByFilter(ctx context.Context, objectType *model.ObjectType, filters map[string]any, projection []string, limit, offset int) ([]model.Record, error) {
	b := r.bindingFor(objectType)
	query, params, err := buildGetByFilter(b.table, filters, projection, r.cfg.ClampLimit(limit), offset)
	if err != nil {
		return nil, err
	}

	records, err := r.collect(ctx, query, params...)
	if err != nil {
		return nil, fault.Backend(err, "warehouse: query %s", objectType.Name)
	}
	return records, nil
}

// TraverseLink walks a link from fromID to target records. Foreign-key
// links reduce to a filter on the target; join-table links run the join.
func (r *Resolver) TraverseLink(ctx context.Context, link *model.LinkType, fromID string, toType *model.ObjectType, projection []string, limit int) ([]model.Record, error) {
	switch link.Resolver.Type {
	case model.LinkForeignKey:
		if link.Resolver.ToField == "" {
			return nil, fault.InvalidRequest("warehouse: link %s has no to_field", link.Name)
		}
		return r.GetByFilter(ctx, toType, map[string]any{link.Resolver.ToField: fromID}, projection, limit, 0)

	case model.LinkJoinTable:
		if link.Resolver.Table == "" || link.Resolver.FromField == "" || link.Resolver.ToField == "" {
			return nil, fault.InvalidRequest("warehouse: link %s join config incomplete", link.Name)
		}
		b := r.bindingFor(toType)
		query, err := buildJoinQuery(b.table, b.pk, link.Resolver.Table, link.Resolver.FromField, link.Resolver.ToField, projection, r.cfg.ClampLimit(limit))
		if err != nil {
			return nil, err
		}
		records, err := r.collect(ctx, query, fromID)
		if err != nil {
			return nil, fault.Backend(err, "warehouse: traverse %s from %s", link.Name, fromID)
		}
		return records, nil

	default:
		return nil, fault.InvalidRequest("warehouse: link %s has unknown resolver type %q", link.Name, link.Resolver.Type)
	}
}

// collect runs one query and scans all rows into records, retrying when the
// failure is safe to retry.
func (r *Resolver) collect(ctx context.Context, query string, params ...any) ([]model.Record, error) {
	var records []model.Record
	err := resolve.Retry(ctx, r.cfg, retriable, func() error {
		rows, err := r.db.Pool().Query(ctx, query, params...)
		if err != nil {
			return err
		}
		maps, err := pgx.CollectRows(rows, pgx.RowToMap)
		if err != nil {
			return err
		}
		records = make([]model.Record, len(maps))
		for i, m := range maps {
			records[i] = model.Record(m)
		}
		return nil
	})
	return records, err
}

// retriable limits retries to failures where the statement may not have
// reached the server, plus serialization conflicts.
func retriable(err error) bool {
	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
