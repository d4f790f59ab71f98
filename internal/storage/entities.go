package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rinkside-ai/rinkside/internal/model"
)

func insertObjectTypeTx(ctx context.Context, tx pgx.Tx, versionID uuid.UUID, ot *model.ObjectType) error {
	objID := uuid.New()
	if _, err := tx.Exec(ctx,
		`INSERT INTO oms.object_types (id, version_id, name, description, primary_key, policy_ref)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		objID, versionID, ot.Name, ot.Description, ot.PrimaryKey, ot.PolicyRef,
	); err != nil {
		return fmt.Errorf("storage: insert object type %s: %w", ot.Name, err)
	}

	for i, p := range ot.Properties {
		var defaultJSON []byte
		if p.Default != nil {
			var err error
			defaultJSON, err = json.Marshal(p.Default)
			if err != nil {
				return fmt.Errorf("storage: marshal default for %s.%s: %w", ot.Name, p.Name, err)
			}
		}
		var constraintsJSON []byte
		if p.Constraints != nil {
			var err error
			constraintsJSON, err = json.Marshal(p.Constraints)
			if err != nil {
				return fmt.Errorf("storage: marshal constraints for %s.%s: %w", ot.Name, p.Name, err)
			}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO oms.properties (id, object_type_id, name, type, required, enum_values, default_value, description, constraints, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9::jsonb, $10)`,
			uuid.New(), objID, p.Name, string(p.Type), p.Required, p.Enum,
			defaultJSON, p.Description, constraintsJSON, i,
		); err != nil {
			return fmt.Errorf("storage: insert property %s.%s: %w", ot.Name, p.Name, err)
		}
	}

	if ot.Resolver != nil {
		cfg := ot.Resolver.Config
		if cfg == nil {
			cfg = map[string]any{}
		}
		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("storage: marshal resolver config for %s: %w", ot.Name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO oms.resolver_bindings (id, object_type_id, backend, config)
			 VALUES ($1, $2, $3, $4::jsonb)`,
			uuid.New(), objID, ot.Resolver.Backend, cfgJSON,
		); err != nil {
			return fmt.Errorf("storage: insert resolver binding for %s: %w", ot.Name, err)
		}
	}
	return nil
}

func insertLinkTypeTx(ctx context.Context, tx pgx.Tx, versionID uuid.UUID, lt *model.LinkType) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO oms.link_types (id, version_id, name, description, from_object, to_object, cardinality, resolver_type, from_field, to_field, join_table)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.New(), versionID, lt.Name, lt.Description, lt.FromObject, lt.ToObject,
		string(lt.Cardinality), string(lt.Resolver.Type), lt.Resolver.FromField,
		lt.Resolver.ToField, lt.Resolver.Table,
	); err != nil {
		return fmt.Errorf("storage: insert link type %s: %w", lt.Name, err)
	}
	return nil
}

func insertActionTypeTx(ctx context.Context, tx pgx.Tx, versionID uuid.UUID, at *model.ActionType) error {
	var schemaJSON []byte
	if at.InputSchema != nil {
		var err error
		schemaJSON, err = json.Marshal(at.InputSchema)
		if err != nil {
			return fmt.Errorf("storage: marshal input schema for %s: %w", at.Name, err)
		}
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO oms.action_types (id, version_id, name, description, input_schema, preconditions, effects, policy_ref, timeout_seconds, idempotent)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, $10)`,
		uuid.New(), versionID, at.Name, at.Description, schemaJSON,
		at.Preconditions, at.Effects, at.PolicyRef, at.EffectiveTimeout(), at.Idempotent,
	); err != nil {
		return fmt.Errorf("storage: insert action type %s: %w", at.Name, err)
	}
	return nil
}

func insertPolicyTx(ctx context.Context, tx pgx.Tx, versionID uuid.UUID, sp *model.SecurityPolicy) error {
	polID := uuid.New()
	if _, err := tx.Exec(ctx,
		`INSERT INTO oms.security_policies (id, version_id, name, target, target_ref)
		 VALUES ($1, $2, $3, $4, $5)`,
		polID, versionID, sp.Name, string(sp.Target), sp.TargetRef,
	); err != nil {
		return fmt.Errorf("storage: insert security policy %s: %w", sp.Name, err)
	}

	for i, r := range sp.Rules {
		if _, err := tx.Exec(ctx,
			`INSERT INTO oms.policy_rules (id, policy_id, role, access, scope, column_filters, row_filter, conditions, priority, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			uuid.New(), polID, r.Role, string(r.Access), string(r.Scope),
			r.ColumnFilters, r.RowFilter, r.Conditions, r.Priority, i,
		); err != nil {
			return fmt.Errorf("storage: insert rule %d of policy %s: %w", i, sp.Name, err)
		}
	}
	return nil
}

// GetObjectType returns the named object type within a version, including
// its properties (declaration order) and resolver binding. ErrNotFound when
// absent.
func (db *DB) GetObjectType(ctx context.Context, versionID uuid.UUID, name string) (*model.ObjectType, error) {
	var objID uuid.UUID
	ot := &model.ObjectType{}
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, description, primary_key, policy_ref
		 FROM oms.object_types WHERE version_id = $1 AND name = $2`,
		versionID, name,
	).Scan(&objID, &ot.Name, &ot.Description, &ot.PrimaryKey, &ot.PolicyRef)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get object type %s: %w", name, err)
	}

	ot.Properties, err = db.loadProperties(ctx, objID)
	if err != nil {
		return nil, err
	}
	ot.Resolver, err = db.loadResolverBinding(ctx, objID)
	if err != nil {
		return nil, err
	}
	return ot, nil
}

// GetAllObjectTypes returns every object type in a version, ordered by name.
func (db *DB) GetAllObjectTypes(ctx context.Context, versionID uuid.UUID) ([]model.ObjectType, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, name, description, primary_key, policy_ref
		 FROM oms.object_types WHERE version_id = $1 ORDER BY name`,
		versionID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list object types: %w", err)
	}
	defer rows.Close()

	var objIDs []uuid.UUID
	var out []model.ObjectType
	for rows.Next() {
		var objID uuid.UUID
		var ot model.ObjectType
		if err := rows.Scan(&objID, &ot.Name, &ot.Description, &ot.PrimaryKey, &ot.PolicyRef); err != nil {
			return nil, fmt.Errorf("storage: scan object type: %w", err)
		}
		objIDs = append(objIDs, objID)
		out = append(out, ot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, objID := range objIDs {
		out[i].Properties, err = db.loadProperties(ctx, objID)
		if err != nil {
			return nil, err
		}
		out[i].Resolver, err = db.loadResolverBinding(ctx, objID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (db *DB) loadProperties(ctx context.Context, objectTypeID uuid.UUID) ([]model.Property, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT name, type, required, enum_values, default_value, description, constraints
		 FROM oms.properties WHERE object_type_id = $1 ORDER BY position`,
		objectTypeID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load properties: %w", err)
	}
	defer rows.Close()

	var out []model.Property
	for rows.Next() {
		var p model.Property
		var ptype string
		var defaultJSON, constraintsJSON []byte
		if err := rows.Scan(&p.Name, &ptype, &p.Required, &p.Enum, &defaultJSON, &p.Description, &constraintsJSON); err != nil {
			return nil, fmt.Errorf("storage: scan property: %w", err)
		}
		p.Type = model.PropertyType(ptype)
		if len(defaultJSON) > 0 {
			if err := json.Unmarshal(defaultJSON, &p.Default); err != nil {
				return nil, fmt.Errorf("storage: decode property default: %w", err)
			}
		}
		if len(constraintsJSON) > 0 {
			if err := json.Unmarshal(constraintsJSON, &p.Constraints); err != nil {
				return nil, fmt.Errorf("storage: decode property constraints: %w", err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) loadResolverBinding(ctx context.Context, objectTypeID uuid.UUID) (*model.ResolverBinding, error) {
	var backend string
	var cfgJSON []byte
	err := db.pool.QueryRow(ctx,
		`SELECT backend, config FROM oms.resolver_bindings WHERE object_type_id = $1`,
		objectTypeID,
	).Scan(&backend, &cfgJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load resolver binding: %w", err)
	}

	rb := &model.ResolverBinding{Backend: backend}
	if len(cfgJSON) > 0 {
		if err := json.Unmarshal(cfgJSON, &rb.Config); err != nil {
			return nil, fmt.Errorf("storage: decode resolver config: %w", err)
		}
	}
	return rb, nil
}

// GetLinkType returns the named link type within a version, or ErrNotFound.
func (db *DB) GetLinkType(ctx context.Context, versionID uuid.UUID, name string) (*model.LinkType, error) {
	lt := &model.LinkType{}
	var cardinality, rtype string
	err := db.pool.QueryRow(ctx,
		`SELECT name, description, from_object, to_object, cardinality, resolver_type, from_field, to_field, join_table
		 FROM oms.link_types WHERE version_id = $1 AND name = $2`,
		versionID, name,
	).Scan(&lt.Name, &lt.Description, &lt.FromObject, &lt.ToObject, &cardinality,
		&rtype, &lt.Resolver.FromField, &lt.Resolver.ToField, &lt.Resolver.Table)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get link type %s: %w", name, err)
	}
	lt.Cardinality = model.Cardinality(cardinality)
	lt.Resolver.Type = model.LinkResolverType(rtype)
	return lt, nil
}

// GetAllLinkTypes returns every link type in a version, ordered by name.
func (db *DB) GetAllLinkTypes(ctx context.Context, versionID uuid.UUID) ([]model.LinkType, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT name, description, from_object, to_object, cardinality, resolver_type, from_field, to_field, join_table
		 FROM oms.link_types WHERE version_id = $1 ORDER BY name`,
		versionID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list link types: %w", err)
	}
	defer rows.Close()

	var out []model.LinkType
	for rows.Next() {
		var lt model.LinkType
		var cardinality, rtype string
		if err := rows.Scan(&lt.Name, &lt.Description, &lt.FromObject, &lt.ToObject, &cardinality,
			&rtype, &lt.Resolver.FromField, &lt.Resolver.ToField, &lt.Resolver.Table); err != nil {
			return nil, fmt.Errorf("storage: scan link type: %w", err)
		}
		lt.Cardinality = model.Cardinality(cardinality)
		lt.Resolver.Type = model.LinkResolverType(rtype)
		out = append(out, lt)
	}
	return out, rows.Err()
}

// GetActionType returns the named action type within a version, or ErrNotFound.
func (db *DB) GetActionType(ctx context.Context, versionID uuid.UUID, name string) (*model.ActionType, error) {
	at := &model.ActionType{}
	var schemaJSON []byte
	err := db.pool.QueryRow(ctx,
		`SELECT name, description, input_schema, preconditions, effects, policy_ref, timeout_seconds, idempotent
		 FROM oms.action_types WHERE version_id = $1 AND name = $2`,
		versionID, name,
	).Scan(&at.Name, &at.Description, &schemaJSON, &at.Preconditions, &at.Effects,
		&at.PolicyRef, &at.TimeoutSeconds, &at.Idempotent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get action type %s: %w", name, err)
	}
	if len(schemaJSON) > 0 {
		if err := json.Unmarshal(schemaJSON, &at.InputSchema); err != nil {
			return nil, fmt.Errorf("storage: decode input schema: %w", err)
		}
	}
	return at, nil
}

// GetSecurityPolicy returns the named policy and its rules. Rules come back
// ordered by priority descending with declaration order breaking ties, the
// order the policy engine evaluates them in. ErrNotFound when absent.
func (db *DB) GetSecurityPolicy(ctx context.Context, versionID uuid.UUID, name string) (*model.SecurityPolicy, error) {
	var polID uuid.UUID
	sp := &model.SecurityPolicy{}
	var target string
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, target, target_ref
		 FROM oms.security_policies WHERE version_id = $1 AND name = $2`,
		versionID, name,
	).Scan(&polID, &sp.Name, &target, &sp.TargetRef)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get security policy %s: %w", name, err)
	}
	sp.Target = model.PolicyTarget(target)

	rows, err := db.pool.Query(ctx,
		`SELECT role, access, scope, column_filters, row_filter, conditions, priority
		 FROM oms.policy_rules WHERE policy_id = $1 ORDER BY priority DESC, position`,
		polID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load policy rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r model.PolicyRule
		var access, scope string
		if err := rows.Scan(&r.Role, &access, &scope, &r.ColumnFilters, &r.RowFilter, &r.Conditions, &r.Priority); err != nil {
			return nil, fmt.Errorf("storage: scan policy rule: %w", err)
		}
		r.Access = model.AccessLevel(access)
		r.Scope = model.Scope(scope)
		sp.Rules = append(sp.Rules, r)
	}
	return sp, rows.Err()
}
