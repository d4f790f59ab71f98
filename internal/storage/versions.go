package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rinkside-ai/rinkside/internal/model"
)

// ErrNotDraft is returned when publish is attempted on a non-draft version.
var ErrNotDraft = errors.New("storage: version is not in draft state")

// ErrDuplicateVersion is returned when a version string already exists.
var ErrDuplicateVersion = errors.New("storage: version already exists")

// CreateVersion inserts a schema version and every entity it owns in a
// single transaction. The version lands in draft state. A duplicate version
// string returns ErrDuplicateVersion.
func (db *DB) CreateVersion(ctx context.Context, b *model.SchemaBundle, actor string) (model.SchemaVersion, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.SchemaVersion{}, fmt.Errorf("storage: begin create version tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	v := b.Version
	v.ID = uuid.New()
	v.State = model.VersionDraft
	v.Active = false
	v.CreatedBy = actor
	v.CreatedAt = time.Now().UTC()
	v.PublishedAt = nil

	if _, err := tx.Exec(ctx,
		`INSERT INTO oms.schema_versions (id, version, state, active, description, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.ID, v.Version, string(v.State), v.Active, v.Description, v.CreatedBy, v.CreatedAt,
	); err != nil {
		if IsUniqueViolation(err) {
			return model.SchemaVersion{}, ErrDuplicateVersion
		}
		return model.SchemaVersion{}, fmt.Errorf("storage: insert schema version: %w", err)
	}

	for i := range b.ObjectTypes {
		if err := insertObjectTypeTx(ctx, tx, v.ID, &b.ObjectTypes[i]); err != nil {
			return model.SchemaVersion{}, err
		}
	}
	for i := range b.LinkTypes {
		if err := insertLinkTypeTx(ctx, tx, v.ID, &b.LinkTypes[i]); err != nil {
			return model.SchemaVersion{}, err
		}
	}
	for i := range b.ActionTypes {
		if err := insertActionTypeTx(ctx, tx, v.ID, &b.ActionTypes[i]); err != nil {
			return model.SchemaVersion{}, err
		}
	}
	for i := range b.Policies {
		if err := insertPolicyTx(ctx, tx, v.ID, &b.Policies[i]); err != nil {
			return model.SchemaVersion{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.SchemaVersion{}, fmt.Errorf("storage: commit create version tx: %w", err)
	}
	return v, nil
}

// PublishVersion flips the active flag to the named version in one
// transaction: the previous active version is deactivated, this version
// becomes published and active with a publication timestamp. The version
// must currently be in draft state.
func (db *DB) PublishVersion(ctx context.Context, version string) (model.SchemaVersion, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.SchemaVersion{}, fmt.Errorf("storage: begin publish tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var v model.SchemaVersion
	var state string
	err = tx.QueryRow(ctx,
		`SELECT id, version, state, active, description, created_by, created_at, published_at
		 FROM oms.schema_versions WHERE version = $1 FOR UPDATE`,
		version,
	).Scan(&v.ID, &v.Version, &state, &v.Active, &v.Description, &v.CreatedBy, &v.CreatedAt, &v.PublishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SchemaVersion{}, ErrNotFound
	}
	if err != nil {
		return model.SchemaVersion{}, fmt.Errorf("storage: lock version for publish: %w", err)
	}
	v.State = model.VersionState(state)

	if v.State != model.VersionDraft {
		return model.SchemaVersion{}, ErrNotDraft
	}

	if _, err := tx.Exec(ctx,
		`UPDATE oms.schema_versions SET active = FALSE WHERE active`,
	); err != nil {
		return model.SchemaVersion{}, fmt.Errorf("storage: deactivate previous version: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE oms.schema_versions
		 SET state = $2, active = TRUE, published_at = $3
		 WHERE id = $1`,
		v.ID, string(model.VersionPublished), now,
	); err != nil {
		return model.SchemaVersion{}, fmt.Errorf("storage: activate version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.SchemaVersion{}, fmt.Errorf("storage: commit publish tx: %w", err)
	}

	v.State = model.VersionPublished
	v.Active = true
	v.PublishedAt = &now
	return v, nil
}

// GetActiveVersion returns the single active version, or ErrNotFound.
func (db *DB) GetActiveVersion(ctx context.Context) (model.SchemaVersion, error) {
	return db.getVersionWhere(ctx, `active`, nil)
}

// GetVersion returns the version with the given version string, or ErrNotFound.
func (db *DB) GetVersion(ctx context.Context, version string) (model.SchemaVersion, error) {
	return db.getVersionWhere(ctx, `version = $1`, []any{version})
}

func (db *DB) getVersionWhere(ctx context.Context, where string, args []any) (model.SchemaVersion, error) {
	var v model.SchemaVersion
	var state string
	err := db.pool.QueryRow(ctx,
		`SELECT id, version, state, active, description, created_by, created_at, published_at
		 FROM oms.schema_versions WHERE `+where,
		args...,
	).Scan(&v.ID, &v.Version, &state, &v.Active, &v.Description, &v.CreatedBy, &v.CreatedAt, &v.PublishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SchemaVersion{}, ErrNotFound
	}
	if err != nil {
		return model.SchemaVersion{}, fmt.Errorf("storage: get schema version: %w", err)
	}
	v.State = model.VersionState(state)
	return v, nil
}

// ListVersions returns all schema versions, newest first.
func (db *DB) ListVersions(ctx context.Context) ([]model.SchemaVersion, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, version, state, active, description, created_by, created_at, published_at
		 FROM oms.schema_versions ORDER BY created_at DESC, version DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list schema versions: %w", err)
	}
	defer rows.Close()

	var out []model.SchemaVersion
	for rows.Next() {
		var v model.SchemaVersion
		var state string
		if err := rows.Scan(&v.ID, &v.Version, &state, &v.Active, &v.Description,
			&v.CreatedBy, &v.CreatedAt, &v.PublishedAt); err != nil {
			return nil, fmt.Errorf("storage: scan schema version: %w", err)
		}
		v.State = model.VersionState(state)
		out = append(out, v)
	}
	return out, rows.Err()
}
