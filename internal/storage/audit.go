package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AccessAuditEntry is an append-only record of one mediated operation.
type AccessAuditEntry struct {
	ID         uuid.UUID
	Timestamp  time.Time
	ActorID    string
	ActorRole  string
	Operation  string
	TargetType string
	TargetID   string
	Success    bool
	Error      string
	ElapsedMS  float64
}

// InsertAccessAudit appends an audit record. The target table is immutable.
func (db *DB) InsertAccessAudit(ctx context.Context, e AccessAuditEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO oms.access_audit (
		     id, ts, actor_id, actor_role, operation,
		     target_type, target_id, success, error, elapsed_ms
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Timestamp, e.ActorID, e.ActorRole, e.Operation,
		e.TargetType, e.TargetID, e.Success, e.Error, e.ElapsedMS,
	)
	if err != nil {
		return fmt.Errorf("storage: insert access audit: %w", err)
	}
	return nil
}

// AuditFilter narrows ListAccessAudit. Zero values mean no constraint.
type AuditFilter struct {
	ActorID   string
	Operation string
	Success   *bool
	Since     time.Time
	Limit     int
}

// ListAccessAudit returns audit records newest first.
func (db *DB) ListAccessAudit(ctx context.Context, f AuditFilter) ([]AccessAuditEntry, error) {
	query := `SELECT id, ts, actor_id, actor_role, operation, target_type, target_id, success, error, elapsed_ms
		 FROM oms.access_audit`
	var clauses []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ActorID != "" {
		clauses = append(clauses, "actor_id = "+arg(f.ActorID))
	}
	if f.Operation != "" {
		clauses = append(clauses, "operation = "+arg(f.Operation))
	}
	if f.Success != nil {
		clauses = append(clauses, "success = "+arg(*f.Success))
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "ts >= "+arg(f.Since))
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += " ORDER BY ts DESC LIMIT " + arg(limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list access audit: %w", err)
	}
	defer rows.Close()

	var out []AccessAuditEntry
	for rows.Next() {
		var e AccessAuditEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ActorID, &e.ActorRole, &e.Operation,
			&e.TargetType, &e.TargetID, &e.Success, &e.Error, &e.ElapsedMS); err != nil {
			return nil, fmt.Errorf("storage: scan access audit: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
