package clipindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rinkside-ai/rinkside/internal/model"
)

const (
	defaultQueryLimit = 100
	defaultDumpLimit  = 1000
)

// QueryFilter narrows QueryClips. Populated fields combine conjunctively;
// values within one field match any.
type QueryFilter struct {
	PlayerIDs  []string
	GameIDs    []string
	EventTypes []string
	TeamCodes  []string
	Limit      int
}

// Stats summarises the index.
type Stats struct {
	TotalClips           int     `json:"total_clips"`
	TotalSizeBytes       int64   `json:"total_size_bytes"`
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
	UniquePlayers        int     `json:"unique_players"`
	UniqueGames          int     `json:"unique_games"`
	CacheHits            int64   `json:"cache_hits"`
	CacheHitRate         float64 `json:"cache_hit_rate"`
}

// FindByClipID returns the record for id, or nil when absent.
func (ix *Index) FindByClipID(ctx context.Context, id string) (*model.ClipRecord, error) {
	return ix.findOne(ctx, "clip_id", id)
}

// FindByFingerprint returns the record with the given cut fingerprint, or
// nil when absent.
func (ix *Index) FindByFingerprint(ctx context.Context, fp string) (*model.ClipRecord, error) {
	return ix.findOne(ctx, "fingerprint", fp)
}

func (ix *Index) findOne(ctx context.Context, column, value string) (*model.ClipRecord, error) {
	row := ix.db.QueryRowContext(ctx,
		`SELECT `+clipColumns+` FROM clips WHERE `+column+` = ?`, value)
	rec, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("clipindex: find by %s: %w", column, err)
	}
	return rec, nil
}

// QueryClips returns records matching the filter, newest first. Limit
// defaults to 100.
func (ix *Index) QueryClips(ctx context.Context, f QueryFilter) ([]model.ClipRecord, error) {
	var (
		conds []string
		args  []any
	)
	addIn := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		ph := make([]string, len(values))
		for i, v := range values {
			ph[i] = "?"
			args = append(args, v)
		}
		conds = append(conds, column+" IN ("+strings.Join(ph, ", ")+")")
	}
	addIn("player_id", f.PlayerIDs)
	addIn("game_id", f.GameIDs)
	addIn("event_type", f.EventTypes)
	addIn("team_code", f.TeamCodes)

	q := `SELECT ` + clipColumns + ` FROM clips`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC, rowid ASC LIMIT ?"
	limit := f.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	args = append(args, limit)

	return ix.queryClips(ctx, q, args...)
}

// GetAllClips dumps up to limit records, newest first. Limit defaults to
// 1000.
func (ix *Index) GetAllClips(ctx context.Context, limit int) ([]model.ClipRecord, error) {
	if limit <= 0 {
		limit = defaultDumpLimit
	}
	return ix.queryClips(ctx,
		`SELECT `+clipColumns+` FROM clips ORDER BY created_at DESC, rowid ASC LIMIT ?`, limit)
}

func (ix *Index) queryClips(ctx context.Context, q string, args ...any) ([]model.ClipRecord, error) {
	rows, err := ix.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("clipindex: query clips: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.ClipRecord
	for rows.Next() {
		rec, err := scanClip(rows)
		if err != nil {
			return nil, fmt.Errorf("clipindex: scan clip: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clipindex: iterate clips: %w", err)
	}
	return out, nil
}

// GetStats aggregates the index in one pass plus the hit counter. The hit
// rate is hits / (hits + total clips), zero when both are zero.
func (ix *Index) GetStats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	row := ix.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(size_bytes), 0),
		COALESCE(SUM(duration), 0),
		COUNT(DISTINCT NULLIF(player_id, '')),
		COUNT(DISTINCT NULLIF(game_id, ''))
	FROM clips`)
	if err := row.Scan(&st.TotalClips, &st.TotalSizeBytes, &st.TotalDurationSeconds,
		&st.UniquePlayers, &st.UniqueGames); err != nil {
		return nil, fmt.Errorf("clipindex: aggregate stats: %w", err)
	}

	err := ix.db.QueryRowContext(ctx,
		`SELECT value FROM index_stats WHERE key = 'cache_hits'`).Scan(&st.CacheHits)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("clipindex: read cache hits: %w", err)
	}

	if denom := float64(st.CacheHits) + float64(st.TotalClips); denom > 0 {
		st.CacheHitRate = float64(st.CacheHits) / denom
	}
	return st, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanClip(s rowScanner) (*model.ClipRecord, error) {
	var (
		rec                  model.ClipRecord
		mode                 string
		teammates, opponents sql.NullString
		metadata             sql.NullString
		createdAt, updatedAt string
	)
	err := s.Scan(
		&rec.ClipID,
		&rec.Fingerprint,
		&rec.SourcePath,
		&rec.StartSeconds,
		&rec.EndSeconds,
		&rec.AbsoluteTimecode,
		&rec.Duration,
		&rec.GameID,
		&rec.GameDate,
		&rec.Season,
		&rec.Period,
		&mode,
		&rec.PlayerID,
		&rec.PlayerName,
		&teammates,
		&opponents,
		&rec.TeamCode,
		&rec.OpponentCode,
		&rec.EventType,
		&rec.Outcome,
		&rec.Zone,
		&rec.Strength,
		&rec.FilePath,
		&rec.ThumbnailPath,
		&rec.HLSPath,
		&rec.SizeBytes,
		&rec.ProcessingSeconds,
		&metadata,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Mode = model.ClipMode(mode)
	rec.TeammateIDs = decodeIDList(teammates)
	rec.OpponentIDs = decodeIDList(opponents)
	if metadata.Valid && metadata.String != "" {
		_ = json.Unmarshal([]byte(metadata.String), &rec.Metadata)
	}
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

func decodeIDList(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil
	}
	return out
}

// parseTime accepts RFC3339Nano first, then the coarser layouts older index
// files may carry.
func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
