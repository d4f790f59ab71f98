// Package clipindex is the embedded analytical store for cut clips. It is
// keyed by clip id with a unique fingerprint index for deduplication.
// Writes are serialised through one process-wide mutex; reads run
// concurrently against the connection pool.
package clipindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rinkside-ai/rinkside/internal/model"
)

const (
	insertAttempts = 3
	retryBaseDelay = 50 * time.Millisecond
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS clips (
	clip_id TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL UNIQUE,
	source_path TEXT NOT NULL,
	start_seconds REAL NOT NULL,
	end_seconds REAL NOT NULL,
	absolute_timecode REAL NOT NULL DEFAULT 0,
	duration REAL NOT NULL,
	game_id TEXT NOT NULL DEFAULT '',
	game_date TEXT NOT NULL DEFAULT '',
	season TEXT NOT NULL DEFAULT '',
	period INTEGER NOT NULL DEFAULT 0,
	mode TEXT NOT NULL DEFAULT 'event',
	player_id TEXT NOT NULL DEFAULT '',
	player_name TEXT NOT NULL DEFAULT '',
	teammate_ids JSON,
	opponent_ids JSON,
	team_code TEXT NOT NULL DEFAULT '',
	opponent_code TEXT NOT NULL DEFAULT '',
	event_type TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL DEFAULT '',
	zone TEXT NOT NULL DEFAULT '',
	strength TEXT NOT NULL DEFAULT '',
	file_path TEXT NOT NULL DEFAULT '',
	thumbnail_path TEXT NOT NULL DEFAULT '',
	hls_path TEXT NOT NULL DEFAULT '',
	size_bytes INTEGER NOT NULL DEFAULT 0,
	processing_seconds REAL NOT NULL DEFAULT 0,
	metadata JSON,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clips_player ON clips(player_id);
CREATE INDEX IF NOT EXISTS idx_clips_game ON clips(game_id);
CREATE INDEX IF NOT EXISTS idx_clips_event ON clips(event_type);
CREATE INDEX IF NOT EXISTS idx_clips_team ON clips(team_code);
CREATE INDEX IF NOT EXISTS idx_clips_date ON clips(game_date);
CREATE INDEX IF NOT EXISTS idx_clips_game_period ON clips(game_id, period);
CREATE TABLE IF NOT EXISTS index_stats (
	key TEXT PRIMARY KEY,
	value INTEGER NOT NULL DEFAULT 0
);`

// clipColumns is the scan order shared by every read path.
const clipColumns = `clip_id, fingerprint, source_path, start_seconds, end_seconds,
	absolute_timecode, duration, game_id, game_date, season, period, mode,
	player_id, player_name, teammate_ids, opponent_ids, team_code,
	opponent_code, event_type, outcome, zone, strength, file_path,
	thumbnail_path, hls_path, size_bytes, processing_seconds, metadata,
	created_at, updated_at`

const upsertSQL = `INSERT INTO clips (` + clipColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(clip_id) DO UPDATE SET
		fingerprint = excluded.fingerprint,
		source_path = excluded.source_path,
		start_seconds = excluded.start_seconds,
		end_seconds = excluded.end_seconds,
		absolute_timecode = excluded.absolute_timecode,
		duration = excluded.duration,
		game_id = excluded.game_id,
		game_date = excluded.game_date,
		season = excluded.season,
		period = excluded.period,
		mode = excluded.mode,
		player_id = excluded.player_id,
		player_name = excluded.player_name,
		teammate_ids = excluded.teammate_ids,
		opponent_ids = excluded.opponent_ids,
		team_code = excluded.team_code,
		opponent_code = excluded.opponent_code,
		event_type = excluded.event_type,
		outcome = excluded.outcome,
		zone = excluded.zone,
		strength = excluded.strength,
		file_path = excluded.file_path,
		thumbnail_path = excluded.thumbnail_path,
		hls_path = excluded.hls_path,
		size_bytes = excluded.size_bytes,
		processing_seconds = excluded.processing_seconds,
		metadata = excluded.metadata,
		updated_at = excluded.updated_at
	ON CONFLICT(fingerprint) DO UPDATE SET
		updated_at = excluded.updated_at`

// Index is the embedded clip store.
type Index struct {
	db      *sql.DB
	path    string
	logger  *slog.Logger
	writeMu sync.Mutex
}

// Open opens (creating if needed) the clip index at path and ensures its
// schema. The parent directory is created when missing.
func Open(path string, logger *slog.Logger) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("clipindex: create directory: %w", err)
	}
	dsn := "file:" + path +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("clipindex: open %s: %w", path, err)
	}
	ix := &Index{
		db:     db,
		path:   path,
		logger: logger.With("component", "clipindex"),
	}
	if _, err := db.ExecContext(context.Background(), schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clipindex: migrate %s: %w", path, err)
	}
	return ix, nil
}

// Close closes the underlying store.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Path returns the store's file path.
func (ix *Index) Path() string { return ix.path }

// InsertClip upserts one record. On clip-id conflict the row is replaced
// and updated_at advances; on fingerprint conflict only updated_at moves.
// Transient lock conflicts retry up to 3 times with growing backoff.
func (ix *Index) InsertClip(ctx context.Context, rec model.ClipRecord) error {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= insertAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt-1) * retryBaseDelay):
			}
		}
		_, err := ix.db.ExecContext(ctx, upsertSQL, clipArgs(rec)...)
		if err == nil {
			return nil
		}
		lastErr = err
		if !transientSQLite(err) {
			break
		}
		ix.logger.Warn("clip insert conflict, retrying", "clip_id", rec.ClipID, "attempt", attempt)
	}
	return fmt.Errorf("clipindex: insert clip %s: %w", rec.ClipID, lastErr)
}

// BatchInsertClips upserts records under a single lock acquisition and one
// transaction. Returns how many records were written.
func (ix *Index) BatchInsertClips(ctx context.Context, recs []model.ClipRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("clipindex: begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return 0, fmt.Errorf("clipindex: prepare batch: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, clipArgs(rec)...); err != nil {
			return 0, fmt.Errorf("clipindex: batch insert clip %s: %w", rec.ClipID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("clipindex: commit batch: %w", err)
	}
	return len(recs), nil
}

// RecordCacheHit bumps the fingerprint cache-hit counter. Failures are
// logged, never surfaced; the counter is advisory.
func (ix *Index) RecordCacheHit(ctx context.Context) {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()
	_, err := ix.db.ExecContext(ctx, `INSERT INTO index_stats (key, value) VALUES ('cache_hits', 1)
		ON CONFLICT(key) DO UPDATE SET value = value + 1`)
	if err != nil {
		ix.logger.Warn("cache hit count failed", "error", err)
	}
}

// clipArgs flattens a record into the upsert's positional arguments, in
// clipColumns order. A zero CreatedAt takes the current time; UpdatedAt is
// always the current time so conflicting upserts advance it.
func clipArgs(rec model.ClipRecord) []any {
	now := time.Now().UTC()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}
	mode := rec.Mode
	if mode == "" {
		mode = model.ClipModeEvent
	}
	return []any{
		rec.ClipID,
		rec.Fingerprint,
		rec.SourcePath,
		rec.StartSeconds,
		rec.EndSeconds,
		rec.AbsoluteTimecode,
		rec.Duration,
		rec.GameID,
		rec.GameDate,
		rec.Season,
		rec.Period,
		string(mode),
		rec.PlayerID,
		rec.PlayerName,
		jsonColumn(rec.TeammateIDs),
		jsonColumn(rec.OpponentIDs),
		rec.TeamCode,
		rec.OpponentCode,
		rec.EventType,
		rec.Outcome,
		rec.Zone,
		rec.Strength,
		rec.FilePath,
		rec.ThumbnailPath,
		rec.HLSPath,
		rec.SizeBytes,
		rec.ProcessingSeconds,
		jsonColumn(rec.Metadata),
		created.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	}
}

// jsonColumn encodes a slice or map for a JSON column, storing NULL for
// empty values.
func jsonColumn(v any) any {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return nil
		}
	case map[string]any:
		if len(t) == 0 {
			return nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}

// transientSQLite reports whether an error is a lock conflict worth
// retrying. The driver surfaces SQLITE_BUSY/SQLITE_LOCKED in the message.
func transientSQLite(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}
