package clipindex

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
)

// columnarRow is the flat parquet projection of a clip record. ID lists and
// metadata are JSON-encoded strings, timestamps RFC3339Nano, so the export
// round-trips losslessly.
type columnarRow struct {
	ClipID            string  `parquet:"clip_id"`
	Fingerprint       string  `parquet:"fingerprint"`
	SourcePath        string  `parquet:"source_path"`
	StartSeconds      float64 `parquet:"start_seconds"`
	EndSeconds        float64 `parquet:"end_seconds"`
	AbsoluteTimecode  float64 `parquet:"absolute_timecode"`
	Duration          float64 `parquet:"duration"`
	GameID            string  `parquet:"game_id"`
	GameDate          string  `parquet:"game_date"`
	Season            string  `parquet:"season"`
	Period            int32   `parquet:"period"`
	Mode              string  `parquet:"mode"`
	PlayerID          string  `parquet:"player_id"`
	PlayerName        string  `parquet:"player_name"`
	TeammateIDs       string  `parquet:"teammate_ids"`
	OpponentIDs       string  `parquet:"opponent_ids"`
	TeamCode          string  `parquet:"team_code"`
	OpponentCode      string  `parquet:"opponent_code"`
	EventType         string  `parquet:"event_type"`
	Outcome           string  `parquet:"outcome"`
	Zone              string  `parquet:"zone"`
	Strength          string  `parquet:"strength"`
	FilePath          string  `parquet:"file_path"`
	ThumbnailPath     string  `parquet:"thumbnail_path"`
	HLSPath           string  `parquet:"hls_path"`
	SizeBytes         int64   `parquet:"size_bytes"`
	ProcessingSeconds float64 `parquet:"processing_seconds"`
	Metadata          string  `parquet:"metadata"`
	CreatedAt         string  `parquet:"created_at"`
	UpdatedAt         string  `parquet:"updated_at"`
}

// ExportToColumnar writes every clip to a parquet file at path, creating
// parent directories as needed, and returns the row count. Rows are emitted
// in chronological order.
func (ix *Index) ExportToColumnar(ctx context.Context, path string) (int, error) {
	recs, err := ix.queryClips(ctx,
		`SELECT `+clipColumns+` FROM clips ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("clipindex: create export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("clipindex: create export file: %w", err)
	}

	rows := make([]columnarRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, columnarRow{
			ClipID:            rec.ClipID,
			Fingerprint:       rec.Fingerprint,
			SourcePath:        rec.SourcePath,
			StartSeconds:      rec.StartSeconds,
			EndSeconds:        rec.EndSeconds,
			AbsoluteTimecode:  rec.AbsoluteTimecode,
			Duration:          rec.Duration,
			GameID:            rec.GameID,
			GameDate:          rec.GameDate,
			Season:            rec.Season,
			Period:            int32(rec.Period),
			Mode:              string(rec.Mode),
			PlayerID:          rec.PlayerID,
			PlayerName:        rec.PlayerName,
			TeammateIDs:       encodeJSONString(rec.TeammateIDs),
			OpponentIDs:       encodeJSONString(rec.OpponentIDs),
			TeamCode:          rec.TeamCode,
			OpponentCode:      rec.OpponentCode,
			EventType:         rec.EventType,
			Outcome:           rec.Outcome,
			Zone:              rec.Zone,
			Strength:          rec.Strength,
			FilePath:          rec.FilePath,
			ThumbnailPath:     rec.ThumbnailPath,
			HLSPath:           rec.HLSPath,
			SizeBytes:         rec.SizeBytes,
			ProcessingSeconds: rec.ProcessingSeconds,
			Metadata:          encodeJSONString(rec.Metadata),
			CreatedAt:         rec.CreatedAt.UTC().Format(time.RFC3339Nano),
			UpdatedAt:         rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	w := parquet.NewGenericWriter[columnarRow](f)
	if _, err := w.Write(rows); err != nil {
		_ = w.Close()
		_ = f.Close()
		return 0, fmt.Errorf("clipindex: write export rows: %w", err)
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("clipindex: close export writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("clipindex: close export file: %w", err)
	}

	ix.logger.Info("exported clip index", "path", path, "rows", len(rows))
	return len(rows), nil
}

func encodeJSONString(v any) string {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return ""
		}
	case map[string]any:
		if len(t) == 0 {
			return ""
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
