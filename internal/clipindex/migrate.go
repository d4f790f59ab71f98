package clipindex

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/rinkside-ai/rinkside/internal/model"
)

const (
	fallbackGameDate = "20250101"
	fallbackSeason   = "2025-2026"
)

// MigrateFromJSON imports a legacy JSON index, a map of fingerprint to clip
// record, back-filling fields the old format never tracked. On success the
// source file is renamed with a .backup suffix and the imported count is
// returned. One-shot: a second run finds only the backup and fails.
func (ix *Index) MigrateFromJSON(ctx context.Context, jsonPath string) (int, error) {
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return 0, fmt.Errorf("clipindex: read legacy index: %w", err)
	}
	legacy := map[string]model.ClipRecord{}
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return 0, fmt.Errorf("clipindex: parse legacy index %s: %w", jsonPath, err)
	}

	fps := make([]string, 0, len(legacy))
	for fp := range legacy {
		fps = append(fps, fp)
	}
	sort.Strings(fps)

	recs := make([]model.ClipRecord, 0, len(fps))
	for _, fp := range fps {
		rec := legacy[fp]
		rec.Fingerprint = fp
		applyLegacyDefaults(&rec)
		recs = append(recs, rec)
	}

	n, err := ix.BatchInsertClips(ctx, recs)
	if err != nil {
		return 0, err
	}
	if err := os.Rename(jsonPath, jsonPath+".backup"); err != nil {
		return n, fmt.Errorf("clipindex: rename legacy index: %w", err)
	}
	ix.logger.Info("migrated legacy clip index", "path", jsonPath, "clips", n)
	return n, nil
}

// applyLegacyDefaults fills fields absent from the old JSON format. The map
// key is the authoritative fingerprint and must already be set.
func applyLegacyDefaults(rec *model.ClipRecord) {
	if rec.ClipID == "" {
		rec.ClipID = "clip_" + rec.Fingerprint
	}
	if rec.GameDate == "" {
		rec.GameDate = gameDateFromID(rec.GameID)
	}
	if rec.Season == "" {
		rec.Season = fallbackSeason
	}
	if rec.Duration == 0 {
		rec.Duration = rec.EndSeconds - rec.StartSeconds
	}
	if rec.Mode == "" {
		rec.Mode = model.ClipModeEvent
	}
}

// gameDateFromID extracts the YYYYMMDD prefix NHL game ids carry, falling
// back to a fixed date when the id is too short or non-numeric.
func gameDateFromID(gameID string) string {
	if len(gameID) < 8 {
		return fallbackGameDate
	}
	for _, r := range gameID[:8] {
		if r < '0' || r > '9' {
			return fallbackGameDate
		}
	}
	return gameID[:8]
}
