package clipindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rinkside-ai/rinkside/internal/model"
	"github.com/rinkside-ai/rinkside/internal/testutil"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "index", "clips.db"), testutil.TestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func sampleRecord(clipID, fingerprint string) model.ClipRecord {
	return model.ClipRecord{
		ClipSegment: model.ClipSegment{
			ClipID:           clipID,
			SourcePath:       "/video/2025-2026/team/TOR/p1-20251012-TOR-MTL-2025020123.mp4",
			StartSeconds:     42.0,
			EndSeconds:       50.0,
			AbsoluteTimecode: 45.0,
			Duration:         8.0,
			GameID:           "2025020123",
			GameDate:         "20251012",
			Season:           "2025-2026",
			Period:           1,
			Mode:             model.ClipModeEvent,
			PlayerID:         "88",
			PlayerName:       "William Nylander",
			TeammateIDs:      []string{"34", "16"},
			OpponentIDs:      []string{"14", "31"},
			TeamCode:         "TOR",
			OpponentCode:     "MTL",
			EventType:        "wrist_shot",
			Outcome:          "on_goal",
			Zone:             "OZ",
			Strength:         "5v5",
		},
		FilePath:          "/clips/2025020123/p1/" + clipID + ".mp4",
		ThumbnailPath:     "/clips/2025020123/p1/" + clipID + ".jpg",
		SizeBytes:         1 << 20,
		ProcessingSeconds: 2.5,
		Fingerprint:       fingerprint,
		Metadata:          map[string]any{"requested_by": "scout"},
		CreatedAt:         time.Date(2026, 1, 10, 9, 30, 0, 123456789, time.UTC),
	}
}

func TestInsertAndFind(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	rec := sampleRecord("clip_aaaa", "fp-aaaa")
	require.NoError(t, ix.InsertClip(ctx, rec))

	got, err := ix.FindByClipID(ctx, "clip_aaaa")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.SourcePath, got.SourcePath)
	assert.Equal(t, rec.StartSeconds, got.StartSeconds)
	assert.Equal(t, rec.EndSeconds, got.EndSeconds)
	assert.Equal(t, rec.AbsoluteTimecode, got.AbsoluteTimecode)
	assert.Equal(t, model.ClipModeEvent, got.Mode)
	assert.Equal(t, []string{"34", "16"}, got.TeammateIDs)
	assert.Equal(t, []string{"14", "31"}, got.OpponentIDs)
	assert.Equal(t, "wrist_shot", got.EventType)
	assert.Equal(t, "fp-aaaa", got.Fingerprint)
	assert.Equal(t, map[string]any{"requested_by": "scout"}, got.Metadata)
	assert.True(t, got.CreatedAt.Equal(rec.CreatedAt))
	assert.False(t, got.UpdatedAt.IsZero())

	byFP, err := ix.FindByFingerprint(ctx, "fp-aaaa")
	require.NoError(t, err)
	require.NotNil(t, byFP)
	assert.Equal(t, "clip_aaaa", byFP.ClipID)

	missing, err := ix.FindByClipID(ctx, "clip_nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = ix.FindByFingerprint(ctx, "fp-nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpsertSameClipID(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	rec := sampleRecord("clip_up", "fp-up")
	require.NoError(t, ix.InsertClip(ctx, rec))
	first, err := ix.FindByClipID(ctx, "clip_up")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	rec.Outcome = "goal"
	rec.SizeBytes = 2 << 20
	require.NoError(t, ix.InsertClip(ctx, rec))

	second, err := ix.FindByClipID(ctx, "clip_up")
	require.NoError(t, err)
	assert.Equal(t, "goal", second.Outcome)
	assert.Equal(t, int64(2<<20), second.SizeBytes)
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt), "created_at must survive upsert")
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt), "updated_at must advance")

	st, err := ix.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalClips)
}

func TestUpsertSameFingerprint(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	require.NoError(t, ix.InsertClip(ctx, sampleRecord("clip_one", "fp-shared")))
	first, err := ix.FindByFingerprint(ctx, "fp-shared")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	dupe := sampleRecord("clip_two", "fp-shared")
	dupe.Outcome = "blocked"
	require.NoError(t, ix.InsertClip(ctx, dupe))

	// The existing row wins: same clip id, same content, fresher updated_at.
	got, err := ix.FindByFingerprint(ctx, "fp-shared")
	require.NoError(t, err)
	assert.Equal(t, "clip_one", got.ClipID)
	assert.Equal(t, "on_goal", got.Outcome)
	assert.True(t, got.UpdatedAt.After(first.UpdatedAt))

	st, err := ix.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalClips)

	missing, err := ix.FindByClipID(ctx, "clip_two")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestBatchInsertClips(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	recs := []model.ClipRecord{
		sampleRecord("clip_b1", "fp-b1"),
		sampleRecord("clip_b2", "fp-b2"),
		sampleRecord("clip_b3", "fp-b3"),
	}
	n, err := ix.BatchInsertClips(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = ix.BatchInsertClips(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	all, err := ix.GetAllClips(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestQueryClips(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	base := time.Date(2026, 1, 10, 9, 0, 0, 500, time.UTC)
	mk := func(id, fp, player, game, event, team string, at time.Time) model.ClipRecord {
		rec := sampleRecord(id, fp)
		rec.PlayerID = player
		rec.GameID = game
		rec.EventType = event
		rec.TeamCode = team
		rec.CreatedAt = at
		return rec
	}
	_, err := ix.BatchInsertClips(ctx, []model.ClipRecord{
		mk("clip_q1", "fp-q1", "88", "2025020123", "goal", "TOR", base),
		mk("clip_q2", "fp-q2", "88", "2025020123", "wrist_shot", "TOR", base.Add(time.Minute)),
		mk("clip_q3", "fp-q3", "34", "2025020123", "goal", "TOR", base.Add(2*time.Minute)),
		mk("clip_q4", "fp-q4", "88", "2025020150", "goal", "MTL", base.Add(3*time.Minute)),
	})
	require.NoError(t, err)

	// Newest first.
	got, err := ix.QueryClips(ctx, QueryFilter{PlayerIDs: []string{"88"}})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "clip_q4", got[0].ClipID)
	assert.Equal(t, "clip_q2", got[1].ClipID)
	assert.Equal(t, "clip_q1", got[2].ClipID)

	// Filters combine conjunctively.
	got, err = ix.QueryClips(ctx, QueryFilter{
		PlayerIDs:  []string{"88"},
		GameIDs:    []string{"2025020123"},
		EventTypes: []string{"goal"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "clip_q1", got[0].ClipID)

	got, err = ix.QueryClips(ctx, QueryFilter{TeamCodes: []string{"MTL"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "clip_q4", got[0].ClipID)

	// Values within one field match any.
	got, err = ix.QueryClips(ctx, QueryFilter{EventTypes: []string{"goal", "wrist_shot"}})
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = ix.QueryClips(ctx, QueryFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "clip_q4", got[0].ClipID)

	got, err = ix.QueryClips(ctx, QueryFilter{PlayerIDs: []string{"99"}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryClipsInsertionOrderTiebreak(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	at := time.Date(2026, 2, 1, 12, 0, 0, 250, time.UTC)
	for _, id := range []string{"clip_t1", "clip_t2", "clip_t3"} {
		rec := sampleRecord(id, "fp-"+id)
		rec.CreatedAt = at
		require.NoError(t, ix.InsertClip(ctx, rec))
	}

	got, err := ix.QueryClips(ctx, QueryFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "clip_t1", got[0].ClipID)
	assert.Equal(t, "clip_t2", got[1].ClipID)
	assert.Equal(t, "clip_t3", got[2].ClipID)
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	empty, err := ix.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalClips)
	assert.Zero(t, empty.CacheHitRate)

	r1 := sampleRecord("clip_s1", "fp-s1")
	r1.Duration = 8
	r1.SizeBytes = 100
	r2 := sampleRecord("clip_s2", "fp-s2")
	r2.Duration = 12
	r2.SizeBytes = 300
	r2.PlayerID = "34"
	r2.GameID = "2025020150"
	r3 := sampleRecord("clip_s3", "fp-s3")
	r3.Duration = 10
	r3.SizeBytes = 200
	r3.PlayerID = ""
	_, err = ix.BatchInsertClips(ctx, []model.ClipRecord{r1, r2, r3})
	require.NoError(t, err)

	ix.RecordCacheHit(ctx)
	ix.RecordCacheHit(ctx)

	st, err := ix.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalClips)
	assert.Equal(t, int64(600), st.TotalSizeBytes)
	assert.InDelta(t, 30.0, st.TotalDurationSeconds, 1e-9)
	assert.Equal(t, 2, st.UniquePlayers, "blank player ids do not count")
	assert.Equal(t, 2, st.UniqueGames)
	assert.Equal(t, int64(2), st.CacheHits)
	assert.InDelta(t, 2.0/5.0, st.CacheHitRate, 1e-9)
}

func TestExportToColumnar(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	older := sampleRecord("clip_e1", "fp-e1")
	older.CreatedAt = time.Date(2026, 1, 9, 8, 0, 0, 100, time.UTC)
	newer := sampleRecord("clip_e2", "fp-e2")
	newer.CreatedAt = time.Date(2026, 1, 9, 9, 0, 0, 100, time.UTC)
	newer.TeammateIDs = nil
	_, err := ix.BatchInsertClips(ctx, []model.ClipRecord{newer, older})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "export", "clips.parquet")
	n, err := ix.ExportToColumnar(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := parquet.ReadFile[columnarRow](out)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "clip_e1", rows[0].ClipID, "export is chronological")
	assert.Equal(t, "clip_e2", rows[1].ClipID)
	assert.Equal(t, `["34","16"]`, rows[0].TeammateIDs)
	assert.Empty(t, rows[1].TeammateIDs)
	assert.Equal(t, "wrist_shot", rows[0].EventType)
	assert.Equal(t, int32(1), rows[0].Period)

	ts, err := time.Parse(time.RFC3339Nano, rows[0].CreatedAt)
	require.NoError(t, err)
	assert.True(t, ts.Equal(older.CreatedAt))
}

func TestMigrateFromJSON(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	legacy := `{
		"aabbccddeeff": {
			"source_path": "/video/p1-20251012-TOR-MTL-2025020123.mp4",
			"start_seconds": 10,
			"end_seconds": 18,
			"game_id": "2025020123",
			"player_id": "88",
			"event_type": "goal",
			"file_path": "/clips/old/a.mp4"
		},
		"112233445566": {
			"clip_id": "clip_custom",
			"source_path": "/video/p2.mp4",
			"start_seconds": 5,
			"end_seconds": 9,
			"duration": 4,
			"game_id": "gameXYZ123",
			"season": "2024-2025",
			"mode": "shift",
			"file_path": "/clips/old/b.mp4"
		}
	}`
	jsonPath := filepath.Join(t.TempDir(), "clips.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(legacy), 0o644))

	n, err := ix.MigrateFromJSON(ctx, jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := ix.FindByFingerprint(ctx, "aabbccddeeff")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "clip_aabbccddeeff", got.ClipID)
	assert.Equal(t, "20250201", got.GameDate, "derived from the game id prefix")
	assert.Equal(t, "2025-2026", got.Season)
	assert.InDelta(t, 8.0, got.Duration, 1e-9)
	assert.Equal(t, model.ClipModeEvent, got.Mode)

	got, err = ix.FindByFingerprint(ctx, "112233445566")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "clip_custom", got.ClipID)
	assert.Equal(t, "20250101", got.GameDate, "non-numeric id falls back")
	assert.Equal(t, "2024-2025", got.Season)
	assert.Equal(t, model.ClipModeShift, got.Mode)

	_, err = os.Stat(jsonPath)
	assert.True(t, os.IsNotExist(err), "source renamed after migration")
	_, err = os.Stat(jsonPath + ".backup")
	assert.NoError(t, err)

	_, err = ix.MigrateFromJSON(ctx, jsonPath)
	assert.Error(t, err, "migration is one-shot")
}

func TestConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	const workers = 8
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			rec := sampleRecord(fmt.Sprintf("clip_c%d", i), fmt.Sprintf("fp-c%d", i))
			errs <- ix.InsertClip(ctx, rec)
		}(i)
	}
	for i := 0; i < workers; i++ {
		require.NoError(t, <-errs)
	}

	st, err := ix.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, workers, st.TotalClips)
}
