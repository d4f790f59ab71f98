package cutter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rinkside-ai/rinkside/internal/clipindex"
	"github.com/rinkside-ai/rinkside/internal/model"
	"github.com/rinkside-ai/rinkside/internal/testutil"
)

type stubCall struct {
	name string
	args []string
}

// stubRunner stands in for ffmpeg/ffprobe: it records every invocation,
// writes the output file a real run would leave behind, and fails on demand
// per command kind.
type stubRunner struct {
	mu       sync.Mutex
	calls    []stubCall
	failOn   map[string]string
	duration string
}

func newStubRunner(duration string) *stubRunner {
	return &stubRunner{failOn: map[string]string{}, duration: duration}
}

func (r *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, stubCall{name: name, args: args})
	r.mu.Unlock()

	kind := classifyCall(name, args)
	if msg, ok := r.failOn[kind]; ok {
		return nil, errors.New(msg)
	}
	if kind == "probe" {
		return []byte(r.duration + "\n"), nil
	}
	out := args[len(args)-1]
	if err := os.WriteFile(out, []byte("stub media payload"), 0o644); err != nil {
		return nil, err
	}
	return nil, nil
}

func (r *stubRunner) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, classifyCall(c.name, c.args))
	}
	return out
}

func (r *stubRunner) argsFor(kind string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if classifyCall(c.name, c.args) == kind {
			return c.args
		}
	}
	return nil
}

func classifyCall(name string, args []string) string {
	if strings.Contains(name, "ffprobe") {
		return "probe"
	}
	joined := strings.Join(args, " ")
	switch {
	case strings.Contains(joined, "-vframes"):
		return "thumbnail"
	case strings.Contains(joined, "-hls_time"):
		return "hls"
	case strings.Contains(joined, "libx264"):
		return "reencode"
	default:
		return "copy"
	}
}

func flagValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func newTestCutter(t *testing.T, runner Runner, cfg Config) (*Cutter, *clipindex.Index) {
	t.Helper()
	ix, err := clipindex.Open(filepath.Join(t.TempDir(), "clips.db"), testutil.TestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return New(ix, runner, cfg, testutil.TestLogger()), ix
}

func writeSource(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "p1-20251012-TOR-MTL-2025020123.mp4")
	require.NoError(t, os.WriteFile(src, []byte("source video"), 0o644))
	return src
}

func eventSegment(src string, start, end float64) model.ClipSegment {
	return model.ClipSegment{
		ClipID:       "clip_evt1",
		SourcePath:   src,
		StartSeconds: start,
		EndSeconds:   end,
		GameID:       "2025020123",
		Period:       1,
		Mode:         model.ClipModeEvent,
		PlayerID:     "88",
		TeamCode:     "TOR",
		EventType:    "wrist_shot",
		Zone:         "OZ",
	}
}

func shiftSegment(src string, start, end float64) model.ClipSegment {
	seg := eventSegment(src, start, end)
	seg.ClipID = "clip_sh1"
	seg.Mode = model.ClipModeShift
	seg.EventType = ""
	return seg
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("/video/a/p1-game.mp4", 42.0, 50.0)
	assert.Len(t, fp, 12)
	assert.Equal(t, fp, Fingerprint("/elsewhere/p1-game.mp4", 42.0, 50.0),
		"keyed by basename, not directory")
	assert.Equal(t, fp, Fingerprint("/video/a/p1-game.mp4", 42.04, 50.01),
		"bounds round to a tenth")
	assert.NotEqual(t, fp, Fingerprint("/video/a/p1-game.mp4", 43.0, 50.0))
	assert.NotEqual(t, fp, Fingerprint("/video/a/p2-game.mp4", 42.0, 50.0))
}

func TestCutValidation(t *testing.T) {
	runner := newStubRunner("60")
	c, _ := newTestCutter(t, runner, Config{})
	src := writeSource(t)

	cases := []struct {
		name string
		req  Request
		want string
	}{
		{"empty source", Request{StartSeconds: 0, EndSeconds: 5}, "source path is empty"},
		{"negative start", Request{SourcePath: src, StartSeconds: -1, EndSeconds: 5}, "must be >= 0"},
		{"end before start", Request{SourcePath: src, StartSeconds: 5, EndSeconds: 5}, "greater than start"},
		{"over hard cap", Request{SourcePath: src, StartSeconds: 0, EndSeconds: 301}, "exceeds the 300s cap"},
		{"missing source", Request{SourcePath: src + ".gone", StartSeconds: 0, EndSeconds: 5}, "does not exist"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := c.Cut(context.Background(), tc.req)
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, "invalid request")
			assert.Contains(t, res.Error, tc.want)
		})
	}
	assert.Empty(t, runner.calls, "invalid requests must not spawn subprocesses")
}

func TestCutReencodesEventClip(t *testing.T) {
	ctx := context.Background()
	runner := newStubRunner("60")
	c, ix := newTestCutter(t, runner, Config{})
	src := writeSource(t)
	root := t.TempDir()

	req := FromSegment(eventSegment(src, 42, 50), root, map[string]any{"requested_by": "scout"})
	res := c.Cut(ctx, req)

	require.True(t, res.Success, res.Error)
	assert.False(t, res.CacheHit)
	assert.Equal(t, StrategyReencode, res.Strategy)
	assert.Equal(t, filepath.Join(root, "2025020123", "p1", "clip_evt1.mp4"), res.FilePath)
	assert.FileExists(t, res.FilePath)
	assert.Equal(t, filepath.Join(root, "2025020123", "p1", "clip_evt1.jpg"), res.ThumbnailPath)
	assert.FileExists(t, res.ThumbnailPath)
	assert.Empty(t, res.HLSPath)
	assert.Positive(t, res.SizeBytes)
	assert.InDelta(t, 8.0, res.Duration, 1e-9)

	assert.Equal(t, []string{"probe", "reencode", "thumbnail"}, runner.kinds())
	args := runner.argsFor("reencode")
	assert.Equal(t, "42.000", flagValue(args, "-ss"))
	assert.Equal(t, "8.000", flagValue(args, "-t"))
	assert.Equal(t, "20", flagValue(args, "-crf"))
	assert.Equal(t, "yuv420p", flagValue(args, "-pix_fmt"))
	assert.Equal(t, "+faststart", flagValue(args, "-movflags"))

	rec, err := ix.FindByFingerprint(ctx, res.Fingerprint)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "clip_evt1", rec.ClipID)
	assert.Equal(t, "wrist_shot", rec.EventType)
	assert.Equal(t, "2025020123", rec.GameID)
	assert.Equal(t, res.FilePath, rec.FilePath)
	assert.Equal(t, map[string]any{"requested_by": "scout"}, rec.Metadata)
}

func TestCutShiftPrefersStreamCopy(t *testing.T) {
	runner := newStubRunner("1210")
	c, _ := newTestCutter(t, runner, Config{})
	src := writeSource(t)

	res := c.Cut(context.Background(), FromSegment(shiftSegment(src, 45, 88.5), t.TempDir(), nil))

	require.True(t, res.Success, res.Error)
	assert.Equal(t, StrategyCopy, res.Strategy)
	assert.Equal(t, []string{"probe", "copy", "thumbnail"}, runner.kinds())

	// Pre-rolled start, length covering roll plus window.
	args := runner.argsFor("copy")
	assert.Equal(t, "43.000", flagValue(args, "-ss"))
	assert.Equal(t, "45.500", flagValue(args, "-t"))
	assert.Equal(t, "copy", flagValue(args, "-c"))
	assert.Equal(t, "make_zero", flagValue(args, "-avoid_negative_ts"))
}

func TestCutShiftNearStartReencodes(t *testing.T) {
	runner := newStubRunner("1210")
	c, _ := newTestCutter(t, runner, Config{})
	src := writeSource(t)

	res := c.Cut(context.Background(), FromSegment(shiftSegment(src, 1, 9), t.TempDir(), nil))

	require.True(t, res.Success, res.Error)
	assert.Equal(t, StrategyReencode, res.Strategy)
	assert.Equal(t, []string{"probe", "reencode", "thumbnail"}, runner.kinds())
}

func TestCutFallsBackWhenPrimaryFails(t *testing.T) {
	runner := newStubRunner("1210")
	runner.failOn["copy"] = "muxer exploded"
	c, _ := newTestCutter(t, runner, Config{})
	src := writeSource(t)

	res := c.Cut(context.Background(), FromSegment(shiftSegment(src, 45, 88.5), t.TempDir(), nil))

	require.True(t, res.Success, res.Error)
	assert.Equal(t, StrategyReencode, res.Strategy)
	assert.Equal(t, []string{"probe", "copy", "reencode", "thumbnail"}, runner.kinds())
}

func TestCutBothPathsFail(t *testing.T) {
	ctx := context.Background()
	runner := newStubRunner("1210")
	runner.failOn["copy"] = "muxer exploded"
	runner.failOn["reencode"] = "encoder exploded"
	c, ix := newTestCutter(t, runner, Config{})
	src := writeSource(t)

	res := c.Cut(ctx, FromSegment(shiftSegment(src, 45, 88.5), t.TempDir(), nil))

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "muxer exploded")
	assert.Contains(t, res.Error, "encoder exploded")
	assert.Equal(t, []string{"probe", "copy", "reencode"}, runner.kinds())

	rec, err := ix.FindByFingerprint(ctx, res.Fingerprint)
	require.NoError(t, err)
	assert.Nil(t, rec, "failed cuts are not indexed")
}

func TestCutCacheHit(t *testing.T) {
	ctx := context.Background()
	runner := newStubRunner("60")
	c, ix := newTestCutter(t, runner, Config{})
	src := writeSource(t)

	cached := filepath.Join(t.TempDir(), "cached.mp4")
	require.NoError(t, os.WriteFile(cached, []byte("previous output"), 0o644))
	require.NoError(t, ix.InsertClip(ctx, model.ClipRecord{
		ClipSegment: model.ClipSegment{
			ClipID:       "clip_prev",
			SourcePath:   src,
			StartSeconds: 42,
			EndSeconds:   50,
			Duration:     8,
			GameID:       "2025020123",
			Mode:         model.ClipModeEvent,
		},
		FilePath:    cached,
		SizeBytes:   15,
		Fingerprint: Fingerprint(src, 42, 50),
	}))

	res := c.Cut(ctx, FromSegment(eventSegment(src, 42, 50), t.TempDir(), nil))

	require.True(t, res.Success, res.Error)
	assert.True(t, res.CacheHit)
	assert.Equal(t, StrategyCache, res.Strategy)
	assert.Equal(t, "clip_prev", res.ClipID)
	assert.Equal(t, cached, res.FilePath)
	assert.Empty(t, runner.calls, "cache hits must not spawn subprocesses")

	st, err := ix.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalClips, "no second row for a cache hit")
	assert.Equal(t, int64(1), st.CacheHits)
}

func TestCutRecutsWhenCachedFileGone(t *testing.T) {
	ctx := context.Background()
	runner := newStubRunner("60")
	c, ix := newTestCutter(t, runner, Config{})
	src := writeSource(t)

	require.NoError(t, ix.InsertClip(ctx, model.ClipRecord{
		ClipSegment: model.ClipSegment{ClipID: "clip_prev", SourcePath: src,
			StartSeconds: 42, EndSeconds: 50, Duration: 8},
		FilePath:    filepath.Join(t.TempDir(), "deleted.mp4"),
		Fingerprint: Fingerprint(src, 42, 50),
	}))

	res := c.Cut(ctx, FromSegment(eventSegment(src, 42, 50), t.TempDir(), nil))

	require.True(t, res.Success, res.Error)
	assert.False(t, res.CacheHit)
	assert.Equal(t, "probe", runner.kinds()[0])
}

func TestCutClampsToProbedSource(t *testing.T) {
	runner := newStubRunner("30")
	c, _ := newTestCutter(t, runner, Config{})
	src := writeSource(t)

	res := c.Cut(context.Background(), FromSegment(eventSegment(src, 10, 200), t.TempDir(), nil))
	require.True(t, res.Success, res.Error)
	assert.InDelta(t, 10.0, res.StartSeconds, 1e-9)
	assert.InDelta(t, 30.0, res.EndSeconds, 1e-9)
	assert.InDelta(t, 20.0, res.Duration, 1e-9)
}

func TestCutCapsDuration(t *testing.T) {
	runner := newStubRunner("600")
	c, _ := newTestCutter(t, runner, Config{MaxClipDuration: 5})
	src := writeSource(t)

	res := c.Cut(context.Background(), FromSegment(eventSegment(src, 10, 210), t.TempDir(), nil))
	require.True(t, res.Success, res.Error)
	assert.InDelta(t, 15.0, res.EndSeconds, 1e-9)
	assert.InDelta(t, 5.0, res.Duration, 1e-9)
}

func TestCutRejectsWindowPastSource(t *testing.T) {
	runner := newStubRunner("30")
	c, _ := newTestCutter(t, runner, Config{})
	src := writeSource(t)

	res := c.Cut(context.Background(), FromSegment(eventSegment(src, 40, 50), t.TempDir(), nil))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "outside")
	assert.Equal(t, []string{"probe"}, runner.kinds())
}

func TestCutPackagesHLS(t *testing.T) {
	ctx := context.Background()
	runner := newStubRunner("60")
	c, ix := newTestCutter(t, runner, Config{EnableHLS: true})
	src := writeSource(t)
	root := t.TempDir()

	res := c.Cut(ctx, FromSegment(eventSegment(src, 42, 50), root, nil))

	require.True(t, res.Success, res.Error)
	want := filepath.Join(root, "2025020123", "p1", "hls_clip_evt1", "playlist.m3u8")
	assert.Equal(t, want, res.HLSPath)
	assert.FileExists(t, res.HLSPath)
	assert.Equal(t, []string{"probe", "reencode", "thumbnail", "hls"}, runner.kinds())

	rec, err := ix.FindByFingerprint(ctx, res.Fingerprint)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, want, rec.HLSPath)
}

func TestCutThumbnailFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	runner := newStubRunner("60")
	runner.failOn["thumbnail"] = "no frame"
	c, ix := newTestCutter(t, runner, Config{})
	src := writeSource(t)

	res := c.Cut(ctx, FromSegment(eventSegment(src, 42, 50), t.TempDir(), nil))

	require.True(t, res.Success, res.Error)
	assert.Empty(t, res.ThumbnailPath)

	rec, err := ix.FindByFingerprint(ctx, res.Fingerprint)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Empty(t, rec.ThumbnailPath)
}

func TestCutParallelPreservesOrder(t *testing.T) {
	ctx := context.Background()
	runner := newStubRunner("60")
	c, ix := newTestCutter(t, runner, Config{Workers: 2})
	src := writeSource(t)
	root := t.TempDir()

	mkSeg := func(id string, start, end float64) model.ClipSegment {
		seg := eventSegment(src, start, end)
		seg.ClipID = id
		return seg
	}
	reqs := []Request{
		FromSegment(mkSeg("clip_p0", 0, 5), root, nil),
		{SourcePath: src, StartSeconds: 9, EndSeconds: 4, ClipID: "clip_p1"},
		FromSegment(mkSeg("clip_p2", 10, 15), root, nil),
		FromSegment(mkSeg("clip_p3", 20, 25), root, nil),
	}

	results := c.CutParallel(ctx, reqs)

	require.Len(t, results, 4)
	assert.Equal(t, "clip_p0", results[0].ClipID)
	assert.True(t, results[0].Success, results[0].Error)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "invalid request")
	assert.True(t, results[2].Success, results[2].Error)
	assert.True(t, results[3].Success, results[3].Error)

	st, err := ix.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalClips)
}
