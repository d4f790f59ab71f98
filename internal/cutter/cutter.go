// Package cutter turns clip segments into video files with ffmpeg. Each cut
// is fingerprinted and checked against the clip index first; misses run a
// two-path strategy (stream copy or re-encode) with fallback, then thumbnail
// and optional HLS packaging, and the result is submitted to the index.
package cutter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rinkside-ai/rinkside/internal/clipindex"
	"github.com/rinkside-ai/rinkside/internal/model"
)

const (
	defaultWorkers        = 3
	defaultPreRollSeconds = 2.0
)

// Config tunes the cutter.
type Config struct {
	FFmpegPath      string
	FFprobePath     string
	MaxClipDuration float64
	PreRollSeconds  float64
	Workers         int
	EnableHLS       bool
}

// Normalize fills zero values with defaults and enforces the hard duration
// cap.
func (c *Config) Normalize() {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.FFprobePath == "" {
		c.FFprobePath = "ffprobe"
	}
	if c.MaxClipDuration <= 0 {
		c.MaxClipDuration = model.MaxClipDurationDefault
	}
	if c.MaxClipDuration > model.MaxClipDurationHardCap {
		c.MaxClipDuration = model.MaxClipDurationHardCap
	}
	if c.PreRollSeconds <= 0 {
		c.PreRollSeconds = defaultPreRollSeconds
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
}

// Request asks for one cut. OutputPath and ClipID may be left empty; they
// are derived from the fingerprint. Segment, when set, carries the game and
// player descriptor into the index record.
type Request struct {
	SourcePath   string
	StartSeconds float64
	EndSeconds   float64
	OutputPath   string
	ClipID       string
	Metadata     map[string]any
	Segment      *model.ClipSegment
}

// FromSegment builds the canonical request for an extracted segment, with
// the output at <root>/<game_id>/p<period>/<clip_id>.mp4.
func FromSegment(seg model.ClipSegment, outputRoot string, metadata map[string]any) Request {
	return Request{
		SourcePath:   seg.SourcePath,
		StartSeconds: seg.StartSeconds,
		EndSeconds:   seg.EndSeconds,
		OutputPath:   OutputPath(outputRoot, seg),
		ClipID:       seg.ClipID,
		Metadata:     metadata,
		Segment:      &seg,
	}
}

// OutputPath returns the canonical clip file location for a segment.
func OutputPath(root string, seg model.ClipSegment) string {
	return filepath.Join(root, seg.GameID, fmt.Sprintf("p%d", seg.Period), seg.ClipID+".mp4")
}

// Strategy names the path that produced an output.
type Strategy string

const (
	StrategyReencode Strategy = "reencode"
	StrategyCopy     Strategy = "copy"
	StrategyCache    Strategy = "cache"
)

// Result reports one cut. Failures are in-band: Success false and Error
// set, never a Go error, so one bad request cannot sink a batch.
type Result struct {
	ClipID            string
	Fingerprint       string
	FilePath          string
	ThumbnailPath     string
	HLSPath           string
	StartSeconds      float64
	EndSeconds        float64
	Duration          float64
	SizeBytes         int64
	Strategy          Strategy
	CacheHit          bool
	Success           bool
	Error             string
	ProcessingSeconds float64
}

// Cutter runs the cut pipeline against one clip index.
type Cutter struct {
	index  *clipindex.Index
	runner Runner
	cfg    Config
	logger *slog.Logger
}

// New builds a Cutter. A nil runner gets the exec-backed default.
func New(index *clipindex.Index, runner Runner, cfg Config, logger *slog.Logger) *Cutter {
	if runner == nil {
		runner = execRunner{}
	}
	cfg.Normalize()
	return &Cutter{
		index:  index,
		runner: runner,
		cfg:    cfg,
		logger: logger.With("component", "cutter"),
	}
}

// Cut executes one request end to end: validate, fingerprint, cache check,
// probe, clamp, cut with fallback, thumbnail, optional HLS, index submit.
func (c *Cutter) Cut(ctx context.Context, req Request) Result {
	started := time.Now()

	if msg := c.validate(req); msg != "" {
		return Result{ClipID: req.ClipID, Error: "invalid request: " + msg}
	}

	fp := Fingerprint(req.SourcePath, req.StartSeconds, req.EndSeconds)
	clipID := req.ClipID
	if clipID == "" {
		clipID = "clip_" + fp
	}

	if res, ok := c.cacheHit(ctx, fp, started); ok {
		return res
	}

	sourceDuration, err := c.probeDuration(ctx, req.SourcePath)
	if err != nil {
		return c.fail(clipID, fp, started, err.Error())
	}

	start, end := clampWindow(req.StartSeconds, req.EndSeconds, sourceDuration, c.cfg.MaxClipDuration)
	duration := end - start
	if duration <= 0 {
		return c.fail(clipID, fp, started,
			fmt.Sprintf("window [%.1f, %.1f] lies outside the %.1fs source", req.StartSeconds, req.EndSeconds, sourceDuration))
	}

	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = clipID + ".mp4"
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return c.fail(clipID, fp, started, fmt.Sprintf("create output directory: %v", err))
	}

	strategy, err := c.cutWithFallback(ctx, req, start, end, outputPath)
	if err != nil {
		return c.fail(clipID, fp, started, err.Error())
	}

	res := Result{
		ClipID:       clipID,
		Fingerprint:  fp,
		FilePath:     outputPath,
		StartSeconds: start,
		EndSeconds:   end,
		Duration:     duration,
		Strategy:     strategy,
		Success:      true,
	}
	if info, err := os.Stat(outputPath); err == nil {
		res.SizeBytes = info.Size()
	}

	res.ThumbnailPath = c.makeThumbnail(ctx, outputPath, duration)
	if c.cfg.EnableHLS {
		res.HLSPath = c.packageHLS(ctx, outputPath, clipID)
	}
	res.ProcessingSeconds = time.Since(started).Seconds()

	c.submit(ctx, req, res)
	c.logger.Info("cut clip",
		"clip_id", clipID, "strategy", string(strategy),
		"duration", duration, "elapsed", res.ProcessingSeconds)
	return res
}

// CutParallel runs requests through a bounded worker pool, returning results
// in request order. A failed request fails only its own slot.
func (c *Cutter) CutParallel(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = c.Cut(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// validate applies the request preconditions. Only the source is inspected;
// nothing is written.
func (c *Cutter) validate(req Request) string {
	if req.SourcePath == "" {
		return "source path is empty"
	}
	if req.StartSeconds < 0 {
		return fmt.Sprintf("start %.1f must be >= 0", req.StartSeconds)
	}
	if req.EndSeconds <= req.StartSeconds {
		return fmt.Sprintf("end %.1f must be greater than start %.1f", req.EndSeconds, req.StartSeconds)
	}
	if d := req.EndSeconds - req.StartSeconds; d > model.MaxClipDurationHardCap {
		return fmt.Sprintf("duration %.1fs exceeds the %.0fs cap", d, model.MaxClipDurationHardCap)
	}
	if info, err := os.Stat(req.SourcePath); err != nil || info.IsDir() {
		return fmt.Sprintf("source %s does not exist", req.SourcePath)
	}
	return ""
}

// cacheHit answers from the index when the fingerprint is known and its
// output file survives. No subprocess runs on this path.
func (c *Cutter) cacheHit(ctx context.Context, fp string, started time.Time) (Result, bool) {
	rec, err := c.index.FindByFingerprint(ctx, fp)
	if err != nil {
		c.logger.Warn("fingerprint lookup failed", "fingerprint", fp, "error", err)
		return Result{}, false
	}
	if rec == nil || !fileExists(rec.FilePath) {
		return Result{}, false
	}
	c.index.RecordCacheHit(ctx)
	return Result{
		ClipID:            rec.ClipID,
		Fingerprint:       fp,
		FilePath:          rec.FilePath,
		ThumbnailPath:     rec.ThumbnailPath,
		HLSPath:           rec.HLSPath,
		StartSeconds:      rec.StartSeconds,
		EndSeconds:        rec.EndSeconds,
		Duration:          rec.Duration,
		SizeBytes:         rec.SizeBytes,
		Strategy:          StrategyCache,
		CacheHit:          true,
		Success:           true,
		ProcessingSeconds: time.Since(started).Seconds(),
	}, true
}

// cutWithFallback tries the preferred path, then the other. Shift segments
// starting at or after the pre-roll prefer stream copy; everything else
// re-encodes first.
func (c *Cutter) cutWithFallback(ctx context.Context, req Request, start, end float64, outputPath string) (Strategy, error) {
	order := []Strategy{StrategyReencode, StrategyCopy}
	if req.Segment != nil && req.Segment.Mode == model.ClipModeShift && start >= c.cfg.PreRollSeconds {
		order = []Strategy{StrategyCopy, StrategyReencode}
	}

	var firstErr error
	for i, strategy := range order {
		err := c.runCut(ctx, strategy, req.SourcePath, start, end, outputPath)
		if err == nil {
			return strategy, nil
		}
		if i == 0 {
			firstErr = err
			c.logger.Warn("primary cut path failed, falling back",
				"strategy", string(strategy), "error", err)
			continue
		}
		return "", fmt.Errorf("%s: %v; %s: %v", order[0], firstErr, strategy, err)
	}
	return "", firstErr
}

// makeThumbnail grabs one frame a few seconds in. Best effort: a failure
// costs the thumbnail, not the cut.
func (c *Cutter) makeThumbnail(ctx context.Context, clipPath string, duration float64) string {
	thumbPath := clipPath[:len(clipPath)-len(filepath.Ext(clipPath))] + ".jpg"
	if err := c.runThumbnail(ctx, clipPath, thumbPath, duration); err != nil {
		c.logger.Warn("thumbnail failed", "clip", clipPath, "error", err)
		return ""
	}
	return thumbPath
}

// packageHLS repackages the MP4 into 2-second VOD segments next to it.
// Best effort, like the thumbnail.
func (c *Cutter) packageHLS(ctx context.Context, clipPath, clipID string) string {
	dir := filepath.Join(filepath.Dir(clipPath), "hls_"+clipID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.logger.Warn("hls directory failed", "clip", clipPath, "error", err)
		return ""
	}
	playlist := filepath.Join(dir, "playlist.m3u8")
	if err := c.runHLS(ctx, clipPath, dir, playlist); err != nil {
		c.logger.Warn("hls packaging failed", "clip", clipPath, "error", err)
		return ""
	}
	return playlist
}

// submit writes the descriptor to the index. The clip file is already on
// disk, so a write failure is logged rather than failing the cut; the index
// retries transient conflicts internally.
func (c *Cutter) submit(ctx context.Context, req Request, res Result) {
	rec := model.ClipRecord{
		FilePath:          res.FilePath,
		ThumbnailPath:     res.ThumbnailPath,
		HLSPath:           res.HLSPath,
		SizeBytes:         res.SizeBytes,
		ProcessingSeconds: res.ProcessingSeconds,
		Fingerprint:       res.Fingerprint,
		Metadata:          req.Metadata,
		CreatedAt:         time.Now().UTC(),
	}
	if req.Segment != nil {
		rec.ClipSegment = *req.Segment
	} else {
		rec.SourcePath = req.SourcePath
		rec.Mode = model.ClipModeEvent
	}
	rec.ClipID = res.ClipID
	rec.StartSeconds = res.StartSeconds
	rec.EndSeconds = res.EndSeconds
	rec.Duration = res.Duration

	if err := c.index.InsertClip(ctx, rec); err != nil {
		c.logger.Warn("index submit failed", "clip_id", res.ClipID, "error", err)
	}
}

func (c *Cutter) fail(clipID, fp string, started time.Time, msg string) Result {
	return Result{
		ClipID:            clipID,
		Fingerprint:       fp,
		Error:             msg,
		ProcessingSeconds: time.Since(started).Seconds(),
	}
}

// clampWindow fits the requested window inside the probed source and the
// configured length cap.
func clampWindow(start, end, sourceDuration, maxDuration float64) (float64, float64) {
	if start < 0 {
		start = 0
	}
	if end > sourceDuration {
		end = sourceDuration
	}
	if end <= start {
		end = start + model.MinClipDuration
		if end > sourceDuration {
			end = sourceDuration
		}
	}
	if end-start > maxDuration {
		end = start + maxDuration
	}
	return start, end
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
