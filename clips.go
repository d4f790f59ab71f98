package rinkside

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rinkside-ai/rinkside/internal/cutter"
)

// ExtractClips searches the analytics tables and returns time-bounded
// segments ordered by game, period, and start time. The search lands in
// the access audit trail under the actor, like any mediated read.
func (c *Core) ExtractClips(ctx context.Context, actor Actor, params ClipSearch) ([]ClipSegment, error) {
	start := c.clock()
	mode := params.Mode
	if mode == "" {
		mode = ClipModeEvent
	}

	segments, err := c.extractor.Extract(ctx, fromPublicSearch(params))
	c.mediator.Audit(ctx, fromPublicActor(actor), "extract_clips", "clip_search", mode, start, err)
	if err != nil {
		return nil, err
	}

	out := make([]ClipSegment, len(segments))
	for i, s := range segments {
		out[i] = toPublicSegment(s)
	}
	return out, nil
}

// CutClips cuts extracted segments into files under the clip output root,
// running up to the configured worker count in parallel. Failures are
// in-band per result; metadata is stored on every produced clip record.
func (c *Core) CutClips(ctx context.Context, actor Actor, segments []ClipSegment, metadata map[string]any) []CutResult {
	start := c.clock()
	requests := make([]cutter.Request, len(segments))
	for i, s := range segments {
		requests[i] = cutter.FromSegment(fromPublicSegment(s), c.cfg.ClipOutputRoot, metadata)
	}

	results := c.cutter.CutParallel(ctx, requests)

	var failed int
	out := make([]CutResult, len(results))
	for i, r := range results {
		if !r.Success {
			failed++
		}
		out[i] = toPublicCutResult(r)
	}

	var opErr error
	if failed > 0 {
		opErr = fmt.Errorf("%d of %d cuts failed", failed, len(results))
	}
	c.mediator.Audit(ctx, fromPublicActor(actor), "cut_clips", "clip_batch", strconv.Itoa(len(requests)), start, opErr)
	return out
}

// QueryClips filters the clip index, newest first.
func (c *Core) QueryClips(ctx context.Context, actor Actor, q ClipQuery) ([]ClipRecord, error) {
	start := c.clock()
	records, err := c.index.QueryClips(ctx, fromPublicClipQuery(q))
	c.mediator.Audit(ctx, fromPublicActor(actor), "query_clips", "clip_index", "", start, err)
	if err != nil {
		return nil, err
	}

	out := make([]ClipRecord, len(records))
	for i, r := range records {
		out[i] = toPublicClipRecord(r)
	}
	return out, nil
}

// ClipStats summarises the clip index.
func (c *Core) ClipStats(ctx context.Context) (ClipIndexStats, error) {
	stats, err := c.index.GetStats(ctx)
	if err != nil {
		return ClipIndexStats{}, err
	}
	return toPublicStats(*stats), nil
}

// ExportClipIndex dumps the full index to a parquet file at path,
// oldest clip first, and returns the row count.
func (c *Core) ExportClipIndex(ctx context.Context, path string) (int, error) {
	return c.index.ExportToColumnar(ctx, path)
}

// MigrateClipIndex imports a legacy JSON clip index into the database,
// then renames the source file to <path>.backup. Returns the number of
// imported records.
func (c *Core) MigrateClipIndex(ctx context.Context, legacyPath string) (int, error) {
	return c.index.MigrateFromJSON(ctx, legacyPath)
}
