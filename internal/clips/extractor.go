// Package clips derives time-bounded video segments from the analytics
// timeline and shift tables. Event mode windows around single events; shift
// mode spans whole shifts, converting absolute game timecodes into
// period-relative seconds through a per-game offset cache.
package clips

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"

	"github.com/rinkside-ai/rinkside/internal/fault"
	"github.com/rinkside-ai/rinkside/internal/model"
	"github.com/rinkside-ai/rinkside/internal/resolve"
)

// Config tunes the extractor. Zero values take the defaults.
type Config struct {
	// ClipsRoot is the directory holding period video files, laid out as
	// <root>/<season>/team/<team>/p<period>-...-<gameID>.mp4.
	ClipsRoot string
	// Season is used when a search names none.
	Season string
	// PreSeconds and PostSeconds shape the event-mode window around a
	// timecode.
	PreSeconds  float64
	PostSeconds float64
	// MaxRowsPerGame bounds one game's timeline or shift read.
	MaxRowsPerGame int
	// DefaultLimit caps the result set when a search names no limit.
	DefaultLimit int
	// TimelineTypeName and ShiftTypeName are the schema object types the
	// analytics tables resolve through.
	TimelineTypeName string
	ShiftTypeName    string
}

// DefaultConfig returns the extractor defaults.
func DefaultConfig() Config {
	return Config{
		Season:           "2025-2026",
		PreSeconds:       3,
		PostSeconds:      5,
		MaxRowsPerGame:   10000,
		DefaultLimit:     100,
		TimelineTypeName: "GameEvent",
		ShiftTypeName:    "PlayerShift",
	}
}

// Normalize fills zero fields with defaults.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if c.Season == "" {
		c.Season = def.Season
	}
	if c.PreSeconds <= 0 {
		c.PreSeconds = def.PreSeconds
	}
	if c.PostSeconds <= 0 {
		c.PostSeconds = def.PostSeconds
	}
	if c.MaxRowsPerGame <= 0 {
		c.MaxRowsPerGame = def.MaxRowsPerGame
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = def.DefaultLimit
	}
	if c.TimelineTypeName == "" {
		c.TimelineTypeName = def.TimelineTypeName
	}
	if c.ShiftTypeName == "" {
		c.ShiftTypeName = def.ShiftTypeName
	}
	return c
}

// SchemaSource supplies object-type definitions for the analytics tables.
// The registry satisfies it; a nil source or an undeclared type falls back
// to the built-in table shapes.
type SchemaSource interface {
	GetObjectType(ctx context.Context, name, version string) (*model.ObjectType, error)
}

// Extractor turns search parameters into clip segments.
type Extractor struct {
	schema   SchemaSource
	resolver resolve.Resolver
	roster   RosterLookup
	schedule ScheduleSource
	cfg      Config
	logger   *slog.Logger
	offsets  *offsetCache
}

// New builds an extractor. roster and schedule may be nil; searches that
// need them then fail with an invalid-request fault.
func New(schema SchemaSource, resolver resolve.Resolver, roster RosterLookup, schedule ScheduleSource, cfg Config, logger *slog.Logger) *Extractor {
	return &Extractor{
		schema:   schema,
		resolver: resolver,
		roster:   roster,
		schedule: schedule,
		cfg:      cfg.Normalize(),
		logger:   logger.With("component", "clips"),
		offsets:  newOffsetCache(),
	}
}

// Extract runs one search and returns segments ordered by game, period, and
// start time, capped at the search limit.
func (e *Extractor) Extract(ctx context.Context, params SearchParams) ([]model.ClipSegment, error) {
	if !params.Timeframe.Valid() {
		return nil, fault.InvalidRequest("clips: unknown timeframe %q", params.Timeframe)
	}
	mode := params.Mode
	if mode == "" {
		mode = model.ClipModeEvent
	}
	if mode != model.ClipModeEvent && mode != model.ClipModeShift {
		return nil, fault.InvalidRequest("clips: unknown mode %q", mode)
	}
	limit := params.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	season := params.Season
	if season == "" {
		season = e.cfg.Season
	}

	games, err := e.resolveGames(ctx, params, season)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, nil
	}
	players, err := e.resolvePlayers(ctx, params)
	if err != nil {
		return nil, err
	}

	var segments []model.ClipSegment
	switch mode {
	case model.ClipModeEvent:
		segments, err = e.extractEvents(ctx, games, players, params, season)
	case model.ClipModeShift:
		segments, err = e.extractShifts(ctx, games, players, params, season)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(segments, func(i, j int) bool {
		a, b := segments[i], segments[j]
		if a.GameID != b.GameID {
			return a.GameID < b.GameID
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		return a.StartSeconds < b.StartSeconds
	})
	if len(segments) > limit {
		segments = segments[:limit]
	}
	return segments, nil
}

// resolveGames expands explicit game ids or the timeframe token into the
// games to scan.
func (e *Extractor) resolveGames(ctx context.Context, params SearchParams, season string) ([]string, error) {
	if len(params.GameIDs) > 0 {
		out := make([]string, 0, len(params.GameIDs))
		for _, id := range params.GameIDs {
			if n := model.NormalizeID(id); n != "" {
				out = append(out, n)
			}
		}
		return out, nil
	}
	if e.schedule == nil {
		return nil, fault.InvalidRequest("clips: no game ids given and no schedule source configured")
	}
	tf := params.Timeframe
	if tf == "" {
		tf = TimeframeLastGame
	}
	games, err := e.schedule.GameIDs(ctx, tf, params.TeamCode, season)
	if err != nil {
		return nil, fault.Backend(err, "clips: resolve timeframe %s", tf)
	}
	return games, nil
}

// resolvePlayers merges explicit ids with roster-resolved names into one
// normalised set. An empty set means no player narrowing.
func (e *Extractor) resolvePlayers(ctx context.Context, params SearchParams) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	for _, id := range params.PlayerIDs {
		if n := model.NormalizeID(id); n != "" {
			set[n] = struct{}{}
		}
	}
	if len(params.PlayerNames) > 0 {
		if e.roster == nil {
			return nil, fault.InvalidRequest("clips: player names given but no roster lookup configured")
		}
		ids, err := e.roster.ResolvePlayerIDs(ctx, params.PlayerNames)
		if err != nil {
			return nil, fault.Backend(err, "clips: resolve player names")
		}
		for _, id := range ids {
			if n := model.NormalizeID(id); n != "" {
				set[n] = struct{}{}
			}
		}
	}
	return set, nil
}

func (e *Extractor) extractEvents(ctx context.Context, games []string, players map[string]struct{}, params SearchParams, season string) ([]model.ClipSegment, error) {
	ot, err := e.timelineType(ctx)
	if err != nil {
		return nil, err
	}
	actions := toSet(ExpandEventTypes(params.EventTypes))
	zones := toSet(normalizeZones(params.Zones))
	periods := toIntSet(params.Periods)
	sources := newSourceIndex(e.cfg.ClipsRoot, e.logger)

	var segments []model.ClipSegment
	for _, gameID := range games {
		rows, err := e.resolver.GetByFilter(ctx, ot, map[string]any{fieldGameID: gameID}, nil, e.cfg.MaxRowsPerGame, 0)
		if err != nil {
			return nil, err
		}
		offsets := e.offsets.prime(gameID, periodMaxFromRows(rows))

		for _, row := range rows {
			pid := model.NormalizeID(recString(row, fieldPlayerID))
			if len(players) > 0 {
				if _, ok := players[pid]; !ok {
					continue
				}
			}
			if len(actions) > 0 {
				if _, ok := actions[recString(row, fieldAction)]; !ok {
					continue
				}
			}
			if len(zones) > 0 {
				if _, ok := zones[NormalizeZone(recString(row, fieldZone))]; !ok {
					continue
				}
			}
			period, ok := recInt(row, fieldPeriod)
			if !ok || period < 1 {
				continue
			}
			if periods != nil {
				if _, ok := periods[period]; !ok {
					continue
				}
			}
			timecode, ok := recFloat(row, fieldTimecode)
			if !ok {
				continue
			}

			team := recString(row, fieldTeamCode)
			if team == "" {
				team = params.TeamCode
			}
			src := sources.locate(season, team, gameID, period)
			if src == "" {
				e.logger.Debug("clips: no source file", "game", gameID, "period", period, "team", team)
				continue
			}
			start, end := clampWindow(timecode-e.cfg.PreSeconds, timecode+e.cfg.PostSeconds)

			seg := model.ClipSegment{
				ClipID:           segmentID(src, start, end),
				SourcePath:       src,
				StartSeconds:     start,
				EndSeconds:       end,
				AbsoluteTimecode: offsets.Offset(period) + timecode,
				Duration:         end - start,
				GameID:           gameID,
				Season:           season,
				Period:           period,
				Mode:             model.ClipModeEvent,
				PlayerID:         pid,
				PlayerName:       e.playerName(ctx, pid),
				TeamCode:         team,
				OpponentCode:     recString(row, fieldOpponent),
				EventType:        recString(row, fieldAction),
				Outcome:          recString(row, fieldOutcome),
				Zone:             NormalizeZone(recString(row, fieldZone)),
				Strength:         recString(row, fieldStrength),
			}
			e.enrichOnIce(ctx, &seg)
			segments = append(segments, seg)
		}
	}
	return segments, nil
}

func (e *Extractor) extractShifts(ctx context.Context, games []string, players map[string]struct{}, params SearchParams, season string) ([]model.ClipSegment, error) {
	shiftOT, err := e.shiftType(ctx)
	if err != nil {
		return nil, err
	}
	timelineOT, err := e.timelineType(ctx)
	if err != nil {
		return nil, err
	}
	periods := toIntSet(params.Periods)
	wantTeammates := idSet(params.OnIceTeammates)
	wantOpponents := idSet(params.OnIceOpponents)
	sources := newSourceIndex(e.cfg.ClipsRoot, e.logger)

	var segments []model.ClipSegment
	for _, gameID := range games {
		rows, err := e.resolver.GetByFilter(ctx, shiftOT, map[string]any{fieldGameID: gameID}, nil, e.cfg.MaxRowsPerGame, 0)
		if err != nil {
			return nil, err
		}
		offsets, err := e.offsets.get(gameID, func() (map[int]float64, error) {
			timeline, err := e.resolver.GetByFilter(ctx, timelineOT, map[string]any{fieldGameID: gameID},
				[]string{fieldPeriod, fieldTimecode}, e.cfg.MaxRowsPerGame, 0)
			if err != nil {
				return nil, err
			}
			return periodMaxFromRows(timeline), nil
		})
		if err != nil {
			return nil, err
		}

		for _, row := range rows {
			pid := model.NormalizeID(recString(row, fieldPlayerID))
			if len(players) > 0 {
				if _, ok := players[pid]; !ok {
					continue
				}
			}
			period, ok := recInt(row, fieldPeriod)
			if !ok || period < 1 {
				continue
			}
			if periods != nil {
				if _, ok := periods[period]; !ok {
					continue
				}
			}
			teammates := recIDList(row, fieldTeammates)
			opponents := recIDList(row, fieldOpponents)
			if wantOpponents != nil && !overlaps(opponents, wantOpponents) {
				continue
			}
			if !containsAll(teammates, wantTeammates) {
				continue
			}
			startAbs, ok := recFloat(row, fieldShiftStart)
			if !ok {
				continue
			}
			endAbs, ok := recFloat(row, fieldShiftEnd)
			if !ok {
				continue
			}

			team := recString(row, fieldTeamCode)
			if team == "" {
				team = params.TeamCode
			}
			src := sources.locate(season, team, gameID, period)
			if src == "" {
				e.logger.Debug("clips: no source file", "game", gameID, "period", period, "team", team)
				continue
			}
			off := offsets.Offset(period)
			start, end := clampWindow(startAbs-off, endAbs-off)

			segments = append(segments, model.ClipSegment{
				ClipID:           segmentID(src, start, end),
				SourcePath:       src,
				StartSeconds:     start,
				EndSeconds:       end,
				AbsoluteTimecode: startAbs,
				Duration:         end - start,
				GameID:           gameID,
				Season:           season,
				Period:           period,
				Mode:             model.ClipModeShift,
				PlayerID:         pid,
				PlayerName:       e.playerName(ctx, pid),
				TeammateIDs:      teammates,
				OpponentIDs:      opponents,
				TeamCode:         team,
				OpponentCode:     recString(row, fieldOpponent),
				Strength:         recString(row, fieldStrength),
			})
		}
	}
	return segments, nil
}

// playerName resolves a display name, falling back to the id.
func (e *Extractor) playerName(ctx context.Context, playerID string) string {
	if e.roster == nil || playerID == "" {
		return playerID
	}
	name, err := e.roster.PlayerName(ctx, playerID)
	if err != nil || name == "" {
		return playerID
	}
	return name
}

// enrichOnIce fills the on-ice lists of an event segment, best-effort.
func (e *Extractor) enrichOnIce(ctx context.Context, seg *model.ClipSegment) {
	if e.roster == nil {
		return
	}
	teammates, opponents, err := e.roster.OnIce(ctx, seg.GameID, seg.AbsoluteTimecode, seg.TeamCode)
	if err != nil {
		e.logger.Debug("clips: on-ice lookup failed", "game", seg.GameID, "error", err)
		return
	}
	seg.TeammateIDs = teammates
	seg.OpponentIDs = opponents
}

func (e *Extractor) timelineType(ctx context.Context) (*model.ObjectType, error) {
	return e.lookupType(ctx, e.cfg.TimelineTypeName, builtinTimelineType)
}

func (e *Extractor) shiftType(ctx context.Context) (*model.ObjectType, error) {
	return e.lookupType(ctx, e.cfg.ShiftTypeName, builtinShiftType)
}

func (e *Extractor) lookupType(ctx context.Context, name string, fallback func(string) *model.ObjectType) (*model.ObjectType, error) {
	if e.schema != nil {
		ot, err := e.schema.GetObjectType(ctx, name, "")
		if err != nil {
			return nil, err
		}
		if ot != nil {
			return ot, nil
		}
	}
	return fallback(name), nil
}

// clampWindow bounds a computed segment: the start never precedes the file
// and the end always yields at least the minimum clip duration.
func clampWindow(start, end float64) (float64, float64) {
	if start < 0 {
		start = 0
	}
	if end < start+model.MinClipDuration {
		end = start + model.MinClipDuration
	}
	return start, end
}

// segmentID derives the stable clip identifier from the physical segment
// coordinates. Identical (source, start, end) triples share an id.
func segmentID(sourcePath string, start, end float64) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%.1f|%.1f", sourcePath, start, end))
	return "clip_" + hex.EncodeToString(sum[:])[:16]
}

// periodMaxFromRows computes the maximum timecode per period from timeline
// rows.
func periodMaxFromRows(rows []model.Record) map[int]float64 {
	m := make(map[int]float64)
	for _, row := range rows {
		p, ok := recInt(row, fieldPeriod)
		if !ok || p < 1 {
			continue
		}
		t, ok := recFloat(row, fieldTimecode)
		if !ok {
			continue
		}
		if t > m[p] {
			m[p] = t
		}
	}
	return m
}

func normalizeZones(zones []string) []string {
	out := make([]string, 0, len(zones))
	for _, z := range zones {
		if n := NormalizeZone(z); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// builtinTimelineType is the timeline table shape used when the active
// schema does not declare one.
func builtinTimelineType(name string) *model.ObjectType {
	return &model.ObjectType{
		Name:       name,
		PrimaryKey: "eventId",
		Properties: []model.Property{
			{Name: "eventId", Type: model.TypeString, Required: true},
			{Name: fieldGameID, Type: model.TypeString, Required: true},
			{Name: fieldPlayerID, Type: model.TypeString},
			{Name: fieldPeriod, Type: model.TypeInteger},
			{Name: fieldTimecode, Type: model.TypeFloat},
			{Name: fieldAction, Type: model.TypeString},
			{Name: fieldZone, Type: model.TypeString},
			{Name: fieldOutcome, Type: model.TypeString},
			{Name: fieldStrength, Type: model.TypeString},
			{Name: fieldTeamCode, Type: model.TypeString},
			{Name: fieldOpponent, Type: model.TypeString},
		},
		Resolver: &model.ResolverBinding{Backend: model.BackendColumnar},
	}
}

// builtinShiftType is the shift table shape used when the active schema
// does not declare one.
func builtinShiftType(name string) *model.ObjectType {
	return &model.ObjectType{
		Name:       name,
		PrimaryKey: "shiftId",
		Properties: []model.Property{
			{Name: "shiftId", Type: model.TypeString, Required: true},
			{Name: fieldGameID, Type: model.TypeString, Required: true},
			{Name: fieldPlayerID, Type: model.TypeString},
			{Name: fieldPeriod, Type: model.TypeInteger},
			{Name: fieldShiftStart, Type: model.TypeFloat},
			{Name: fieldShiftEnd, Type: model.TypeFloat},
			{Name: fieldTeammates, Type: model.TypeArray},
			{Name: fieldOpponents, Type: model.TypeArray},
			{Name: fieldStrength, Type: model.TypeString},
			{Name: fieldTeamCode, Type: model.TypeString},
			{Name: fieldOpponent, Type: model.TypeString},
		},
		Resolver: &model.ResolverBinding{Backend: model.BackendColumnar},
	}
}
