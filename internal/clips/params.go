package clips

import (
	"context"

	"github.com/rinkside-ai/rinkside/internal/model"
)

// Timeframe selects which games a search spans when no explicit game ids
// are given.
type Timeframe string

const (
	TimeframeLastGame    Timeframe = "last_game"
	TimeframeLast3Games  Timeframe = "last_3_games"
	TimeframeLast5Games  Timeframe = "last_5_games"
	TimeframeLast10Games Timeframe = "last_10_games"
	TimeframeThisSeason  Timeframe = "this_season"
)

// Valid reports whether t is a known timeframe token. The empty timeframe
// is valid and means last_game.
func (t Timeframe) Valid() bool {
	switch t {
	case "", TimeframeLastGame, TimeframeLast3Games, TimeframeLast5Games,
		TimeframeLast10Games, TimeframeThisSeason:
		return true
	}
	return false
}

// SearchParams narrows a clip search. PlayerNames are resolved through the
// roster lookup; GameIDs, when set, override Timeframe. OnIceTeammates must
// all be on the ice during a shift for it to match; OnIceOpponents match on
// any overlap. Both apply to shift mode only.
type SearchParams struct {
	PlayerIDs      []string
	PlayerNames    []string
	EventTypes     []string
	Zones          []string
	Timeframe      Timeframe
	GameIDs        []string
	Periods        []int
	TeamCode       string
	Mode           model.ClipMode
	OnIceTeammates []string
	OnIceOpponents []string
	Limit          int
	Season         string
}

// RosterLookup resolves player names and on-ice context from the roster
// system. Implementations live outside this module; the extractor treats
// every call as best-effort enrichment except ResolvePlayerIDs, which it
// needs to honour name-based searches.
type RosterLookup interface {
	// ResolvePlayerIDs maps player names to ids, preserving input order.
	ResolvePlayerIDs(ctx context.Context, names []string) ([]string, error)
	// PlayerName returns the display name for a player id.
	PlayerName(ctx context.Context, playerID string) (string, error)
	// OnIce returns the skaters on the ice at an absolute game timecode,
	// split into teammates and opponents relative to teamCode.
	OnIce(ctx context.Context, gameID string, timecode float64, teamCode string) (teammates, opponents []string, err error)
}

// ScheduleSource expands a timeframe token into concrete game ids, newest
// game first.
type ScheduleSource interface {
	GameIDs(ctx context.Context, timeframe Timeframe, teamCode, season string) ([]string, error)
}
