package rinkside

import "context"

// Resolver fetches records for schema object types from one backend.
// When provided via WithResolver it is wrapped in the shared record cache
// and registered for its Backend() tag, replacing a built-in resolver
// that serves the same tag. Return (nil, nil) from GetByID when the id
// does not exist; errors are reserved for backend failures.
type Resolver interface {
	Backend() string
	GetByID(ctx context.Context, objectType ObjectType, id string, projection []string) (Record, error)
	GetByFilter(ctx context.Context, objectType ObjectType, filters map[string]any, projection []string, limit, offset int) ([]Record, error)
	TraverseLink(ctx context.Context, link LinkType, fromID string, toType ObjectType, projection []string, limit int) ([]Record, error)
}

// RosterLookup resolves player names and on-ice context from the roster
// system. Every call is best-effort enrichment except ResolvePlayerIDs,
// which name-based searches need to honour.
type RosterLookup interface {
	// ResolvePlayerIDs maps player names to ids, preserving input order.
	ResolvePlayerIDs(ctx context.Context, names []string) ([]string, error)
	// PlayerName returns the display name for a player id.
	PlayerName(ctx context.Context, playerID string) (string, error)
	// OnIce returns the skaters on the ice at an absolute game timecode,
	// split into teammates and opponents relative to teamCode.
	OnIce(ctx context.Context, gameID string, timecode float64, teamCode string) (teammates, opponents []string, err error)
}

// ScheduleSource expands a timeframe token into concrete game ids,
// newest game first.
type ScheduleSource interface {
	GameIDs(ctx context.Context, timeframe, teamCode, season string) ([]string, error)
}

// CutRunner executes an external command and returns its combined output.
// When provided via WithCutRunner it replaces the exec-backed default the
// cutter shells out to ffmpeg with.
type CutRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ActionHandler executes one registered action. The input map has already
// passed schema validation and the actor has passed the action's policy
// when the handler runs.
type ActionHandler func(ctx context.Context, actor Actor, action string, input map[string]any) (Record, error)
