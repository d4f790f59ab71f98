package rinkside

import (
	"log/slog"
	"time"
)

// Option configures a Core.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	cfg            *Config
	logger         *slog.Logger
	resolvers      []Resolver
	roster         RosterLookup
	schedule       ScheduleSource
	actionHandlers map[string]ActionHandler
	cutRunner      CutRunner
	clock          func() time.Time
}

// WithConfig supplies the configuration programmatically instead of
// reading environment variables. Zero fields take the loader defaults.
func WithConfig(cfg Config) Option {
	return func(o *resolvedOptions) { o.cfg = &cfg }
}

// WithLogger sets the structured logger for the Core.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithResolver registers an additional data backend. A resolver whose
// Backend() tag matches a built-in ("bigquery", "parquet") replaces it,
// including for clip extraction reads.
func WithResolver(r Resolver) Option {
	return func(o *resolvedOptions) { o.resolvers = append(o.resolvers, r) }
}

// WithRosterLookup connects the roster system used for player-name
// searches and on-ice enrichment. Without it, name-based clip searches
// fail with an invalid-request error.
func WithRosterLookup(r RosterLookup) Option {
	return func(o *resolvedOptions) { o.roster = r }
}

// WithScheduleSource connects the schedule used to expand timeframe
// tokens into game ids. Without it, timeframe-based clip searches fail
// with an invalid-request error.
func WithScheduleSource(s ScheduleSource) Option {
	return func(o *resolvedOptions) { o.schedule = s }
}

// WithActionHandler registers the executor for a named action type.
// Registering the same name twice keeps the last handler.
func WithActionHandler(name string, h ActionHandler) Option {
	return func(o *resolvedOptions) {
		if o.actionHandlers == nil {
			o.actionHandlers = make(map[string]ActionHandler)
		}
		o.actionHandlers[name] = h
	}
}

// WithCutRunner replaces the exec-backed ffmpeg runner. Tests use this to
// cut without video tooling installed.
func WithCutRunner(r CutRunner) Option {
	return func(o *resolvedOptions) { o.cutRunner = r }
}

// WithClock overrides the time source used for audit timestamps.
// Only the last call wins.
func WithClock(now func() time.Time) Option {
	return func(o *resolvedOptions) { o.clock = now }
}
