// Package rinkside is the public API for embedding the hockey ontology
// service: the versioned schema registry, policy-mediated object access,
// and the clip extraction pipeline.
//
//	core, err := rinkside.New(ctx,
//	    rinkside.WithLogger(logger),
//	    rinkside.WithRosterLookup(roster),
//	    rinkside.WithScheduleSource(schedule),
//	)
//	if err != nil { ... }
//	defer core.Close(ctx)
//
//	segments, err := core.ExtractClips(ctx, actor, rinkside.ClipSearch{
//	    PlayerNames: []string{"Sidney Crosby"},
//	    EventTypes:  []string{"shot"},
//	    Timeframe:   rinkside.TimeframeLast5Games,
//	})
//
// The import graph keeps a strict no-cycle rule: rinkside (root) imports
// internal/*, but internal/* never imports the root. Public types
// (Actor, ClipSegment, ...) are standalone structs with no internal
// imports; the converters in convert.go are the only code that sees both
// sides of the boundary.
package rinkside

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rinkside-ai/rinkside/internal/clipindex"
	"github.com/rinkside-ai/rinkside/internal/clips"
	"github.com/rinkside-ai/rinkside/internal/columnar"
	"github.com/rinkside-ai/rinkside/internal/config"
	"github.com/rinkside-ai/rinkside/internal/cutter"
	"github.com/rinkside-ai/rinkside/internal/mediator"
	"github.com/rinkside-ai/rinkside/internal/model"
	"github.com/rinkside-ai/rinkside/internal/policy"
	"github.com/rinkside-ai/rinkside/internal/registry"
	"github.com/rinkside-ai/rinkside/internal/resolve"
	"github.com/rinkside-ai/rinkside/internal/storage"
	"github.com/rinkside-ai/rinkside/internal/telemetry"
	"github.com/rinkside-ai/rinkside/internal/warehouse"
	"github.com/rinkside-ai/rinkside/migrations"
)

// Version is reported in startup logs and telemetry resource attributes.
const Version = "0.1.0"

// Core is the assembled service. Construct with New(), release with
// Close(). Core has no public fields — use New() options to configure it.
type Core struct {
	cfg          config.Config
	logger       *slog.Logger
	db           *storage.DB
	warehouseDB  *storage.DB // == db unless a separate warehouse DSN is configured
	registry     *registry.Registry
	engine       *policy.Engine
	mediator     *mediator.Mediator
	metrics      *resolve.Metrics
	extractor    *clips.Extractor
	index        *clipindex.Index
	cutter       *cutter.Cutter
	clock        func() time.Time
	otelShutdown telemetry.Shutdown
}

// New initialises the service. It connects to the database, runs
// migrations, and wires the registry, policy engine, mediator, resolvers,
// and clip pipeline. No goroutines are started; workers spin up per
// operation.
func New(ctx context.Context, opts ...Option) (*Core, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	var cfg config.Config
	if o.cfg != nil {
		cfg = fromPublicConfig(*o.cfg).Normalized()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	logger.Info("rinkside starting", "version", Version)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, Version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}

	// The warehouse shares the registry pool unless it lives elsewhere.
	warehouseDB := db
	if cfg.WarehouseURL != "" && cfg.WarehouseURL != cfg.DatabaseURL {
		warehouseDB, err = storage.New(ctx, cfg.WarehouseURL, logger)
		if err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("warehouse: %w", err)
		}
	}

	reg := registry.New(db, logger)
	engine := policy.New(logger)
	med := mediator.New(reg, engine, db, logger)

	rcfg := resolve.DefaultConfig()
	rcfg.CacheTTL = cfg.CacheTTL
	rcfg.CacheEntries = cfg.CacheMaxEntries
	metrics := resolve.NewMetrics()

	wh := resolve.NewCaching(warehouse.New(warehouseDB, rcfg, logger), rcfg, metrics, logger)
	col := resolve.NewCaching(columnar.New(cfg.ColumnarRoot, rcfg, logger), rcfg, metrics, logger)
	med.RegisterResolver(wh)
	med.RegisterResolver(col)

	// Custom resolvers replace the built-in serving the same backend tag.
	// The extractor reads the analytics tables through whichever resolver
	// serves the columnar backend.
	clipResolver := resolve.Resolver(col)
	for _, r := range o.resolvers {
		wrapped := resolve.NewCaching(&resolverAdapter{r: r}, rcfg, metrics, logger)
		med.RegisterResolver(wrapped)
		if wrapped.Backend() == model.BackendColumnar {
			clipResolver = wrapped
		}
	}

	for name, h := range o.actionHandlers {
		med.RegisterActionHandler(name, adaptActionHandler(h))
	}

	index, err := clipindex.Open(cfg.ClipIndexPath, logger)
	if err != nil {
		if warehouseDB != db {
			warehouseDB.Close()
		}
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("clip index: %w", err)
	}

	var runner cutter.Runner
	if o.cutRunner != nil {
		runner = o.cutRunner
	}
	cut := cutter.New(index, runner, cutter.Config{
		FFmpegPath:      cfg.FFmpegPath,
		FFprobePath:     cfg.FFprobePath,
		MaxClipDuration: cfg.MaxClipDuration,
		Workers:         cfg.CutWorkers,
		EnableHLS:       cfg.EnableHLS,
	}, logger)

	var roster clips.RosterLookup
	if o.roster != nil {
		roster = o.roster
	}
	var schedule clips.ScheduleSource
	if o.schedule != nil {
		schedule = scheduleAdapter{s: o.schedule}
	}
	extractor := clips.New(reg, clipResolver, roster, schedule, clips.Config{
		ClipsRoot:   cfg.VideoRoot,
		Season:      cfg.Season,
		PreSeconds:  cfg.ClipPreSeconds,
		PostSeconds: cfg.ClipPostSeconds,
	}, logger)

	clock := o.clock
	if clock == nil {
		clock = time.Now
	}

	logger.Info("rinkside ready",
		"backends", []string{wh.Backend(), col.Backend()},
		"clip_index", index.Path(),
	)

	return &Core{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		warehouseDB:  warehouseDB,
		registry:     reg,
		engine:       engine,
		mediator:     med,
		metrics:      metrics,
		extractor:    extractor,
		index:        index,
		cutter:       cut,
		clock:        clock,
		otelShutdown: otelShutdown,
	}, nil
}

// Close releases the clip index, database pools, and telemetry providers.
// Safe to call once; operations in flight should be drained first by
// cancelling their contexts.
func (c *Core) Close(ctx context.Context) error {
	c.logger.Info("rinkside closing")

	var errs []error
	if err := c.index.Close(); err != nil {
		errs = append(errs, fmt.Errorf("clip index: %w", err))
	}
	if c.warehouseDB != c.db {
		c.warehouseDB.Close()
	}
	c.db.Close()
	if err := c.otelShutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}
	return errors.Join(errs...)
}

// ── Adapters (public interfaces to internal contracts) ────────────────────────

// resolverAdapter wraps a rinkside.Resolver to satisfy resolve.Resolver.
// Record is an alias of map[string]any on both sides, so only the type
// descriptors convert.
type resolverAdapter struct {
	r Resolver
}

func (a *resolverAdapter) Backend() string { return a.r.Backend() }

func (a *resolverAdapter) GetByID(ctx context.Context, objectType *model.ObjectType, id string, projection []string) (model.Record, error) {
	return a.r.GetByID(ctx, toPublicObjectType(*objectType), id, projection)
}

func (a *resolverAdapter) GetByFilter(ctx context.Context, objectType *model.ObjectType, filters map[string]any, projection []string, limit, offset int) ([]model.Record, error) {
	return a.r.GetByFilter(ctx, toPublicObjectType(*objectType), filters, projection, limit, offset)
}

func (a *resolverAdapter) TraverseLink(ctx context.Context, link *model.LinkType, fromID string, toType *model.ObjectType, projection []string, limit int) ([]model.Record, error) {
	return a.r.TraverseLink(ctx, toPublicLinkType(*link), fromID, toPublicObjectType(*toType), projection, limit)
}

// scheduleAdapter narrows the public timeframe string to the internal
// token type. RosterLookup and CutRunner share their internal shapes and
// pass through without adapters.
type scheduleAdapter struct {
	s ScheduleSource
}

func (a scheduleAdapter) GameIDs(ctx context.Context, timeframe clips.Timeframe, teamCode, season string) ([]string, error) {
	return a.s.GameIDs(ctx, string(timeframe), teamCode, season)
}

// adaptActionHandler wraps a public ActionHandler for the mediator, which
// hands it the full action type after validation and policy checks.
func adaptActionHandler(h ActionHandler) mediator.ActionHandler {
	return func(ctx context.Context, actor policy.Actor, action *model.ActionType, input map[string]any) (model.Record, error) {
		return h(ctx, toPublicActor(actor), action.Name, input)
	}
}
