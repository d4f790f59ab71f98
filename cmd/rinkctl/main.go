// Package main provides rinkctl, the admin CLI for a rinkside ontology
// service: schema lifecycle, mediated object reads, clip extraction and
// cutting, and clip index maintenance. Data goes to stdout as JSON; logs
// go to stderr.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rinkside-ai/rinkside"
	"github.com/rinkside-ai/rinkside/internal/schemadoc"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	level := slog.LevelInfo
	if os.Getenv("RINKSIDE_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := &cli{logger: logger}
	if err := c.rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}

type cli struct {
	logger  *slog.Logger
	actorID string
	role    string
	teams   []string
}

func (c *cli) actor() rinkside.Actor {
	return rinkside.Actor{ID: c.actorID, Role: c.role, TeamIDs: c.teams}
}

// withCore opens the service for one command and closes it afterwards.
// Configuration comes from the environment (RINKSIDE_* variables).
func (c *cli) withCore(fn func(ctx context.Context, core *rinkside.Core, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		core, err := rinkside.New(ctx, rinkside.WithLogger(c.logger))
		if err != nil {
			return err
		}
		defer func() {
			if cerr := core.Close(context.Background()); cerr != nil {
				c.logger.Warn("close failed", "error", cerr)
			}
		}()
		return fn(ctx, core, args)
	}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rinkctl",
		Short: "Administer a rinkside ontology service",
		Long: `rinkctl manages the schema registry, reads objects through the access
mediator, and drives the clip pipeline. Connection settings come from
RINKSIDE_* environment variables (a .env file is honored).`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.actorID, "actor", "rinkctl", "actor id recorded in the audit trail")
	pf.StringVar(&c.role, "role", "admin", "actor role evaluated by the policy engine")
	pf.StringSliceVar(&c.teams, "actor-team", nil, "team codes granted to the actor")

	root.AddCommand(c.schemaCmd(), c.objectCmd(), c.clipsCmd(), c.indexCmd())
	return root
}

// ── Schema commands ───────────────────────────────────────────────────────────

func (c *cli) schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage schema documents and versions",
	}

	validate := &cobra.Command{
		Use:   "validate <file.yaml>",
		Short: "Validate a schema document without touching the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			doc, err := schemadoc.ParseDocument(data)
			if err != nil {
				return err
			}
			issues := schemadoc.Validate(doc)
			if len(issues) > 0 {
				if err := printJSON(issues); err != nil {
					return err
				}
			}
			if schemadoc.HasErrors(issues) {
				return fmt.Errorf("schema document %q has errors", args[0])
			}
			c.logger.Info("schema document valid",
				"version", doc.SchemaVersion,
				"object_types", len(doc.ObjectTypes),
				"link_types", len(doc.LinkTypes))
			return nil
		},
	}

	load := &cobra.Command{
		Use:   "load <file.yaml>",
		Short: "Validate and register a schema document as a draft version",
		Args:  cobra.ExactArgs(1),
		RunE: c.withCore(func(ctx context.Context, core *rinkside.Core, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			ver, issues, err := core.LoadSchema(ctx, c.actor(), data)
			if len(issues) > 0 {
				if perr := printJSON(issues); perr != nil {
					return perr
				}
			}
			if err != nil {
				return err
			}
			return printJSON(ver)
		}),
	}

	publish := &cobra.Command{
		Use:   "publish <version>",
		Short: "Activate a draft version; the previous active version is retired",
		Args:  cobra.ExactArgs(1),
		RunE: c.withCore(func(ctx context.Context, core *rinkside.Core, args []string) error {
			ver, err := core.PublishSchema(ctx, c.actor(), args[0])
			if err != nil {
				return err
			}
			return printJSON(ver)
		}),
	}

	versions := &cobra.Command{
		Use:   "versions",
		Short: "List every registered schema version",
		Args:  cobra.NoArgs,
		RunE: c.withCore(func(ctx context.Context, core *rinkside.Core, _ []string) error {
			vers, err := core.ListSchemaVersions(ctx)
			if err != nil {
				return err
			}
			return printJSON(vers)
		}),
	}

	var showVersion string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the object and link types of a version (default: active)",
		Args:  cobra.NoArgs,
		RunE: c.withCore(func(ctx context.Context, core *rinkside.Core, _ []string) error {
			var ver *rinkside.SchemaVersion
			if showVersion == "" {
				active, err := core.ActiveSchema(ctx)
				if err != nil {
					return err
				}
				if active == nil {
					return fmt.Errorf("no active schema version")
				}
				ver = active
			}
			ots, err := core.ListObjectTypes(ctx, showVersion)
			if err != nil {
				return err
			}
			lts, err := core.ListLinkTypes(ctx, showVersion)
			if err != nil {
				return err
			}
			return printJSON(struct {
				Version     *rinkside.SchemaVersion
				ObjectTypes []rinkside.ObjectType
				LinkTypes   []rinkside.LinkType
			}{ver, ots, lts})
		}),
	}
	show.Flags().StringVar(&showVersion, "version", "", "schema version to show instead of the active one")

	cmd.AddCommand(validate, load, publish, versions, show)
	return cmd
}

// ── Object commands ───────────────────────────────────────────────────────────

func (c *cli) objectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "object",
		Short: "Read objects through the access mediator",
	}

	var getFields []string
	get := &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Fetch one object by primary key",
		Args:  cobra.ExactArgs(2),
		RunE: c.withCore(func(ctx context.Context, core *rinkside.Core, args []string) error {
			rec, err := core.GetObject(ctx, c.actor(), args[0], args[1], getFields)
			if err != nil {
				return err
			}
			return printJSON(rec)
		}),
	}
	get.Flags().StringSliceVar(&getFields, "fields", nil, "properties to return (default: all visible)")

	var (
		queryFilters []string
		queryFields  []string
		queryLimit   int
		queryOffset  int
	)
	query := &cobra.Command{
		Use:   "query <type>",
		Short: "List objects matching equality filters",
		Args:  cobra.ExactArgs(1),
		RunE: c.withCore(func(ctx context.Context, core *rinkside.Core, args []string) error {
			filters, err := parseKeyValues(queryFilters)
			if err != nil {
				return err
			}
			recs, err := core.QueryObjects(ctx, c.actor(), args[0], filters, queryFields, queryLimit, queryOffset)
			if err != nil {
				return err
			}
			return printJSON(recs)
		}),
	}
	query.Flags().StringArrayVar(&queryFilters, "filter", nil, "property=value filter (repeatable)")
	query.Flags().StringSliceVar(&queryFields, "fields", nil, "properties to return")
	query.Flags().IntVar(&queryLimit, "limit", 0, "max rows (0 = backend default)")
	query.Flags().IntVar(&queryOffset, "offset", 0, "rows to skip")

	var (
		traverseFields []string
		traverseLimit  int
	)
	traverse := &cobra.Command{
		Use:   "traverse <link> <from-id>",
		Short: "Follow a link type from one object to its related objects",
		Args:  cobra.ExactArgs(2),
		RunE: c.withCore(func(ctx context.Context, core *rinkside.Core, args []string) error {
			recs, err := core.TraverseLink(ctx, c.actor(), args[0], args[1], traverseFields, traverseLimit)
			if err != nil {
				return err
			}
			return printJSON(recs)
		}),
	}
	traverse.Flags().StringSliceVar(&traverseFields, "fields", nil, "properties to return")
	traverse.Flags().IntVar(&traverseLimit, "limit", 0, "max rows (0 = backend default)")

	cmd.AddCommand(get, query, traverse)
	return cmd
}

// ── Clip commands ─────────────────────────────────────────────────────────────

func (c *cli) clipsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clips",
		Short: "Extract, cut, and query video clips",
	}

	var search rinkside.ClipSearch
	extract := &cobra.Command{
		Use:   "extract",
		Short: "Resolve events or shifts into cut-ready clip segments",
		Args:  cobra.NoArgs,
		RunE: c.withCore(func(ctx context.Context, core *rinkside.Core, _ []string) error {
			segments, err := core.ExtractClips(ctx, c.actor(), search)
			if err != nil {
				return err
			}
			return printJSON(segments)
		}),
	}
	ef := extract.Flags()
	ef.StringSliceVar(&search.PlayerIDs, "player", nil, "player ids to match")
	ef.StringSliceVar(&search.PlayerNames, "name", nil, "player names to resolve against the roster")
	ef.StringSliceVar(&search.EventTypes, "event", nil, "event types (goal, shot, hit, ...)")
	ef.StringSliceVar(&search.Zones, "zone", nil, "zones (OZ, NZ, DZ; synonyms accepted)")
	ef.StringVar(&search.Timeframe, "timeframe", "", "last_game, last_3_games, last_5_games, last_10_games, this_season")
	ef.StringSliceVar(&search.GameIDs, "game", nil, "explicit game ids (overrides --timeframe)")
	ef.IntSliceVar(&search.Periods, "period", nil, "periods to include")
	ef.StringVar(&search.TeamCode, "team", "", "team code scoping the schedule lookup")
	ef.StringVar(&search.Mode, "mode", "event", "event or shift")
	ef.StringSliceVar(&search.OnIceTeammates, "with", nil, "teammate ids that must be on ice")
	ef.StringSliceVar(&search.OnIceOpponents, "against", nil, "opponent ids that must be on ice")
	ef.IntVar(&search.Limit, "limit", 0, "max segments (0 = default)")
	ef.StringVar(&search.Season, "season", "", "season label (default: configured season)")

	var cutMeta []string
	cut := &cobra.Command{
		Use:   "cut <segments.json>",
		Short: "Cut segments produced by 'clips extract' ('-' reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: c.withCore(func(ctx context.Context, core *rinkside.Core, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			var segments []rinkside.ClipSegment
			if err := json.Unmarshal(data, &segments); err != nil {
				return fmt.Errorf("parse segments: %w", err)
			}
			metadata, err := parseKeyValues(cutMeta)
			if err != nil {
				return err
			}
			results := core.CutClips(ctx, c.actor(), segments, metadata)
			if err := printJSON(results); err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				if !r.Success {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d cuts failed", failed, len(results))
			}
			return nil
		}),
	}
	cut.Flags().StringArrayVar(&cutMeta, "meta", nil, "key=value metadata stored with each clip (repeatable)")

	var q rinkside.ClipQuery
	query := &cobra.Command{
		Use:   "query",
		Short: "Search the clip index",
		Args:  cobra.NoArgs,
		RunE: c.withCore(func(ctx context.Context, core *rinkside.Core, _ []string) error {
			recs, err := core.QueryClips(ctx, c.actor(), q)
			if err != nil {
				return err
			}
			return printJSON(recs)
		}),
	}
	qf := query.Flags()
	qf.StringSliceVar(&q.PlayerIDs, "player", nil, "player ids")
	qf.StringSliceVar(&q.GameIDs, "game", nil, "game ids")
	qf.StringSliceVar(&q.EventTypes, "event", nil, "event types")
	qf.StringSliceVar(&q.TeamCodes, "team", nil, "team codes")
	qf.IntVar(&q.Limit, "limit", 0, "max rows (0 = default)")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print clip index totals and cache hit rate",
		Args:  cobra.NoArgs,
		RunE: c.withCore(func(ctx context.Context, core *rinkside.Core, _ []string) error {
			s, err := core.ClipStats(ctx)
			if err != nil {
				return err
			}
			return printJSON(s)
		}),
	}

	cmd.AddCommand(extract, cut, query, stats)
	return cmd
}

// ── Index commands ────────────────────────────────────────────────────────────

func (c *cli) indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Maintain the clip index",
	}

	export := &cobra.Command{
		Use:   "export <out.parquet>",
		Short: "Export the clip index to a columnar file",
		Args:  cobra.ExactArgs(1),
		RunE: c.withCore(func(ctx context.Context, core *rinkside.Core, args []string) error {
			n, err := core.ExportClipIndex(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(struct {
				Exported int
				Path     string
			}{n, args[0]})
		}),
	}

	migrate := &cobra.Command{
		Use:   "migrate <legacy.json>",
		Short: "Import clips from a legacy JSON index",
		Args:  cobra.ExactArgs(1),
		RunE: c.withCore(func(ctx context.Context, core *rinkside.Core, args []string) error {
			n, err := core.MigrateClipIndex(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(struct {
				Migrated int
			}{n})
		}),
	}

	cmd.AddCommand(export, migrate)
	return cmd
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// readInput reads a file argument, with "-" meaning stdin.
func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func parseKeyValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", p)
		}
		m[k] = v
	}
	return m, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')
	_, err = os.Stdout.Write(out)
	return err
}
