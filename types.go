package rinkside

import (
	"time"

	"github.com/google/uuid"
)

// Actor identifies who is asking. Role is matched against policy rules
// (free-form; "*" in a policy matches every role), TeamIDs scope
// team-bound row filters.
type Actor struct {
	ID      string
	Role    string
	TeamIDs []string
}

// Record is one resolved object: column name to value.
type Record = map[string]any

// Config collects every tunable. Zero fields fall back to the same
// defaults the environment loader uses; DatabaseURL is required.
type Config struct {
	// DatabaseURL is the Postgres URL for the schema registry and the
	// audit trail.
	DatabaseURL string
	// WarehouseURL points the SQL resolver at the analytics warehouse.
	// Empty means the registry database also serves warehouse reads.
	WarehouseURL string
	// ColumnarRoot is the directory holding <dataset>/<object>.parquet.
	ColumnarRoot string

	CacheTTL        time.Duration
	CacheMaxEntries int

	// VideoRoot holds the raw period video tree; ClipOutputRoot receives
	// cut clips; ClipIndexPath is the SQLite clip index file.
	VideoRoot      string
	ClipOutputRoot string
	ClipIndexPath  string

	Season          string
	ClipPreSeconds  float64
	ClipPostSeconds float64
	MaxClipDuration float64
	CutWorkers      int
	EnableHLS       bool
	FFmpegPath      string
	FFprobePath     string

	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string
	LogLevel     string
}

// SchemaVersion is one versioned snapshot of the ontology.
type SchemaVersion struct {
	ID          uuid.UUID
	Version     string
	State       string // draft | review | published | deprecated
	Active      bool
	Description string
	CreatedBy   string
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// SchemaIssue is one validation finding, located by a dotted path into
// the authored document.
type SchemaIssue struct {
	Severity   string // error | warning | info
	Path       string
	Message    string
	Suggestion string
}

// Property is a typed attribute of an object type.
type Property struct {
	Name        string
	Type        string
	Required    bool
	Enum        []string
	Description string
}

// ObjectType is a named business entity (Player, Team, Contract) as the
// active schema declares it. BackendConfig carries the resolver binding
// ("table" for the warehouse, "path" for columnar files).
type ObjectType struct {
	Name          string
	Description   string
	PrimaryKey    string
	Properties    []Property
	Backend       string
	BackendConfig map[string]any
	PolicyRef     string
}

// LinkType is a directed relation between two object types. FromField,
// ToField, and JoinTable expose the traversal binding for external
// resolvers.
type LinkType struct {
	Name        string
	Description string
	FromObject  string
	ToObject    string
	Cardinality string // one_to_one | one_to_many | many_to_one | many_to_many
	FromField   string
	ToField     string
	JoinTable   string
}

// Clip modes.
const (
	ClipModeEvent = "event"
	ClipModeShift = "shift"
)

// Timeframe tokens for ClipSearch. An empty timeframe means last_game.
const (
	TimeframeLastGame    = "last_game"
	TimeframeLast3Games  = "last_3_games"
	TimeframeLast5Games  = "last_5_games"
	TimeframeLast10Games = "last_10_games"
	TimeframeThisSeason  = "this_season"
)

// ClipSearch narrows a clip extraction. PlayerNames resolve through the
// roster lookup; GameIDs, when set, override Timeframe. OnIceTeammates
// must all be on the ice during a shift for it to match; OnIceOpponents
// match on any overlap. Both apply to shift mode only.
type ClipSearch struct {
	PlayerIDs      []string
	PlayerNames    []string
	EventTypes     []string
	Zones          []string
	Timeframe      string
	GameIDs        []string
	Periods        []int
	TeamCode       string
	Mode           string
	OnIceTeammates []string
	OnIceOpponents []string
	Limit          int
	Season         string
}

// ClipSegment is a time-bounded descriptor into a source video. Start and
// End are period-relative seconds within the source file.
type ClipSegment struct {
	ClipID           string
	SourcePath       string
	StartSeconds     float64
	EndSeconds       float64
	AbsoluteTimecode float64
	Duration         float64
	GameID           string
	GameDate         string
	Season           string
	Period           int
	Mode             string
	PlayerID         string
	PlayerName       string
	TeammateIDs      []string
	OpponentIDs      []string
	TeamCode         string
	OpponentCode     string
	EventType        string
	Outcome          string
	Zone             string
	Strength         string
}

// ClipRecord is the persisted outcome of cutting a segment.
type ClipRecord struct {
	ClipSegment

	FilePath          string
	ThumbnailPath     string
	HLSPath           string
	SizeBytes         int64
	ProcessingSeconds float64
	Fingerprint       string
	Metadata          map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CutResult reports one cut. Failures are in-band: Success false and
// Error set, so one bad segment cannot sink a batch.
type CutResult struct {
	ClipID            string
	Fingerprint       string
	FilePath          string
	ThumbnailPath     string
	HLSPath           string
	StartSeconds      float64
	EndSeconds        float64
	Duration          float64
	SizeBytes         int64
	Strategy          string // reencode | copy | cache
	CacheHit          bool
	Success           bool
	Error             string
	ProcessingSeconds float64
}

// ClipQuery filters the clip index. Values within a field are any-of;
// fields combine conjunctively. Zero limit means the default (100).
type ClipQuery struct {
	PlayerIDs  []string
	GameIDs    []string
	EventTypes []string
	TeamCodes  []string
	Limit      int
}

// ClipIndexStats summarises the clip index.
type ClipIndexStats struct {
	TotalClips           int
	TotalSizeBytes       int64
	TotalDurationSeconds float64
	UniquePlayers        int
	UniqueGames          int
	CacheHits            int64
	CacheHitRate         float64
}
