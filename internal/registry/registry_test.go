package registry_test

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rinkside-ai/rinkside/internal/fault"
	"github.com/rinkside-ai/rinkside/internal/registry"
	"github.com/rinkside-ai/rinkside/internal/schemadoc"
	"github.com/rinkside-ai/rinkside/internal/storage"
	"github.com/rinkside-ai/rinkside/internal/testutil"
)

var (
	testDB  *storage.DB
	testReg *registry.Registry
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}

	ctx := context.Background()
	tc := testutil.MustStartPostgres()

	var err error
	testDB, err = tc.NewTestDB(ctx, testutil.TestLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create test DB: %v\n", err)
		tc.Terminate()
		os.Exit(1)
	}
	testReg = registry.New(testDB, testutil.TestLogger())

	code := m.Run()

	testDB.Close()
	tc.Terminate()
	os.Exit(code)
}

func docSource(version string) string {
	return `
schema_version: "` + version + `"
metadata:
  author: analytics
  created: "2025-09-01"
  status: draft
object_types:
  Player:
    primary_key: playerId
    properties:
      playerId: {type: string, required: true}
      name: {type: string}
      salary: {type: integer}
    resolver: {backend: bigquery, table: players}
    policy: player_access
  Team:
    primary_key: teamId
    properties:
      teamId: {type: string, required: true}
link_types:
  team_players:
    from_object: Team
    to_object: Player
    cardinality: one_to_many
    resolver: {type: join_table, table: team_rosters, from_field: teamId, to_field: playerId}
action_types:
  flag_for_review:
    policy: admin_only
    timeout_seconds: 30
security_policies:
  player_access:
    target: object
    target_ref: Player
    rules:
      - {role: scout, access: read, column_filters: [salary], priority: 10}
  admin_only:
    target: action
    rules:
      - {role: admin, access: full, priority: 10}
`
}

func loadVersion(t *testing.T, version string) {
	t.Helper()
	doc, err := schemadoc.ParseDocument([]byte(docSource(version)))
	require.NoError(t, err)
	_, issues, err := testReg.LoadFromDocument(context.Background(), doc, "admin")
	require.NoError(t, err, "issues: %v", issues)
}

func TestLoadAndLookup(t *testing.T) {
	ctx := context.Background()
	loadVersion(t, "10.0.0")

	// Draft versions are not active; lookups pinned to the version work.
	ot, err := testReg.GetObjectType(ctx, "Player", "10.0.0")
	require.NoError(t, err)
	require.NotNil(t, ot)
	assert.Equal(t, "playerId", ot.PrimaryKey)

	missing, err := testReg.GetObjectType(ctx, "Ghost", "10.0.0")
	require.NoError(t, err)
	assert.Nil(t, missing)

	links, err := testReg.GetAllLinkTypes(ctx, "10.0.0")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "team_players", links[0].Name)
}

func TestLoadDuplicateVersionConflicts(t *testing.T) {
	loadVersion(t, "11.0.0")

	doc, err := schemadoc.ParseDocument([]byte(docSource("11.0.0")))
	require.NoError(t, err)
	_, _, err = testReg.LoadFromDocument(context.Background(), doc, "admin")
	require.Error(t, err)
	assert.True(t, fault.IsConflict(err))
}

func TestLoadInvalidDocument(t *testing.T) {
	doc, err := schemadoc.ParseDocument([]byte(`schema_version: "12.0.0"`))
	require.NoError(t, err)

	_, issues, err := testReg.LoadFromDocument(context.Background(), doc, "admin")
	require.Error(t, err)
	assert.True(t, fault.IsInvalidRequest(err))
	assert.True(t, schemadoc.HasErrors(issues))
}

func TestPublishFlipsActive(t *testing.T) {
	ctx := context.Background()
	loadVersion(t, "13.0.0")

	published, err := testReg.Publish(ctx, "13.0.0", "admin")
	require.NoError(t, err)
	assert.True(t, published.Active)

	active, err := testReg.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "13.0.0", active.Version)

	// Publish a newer version; the cache must not serve the old answer.
	loadVersion(t, "13.1.0")
	_, err = testReg.Publish(ctx, "13.1.0", "admin")
	require.NoError(t, err)

	active, err = testReg.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "13.1.0", active.Version)

	old, err := testReg.GetVersion(ctx, "13.0.0")
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.False(t, old.Active)

	versions, err := testReg.ListVersions(ctx)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, v := range versions {
		seen[v.Version] = true
	}
	assert.True(t, seen["13.0.0"])
	assert.True(t, seen["13.1.0"])
}

func TestPublishErrors(t *testing.T) {
	ctx := context.Background()

	_, err := testReg.Publish(ctx, "99.99.99", "admin")
	require.Error(t, err)
	assert.True(t, fault.IsNotFound(err))

	loadVersion(t, "14.0.0")
	_, err = testReg.Publish(ctx, "14.0.0", "admin")
	require.NoError(t, err)
	_, err = testReg.Publish(ctx, "14.0.0", "admin")
	require.Error(t, err)
	assert.True(t, fault.IsConflict(err))
}

func TestActiveVersionLookups(t *testing.T) {
	ctx := context.Background()
	loadVersion(t, "15.0.0")
	_, err := testReg.Publish(ctx, "15.0.0", "admin")
	require.NoError(t, err)

	// Empty version selects the active version.
	ot, err := testReg.GetObjectType(ctx, "Player", "")
	require.NoError(t, err)
	require.NotNil(t, ot)

	policy, err := testReg.GetSecurityPolicy(ctx, "player_access", "")
	require.NoError(t, err)
	require.NotNil(t, policy)
	require.NotEmpty(t, policy.Rules)
	assert.Equal(t, "scout", policy.Rules[0].Role)

	action, err := testReg.GetActionType(ctx, "flag_for_review", "")
	require.NoError(t, err)
	require.NotNil(t, action)

	objects, err := testReg.GetAllObjectTypes(ctx, "")
	require.NoError(t, err)
	assert.Len(t, objects, 2)
}

func TestValidateDocument(t *testing.T) {
	issues, err := registry.ValidateDocument([]byte(docSource("16.0.0")))
	require.NoError(t, err)
	assert.False(t, schemadoc.HasErrors(issues))

	_, err = registry.ValidateDocument([]byte("{{not yaml"))
	require.Error(t, err)
	assert.True(t, fault.IsInvalidRequest(err))
}
