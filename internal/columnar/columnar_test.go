package columnar

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rinkside-ai/rinkside/internal/fault"
	"github.com/rinkside-ai/rinkside/internal/model"
	"github.com/rinkside-ai/rinkside/internal/resolve"
	"github.com/rinkside-ai/rinkside/internal/testutil"
)

type playerRow struct {
	PlayerID string `parquet:"playerId"`
	Name     string `parquet:"name"`
	Position string `parquet:"position"`
	Salary   int64  `parquet:"salary"`
}

func writePlayers(t *testing.T, root string, rows []playerRow) {
	t.Helper()
	path := filepath.Join(root, "analytics", "player.parquet")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	f, err := os.Create(path)
	require.NoError(t, err)
	w := parquet.NewGenericWriter[playerRow](f)
	_, err = w.Write(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func defaultRows() []playerRow {
	return []playerRow{
		{PlayerID: "P1", Name: "Auston", Position: "C", Salary: 1000},
		{PlayerID: "P2", Name: "Mitch", Position: "RW", Salary: 900},
		{PlayerID: "P3", Name: "Nick", Position: "C", Salary: 500},
	}
}

func columnarPlayer() *model.ObjectType {
	return &model.ObjectType{
		Name:       "Player",
		PrimaryKey: "playerId",
		Resolver:   &model.ResolverBinding{Backend: model.BackendColumnar},
	}
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	root := t.TempDir()
	writePlayers(t, root, defaultRows())
	return New(root, resolve.DefaultConfig(), testutil.TestLogger())
}

func TestGetByID(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	rec, err := r.GetByID(ctx, columnarPlayer(), "P2", nil)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "P2", rec["playerId"])
	assert.Equal(t, "Mitch", rec["name"])
	assert.Equal(t, int64(900), rec["salary"])

	rec, err = r.GetByID(ctx, columnarPlayer(), "P404", nil)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGetByIDProjectionForcesPrimaryKey(t *testing.T) {
	r := newTestResolver(t)

	rec, err := r.GetByID(context.Background(), columnarPlayer(), "P1", []string{"name"})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "P1", rec["playerId"])
	assert.Equal(t, "Auston", rec["name"])
	assert.NotContains(t, rec, "salary")
}

func TestGetByFilter(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	recs, err := r.GetByFilter(ctx, columnarPlayer(), map[string]any{"position": "C"}, nil, 10, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = r.GetByFilter(ctx, columnarPlayer(), map[string]any{"playerId": []string{"P1", "P3"}}, nil, 10, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = r.GetByFilter(ctx, columnarPlayer(), map[string]any{"position": "C", "name": "Nick"}, nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "P3", recs[0]["playerId"])
}

func TestGetByFilterLimitOffset(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	recs, err := r.GetByFilter(ctx, columnarPlayer(), nil, nil, 2, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = r.GetByFilter(ctx, columnarPlayer(), nil, nil, 2, 2)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = r.GetByFilter(ctx, columnarPlayer(), nil, nil, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestTraverseForeignKey(t *testing.T) {
	r := newTestResolver(t)

	link := &model.LinkType{
		Name:     "team_players",
		Resolver: model.LinkResolver{Type: model.LinkForeignKey, ToField: "position"},
	}
	recs, err := r.TraverseLink(context.Background(), link, "C", columnarPlayer(), nil, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestTraverseJoinTableUnsupported(t *testing.T) {
	r := newTestResolver(t)

	link := &model.LinkType{
		Name:     "team_players",
		Resolver: model.LinkResolver{Type: model.LinkJoinTable, Table: "team_rosters", FromField: "teamId", ToField: "playerId"},
	}
	recs, err := r.TraverseLink(context.Background(), link, "T1", columnarPlayer(), nil, 10)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestMissingFileIsBackendError(t *testing.T) {
	r := New(t.TempDir(), resolve.DefaultConfig(), testutil.TestLogger())

	_, err := r.GetByID(context.Background(), columnarPlayer(), "P1", nil)
	require.Error(t, err)
	assert.True(t, fault.IsBackendError(err))
}

func TestPathOverride(t *testing.T) {
	root := t.TempDir()
	writePlayers(t, root, defaultRows())
	require.NoError(t, os.Rename(
		filepath.Join(root, "analytics", "player.parquet"),
		filepath.Join(root, "roster.parquet"),
	))

	ot := &model.ObjectType{
		Name:       "Player",
		PrimaryKey: "playerId",
		Resolver: &model.ResolverBinding{
			Backend: model.BackendColumnar,
			Config:  map[string]any{"path": "roster.parquet"},
		},
	}
	r := New(root, resolve.DefaultConfig(), testutil.TestLogger())

	rec, err := r.GetByID(context.Background(), ot, "P1", nil)
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestSnakeCasePathConvention(t *testing.T) {
	r := New("/data", resolve.DefaultConfig(), testutil.TestLogger())
	b := r.bindingFromType(&model.ObjectType{Name: "GameEvent"})
	assert.Equal(t, filepath.Join("/data", "analytics", "game_event.parquet"), b.path)
	assert.Equal(t, "gameEventId", b.pk)
}
