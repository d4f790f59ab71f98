package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rinkside-ai/rinkside/internal/model"
	"github.com/rinkside-ai/rinkside/internal/testutil"
)

type stubResolver struct {
	backend string
	records map[string]model.Record
	calls   int
	err     error
}

func (s *stubResolver) Backend() string { return s.backend }

func (s *stubResolver) GetByID(_ context.Context, _ *model.ObjectType, id string, _ []string) (model.Record, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return model.CloneRecord(rec), nil
}

func (s *stubResolver) GetByFilter(_ context.Context, _ *model.ObjectType, _ map[string]any, _ []string, limit, _ int) ([]model.Record, error) {
	s.calls++
	out := make([]model.Record, 0, len(s.records))
	for _, rec := range s.records {
		if len(out) >= limit {
			break
		}
		out = append(out, model.CloneRecord(rec))
	}
	return out, s.err
}

func (s *stubResolver) TraverseLink(_ context.Context, _ *model.LinkType, _ string, _ *model.ObjectType, _ []string, _ int) ([]model.Record, error) {
	s.calls++
	return nil, s.err
}

func playerType() *model.ObjectType {
	return &model.ObjectType{Name: "Player", PrimaryKey: "playerId"}
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "Player:P1:all", CacheKey("Player", "P1", nil))
	assert.Equal(t, "Player:P1:name,salary", CacheKey("Player", "P1", []string{"salary", "name"}))
	assert.Equal(t,
		CacheKey("Player", "P1", []string{"a", "b"}),
		CacheKey("Player", "P1", []string{"b", "a"}),
	)
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(20*time.Millisecond, 100)
	c.Put("k", model.Record{"v": 1})

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, model.Record{"v": 1}, got)

	time.Sleep(40 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheReturnsCopies(t *testing.T) {
	c := NewCache(time.Minute, 100)
	c.Put("k", model.Record{"v": 1})

	got, ok := c.Get("k")
	require.True(t, ok)
	got["v"] = 99

	again, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, again["v"])
}

func TestCacheBound(t *testing.T) {
	const maxEntries = 64
	c := NewCache(time.Minute, maxEntries)

	for i := 0; i < maxEntries*4; i++ {
		c.Put(CacheKey("Player", string(rune('a'+i%26))+string(rune('a'+(i/26)%26)), nil), model.Record{"i": i})
	}
	assert.LessOrEqual(t, c.Len(), maxEntries)
}

func TestGetByIDCachedHitMiss(t *testing.T) {
	stub := &stubResolver{
		backend: model.BackendWarehouse,
		records: map[string]model.Record{"P1": {"playerId": "P1", "name": "A"}},
	}
	r := NewCaching(stub, DefaultConfig(), NewMetrics(), testutil.TestLogger())
	ctx := context.Background()

	first, err := r.GetByIDCached(ctx, playerType(), "P1", nil)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, stub.calls)

	second, err := r.GetByIDCached(ctx, playerType(), "P1", nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, stub.calls, "second read must be served from cache")
}

func TestGetByIDCachedDisabled(t *testing.T) {
	stub := &stubResolver{
		backend: model.BackendWarehouse,
		records: map[string]model.Record{"P1": {"playerId": "P1"}},
	}
	cfg := DefaultConfig()
	cfg.CacheEnabled = false
	r := NewCaching(stub, cfg, NewMetrics(), testutil.TestLogger())
	ctx := context.Background()

	_, err := r.GetByIDCached(ctx, playerType(), "P1", nil)
	require.NoError(t, err)
	_, err = r.GetByIDCached(ctx, playerType(), "P1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls)
}

func TestGetByIDCachedAbsentNotCached(t *testing.T) {
	stub := &stubResolver{backend: model.BackendWarehouse, records: map[string]model.Record{}}
	r := NewCaching(stub, DefaultConfig(), NewMetrics(), testutil.TestLogger())
	ctx := context.Background()

	rec, err := r.GetByIDCached(ctx, playerType(), "P404", nil)
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = r.GetByIDCached(ctx, playerType(), "P404", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls, "absent results are not cached")
}

func TestCachingResolverPropagatesErrors(t *testing.T) {
	stub := &stubResolver{backend: model.BackendWarehouse, err: errors.New("boom")}
	r := NewCaching(stub, DefaultConfig(), NewMetrics(), testutil.TestLogger())

	_, err := r.GetByID(context.Background(), playerType(), "P1", nil)
	require.Error(t, err)
}

func TestConfigNormalize(t *testing.T) {
	got := Config{}.Normalize()
	def := DefaultConfig()
	assert.Equal(t, def.CacheTTL, got.CacheTTL)
	assert.Equal(t, def.CacheEntries, got.CacheEntries)
	assert.Equal(t, def.Timeout, got.Timeout)
	assert.Equal(t, def.MaxRows, got.MaxRows)
	assert.Equal(t, def.MaxBatchSize, got.MaxBatchSize)
	assert.False(t, got.CacheEnabled, "unset cache flag stays as given")

	over := Config{MaxRows: 999999}.Normalize()
	assert.Equal(t, maxRowsCap, over.MaxRows)
}

func TestClampLimit(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, cfg.MaxRows, cfg.ClampLimit(0))
	assert.Equal(t, cfg.MaxRows, cfg.ClampLimit(-5))
	assert.Equal(t, 50, cfg.ClampLimit(50))
	assert.Equal(t, cfg.MaxRows, cfg.ClampLimit(cfg.MaxRows+1))
}

func TestRetry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.MaxRetries = 3

	attempts := 0
	err := Retry(context.Background(), cfg, nil, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = Retry(context.Background(), cfg, nil, func() error {
		attempts++
		return errors.New("always")
	})
	require.Error(t, err)
	assert.Equal(t, 4, attempts, "initial attempt plus MaxRetries")
}

func TestRetryHonoursClassifier(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond

	terminal := errors.New("terminal")
	attempts := 0
	err := Retry(context.Background(), cfg, func(err error) bool { return !errors.Is(err, terminal) }, func() error {
		attempts++
		return terminal
	})
	require.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, attempts)
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	attempts := 0
	err := Retry(ctx, cfg, nil, func() error {
		attempts++
		return errors.New("transient")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestApplyRowFilter(t *testing.T) {
	records := []model.Record{
		{"playerId": "P1", "teamId": "TOR"},
		{"playerId": "P2", "teamId": "MTL"},
		{"playerId": "P3"},
	}

	tests := []struct {
		name   string
		filter string
		want   []string
	}{
		{"empty filter keeps all", "", []string{"P1", "P2", "P3"}},
		{"equality", "teamId = 'TOR'", []string{"P1"}},
		{"in list", "teamId IN ('TOR', 'MTL')", []string{"P1", "P2"}},
		{"conjunction", "teamId = 'TOR' AND playerId = 'P1'", []string{"P1"}},
		{"conjunction excludes", "teamId = 'TOR' AND playerId = 'P2'", nil},
		{"missing field excluded", "teamId = 'P3'", nil},
		{"unparseable clause skipped", "something weird ~ here", []string{"P1", "P2", "P3"}},
		{"mixed parseable and not", "nonsense clause AND teamId = 'MTL'", []string{"P2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyRowFilter(records, tt.filter, testutil.TestLogger())
			var ids []string
			for _, rec := range got {
				ids = append(ids, rec["playerId"].(string))
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestMetricsRing(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	for i := 0; i < metricsWindow+5; i++ {
		m.Record(ctx, QuerySample{Backend: "b", Rows: i})
	}

	snap := m.Snapshot()
	require.Len(t, snap, metricsWindow)
	assert.Equal(t, 5, snap[0].Rows, "oldest retained sample first")
	assert.Equal(t, metricsWindow+4, snap[len(snap)-1].Rows)
}
