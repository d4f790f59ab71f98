package clips

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// regulationPeriodSeconds stands in for the length of any period the
// timeline has no observations for.
const regulationPeriodSeconds = 1200.0

// gameOffsets holds the maximum observed timecode per period of one game.
// Timeline timecodes are period-relative, so the maximum of a period is its
// effective length.
type gameOffsets struct {
	periodMax map[int]float64
}

// Offset returns the summed length of periods 1..period-1, converting an
// absolute game timecode in period into period-relative seconds by
// subtraction.
func (g gameOffsets) Offset(period int) float64 {
	var sum float64
	for p := 1; p < period; p++ {
		m, ok := g.periodMax[p]
		if !ok {
			m = regulationPeriodSeconds
		}
		sum += m
	}
	return sum
}

// offsetCache memoises per-game period offsets. Entries are write-once;
// concurrent first loads for the same game collapse through singleflight.
type offsetCache struct {
	group singleflight.Group
	mu    sync.RWMutex
	games map[string]gameOffsets
}

func newOffsetCache() *offsetCache {
	return &offsetCache{games: make(map[string]gameOffsets)}
}

// get returns the cached offsets for gameID, invoking fetch at most once
// per game across concurrent callers. Failed fetches are not cached.
func (c *offsetCache) get(gameID string, fetch func() (map[int]float64, error)) (gameOffsets, error) {
	c.mu.RLock()
	g, ok := c.games[gameID]
	c.mu.RUnlock()
	if ok {
		return g, nil
	}
	v, err, _ := c.group.Do(gameID, func() (any, error) {
		c.mu.RLock()
		g, ok := c.games[gameID]
		c.mu.RUnlock()
		if ok {
			return g, nil
		}
		periodMax, err := fetch()
		if err != nil {
			return gameOffsets{}, err
		}
		g = gameOffsets{periodMax: periodMax}
		c.mu.Lock()
		c.games[gameID] = g
		c.mu.Unlock()
		return g, nil
	})
	if err != nil {
		return gameOffsets{}, err
	}
	return v.(gameOffsets), nil
}

// prime stores offsets computed from rows already in hand. An existing
// entry wins.
func (c *offsetCache) prime(gameID string, periodMax map[int]float64) gameOffsets {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.games[gameID]; ok {
		return g
	}
	g := gameOffsets{periodMax: periodMax}
	c.games[gameID] = g
	return g
}
