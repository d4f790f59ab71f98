package clips

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rinkside-ai/rinkside/internal/model"
)

// Column conventions of the timeline and shift tables.
const (
	fieldGameID     = "gameId"
	fieldPlayerID   = "playerId"
	fieldPeriod     = "period"
	fieldTimecode   = "timecode"
	fieldAction     = "action"
	fieldZone       = "zone"
	fieldOutcome    = "outcome"
	fieldStrength   = "strength"
	fieldTeamCode   = "teamCode"
	fieldOpponent   = "opponentCode"
	fieldShiftStart = "startTime"
	fieldShiftEnd   = "endTime"
	fieldTeammates  = "teammateIds"
	fieldOpponents  = "opponentIds"
)

func recString(rec model.Record, key string) string {
	v, ok := rec[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func recFloat(rec model.Record, key string) (float64, bool) {
	switch n := rec[key].(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func recInt(rec model.Record, key string) (int, bool) {
	f, ok := recFloat(rec, key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// recIDList reads a list-valued column into normalised ids. Backends hand
// lists back as []string, []any, or a comma-joined string depending on the
// store.
func recIDList(rec model.Record, key string) []string {
	var raw []string
	switch v := rec[key].(type) {
	case []string:
		raw = v
	case []any:
		raw = make([]string, 0, len(v))
		for _, item := range v {
			raw = append(raw, fmt.Sprintf("%v", item))
		}
	case string:
		raw = strings.Split(v, ",")
	default:
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, id := range raw {
		if n := model.NormalizeID(id); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func toIntSet(values []int) map[int]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[int]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func idSet(ids []string) map[string]struct{} {
	var out map[string]struct{}
	for _, id := range ids {
		if n := model.NormalizeID(id); n != "" {
			if out == nil {
				out = make(map[string]struct{}, len(ids))
			}
			out[n] = struct{}{}
		}
	}
	return out
}

// overlaps reports whether any member of ids is in want.
func overlaps(ids []string, want map[string]struct{}) bool {
	for _, id := range ids {
		if _, ok := want[id]; ok {
			return true
		}
	}
	return false
}

// containsAll reports whether every member of want is in ids.
func containsAll(ids []string, want map[string]struct{}) bool {
	if len(want) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		have[id] = struct{}{}
	}
	for id := range want {
		if _, ok := have[id]; !ok {
			return false
		}
	}
	return true
}
