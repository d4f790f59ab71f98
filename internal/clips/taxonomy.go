package clips

import "strings"

// Zone codes as stored on timeline rows.
const (
	ZoneOffensive = "OZ"
	ZoneNeutral   = "NZ"
	ZoneDefensive = "DZ"
)

// NormalizeZone maps zone synonyms onto the canonical OZ/NZ/DZ codes.
// Unrecognised input passes through upper-cased so novel backend codes
// still filter exactly.
func NormalizeZone(zone string) string {
	z := strings.ToLower(strings.TrimSpace(zone))
	switch z {
	case "offensive", "o", "oz", "attacking":
		return ZoneOffensive
	case "neutral", "n", "nz":
		return ZoneNeutral
	case "defensive", "d", "dz", "defending":
		return ZoneDefensive
	case "":
		return ""
	}
	return strings.ToUpper(z)
}

// eventTaxonomy maps search tags onto the action names the analytics
// warehouse records. A tag absent from the table passes through as itself,
// so raw action names remain searchable.
var eventTaxonomy = map[string][]string{
	"shot":       {"shot", "wrist_shot", "slap_shot", "snap_shot", "backhand", "tip_in", "deflection", "wrap_around"},
	"goal":       {"goal"},
	"assist":     {"primary_assist", "secondary_assist"},
	"pass":       {"pass", "breakout_pass", "stretch_pass", "cross_ice_pass"},
	"hit":        {"hit", "body_check"},
	"faceoff":    {"faceoff_won", "faceoff_lost"},
	"takeaway":   {"takeaway", "interception"},
	"giveaway":   {"giveaway", "turnover"},
	"block":      {"blocked_shot"},
	"save":       {"save", "glove_save", "pad_save", "blocker_save"},
	"penalty":    {"penalty_taken", "penalty_drawn"},
	"zone_entry": {"controlled_entry", "dump_in"},
	"zone_exit":  {"controlled_exit", "clear"},
	"rush":       {"rush", "odd_man_rush", "breakaway"},
}

// ExpandEventTypes resolves search tags into the backend action names they
// cover. Order follows the input; duplicates collapse.
func ExpandEventTypes(tags []string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(action string) {
		if _, ok := seen[action]; ok {
			return
		}
		seen[action] = struct{}{}
		out = append(out, action)
	}
	for _, tag := range tags {
		key := strings.ToLower(strings.TrimSpace(tag))
		if key == "" {
			continue
		}
		if actions, ok := eventTaxonomy[key]; ok {
			for _, a := range actions {
				add(a)
			}
			continue
		}
		add(key)
	}
	return out
}
