package resolve

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/rinkside-ai/rinkside/internal/model"
)

// rowClause is one parsed predicate from a row filter string.
type rowClause struct {
	field  string
	values []string
}

// ApplyRowFilter evaluates a policy row filter against records in process,
// for backends that cannot push the predicate down. Supported clauses are
// `field = 'value'` and `field IN ('a', 'b')`, conjoined with AND. A clause
// that cannot be parsed is skipped with a warning rather than dropping rows
// the backend already returned.
func ApplyRowFilter(records []model.Record, filter string, logger *slog.Logger) []model.Record {
	filter = strings.TrimSpace(filter)
	if filter == "" || len(records) == 0 {
		return records
	}

	var clauses []rowClause
	for _, raw := range strings.Split(filter, " AND ") {
		clause, ok := parseRowClause(raw)
		if !ok {
			logger.Warn("unsupported row filter clause, skipping", "clause", raw)
			continue
		}
		clauses = append(clauses, clause)
	}
	if len(clauses) == 0 {
		return records
	}

	out := make([]model.Record, 0, len(records))
	for _, rec := range records {
		if matchesAll(rec, clauses) {
			out = append(out, rec)
		}
	}
	return out
}

func parseRowClause(raw string) (rowClause, bool) {
	raw = strings.TrimSpace(raw)

	if field, list, ok := splitToken(raw, " IN "); ok {
		list = strings.TrimSpace(list)
		if len(list) < 2 || list[0] != '(' || list[len(list)-1] != ')' {
			return rowClause{}, false
		}
		var values []string
		for _, item := range strings.Split(list[1:len(list)-1], ",") {
			values = append(values, unquote(strings.TrimSpace(item)))
		}
		return rowClause{field: field, values: values}, true
	}

	if field, value, ok := splitToken(raw, "="); ok {
		return rowClause{field: field, values: []string{unquote(strings.TrimSpace(value))}}, true
	}

	return rowClause{}, false
}

// splitToken splits raw around the first occurrence of token, returning the
// trimmed left side and the raw right side.
func splitToken(raw, token string) (string, string, bool) {
	idx := strings.Index(raw, token)
	if idx <= 0 {
		return "", "", false
	}
	field := strings.TrimSpace(raw[:idx])
	if field == "" || strings.ContainsAny(field, " ()") {
		return "", "", false
	}
	return field, raw[idx+len(token):], true
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}

// matchesAll reports whether rec satisfies every clause. A record missing
// the filtered field does not match; scope filters must not leak rows that
// lack the scoping column.
func matchesAll(rec model.Record, clauses []rowClause) bool {
	for _, c := range clauses {
		v, ok := rec[c.field]
		if !ok {
			return false
		}
		if !containsValue(c.values, v) {
			return false
		}
	}
	return true
}

func containsValue(values []string, v any) bool {
	got := fmt.Sprintf("%v", v)
	for _, want := range values {
		if got == want {
			return true
		}
	}
	return false
}
