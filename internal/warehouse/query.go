package warehouse

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rinkside-ai/rinkside/internal/fault"
)

// Identifiers come from schema documents, not code. Anything outside this
// shape is rejected before it reaches SQL.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

func checkIdent(name string) error {
	if !identRe.MatchString(name) {
		return fault.InvalidRequest("warehouse: invalid identifier %q", name)
	}
	return nil
}

// quoteIdent renders an identifier with each dotted part double-quoted, so
// mixed-case schema property names survive as column names.
func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, ".")
}

// columnList renders a projection, optionally prefixing each column with a
// table alias. An empty projection selects everything.
func columnList(projection []string, alias string) (string, error) {
	if len(projection) == 0 {
		if alias != "" {
			return alias + ".*", nil
		}
		return "*", nil
	}
	cols := make([]string, len(projection))
	for i, c := range projection {
		if err := checkIdent(c); err != nil {
			return "", err
		}
		if alias != "" {
			cols[i] = alias + "." + quoteIdent(c)
		} else {
			cols[i] = quoteIdent(c)
		}
	}
	return strings.Join(cols, ", "), nil
}

func buildGetByID(table, pkColumn string, projection []string) (string, error) {
	if err := checkIdent(table); err != nil {
		return "", err
	}
	if err := checkIdent(pkColumn); err != nil {
		return "", err
	}
	cols, err := columnList(projection, "")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 LIMIT 1",
		cols, quoteIdent(table), quoteIdent(pkColumn)), nil
}

// buildGetByFilter renders equality predicates over sorted filter keys so
// the same filters always produce the same SQL. List values become
// `= ANY($n)` with an array parameter.
func buildGetByFilter(table string, filters map[string]any, projection []string, limit, offset int) (string, []any, error) {
	if err := checkIdent(table); err != nil {
		return "", nil, err
	}
	cols, err := columnList(projection, "")
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", cols, quoteIdent(table))

	params := make([]any, 0, len(filters))
	if len(filters) > 0 {
		keys := make([]string, 0, len(filters))
		for k := range filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		clauses := make([]string, 0, len(keys))
		for _, k := range keys {
			if err := checkIdent(k); err != nil {
				return "", nil, err
			}
			if list, ok := asList(filters[k]); ok {
				params = append(params, typedList(list))
				clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", quoteIdent(k), len(params)))
			} else {
				params = append(params, typedParam(filters[k]))
				clauses = append(clauses, fmt.Sprintf("%s = $%d", quoteIdent(k), len(params)))
			}
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(clauses, " AND "))
	}

	fmt.Fprintf(&sb, " LIMIT %d", limit)
	if offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", offset)
	}
	return sb.String(), params, nil
}

// buildJoinQuery renders the join-table traversal: target rows joined
// through the link table, filtered by the origin id parameter.
func buildJoinQuery(toTable, toPK, joinTable, fromField, toField string, projection []string, limit int) (string, error) {
	for _, ident := range []string{toTable, toPK, joinTable, fromField, toField} {
		if err := checkIdent(ident); err != nil {
			return "", err
		}
	}
	cols, err := columnList(projection, "t")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT %s FROM %s t INNER JOIN %s j ON t.%s = j.%s WHERE j.%s = $1 LIMIT %d",
		cols, quoteIdent(toTable), quoteIdent(joinTable),
		quoteIdent(toPK), quoteIdent(toField), quoteIdent(fromField), limit), nil
}

// typedParam narrows a filter value to the types the driver binds natively.
func typedParam(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case float32:
		return float64(x)
	case float64:
		return x
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}

// asList widens the supported slice shapes into []any. Non-slices report
// false.
func asList(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out, true
	case []int64:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = f
		}
		return out, true
	}
	return nil, false
}

// typedList builds a homogeneous array parameter from the first element's
// type. Mixed lists fall back to strings.
func typedList(items []any) any {
	if len(items) == 0 {
		return []string{}
	}
	switch items[0].(type) {
	case bool:
		out := make([]bool, 0, len(items))
		for _, it := range items {
			b, ok := it.(bool)
			if !ok {
				return stringList(items)
			}
			out = append(out, b)
		}
		return out
	case int, int32, int64:
		out := make([]int64, 0, len(items))
		for _, it := range items {
			switch n := it.(type) {
			case int:
				out = append(out, int64(n))
			case int32:
				out = append(out, int64(n))
			case int64:
				out = append(out, n)
			default:
				return stringList(items)
			}
		}
		return out
	case float32, float64:
		out := make([]float64, 0, len(items))
		for _, it := range items {
			switch f := it.(type) {
			case float32:
				out = append(out, float64(f))
			case float64:
				out = append(out, f)
			default:
				return stringList(items)
			}
		}
		return out
	default:
		return stringList(items)
	}
}

func stringList(items []any) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = fmt.Sprintf("%v", it)
	}
	return out
}
