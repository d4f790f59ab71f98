// Package policy evaluates security policies into access decisions.
//
// The engine is pure over its inputs: the same actor, operation and policy
// always produce the same decision, which lets the mediator memoise results
// until the schema registry reloads.
package policy

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/rinkside-ai/rinkside/internal/model"
)

// Actor identifies the caller a decision is made for.
type Actor struct {
	ID      string
	Role    string
	TeamIDs []string
}

// Decision is the outcome of an access evaluation. When Allowed is false the
// Reason carries audit-ready text; when true, ColumnFilters and RowFilter
// narrow what the caller may see.
type Decision struct {
	Allowed       bool
	Access        model.AccessLevel
	Scope         model.Scope
	ColumnFilters []string
	RowFilter     string
	Reason        string
}

// maxMemoEntries bounds the decision memo. The memo is dropped wholesale when
// it fills; recomputation is cheap and the bound keeps pathological actor
// churn from growing the map without limit.
const maxMemoEntries = 4096

// Engine evaluates policies and memoises decisions per actor and operation.
type Engine struct {
	logger *slog.Logger

	mu   sync.RWMutex
	memo map[string]Decision
}

// New creates a policy engine.
func New(logger *slog.Logger) *Engine {
	return &Engine{
		logger: logger.With("component", "policy"),
		memo:   make(map[string]Decision),
	}
}

// EvaluateAccess decides whether actor may perform operation on the target.
// targetID participates in auditing only; the decision itself depends on the
// actor, the operation and the policy. A nil policy denies.
func (e *Engine) EvaluateAccess(actor Actor, operation, targetKind, targetID string, pol *model.SecurityPolicy) Decision {
	if pol == nil {
		return deny("no policy defined")
	}

	key := memoKey(actor, operation, targetKind, pol.Name)
	if d, ok := e.cached(key); ok {
		return d
	}

	d := e.evaluate(actor, operation, pol)
	e.remember(key, d)
	return d
}

// InvalidateCache drops all memoised decisions. Call after a schema publish
// replaces the policy set.
func (e *Engine) InvalidateCache() {
	e.mu.Lock()
	e.memo = make(map[string]Decision)
	e.mu.Unlock()
}

// ApplyColumnFilters returns a copy of record with each filtered field
// removed. Fields not present in the record are ignored; the result never
// gains keys the input did not have.
func ApplyColumnFilters(record model.Record, filters []string) model.Record {
	if record == nil {
		return nil
	}
	out := model.CloneRecord(record)
	for _, f := range filters {
		delete(out, f)
	}
	return out
}

func (e *Engine) evaluate(actor Actor, operation string, pol *model.SecurityPolicy) Decision {
	rule := selectRule(pol.Rules, actor.Role)
	if rule == nil {
		return deny(fmt.Sprintf("no rule found for role %s", actor.Role))
	}

	if !rule.Access.Permits(operation) {
		return Decision{
			Access: rule.Access,
			Scope:  rule.Scope,
			Reason: fmt.Sprintf("access level %s does not permit %s", rule.Access, operation),
		}
	}

	for _, cond := range rule.Conditions {
		if ok, reason := e.evalCondition(cond, actor); !ok {
			return Decision{
				Access: rule.Access,
				Scope:  rule.Scope,
				Reason: reason,
			}
		}
	}

	return Decision{
		Allowed:       true,
		Access:        rule.Access,
		Scope:         rule.Scope,
		ColumnFilters: append([]string(nil), rule.ColumnFilters...),
		RowFilter:     buildRowFilter(rule, actor),
		Reason:        fmt.Sprintf("rule for role %s grants %s", rule.Role, rule.Access),
	}
}

func deny(reason string) Decision {
	return Decision{Access: model.AccessNone, Reason: reason}
}

// selectRule picks the single applicable rule: highest priority first, exact
// role match before the wildcard. Ties keep document order.
func selectRule(rules []model.PolicyRule, role string) *model.PolicyRule {
	sorted := make([]model.PolicyRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	for i := range sorted {
		if sorted[i].Role == role {
			return &sorted[i]
		}
	}
	for i := range sorted {
		if sorted[i].Role == model.WildcardRole {
			return &sorted[i]
		}
	}
	return nil
}

const hasRolePrefix = "user has role "

// evalCondition evaluates one rule condition. Two forms are understood:
// "User has role X" and "attr == 'literal'". Anything else defaults to true
// with a warning so an unreadable condition cannot lock everyone out.
func (e *Engine) evalCondition(cond string, actor Actor) (bool, string) {
	trimmed := strings.TrimSpace(cond)
	if trimmed == "" {
		return true, ""
	}

	if strings.HasPrefix(strings.ToLower(trimmed), hasRolePrefix) {
		want := strings.TrimSpace(trimmed[len(hasRolePrefix):])
		if strings.EqualFold(want, actor.Role) {
			return true, ""
		}
		return false, fmt.Sprintf("condition not met: %s", trimmed)
	}

	if lhs, literal, ok := parseEquality(trimmed); ok {
		got, known := actorAttribute(lhs, actor)
		if !known {
			e.logger.Warn("condition references unknown attribute, allowing",
				"condition", cond, "attribute", lhs)
			return true, ""
		}
		if got == literal {
			return true, ""
		}
		return false, fmt.Sprintf("condition not met: %s", trimmed)
	}

	e.logger.Warn("unsupported condition form, allowing", "condition", cond)
	return true, ""
}

// parseEquality splits "lhs == 'literal'" into its parts. The right side must
// be a single-quoted string.
func parseEquality(expr string) (lhs, literal string, ok bool) {
	parts := strings.SplitN(expr, "==", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	lhs = strings.TrimSpace(parts[0])
	rhs := strings.TrimSpace(parts[1])
	if lhs == "" || len(rhs) < 2 || rhs[0] != '\'' || rhs[len(rhs)-1] != '\'' {
		return "", "", false
	}
	return lhs, rhs[1 : len(rhs)-1], true
}

func actorAttribute(name string, actor Actor) (string, bool) {
	switch strings.ToLower(name) {
	case "user.role", "actor.role", "role":
		return actor.Role, true
	case "user.id", "actor.id", "user_id", "id":
		return actor.ID, true
	default:
		return "", false
	}
}

// buildRowFilter assembles the backend predicate for a permitted rule. Scope
// clauses come first, then the rule's own filter with placeholders
// substituted; clauses are joined with AND.
func buildRowFilter(rule *model.PolicyRule, actor Actor) string {
	var clauses []string

	switch rule.Scope {
	case model.ScopeTeamScoped:
		clauses = append(clauses, teamClause(actor.TeamIDs))
	case model.ScopeSelfOnly:
		clauses = append(clauses, fmt.Sprintf("playerId = '%s'", actor.ID))
	}

	if rule.RowFilter != "" {
		f := strings.ReplaceAll(rule.RowFilter, "{user_id}", actor.ID)
		f = strings.ReplaceAll(f, "{team_id}", firstTeam(actor.TeamIDs))
		clauses = append(clauses, f)
	}

	return strings.Join(clauses, " AND ")
}

// teamClause renders the team membership predicate. An actor with no teams
// gets a clause that matches nothing rather than invalid SQL.
func teamClause(teams []string) string {
	if len(teams) == 0 {
		return "teamId IN ('')"
	}
	quoted := make([]string, len(teams))
	for i, t := range teams {
		quoted[i] = "'" + t + "'"
	}
	return fmt.Sprintf("teamId IN (%s)", strings.Join(quoted, ", "))
}

func firstTeam(teams []string) string {
	if len(teams) == 0 {
		return ""
	}
	return teams[0]
}

func memoKey(actor Actor, operation, targetKind, policyName string) string {
	return strings.Join([]string{
		actor.Role,
		actor.ID,
		strings.Join(actor.TeamIDs, ","),
		operation,
		targetKind,
		policyName,
	}, "|")
}

func (e *Engine) cached(key string) (Decision, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.memo[key]
	return d, ok
}

func (e *Engine) remember(key string, d Decision) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.memo) >= maxMemoEntries {
		e.memo = make(map[string]Decision)
	}
	e.memo[key] = d
}
