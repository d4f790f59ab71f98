package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rinkside-ai/rinkside/internal/model"
	"github.com/rinkside-ai/rinkside/internal/testutil"
)

func scoutPolicy() *model.SecurityPolicy {
	return &model.SecurityPolicy{
		Name:      "player_access",
		Target:    model.TargetObject,
		TargetRef: "Player",
		Rules: []model.PolicyRule{
			{Role: "scout", Access: model.AccessRead, ColumnFilters: []string{"salary"}, Priority: 10},
		},
	}
}

func TestEvaluateAccessNoPolicy(t *testing.T) {
	e := New(testutil.TestLogger())

	d := e.EvaluateAccess(Actor{ID: "U1", Role: "scout"}, model.OpRead, "object", "Player", nil)
	assert.False(t, d.Allowed)
	assert.Equal(t, "no policy defined", d.Reason)
}

func TestEvaluateAccessNoMatchingRule(t *testing.T) {
	e := New(testutil.TestLogger())

	d := e.EvaluateAccess(Actor{ID: "U1", Role: "player"}, model.OpRead, "object", "Player", scoutPolicy())
	assert.False(t, d.Allowed)
	assert.Equal(t, "no rule found for role player", d.Reason)
}

func TestEvaluateAccessColumnFilters(t *testing.T) {
	e := New(testutil.TestLogger())

	d := e.EvaluateAccess(Actor{ID: "U1", Role: "scout"}, model.OpRead, "object", "Player", scoutPolicy())
	require.True(t, d.Allowed)
	assert.Equal(t, []string{"salary"}, d.ColumnFilters)

	record := model.Record{"playerId": "P1", "name": "A", "salary": 1000}
	filtered := ApplyColumnFilters(record, d.ColumnFilters)
	assert.Equal(t, model.Record{"playerId": "P1", "name": "A"}, filtered)
	assert.Contains(t, record, "salary", "input record must not be mutated")
}

func TestRuleSelection(t *testing.T) {
	pol := &model.SecurityPolicy{
		Name: "layered",
		Rules: []model.PolicyRule{
			{Role: model.WildcardRole, Access: model.AccessNone, Priority: 0},
			{Role: "coach", Access: model.AccessRead, Priority: 5},
			{Role: "coach", Access: model.AccessFull, Priority: 20},
		},
	}
	e := New(testutil.TestLogger())

	// Highest-priority exact match wins over lower-priority exact and wildcard.
	d := e.EvaluateAccess(Actor{ID: "U1", Role: "coach"}, model.OpWrite, "object", "", pol)
	require.True(t, d.Allowed)
	assert.Equal(t, model.AccessFull, d.Access)

	// Unknown role falls back to the wildcard rule.
	d = e.EvaluateAccess(Actor{ID: "U2", Role: "analyst"}, model.OpRead, "object", "", pol)
	assert.False(t, d.Allowed)
	assert.Equal(t, model.AccessNone, d.Access)
}

func TestWildcardOnlyPolicyAppliesToAnyRole(t *testing.T) {
	pol := &model.SecurityPolicy{
		Name:  "open",
		Rules: []model.PolicyRule{{Role: model.WildcardRole, Access: model.AccessRead, Priority: 0}},
	}
	e := New(testutil.TestLogger())

	for _, role := range []string{"scout", "player", "nobody"} {
		d := e.EvaluateAccess(Actor{ID: "U1", Role: role}, model.OpGet, "object", "", pol)
		assert.True(t, d.Allowed, "role %s", role)
	}
}

func TestAccessLevelOperationMapping(t *testing.T) {
	tests := []struct {
		access  model.AccessLevel
		op      string
		allowed bool
	}{
		{model.AccessNone, model.OpRead, false},
		{model.AccessNone, model.OpExecute, false},
		{model.AccessFull, model.OpRead, true},
		{model.AccessFull, model.OpWrite, true},
		{model.AccessFull, model.OpExecute, true},
		{model.AccessRead, model.OpRead, true},
		{model.AccessRead, model.OpList, true},
		{model.AccessRead, model.OpGet, true},
		{model.AccessRead, model.OpWrite, false},
		{model.AccessRead, model.OpExecute, false},
		{model.AccessExecute, model.OpExecute, true},
		{model.AccessExecute, model.OpInvoke, true},
		{model.AccessExecute, model.OpRead, false},
		{model.AccessSelfOnly, model.OpRead, true},
		{model.AccessSelfOnly, model.OpGet, true},
		{model.AccessSelfOnly, model.OpList, false},
	}

	e := New(testutil.TestLogger())
	for _, tt := range tests {
		pol := &model.SecurityPolicy{
			Name:  "m",
			Rules: []model.PolicyRule{{Role: "r", Access: tt.access, Priority: 1}},
		}
		d := e.EvaluateAccess(Actor{ID: "U1", Role: "r"}, tt.op, "object", "", pol)
		assert.Equal(t, tt.allowed, d.Allowed, "%s / %s", tt.access, tt.op)
		e.InvalidateCache()
	}
}

func TestConditions(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		actor     Actor
		allowed   bool
	}{
		{"has role match", "User has role admin", Actor{ID: "U1", Role: "admin"}, true},
		{"has role case insensitive", "user has role ADMIN", Actor{ID: "U1", Role: "admin"}, true},
		{"has role mismatch", "User has role admin", Actor{ID: "U1", Role: "scout"}, false},
		{"equality match", "user.role == 'scout'", Actor{ID: "U1", Role: "scout"}, true},
		{"equality mismatch", "user.role == 'scout'", Actor{ID: "U1", Role: "coach"}, false},
		{"id equality", "user.id == 'U7'", Actor{ID: "U7", Role: "scout"}, true},
		{"unknown attribute allows", "game.season == '2025'", Actor{ID: "U1", Role: "scout"}, true},
		{"unparseable allows", "whenever the moon is full", Actor{ID: "U1", Role: "scout"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pol := &model.SecurityPolicy{
				Name: "cond",
				Rules: []model.PolicyRule{
					{Role: tt.actor.Role, Access: model.AccessRead, Conditions: []string{tt.condition}, Priority: 1},
				},
			}
			d := New(testutil.TestLogger()).EvaluateAccess(tt.actor, model.OpRead, "object", "", pol)
			assert.Equal(t, tt.allowed, d.Allowed)
			if !tt.allowed {
				assert.Contains(t, d.Reason, "condition not met")
			}
		})
	}
}

func TestRowFilterAssembly(t *testing.T) {
	tests := []struct {
		name  string
		rule  model.PolicyRule
		actor Actor
		want  string
	}{
		{
			name:  "team scoped",
			rule:  model.PolicyRule{Role: "coach", Access: model.AccessRead, Scope: model.ScopeTeamScoped, Priority: 1},
			actor: Actor{ID: "U1", Role: "coach", TeamIDs: []string{"TOR", "MTL"}},
			want:  "teamId IN ('TOR', 'MTL')",
		},
		{
			name:  "team scoped without teams matches nothing",
			rule:  model.PolicyRule{Role: "coach", Access: model.AccessRead, Scope: model.ScopeTeamScoped, Priority: 1},
			actor: Actor{ID: "U1", Role: "coach"},
			want:  "teamId IN ('')",
		},
		{
			name:  "self only",
			rule:  model.PolicyRule{Role: "player", Access: model.AccessSelfOnly, Scope: model.ScopeSelfOnly, Priority: 1},
			actor: Actor{ID: "P9", Role: "player"},
			want:  "playerId = 'P9'",
		},
		{
			name:  "rule filter with placeholders",
			rule:  model.PolicyRule{Role: "scout", Access: model.AccessRead, RowFilter: "scoutId = '{user_id}' AND orgTeam = '{team_id}'", Priority: 1},
			actor: Actor{ID: "S3", Role: "scout", TeamIDs: []string{"BOS"}},
			want:  "scoutId = 'S3' AND orgTeam = 'BOS'",
		},
		{
			name:  "scope and rule filter joined with AND",
			rule:  model.PolicyRule{Role: "coach", Access: model.AccessRead, Scope: model.ScopeTeamScoped, RowFilter: "season = '2025'", Priority: 1},
			actor: Actor{ID: "U1", Role: "coach", TeamIDs: []string{"TOR"}},
			want:  "teamId IN ('TOR') AND season = '2025'",
		},
		{
			name:  "no scope no filter",
			rule:  model.PolicyRule{Role: "scout", Access: model.AccessRead, Priority: 1},
			actor: Actor{ID: "U1", Role: "scout"},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pol := &model.SecurityPolicy{Name: "rf", Rules: []model.PolicyRule{tt.rule}}
			d := New(testutil.TestLogger()).EvaluateAccess(tt.actor, model.OpRead, "object", "", pol)
			require.True(t, d.Allowed)
			assert.Equal(t, tt.want, d.RowFilter)
		})
	}
}

func TestMemoisationAndInvalidation(t *testing.T) {
	e := New(testutil.TestLogger())
	actor := Actor{ID: "U1", Role: "scout"}

	pol := scoutPolicy()
	first := e.EvaluateAccess(actor, model.OpRead, "object", "Player", pol)
	require.True(t, first.Allowed)

	// Same policy name with changed rules: the memo serves the old decision
	// until invalidated.
	pol.Rules[0].Access = model.AccessNone
	cachedD := e.EvaluateAccess(actor, model.OpRead, "object", "Player", pol)
	assert.True(t, cachedD.Allowed)

	e.InvalidateCache()
	fresh := e.EvaluateAccess(actor, model.OpRead, "object", "Player", pol)
	assert.False(t, fresh.Allowed)
}

func TestMemoBound(t *testing.T) {
	e := New(testutil.TestLogger())
	pol := &model.SecurityPolicy{
		Name:  "bound",
		Rules: []model.PolicyRule{{Role: model.WildcardRole, Access: model.AccessRead, Priority: 0}},
	}

	for i := 0; i < maxMemoEntries+10; i++ {
		actor := Actor{ID: string(rune('a'+i%26)) + string(rune('a'+(i/26)%26)) + string(rune('a'+(i/676)%26)), Role: "scout"}
		e.EvaluateAccess(actor, model.OpRead, "object", "", pol)
	}

	e.mu.RLock()
	size := len(e.memo)
	e.mu.RUnlock()
	assert.LessOrEqual(t, size, maxMemoEntries)
}

func TestApplyColumnFiltersEdgeCases(t *testing.T) {
	assert.Nil(t, ApplyColumnFilters(nil, []string{"a"}))

	rec := model.Record{"a": 1, "b": 2}
	out := ApplyColumnFilters(rec, []string{"missing"})
	assert.Equal(t, rec, out)

	out = ApplyColumnFilters(rec, nil)
	assert.Equal(t, rec, out)
}
