package model

// PolicyTarget categorises what a security policy governs.
type PolicyTarget string

const (
	TargetObject   PolicyTarget = "object"
	TargetLink     PolicyTarget = "link"
	TargetAction   PolicyTarget = "action"
	TargetProperty PolicyTarget = "property"
	TargetGlobal   PolicyTarget = "global"
)

// Valid reports whether t is a known policy target.
func (t PolicyTarget) Valid() bool {
	switch t {
	case TargetObject, TargetLink, TargetAction, TargetProperty, TargetGlobal:
		return true
	}
	return false
}

// AccessLevel enumerates rule access levels.
type AccessLevel string

const (
	AccessNone     AccessLevel = "none"
	AccessRead     AccessLevel = "read"
	AccessFull     AccessLevel = "full"
	AccessExecute  AccessLevel = "execute"
	AccessSelfOnly AccessLevel = "self_only"
)

// Valid reports whether a is a known access level.
func (a AccessLevel) Valid() bool {
	switch a {
	case AccessNone, AccessRead, AccessFull, AccessExecute, AccessSelfOnly:
		return true
	}
	return false
}

// Operations requested of the policy engine.
const (
	OpRead    = "read"
	OpList    = "list"
	OpGet     = "get"
	OpWrite   = "write"
	OpExecute = "execute"
	OpInvoke  = "invoke"
)

// Permits reports whether this access level allows the requested operation.
// self_only allows read and get but not list; listing would require a scope
// filter the level cannot express on its own.
func (a AccessLevel) Permits(op string) bool {
	switch a {
	case AccessFull:
		return true
	case AccessRead:
		return op == OpRead || op == OpList || op == OpGet
	case AccessExecute:
		return op == OpExecute || op == OpInvoke
	case AccessSelfOnly:
		return op == OpRead || op == OpGet
	default:
		return false
	}
}

// Scope narrows the rows a rule exposes.
type Scope string

const (
	ScopeAll        Scope = "all"
	ScopeTeamScoped Scope = "team_scoped"
	ScopeSelfOnly   Scope = "self_only"
)

// Valid reports whether s is a known scope. The empty scope means no row
// narrowing and is valid.
func (s Scope) Valid() bool {
	switch s {
	case "", ScopeAll, ScopeTeamScoped, ScopeSelfOnly:
		return true
	}
	return false
}

// WildcardRole matches any actor role.
const WildcardRole = "*"

// PolicyRule ties a role to an access level with optional row and column
// narrowing. Higher priority rules are tried first.
type PolicyRule struct {
	Role          string      `json:"role"`
	Access        AccessLevel `json:"access"`
	Scope         Scope       `json:"scope,omitempty"`
	ColumnFilters []string    `json:"column_filters,omitempty"`
	RowFilter     string      `json:"row_filter,omitempty"`
	Conditions    []string    `json:"conditions,omitempty"`
	Priority      int         `json:"priority"`
}

// SecurityPolicy is a named collection of rules over a target category.
type SecurityPolicy struct {
	Name      string       `json:"name"`
	Target    PolicyTarget `json:"target"`
	TargetRef string       `json:"target_ref,omitempty"`
	Rules     []PolicyRule `json:"rules"`
}
