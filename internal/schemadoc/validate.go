package schemadoc

import (
	"fmt"
	"sort"

	"github.com/rinkside-ai/rinkside/internal/model"
)

// Severity ranks a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one validation finding, located by a dotted path into the
// document.
type Issue struct {
	Severity   Severity `json:"severity"`
	Path       string   `json:"path"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks a parsed document against the schema invariants. It never
// panics on malformed input; every finding is returned in the issue list in
// a deterministic order (sections in document order, entries sorted by name).
// Callers decide whether errors terminate processing.
func Validate(doc *Document) []Issue {
	var issues []Issue
	add := func(sev Severity, path, msg, suggestion string) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: msg, Suggestion: suggestion})
	}

	if doc == nil {
		add(SeverityError, "", "document is empty", "")
		return issues
	}

	if doc.SchemaVersion == "" {
		add(SeverityError, "schema_version", "schema_version is required", `add a version string such as "0.1"`)
	} else if _, err := model.ParseVersion(doc.SchemaVersion); err != nil {
		add(SeverityError, "schema_version", fmt.Sprintf("invalid version string %q", doc.SchemaVersion), "use a semantic version")
	}

	if doc.Metadata.Author == "" {
		add(SeverityWarning, "metadata.author", "author is recommended", "")
	}
	if doc.Metadata.Created == "" {
		add(SeverityWarning, "metadata.created", "created date is recommended", "")
	}
	if doc.Metadata.Status == "" {
		add(SeverityWarning, "metadata.status", "status is recommended", "")
	}

	if len(doc.ObjectTypes) == 0 {
		add(SeverityError, "object_types", "object_types section is required", "")
	}
	if len(doc.LinkTypes) == 0 {
		add(SeverityWarning, "link_types", "no link_types defined", "")
	}
	if len(doc.ActionTypes) == 0 {
		add(SeverityWarning, "action_types", "no action_types defined", "")
	}
	if len(doc.Policies) == 0 {
		add(SeverityWarning, "security_policies", "no security_policies defined", "")
	}

	for _, name := range sortedKeys(doc.ObjectTypes) {
		ot := doc.ObjectTypes[name]
		path := "object_types." + name

		if ot.PrimaryKey == "" {
			add(SeverityError, path+".primary_key", "primary_key is required", "")
		}
		if len(ot.Properties) == 0 {
			add(SeverityError, path+".properties", "properties are required", "")
		} else if ot.PrimaryKey != "" {
			if _, ok := ot.Properties[ot.PrimaryKey]; !ok {
				add(SeverityError, path+".primary_key",
					fmt.Sprintf("primary key %q is not declared in properties", ot.PrimaryKey), "")
			}
		}

		for _, propName := range sortedKeys(ot.Properties) {
			prop := ot.Properties[propName]
			ppath := path + ".properties." + propName
			if prop.Type == "" {
				add(SeverityError, ppath+".type", "type is required", "")
			} else if !model.PropertyType(prop.Type).Valid() {
				add(SeverityError, ppath+".type", fmt.Sprintf("unknown type %q", prop.Type),
					"use one of: string, integer, float, boolean, date, datetime, text, object, array")
			}
			if prop.Enum != nil && len(*prop.Enum) == 0 {
				add(SeverityWarning, ppath+".enum", "enum is empty", "remove the enum or list its values")
			}
		}

		if ot.Resolver != nil {
			backend := docString(ot.Resolver, "backend")
			switch {
			case backend == "":
				add(SeverityError, path+".resolver.backend", "backend is required", "")
			case !model.KnownBackend(backend):
				add(SeverityWarning, path+".resolver.backend", fmt.Sprintf("unknown backend %q", backend),
					"recognised backends: bigquery, parquet, api, computed")
			case backend == model.BackendWarehouse && docString(ot.Resolver, "table") == "":
				add(SeverityError, path+".resolver.table", "bigquery backend requires a table", "")
			case backend == model.BackendColumnar && docString(ot.Resolver, "path") == "":
				add(SeverityError, path+".resolver.path", "parquet backend requires a path", "")
			}
		}
	}

	for _, name := range sortedKeys(doc.LinkTypes) {
		lt := doc.LinkTypes[name]
		path := "link_types." + name

		if lt.FromObject == "" {
			add(SeverityError, path+".from_object", "from_object is required", "")
		} else if _, ok := doc.ObjectTypes[lt.FromObject]; !ok {
			add(SeverityError, path+".from_object", fmt.Sprintf("object type %q does not exist", lt.FromObject), "")
		}
		if lt.ToObject == "" {
			add(SeverityError, path+".to_object", "to_object is required", "")
		} else if _, ok := doc.ObjectTypes[lt.ToObject]; !ok {
			add(SeverityError, path+".to_object", fmt.Sprintf("object type %q does not exist", lt.ToObject), "")
		}
		if lt.Cardinality == "" {
			add(SeverityError, path+".cardinality", "cardinality is required", "")
		} else if !model.Cardinality(lt.Cardinality).Valid() {
			add(SeverityError, path+".cardinality", fmt.Sprintf("unknown cardinality %q", lt.Cardinality),
				"use one of: one_to_one, one_to_many, many_to_one, many_to_many")
		}

		switch rtype := docString(lt.Resolver, "type"); model.LinkResolverType(rtype) {
		case model.LinkForeignKey:
			if docString(lt.Resolver, "from_field") == "" {
				add(SeverityError, path+".resolver.from_field", "foreign_key resolver requires from_field", "")
			}
			if docString(lt.Resolver, "to_field") == "" {
				add(SeverityError, path+".resolver.to_field", "foreign_key resolver requires to_field", "")
			}
		case model.LinkJoinTable:
			if docString(lt.Resolver, "table") == "" {
				add(SeverityError, path+".resolver.table", "join_table resolver requires a table", "")
			}
		default:
			add(SeverityError, path+".resolver.type",
				fmt.Sprintf("unknown link resolver type %q", rtype), "use foreign_key or join_table")
		}
	}

	for _, name := range sortedKeys(doc.ActionTypes) {
		at := doc.ActionTypes[name]
		path := "action_types." + name

		if at.Policy == "" {
			add(SeverityError, path+".policy", "actions require a policy reference", "")
		} else if _, ok := doc.Policies[at.Policy]; !ok {
			add(SeverityWarning, path+".policy", fmt.Sprintf("policy %q is not defined in this document", at.Policy), "")
		}
		if at.TimeoutSeconds != 0 && (at.TimeoutSeconds < model.ActionTimeoutMin || at.TimeoutSeconds > model.ActionTimeoutMax) {
			add(SeverityError, path+".timeout_seconds",
				fmt.Sprintf("timeout must be between %d and %d seconds", model.ActionTimeoutMin, model.ActionTimeoutMax), "")
		}
	}

	for _, name := range sortedKeys(doc.Policies) {
		pol := doc.Policies[name]
		path := "security_policies." + name

		if pol.Target != "" && !model.PolicyTarget(pol.Target).Valid() {
			add(SeverityError, path+".target", fmt.Sprintf("unknown target %q", pol.Target),
				"use one of: object, link, action, property, global")
		}
		if len(pol.Rules) == 0 {
			add(SeverityError, path+".rules", "policy has no rules", "")
			continue
		}
		for i, rule := range pol.Rules {
			rpath := fmt.Sprintf("%s.rules[%d]", path, i)
			if rule.Role == "" {
				add(SeverityError, rpath+".role", "role is required", "")
			}
			if rule.Access == "" {
				add(SeverityError, rpath+".access", "access is required", "")
			} else if !model.AccessLevel(rule.Access).Valid() {
				add(SeverityError, rpath+".access", fmt.Sprintf("unknown access level %q", rule.Access),
					"use one of: none, read, full, execute, self_only")
			}
			if !model.Scope(rule.Scope).Valid() {
				add(SeverityError, rpath+".scope", fmt.Sprintf("unknown scope %q", rule.Scope),
					"use one of: all, team_scoped, self_only")
			}
		}
	}

	return issues
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
