package schemadoc

import (
	"github.com/rinkside-ai/rinkside/internal/fault"
	"github.com/rinkside-ai/rinkside/internal/model"
)

// Build validates doc and converts it to a model.SchemaBundle ready for the
// registry to persist. When validation finds errors, Build returns an
// InvalidRequest fault and the full issue list; warnings alone do not block
// conversion.
func Build(doc *Document) (*model.SchemaBundle, []Issue, error) {
	issues := Validate(doc)
	if HasErrors(issues) {
		return nil, issues, fault.InvalidRequest("schema document has %d validation errors", countErrors(issues))
	}

	b := &model.SchemaBundle{
		Version: model.SchemaVersion{
			Version:     doc.SchemaVersion,
			State:       model.VersionDraft,
			Description: doc.Metadata.Description,
		},
	}

	for _, name := range sortedKeys(doc.ObjectTypes) {
		ot := doc.ObjectTypes[name]
		obj := model.ObjectType{
			Name:        name,
			Description: ot.Description,
			PrimaryKey:  ot.PrimaryKey,
			PolicyRef:   ot.Policy,
		}
		for _, propName := range sortedKeys(ot.Properties) {
			p := ot.Properties[propName]
			prop := model.Property{
				Name:        propName,
				Type:        model.PropertyType(p.Type),
				Required:    p.Required,
				Default:     p.Default,
				Description: p.Description,
				Constraints: p.Constraints,
			}
			if p.Enum != nil {
				prop.Enum = *p.Enum
			}
			obj.Properties = append(obj.Properties, prop)
		}
		if ot.Resolver != nil {
			cfg := make(map[string]any, len(ot.Resolver))
			for k, v := range ot.Resolver {
				if k == "backend" {
					continue
				}
				cfg[k] = v
			}
			obj.Resolver = &model.ResolverBinding{
				Backend: docString(ot.Resolver, "backend"),
				Config:  cfg,
			}
		}
		b.ObjectTypes = append(b.ObjectTypes, obj)
	}

	for _, name := range sortedKeys(doc.LinkTypes) {
		lt := doc.LinkTypes[name]
		b.LinkTypes = append(b.LinkTypes, model.LinkType{
			Name:        name,
			Description: lt.Description,
			FromObject:  lt.FromObject,
			ToObject:    lt.ToObject,
			Cardinality: model.Cardinality(lt.Cardinality),
			Resolver: model.LinkResolver{
				Type:      model.LinkResolverType(docString(lt.Resolver, "type")),
				FromField: docString(lt.Resolver, "from_field"),
				ToField:   docString(lt.Resolver, "to_field"),
				Table:     docString(lt.Resolver, "table"),
			},
		})
	}

	for _, name := range sortedKeys(doc.ActionTypes) {
		at := doc.ActionTypes[name]
		b.ActionTypes = append(b.ActionTypes, model.ActionType{
			Name:           name,
			Description:    at.Description,
			InputSchema:    at.InputSchema,
			Preconditions:  at.Preconditions,
			Effects:        at.Effects,
			PolicyRef:      at.Policy,
			TimeoutSeconds: at.TimeoutSeconds,
			Idempotent:     at.Idempotent,
		})
	}

	for _, name := range sortedKeys(doc.Policies) {
		pol := doc.Policies[name]
		target := model.PolicyTarget(pol.Target)
		if pol.Target == "" {
			target = model.TargetObject
		}
		sp := model.SecurityPolicy{
			Name:      name,
			Target:    target,
			TargetRef: pol.TargetRef,
		}
		for _, r := range pol.Rules {
			sp.Rules = append(sp.Rules, model.PolicyRule{
				Role:          r.Role,
				Access:        model.AccessLevel(r.Access),
				Scope:         model.Scope(r.Scope),
				ColumnFilters: r.ColumnFilters,
				RowFilter:     r.RowFilter,
				Conditions:    r.Conditions,
				Priority:      r.Priority,
			})
		}
		b.Policies = append(b.Policies, sp)
	}

	return b, issues, nil
}

func countErrors(issues []Issue) int {
	n := 0
	for _, i := range issues {
		if i.Severity == SeverityError {
			n++
		}
	}
	return n
}
