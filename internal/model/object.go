package model

// PropertyType enumerates the closed set of property value types.
type PropertyType string

const (
	TypeString   PropertyType = "string"
	TypeInteger  PropertyType = "integer"
	TypeFloat    PropertyType = "float"
	TypeBoolean  PropertyType = "boolean"
	TypeDate     PropertyType = "date"
	TypeDatetime PropertyType = "datetime"
	TypeText     PropertyType = "text"
	TypeObject   PropertyType = "object"
	TypeArray    PropertyType = "array"
)

// Valid reports whether t is a known property type.
func (t PropertyType) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeDate,
		TypeDatetime, TypeText, TypeObject, TypeArray:
		return true
	}
	return false
}

// Property is a typed attribute of an object type.
type Property struct {
	Name        string         `json:"name"`
	Type        PropertyType   `json:"type"`
	Required    bool           `json:"required"`
	Enum        []string       `json:"enum,omitempty"`
	Default     any            `json:"default,omitempty"`
	Description string         `json:"description,omitempty"`
	Constraints map[string]any `json:"constraints,omitempty"`
}

// ResolverBinding describes which backend serves an object type and how.
// Config keys are backend-specific: "table" for the warehouse, "path" for
// columnar files, free-form for api/computed backends.
type ResolverBinding struct {
	Backend string         `json:"backend"`
	Config  map[string]any `json:"config,omitempty"`
}

// ConfigString returns the string value of a config key, or "" when the key
// is absent or not a string.
func (r *ResolverBinding) ConfigString(key string) string {
	if r == nil || r.Config == nil {
		return ""
	}
	s, _ := r.Config[key].(string)
	return s
}

// ObjectType is a named business entity (Player, Team, Contract).
type ObjectType struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	PrimaryKey  string           `json:"primary_key"`
	Properties  []Property       `json:"properties"`
	Resolver    *ResolverBinding `json:"resolver,omitempty"`
	PolicyRef   string           `json:"policy_ref,omitempty"`
}

// Property returns the named property and whether it exists.
func (o *ObjectType) Property(name string) (Property, bool) {
	for _, p := range o.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Backend returns the resolver backend tag, defaulting to the warehouse.
func (o *ObjectType) Backend() string {
	if o.Resolver == nil || o.Resolver.Backend == "" {
		return BackendWarehouse
	}
	return o.Resolver.Backend
}

// Recognised resolver backends. Unknown tags validate with a warning and
// fall back to the warehouse at dispatch time.
const (
	BackendWarehouse = "bigquery"
	BackendColumnar  = "parquet"
	BackendAPI       = "api"
	BackendComputed  = "computed"
)

// KnownBackend reports whether b is a recognised resolver backend tag.
func KnownBackend(b string) bool {
	switch b {
	case BackendWarehouse, BackendColumnar, BackendAPI, BackendComputed:
		return true
	}
	return false
}
