package model

// SchemaBundle is a schema version together with every entity it owns.
// The document builder produces one; the registry persists and serves it.
// Entity slices are ordered by name so persistence is deterministic.
type SchemaBundle struct {
	Version     SchemaVersion
	ObjectTypes []ObjectType
	LinkTypes   []LinkType
	ActionTypes []ActionType
	Policies    []SecurityPolicy
}

// ObjectType returns the named object type in the bundle, or nil.
func (b *SchemaBundle) ObjectType(name string) *ObjectType {
	for i := range b.ObjectTypes {
		if b.ObjectTypes[i].Name == name {
			return &b.ObjectTypes[i]
		}
	}
	return nil
}

// LinkType returns the named link type in the bundle, or nil.
func (b *SchemaBundle) LinkType(name string) *LinkType {
	for i := range b.LinkTypes {
		if b.LinkTypes[i].Name == name {
			return &b.LinkTypes[i]
		}
	}
	return nil
}
