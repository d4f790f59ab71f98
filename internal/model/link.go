package model

// Cardinality enumerates link cardinalities.
type Cardinality string

const (
	OneToOne   Cardinality = "one_to_one"
	OneToMany  Cardinality = "one_to_many"
	ManyToOne  Cardinality = "many_to_one"
	ManyToMany Cardinality = "many_to_many"
)

// Valid reports whether c is a known cardinality.
func (c Cardinality) Valid() bool {
	switch c {
	case OneToOne, OneToMany, ManyToOne, ManyToMany:
		return true
	}
	return false
}

// LinkResolverType selects how a link is traversed.
type LinkResolverType string

const (
	LinkForeignKey LinkResolverType = "foreign_key"
	LinkJoinTable  LinkResolverType = "join_table"
)

// LinkResolver carries traversal configuration. foreign_key requires
// FromField and ToField; join_table requires Table, FromField, and ToField.
type LinkResolver struct {
	Type      LinkResolverType `json:"type"`
	FromField string           `json:"from_field,omitempty"`
	ToField   string           `json:"to_field,omitempty"`
	Table     string           `json:"table,omitempty"`
}

// LinkType is a directed relation between two object types.
type LinkType struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	FromObject  string       `json:"from_object"`
	ToObject    string       `json:"to_object"`
	Cardinality Cardinality  `json:"cardinality"`
	Resolver    LinkResolver `json:"resolver"`
}
