// Package schemadoc parses and validates human-authored schema documents.
// The YAML document is the ingestion contract; Build converts a validated
// document into the model entities the registry persists.
package schemadoc

import (
	"fmt"

	"github.com/goccy/go-yaml"
)

// Document is the top-level authored schema document.
type Document struct {
	SchemaVersion string                   `yaml:"schema_version"`
	Metadata      Metadata                 `yaml:"metadata"`
	ObjectTypes   map[string]ObjectTypeDoc `yaml:"object_types"`
	LinkTypes     map[string]LinkTypeDoc   `yaml:"link_types"`
	ActionTypes   map[string]ActionTypeDoc `yaml:"action_types"`
	Policies      map[string]PolicyDoc     `yaml:"security_policies"`
}

// Metadata carries recommended authoring fields.
type Metadata struct {
	Author      string `yaml:"author"`
	Created     string `yaml:"created"`
	Status      string `yaml:"status"`
	Description string `yaml:"description"`
}

// ObjectTypeDoc is the authored form of an object type. The resolver block
// is backend-specific; recognised keys are "backend", "table", "path", and
// "dataset", everything else passes through as config.
type ObjectTypeDoc struct {
	Description string                 `yaml:"description"`
	PrimaryKey  string                 `yaml:"primary_key"`
	Properties  map[string]PropertyDoc `yaml:"properties"`
	Resolver    map[string]any         `yaml:"resolver"`
	Policy      string                 `yaml:"policy"`
}

// PropertyDoc is the authored form of a property. Enum distinguishes an
// absent list (nil) from an authored empty list.
type PropertyDoc struct {
	Type        string         `yaml:"type"`
	Required    bool           `yaml:"required"`
	Enum        *[]string      `yaml:"enum"`
	Default     any            `yaml:"default"`
	Description string         `yaml:"description"`
	Constraints map[string]any `yaml:"constraints"`
}

// LinkTypeDoc is the authored form of a link type.
type LinkTypeDoc struct {
	Description string         `yaml:"description"`
	FromObject  string         `yaml:"from_object"`
	ToObject    string         `yaml:"to_object"`
	Cardinality string         `yaml:"cardinality"`
	Resolver    map[string]any `yaml:"resolver"`
}

// ActionTypeDoc is the authored form of an action type.
type ActionTypeDoc struct {
	Description    string         `yaml:"description"`
	InputSchema    map[string]any `yaml:"input_schema"`
	Preconditions  []string       `yaml:"preconditions"`
	Effects        []string       `yaml:"effects"`
	Policy         string         `yaml:"policy"`
	TimeoutSeconds int            `yaml:"timeout_seconds"`
	Idempotent     bool           `yaml:"idempotent"`
}

// PolicyDoc is the authored form of a security policy.
type PolicyDoc struct {
	Description string    `yaml:"description"`
	Target      string    `yaml:"target"`
	TargetRef   string    `yaml:"target_ref"`
	Rules       []RuleDoc `yaml:"rules"`
}

// RuleDoc is the authored form of a policy rule.
type RuleDoc struct {
	Role          string   `yaml:"role"`
	Access        string   `yaml:"access"`
	Scope         string   `yaml:"scope"`
	ColumnFilters []string `yaml:"column_filters"`
	RowFilter     string   `yaml:"row_filter"`
	Conditions    []string `yaml:"conditions"`
	Priority      int      `yaml:"priority"`
}

// ParseDocument unmarshals an authored YAML document. Parse failures are
// returned as errors; structural problems inside a well-formed document are
// the validator's concern.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schemadoc: parse document: %w", err)
	}
	return &doc, nil
}

// docString returns the string value of a key in a resolver block.
func docString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
