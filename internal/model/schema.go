// Package model defines the schema entities served by the registry and the
// clip entities produced by the extraction pipeline. Pure data: no behaviour
// beyond validation, equality, and serialisation.
package model

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
)

// VersionState represents the lifecycle state of a schema version.
type VersionState string

const (
	VersionDraft      VersionState = "draft"
	VersionReview     VersionState = "review"
	VersionPublished  VersionState = "published"
	VersionDeprecated VersionState = "deprecated"
)

// Valid reports whether s is a known lifecycle state.
func (s VersionState) Valid() bool {
	switch s {
	case VersionDraft, VersionReview, VersionPublished, VersionDeprecated:
		return true
	}
	return false
}

// SchemaVersion is a versioned snapshot of the ontology. At most one version
// is active at any instant; publishing flips the flag transactionally.
type SchemaVersion struct {
	ID          uuid.UUID    `json:"id"`
	Version     string       `json:"version"`
	State       VersionState `json:"state"`
	Active      bool         `json:"active"`
	Description string       `json:"description,omitempty"`
	CreatedBy   string       `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
	PublishedAt *time.Time   `json:"published_at,omitempty"`
}

// ParseVersion validates a semantic-version string. Plain "1.0" style
// strings are accepted (semver coerces missing segments to zero).
func ParseVersion(v string) (*semver.Version, error) {
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return nil, fmt.Errorf("model: invalid version %q: %w", v, err)
	}
	return parsed, nil
}
