package model

import (
	"fmt"
	"strings"
	"time"
)

// Default relationship scores.
const (
	DefaultStrength      = 0.5
	DefaultEvidenceCount = 1
)

// RelationshipProperties carries the evidence metadata attached to an edge.
type RelationshipProperties struct {
	Strength             float64
	Confidence           float64
	Context              string
	EvidenceCount        int
	SuccessRate          *float64
	CreatedAt            time.Time
	LastValidated        time.Time
	ValidationCount      int
	CounterEvidenceCount int
}

// DefaultRelationshipProperties returns properties with defaults applied and
// both timestamps set to the creation instant.
func DefaultRelationshipProperties() RelationshipProperties {
	now := time.Now().UTC()
	return RelationshipProperties{
		Strength:      DefaultStrength,
		Confidence:    DefaultConfidence,
		EvidenceCount: DefaultEvidenceCount,
		CreatedAt:     now,
		LastValidated: now,
	}
}

// Validate checks the numeric ranges on relationship properties.
func (p *RelationshipProperties) Validate() error {
	if err := validateUnit("strength", p.Strength); err != nil {
		return err
	}
	if err := validateUnit("confidence", p.Confidence); err != nil {
		return err
	}
	if p.SuccessRate != nil {
		if err := validateUnit("success_rate", *p.SuccessRate); err != nil {
			return err
		}
	}
	if p.EvidenceCount < 0 {
		return &ValidationError{Field: "evidence_count", Message: "must not be negative"}
	}
	if p.ValidationCount < 0 {
		return &ValidationError{Field: "validation_count", Message: "must not be negative"}
	}
	if p.CounterEvidenceCount < 0 {
		return &ValidationError{Field: "counter_evidence_count", Message: "must not be negative"}
	}
	return nil
}

// Relationship is a directed, typed edge between two memory ids.
// Bidirectional is informational only; storage is always directed.
type Relationship struct {
	ID            string
	FromMemoryID  string
	ToMemoryID    string
	Type          RelationshipType
	Properties    RelationshipProperties
	Description   string
	Bidirectional bool
}

// NewRelationship builds a validated relationship with default properties.
func NewRelationship(fromID, toID string, t RelationshipType) (*Relationship, error) {
	r := &Relationship{
		FromMemoryID: fromID,
		ToMemoryID:   toID,
		Type:         t,
		Properties:   DefaultRelationshipProperties(),
	}
	r.Normalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Normalize trims both endpoint ids.
func (r *Relationship) Normalize() {
	r.FromMemoryID = strings.TrimSpace(r.FromMemoryID)
	r.ToMemoryID = strings.TrimSpace(r.ToMemoryID)
}

// Validate checks endpoints, type membership, and property ranges.
func (r *Relationship) Validate() error {
	if r.FromMemoryID == "" {
		return &ValidationError{Field: "from_memory_id", Message: "must not be empty"}
	}
	if r.ToMemoryID == "" {
		return &ValidationError{Field: "to_memory_id", Message: "must not be empty"}
	}
	if !r.Type.Valid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown relationship type %q", string(r.Type))}
	}
	return r.Properties.Validate()
}
