package model

import (
	"fmt"
	"time"
)

// Search limit bounds.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// SearchQuery is a composable, conjunctive filter over stored memories.
// Zero-valued fields contribute no condition; an empty query matches
// everything up to Limit.
type SearchQuery struct {
	Query                string
	MemoryTypes          []MemoryType
	Tags                 []string
	ProjectPath          string
	Languages            []string
	Frameworks           []string
	MinImportance        *float64
	MinConfidence        *float64
	MinEffectiveness     *float64
	CreatedAfter         *time.Time
	CreatedBefore        *time.Time
	Limit                int
	IncludeRelationships bool
}

// Normalize applies the default limit and canonicalizes tag filters.
func (q *SearchQuery) Normalize() {
	if q.Limit == 0 {
		q.Limit = DefaultSearchLimit
	}
	q.Tags = NormalizeTags(q.Tags)
}

// Validate checks limit bounds, threshold ranges, and type membership.
func (q *SearchQuery) Validate() error {
	if q.Limit < 1 || q.Limit > MaxSearchLimit {
		return &ValidationError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", MaxSearchLimit)}
	}
	for _, t := range q.MemoryTypes {
		if !t.Valid() {
			return &ValidationError{Field: "memory_types", Message: fmt.Sprintf("unknown memory type %q", string(t))}
		}
	}
	for _, pair := range []struct {
		field string
		value *float64
	}{
		{"min_importance", q.MinImportance},
		{"min_confidence", q.MinConfidence},
		{"min_effectiveness", q.MinEffectiveness},
	} {
		if pair.value == nil {
			continue
		}
		if err := validateUnit(pair.field, *pair.value); err != nil {
			return err
		}
	}
	return nil
}

// MemoryGraph is an in-memory assembly of memories and the relationships
// between them. It is a transport structure, never persisted as a unit.
type MemoryGraph struct {
	Memories      []Memory
	Relationships []Relationship
	Metadata      map[string]any
}

// MemoryByID returns the memory with the given id, or nil.
func (g *MemoryGraph) MemoryByID(id string) *Memory {
	for i := range g.Memories {
		if g.Memories[i].ID == id {
			return &g.Memories[i]
		}
	}
	return nil
}

// RelationshipsFor returns every relationship touching the given memory id.
func (g *MemoryGraph) RelationshipsFor(id string) []Relationship {
	var out []Relationship
	for _, r := range g.Relationships {
		if r.FromMemoryID == id || r.ToMemoryID == id {
			out = append(out, r)
		}
	}
	return out
}

// Statistics aggregates store-wide counts and averages. A nil pointer means
// the aggregate could not be computed.
type Statistics struct {
	TotalMemories      *int64
	MemoriesByType     map[string]int64
	TotalRelationships *int64
	AvgImportance      *float64
	AvgConfidence      *float64
}
