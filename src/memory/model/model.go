package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Default scores applied when a memory is created without explicit values.
const (
	DefaultImportance = 0.5
	DefaultConfidence = 0.8

	maxTitleLength   = 200
	maxSummaryLength = 500
)

// ValidationError reports a domain object field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// MemoryContext captures the environment a memory was recorded in.
//
// List and map valued fields survive storage only as opaque strings; see the
// codec package for the flattening rules.
type MemoryContext struct {
	ProjectPath        string
	FilesInvolved      []string
	Languages          []string
	Frameworks         []string
	Technologies       []string
	GitCommit          string
	GitBranch          string
	WorkingDirectory   string
	Timestamp          time.Time
	SessionID          string
	UserID             string
	AdditionalMetadata map[string]any
}

// Memory is the atomic unit of stored knowledge.
type Memory struct {
	ID            string
	Type          MemoryType
	Title         string
	Content       string
	Summary       string
	Tags          []string
	Context       *MemoryContext
	Importance    float64
	Confidence    float64
	Effectiveness *float64
	UsageCount    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastAccessed  *time.Time
}

// NewMemory builds a memory with defaults applied, normalized, and validated.
// The ID is left empty; the store assigns one on first persist.
func NewMemory(t MemoryType, title, content string) (*Memory, error) {
	now := time.Now().UTC()
	m := &Memory{
		Type:       t,
		Title:      title,
		Content:    content,
		Importance: DefaultImportance,
		Confidence: DefaultConfidence,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.Normalize()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Normalize trims text fields and canonicalizes the tag list. It is
// idempotent: normalizing an already-normalized memory changes nothing.
func (m *Memory) Normalize() {
	m.Title = strings.TrimSpace(m.Title)
	m.Content = strings.TrimSpace(m.Content)
	m.Summary = strings.TrimSpace(m.Summary)
	m.Tags = NormalizeTags(m.Tags)
}

// Validate checks every invariant and names the first offending field.
func (m *Memory) Validate() error {
	if !m.Type.Valid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown memory type %q", string(m.Type))}
	}
	if m.Title == "" {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if utf8.RuneCountInString(m.Title) > maxTitleLength {
		return &ValidationError{Field: "title", Message: fmt.Sprintf("must be at most %d characters", maxTitleLength)}
	}
	if m.Content == "" {
		return &ValidationError{Field: "content", Message: "must not be empty"}
	}
	if utf8.RuneCountInString(m.Summary) > maxSummaryLength {
		return &ValidationError{Field: "summary", Message: fmt.Sprintf("must be at most %d characters", maxSummaryLength)}
	}
	if err := validateUnit("importance", m.Importance); err != nil {
		return err
	}
	if err := validateUnit("confidence", m.Confidence); err != nil {
		return err
	}
	if m.Effectiveness != nil {
		if err := validateUnit("effectiveness", *m.Effectiveness); err != nil {
			return err
		}
	}
	if m.UsageCount < 0 {
		return &ValidationError{Field: "usage_count", Message: "must not be negative"}
	}
	return nil
}

// NormalizeTags lowercases and trims tags and drops empty entries.
// Applying it twice yields the same result as applying it once.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		out = append(out, tag)
	}
	return out
}

func validateUnit(field string, v float64) error {
	if v < 0.0 || v > 1.0 {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%v is outside [0.0, 1.0]", v)}
	}
	return nil
}
