package model

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemoryDefaults(t *testing.T) {
	m, err := NewMemory(MemoryProblem, "  NPE on null user  ", "stack trace ...")
	require.NoError(t, err)

	assert.Equal(t, "NPE on null user", m.Title)
	assert.Equal(t, DefaultImportance, m.Importance)
	assert.Equal(t, DefaultConfidence, m.Confidence)
	assert.Equal(t, 0, m.UsageCount)
	assert.Empty(t, m.ID)
	assert.Equal(t, m.CreatedAt, m.UpdatedAt)
	assert.Nil(t, m.Effectiveness)
	assert.Nil(t, m.LastAccessed)
}

func TestNewMemoryRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Memory)
		field  string
	}{
		{"unknown type", func(m *Memory) { m.Type = "daydream" }, "type"},
		{"empty title", func(m *Memory) { m.Title = "   " }, "title"},
		{"long title", func(m *Memory) { m.Title = string(make([]byte, 201)) }, "title"},
		{"empty content", func(m *Memory) { m.Content = "" }, "content"},
		{"long summary", func(m *Memory) { m.Summary = string(make([]byte, 501)) }, "summary"},
		{"importance too high", func(m *Memory) { m.Importance = 1.1 }, "importance"},
		{"importance negative", func(m *Memory) { m.Importance = -0.1 }, "importance"},
		{"confidence too high", func(m *Memory) { m.Confidence = 2 }, "confidence"},
		{"effectiveness out of range", func(m *Memory) { v := 1.5; m.Effectiveness = &v }, "effectiveness"},
		{"negative usage count", func(m *Memory) { m.UsageCount = -1 }, "usage_count"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := NewMemory(MemoryGeneral, "title", "content")
			require.NoError(t, err)
			tc.mutate(m)
			err = m.Validate()
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestLengthLimitsCountCharactersNotBytes(t *testing.T) {
	// 150 two-byte runes: 300 bytes but well within the 200-character cap.
	m, err := NewMemory(MemoryGeneral, strings.Repeat("é", 150), "content")
	require.NoError(t, err)

	m.Summary = strings.Repeat("ü", 500)
	require.NoError(t, m.Validate())

	m.Title = strings.Repeat("é", 201)
	err = m.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "title", verr.Field)
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"  Foo ", "bar", ""})
	assert.Equal(t, []string{"foo", "bar"}, got)

	// Idempotent: a second pass is a no-op.
	assert.Equal(t, got, NormalizeTags(got))

	assert.Empty(t, NormalizeTags(nil))
}

func TestRelationshipValidation(t *testing.T) {
	r, err := NewRelationship(" a ", "b", RelSolves)
	require.NoError(t, err)
	assert.Equal(t, "a", r.FromMemoryID)
	assert.Equal(t, DefaultStrength, r.Properties.Strength)
	assert.Equal(t, DefaultConfidence, r.Properties.Confidence)
	assert.Equal(t, DefaultEvidenceCount, r.Properties.EvidenceCount)
	assert.False(t, r.Bidirectional)

	_, err = NewRelationship("", "b", RelSolves)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "from_memory_id", verr.Field)

	_, err = NewRelationship("a", "  ", RelSolves)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "to_memory_id", verr.Field)

	_, err = NewRelationship("a", "b", "FRIENDS_WITH")
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "type", verr.Field)

	r.Properties.Strength = 1.2
	err = r.Validate()
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "strength", verr.Field)
}

func TestParseEnums(t *testing.T) {
	mt, err := ParseMemoryType("code_pattern")
	require.NoError(t, err)
	assert.Equal(t, MemoryCodePattern, mt)

	_, err = ParseMemoryType("CODE_PATTERN")
	assert.Error(t, err)

	rt, err := ParseRelationshipType("PREFERRED_OVER")
	require.NoError(t, err)
	assert.Equal(t, RelPreferredOver, rt)

	_, err = ParseRelationshipType("solves")
	assert.Error(t, err)
}

func TestSearchQueryNormalizeAndValidate(t *testing.T) {
	q := SearchQuery{Tags: []string{" Go ", ""}}
	q.Normalize()
	require.NoError(t, q.Validate())
	assert.Equal(t, DefaultSearchLimit, q.Limit)
	assert.Equal(t, []string{"go"}, q.Tags)

	q.Limit = MaxSearchLimit + 1
	var verr *ValidationError
	err := q.Validate()
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "limit", verr.Field)

	q.Limit = 10
	bad := 1.7
	q.MinImportance = &bad
	err = q.Validate()
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "min_importance", verr.Field)
}

func TestMemoryGraphLookups(t *testing.T) {
	a, _ := NewMemory(MemoryProblem, "a", "a")
	b, _ := NewMemory(MemorySolution, "b", "b")
	a.ID, b.ID = "id-a", "id-b"
	rel, err := NewRelationship("id-a", "id-b", RelSolves)
	require.NoError(t, err)

	g := MemoryGraph{
		Memories:      []Memory{*a, *b},
		Relationships: []Relationship{*rel},
		Metadata:      map[string]any{"generated_at": time.Now()},
	}

	require.NotNil(t, g.MemoryByID("id-a"))
	assert.Nil(t, g.MemoryByID("missing"))
	assert.Len(t, g.RelationshipsFor("id-b"), 1)
	assert.Empty(t, g.RelationshipsFor("missing"))
}
