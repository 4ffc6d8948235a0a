// Package codec maps domain objects to and from the flat property bags the
// graph engine stores on nodes and edges.
//
// Unset optional fields never appear in the encoded bag; the decoder treats
// an absent key as "optional field unset", never as null. List and map valued
// context fields are flattened to canonical JSON strings, which is a one-way
// transform: they are not reconstructed on decode.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Protocol-Lattice/recall/src/memory/model"
)

// ContextPrefix prefixes every flattened context field on a memory node.
const ContextPrefix = "context_"

const timeFormat = time.RFC3339Nano

// ErrDecode marks stored records that cannot be reconstructed into domain
// objects. Batch callers skip such rows; single-record callers report "not
// found".
var ErrDecode = errors.New("decode memory")

// EncodeMemory converts a memory into node properties.
func EncodeMemory(m *model.Memory) map[string]any {
	props := map[string]any{
		"id":          m.ID,
		"type":        string(m.Type),
		"title":       m.Title,
		"content":     m.Content,
		"tags":        append([]string{}, m.Tags...),
		"importance":  m.Importance,
		"confidence":  m.Confidence,
		"usage_count": int64(m.UsageCount),
		"created_at":  encodeTime(m.CreatedAt),
		"updated_at":  encodeTime(m.UpdatedAt),
	}
	if m.Summary != "" {
		props["summary"] = m.Summary
	}
	if m.Effectiveness != nil {
		props["effectiveness"] = *m.Effectiveness
	}
	if m.LastAccessed != nil {
		props["last_accessed"] = encodeTime(*m.LastAccessed)
	}
	if m.Context != nil {
		encodeContext(props, m.Context)
	}
	return props
}

func encodeContext(props map[string]any, c *model.MemoryContext) {
	setContextString(props, "project_path", c.ProjectPath)
	setContextString(props, "git_commit", c.GitCommit)
	setContextString(props, "git_branch", c.GitBranch)
	setContextString(props, "working_directory", c.WorkingDirectory)
	setContextString(props, "session_id", c.SessionID)
	setContextString(props, "user_id", c.UserID)
	if !c.Timestamp.IsZero() {
		props[ContextPrefix+"timestamp"] = encodeTime(c.Timestamp)
	}
	setContextLossy(props, "files_involved", c.FilesInvolved)
	setContextLossy(props, "languages", c.Languages)
	setContextLossy(props, "frameworks", c.Frameworks)
	setContextLossy(props, "technologies", c.Technologies)
	if len(c.AdditionalMetadata) > 0 {
		props[ContextPrefix+"additional_metadata"] = lossyString(c.AdditionalMetadata)
	}
}

func setContextString(props map[string]any, name, value string) {
	if value != "" {
		props[ContextPrefix+name] = value
	}
}

func setContextLossy(props map[string]any, name string, values []string) {
	if len(values) > 0 {
		props[ContextPrefix+name] = lossyString(values)
	}
}

// lossyString serializes list and map context values to a canonical JSON
// string. encoding/json sorts map keys, so equal values encode identically.
func lossyString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// lossyContextFields are flattened one-way; the decoder leaves them unset.
var lossyContextFields = map[string]struct{}{
	"files_involved":      {},
	"languages":           {},
	"frameworks":          {},
	"technologies":        {},
	"additional_metadata": {},
}

// DecodeMemory reconstructs a memory from node properties.
func DecodeMemory(props map[string]any) (*model.Memory, error) {
	m := &model.Memory{}
	var err error
	if m.ID, err = requireString(props, "id"); err != nil {
		return nil, err
	}
	typeName, err := requireString(props, "type")
	if err != nil {
		return nil, err
	}
	if m.Type, err = model.ParseMemoryType(typeName); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if m.Title, err = requireString(props, "title"); err != nil {
		return nil, err
	}
	if m.Content, err = requireString(props, "content"); err != nil {
		return nil, err
	}
	if m.CreatedAt, err = requireTime(props, "created_at"); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = requireTime(props, "updated_at"); err != nil {
		return nil, err
	}

	if v, ok := props["summary"]; ok {
		m.Summary, _ = asString(v)
	}
	if v, ok := props["effectiveness"]; ok {
		if f, ok := asFloat(v); ok {
			m.Effectiveness = &f
		}
	}
	if v, ok := props["last_accessed"]; ok {
		if ts, ok := asTime(v); ok {
			m.LastAccessed = &ts
		}
	}
	m.Tags = asStringSlice(props["tags"])
	m.Importance = floatOr(props, "importance", model.DefaultImportance)
	m.Confidence = floatOr(props, "confidence", model.DefaultConfidence)
	m.UsageCount = int(intOr(props, "usage_count", 0))

	ctx, err := decodeContext(props)
	if err != nil {
		return nil, err
	}
	m.Context = ctx

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return m, nil
}

func decodeContext(props map[string]any) (*model.MemoryContext, error) {
	ctx := &model.MemoryContext{}
	found := false
	for key, value := range props {
		if !strings.HasPrefix(key, ContextPrefix) {
			continue
		}
		name := strings.TrimPrefix(key, ContextPrefix)
		if _, lossy := lossyContextFields[name]; lossy {
			// Stored as an opaque string; not reconstructed.
			found = true
			continue
		}
		switch name {
		case "project_path":
			ctx.ProjectPath, _ = asString(value)
		case "git_commit":
			ctx.GitCommit, _ = asString(value)
		case "git_branch":
			ctx.GitBranch, _ = asString(value)
		case "working_directory":
			ctx.WorkingDirectory, _ = asString(value)
		case "session_id":
			ctx.SessionID, _ = asString(value)
		case "user_id":
			ctx.UserID, _ = asString(value)
		case "timestamp":
			ts, ok := asTime(value)
			if !ok {
				return nil, fmt.Errorf("%w: unparseable property %q", ErrDecode, key)
			}
			ctx.Timestamp = ts
		default:
			// Unknown context keys are tolerated.
		}
		found = true
	}
	if !found {
		return nil, nil
	}
	return ctx, nil
}

// EncodeRelationshipProperties converts relationship properties into edge
// properties, including the assigned edge id.
func EncodeRelationshipProperties(id string, p model.RelationshipProperties) map[string]any {
	props := map[string]any{
		"id":                     id,
		"strength":               p.Strength,
		"confidence":             p.Confidence,
		"evidence_count":         int64(p.EvidenceCount),
		"created_at":             encodeTime(p.CreatedAt),
		"last_validated":         encodeTime(p.LastValidated),
		"validation_count":       int64(p.ValidationCount),
		"counter_evidence_count": int64(p.CounterEvidenceCount),
	}
	if p.Context != "" {
		props["context"] = p.Context
	}
	if p.SuccessRate != nil {
		props["success_rate"] = *p.SuccessRate
	}
	return props
}

// DecodeRelationship synthesizes a simplified relationship from the first
// edge of a traversal path. Only type, strength, and confidence are
// extracted; everything else keeps its default.
func DecodeRelationship(props map[string]any, fromID, toID string) model.Relationship {
	rel := model.Relationship{
		FromMemoryID: fromID,
		ToMemoryID:   toID,
		Type:         model.RelRelatedTo,
		Properties:   model.DefaultRelationshipProperties(),
	}
	if props == nil {
		return rel
	}
	if name, ok := asString(props["type"]); ok {
		if t, err := model.ParseRelationshipType(name); err == nil {
			rel.Type = t
		}
	}
	if id, ok := asString(props["id"]); ok {
		rel.ID = id
	}
	if f, ok := asFloat(props["strength"]); ok {
		rel.Properties.Strength = f
	}
	if f, ok := asFloat(props["confidence"]); ok {
		rel.Properties.Confidence = f
	}
	return rel
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func requireString(props map[string]any, key string) (string, error) {
	v, ok := props[key]
	if !ok {
		return "", fmt.Errorf("%w: missing required property %q", ErrDecode, key)
	}
	s, ok := asString(v)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: missing required property %q", ErrDecode, key)
	}
	return s, nil
}

func requireTime(props map[string]any, key string) (time.Time, error) {
	v, ok := props[key]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: missing required property %q", ErrDecode, key)
	}
	ts, ok := asTime(v)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unparseable property %q", ErrDecode, key)
	}
	return ts, nil
}

func floatOr(props map[string]any, key string, fallback float64) float64 {
	if f, ok := asFloat(props[key]); ok {
		return f
	}
	return fallback
}

func intOr(props map[string]any, key string, fallback int64) int64 {
	if i, ok := asInt(props[key]); ok {
		return i
	}
	return fallback
}
