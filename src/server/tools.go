package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Protocol-Lattice/recall/src/memory/model"
	"github.com/Protocol-Lattice/recall/src/memory/store"
)

// MemoryTools holds the store reference the tool handlers operate on.
type MemoryTools struct {
	Store *store.MemoryStore
}

// --- Input types ---

type ContextInput struct {
	ProjectPath      string   `json:"project_path,omitempty" jsonschema:"Absolute path of the project the memory belongs to"`
	FilesInvolved    []string `json:"files_involved,omitempty" jsonschema:"Files the memory concerns"`
	Languages        []string `json:"languages,omitempty" jsonschema:"Programming languages involved"`
	Frameworks       []string `json:"frameworks,omitempty" jsonschema:"Frameworks involved"`
	Technologies     []string `json:"technologies,omitempty" jsonschema:"Other technologies involved"`
	GitCommit        string   `json:"git_commit,omitempty" jsonschema:"Git commit hash"`
	GitBranch        string   `json:"git_branch,omitempty" jsonschema:"Git branch name"`
	WorkingDirectory string   `json:"working_directory,omitempty" jsonschema:"Working directory at recording time"`
	SessionID        string   `json:"session_id,omitempty" jsonschema:"Originating session id"`
	UserID           string   `json:"user_id,omitempty" jsonschema:"Originating user id"`
}

type StoreMemoryInput struct {
	Type       string        `json:"type" jsonschema:"Memory type (e.g. task, problem, solution, fix, code_pattern)"`
	Title      string        `json:"title" jsonschema:"Short title, at most 200 characters"`
	Content    string        `json:"content" jsonschema:"Full memory content"`
	Summary    string        `json:"summary,omitempty" jsonschema:"Optional summary, at most 500 characters"`
	Tags       []string      `json:"tags,omitempty" jsonschema:"Tags, lowercased on store"`
	Importance *float64      `json:"importance,omitempty" jsonschema:"Importance score in [0.0, 1.0], default 0.5"`
	Confidence *float64      `json:"confidence,omitempty" jsonschema:"Confidence score in [0.0, 1.0], default 0.8"`
	Context    *ContextInput `json:"context,omitempty" jsonschema:"Development context the memory was recorded in"`
}

type GetMemoryInput struct {
	MemoryID string `json:"memory_id" jsonschema:"Id of the memory to retrieve"`
}

type SearchMemoriesInput struct {
	Query                string   `json:"query,omitempty" jsonschema:"Substring matched against title, content, and summary"`
	MemoryTypes          []string `json:"memory_types,omitempty" jsonschema:"Restrict to these memory types"`
	Tags                 []string `json:"tags,omitempty" jsonschema:"Match memories carrying any of these tags"`
	ProjectPath          string   `json:"project_path,omitempty" jsonschema:"Exact project path filter"`
	MinImportance        *float64 `json:"min_importance,omitempty" jsonschema:"Minimum importance threshold"`
	MinConfidence        *float64 `json:"min_confidence,omitempty" jsonschema:"Minimum confidence threshold"`
	CreatedAfter         string   `json:"created_after,omitempty" jsonschema:"RFC 3339 lower bound on creation time"`
	CreatedBefore        string   `json:"created_before,omitempty" jsonschema:"RFC 3339 upper bound on creation time"`
	Limit                int      `json:"limit,omitempty" jsonschema:"Maximum results, default 20, at most 100"`
	IncludeRelationships bool     `json:"include_relationships,omitempty" jsonschema:"Also return one-hop relationships between results"`
}

type UpdateMemoryInput struct {
	MemoryID   string   `json:"memory_id" jsonschema:"Id of the memory to update"`
	Title      *string  `json:"title,omitempty" jsonschema:"New title"`
	Content    *string  `json:"content,omitempty" jsonschema:"New content"`
	Summary    *string  `json:"summary,omitempty" jsonschema:"New summary"`
	Tags       []string `json:"tags,omitempty" jsonschema:"Replacement tag list"`
	Importance *float64 `json:"importance,omitempty" jsonschema:"New importance score"`
	Confidence *float64 `json:"confidence,omitempty" jsonschema:"New confidence score"`
}

type DeleteMemoryInput struct {
	MemoryID string `json:"memory_id" jsonschema:"Id of the memory to delete"`
}

type CreateRelationshipInput struct {
	FromMemoryID     string   `json:"from_memory_id" jsonschema:"Source memory id"`
	ToMemoryID       string   `json:"to_memory_id" jsonschema:"Target memory id"`
	RelationshipType string   `json:"relationship_type" jsonschema:"Relationship type (e.g. SOLVES, CAUSES, RELATED_TO)"`
	Strength         *float64 `json:"strength,omitempty" jsonschema:"Strength in [0.0, 1.0], default 0.5"`
	Confidence       *float64 `json:"confidence,omitempty" jsonschema:"Confidence in [0.0, 1.0], default 0.8"`
	Context          string   `json:"context,omitempty" jsonschema:"Free-form note about how the relationship was established"`
}

type GetRelatedMemoriesInput struct {
	MemoryID          string   `json:"memory_id" jsonschema:"Id of the memory to traverse from"`
	RelationshipTypes []string `json:"relationship_types,omitempty" jsonschema:"Restrict traversal to these relationship types"`
	MaxDepth          int      `json:"max_depth,omitempty" jsonschema:"Maximum traversal depth, default 2"`
}

type GetStatisticsInput struct{}

// --- Handlers ---

func (t *MemoryTools) StoreMemory(ctx context.Context, _ *mcp.CallToolRequest, input StoreMemoryInput) (*mcp.CallToolResult, any, error) {
	memType, err := model.ParseMemoryType(input.Type)
	if err != nil {
		return toolError("Invalid memory type: %v", err), nil, nil
	}
	m, err := model.NewMemory(memType, input.Title, input.Content)
	if err != nil {
		return toolError("Invalid memory: %v", err), nil, nil
	}
	m.Summary = input.Summary
	m.Tags = input.Tags
	if input.Importance != nil {
		m.Importance = *input.Importance
	}
	if input.Confidence != nil {
		m.Confidence = *input.Confidence
	}
	if input.Context != nil {
		m.Context = contextFromInput(input.Context)
	}

	id, err := t.Store.StoreMemory(ctx, m)
	if err != nil {
		return toolError("Failed to store memory: %v", err), nil, nil
	}
	return toolJSON(map[string]string{"memory_id": id})
}

func (t *MemoryTools) GetMemory(ctx context.Context, _ *mcp.CallToolRequest, input GetMemoryInput) (*mcp.CallToolResult, any, error) {
	if input.MemoryID == "" {
		return toolError("memory_id is required"), nil, nil
	}
	m, err := t.Store.GetMemory(ctx, input.MemoryID)
	if err != nil {
		return toolError("Failed to get memory: %v", err), nil, nil
	}
	if m == nil {
		return toolError("Memory %q not found", input.MemoryID), nil, nil
	}
	return toolJSON(memoryPayload(m))
}

func (t *MemoryTools) SearchMemories(ctx context.Context, _ *mcp.CallToolRequest, input SearchMemoriesInput) (*mcp.CallToolResult, any, error) {
	q := model.SearchQuery{
		Query:                input.Query,
		Tags:                 input.Tags,
		ProjectPath:          input.ProjectPath,
		MinImportance:        input.MinImportance,
		MinConfidence:        input.MinConfidence,
		Limit:                input.Limit,
		IncludeRelationships: input.IncludeRelationships,
	}
	for _, name := range input.MemoryTypes {
		memType, err := model.ParseMemoryType(name)
		if err != nil {
			return toolError("Invalid memory type: %v", err), nil, nil
		}
		q.MemoryTypes = append(q.MemoryTypes, memType)
	}
	if input.CreatedAfter != "" {
		ts, err := time.Parse(time.RFC3339, input.CreatedAfter)
		if err != nil {
			return toolError("Invalid created_after: %v", err), nil, nil
		}
		q.CreatedAfter = &ts
	}
	if input.CreatedBefore != "" {
		ts, err := time.Parse(time.RFC3339, input.CreatedBefore)
		if err != nil {
			return toolError("Invalid created_before: %v", err), nil, nil
		}
		q.CreatedBefore = &ts
	}

	graph, err := t.Store.SearchGraph(ctx, q)
	if err != nil {
		return toolError("Search failed: %v", err), nil, nil
	}
	return toolJSON(graphPayload(graph))
}

func (t *MemoryTools) UpdateMemory(ctx context.Context, _ *mcp.CallToolRequest, input UpdateMemoryInput) (*mcp.CallToolResult, any, error) {
	if input.MemoryID == "" {
		return toolError("memory_id is required"), nil, nil
	}
	m, err := t.Store.GetMemory(ctx, input.MemoryID)
	if err != nil {
		return toolError("Failed to load memory: %v", err), nil, nil
	}
	if m == nil {
		return toolError("Memory %q not found", input.MemoryID), nil, nil
	}

	if input.Title != nil {
		m.Title = *input.Title
	}
	if input.Content != nil {
		m.Content = *input.Content
	}
	if input.Summary != nil {
		m.Summary = *input.Summary
	}
	if input.Tags != nil {
		m.Tags = input.Tags
	}
	if input.Importance != nil {
		m.Importance = *input.Importance
	}
	if input.Confidence != nil {
		m.Confidence = *input.Confidence
	}

	matched, err := t.Store.UpdateMemory(ctx, m)
	if err != nil {
		return toolError("Failed to update memory: %v", err), nil, nil
	}
	if !matched {
		return toolError("Memory %q not found", input.MemoryID), nil, nil
	}
	return toolJSON(memoryPayload(m))
}

func (t *MemoryTools) DeleteMemory(ctx context.Context, _ *mcp.CallToolRequest, input DeleteMemoryInput) (*mcp.CallToolResult, any, error) {
	if input.MemoryID == "" {
		return toolError("memory_id is required"), nil, nil
	}
	deleted, err := t.Store.DeleteMemory(ctx, input.MemoryID)
	if err != nil {
		return toolError("Failed to delete memory: %v", err), nil, nil
	}
	if !deleted {
		return toolError("Memory %q not found", input.MemoryID), nil, nil
	}
	return toolText(fmt.Sprintf("Deleted memory %s", input.MemoryID)), nil, nil
}

func (t *MemoryTools) CreateRelationship(ctx context.Context, _ *mcp.CallToolRequest, input CreateRelationshipInput) (*mcp.CallToolResult, any, error) {
	relType, err := model.ParseRelationshipType(input.RelationshipType)
	if err != nil {
		return toolError("Invalid relationship type: %v", err), nil, nil
	}
	props := model.DefaultRelationshipProperties()
	if input.Strength != nil {
		props.Strength = *input.Strength
	}
	if input.Confidence != nil {
		props.Confidence = *input.Confidence
	}
	props.Context = input.Context

	id, err := t.Store.CreateRelationship(ctx, input.FromMemoryID, input.ToMemoryID, relType, &props)
	if err != nil {
		return toolError("Failed to create relationship: %v", err), nil, nil
	}
	return toolJSON(map[string]string{"relationship_id": id})
}

func (t *MemoryTools) GetRelatedMemories(ctx context.Context, _ *mcp.CallToolRequest, input GetRelatedMemoriesInput) (*mcp.CallToolResult, any, error) {
	if input.MemoryID == "" {
		return toolError("memory_id is required"), nil, nil
	}
	var types []model.RelationshipType
	for _, name := range input.RelationshipTypes {
		relType, err := model.ParseRelationshipType(name)
		if err != nil {
			return toolError("Invalid relationship type: %v", err), nil, nil
		}
		types = append(types, relType)
	}

	related, err := t.Store.GetRelatedMemories(ctx, input.MemoryID, types, input.MaxDepth)
	if err != nil {
		return toolError("Traversal failed: %v", err), nil, nil
	}
	payload := make([]relatedPayload, 0, len(related))
	for _, pair := range related {
		payload = append(payload, relatedPayload{
			Memory:       memoryPayload(&pair.Memory),
			Relationship: relationshipPayload(pair.Relationship),
		})
	}
	return toolJSON(payload)
}

func (t *MemoryTools) GetStatistics(ctx context.Context, _ *mcp.CallToolRequest, _ GetStatisticsInput) (*mcp.CallToolResult, any, error) {
	stats, err := t.Store.Statistics(ctx)
	if err != nil {
		return toolError("Failed to compute statistics: %v", err), nil, nil
	}
	return toolJSON(statisticsPayload(stats))
}

// --- Payload shaping ---

type memoryDTO struct {
	ID            string      `json:"id"`
	Type          string      `json:"type"`
	Title         string      `json:"title"`
	Content       string      `json:"content"`
	Summary       string      `json:"summary,omitempty"`
	Tags          []string    `json:"tags,omitempty"`
	Context       *contextDTO `json:"context,omitempty"`
	Importance    float64     `json:"importance"`
	Confidence    float64     `json:"confidence"`
	Effectiveness *float64    `json:"effectiveness,omitempty"`
	UsageCount    int         `json:"usage_count"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	LastAccessed  *time.Time  `json:"last_accessed,omitempty"`
}

type contextDTO struct {
	ProjectPath      string `json:"project_path,omitempty"`
	GitCommit        string `json:"git_commit,omitempty"`
	GitBranch        string `json:"git_branch,omitempty"`
	WorkingDirectory string `json:"working_directory,omitempty"`
	SessionID        string `json:"session_id,omitempty"`
	UserID           string `json:"user_id,omitempty"`
}

type relationshipDTO struct {
	ID           string  `json:"id,omitempty"`
	FromMemoryID string  `json:"from_memory_id"`
	ToMemoryID   string  `json:"to_memory_id"`
	Type         string  `json:"type"`
	Strength     float64 `json:"strength"`
	Confidence   float64 `json:"confidence"`
	Context      string  `json:"context,omitempty"`
}

type relatedPayload struct {
	Memory       memoryDTO       `json:"memory"`
	Relationship relationshipDTO `json:"relationship"`
}

type graphDTO struct {
	Memories      []memoryDTO       `json:"memories"`
	Relationships []relationshipDTO `json:"relationships,omitempty"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
}

type statisticsDTO struct {
	TotalMemories      *int64           `json:"total_memories,omitempty"`
	MemoriesByType     map[string]int64 `json:"memories_by_type,omitempty"`
	TotalRelationships *int64           `json:"total_relationships,omitempty"`
	AvgImportance      *float64         `json:"avg_importance,omitempty"`
	AvgConfidence      *float64         `json:"avg_confidence,omitempty"`
}

func contextFromInput(in *ContextInput) *model.MemoryContext {
	return &model.MemoryContext{
		ProjectPath:      in.ProjectPath,
		FilesInvolved:    in.FilesInvolved,
		Languages:        in.Languages,
		Frameworks:       in.Frameworks,
		Technologies:     in.Technologies,
		GitCommit:        in.GitCommit,
		GitBranch:        in.GitBranch,
		WorkingDirectory: in.WorkingDirectory,
		SessionID:        in.SessionID,
		UserID:           in.UserID,
	}
}

func memoryPayload(m *model.Memory) memoryDTO {
	dto := memoryDTO{
		ID:            m.ID,
		Type:          string(m.Type),
		Title:         m.Title,
		Content:       m.Content,
		Summary:       m.Summary,
		Tags:          m.Tags,
		Importance:    m.Importance,
		Confidence:    m.Confidence,
		Effectiveness: m.Effectiveness,
		UsageCount:    m.UsageCount,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		LastAccessed:  m.LastAccessed,
	}
	if c := m.Context; c != nil {
		dto.Context = &contextDTO{
			ProjectPath:      c.ProjectPath,
			GitCommit:        c.GitCommit,
			GitBranch:        c.GitBranch,
			WorkingDirectory: c.WorkingDirectory,
			SessionID:        c.SessionID,
			UserID:           c.UserID,
		}
	}
	return dto
}

func relationshipPayload(r model.Relationship) relationshipDTO {
	return relationshipDTO{
		ID:           r.ID,
		FromMemoryID: r.FromMemoryID,
		ToMemoryID:   r.ToMemoryID,
		Type:         string(r.Type),
		Strength:     r.Properties.Strength,
		Confidence:   r.Properties.Confidence,
		Context:      r.Properties.Context,
	}
}

func graphPayload(g *model.MemoryGraph) graphDTO {
	dto := graphDTO{
		Memories: make([]memoryDTO, 0, len(g.Memories)),
		Metadata: g.Metadata,
	}
	for i := range g.Memories {
		dto.Memories = append(dto.Memories, memoryPayload(&g.Memories[i]))
	}
	for _, r := range g.Relationships {
		dto.Relationships = append(dto.Relationships, relationshipPayload(r))
	}
	return dto
}

func statisticsPayload(s model.Statistics) statisticsDTO {
	return statisticsDTO{
		TotalMemories:      s.TotalMemories,
		MemoriesByType:     s.MemoriesByType,
		TotalRelationships: s.TotalRelationships,
		AvgImportance:      s.AvgImportance,
		AvgConfidence:      s.AvgConfidence,
	}
}

// --- Helpers ---

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
