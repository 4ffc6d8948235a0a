// Package store orchestrates the codec and query builder against a
// transactional graph-query execution capability. It owns id generation,
// timestamp stamping, and statistics aggregation.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	memcache "github.com/Protocol-Lattice/recall/src/cache"
	"github.com/Protocol-Lattice/recall/src/concurrent"
	"github.com/Protocol-Lattice/recall/src/memory/codec"
	"github.com/Protocol-Lattice/recall/src/memory/model"
	"github.com/Protocol-Lattice/recall/src/memory/query"
)

const (
	upsertMemoryCypher = `MERGE (m:Memory {id: $id})
SET m += $properties
RETURN m.id AS id`

	updateMemoryCypher = `MATCH (m:Memory {id: $id})
SET m += $properties
RETURN m.id AS id`

	getMemoryCypher = `MATCH (m:Memory {id: $memory_id})
RETURN m`

	deleteMemoryCypher = `MATCH (m:Memory {id: $memory_id})
DETACH DELETE m
RETURN COUNT(m) AS deleted_count`
)

// RelatedMemory pairs a traversal result with the simplified relationship
// that reached it.
type RelatedMemory struct {
	Memory       model.Memory
	Relationship model.Relationship
}

// MemoryStore is the high-level facade over the memory graph.
type MemoryStore struct {
	exec   QueryExecutor
	logger *log.Logger
	cache  *memcache.LRU[model.Memory]
	nowFn  func() time.Time
	newID  func() string
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithLogger replaces the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *MemoryStore) { s.logger = logger }
}

// WithCache enables a read-through cache for single-memory lookups.
// Writes and deletes invalidate their entry.
func WithCache(capacity int, ttl time.Duration) Option {
	return func(s *MemoryStore) { s.cache = memcache.NewLRU[model.Memory](capacity, ttl) }
}

// NewMemoryStore builds a facade on top of the given execution capability.
func NewMemoryStore(exec QueryExecutor, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		exec:   exec,
		logger: log.Default(),
		nowFn:  time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitializeSchema idempotently ensures constraints and indexes. Statements
// that report "already exists" are expected; every other failure is a
// warning and the remaining statements still run.
func (s *MemoryStore) InitializeSchema(ctx context.Context) error {
	s.logger.Info("initializing memory graph schema")
	statements := append(query.Constraints(), query.Indexes()...)
	for _, stmt := range statements {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.exec.Execute(ctx, stmt, nil); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "already exists") {
				continue
			}
			s.logger.Warn("schema statement failed", "statement", stmt, "err", err)
		}
	}
	s.logger.Info("schema initialization completed")
	return nil
}

// StoreMemory validates, stamps, and upserts a memory, assigning an id when
// absent. Returns the assigned id.
func (s *MemoryStore) StoreMemory(ctx context.Context, m *model.Memory) (string, error) {
	if m == nil {
		return "", &model.ValidationError{Field: "memory", Message: "must not be nil"}
	}
	m.Normalize()
	if err := m.Validate(); err != nil {
		return "", err
	}
	if m.ID == "" {
		m.ID = s.newID()
	}
	now := s.nowFn().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if m.Context != nil && m.Context.Timestamp.IsZero() {
		m.Context.Timestamp = now
	}

	rows, err := s.exec.WriteQuery(ctx, upsertMemoryCypher, map[string]any{
		"id":         m.ID,
		"properties": codec.EncodeMemory(m),
	})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("%w: memory %s", ErrStorage, m.ID)
	}
	if s.cache != nil {
		s.cache.Delete(m.ID)
	}
	s.logger.Info("stored memory", "id", m.ID, "type", m.Type)
	return m.ID, nil
}

// GetMemory looks up a single memory. A missing record returns (nil, nil);
// so does a stored record that cannot be decoded.
func (s *MemoryStore) GetMemory(ctx context.Context, id string) (*model.Memory, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(id); ok {
			return &cached, nil
		}
	}

	rows, err := s.exec.ReadQuery(ctx, getMemoryCypher, map[string]any{"memory_id": id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	props, ok := rows[0]["m"].(map[string]any)
	if !ok {
		s.logger.Error("memory row has unexpected shape", "id", id)
		return nil, nil
	}
	m, err := codec.DecodeMemory(props)
	if err != nil {
		s.logger.Error("failed to decode memory", "id", id, "err", err)
		return nil, nil
	}
	if s.cache != nil {
		s.cache.Set(id, *m)
	}
	return m, nil
}

// SearchMemories runs a filtered search. Rows that fail to decode are
// skipped and logged, never fatal to the batch.
func (s *MemoryStore) SearchMemories(ctx context.Context, q model.SearchQuery) ([]model.Memory, error) {
	q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	cypher, params := query.Search(q)
	rows, err := s.exec.ReadQuery(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	memories := make([]model.Memory, 0, len(rows))
	for _, row := range rows {
		props, ok := row["m"].(map[string]any)
		if !ok {
			s.logger.Warn("skipping search row with unexpected shape")
			continue
		}
		m, err := codec.DecodeMemory(props)
		if err != nil {
			s.logger.Warn("skipping undecodable memory", "err", err)
			continue
		}
		memories = append(memories, *m)
	}
	s.logger.Info("search completed", "results", len(memories))
	return memories, nil
}

// SearchGraph assembles search results into a MemoryGraph, expanding one-hop
// relationships for each hit when the query asks for them.
func (s *MemoryStore) SearchGraph(ctx context.Context, q model.SearchQuery) (*model.MemoryGraph, error) {
	memories, err := s.SearchMemories(ctx, q)
	if err != nil {
		return nil, err
	}
	graph := &model.MemoryGraph{
		Memories: memories,
		Metadata: map[string]any{
			"total_memories": len(memories),
			"generated_at":   s.nowFn().UTC(),
		},
	}
	if !q.IncludeRelationships {
		return graph, nil
	}

	seen := map[string]struct{}{}
	for _, m := range memories {
		related, err := s.GetRelatedMemories(ctx, m.ID, nil, 1)
		if err != nil {
			s.logger.Warn("relationship expansion failed", "id", m.ID, "err", err)
			continue
		}
		for _, pair := range related {
			rel := pair.Relationship
			key := rel.FromMemoryID + "|" + rel.ToMemoryID + "|" + string(rel.Type)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			graph.Relationships = append(graph.Relationships, rel)
		}
	}
	return graph, nil
}

// UpdateMemory overwrites an existing memory's properties. The memory must
// already carry an id. Returns whether a record was matched.
func (s *MemoryStore) UpdateMemory(ctx context.Context, m *model.Memory) (bool, error) {
	if m == nil || m.ID == "" {
		return false, &model.ValidationError{Field: "id", Message: "memory must have an id to update"}
	}
	m.Normalize()
	if err := m.Validate(); err != nil {
		return false, err
	}
	m.UpdatedAt = s.nowFn().UTC()

	rows, err := s.exec.WriteQuery(ctx, updateMemoryCypher, map[string]any{
		"id":         m.ID,
		"properties": codec.EncodeMemory(m),
	})
	if err != nil {
		return false, err
	}
	if s.cache != nil {
		s.cache.Delete(m.ID)
	}
	matched := len(rows) > 0
	if matched {
		s.logger.Info("updated memory", "id", m.ID)
	}
	return matched, nil
}

// DeleteMemory removes a memory and all incident relationships atomically.
// Returns whether anything was deleted.
func (s *MemoryStore) DeleteMemory(ctx context.Context, id string) (bool, error) {
	rows, err := s.exec.WriteQuery(ctx, deleteMemoryCypher, map[string]any{"memory_id": id})
	if err != nil {
		return false, err
	}
	if s.cache != nil {
		s.cache.Delete(id)
	}
	deleted := false
	if len(rows) > 0 {
		if count, ok := intValue(rows[0]["deleted_count"]); ok {
			deleted = count > 0
		}
	}
	if deleted {
		s.logger.Info("deleted memory", "id", id)
	}
	return deleted, nil
}

// CreateRelationship creates a typed edge between two existing memories and
// returns the assigned relationship id. When either endpoint is missing the
// create matches nothing and the call fails with ErrStorage.
func (s *MemoryStore) CreateRelationship(ctx context.Context, fromID, toID string, t model.RelationshipType, props *model.RelationshipProperties) (string, error) {
	now := s.nowFn().UTC()
	rel := &model.Relationship{
		FromMemoryID: fromID,
		ToMemoryID:   toID,
		Type:         t,
		Properties:   model.DefaultRelationshipProperties(),
	}
	// The store clock owns edge timestamps; the constructor's wall-clock
	// stamps are overwritten.
	rel.Properties.CreatedAt = now
	rel.Properties.LastValidated = now
	if props != nil {
		rel.Properties = *props
		if rel.Properties.CreatedAt.IsZero() {
			rel.Properties.CreatedAt = now
		}
		if rel.Properties.LastValidated.IsZero() {
			rel.Properties.LastValidated = now
		}
	}
	rel.Normalize()
	if err := rel.Validate(); err != nil {
		return "", err
	}
	rel.ID = s.newID()

	rows, err := s.exec.WriteQuery(ctx, query.CreateRelationship(rel.Type), map[string]any{
		"from_id":    rel.FromMemoryID,
		"to_id":      rel.ToMemoryID,
		"properties": codec.EncodeRelationshipProperties(rel.ID, rel.Properties),
	})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("%w: relationship %s between %s and %s", ErrStorage, rel.Type, rel.FromMemoryID, rel.ToMemoryID)
	}
	s.logger.Info("created relationship", "type", rel.Type, "from", rel.FromMemoryID, "to", rel.ToMemoryID)
	return rel.ID, nil
}

// GetRelatedMemories traverses from a start memory up to maxDepth hops,
// optionally restricted to the given relationship types, and pairs each
// reachable memory with its simplified first-hop relationship.
func (s *MemoryStore) GetRelatedMemories(ctx context.Context, id string, types []model.RelationshipType, maxDepth int) ([]RelatedMemory, error) {
	for _, t := range types {
		if !t.Valid() {
			return nil, &model.ValidationError{Field: "relationship_types", Message: fmt.Sprintf("unknown relationship type %q", string(t))}
		}
	}

	cypher, params := query.Related(id, types, maxDepth)
	rows, err := s.exec.ReadQuery(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	related := make([]RelatedMemory, 0, len(rows))
	for _, row := range rows {
		props, ok := row["related"].(map[string]any)
		if !ok {
			s.logger.Warn("skipping traversal row with unexpected shape")
			continue
		}
		m, err := codec.DecodeMemory(props)
		if err != nil {
			s.logger.Warn("skipping undecodable related memory", "err", err)
			continue
		}
		rel := codec.DecodeRelationship(relationshipProps(row["relationship"]), id, m.ID)
		related = append(related, RelatedMemory{Memory: *m, Relationship: rel})
	}
	s.logger.Info("traversal completed", "start", id, "results", len(related))
	return related, nil
}

// Statistics aggregates store-wide metrics. Each aggregate runs in its own
// read transaction; a failed aggregate is logged and reported as absent.
func (s *MemoryStore) Statistics(ctx context.Context) (model.Statistics, error) {
	type aggregate struct {
		name   string
		cypher string
	}
	aggregates := []aggregate{
		{"total_memories", "MATCH (m:Memory) RETURN COUNT(m) AS count"},
		{"memories_by_type", "MATCH (m:Memory) RETURN m.type AS type, COUNT(m) AS count ORDER BY count DESC"},
		{"total_relationships", "MATCH ()-[r]->() RETURN COUNT(r) AS count"},
		{"avg_importance", "MATCH (m:Memory) RETURN AVG(m.importance) AS value"},
		{"avg_confidence", "MATCH (m:Memory) RETURN AVG(m.confidence) AS value"},
	}

	rowsets, errs := concurrent.ParallelMap(ctx, aggregates, func(a aggregate) ([]map[string]any, error) {
		return s.exec.ReadQuery(ctx, a.cypher, nil)
	}, len(aggregates))

	var stats model.Statistics
	for i, a := range aggregates {
		if errs[i] != nil {
			s.logger.Warn("statistic unavailable", "name", a.name, "err", errs[i])
			continue
		}
		rows := rowsets[i]
		switch a.name {
		case "total_memories":
			stats.TotalMemories = firstCount(rows)
		case "total_relationships":
			stats.TotalRelationships = firstCount(rows)
		case "avg_importance":
			stats.AvgImportance = firstValue(rows)
		case "avg_confidence":
			stats.AvgConfidence = firstValue(rows)
		case "memories_by_type":
			byType := make(map[string]int64, len(rows))
			for _, row := range rows {
				name, ok := row["type"].(string)
				if !ok {
					continue
				}
				if count, ok := intValue(row["count"]); ok {
					byType[name] = count
				}
			}
			stats.MemoriesByType = byType
		}
	}
	return stats, nil
}

// Close releases the underlying execution capability.
func (s *MemoryStore) Close(ctx context.Context) error {
	return s.exec.Close(ctx)
}

func relationshipProps(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case []any:
		if len(t) > 0 {
			if props, ok := t[0].(map[string]any); ok {
				return props
			}
		}
	}
	return nil
}

func firstCount(rows []map[string]any) *int64 {
	if len(rows) == 0 {
		return nil
	}
	if count, ok := intValue(rows[0]["count"]); ok {
		return &count
	}
	return nil
}

func firstValue(rows []map[string]any) *float64 {
	if len(rows) == 0 {
		return nil
	}
	if value, ok := floatValue(rows[0]["value"]); ok {
		return &value
	}
	return nil
}

func intValue(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	}
	return 0, false
}

func floatValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	}
	return 0, false
}
