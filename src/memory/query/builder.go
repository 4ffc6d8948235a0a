// Package query shapes parameterized Cypher for the memory graph.
//
// Literal values always travel as bound parameters. The only text ever
// interpolated into a query is structural: closed enum names and the
// traversal depth bound.
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/Protocol-Lattice/recall/src/memory/model"
)

// DefaultMaxDepth bounds traversals when the caller does not say otherwise.
const DefaultMaxDepth = 2

// relatedResultLimit caps traversal results, matching the stored query shape
// other tooling depends on.
const relatedResultLimit = 20

// Search builds the filtered memory search query. Every populated filter
// contributes one conjunctive condition; no filters degenerates to a
// match-everything predicate. Results order by importance, then recency.
func Search(q model.SearchQuery) (string, map[string]any) {
	var conditions []string
	params := map[string]any{}

	if q.Query != "" {
		conditions = append(conditions, "(m.title CONTAINS $query OR m.content CONTAINS $query OR m.summary CONTAINS $query)")
		params["query"] = q.Query
	}
	if len(q.MemoryTypes) > 0 {
		types := make([]string, len(q.MemoryTypes))
		for i, t := range q.MemoryTypes {
			types[i] = string(t)
		}
		conditions = append(conditions, "m.type IN $memory_types")
		params["memory_types"] = types
	}
	if len(q.Tags) > 0 {
		conditions = append(conditions, "ANY(tag IN $tags WHERE tag IN m.tags)")
		params["tags"] = q.Tags
	}
	if q.ProjectPath != "" {
		conditions = append(conditions, "m.context_project_path = $project_path")
		params["project_path"] = q.ProjectPath
	}
	if q.MinImportance != nil {
		conditions = append(conditions, "m.importance >= $min_importance")
		params["min_importance"] = *q.MinImportance
	}
	if q.MinConfidence != nil {
		conditions = append(conditions, "m.confidence >= $min_confidence")
		params["min_confidence"] = *q.MinConfidence
	}
	if q.CreatedAfter != nil {
		conditions = append(conditions, "datetime(m.created_at) >= datetime($created_after)")
		params["created_after"] = q.CreatedAfter.UTC().Format(time.RFC3339Nano)
	}
	if q.CreatedBefore != nil {
		conditions = append(conditions, "datetime(m.created_at) <= datetime($created_before)")
		params["created_before"] = q.CreatedBefore.UTC().Format(time.RFC3339Nano)
	}

	where := "true"
	if len(conditions) > 0 {
		where = strings.Join(conditions, " AND ")
	}

	cypher := fmt.Sprintf(`MATCH (m:Memory)
WHERE %s
RETURN m
ORDER BY m.importance DESC, m.created_at DESC
LIMIT $limit`, where)

	params["limit"] = q.Limit
	return cypher, params
}

// Related builds the bounded-depth traversal from a start memory. The
// relationship filter joins closed enum names as an alternation; depth is a
// bounded integer. Both are structural, everything else is a parameter.
func Related(memoryID string, types []model.RelationshipType, maxDepth int) (string, map[string]any) {
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}
	relFilter := ""
	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		relFilter = ":" + strings.Join(names, "|")
	}

	cypher := fmt.Sprintf(`MATCH (start:Memory {id: $memory_id})
MATCH (start)-[r%s*1..%d]-(related:Memory)
WHERE related.id <> start.id
RETURN DISTINCT related, r[0] AS relationship
ORDER BY r[0].strength DESC, related.importance DESC
LIMIT %d`, relFilter, maxDepth, relatedResultLimit)

	return cypher, map[string]any{"memory_id": memoryID}
}

// CreateRelationship builds the edge-creation query for the given type. The
// type name is the edge's structural label, so it must be interpolated; it
// comes from the closed enumeration, never from caller text. Both endpoint
// matches precede the create: if either is missing the query yields no rows.
func CreateRelationship(t model.RelationshipType) string {
	return fmt.Sprintf(`MATCH (from:Memory {id: $from_id})
MATCH (to:Memory {id: $to_id})
CREATE (from)-[r:%s $properties]->(to)
RETURN r.id AS id`, t)
}

// Constraints returns the uniqueness constraints the persisted schema
// guarantees. Part of the schema contract other tooling depends on.
func Constraints() []string {
	return []string{
		"CREATE CONSTRAINT memory_id_unique IF NOT EXISTS FOR (m:Memory) REQUIRE m.id IS UNIQUE",
		"CREATE CONSTRAINT relationship_id_unique IF NOT EXISTS FOR (r:RELATIONSHIP) REQUIRE r.id IS UNIQUE",
	}
}

// Indexes returns the index coverage for search and traversal paths,
// including the full-text index over title, content, and summary.
func Indexes() []string {
	return []string{
		"CREATE INDEX memory_type_index IF NOT EXISTS FOR (m:Memory) ON (m.type)",
		"CREATE INDEX memory_created_at_index IF NOT EXISTS FOR (m:Memory) ON (m.created_at)",
		"CREATE INDEX memory_tags_index IF NOT EXISTS FOR (m:Memory) ON (m.tags)",
		"CREATE FULLTEXT INDEX memory_content_index IF NOT EXISTS FOR (m:Memory) ON EACH [m.title, m.content, m.summary]",
		"CREATE INDEX memory_importance_index IF NOT EXISTS FOR (m:Memory) ON (m.importance)",
		"CREATE INDEX memory_confidence_index IF NOT EXISTS FOR (m:Memory) ON (m.confidence)",
		"CREATE INDEX memory_project_path_index IF NOT EXISTS FOR (m:Memory) ON (m.context_project_path)",
	}
}
