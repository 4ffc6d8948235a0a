package store

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Protocol-Lattice/recall/src/memory/codec"
	"github.com/Protocol-Lattice/recall/src/memory/model"
)

type call struct {
	cypher string
	params map[string]any
}

// fakeExecutor implements QueryExecutor for tests. Handlers dispatch on the
// query text; captured calls are guarded because statistics fans out.
type fakeExecutor struct {
	mu     sync.Mutex
	reads  []call
	writes []call
	execs  []call
	closed bool

	readFn  func(cypher string, params map[string]any) ([]map[string]any, error)
	writeFn func(cypher string, params map[string]any) ([]map[string]any, error)
	execFn  func(cypher string, params map[string]any) ([]map[string]any, error)
}

func (f *fakeExecutor) ReadQuery(_ context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	f.mu.Lock()
	f.reads = append(f.reads, call{cypher, params})
	f.mu.Unlock()
	if f.readFn == nil {
		return nil, nil
	}
	return f.readFn(cypher, params)
}

func (f *fakeExecutor) WriteQuery(_ context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	f.mu.Lock()
	f.writes = append(f.writes, call{cypher, params})
	f.mu.Unlock()
	if f.writeFn == nil {
		return nil, nil
	}
	return f.writeFn(cypher, params)
}

func (f *fakeExecutor) Execute(_ context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	f.mu.Lock()
	f.execs = append(f.execs, call{cypher, params})
	f.mu.Unlock()
	if f.execFn == nil {
		return nil, nil
	}
	return f.execFn(cypher, params)
}

func (f *fakeExecutor) Close(context.Context) error {
	f.closed = true
	return nil
}

func (f *fakeExecutor) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reads)
}

var testTime = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestStore(exec *fakeExecutor, opts ...Option) *MemoryStore {
	opts = append(opts, WithLogger(log.New(io.Discard)))
	s := NewMemoryStore(exec, opts...)
	s.nowFn = func() time.Time { return testTime }
	s.newID = func() string { return "generated-id" }
	return s
}

func encodedMemory(t *testing.T, id, title string, importance float64) map[string]any {
	t.Helper()
	m, err := model.NewMemory(model.MemoryProblem, title, "content for "+title)
	if err != nil {
		t.Fatalf("NewMemory returned error: %v", err)
	}
	m.ID = id
	m.Importance = importance
	return codec.EncodeMemory(m)
}

func TestStoreMemoryAssignsIDAndStamps(t *testing.T) {
	exec := &fakeExecutor{
		writeFn: func(_ string, params map[string]any) ([]map[string]any, error) {
			return []map[string]any{{"id": params["id"]}}, nil
		},
	}
	s := newTestStore(exec)

	m, err := model.NewMemory(model.MemoryProblem, "NPE on null user", "trace ...")
	if err != nil {
		t.Fatalf("NewMemory returned error: %v", err)
	}
	m.CreatedAt, m.UpdatedAt = time.Time{}, time.Time{}

	id, err := s.StoreMemory(context.Background(), m)
	if err != nil {
		t.Fatalf("StoreMemory returned error: %v", err)
	}
	if id != "generated-id" {
		t.Fatalf("expected generated id, got %q", id)
	}
	if !m.UpdatedAt.Equal(testTime) || !m.CreatedAt.Equal(testTime) {
		t.Fatalf("expected both timestamps stamped to %v, got created=%v updated=%v", testTime, m.CreatedAt, m.UpdatedAt)
	}
	if len(exec.writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(exec.writes))
	}
	props, ok := exec.writes[0].params["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected encoded properties in parameters")
	}
	if _, present := props["summary"]; present {
		t.Fatal("unset summary must not be encoded")
	}
}

func TestStoreMemoryStampsContextTimestamp(t *testing.T) {
	exec := &fakeExecutor{
		writeFn: func(_ string, params map[string]any) ([]map[string]any, error) {
			return []map[string]any{{"id": params["id"]}}, nil
		},
	}
	s := newTestStore(exec)

	m, err := model.NewMemory(model.MemoryProblem, "title", "content")
	if err != nil {
		t.Fatalf("NewMemory returned error: %v", err)
	}
	m.Context = &model.MemoryContext{ProjectPath: "/repo"}

	if _, err := s.StoreMemory(context.Background(), m); err != nil {
		t.Fatalf("StoreMemory returned error: %v", err)
	}
	if !m.Context.Timestamp.Equal(testTime) {
		t.Fatalf("expected context timestamp stamped to %v, got %v", testTime, m.Context.Timestamp)
	}
	props := exec.writes[0].params["properties"].(map[string]any)
	if props["context_timestamp"] != "2025-06-15T12:00:00Z" {
		t.Fatalf("expected context_timestamp persisted, got %v", props["context_timestamp"])
	}

	// A caller-supplied timestamp survives.
	supplied := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m.Context.Timestamp = supplied
	if _, err := s.StoreMemory(context.Background(), m); err != nil {
		t.Fatalf("StoreMemory returned error: %v", err)
	}
	if !m.Context.Timestamp.Equal(supplied) {
		t.Fatalf("supplied context timestamp must not be overwritten, got %v", m.Context.Timestamp)
	}
}

func TestStoreMemoryKeepsExistingID(t *testing.T) {
	exec := &fakeExecutor{
		writeFn: func(_ string, params map[string]any) ([]map[string]any, error) {
			return []map[string]any{{"id": params["id"]}}, nil
		},
	}
	s := newTestStore(exec)

	m, _ := model.NewMemory(model.MemoryTask, "t", "c")
	m.ID = "existing"
	id, err := s.StoreMemory(context.Background(), m)
	if err != nil {
		t.Fatalf("StoreMemory returned error: %v", err)
	}
	if id != "existing" {
		t.Fatalf("expected existing id preserved, got %q", id)
	}
}

func TestStoreMemoryValidatesBeforeQuerying(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestStore(exec)

	m, _ := model.NewMemory(model.MemoryTask, "t", "c")
	m.Importance = 3.0

	_, err := s.StoreMemory(context.Background(), m)
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(exec.writes) != 0 {
		t.Fatal("no query may be issued for invalid input")
	}
}

func TestStoreMemoryNoRowsIsStorageError(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestStore(exec)

	m, _ := model.NewMemory(model.MemoryTask, "t", "c")
	_, err := s.StoreMemory(context.Background(), m)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestGetMemoryNotFound(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestStore(exec)

	m, err := s.GetMemory(context.Background(), "missing")
	if err != nil || m != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", m, err)
	}
}

func TestGetMemoryDecodesRow(t *testing.T) {
	props := encodedMemory(t, "mem-1", "title", 0.6)
	exec := &fakeExecutor{
		readFn: func(string, map[string]any) ([]map[string]any, error) {
			return []map[string]any{{"m": props}}, nil
		},
	}
	s := newTestStore(exec)

	m, err := s.GetMemory(context.Background(), "mem-1")
	if err != nil {
		t.Fatalf("GetMemory returned error: %v", err)
	}
	if m == nil || m.ID != "mem-1" || m.Importance != 0.6 {
		t.Fatalf("unexpected memory: %+v", m)
	}
}

func TestGetMemoryUndecodableIsNotFound(t *testing.T) {
	exec := &fakeExecutor{
		readFn: func(string, map[string]any) ([]map[string]any, error) {
			return []map[string]any{{"m": map[string]any{"id": "mem-1", "type": "daydream"}}}, nil
		},
	}
	s := newTestStore(exec)

	m, err := s.GetMemory(context.Background(), "mem-1")
	if err != nil || m != nil {
		t.Fatalf("expected (nil, nil) for undecodable record, got (%v, %v)", m, err)
	}
}

func TestGetMemoryReadThroughCache(t *testing.T) {
	props := encodedMemory(t, "mem-1", "title", 0.6)
	exec := &fakeExecutor{
		readFn: func(string, map[string]any) ([]map[string]any, error) {
			return []map[string]any{{"m": props}}, nil
		},
	}
	s := newTestStore(exec, WithCache(8, time.Minute))

	if _, err := s.GetMemory(context.Background(), "mem-1"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if _, err := s.GetMemory(context.Background(), "mem-1"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if exec.readCount() != 1 {
		t.Fatalf("expected second lookup served from cache, got %d reads", exec.readCount())
	}

	// A write invalidates the entry.
	exec.writeFn = func(_ string, params map[string]any) ([]map[string]any, error) {
		return []map[string]any{{"id": params["id"]}}, nil
	}
	m, _ := model.NewMemory(model.MemoryProblem, "title", "content")
	m.ID = "mem-1"
	if _, err := s.StoreMemory(context.Background(), m); err != nil {
		t.Fatalf("StoreMemory returned error: %v", err)
	}
	if _, err := s.GetMemory(context.Background(), "mem-1"); err != nil {
		t.Fatalf("third get: %v", err)
	}
	if exec.readCount() != 2 {
		t.Fatalf("expected invalidated entry to be re-read, got %d reads", exec.readCount())
	}
}

func TestSearchMemoriesSkipsUndecodableRows(t *testing.T) {
	good := encodedMemory(t, "mem-1", "good", 0.9)
	exec := &fakeExecutor{
		readFn: func(string, map[string]any) ([]map[string]any, error) {
			return []map[string]any{
				{"m": good},
				{"m": map[string]any{"id": "broken"}},
				{"m": "not even a map"},
			}, nil
		},
	}
	s := newTestStore(exec)

	results, err := s.SearchMemories(context.Background(), model.SearchQuery{})
	if err != nil {
		t.Fatalf("SearchMemories returned error: %v", err)
	}
	if len(results) != 1 || results[0].ID != "mem-1" {
		t.Fatalf("expected only the decodable row, got %+v", results)
	}
}

func TestSearchMemoriesValidatesQuery(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestStore(exec)

	_, err := s.SearchMemories(context.Background(), model.SearchQuery{Limit: 500})
	var verr *model.ValidationError
	if !errors.As(err, &verr) || verr.Field != "limit" {
		t.Fatalf("expected limit validation error, got %v", err)
	}
	if exec.readCount() != 0 {
		t.Fatal("no query may be issued for an invalid search")
	}
}

func TestUpdateMemoryRequiresID(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestStore(exec)

	m, _ := model.NewMemory(model.MemoryTask, "t", "c")
	_, err := s.UpdateMemory(context.Background(), m)
	var verr *model.ValidationError
	if !errors.As(err, &verr) || verr.Field != "id" {
		t.Fatalf("expected id validation error, got %v", err)
	}
}

func TestUpdateMemoryReportsMatch(t *testing.T) {
	exec := &fakeExecutor{
		writeFn: func(_ string, params map[string]any) ([]map[string]any, error) {
			if params["id"] == "known" {
				return []map[string]any{{"id": "known"}}, nil
			}
			return nil, nil
		},
	}
	s := newTestStore(exec)

	m, _ := model.NewMemory(model.MemoryTask, "t", "c")
	m.ID = "known"
	matched, err := s.UpdateMemory(context.Background(), m)
	if err != nil || !matched {
		t.Fatalf("expected match, got matched=%v err=%v", matched, err)
	}
	if !m.UpdatedAt.Equal(testTime) {
		t.Fatalf("expected updated_at refreshed, got %v", m.UpdatedAt)
	}

	m.ID = "unknown"
	matched, err = s.UpdateMemory(context.Background(), m)
	if err != nil || matched {
		t.Fatalf("expected no match, got matched=%v err=%v", matched, err)
	}
}

func TestDeleteMemory(t *testing.T) {
	exec := &fakeExecutor{
		writeFn: func(cypher string, _ map[string]any) ([]map[string]any, error) {
			if !strings.Contains(cypher, "DETACH DELETE") {
				t.Fatalf("expected detach delete semantics, got %q", cypher)
			}
			return []map[string]any{{"deleted_count": int64(1)}}, nil
		},
	}
	s := newTestStore(exec)

	deleted, err := s.DeleteMemory(context.Background(), "mem-1")
	if err != nil || !deleted {
		t.Fatalf("expected deletion, got deleted=%v err=%v", deleted, err)
	}

	exec.writeFn = func(string, map[string]any) ([]map[string]any, error) {
		return []map[string]any{{"deleted_count": int64(0)}}, nil
	}
	deleted, err = s.DeleteMemory(context.Background(), "mem-1")
	if err != nil || deleted {
		t.Fatalf("expected no deletion, got deleted=%v err=%v", deleted, err)
	}
}

func TestCreateRelationshipMissingEndpointIsStorageError(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestStore(exec)

	_, err := s.CreateRelationship(context.Background(), "a", "missing", model.RelSolves, nil)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage for dangling endpoint, got %v", err)
	}
}

func TestCreateRelationshipEncodesProperties(t *testing.T) {
	exec := &fakeExecutor{
		writeFn: func(cypher string, params map[string]any) ([]map[string]any, error) {
			if !strings.Contains(cypher, "[r:SOLVES $properties]") {
				t.Fatalf("expected structural type label, got %q", cypher)
			}
			props := params["properties"].(map[string]any)
			return []map[string]any{{"id": props["id"]}}, nil
		},
	}
	s := newTestStore(exec)

	props := model.DefaultRelationshipProperties()
	props.Strength = 0.9
	id, err := s.CreateRelationship(context.Background(), "a", "b", model.RelSolves, &props)
	if err != nil {
		t.Fatalf("CreateRelationship returned error: %v", err)
	}
	if id != "generated-id" {
		t.Fatalf("expected assigned id, got %q", id)
	}
	sent := exec.writes[0].params["properties"].(map[string]any)
	if sent["strength"] != 0.9 {
		t.Fatalf("expected strength forwarded, got %v", sent["strength"])
	}
}

func TestCreateRelationshipDefaultsUseStoreClock(t *testing.T) {
	exec := &fakeExecutor{
		writeFn: func(_ string, params map[string]any) ([]map[string]any, error) {
			props := params["properties"].(map[string]any)
			return []map[string]any{{"id": props["id"]}}, nil
		},
	}
	s := newTestStore(exec)

	if _, err := s.CreateRelationship(context.Background(), "a", "b", model.RelSolves, nil); err != nil {
		t.Fatalf("CreateRelationship returned error: %v", err)
	}
	sent := exec.writes[0].params["properties"].(map[string]any)
	if sent["created_at"] != "2025-06-15T12:00:00Z" || sent["last_validated"] != "2025-06-15T12:00:00Z" {
		t.Fatalf("expected edge timestamps from the store clock, got created_at=%v last_validated=%v",
			sent["created_at"], sent["last_validated"])
	}
}

func TestCreateRelationshipValidatesInput(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestStore(exec)

	_, err := s.CreateRelationship(context.Background(), " ", "b", model.RelSolves, nil)
	var verr *model.ValidationError
	if !errors.As(err, &verr) || verr.Field != "from_memory_id" {
		t.Fatalf("expected endpoint validation error, got %v", err)
	}
	if len(exec.writes) != 0 {
		t.Fatal("no query may be issued for invalid input")
	}
}

func TestGetRelatedMemories(t *testing.T) {
	related := encodedMemory(t, "mem-b", "neighbor", 0.7)
	exec := &fakeExecutor{
		readFn: func(cypher string, params map[string]any) ([]map[string]any, error) {
			if !strings.Contains(cypher, "*1..1") {
				t.Fatalf("expected depth bound 1, got %q", cypher)
			}
			if params["memory_id"] != "mem-a" {
				t.Fatalf("expected bound start id, got %v", params["memory_id"])
			}
			return []map[string]any{
				{
					"related": related,
					"relationship": []any{
						map[string]any{"type": "SOLVES", "strength": 0.9, "confidence": 0.8},
					},
				},
			}, nil
		},
	}
	s := newTestStore(exec)

	pairs, err := s.GetRelatedMemories(context.Background(), "mem-a", nil, 1)
	if err != nil {
		t.Fatalf("GetRelatedMemories returned error: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected exactly one pair, got %d", len(pairs))
	}
	pair := pairs[0]
	if pair.Memory.ID != "mem-b" {
		t.Fatalf("unexpected related memory: %+v", pair.Memory)
	}
	if pair.Relationship.Type != model.RelSolves || pair.Relationship.Properties.Strength != 0.9 {
		t.Fatalf("unexpected relationship: %+v", pair.Relationship)
	}
	if pair.Relationship.FromMemoryID != "mem-a" || pair.Relationship.ToMemoryID != "mem-b" {
		t.Fatalf("unexpected relationship endpoints: %+v", pair.Relationship)
	}
}

func TestGetRelatedMemoriesRejectsUnknownType(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestStore(exec)

	_, err := s.GetRelatedMemories(context.Background(), "mem-a", []model.RelationshipType{"FRIENDS_WITH"}, 2)
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if exec.readCount() != 0 {
		t.Fatal("no query may be issued for an unknown relationship type")
	}
}

func TestStatisticsAggregates(t *testing.T) {
	exec := &fakeExecutor{
		readFn: func(cypher string, _ map[string]any) ([]map[string]any, error) {
			switch {
			case strings.Contains(cypher, "m.type AS type"):
				return []map[string]any{
					{"type": "problem", "count": int64(3)},
					{"type": "fix", "count": int64(2)},
				}, nil
			case strings.Contains(cypher, "()-[r]->()"):
				return []map[string]any{{"count": int64(4)}}, nil
			case strings.Contains(cypher, "AVG(m.importance)"):
				return []map[string]any{{"value": 0.7}}, nil
			case strings.Contains(cypher, "AVG(m.confidence)"):
				return nil, errors.New("aggregate timeout")
			default:
				return []map[string]any{{"count": int64(5)}}, nil
			}
		},
	}
	s := newTestStore(exec)

	stats, err := s.Statistics(context.Background())
	if err != nil {
		t.Fatalf("Statistics returned error: %v", err)
	}
	if stats.TotalMemories == nil || *stats.TotalMemories != 5 {
		t.Fatalf("unexpected total memories: %v", stats.TotalMemories)
	}
	if stats.TotalRelationships == nil || *stats.TotalRelationships != 4 {
		t.Fatalf("unexpected total relationships: %v", stats.TotalRelationships)
	}
	if stats.AvgImportance == nil || *stats.AvgImportance != 0.7 {
		t.Fatalf("unexpected avg importance: %v", stats.AvgImportance)
	}
	if stats.AvgConfidence != nil {
		t.Fatal("failed aggregate must be reported as absent")
	}
	if stats.MemoriesByType["problem"] != 3 || stats.MemoriesByType["fix"] != 2 {
		t.Fatalf("unexpected per-type counts: %v", stats.MemoriesByType)
	}
}

func TestInitializeSchemaSwallowsAlreadyExists(t *testing.T) {
	var failed int
	exec := &fakeExecutor{
		execFn: func(cypher string, _ map[string]any) ([]map[string]any, error) {
			if strings.Contains(cypher, "FULLTEXT") {
				failed++
				return nil, errors.New("An equivalent index already exists")
			}
			if strings.Contains(cypher, "memory_tags_index") {
				failed++
				return nil, errors.New("permission denied")
			}
			return nil, nil
		},
	}
	s := newTestStore(exec)

	if err := s.InitializeSchema(context.Background()); err != nil {
		t.Fatalf("InitializeSchema returned error: %v", err)
	}
	// All nine statements run despite the two failures.
	if len(exec.execs) != 9 {
		t.Fatalf("expected 9 schema statements, got %d", len(exec.execs))
	}
	if failed != 2 {
		t.Fatalf("expected both injected failures to trigger, got %d", failed)
	}
}

func TestSearchGraphExpandsRelationships(t *testing.T) {
	memA := encodedMemory(t, "mem-a", "a", 0.9)
	memB := encodedMemory(t, "mem-b", "b", 0.5)
	exec := &fakeExecutor{
		readFn: func(cypher string, params map[string]any) ([]map[string]any, error) {
			if strings.Contains(cypher, "MATCH (start:Memory") {
				if params["memory_id"] == "mem-a" {
					return []map[string]any{{
						"related":      memB,
						"relationship": map[string]any{"type": "SOLVES", "strength": 0.9, "confidence": 0.8},
					}}, nil
				}
				return []map[string]any{{
					"related":      memA,
					"relationship": map[string]any{"type": "SOLVES", "strength": 0.9, "confidence": 0.8},
				}}, nil
			}
			return []map[string]any{{"m": memA}, {"m": memB}}, nil
		},
	}
	s := newTestStore(exec)

	graph, err := s.SearchGraph(context.Background(), model.SearchQuery{IncludeRelationships: true})
	if err != nil {
		t.Fatalf("SearchGraph returned error: %v", err)
	}
	if len(graph.Memories) != 2 {
		t.Fatalf("expected 2 memories, got %d", len(graph.Memories))
	}
	if len(graph.Relationships) != 2 {
		t.Fatalf("expected deduplicated directed relationships, got %+v", graph.Relationships)
	}
	if graph.MemoryByID("mem-b") == nil {
		t.Fatal("expected lookup by id to work on assembled graph")
	}
}

func TestCloseReleasesExecutor(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestStore(exec)
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !exec.closed {
		t.Fatal("expected executor closed")
	}
}
