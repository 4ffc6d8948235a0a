// Package server exposes the memory graph over the Model Context Protocol.
package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Protocol-Lattice/recall/src/memory/store"
)

// New creates a fully configured MCP server with all memory tools registered.
func New(memories *store.MemoryStore) *mcp.Server {
	mt := &MemoryTools{Store: memories}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "recall",
		Version: "0.1.0",
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "store_memory",
		Description: "Store a memory with optional development context, tags, and scores",
	}, mt.StoreMemory)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_memory",
		Description: "Retrieve a single memory by its id",
	}, mt.GetMemory)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_memories",
		Description: "Search memories with conjunctive filters (text, types, tags, project, thresholds, date range)",
	}, mt.SearchMemories)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_memory",
		Description: "Update fields of an existing memory by id",
	}, mt.UpdateMemory)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_memory",
		Description: "Delete a memory and all of its relationships",
	}, mt.DeleteMemory)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create_relationship",
		Description: "Create a typed, directed relationship between two memories",
	}, mt.CreateRelationship)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_related_memories",
		Description: "Traverse relationships from a memory up to a bounded depth",
	}, mt.GetRelatedMemories)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_memory_statistics",
		Description: "Aggregate counts and averages across the memory graph",
	}, mt.GetStatistics)

	return srv
}
