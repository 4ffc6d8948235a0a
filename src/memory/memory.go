// Package memory re-exports the memory graph's public API from its
// subpackages, so callers can depend on a single import path.
package memory

import (
	"github.com/Protocol-Lattice/recall/src/memory/model"
	"github.com/Protocol-Lattice/recall/src/memory/query"
	"github.com/Protocol-Lattice/recall/src/memory/store"
)

// Type aliases preserving the public API under one package.
type (
	Memory                 = model.Memory
	MemoryContext          = model.MemoryContext
	MemoryType             = model.MemoryType
	Relationship           = model.Relationship
	RelationshipProperties = model.RelationshipProperties
	RelationshipType       = model.RelationshipType
	SearchQuery            = model.SearchQuery
	MemoryGraph            = model.MemoryGraph
	Statistics             = model.Statistics
	ValidationError        = model.ValidationError

	Config        = store.Config
	Connection    = store.Connection
	QueryExecutor = store.QueryExecutor
	MemoryStore   = store.MemoryStore
	RelatedMemory = store.RelatedMemory
	Option        = store.Option
)

const (
	MemoryTask        = model.MemoryTask
	MemoryCodePattern = model.MemoryCodePattern
	MemoryProblem     = model.MemoryProblem
	MemorySolution    = model.MemorySolution
	MemoryProject     = model.MemoryProject
	MemoryTechnology  = model.MemoryTechnology
	MemoryError       = model.MemoryError
	MemoryFix         = model.MemoryFix
	MemoryCommand     = model.MemoryCommand
	MemoryFileContext = model.MemoryFileContext
	MemoryWorkflow    = model.MemoryWorkflow
	MemoryGeneral     = model.MemoryGeneral

	DefaultImportance  = model.DefaultImportance
	DefaultConfidence  = model.DefaultConfidence
	DefaultStrength    = model.DefaultStrength
	DefaultSearchLimit = model.DefaultSearchLimit
	MaxSearchLimit     = model.MaxSearchLimit
	DefaultMaxDepth    = query.DefaultMaxDepth
)

var (
	ErrMissingCredentials = store.ErrMissingCredentials
	ErrConnection         = store.ErrConnection
	ErrPoolExhausted      = store.ErrPoolExhausted
	ErrStorage            = store.ErrStorage

	NewMemory             = model.NewMemory
	NewRelationship       = model.NewRelationship
	ParseMemoryType       = model.ParseMemoryType
	ParseRelationshipType = model.ParseRelationshipType
	MemoryTypes           = model.MemoryTypes
	NormalizeTags         = model.NormalizeTags

	DefaultConfig  = store.DefaultConfig
	ConfigFromEnv  = store.ConfigFromEnv
	Open           = store.Open
	NewMemoryStore = store.NewMemoryStore
	WithLogger     = store.WithLogger
	WithCache      = store.WithCache
)
