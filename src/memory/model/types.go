package model

import "fmt"

// MemoryType classifies the kind of knowledge a memory captures.
type MemoryType string

const (
	MemoryTask        MemoryType = "task"
	MemoryCodePattern MemoryType = "code_pattern"
	MemoryProblem     MemoryType = "problem"
	MemorySolution    MemoryType = "solution"
	MemoryProject     MemoryType = "project"
	MemoryTechnology  MemoryType = "technology"
	MemoryError       MemoryType = "error"
	MemoryFix         MemoryType = "fix"
	MemoryCommand     MemoryType = "command"
	MemoryFileContext MemoryType = "file_context"
	MemoryWorkflow    MemoryType = "workflow"
	MemoryGeneral     MemoryType = "general"
)

var validMemoryTypes = map[MemoryType]struct{}{
	MemoryTask:        {},
	MemoryCodePattern: {},
	MemoryProblem:     {},
	MemorySolution:    {},
	MemoryProject:     {},
	MemoryTechnology:  {},
	MemoryError:       {},
	MemoryFix:         {},
	MemoryCommand:     {},
	MemoryFileContext: {},
	MemoryWorkflow:    {},
	MemoryGeneral:     {},
}

// Valid reports whether the memory type belongs to the closed enumeration.
func (t MemoryType) Valid() bool {
	_, ok := validMemoryTypes[t]
	return ok
}

// ParseMemoryType converts an external string into a MemoryType.
func ParseMemoryType(s string) (MemoryType, error) {
	t := MemoryType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown memory type %q", s)
	}
	return t, nil
}

// MemoryTypes lists every valid memory type in declaration order.
func MemoryTypes() []MemoryType {
	return []MemoryType{
		MemoryTask, MemoryCodePattern, MemoryProblem, MemorySolution,
		MemoryProject, MemoryTechnology, MemoryError, MemoryFix,
		MemoryCommand, MemoryFileContext, MemoryWorkflow, MemoryGeneral,
	}
}

// RelationshipType enumerates the directed edge kinds between memories.
// The external representation equals the canonical name and doubles as the
// edge's structural label in the graph.
type RelationshipType string

const (
	// Causal
	RelCauses   RelationshipType = "CAUSES"
	RelTriggers RelationshipType = "TRIGGERS"
	RelLeadsTo  RelationshipType = "LEADS_TO"
	RelPrevents RelationshipType = "PREVENTS"
	RelBreaks   RelationshipType = "BREAKS"

	// Solution
	RelSolves        RelationshipType = "SOLVES"
	RelAddresses     RelationshipType = "ADDRESSES"
	RelAlternativeTo RelationshipType = "ALTERNATIVE_TO"
	RelImproves      RelationshipType = "IMPROVES"
	RelReplaces      RelationshipType = "REPLACES"

	// Context
	RelOccursIn  RelationshipType = "OCCURS_IN"
	RelAppliesTo RelationshipType = "APPLIES_TO"
	RelWorksWith RelationshipType = "WORKS_WITH"
	RelRequires  RelationshipType = "REQUIRES"
	RelUsedIn    RelationshipType = "USED_IN"

	// Learning
	RelBuildsOn    RelationshipType = "BUILDS_ON"
	RelContradicts RelationshipType = "CONTRADICTS"
	RelConfirms    RelationshipType = "CONFIRMS"
	RelGeneralizes RelationshipType = "GENERALIZES"
	RelSpecializes RelationshipType = "SPECIALIZES"

	// Similarity
	RelSimilarTo  RelationshipType = "SIMILAR_TO"
	RelVariantOf  RelationshipType = "VARIANT_OF"
	RelRelatedTo  RelationshipType = "RELATED_TO"
	RelAnalogyTo  RelationshipType = "ANALOGY_TO"
	RelOppositeOf RelationshipType = "OPPOSITE_OF"

	// Workflow
	RelFollows    RelationshipType = "FOLLOWS"
	RelDependsOn  RelationshipType = "DEPENDS_ON"
	RelEnables    RelationshipType = "ENABLES"
	RelBlocks     RelationshipType = "BLOCKS"
	RelParallelTo RelationshipType = "PARALLEL_TO"

	// Quality
	RelEffectiveFor   RelationshipType = "EFFECTIVE_FOR"
	RelIneffectiveFor RelationshipType = "INEFFECTIVE_FOR"
	RelPreferredOver  RelationshipType = "PREFERRED_OVER"
	RelDeprecatedBy   RelationshipType = "DEPRECATED_BY"
	RelValidatedBy    RelationshipType = "VALIDATED_BY"
)

var validRelationshipTypes = map[RelationshipType]struct{}{
	RelCauses: {}, RelTriggers: {}, RelLeadsTo: {}, RelPrevents: {}, RelBreaks: {},
	RelSolves: {}, RelAddresses: {}, RelAlternativeTo: {}, RelImproves: {}, RelReplaces: {},
	RelOccursIn: {}, RelAppliesTo: {}, RelWorksWith: {}, RelRequires: {}, RelUsedIn: {},
	RelBuildsOn: {}, RelContradicts: {}, RelConfirms: {}, RelGeneralizes: {}, RelSpecializes: {},
	RelSimilarTo: {}, RelVariantOf: {}, RelRelatedTo: {}, RelAnalogyTo: {}, RelOppositeOf: {},
	RelFollows: {}, RelDependsOn: {}, RelEnables: {}, RelBlocks: {}, RelParallelTo: {},
	RelEffectiveFor: {}, RelIneffectiveFor: {}, RelPreferredOver: {}, RelDeprecatedBy: {}, RelValidatedBy: {},
}

// Valid reports whether the relationship type belongs to the closed enumeration.
func (t RelationshipType) Valid() bool {
	_, ok := validRelationshipTypes[t]
	return ok
}

// ParseRelationshipType converts an external string into a RelationshipType.
func ParseRelationshipType(s string) (RelationshipType, error) {
	t := RelationshipType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown relationship type %q", s)
	}
	return t, nil
}
