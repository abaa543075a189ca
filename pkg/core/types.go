// Package core provides the MemGrid client and memory orchestration.
package core

import "time"

// Memory is the persisted unit of the engine.
//
// A memory holds one extracted fact together with its vector embedding,
// hierarchical category, tier-based retention class, and weak references to
// related memories.
//
// Example:
//
//	memory := &core.Memory{
//	    ID:           1234567890,
//	    OwnerID:      "owner_001",
//	    Tier:         core.TierPersonal,
//	    Content:      "Works as a nurse in Boston",
//	    FactType:     core.FactProfession,
//	    CategoryPath: []string{"professional", "healthcare"},
//	    Confidence:   0.9,
//	}
type Memory struct {
	// ID is the unique identifier of the memory.
	ID int64 `json:"id"`

	// OwnerID is an opaque reference to the owning principal. The engine
	// never interprets it beyond scoping queries.
	OwnerID string `json:"owner_id"`

	// Tier is the retention/scope class of the memory.
	Tier Tier `json:"tier"`

	// Content is the self-contained fact text.
	Content string `json:"content"`

	// Embedding is the vector embedding for similarity search.
	// Nil when embedding generation failed; such memories remain reachable
	// through the keyword, categorical, temporal, and graph strategies.
	Embedding []float64 `json:"embedding,omitempty"`

	// CategoryPath is the ordered 1-4 level hierarchical category.
	CategoryPath []string `json:"category_path"`

	// FactType classifies the fact into the closed type set.
	FactType FactType `json:"fact_type"`

	// Confidence is the extraction confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// RelatedIDs references other memories of the same owner.
	// Weak references: ids only, no ownership implied.
	RelatedIDs []int64 `json:"related_ids,omitempty"`

	// CreatedAt is when the memory was created.
	CreatedAt time.Time `json:"created_at"`

	// AccessedAt is when the memory was last returned by a search.
	AccessedAt time.Time `json:"accessed_at"`

	// AccessCount is the number of times the memory was returned by a search.
	AccessCount int64 `json:"access_count"`

	// Score is the relevance score from search operations. Transient.
	Score float64 `json:"score,omitempty"`
}

// Tier defines the retention/scope class of a memory.
//
// Tiers control retention: task memories expire after the configured TTL,
// personal and project memories are never auto-pruned.
type Tier string

const (
	// TierPersonal holds durable facts about the owner. Never auto-pruned.
	TierPersonal Tier = "personal"

	// TierProject holds project-scoped facts. Never auto-pruned.
	TierProject Tier = "project"

	// TierTask holds short-lived working facts, eligible for deletion once
	// older than the retention TTL.
	TierTask Tier = "task"
)

// Valid reports whether the tier is one of the defined classes.
func (t Tier) Valid() bool {
	switch t {
	case TierPersonal, TierProject, TierTask:
		return true
	}
	return false
}

// Tiers lists all defined tiers.
func Tiers() []Tier {
	return []Tier{TierPersonal, TierProject, TierTask}
}

// FactType classifies an extracted fact. The set is closed: extraction
// coerces anything outside it to FactOther.
type FactType string

const (
	FactIdentity     FactType = "identity"
	FactLocation     FactType = "location"
	FactProfession   FactType = "profession"
	FactPreference   FactType = "preference"
	FactProject      FactType = "project"
	FactTechnical    FactType = "technical"
	FactTimeline     FactType = "timeline"
	FactRelationship FactType = "relationship"
	FactSkill        FactType = "skill"
	FactGoal         FactType = "goal"
	FactEmotion      FactType = "emotion"
	FactExperience   FactType = "experience"
	FactOther        FactType = "other"
)

// Valid reports whether the fact type belongs to the closed set.
func (f FactType) Valid() bool {
	switch f {
	case FactIdentity, FactLocation, FactProfession, FactPreference,
		FactProject, FactTechnical, FactTimeline, FactRelationship,
		FactSkill, FactGoal, FactEmotion, FactExperience, FactOther:
		return true
	}
	return false
}

// MaxCategoryDepth is the maximum number of category path levels.
const MaxCategoryDepth = 4

// StatsReport summarizes the stored memories of an owner (or of all owners
// when OwnerID is empty).
type StatsReport struct {
	// OwnerID is the owner the report is scoped to; empty means all owners.
	OwnerID string `json:"owner_id,omitempty"`

	// Total is the number of stored memories.
	Total int64 `json:"total"`

	// ByTier counts memories per tier.
	ByTier map[Tier]int64 `json:"by_tier"`

	// ByCategory counts memories per top-level category.
	ByCategory map[string]int64 `json:"by_category"`

	// WithEmbedding is the number of memories that carry a vector.
	WithEmbedding int64 `json:"with_embedding"`

	// EmbeddingCoverage is WithEmbedding/Total, 0 when the store is empty.
	EmbeddingCoverage float64 `json:"embedding_coverage"`
}
