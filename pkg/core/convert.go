package core

import "github.com/memgrid/memgrid-go/pkg/storage"

// toStorageMemory converts a core.Memory to a storage.Memory.
func toStorageMemory(m *Memory) *storage.Memory {
	if m == nil {
		return nil
	}
	return &storage.Memory{
		ID:           m.ID,
		OwnerID:      m.OwnerID,
		Tier:         string(m.Tier),
		Content:      m.Content,
		Embedding:    m.Embedding,
		CategoryPath: m.CategoryPath,
		FactType:     string(m.FactType),
		Confidence:   m.Confidence,
		RelatedIDs:   m.RelatedIDs,
		CreatedAt:    m.CreatedAt,
		AccessedAt:   m.AccessedAt,
		AccessCount:  m.AccessCount,
		Score:        m.Score,
	}
}

// fromStorageMemory converts a storage.Memory to a core.Memory.
func fromStorageMemory(m *storage.Memory) *Memory {
	if m == nil {
		return nil
	}
	return &Memory{
		ID:           m.ID,
		OwnerID:      m.OwnerID,
		Tier:         Tier(m.Tier),
		Content:      m.Content,
		Embedding:    m.Embedding,
		CategoryPath: m.CategoryPath,
		FactType:     FactType(m.FactType),
		Confidence:   m.Confidence,
		RelatedIDs:   m.RelatedIDs,
		CreatedAt:    m.CreatedAt,
		AccessedAt:   m.AccessedAt,
		AccessCount:  m.AccessCount,
		Score:        m.Score,
	}
}
