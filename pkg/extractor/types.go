package extractor

// FactType classifies an extracted fact. The set is closed: the model is
// prompted with exactly these values, and anything else coerces to
// FactOther. The orchestrator mirrors this enum in its own data model and
// converts at the boundary, the same way it mirrors the storage record.
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

// FactTypes returns the closed set in prompt order.
func FactTypes() []FactType {
	return []FactType{
		FactIdentity, FactLocation, FactProfession, FactPreference,
		FactProject, FactTechnical, FactTimeline, FactRelationship,
		FactSkill, FactGoal, FactEmotion, FactExperience, FactOther,
	}
}

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
