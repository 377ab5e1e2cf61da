package chat

// TopicCategory is one of the fixed discovery coverage areas.
type TopicCategory string

const (
	TopicProblem     TopicCategory = "problem"
	TopicUsers       TopicCategory = "users"
	TopicFeatures    TopicCategory = "features"
	TopicTechnical   TopicCategory = "technical"
	TopicRisks       TopicCategory = "risks"
	TopicConstraints TopicCategory = "constraints"
	TopicSuccess     TopicCategory = "success"
)

// TopicCategories lists all coverage areas in a stable order.
func TopicCategories() []TopicCategory {
	return []TopicCategory{
		TopicProblem, TopicUsers, TopicFeatures, TopicTechnical,
		TopicRisks, TopicConstraints, TopicSuccess,
	}
}

// QualityMetrics is the derived coverage/readiness score for a session. It is
// a pure function of the committed turns and extracted insights and is
// recomputed from scratch on every turn-count change.
type QualityMetrics struct {
	Coverage    map[TopicCategory]bool `json:"coverage"`
	Score       float64                `json:"score"`
	ReadyForPRD bool                   `json:"ready_for_prd"`
}
