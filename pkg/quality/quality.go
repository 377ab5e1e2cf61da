// Package quality derives the coverage/readiness score for a discovery
// session. Compute is a pure function of the committed turns and extracted
// insights; the orchestrator recomputes it on every turn-count change rather
// than patching a cached value.
package quality

import (
	"strings"

	"github.com/prodkit/ideate/pkg/chat"
)

// ReadyScoreThreshold is the minimum score before a session is considered
// ready for PRD drafting.
const ReadyScoreThreshold = 0.7

// MinAssistantTurns is the minimum number of assistant replies before
// readiness is considered at all.
const MinAssistantTurns = 2

var topicKeywords = map[chat.TopicCategory][]string{
	chat.TopicProblem:     {"problem", "pain", "issue", "struggle", "frustrat"},
	chat.TopicUsers:       {"user", "customer", "audience", "persona", "stakeholder"},
	chat.TopicFeatures:    {"feature", "capability", "functionality", "should be able", "requirement"},
	chat.TopicTechnical:   {"api", "database", "architecture", "integration", "infrastructure", "stack"},
	chat.TopicRisks:       {"risk", "concern", "threat", "failure", "worst case"},
	chat.TopicConstraints: {"constraint", "budget", "deadline", "limitation", "compliance"},
	chat.TopicSuccess:     {"success", "metric", "kpi", "goal", "measure"},
}

var insightTopics = map[chat.InsightType]chat.TopicCategory{
	chat.InsightRequirement: chat.TopicFeatures,
	chat.InsightConstraint:  chat.TopicConstraints,
	chat.InsightRisk:        chat.TopicRisks,
}

// Compute builds QualityMetrics from scratch. It is deterministic for
// identical inputs and degrades gracefully to turn-only coverage when no
// insights exist.
func Compute(turns []chat.Turn, insights []chat.Insight) chat.QualityMetrics {
	coverage := map[chat.TopicCategory]bool{}
	for _, topic := range chat.TopicCategories() {
		coverage[topic] = false
	}

	var corpus strings.Builder
	assistantTurns := 0
	for _, t := range turns {
		corpus.WriteString(strings.ToLower(t.Content))
		corpus.WriteByte('\n')
		if t.Role == chat.RoleAssistant {
			assistantTurns++
		}
	}
	text := corpus.String()
	for topic, keywords := range topicKeywords {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				coverage[topic] = true
				break
			}
		}
	}
	for _, in := range insights {
		if topic, ok := insightTopics[in.Type]; ok {
			coverage[topic] = true
		}
	}

	covered := 0
	for _, ok := range coverage {
		if ok {
			covered++
		}
	}
	score := float64(covered) / float64(len(coverage))
	return chat.QualityMetrics{
		Coverage:    coverage,
		Score:       score,
		ReadyForPRD: score >= ReadyScoreThreshold && assistantTurns >= MinAssistantTurns,
	}
}
