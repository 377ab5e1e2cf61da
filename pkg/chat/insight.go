package chat

import (
	"time"

	"github.com/pkg/errors"
)

// InsightType categorizes an extracted fact.
type InsightType string

const (
	InsightRequirement InsightType = "requirement"
	InsightConstraint  InsightType = "constraint"
	InsightRisk        InsightType = "risk"
	InsightAssumption  InsightType = "assumption"
	InsightDecision    InsightType = "decision"
)

func (t InsightType) Valid() bool {
	switch t {
	case InsightRequirement, InsightConstraint, InsightRisk, InsightAssumption, InsightDecision:
		return true
	}
	return false
}

// InsightTypes lists all valid types in a stable order.
func InsightTypes() []InsightType {
	return []InsightType{InsightRequirement, InsightConstraint, InsightRisk, InsightAssumption, InsightDecision}
}

// Insight is an atomic extracted fact about the conversation. Insights are
// never mutated in place; re-analysis produces new insights.
type Insight struct {
	ID            string      `json:"id"`
	SessionID     string      `json:"session_id"`
	Type          InsightType `json:"type"`
	Text          string      `json:"text"`
	Confidence    *float64    `json:"confidence,omitempty"`
	SourceTurnIDs []string    `json:"source_turn_ids,omitempty"`
	AppliedToPRD  bool        `json:"applied_to_prd"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Validate checks the invariants an insight must hold before persistence.
func (i *Insight) Validate() error {
	if i == nil {
		return errors.New("insight is nil")
	}
	if !i.Type.Valid() {
		return errors.Errorf("unknown insight type %q", i.Type)
	}
	if i.Text == "" {
		return errors.New("insight text is empty")
	}
	if i.Confidence != nil && (*i.Confidence < 0 || *i.Confidence > 1) {
		return errors.Errorf("insight confidence %v out of [0,1]", *i.Confidence)
	}
	return nil
}
