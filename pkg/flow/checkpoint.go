package flow

import (
	"encoding/json"
	"strings"

	"github.com/prodkit/ideate/pkg/chat"
	"github.com/prodkit/ideate/pkg/events"
)

// buildCheckpoint groups current insights into per-type sections and records
// validation feedback with the backend. The whole pass is bookkeeping:
// failures log and continue, and sections reach the event stream only when
// surfacing is enabled.
func (f *Flow) buildCheckpoint() {
	var insights []chat.Insight
	if f.insights != nil {
		got, err := f.insights.List(f.baseCtx, f.sessionID)
		if err != nil {
			f.logger.Warn().Err(err).Msg("checkpoint: insight load failed; skipping")
			return
		}
		insights = got
	}

	sections := BuildCheckpointSections(insights)

	f.mu.Lock()
	f.lastSections = sections
	f.mu.Unlock()
	f.logger.Info().Int("sections", len(sections)).Msg("checkpoint built")

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for _, sec := range sections {
			if err := f.backend.StoreValidationFeedback(f.baseCtx, f.sessionID, sec.Name, "pending", sec.QualityScore); err != nil {
				f.logger.Warn().Err(err).Str("section", sec.Name).Msg("checkpoint feedback failed; continuing")
			}
		}
	}()

	if f.surfaceCheckpoints {
		payload, err := json.Marshal(sections)
		if err != nil {
			f.logger.Warn().Err(err).Msg("checkpoint: marshal sections failed")
			return
		}
		f.publishEvent(events.NewCheckpointBuilt(f.sessionID, payload))
	}
}

// BuildCheckpointSections produces one section per insight type present,
// summarizing the texts and averaging available confidence scores.
func BuildCheckpointSections(insights []chat.Insight) []chat.CheckpointSection {
	byType := map[chat.InsightType][]chat.Insight{}
	for _, in := range insights {
		byType[in.Type] = append(byType[in.Type], in)
	}

	var out []chat.CheckpointSection
	for _, typ := range chat.InsightTypes() {
		group := byType[typ]
		if len(group) == 0 {
			continue
		}
		texts := make([]string, 0, len(group))
		sum := 0.0
		scored := 0
		for _, in := range group {
			texts = append(texts, in.Text)
			if in.Confidence != nil {
				sum += *in.Confidence
				scored++
			}
		}
		score := 0.5
		if scored > 0 {
			score = sum / float64(scored)
		}
		out = append(out, chat.CheckpointSection{
			Name:         string(typ) + "s",
			Summary:      strings.Join(texts, "; "),
			QualityScore: score,
		})
	}
	return out
}
