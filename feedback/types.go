// Package feedback records human judgment on generated artifacts, turns it
// into a reward signal via the training package's Calculator, and gates
// admission of high-quality examples into the finetuning pool.
package feedback

import (
	"time"

	"github.com/notekiln/forge/training"
)

// Event is one recorded judgment on a generated artifact.
type Event struct {
	ArtifactID      string                 `json:"artifact_id"`
	ArtifactType    string                 `json:"artifact_type"`
	FeedbackType    training.FeedbackType  `json:"feedback_type"`
	InputData       string                 `json:"input_data"`
	AIOutput        string                 `json:"ai_output"`
	CorrectedOutput string                 `json:"corrected_output,omitempty"`
	ValidationScore float64                `json:"validation_score"`
	RewardSignal    float64                `json:"reward_signal"`
	Context         map[string]interface{} `json:"context,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
}

// isGenericContent reads the is_generic_content flag a caller may have
// stashed in Context, matching how the original service threads the
// flag through alongside user/session metadata.
func (e Event) isGenericContent() bool {
	if e.Context == nil {
		return false
	}
	v, _ := e.Context["is_generic_content"].(bool)
	return v
}

// RecordResult mirrors what a feedback-submission endpoint reports back.
type RecordResult struct {
	EventRecorded     bool   `json:"event_recorded"`
	TrainingTriggered bool   `json:"training_triggered"`
	Message           string `json:"message"`
}

// ReadinessResult answers whether enough feedback has accumulated to
// justify triggering training.
type ReadinessResult struct {
	Ready  bool `json:"ready"`
	Needed int  `json:"needed"`
	Have   int  `json:"have"`
}

// normalizeScore fills in a validation score when the caller didn't
// provide one, keyed by feedback type.
func normalizeScore(feedbackType training.FeedbackType, score float64) float64 {
	if score > 0 {
		return score
	}
	switch feedbackType {
	case training.FeedbackPositive:
		return 85
	case training.FeedbackCorrection:
		return 85
	case training.FeedbackNegative:
		return 60
	default:
		return 70
	}
}
