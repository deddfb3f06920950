// Package finetune implements the type-scoped finetuning pool: a
// buffer of admitted training examples per artifact type that, once enough
// quality-gated examples accumulate, hands off to the training package's
// curriculum, active-learning, augmentation, and hyperparameter machinery
// to assemble a TrainingBatch for an external trainer to consume.
package finetune

import (
	"time"

	"github.com/notekiln/forge/training"
)

// TrainingExample is one instruction-tuning example admitted to a pool, in
// the instruction/input/output shape a LoRA trainer consumes directly.
type TrainingExample struct {
	ArtifactType string
	Instruction  string
	Input        string
	Output       string
	QualityScore float64
	RewardSignal float64
	// Source is SourceSynthetic for augmentation output and SourceFeedback
	// for everything else, mined hard negatives included.
	Source           string
	Category         string
	Difficulty       float64
	IsGenericContent bool
	FeedbackType     training.FeedbackType
	ContextSize      int
	Timestamp        time.Time
}

const (
	SourceFeedback  = "feedback"
	SourceSynthetic = "synthetic"
)

// BatchKind distinguishes a batch emitted at the incremental threshold from
// one emitted at the major threshold.
type BatchKind string

const (
	BatchIncremental BatchKind = "incremental"
	BatchMajor       BatchKind = "major"
)

// TrainingBatch is a selected, augmented, hyperparameter-tuned set of
// examples ready for an external trainer to consume.
type TrainingBatch struct {
	BatchID         string
	ArtifactType    string
	Kind            BatchKind
	CreatedAt       time.Time
	Examples        []TrainingExample
	HardNegatives   int
	CurriculumStage training.CurriculumStage
	AvgReward       float64
	Hyperparameters training.HyperparameterConfig
}

// PoolStats summarizes one artifact type's pool state.
type PoolStats struct {
	ArtifactType        string
	Count               int
	TotalAdmitted       int
	TotalDiscarded      int
	ReadyForIncremental bool
	ReadyForMajor       bool
	LastBatchAt         time.Time
}

// toExample adapts a TrainingExample into the shape the training package's
// curriculum, active-learning, and augmentation helpers operate on.
func toExample(te TrainingExample) training.Example {
	return training.Example{
		ArtifactType:    te.ArtifactType,
		InputData:       te.Input,
		AIOutput:        te.Output,
		ValidationScore: te.QualityScore,
		RewardSignal:    te.RewardSignal,
		FeedbackType:    te.FeedbackType,
		ContextSize:     te.ContextSize,
		Timestamp:       te.Timestamp,
	}
}

// fromExample converts a selected training.Example back into a
// TrainingExample for inclusion in an emitted batch.
func fromExample(e training.Example, source string) TrainingExample {
	return TrainingExample{
		ArtifactType: e.ArtifactType,
		Instruction:  "Generate " + e.ArtifactType,
		Input:        e.InputData,
		Output:       e.AIOutput,
		QualityScore: e.ValidationScore,
		RewardSignal: e.RewardSignal,
		Source:       source,
		FeedbackType: e.FeedbackType,
		ContextSize:  e.ContextSize,
		Timestamp:    e.Timestamp,
	}
}
