package training

import "time"

// Example is the shared training-example shape consumed by the curriculum
// learner, active learner, and data augmenter. It carries just enough of a
// recorded feedback event to score and select on, without depending on the
// feedback package's richer persisted record.
type Example struct {
	ArtifactType    string
	InputData       string
	AIOutput        string
	CorrectedOutput string
	ValidationScore float64
	RewardSignal    float64
	FeedbackType    FeedbackType
	ContextSize     int
	Timestamp       time.Time
}

// difficultyOf is the difficulty estimate behind the reward calculator's
// difficulty() multiplier; the curriculum learner reuses it to stage
// examples, so both consumers of "how hard was this example" agree.
func difficultyOf(e Example) float64 {
	complexity, ok := artifactComplexity[e.ArtifactType]
	if !ok {
		complexity = defaultArtifactComplexity
	}
	inputComplexity := minF(1.0, float64(len(e.InputData))/5000)
	contextComplexity := minF(1.0, float64(e.ContextSize)/10000)
	generationDifficulty := 1.0 - e.ValidationScore/100.0

	d := complexity*0.4 + generationDifficulty*0.3 + inputComplexity*0.2 + contextComplexity*0.1
	return clamp(d, 0, 1)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
