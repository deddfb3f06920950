package training

import (
	"math"
	"sync"
	"time"
)

// FeedbackType classifies what produced a feedback signal on a generated
// artifact.
type FeedbackType string

const (
	FeedbackSuccess           FeedbackType = "success"
	FeedbackCorrection        FeedbackType = "correction"
	FeedbackValidationFailure FeedbackType = "validation_failure"
	FeedbackPositive          FeedbackType = "positive"
	FeedbackNegative          FeedbackType = "negative"
)

// artifactComplexity is the base difficulty assigned to each artifact type
// when estimating how hard an example was to generate. Types not listed
// fall back to 0.5.
var artifactComplexity = map[string]float64{
	"erd":                  0.3,
	"architecture":         0.7,
	"system_overview":      0.6,
	"data_flow":            0.5,
	"user_flow":            0.5,
	"components_diagram":   0.6,
	"api_sequence":         0.5,
	"api_docs":             0.5,
	"jira":                 0.4,
	"workflows":            0.6,
	"code_prototype":       0.8,
	"visual_prototype_dev": 0.7,
}

const defaultArtifactComplexity = 0.5

// RewardEvent is the input to Calculator.Calculate: one feedback signal
// recorded against one generated artifact.
type RewardEvent struct {
	ArtifactType    string
	FeedbackType    FeedbackType
	InputData       string
	ContextSize     int
	ValidationScore float64
	AIOutput        string
	CorrectedOutput string
	Timestamp       time.Time
}

// Calculator turns feedback events into a scalar reward signal in
// [-1, 1], used to prioritize and weight training examples. It tracks a
// running per-artifact-type count to apply a distribution-balance penalty
// once a type is overrepresented in the pool, so it must be shared (not
// recreated) across every Calculate call for the same pool.
type Calculator struct {
	mu             sync.Mutex
	artifactCounts map[string]int

	timeDecayRate    float64
	difficultyWeight float64
	balanceThreshold int
}

// NewCalculator builds a Calculator with the finetuning pool's defaults:
// a 5% daily decay on stale feedback, a 1.5x difficulty multiplier ceiling,
// and a balance threshold of 100 examples per artifact type before the
// distribution penalty engages.
func NewCalculator() *Calculator {
	return &Calculator{
		artifactCounts:   make(map[string]int),
		timeDecayRate:    0.95,
		difficultyWeight: 1.5,
		balanceThreshold: 100,
	}
}

// Calculate computes the reward for one feedback event and records its
// artifact type against the running balance counts. Call order matters:
// the balance multiplier for this event uses the count seen BEFORE this
// event, so the first event of a type is never penalized by its own
// presence.
func (c *Calculator) Calculate(event RewardEvent) float64 {
	validationReward := math.Tanh((event.ValidationScore - 50) / 50)
	feedbackBonus := c.feedbackBonus(event)
	baseReward := validationReward + feedbackBonus

	timeWeight := temporalWeight(event.Timestamp, c.timeDecayRate)
	difficultyMultiplier := 1.0 + difficulty(event)*(c.difficultyWeight-1.0)

	c.mu.Lock()
	count := c.artifactCounts[event.ArtifactType]
	c.artifactCounts[event.ArtifactType] = count + 1
	c.mu.Unlock()

	balanceMultiplier := c.balanceMultiplier(count)

	reward := baseReward * timeWeight * difficultyMultiplier * balanceMultiplier
	return clamp(reward, -1, 1)
}

// Stats reports, for diagnostics and the finetuning pool's admission
// endpoints, how many reward-scored examples have been seen per type.
func (c *Calculator) Stats() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.artifactCounts))
	for k, v := range c.artifactCounts {
		out[k] = v
	}
	return out
}

// Reset clears the running balance counts, e.g. when a pool is cleared.
func (c *Calculator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifactCounts = make(map[string]int)
}

func (c *Calculator) feedbackBonus(event RewardEvent) float64 {
	switch event.FeedbackType {
	case FeedbackSuccess:
		return 0.3
	case FeedbackCorrection:
		if event.CorrectedOutput == "" {
			return 0.1
		}
		similarity := Combined(event.AIOutput, event.CorrectedOutput)
		switch {
		case similarity > 0.8:
			return 0.2
		case similarity > 0.5:
			return 0.1
		default:
			return 0.0
		}
	case FeedbackPositive:
		return 0.5
	case FeedbackNegative:
		return -1.0
	case FeedbackValidationFailure:
		return -0.5
	default:
		return 0.0
	}
}

func (c *Calculator) balanceMultiplier(countBefore int) float64 {
	if countBefore < c.balanceThreshold {
		return 1.0
	}
	excess := float64(countBefore - c.balanceThreshold)
	penalty := math.Exp(-excess / 50)
	if penalty < 0.5 {
		return 0.5
	}
	return penalty
}

// temporalWeight decays a feedback event's influence as it ages, floored
// so that very old feedback still counts a little rather than vanishing.
func temporalWeight(timestamp time.Time, decayRate float64) float64 {
	if timestamp.IsZero() {
		return 1.0
	}
	ageDays := time.Since(timestamp).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	weight := math.Pow(decayRate, ageDays)
	if weight < 0.1 {
		return 0.1
	}
	return weight
}

// difficulty estimates how hard a generation was, as a weighted blend of
// the artifact type's baseline complexity, how far validation fell short
// (a proxy for how hard the model had to work to get there), and how much
// input and context the model had to reason over. Delegates to the same
// formula the curriculum learner stages examples by, so a correction's
// reward and its curriculum difficulty never disagree.
func difficulty(event RewardEvent) float64 {
	return difficultyOf(Example{
		ArtifactType:    event.ArtifactType,
		InputData:       event.InputData,
		ContextSize:     event.ContextSize,
		ValidationScore: event.ValidationScore,
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
