package training

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateFreshSuccessEventMatchesHandComputedReward(t *testing.T) {
	c := NewCalculator()

	event := RewardEvent{
		ArtifactType:    "erd",
		FeedbackType:    FeedbackSuccess,
		ValidationScore: 90,
		InputData:       "short input",
		Timestamp:       time.Now(),
	}

	got := c.Calculate(event)

	validationReward := math.Tanh((90.0 - 50) / 50)
	baseReward := validationReward + 0.3
	difficultyMultiplier := 1.0 + difficulty(event)*(1.5-1.0)
	want := clamp(baseReward*1.0*difficultyMultiplier*1.0, -1, 1)

	assert.InDelta(t, want, got, 1e-6)
}

func TestCalculateExplicitNegativeIsStronglyPunishing(t *testing.T) {
	c := NewCalculator()
	got := c.Calculate(RewardEvent{
		ArtifactType:    "code_prototype",
		FeedbackType:    FeedbackNegative,
		ValidationScore: 40,
		Timestamp:       time.Now(),
	})
	assert.Less(t, got, -0.3)
}

func TestCalculateCorrectionBonusTiersBySimilarity(t *testing.T) {
	c := NewCalculator()
	base := RewardEvent{
		ArtifactType:    "api_docs",
		FeedbackType:    FeedbackCorrection,
		ValidationScore: 70,
		Timestamp:       time.Now(),
	}

	highSim := base
	highSim.AIOutput = "graph TD\nA-->B\nB-->C"
	highSim.CorrectedOutput = "graph TD\nA-->B\nB-->C"
	rewardHighSim := c.Calculate(highSim)

	c2 := NewCalculator()
	lowSim := base
	lowSim.AIOutput = "graph TD\nA-->B\nB-->C"
	lowSim.CorrectedOutput = "totally different content unrelated to the original"
	rewardLowSim := c2.Calculate(lowSim)

	assert.Greater(t, rewardHighSim, rewardLowSim)
}

func TestCalculateOldFeedbackDecaysTowardFloor(t *testing.T) {
	c := NewCalculator()
	event := RewardEvent{
		ArtifactType:    "erd",
		FeedbackType:    FeedbackSuccess,
		ValidationScore: 90,
		Timestamp:       time.Now().Add(-365 * 24 * time.Hour),
	}

	got := c.Calculate(event)

	validationReward := math.Tanh((90.0 - 50) / 50)
	baseReward := validationReward + 0.3
	difficultyMultiplier := 1.0 + difficulty(event)*(1.5-1.0)
	floored := clamp(baseReward*0.1*difficultyMultiplier, -1, 1)

	assert.InDelta(t, floored, got, 1e-6)
}

func TestCalculateAppliesBalancePenaltyAfterThresholdCrossed(t *testing.T) {
	c := NewCalculator()
	c.balanceThreshold = 2

	event := RewardEvent{
		ArtifactType:    "jira",
		FeedbackType:    FeedbackSuccess,
		ValidationScore: 80,
		// Zero timestamp: temporalWeight is exactly 1.0, so the two calls
		// below cannot drift apart with the clock.
	}

	first := c.Calculate(event)  // count before: 0, below threshold
	second := c.Calculate(event) // count before: 1, below threshold
	require.Equal(t, first, second, "balance multiplier should not engage until count reaches threshold")

	var last float64
	for i := 0; i < 10; i++ {
		last = c.Calculate(event) // count before eventually far past threshold
	}
	assert.Less(t, last, second)
}

func TestCalculateClampsToUnitRange(t *testing.T) {
	c := NewCalculator()
	got := c.Calculate(RewardEvent{
		ArtifactType:    "code_prototype",
		FeedbackType:    FeedbackPositive,
		ValidationScore: 100,
		Timestamp:       time.Now(),
	})
	assert.LessOrEqual(t, got, 1.0)
	assert.GreaterOrEqual(t, got, -1.0)
}

func TestStatsTracksPerArtifactTypeCounts(t *testing.T) {
	c := NewCalculator()
	c.Calculate(RewardEvent{ArtifactType: "erd", FeedbackType: FeedbackSuccess, ValidationScore: 90, Timestamp: time.Now()})
	c.Calculate(RewardEvent{ArtifactType: "erd", FeedbackType: FeedbackSuccess, ValidationScore: 90, Timestamp: time.Now()})
	c.Calculate(RewardEvent{ArtifactType: "jira", FeedbackType: FeedbackSuccess, ValidationScore: 90, Timestamp: time.Now()})

	stats := c.Stats()
	assert.Equal(t, 2, stats["erd"])
	assert.Equal(t, 1, stats["jira"])

	c.Reset()
	assert.Empty(t, c.Stats())
}
