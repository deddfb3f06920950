package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrganizeByDifficultyBucketsEasyMediumHard(t *testing.T) {
	c := NewCurriculum()
	examples := []Example{
		{ArtifactType: "erd", ValidationScore: 95, InputData: "short"},
		{ArtifactType: "code_prototype", ValidationScore: 40, InputData: string(make([]byte, 4000))},
		{ArtifactType: "architecture", ValidationScore: 70, InputData: string(make([]byte, 1000))},
	}

	buckets := c.OrganizeByDifficulty(examples)

	total := len(buckets[StageEasy]) + len(buckets[StageMedium]) + len(buckets[StageHard])
	assert.Equal(t, len(examples), total)
}

func TestNextBatchAtEasyStageIsAllEasy(t *testing.T) {
	c := NewCurriculum()
	buckets := map[CurriculumStage][]Example{
		StageEasy:   {{ArtifactType: "erd"}, {ArtifactType: "erd"}, {ArtifactType: "erd"}},
		StageMedium: {{ArtifactType: "architecture"}},
		StageHard:   {{ArtifactType: "code_prototype"}},
	}

	batch, stage := c.NextBatch(buckets, 10)

	assert.Equal(t, StageEasy, stage)
	require.Len(t, batch, 10)
	for _, ex := range batch {
		assert.Equal(t, "erd", ex.ArtifactType)
	}
}

func TestShouldProgressRequiresMinEvaluationsAndScore(t *testing.T) {
	c := NewCurriculum()

	assert.False(t, c.ShouldProgress(), "no evaluations recorded yet")

	c.RecordPerformance(StageEasy, 60)
	c.RecordPerformance(StageEasy, 60)
	c.RecordPerformance(StageEasy, 60)
	assert.False(t, c.ShouldProgress(), "recent scores below progression score")

	c.RecordPerformance(StageEasy, 90)
	c.RecordPerformance(StageEasy, 90)
	c.RecordPerformance(StageEasy, 90)
	assert.True(t, c.ShouldProgress())
}

func TestProgressAdvancesThroughStagesAndStopsAtMixed(t *testing.T) {
	c := NewCurriculum()
	assert.Equal(t, StageEasy, c.Stage())

	c.Progress()
	assert.Equal(t, StageMedium, c.Stage())
	c.Progress()
	assert.Equal(t, StageHard, c.Stage())
	c.Progress()
	assert.Equal(t, StageMixed, c.Stage())
	c.Progress()
	assert.Equal(t, StageMixed, c.Stage(), "mixed is the final stage")
}
