package finetune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notekiln/forge/training"
)

func sampleExample(artifactType string, score float64) TrainingExample {
	return TrainingExample{
		ArtifactType: artifactType,
		Input:        "generate a " + artifactType + " for an e-commerce checkout flow",
		Output:       "some generated content",
		QualityScore: score,
		RewardSignal: 0.6,
		Source:       SourceFeedback,
	}
}

func TestAddDiscardsBelowQualityFloor(t *testing.T) {
	p := NewPool(nil)
	admitted := p.Add(sampleExample("erd", 50))
	assert.False(t, admitted)

	stats := p.GetPoolStats("erd")
	assert.Equal(t, 0, stats.Count)
	assert.Equal(t, 1, stats.TotalDiscarded)
}

func TestAddDiscardsGenericContent(t *testing.T) {
	p := NewPool(nil)
	ex := sampleExample("erd", 90)
	ex.IsGenericContent = true
	assert.False(t, p.Add(ex))
}

func TestAddDiscardsLowScoringSuccess(t *testing.T) {
	p := NewPool(nil)
	ex := sampleExample("erd", 75)
	ex.FeedbackType = training.FeedbackSuccess
	assert.False(t, p.Add(ex))
}

func TestAddAdmitsQualifyingExample(t *testing.T) {
	p := NewPool(nil)
	assert.True(t, p.Add(sampleExample("erd", 90)))

	stats := p.GetPoolStats("erd")
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 1, stats.TotalAdmitted)
}

func TestAddEmitsIncrementalBatchAtThreshold(t *testing.T) {
	p := NewPool(nil, WithThresholds(5, 2000))

	var emitted []TrainingBatch
	p.OnIncrementalBatch = func(b TrainingBatch) { emitted = append(emitted, b) }

	for i := 0; i < 5; i++ {
		require.True(t, p.Add(sampleExample("erd", 90)))
	}

	require.Len(t, emitted, 1)
	assert.Equal(t, BatchIncremental, emitted[0].Kind)
	assert.Equal(t, "erd", emitted[0].ArtifactType)
	assert.NotEmpty(t, emitted[0].Examples)

	stats := p.GetPoolStats("erd")
	assert.Equal(t, 5, stats.Count, "incremental batch does not clear the pool")
}

func TestAddEmitsMajorBatchAtThreshold(t *testing.T) {
	p := NewPool(nil, WithThresholds(3, 6))

	var majors, incrementals int
	p.OnMajorBatch = func(TrainingBatch) { majors++ }
	p.OnIncrementalBatch = func(TrainingBatch) { incrementals++ }

	for i := 0; i < 6; i++ {
		require.True(t, p.Add(sampleExample("jira", 95)))
	}

	assert.Equal(t, 1, majors)
	assert.Equal(t, 1, incrementals, "the count-3 crossing fires incremental, count-6 fires major instead")
}

func TestClearPoolEmptiesBufferButKeepsCounters(t *testing.T) {
	p := NewPool(nil)
	p.Add(sampleExample("erd", 90))

	ok := p.ClearPool("erd")
	assert.True(t, ok)

	stats := p.GetPoolStats("erd")
	assert.Equal(t, 0, stats.Count)
	assert.Equal(t, 1, stats.TotalAdmitted, "historical admission count survives a clear")
}

func TestClearPoolUnknownTypeReturnsFalse(t *testing.T) {
	p := NewPool(nil)
	assert.False(t, p.ClearPool("nonexistent"))
}

func TestGetPoolStatsReportsReadiness(t *testing.T) {
	p := NewPool(nil, WithThresholds(2, 4))

	assert.False(t, p.GetPoolStats("erd").ReadyForIncremental)

	p.Add(sampleExample("erd", 90))
	p.Add(sampleExample("erd", 90))

	stats := p.GetPoolStats("erd")
	assert.True(t, stats.ReadyForIncremental)
	assert.False(t, stats.ReadyForMajor)
}

func TestHistoryAccumulatesAcrossBatches(t *testing.T) {
	p := NewPool(nil, WithThresholds(2, 2000))

	for i := 0; i < 4; i++ {
		p.Add(sampleExample("erd", 90))
	}

	history := p.History("erd")
	assert.Len(t, history, 2)
}
