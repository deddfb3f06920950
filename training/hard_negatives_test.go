package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFailureIgnoresScoresAboveThreshold(t *testing.T) {
	m := NewHardNegativeMiner()
	_, recorded := m.RecordFailure("input", "output", 75, "erd", "", 100)
	assert.False(t, recorded)
}

func TestRecordFailureClassifiesFailureType(t *testing.T) {
	m := NewHardNegativeMiner()

	withCorrection, _ := m.RecordFailure("input", "output", 55, "erd", "expected", 100)
	assert.Equal(t, FailureUserCorrection, withCorrection.FailureType)

	lowScore, _ := m.RecordFailure("input", "output", 45, "erd", "", 100)
	assert.Equal(t, FailureValidation, lowScore.FailureType)

	midScore, _ := m.RecordFailure("input", "output", 58, "erd", "", 100)
	assert.Equal(t, FailureLowScore, midScore.FailureType)
}

func TestGetHardNegativesFiltersByTypeAndSortsByDifficulty(t *testing.T) {
	m := NewHardNegativeMiner()
	m.RecordFailure("short", "out", 58, "erd", "", 100)
	m.RecordFailure("long input repeated many times over", "out", 35, "code_prototype", "", 5000)
	m.RecordFailure("x", "out", 50, "erd", "", 100)

	erdOnly := m.GetHardNegatives("erd", 0, 10)
	require.Len(t, erdOnly, 2)
	for _, fc := range erdOnly {
		assert.Equal(t, "erd", fc.ArtifactType)
	}

	all := m.GetHardNegatives("", 0, 10)
	require.Len(t, all, 3)
	assert.Equal(t, "code_prototype", all[0].ArtifactType, "the harder code_prototype failure should sort first")
}

func TestGetHardNegativesRespectsLimit(t *testing.T) {
	m := NewHardNegativeMiner()
	for i := 0; i < 5; i++ {
		m.RecordFailure("input", "output", 40, "erd", "", 100)
	}
	assert.Len(t, m.GetHardNegatives("", 0, 2), 2)
}
