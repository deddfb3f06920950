package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notekiln/forge/finetune"
	"github.com/notekiln/forge/training"
)

type fakePool struct {
	admitted []finetune.TrainingExample
	admit    bool
	stats    finetune.PoolStats
}

func (f *fakePool) Add(example finetune.TrainingExample) bool {
	if !f.admit {
		return false
	}
	f.admitted = append(f.admitted, example)
	return true
}

func (f *fakePool) GetPoolStats(artifactType string) finetune.PoolStats {
	return f.stats
}

func newTestStore(t *testing.T, pool PoolAdmitter) *Store {
	t.Helper()
	s, err := New(t.TempDir(), pool, nil)
	require.NoError(t, err)
	return s
}

func TestRecordFeedbackNormalizesMissingScore(t *testing.T) {
	pool := &fakePool{admit: true}
	s := newTestStore(t, pool)

	result, err := s.RecordFeedback("erd-1", "erd", "erDiagram", 0, training.FeedbackPositive, "", nil)
	require.NoError(t, err)
	assert.True(t, result.EventRecorded)

	history := s.History("erd-1", "", 1)
	require.Len(t, history, 1)
	assert.Equal(t, 85.0, history[0].ValidationScore)
}

func TestRecordFeedbackAdmitsHighScoringToPool(t *testing.T) {
	pool := &fakePool{admit: true}
	s := newTestStore(t, pool)

	result, err := s.RecordFeedback("erd-1", "erd", "erDiagram", 90, training.FeedbackSuccess, "", nil)
	require.NoError(t, err)
	assert.True(t, result.TrainingTriggered)
	require.Len(t, pool.admitted, 1)
	assert.Equal(t, finetune.SourceFeedback, pool.admitted[0].Source)
}

func TestRecordFeedbackSkipsPoolBelowAdmissionTarget(t *testing.T) {
	pool := &fakePool{admit: true}
	s := newTestStore(t, pool)

	result, err := s.RecordFeedback("erd-1", "erd", "erDiagram", 80, training.FeedbackSuccess, "", nil)
	require.NoError(t, err)
	assert.False(t, result.TrainingTriggered)
	assert.Empty(t, pool.admitted)
}

func TestRecordFeedbackSkipsPoolForGenericContent(t *testing.T) {
	pool := &fakePool{admit: true}
	s := newTestStore(t, pool)

	result, err := s.RecordFeedback("erd-1", "erd", "erDiagram", 95, training.FeedbackPositive, "",
		map[string]interface{}{"is_generic_content": true})
	require.NoError(t, err)
	assert.False(t, result.TrainingTriggered)
	assert.Empty(t, pool.admitted)
}

func TestRecordFeedbackPersistsAcrossNewStore(t *testing.T) {
	dir := t.TempDir()
	pool := &fakePool{admit: true}

	s1, err := New(dir, pool, nil)
	require.NoError(t, err)
	_, err = s1.RecordFeedback("erd-1", "erd", "erDiagram", 90, training.FeedbackSuccess, "", nil)
	require.NoError(t, err)

	s2, err := New(dir, pool, nil)
	require.NoError(t, err)
	history := s2.History("", "", 0)
	require.Len(t, history, 1)
	assert.Equal(t, "erd-1", history[0].ArtifactID)
}

func TestHistoryFiltersByArtifactType(t *testing.T) {
	pool := &fakePool{admit: true}
	s := newTestStore(t, pool)

	_, err := s.RecordFeedback("erd-1", "erd", "erDiagram", 90, training.FeedbackSuccess, "", nil)
	require.NoError(t, err)
	_, err = s.RecordFeedback("jira-1", "jira", "ticket", 90, training.FeedbackSuccess, "", nil)
	require.NoError(t, err)

	history := s.History("", "jira", 0)
	require.Len(t, history, 1)
	assert.Equal(t, "jira", history[0].ArtifactType)
}

func TestStatsCountsByFeedbackType(t *testing.T) {
	pool := &fakePool{admit: true}
	s := newTestStore(t, pool)

	_, _ = s.RecordFeedback("a", "erd", "x", 90, training.FeedbackSuccess, "", nil)
	_, _ = s.RecordFeedback("b", "erd", "x", 90, training.FeedbackPositive, "", nil)

	stats := s.Stats()
	assert.Equal(t, 2, stats["total_feedback_events"])
	byType := stats["by_feedback_type"].(map[string]int)
	assert.Equal(t, 1, byType["success"])
	assert.Equal(t, 1, byType["positive"])
}

func TestTrainingReadyReflectsPoolState(t *testing.T) {
	pool := &fakePool{admit: true, stats: finetune.PoolStats{Count: 50, ReadyForIncremental: true}}
	s := newTestStore(t, pool)

	ready := s.TrainingReady("erd")
	assert.True(t, ready.Ready)
	assert.Equal(t, 50, ready.Have)
}

func TestTrainingReadyWithoutPoolIsNeverReady(t *testing.T) {
	s := newTestStore(t, nil)
	assert.False(t, s.TrainingReady("erd").Ready)
}
