package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadBestFallsBackToDocumentedDefault(t *testing.T) {
	s := NewHyperparameterStore()
	assert.Equal(t, defaultHyperparameters, s.LoadBest("erd"))
}

func TestRecordBestIsReturnedByLoadBest(t *testing.T) {
	s := NewHyperparameterStore()
	custom := HyperparameterConfig{LearningRate: 5e-5, BatchSize: 32, NumEpochs: 5, WarmupRatio: 0.05, LoraR: 8, LoraAlpha: 16, LoraDropout: 0.1}

	s.RecordBest("code_prototype", custom)

	assert.Equal(t, custom, s.LoadBest("code_prototype"))
	assert.Equal(t, defaultHyperparameters, s.LoadBest("erd"), "unrelated type unaffected")
}
