package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notekiln/forge/providers/mock"
)

func TestLLMJudgeDisabledReturnsPassingScore(t *testing.T) {
	backend := mock.New("judge-model")
	judge := NewLLMJudge(backend, "judge-model", false, nil)

	score, reasoning, err := judge.Evaluate(context.Background(), "mermaid_erd", "content", "notes")
	require.NoError(t, err)
	assert.Equal(t, 85.0, score)
	assert.NotEmpty(t, reasoning)
	assert.Equal(t, 0, backend.CallCount, "disabled judge must not call the backend")
}

func TestLLMJudgeParsesJSONVerdict(t *testing.T) {
	backend := mock.New("judge-model", `{"score": 92, "reasoning": "solid coverage of the requirements"}`)
	judge := NewLLMJudge(backend, "judge-model", true, nil)

	score, reasoning, err := judge.Evaluate(context.Background(), "mermaid_erd", "content", "notes")
	require.NoError(t, err)
	assert.Equal(t, 92.0, score)
	assert.Equal(t, "solid coverage of the requirements", reasoning)
}

func TestLLMJudgeFallsBackToRegexOnUnparseableJSON(t *testing.T) {
	backend := mock.New("judge-model", `well the score: 77 seems about right`)
	judge := NewLLMJudge(backend, "judge-model", true, nil)

	score, _, err := judge.Evaluate(context.Background(), "mermaid_erd", "content", "notes")
	require.NoError(t, err)
	assert.Equal(t, 77.0, score)
}

func TestLLMJudgeDegradesOnBackendError(t *testing.T) {
	backend := mock.New("judge-model")
	backend.SetError(errors.New("backend unavailable"))
	judge := NewLLMJudge(backend, "judge-model", true, nil)

	score, reasoning, err := judge.Evaluate(context.Background(), "mermaid_erd", "content", "notes")
	require.NoError(t, err)
	assert.Equal(t, 80.0, score)
	assert.Contains(t, reasoning, "judge error")
}
