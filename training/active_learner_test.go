package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectInformativeReturnsAllWhenCandidatesFitBudget(t *testing.T) {
	a := NewActiveLearner()
	candidates := []Example{{ArtifactType: "erd"}, {ArtifactType: "jira"}}

	selected := a.SelectInformative(candidates, 5, nil)

	assert.Len(t, selected, 2)
}

func TestSelectInformativePrefersHighUncertaintyAndQuality(t *testing.T) {
	a := NewActiveLearner()
	candidates := []Example{
		{ArtifactType: "erd", InputData: "simple request", ValidationScore: 92, FeedbackType: FeedbackSuccess, RewardSignal: 0.7},
		{ArtifactType: "code_prototype", InputData: "complex auth request with oauth2 and jwt tokens", ValidationScore: 45, FeedbackType: FeedbackValidationFailure, RewardSignal: -0.3},
		{ArtifactType: "architecture", InputData: "microservice design request", ValidationScore: 70, FeedbackType: FeedbackCorrection, CorrectedOutput: "fixed", RewardSignal: 0.1},
	}

	selected := a.SelectInformative(candidates, 1, nil)

	require.Len(t, selected, 1)
	assert.NotEqual(t, "erd", selected[0].Example.ArtifactType, "the high-confidence success example should never be the single most informative pick")
}

func TestSelectInformativeDiversityPenalizesRepeatedArtifactType(t *testing.T) {
	a := NewActiveLearner()
	already := []Example{{ArtifactType: "erd", InputData: "request one"}}

	diverseCandidate := Example{ArtifactType: "architecture", InputData: "completely different request about microservices"}
	similarCandidate := Example{ArtifactType: "erd", InputData: "request one"}

	diverseScore := a.diversity(diverseCandidate, already)
	similarScore := a.diversity(similarCandidate, already)

	assert.Greater(t, diverseScore, similarScore)
}

func TestDiversityIsFullForFirstSelection(t *testing.T) {
	a := NewActiveLearner()
	assert.Equal(t, 1.0, a.diversity(Example{ArtifactType: "erd"}, nil))
}
