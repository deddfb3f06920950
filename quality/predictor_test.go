package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredictHighForDeepStructuredNotesWithRichContext(t *testing.T) {
	notes := strings.Repeat("x", 1300) + "\n- bullet one\n- bullet two"
	p := Predict("mermaid_erd", notes, Context{RAGSnippets: 20, HasKnowledgeGraph: true, HasPatternMining: true})

	assert.Equal(t, LabelHigh, p.Label)
	assert.Equal(t, p.Score, p.Confidence)
}

func TestPredictLowForThinNotesAndNoContext(t *testing.T) {
	p := Predict("code_prototype", "short notes", Context{})

	assert.Equal(t, LabelLow, p.Label)
	assert.Contains(t, p.Reasons, "notes_depth")
	assert.Contains(t, p.Reasons, "context_rag")
	assert.Contains(t, p.Reasons, "artifact_complexity")
}

func TestPredictScoreClampedToUnitInterval(t *testing.T) {
	notes := strings.Repeat("x", 2000) + "\n- a\n- b"
	p := Predict("mermaid_sequence", notes, Context{RAGSnippets: 50, HasKnowledgeGraph: true, HasPatternMining: true})

	assert.LessOrEqual(t, p.Score, 1.0)
	assert.GreaterOrEqual(t, p.Score, 0.0)
}
