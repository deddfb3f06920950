package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAugmentable() []AugmentableExample {
	return []AugmentableExample{
		{
			InputData:    "Generate ERD for e-commerce system with users and products",
			Output:       "erDiagram\nUser {int id PK}",
			Context:      map[string]interface{}{"rag": "existing code"},
			ArtifactType: "erd",
			QualityScore: 85,
		},
		{
			InputData:    "Build architecture diagram showing API server",
			Output:       "graph TD\nAPI --> DB",
			Context:      map[string]interface{}{"rag": "architecture patterns"},
			ArtifactType: "architecture",
			QualityScore: 90,
		},
	}
}

func TestAugmentDatasetReachesTargetMultiplier(t *testing.T) {
	a := NewAugmenter()
	original := sampleAugmentable()

	augmented := a.AugmentDataset(original)

	assert.GreaterOrEqual(t, len(augmented), len(original)*a.factor)
	assert.GreaterOrEqual(t, len(augmented), len(original), "originals must always be preserved")
}

func TestAugmentDatasetEmptyInputReturnsEmpty(t *testing.T) {
	a := NewAugmenter()
	assert.Nil(t, a.AugmentDataset(nil))
}

func TestVaryOutputOnlyAppliesToOrderIndependentArtifacts(t *testing.T) {
	a := NewAugmenter()

	erd := AugmentableExample{ArtifactType: "erd", Output: "erDiagram", QualityScore: 100}
	variant, ok := a.varyOutput(erd)
	require.True(t, ok)
	assert.Contains(t, variant.Output, "generated variant")
	assert.Less(t, variant.QualityScore, erd.QualityScore)

	_, ok = a.varyOutput(AugmentableExample{ArtifactType: "architecture"})
	assert.False(t, ok)
}

func TestParaphraseInputLeavesUnmatchedTextUnchanged(t *testing.T) {
	a := NewAugmenter()
	_, ok := a.paraphraseInput(AugmentableExample{InputData: "no keywords here"})
	assert.False(t, ok)
}

func TestVaryContextRequiresRagKey(t *testing.T) {
	a := NewAugmenter()
	_, ok := a.varyContext(AugmentableExample{Context: map[string]interface{}{"other": 1}})
	assert.False(t, ok)

	variant, ok := a.varyContext(AugmentableExample{Context: map[string]interface{}{"rag": "x"}})
	require.True(t, ok)
	assert.Equal(t, true, variant.Context["rag_variant"])
}
