package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarityIdenticalTextIsFullyCombined(t *testing.T) {
	b := Similarity("graph TD\nA-->B\nB-->C", "graph TD\nA-->B\nB-->C")

	assert.Equal(t, 1.0, b.Structural)
	assert.InDelta(t, 1.0, b.Combined, 1e-9)
}

func TestSimilarityEmptyTextIsZero(t *testing.T) {
	b := Similarity("", "something")
	assert.Equal(t, Breakdown{}, b)
}

func TestSimilarityMinorTypoIsHighlySimilar(t *testing.T) {
	b := Similarity("Hello World", "Hello Wold")
	assert.Greater(t, b.Combined, 0.5)
	assert.Greater(t, b.Structural, 0.85)
}

func TestSimilarityUnrelatedTextIsLow(t *testing.T) {
	b := Similarity("Generate ERD diagram", "class UserModel: pass")
	assert.Less(t, b.Combined, 0.5)
}

func TestCombinedMatchesSimilarityCombined(t *testing.T) {
	assert.Equal(t, Similarity("abc", "abd").Combined, Combined("abc", "abd"))
}
