package training

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// AugmentableExample is a training example the augmenter can synthesize
// variants of. It is distinct from Example because augmentation needs the
// full generated output, not just the signals used to score and select.
type AugmentableExample struct {
	InputData    string
	Output       string
	Context      map[string]interface{}
	ArtifactType string
	QualityScore float64
}

// orderIndependentArtifacts lists artifact types where reordering elements
// (or appending a trailing marker) doesn't change correctness, so output
// variation is safe to apply to them.
var orderIndependentArtifacts = map[string]bool{
	"erd":       true,
	"jira":      true,
	"workflows": true,
}

// paraphraseReplacements are the simple rule-based substitutions used to
// generate a paraphrased input; the first match wins, mirroring the
// original's one-replacement-at-a-time behavior so paraphrases stay subtle.
var paraphraseReplacements = []struct{ from, to string }{
	{"generate", "create"},
	{"build", "construct"},
	{"make", "produce"},
	{"diagram", "chart"},
	{"system", "application"},
	{"design", "architect"},
	{"show", "display"},
	{"for", "to represent"},
}

// Augmenter expands a training set toward a target multiplier by
// paraphrasing inputs, varying context, and producing output variants,
// bounded to a fixed worker concurrency since each augmentation is cheap
// but the dataset can be large.
type Augmenter struct {
	factor      int
	concurrency int64
}

// NewAugmenter builds an Augmenter targeting a 2x dataset size, the
// finetuning pool's default augmentation factor.
func NewAugmenter() *Augmenter {
	return &Augmenter{factor: 2, concurrency: 8}
}

// AugmentDataset returns the original examples plus enough synthetic
// variants to reach factor times the original size. Synthetic examples
// from output variation are tagged with a 0.95 quality discount, since an
// appended marker is a strictly lower-fidelity training target than the
// original.
func (a *Augmenter) AugmentDataset(examples []AugmentableExample) []AugmentableExample {
	if len(examples) == 0 {
		return nil
	}

	targetSize := len(examples) * a.factor
	needed := targetSize - len(examples)
	if needed <= 0 {
		return append([]AugmentableExample(nil), examples...)
	}

	methods := []func(AugmentableExample) (AugmentableExample, bool){
		a.paraphraseInput,
		a.varyContext,
		a.varyOutput,
	}

	sem := semaphore.NewWeighted(a.concurrency)
	var mu sync.Mutex
	var wg sync.WaitGroup

	augmented := append([]AugmentableExample(nil), examples...)

	for i := 0; i < needed; i++ {
		original := examples[i%len(examples)]
		method := methods[i%len(methods)]

		wg.Add(1)
		_ = sem.Acquire(context.Background(), 1)
		go func(original AugmentableExample, method func(AugmentableExample) (AugmentableExample, bool)) {
			defer wg.Done()
			defer sem.Release(1)

			variant, ok := method(original)
			if !ok {
				return
			}

			mu.Lock()
			augmented = append(augmented, variant)
			mu.Unlock()
		}(original, method)
	}

	wg.Wait()
	return augmented
}

func (a *Augmenter) paraphraseInput(ex AugmentableExample) (AugmentableExample, bool) {
	paraphrased := simpleParaphrase(ex.InputData)
	if paraphrased == ex.InputData {
		return AugmentableExample{}, false
	}
	variant := ex
	variant.InputData = paraphrased
	return variant, true
}

func (a *Augmenter) varyContext(ex AugmentableExample) (AugmentableExample, bool) {
	if _, ok := ex.Context["rag"]; !ok {
		return AugmentableExample{}, false
	}
	variant := ex
	varied := make(map[string]interface{}, len(ex.Context)+1)
	for k, v := range ex.Context {
		varied[k] = v
	}
	varied["rag_variant"] = true
	variant.Context = varied
	return variant, true
}

func (a *Augmenter) varyOutput(ex AugmentableExample) (AugmentableExample, bool) {
	if !orderIndependentArtifacts[ex.ArtifactType] {
		return AugmentableExample{}, false
	}
	variant := ex
	variant.Output = ex.Output + "\n# generated variant"
	variant.QualityScore = ex.QualityScore * 0.95
	return variant, true
}

func simpleParaphrase(text string) string {
	lower := strings.ToLower(text)
	for _, r := range paraphraseReplacements {
		if i := strings.Index(lower, r.from); i >= 0 {
			if len(lower) != len(text) {
				return strings.Replace(text, r.from, r.to, 1)
			}
			return text[:i] + r.to + text[i+len(r.from):]
		}
	}
	return text
}
