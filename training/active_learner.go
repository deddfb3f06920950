package training

import "strings"

// feedbackUncertainty maps a feedback type to how surprising/informative it
// is on its own, independent of the validation score it carried.
var feedbackUncertainty = map[FeedbackType]float64{
	FeedbackValidationFailure: 1.0,
	FeedbackCorrection:        0.8,
	FeedbackNegative:          0.9,
	FeedbackSuccess:           0.1,
	FeedbackPositive:          0.1,
}

const defaultFeedbackUncertainty = 0.5

// ActiveLearner selects the most informative examples from a candidate
// pool, combining how much the model struggled (uncertainty), how
// different an example is from what's already selected (diversity), and
// how good an example is to reinforce (quality).
type ActiveLearner struct {
	uncertaintyWeight float64
	diversityWeight   float64
	qualityWeight     float64
}

// NewActiveLearner builds an ActiveLearner with the finetuning pool's
// default informativeness weights.
func NewActiveLearner() *ActiveLearner {
	return &ActiveLearner{
		uncertaintyWeight: 0.4,
		diversityWeight:   0.3,
		qualityWeight:     0.3,
	}
}

// Selection is one candidate's informativeness breakdown, returned
// alongside the selected example for observability.
type Selection struct {
	Example         Example
	Uncertainty     float64
	Diversity       float64
	Quality         float64
	Informativeness float64
}

// SelectInformative greedily picks the budget most informative candidates.
// Diversity is recomputed against the growing selection as each candidate
// is scored, so later picks are penalized for resembling earlier ones —
// this is O(budget * len(candidates)) by design, favoring selection
// quality over raw throughput at finetuning-pool batch sizes.
func (a *ActiveLearner) SelectInformative(candidates []Example, budget int, alreadySelected []Example) []Selection {
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) <= budget {
		out := make([]Selection, len(candidates))
		for i, c := range candidates {
			out[i] = Selection{Example: c}
		}
		return out
	}

	remaining := append([]Example(nil), candidates...)
	selectedExamples := append([]Example(nil), alreadySelected...)
	var picked []Selection

	for len(picked) < budget && len(remaining) > 0 {
		bestIdx := -1
		var best Selection
		for i, cand := range remaining {
			uncertainty := a.uncertainty(cand)
			diversity := a.diversity(cand, selectedExamples)
			quality := a.quality(cand)
			informativeness := uncertainty*a.uncertaintyWeight + diversity*a.diversityWeight + quality*a.qualityWeight

			if bestIdx == -1 || informativeness > best.Informativeness {
				bestIdx = i
				best = Selection{
					Example:         cand,
					Uncertainty:     uncertainty,
					Diversity:       diversity,
					Quality:         quality,
					Informativeness: informativeness,
				}
			}
		}

		picked = append(picked, best)
		selectedExamples = append(selectedExamples, best.Example)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return picked
}

func (a *ActiveLearner) uncertainty(e Example) float64 {
	scoreUncertainty := 1.0 - e.ValidationScore/100.0

	correctionUncertainty := 0.0
	if e.CorrectedOutput != "" {
		correctionUncertainty = 1.0
	}

	fu, ok := feedbackUncertainty[e.FeedbackType]
	if !ok {
		fu = defaultFeedbackUncertainty
	}

	u := scoreUncertainty*0.5 + correctionUncertainty*0.3 + fu*0.2
	return clamp(u, 0, 1)
}

func (a *ActiveLearner) diversity(candidate Example, selected []Example) float64 {
	if len(selected) == 0 {
		return 1.0
	}

	maxSimilarity := 0.0
	for _, other := range selected {
		sim := exampleSimilarity(candidate, other)
		if sim > maxSimilarity {
			maxSimilarity = sim
		}
	}
	return clamp(1.0-maxSimilarity, 0, 1)
}

func exampleSimilarity(a, b Example) float64 {
	sameArtifact := 0.0
	if a.ArtifactType == b.ArtifactType {
		sameArtifact = 1.0
	}

	lengthSim := ratio(len(a.InputData), len(b.InputData))
	contextSim := ratio(a.ContextSize, b.ContextSize)

	tokens1 := tokenSet(a.InputData)
	tokens2 := tokenSet(b.InputData)
	tokenSim := jaccard(tokens1, tokens2)

	return sameArtifact*0.3 + lengthSim*0.2 + contextSim*0.2 + tokenSim*0.3
}

func (a *ActiveLearner) quality(e Example) float64 {
	return clamp((e.RewardSignal+1.0)/2.0, 0, 1)
}

func ratio(a, b int) float64 {
	if a == 0 && b == 0 {
		return 1.0
	}
	lo, hi := float64(a), float64(b)
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi == 0 {
		return 1.0
	}
	return lo / hi
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		set[tok] = struct{}{}
	}
	return set
}
