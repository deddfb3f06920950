package training

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// failureArtifactComplexity is the smaller artifact-complexity table the
// hard-negative miner scores failures against; it only needs to rank
// failures relative to each other; types outside it fall back to 0.5.
var failureArtifactComplexity = map[string]float64{
	"erd":            0.3,
	"jira":           0.4,
	"api_docs":       0.5,
	"architecture":   0.7,
	"code_prototype": 0.8,
}

// FailureType classifies why a FailureCase was recorded.
type FailureType string

const (
	FailureLowScore       FailureType = "low_score"
	FailureValidation     FailureType = "validation_failure"
	FailureUserCorrection FailureType = "user_correction"
)

// FailureCase is one recorded generation the model got wrong badly enough
// to mine for targeted retraining.
type FailureCase struct {
	InputData         string
	Output            string
	ExpectedOutput    string
	ValidationScore   float64
	ArtifactType      string
	FailureType       FailureType
	ComplexityFactors map[string]float64
	Timestamp         time.Time
}

// HardNegativeMiner collects failure cases and ranks them by difficulty so
// the hardest, most instructive failures can be folded back into training
// batches.
type HardNegativeMiner struct {
	failureThreshold float64

	mu    sync.Mutex
	cases []FailureCase
}

// NewHardNegativeMiner builds a miner using the finetuning pool's default
// failure threshold: any generation scoring below 75 is a candidate.
func NewHardNegativeMiner() *HardNegativeMiner {
	return &HardNegativeMiner{failureThreshold: 75.0}
}

// RecordFailure records a failure case if the validation score is below
// the failure threshold; otherwise it is a no-op and returns false.
func (m *HardNegativeMiner) RecordFailure(inputData, output string, validationScore float64, artifactType, expectedOutput string, contextSize int) (FailureCase, bool) {
	if validationScore >= m.failureThreshold {
		return FailureCase{}, false
	}

	failureType := FailureLowScore
	switch {
	case expectedOutput != "":
		failureType = FailureUserCorrection
	case validationScore < 50:
		failureType = FailureValidation
	}

	fc := FailureCase{
		InputData:         inputData,
		Output:            output,
		ExpectedOutput:    expectedOutput,
		ValidationScore:   validationScore,
		ArtifactType:      artifactType,
		FailureType:       failureType,
		ComplexityFactors: analyzeComplexity(inputData, output, artifactType, contextSize),
		Timestamp:         time.Now(),
	}

	m.mu.Lock()
	m.cases = append(m.cases, fc)
	m.mu.Unlock()

	return fc, true
}

// GetHardNegatives returns up to limit failure cases for artifactType (all
// types if empty) whose difficulty is at least minDifficulty, hardest
// first.
func (m *HardNegativeMiner) GetHardNegatives(artifactType string, minDifficulty float64, limit int) []FailureCase {
	m.mu.Lock()
	candidates := append([]FailureCase(nil), m.cases...)
	m.mu.Unlock()

	type scored struct {
		difficulty float64
		fc         FailureCase
	}
	var matches []scored
	for _, fc := range candidates {
		if artifactType != "" && fc.ArtifactType != artifactType {
			continue
		}
		d := failureDifficulty(fc)
		if d >= minDifficulty {
			matches = append(matches, scored{d, fc})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].difficulty > matches[j].difficulty })

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]FailureCase, len(matches))
	for i, s := range matches {
		out[i] = s.fc
	}
	return out
}

func analyzeComplexity(inputData, output, artifactType string, contextSize int) map[string]float64 {
	complexity, ok := failureArtifactComplexity[artifactType]
	if !ok {
		complexity = 0.5
	}
	return map[string]float64{
		"input_length":        minF(1.0, float64(len(inputData))/5000),
		"output_length":       minF(1.0, float64(len(output))/2000),
		"context_size":        minF(1.0, float64(contextSize)/10000),
		"artifact_complexity": complexity,
		"output_lines":        minF(1.0, float64(strings.Count(output, "\n"))/50),
	}
}

// failureDifficulty weighs the raw validation-score shortfall above the
// average of the recorded complexity factors, since how hard an example
// was to generate matters more than why it happened to be hard.
func failureDifficulty(fc FailureCase) float64 {
	scoreDifficulty := 1.0 - fc.ValidationScore/100.0

	sum := 0.0
	for _, v := range fc.ComplexityFactors {
		sum += v
	}
	avgComplexity := 0.0
	if len(fc.ComplexityFactors) > 0 {
		avgComplexity = sum / float64(len(fc.ComplexityFactors))
	}

	return scoreDifficulty*0.6 + avgComplexity*0.4
}
