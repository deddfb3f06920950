package training

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// splitSeed fixes the shuffle used by SplitTrainVal so a given dataset
// always yields the same train/validation partition.
const splitSeed = 42

// minValidationSamples is the floor on validation-set size per stratum
// (still capped at half the stratum).
const minValidationSamples = 10

// defaultValidationSplit is the target validation fraction per stratum.
const defaultValidationSplit = 0.2

// PerformanceMetrics is one evaluation of a finetuned model against a
// validation split.
type PerformanceMetrics struct {
	ModelID       string
	ArtifactType  string
	Timestamp     time.Time
	AvgScore      float64
	SuccessRate   float64
	AvgReward     float64
	AvgLatency    time.Duration
	SampleCount   int
	ExampleScores []float64
}

// isBetterThan ranks metrics by validation score first, success rate
// second, and latency last — mirroring how a human would break ties: a
// model that scores meaningfully higher wins outright; among near-ties,
// the more reliable one wins; among near-ties on both, the faster one
// wins.
func (m PerformanceMetrics) isBetterThan(other PerformanceMetrics) bool {
	if math.Abs(m.AvgScore-other.AvgScore) > 2.0 {
		return m.AvgScore > other.AvgScore
	}
	if math.Abs(m.SuccessRate-other.SuccessRate) > 0.05 {
		return m.SuccessRate > other.SuccessRate
	}
	return m.AvgLatency < other.AvgLatency
}

// PerformanceTracker records per-artifact-type evaluation history, tracks
// the best model seen for each type, and detects when training has
// plateaued.
type PerformanceTracker struct {
	mu      sync.Mutex
	history map[string][]PerformanceMetrics
	best    map[string]PerformanceMetrics
}

// NewPerformanceTracker builds an empty tracker.
func NewPerformanceTracker() *PerformanceTracker {
	return &PerformanceTracker{
		history: make(map[string][]PerformanceMetrics),
		best:    make(map[string]PerformanceMetrics),
	}
}

// RecordMetrics appends an evaluation to history and updates the
// artifact type's best model if this one beats it.
func (t *PerformanceTracker) RecordMetrics(m PerformanceMetrics) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.history[m.ArtifactType] = append(t.history[m.ArtifactType], m)

	current, ok := t.best[m.ArtifactType]
	if !ok || m.isBetterThan(current) {
		t.best[m.ArtifactType] = m
	}
}

// Trend is the performance history for one artifact type, trimmed to the
// most recent lastN evaluations if lastN > 0.
type Trend struct {
	Timestamps  []time.Time
	Scores      []float64
	SuccessRate []float64
	Latencies   []time.Duration
	Rewards     []float64
}

// GetTrend returns artifactType's performance trend, optionally limited
// to the most recent lastN evaluations.
func (t *PerformanceTracker) GetTrend(artifactType string, lastN int) Trend {
	t.mu.Lock()
	history := append([]PerformanceMetrics(nil), t.history[artifactType]...)
	t.mu.Unlock()

	if lastN > 0 && len(history) > lastN {
		history = history[len(history)-lastN:]
	}

	trend := Trend{}
	for _, m := range history {
		trend.Timestamps = append(trend.Timestamps, m.Timestamp)
		trend.Scores = append(trend.Scores, m.AvgScore)
		trend.SuccessRate = append(trend.SuccessRate, m.SuccessRate)
		trend.Latencies = append(trend.Latencies, m.AvgLatency)
		trend.Rewards = append(trend.Rewards, m.AvgReward)
	}
	return trend
}

// CheckEarlyStopping reports whether artifactType's recent evaluations
// show no improvement of at least minImprovement points over the last
// patience evaluations, signaling training should stop.
func (t *PerformanceTracker) CheckEarlyStopping(artifactType string, patience int, minImprovement float64) bool {
	t.mu.Lock()
	history := append([]PerformanceMetrics(nil), t.history[artifactType]...)
	t.mu.Unlock()

	if len(history) < patience+1 {
		return false
	}

	recent := history[len(history)-(patience+1):]
	bestScore := recent[0].AvgScore
	for _, m := range recent[1:] {
		if m.AvgScore >= bestScore+minImprovement {
			return false
		}
		if m.AvgScore > bestScore {
			bestScore = m.AvgScore
		}
	}
	return true
}

// GetBestModel returns the best recorded metrics for artifactType, if any.
func (t *PerformanceTracker) GetBestModel(artifactType string) (PerformanceMetrics, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.best[artifactType]
	return m, ok
}

// SplitTrainVal partitions examples into train and validation sets,
// stratified by artifact type. Each stratum smaller than 5 examples goes
// entirely to train, so such a type has no validation examples. Otherwise the
// stratum is shuffled under a fixed seed (so repeated calls on the same
// input are reproducible) and the validation slice is
// max(minValidationSamples, n*defaultValidationSplit) examples, capped at
// half the stratum.
func SplitTrainVal(examples []Example) (train, val []Example) {
	groups := make(map[string][]Example)
	var order []string
	for _, e := range examples {
		if _, seen := groups[e.ArtifactType]; !seen {
			order = append(order, e.ArtifactType)
		}
		groups[e.ArtifactType] = append(groups[e.ArtifactType], e)
	}

	rng := rand.New(rand.NewSource(splitSeed))
	for _, artifactType := range order {
		group := groups[artifactType]
		n := len(group)
		if n < 5 {
			train = append(train, group...)
			continue
		}

		valSize := int(float64(n) * defaultValidationSplit)
		if valSize < minValidationSamples {
			valSize = minValidationSamples
		}
		if valSize > n/2 {
			valSize = n / 2
		}

		shuffled := append([]Example(nil), group...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		val = append(val, shuffled[:valSize]...)
		train = append(train, shuffled[valSize:]...)
	}

	return train, val
}
