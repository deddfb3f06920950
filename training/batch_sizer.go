package training

import "sync"

// artifactBatchStats tracks the recent history a BatchSizer uses to adjust
// batch size for one artifact type.
type artifactBatchStats struct {
	totalExamples int
	qualityTrend  []float64
}

const qualityTrendWindow = 10

// BatchSizer computes a per-artifact-type training batch size that grows
// with data availability, shrinks for high-quality or rare artifacts (so
// they train sooner), and tracks recent quality trend to nudge batches up
// or down as a model improves or regresses.
type BatchSizer struct {
	minBatchSize  int
	maxBatchSize  int
	targetQuality float64

	mu    sync.Mutex
	stats map[string]*artifactBatchStats
}

// NewBatchSizer builds a BatchSizer with the finetuning pool's default
// bounds: batches of 20 to 100 examples, targeting an average quality
// (reward, normalized) of 0.7.
func NewBatchSizer() *BatchSizer {
	return &BatchSizer{
		minBatchSize:  20,
		maxBatchSize:  100,
		targetQuality: 0.7,
		stats:         make(map[string]*artifactBatchStats),
	}
}

// CalculateOptimalSize returns the batch size to use for artifactType
// given how many quality examples are currently available and their
// average quality, or 0 if there aren't yet enough examples to train on.
func (b *BatchSizer) CalculateOptimalSize(artifactType string, availableExamples int, avgQuality float64) int {
	b.mu.Lock()
	stats, ok := b.stats[artifactType]
	if !ok {
		stats = &artifactBatchStats{}
		b.stats[artifactType] = stats
	}
	totalExamples := stats.totalExamples
	trend := append([]float64(nil), stats.qualityTrend...)
	b.mu.Unlock()

	if availableExamples < b.minBatchSize {
		return 0
	}

	var baseSize int
	switch {
	case availableExamples < 30:
		baseSize = b.minBatchSize
	case availableExamples < 50:
		baseSize = 30
	case availableExamples < 100:
		baseSize = 50
	case availableExamples < 200:
		baseSize = 75
	default:
		baseSize = b.maxBatchSize
	}

	var qualityMultiplier float64
	switch {
	case avgQuality >= 0.8:
		qualityMultiplier = 0.7
	case avgQuality >= b.targetQuality:
		qualityMultiplier = 1.0
	default:
		qualityMultiplier = 1.3
	}

	var rarityMultiplier float64
	switch {
	case totalExamples < 50:
		rarityMultiplier = 0.5
	case totalExamples < 100:
		rarityMultiplier = 0.7
	default:
		rarityMultiplier = 1.0
	}

	trendMultiplier := trendMultiplierFor(trend)

	optimal := int(float64(baseSize) * qualityMultiplier * rarityMultiplier * trendMultiplier)
	if optimal < b.minBatchSize {
		optimal = b.minBatchSize
	}
	if optimal > b.maxBatchSize {
		optimal = b.maxBatchSize
	}
	return optimal
}

// trendMultiplierFor fits a simple linear slope over a quality trend
// window and maps it to a batch-size adjustment: improving quality grows
// batches (model is converging, stable training pays off), declining
// quality shrinks them (more frequent updates needed).
func trendMultiplierFor(trend []float64) float64 {
	n := len(trend)
	if n < 3 {
		return 1.0
	}

	xMean := float64(n-1) / 2.0
	yMean := 0.0
	for _, y := range trend {
		yMean += y
	}
	yMean /= float64(n)

	var numerator, denominator float64
	for i, y := range trend {
		x := float64(i)
		numerator += (x - xMean) * (y - yMean)
		denominator += (x - xMean) * (x - xMean)
	}
	if denominator == 0 {
		return 1.0
	}
	slope := numerator / denominator

	switch {
	case slope > 0.05:
		return 1.2
	case slope > 0.01:
		return 1.1
	case slope < -0.05:
		return 0.8
	case slope < -0.01:
		return 0.9
	default:
		return 1.0
	}
}

// RecordBatchCreation updates the per-type statistics after a batch of
// batchSize examples with the given average quality is emitted.
func (b *BatchSizer) RecordBatchCreation(artifactType string, batchSize int, avgQuality float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats, ok := b.stats[artifactType]
	if !ok {
		stats = &artifactBatchStats{}
		b.stats[artifactType] = stats
	}
	stats.totalExamples += batchSize
	stats.qualityTrend = append(stats.qualityTrend, avgQuality)
	if len(stats.qualityTrend) > qualityTrendWindow {
		stats.qualityTrend = stats.qualityTrend[1:]
	}
}
