package finetune

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/notekiln/forge/core"
	"github.com/notekiln/forge/training"
)

// typePool is the buffer and bookkeeping for one artifact type.
type typePool struct {
	examples       []TrainingExample
	totalAdmitted  int
	totalDiscarded int
	lastBatchAt    time.Time
	curriculum     *training.Curriculum
}

// Pool is a type-scoped buffer of quality-gated training examples that,
// once the incremental or major threshold is crossed, assembles a
// TrainingBatch via curriculum learning, active learning, hard-negative
// mining, augmentation, and hyperparameter lookup.
type Pool struct {
	mu    sync.Mutex
	types map[string]*typePool

	incrementalThreshold int
	majorThreshold       int

	batchSizer    *training.BatchSizer
	activeLearner *training.ActiveLearner
	hardNegatives *training.HardNegativeMiner
	augmenter     *training.Augmenter
	hparams       *training.HyperparameterStore

	logger core.Logger

	// OnIncrementalBatch and OnMajorBatch are optional hooks invoked after
	// a batch is assembled, on the goroutine that crossed the threshold.
	// Wired at the composition root; left nil, batches are simply
	// retained in history.
	OnIncrementalBatch func(TrainingBatch)
	OnMajorBatch       func(TrainingBatch)

	history map[string][]TrainingBatch
}

// Option configures a Pool at construction.
type Option func(*Pool)

// WithThresholds overrides the default incremental/major thresholds.
func WithThresholds(incremental, major int) Option {
	return func(p *Pool) {
		p.incrementalThreshold = incremental
		p.majorThreshold = major
	}
}

// WithHardNegativeMiner wires a miner so batches can be topped up with
// challenging failures. Without one, batches contain only selected
// examples from the pool itself.
func WithHardNegativeMiner(m *training.HardNegativeMiner) Option {
	return func(p *Pool) { p.hardNegatives = m }
}

// NewPool builds a Pool with spec-documented defaults: an incremental
// threshold of 50 examples and a major threshold of 2000.
func NewPool(logger core.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("forge/finetune")
	}

	p := &Pool{
		types:                make(map[string]*typePool),
		incrementalThreshold: core.DefaultIncrementalThreshold,
		majorThreshold:       core.DefaultMajorThreshold,
		batchSizer:           training.NewBatchSizer(),
		activeLearner:        training.NewActiveLearner(),
		augmenter:            training.NewAugmenter(),
		hparams:              training.NewHyperparameterStore(),
		logger:               logger,
		history:              make(map[string][]TrainingBatch),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pool) poolFor(artifactType string) *typePool {
	tp, ok := p.types[artifactType]
	if !ok {
		tp = &typePool{curriculum: training.NewCurriculum()}
		p.types[artifactType] = tp
	}
	return tp
}

// Add admits example if it passes the quality gate (score >= 70, not
// flagged generic, "success" feedback scoring at least 80), appends it to
// its type's buffer, and emits an incremental or major training batch if
// the corresponding threshold was just crossed. Returns whether the
// example was admitted.
func (p *Pool) Add(example TrainingExample) bool {
	if example.QualityScore < 70 {
		p.mu.Lock()
		p.poolFor(example.ArtifactType).totalDiscarded++
		p.mu.Unlock()
		return false
	}
	if example.IsGenericContent {
		p.mu.Lock()
		p.poolFor(example.ArtifactType).totalDiscarded++
		p.mu.Unlock()
		return false
	}
	if example.FeedbackType == training.FeedbackSuccess && example.QualityScore < 80 {
		p.mu.Lock()
		p.poolFor(example.ArtifactType).totalDiscarded++
		p.mu.Unlock()
		return false
	}

	p.mu.Lock()
	tp := p.poolFor(example.ArtifactType)
	tp.examples = append(tp.examples, example)
	tp.totalAdmitted++
	count := len(tp.examples)
	p.mu.Unlock()

	switch {
	case count == p.majorThreshold || (count > p.majorThreshold && count%p.majorThreshold == 0):
		p.emitBatch(example.ArtifactType, BatchMajor)
	case count%p.incrementalThreshold == 0:
		p.emitBatch(example.ArtifactType, BatchIncremental)
	}

	return true
}

// emitBatch runs the full selection pipeline for artifactType and invokes
// the matching hook. The pool buffer is left intact; ClearPool is the only
// way to reset it, once an external trainer has consumed the batch.
func (p *Pool) emitBatch(artifactType string, kind BatchKind) {
	p.mu.Lock()
	tp := p.poolFor(artifactType)
	buffer := append([]TrainingExample(nil), tp.examples...)
	curriculum := tp.curriculum
	p.mu.Unlock()

	if len(buffer) == 0 {
		return
	}

	avgQuality := avgQualityOf(buffer)
	targetSize := p.batchSizer.CalculateOptimalSize(artifactType, len(buffer), avgQuality/100)
	if targetSize == 0 {
		targetSize = len(buffer)
	}

	examples := make([]training.Example, len(buffer))
	for i, te := range buffer {
		examples[i] = toExample(te)
	}

	buckets := curriculum.OrganizeByDifficulty(examples)
	candidatePool, stage := curriculum.NextBatch(buckets, targetSize*2)

	var selected []training.Example
	if len(candidatePool) > targetSize {
		selections := p.activeLearner.SelectInformative(candidatePool, targetSize, nil)
		for _, s := range selections {
			selected = append(selected, s.Example)
		}
	} else {
		selected = candidatePool
	}

	batchExamples := make([]TrainingExample, 0, len(selected))
	for _, e := range selected {
		batchExamples = append(batchExamples, fromExample(e, SourceFeedback))
	}

	hardNegativeCount := 0
	if p.hardNegatives != nil {
		limit := targetSize / 4
		if limit > 0 {
			for _, fc := range p.hardNegatives.GetHardNegatives(artifactType, 0, limit) {
				batchExamples = append(batchExamples, TrainingExample{
					ArtifactType: artifactType,
					Instruction:  "Generate " + artifactType,
					Input:        fc.InputData,
					Output:       fc.Output,
					QualityScore: fc.ValidationScore,
					RewardSignal: -0.5,
					Source:       SourceFeedback,
					FeedbackType: training.FeedbackValidationFailure,
					Timestamp:    fc.Timestamp,
				})
				hardNegativeCount++
			}
		}
	}

	augmentable := make([]training.AugmentableExample, len(batchExamples))
	for i, te := range batchExamples {
		augmentable[i] = training.AugmentableExample{
			InputData:    te.Input,
			Output:       te.Output,
			Context:      map[string]interface{}{"rag": artifactType},
			ArtifactType: te.ArtifactType,
			QualityScore: te.QualityScore,
		}
	}
	augmented := p.augmenter.AugmentDataset(augmentable)

	finalExamples := make([]TrainingExample, len(augmented))
	for i, a := range augmented {
		source := SourceFeedback
		if i >= len(batchExamples) {
			source = SourceSynthetic
		}
		finalExamples[i] = TrainingExample{
			ArtifactType: a.ArtifactType,
			Instruction:  "Generate " + a.ArtifactType,
			Input:        a.InputData,
			Output:       a.Output,
			QualityScore: a.QualityScore,
			Source:       source,
		}
	}

	hparamConfig := p.hparams.LoadBest(artifactType)

	p.batchSizer.RecordBatchCreation(artifactType, len(selected), avgQuality/100)

	batch := TrainingBatch{
		BatchID:         "batch_" + artifactType + "_" + ulid.Make().String(),
		ArtifactType:    artifactType,
		Kind:            kind,
		CreatedAt:       batchTimestamp(),
		Examples:        finalExamples,
		HardNegatives:   hardNegativeCount,
		CurriculumStage: stage,
		AvgReward:       avgQuality,
		Hyperparameters: hparamConfig,
	}

	p.mu.Lock()
	tp.lastBatchAt = batch.CreatedAt
	p.history[artifactType] = append(p.history[artifactType], batch)
	p.mu.Unlock()

	p.logger.Info("training batch emitted", map[string]interface{}{
		"artifact_type":  artifactType,
		"kind":           string(kind),
		"batch_id":       batch.BatchID,
		"example_count":  len(finalExamples),
		"hard_negatives": hardNegativeCount,
	})

	switch kind {
	case BatchMajor:
		if p.OnMajorBatch != nil {
			p.OnMajorBatch(batch)
		}
	case BatchIncremental:
		if p.OnIncrementalBatch != nil {
			p.OnIncrementalBatch(batch)
		}
	}
}

func avgQualityOf(examples []TrainingExample) float64 {
	if len(examples) == 0 {
		return 0
	}
	total := 0.0
	for _, e := range examples {
		total += e.QualityScore
	}
	return total / float64(len(examples))
}

// batchTimestamp is a seam so tests can observe deterministic ordering
// without depending on wall-clock time directly in assertions.
var batchTimestamp = time.Now

// GetPoolStats returns the buffer state for artifactType.
func (p *Pool) GetPoolStats(artifactType string) PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	tp, ok := p.types[artifactType]
	if !ok {
		return PoolStats{ArtifactType: artifactType}
	}
	count := len(tp.examples)
	return PoolStats{
		ArtifactType:        artifactType,
		Count:               count,
		TotalAdmitted:       tp.totalAdmitted,
		TotalDiscarded:      tp.totalDiscarded,
		ReadyForIncremental: count >= p.incrementalThreshold,
		ReadyForMajor:       count >= p.majorThreshold,
		LastBatchAt:         tp.lastBatchAt,
	}
}

// ClearPool discards artifactType's buffered examples, e.g. after an
// external trainer has consumed a major batch. Returns false if no pool
// exists for artifactType.
func (p *Pool) ClearPool(artifactType string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	tp, ok := p.types[artifactType]
	if !ok {
		return false
	}
	tp.examples = nil
	return true
}

// History returns the batches emitted so far for artifactType, oldest first.
func (p *Pool) History(artifactType string) []TrainingBatch {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]TrainingBatch(nil), p.history[artifactType]...)
}
