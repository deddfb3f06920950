package training

import (
	"math/rand"
	"sync"
)

// CurriculumStage is a progressive difficulty stage a finetuning pool walks
// through as a model's performance improves.
type CurriculumStage string

const (
	StageEasy   CurriculumStage = "easy"
	StageMedium CurriculumStage = "medium"
	StageHard   CurriculumStage = "hard"
	StageMixed  CurriculumStage = "mixed"
)

// stageMix gives the easy/medium/hard composition percentages for a batch
// drawn at each stage. Hard examples never dominate a batch, even once the
// curriculum reaches its final mixed stage, so training never destabilizes
// on the hardest fraction of the pool.
var stageMix = map[CurriculumStage][3]float64{
	StageEasy:   {1.0, 0.0, 0.0},
	StageMedium: {0.7, 0.3, 0.0},
	StageHard:   {0.5, 0.3, 0.2},
	StageMixed:  {0.4, 0.3, 0.3},
}

// Curriculum stages a pool's examples from easy to hard and tracks when a
// model has mastered its current stage and should progress.
type Curriculum struct {
	easyThreshold    float64
	mediumThreshold  float64
	progressionScore float64
	minEvaluations   int

	mu           sync.Mutex
	stage        CurriculumStage
	stagePerform map[CurriculumStage][]float64
}

// NewCurriculum builds a Curriculum starting at the easy stage with the
// finetuning pool's default thresholds.
func NewCurriculum() *Curriculum {
	return &Curriculum{
		easyThreshold:    0.35,
		mediumThreshold:  0.65,
		progressionScore: 75.0,
		minEvaluations:   3,
		stage:            StageEasy,
		stagePerform: map[CurriculumStage][]float64{
			StageEasy:   nil,
			StageMedium: nil,
			StageHard:   nil,
			StageMixed:  nil,
		},
	}
}

// Stage reports the curriculum's current stage.
func (c *Curriculum) Stage() CurriculumStage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// OrganizeByDifficulty buckets examples into easy/medium/hard by their
// estimated difficulty, using the same formula the reward calculator's
// difficulty multiplier uses.
func (c *Curriculum) OrganizeByDifficulty(examples []Example) map[CurriculumStage][]Example {
	buckets := map[CurriculumStage][]Example{StageEasy: {}, StageMedium: {}, StageHard: {}}
	for _, ex := range examples {
		d := difficultyOf(ex)
		switch {
		case d <= c.easyThreshold:
			buckets[StageEasy] = append(buckets[StageEasy], ex)
		case d <= c.mediumThreshold:
			buckets[StageMedium] = append(buckets[StageMedium], ex)
		default:
			buckets[StageHard] = append(buckets[StageHard], ex)
		}
	}
	return buckets
}

// NextBatch draws a batch_size batch from the staged buckets using the
// current stage's easy/medium/hard composition, sampling without
// replacement where enough examples exist and repeating some where they
// don't.
func (c *Curriculum) NextBatch(buckets map[CurriculumStage][]Example, batchSize int) ([]Example, CurriculumStage) {
	c.mu.Lock()
	stage := c.stage
	c.mu.Unlock()

	mix := stageMix[stage]
	mediumCount := int(float64(batchSize) * mix[1])
	hardCount := int(float64(batchSize) * mix[2])
	easyCount := batchSize - mediumCount - hardCount

	batch := make([]Example, 0, batchSize)
	batch = append(batch, sampleExamples(buckets[StageEasy], easyCount)...)
	batch = append(batch, sampleExamples(buckets[StageMedium], mediumCount)...)
	batch = append(batch, sampleExamples(buckets[StageHard], hardCount)...)

	rand.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })
	return batch, stage
}

func sampleExamples(pool []Example, n int) []Example {
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	if len(pool) >= n {
		idx := rand.Perm(len(pool))[:n]
		out := make([]Example, n)
		for i, j := range idx {
			out[i] = pool[j]
		}
		return out
	}
	out := make([]Example, 0, n)
	out = append(out, pool...)
	for len(out) < n {
		out = append(out, pool[rand.Intn(len(pool))])
	}
	return out
}

// RecordPerformance logs a validation score achieved while training on the
// given stage, feeding ShouldProgress's check of the most recent scores.
func (c *Curriculum) RecordPerformance(stage CurriculumStage, score float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stagePerform[stage] = append(c.stagePerform[stage], score)
}

// ShouldProgress reports whether the curriculum has mastered its current
// stage: at least minEvaluations recorded, and each of the most recent
// minEvaluations scores at or above the progression score.
func (c *Curriculum) ShouldProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	history := c.stagePerform[c.stage]
	if len(history) < c.minEvaluations {
		return false
	}
	recent := history[len(history)-c.minEvaluations:]
	for _, s := range recent {
		if s < c.progressionScore {
			return false
		}
	}
	return true
}

// Progress advances to the next curriculum stage. Calling it at the final
// (mixed) stage is a no-op.
func (c *Curriculum) Progress() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.stage {
	case StageEasy:
		c.stage = StageMedium
	case StageMedium:
		c.stage = StageHard
	case StageHard:
		c.stage = StageMixed
	}
}
