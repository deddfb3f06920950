package feedback

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/notekiln/forge/core"
	"github.com/notekiln/forge/finetune"
	"github.com/notekiln/forge/training"
)

// PoolAdmitter is the subset of finetune.Pool's surface the Store needs.
// Declared locally so Store can be exercised against a fake in tests
// without constructing a real Pool.
type PoolAdmitter interface {
	Add(example finetune.TrainingExample) bool
	GetPoolStats(artifactType string) finetune.PoolStats
}

// HardNegativeRecorder is the subset of training.HardNegativeMiner's
// surface the Store uses to mine low-scoring feedback for later retraining.
type HardNegativeRecorder interface {
	RecordFailure(inputData, output string, validationScore float64, artifactType, expectedOutput string, contextSize int) (training.FailureCase, bool)
}

// hardNegativeFailureFloor mirrors the wrapping service's own pre-check
// before handing a low scorer to the miner (which re-applies its own
// threshold, also 75, internally).
const hardNegativeFailureFloor = 75.0

// Store is the append-only feedback log. Every RecordFeedback call appends
// one line to events.jsonl, so a crash mid-write loses at most the last,
// incomplete record on the next read.
type Store struct {
	mu   sync.Mutex
	path string

	events []Event // in-memory index for history/stats queries

	calculator    *training.Calculator
	pool          PoolAdmitter
	hardNegatives HardNegativeRecorder

	logger core.Logger
}

// New opens (creating if necessary) a feedback log rooted at dir, reading
// back any events already recorded there.
func New(dir string, pool PoolAdmitter, logger core.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("feedback: creating %s: %w", dir, err)
	}

	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("forge/feedback")
	}

	s := &Store{
		path:       filepath.Join(dir, "events.jsonl"),
		calculator: training.NewCalculator(),
		pool:       pool,
		logger:     logger,
	}

	events, err := s.loadExisting()
	if err != nil {
		return nil, err
	}
	s.events = events

	return s, nil
}

// WithHardNegativeMiner wires a miner so feedback scoring below the
// failure floor is recorded for later hard-negative mining.
func (s *Store) WithHardNegativeMiner(m HardNegativeRecorder) *Store {
	s.hardNegatives = m
	return s
}

func (s *Store) loadExisting() ([]Event, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("feedback: opening %s: %w", s.path, err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			// A truncated last line from a crash mid-append is tolerated;
			// anything else would indicate on-disk corruption worth
			// knowing about but not worth failing startup over.
			s.logger.Warn("skipping unreadable feedback record", map[string]interface{}{"error": err.Error()})
			continue
		}
		events = append(events, e)
	}
	return events, scanner.Err()
}

func (s *Store) appendLine(e Event) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("feedback: encoding event: %w", err)
	}
	raw = append(raw, '\n')

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", core.ErrPersistence, s.path, err)
	}
	defer f.Close()

	if _, err := f.Write(raw); err != nil {
		return fmt.Errorf("%w: appending to %s: %v", core.ErrPersistence, s.path, err)
	}
	return nil
}

// RecordFeedback appends a feedback event, scores its reward, and — when
// the normalized score clears the pool-admission target and the content
// isn't flagged generic — admits a TrainingExample to the finetuning pool.
func (s *Store) RecordFeedback(artifactID, artifactType, aiOutput string, validationScore float64, feedbackType training.FeedbackType, correctedOutput string, context map[string]interface{}) (RecordResult, error) {
	score := normalizeScore(feedbackType, validationScore)

	event := Event{
		ArtifactID:      artifactID,
		ArtifactType:    artifactType,
		FeedbackType:    feedbackType,
		InputData:       inputDataOf(context),
		AIOutput:        aiOutput,
		CorrectedOutput: correctedOutput,
		ValidationScore: score,
		Context:         context,
		Timestamp:       eventTimestamp(),
	}

	event.RewardSignal = s.calculator.Calculate(training.RewardEvent{
		ArtifactType:    artifactType,
		FeedbackType:    feedbackType,
		InputData:       event.InputData,
		ContextSize:     contextSizeOf(context),
		ValidationScore: score,
		AIOutput:        aiOutput,
		CorrectedOutput: correctedOutput,
		Timestamp:       event.Timestamp,
	})

	s.mu.Lock()
	if err := s.appendLine(event); err != nil {
		s.mu.Unlock()
		return RecordResult{}, err
	}
	s.events = append(s.events, event)
	s.mu.Unlock()

	s.logger.Info("feedback recorded", map[string]interface{}{
		"artifact_id":   artifactID,
		"artifact_type": artifactType,
		"feedback_type": string(feedbackType),
		"score":         score,
		"reward":        event.RewardSignal,
	})

	if s.hardNegatives != nil && score < hardNegativeFailureFloor {
		s.hardNegatives.RecordFailure(event.InputData, aiOutput, score, artifactType, correctedOutput, len(event.InputData))
	}

	trainingTriggered := false
	if score >= core.PoolAdmissionTarget && !event.isGenericContent() && s.pool != nil {
		target := aiOutput
		if correctedOutput != "" {
			target = correctedOutput
		}
		admitted := s.pool.Add(finetune.TrainingExample{
			ArtifactType: artifactType,
			Instruction:  "Generate " + artifactType,
			Input:        event.InputData,
			Output:       target,
			QualityScore: score,
			RewardSignal: event.RewardSignal,
			Source:       finetune.SourceFeedback,
			FeedbackType: feedbackType,
			ContextSize:  contextSizeOf(context),
			Timestamp:    event.Timestamp,
		})
		trainingTriggered = admitted
	}

	return RecordResult{
		EventRecorded:     true,
		TrainingTriggered: trainingTriggered,
		Message:           "feedback processed",
	}, nil
}

func inputDataOf(context map[string]interface{}) string {
	if context == nil {
		return ""
	}
	v, _ := context["input_data"].(string)
	return v
}

// contextSizeOf estimates how much retrieved context backed a generation,
// the same signal the curriculum learner and reward calculator use to
// judge difficulty. It reads the "rag" key a caller may have stashed in
// Context (the same key the augmenter's context-variation method looks
// for); callers that don't track retrieval context get 0, which the
// difficulty formula treats as "context wasn't a factor" rather than
// "unusually easy".
func contextSizeOf(context map[string]interface{}) int {
	if context == nil {
		return 0
	}
	if rag, ok := context["rag"].(string); ok {
		return len(rag)
	}
	return 0
}

// eventTimestamp is a seam so tests can freeze time without depending on
// wall-clock calls directly in assertions.
var eventTimestamp = time.Now

// TrainingReady reports whether artifactType's pool (or, if empty, any
// type's pool) has accumulated enough examples to justify triggering an
// incremental training batch.
func (s *Store) TrainingReady(artifactType string) ReadinessResult {
	if s.pool == nil {
		return ReadinessResult{}
	}

	types := []string{artifactType}
	if artifactType == "" {
		types = s.knownArtifactTypes()
	}

	result := ReadinessResult{Needed: core.DefaultIncrementalThreshold}
	for _, t := range types {
		stats := s.pool.GetPoolStats(t)
		if stats.Count > result.Have {
			result.Have = stats.Count
		}
		if stats.ReadyForIncremental {
			result.Ready = true
		}
	}
	return result
}

func (s *Store) knownArtifactTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var types []string
	for _, e := range s.events {
		if !seen[e.ArtifactType] {
			seen[e.ArtifactType] = true
			types = append(types, e.ArtifactType)
		}
	}
	return types
}

// History returns recorded feedback, optionally filtered by artifactID
// and/or artifactType, most recent first, truncated to limit (0 = no limit).
func (s *Store) History(artifactID, artifactType string, limit int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Event
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if artifactID != "" && e.ArtifactID != artifactID {
			continue
		}
		if artifactType != "" && e.ArtifactType != artifactType {
			continue
		}
		matched = append(matched, e)
		if limit > 0 && len(matched) >= limit {
			break
		}
	}
	return matched
}

// Stats summarizes recorded feedback.
func (s *Store) Stats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	byType := make(map[string]int)
	for _, e := range s.events {
		byType[string(e.FeedbackType)]++
	}
	return map[string]interface{}{
		"total_feedback_events": len(s.events),
		"by_feedback_type":      byType,
	}
}
