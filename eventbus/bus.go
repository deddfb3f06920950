package eventbus

import (
	"sync"
	"time"

	"github.com/notekiln/forge/core"
)

const (
	// subscriberBufferSize bounds how many events a slow subscriber can lag
	// behind. Progress and chunk events are dropped once all but one slot
	// are full; the last slot is kept for the terminal event.
	subscriberBufferSize = 64

	// terminalSendTimeout bounds the "generous timeout" blocking send used
	// for started/complete/error events, so one permanently stuck
	// subscriber cannot wedge a publisher goroutine forever.
	terminalSendTimeout = 5 * time.Second
)

type subscriber struct {
	ch chan Event
}

type topic struct {
	mu          sync.Mutex
	subscribers []*subscriber
	terminal    *Event
}

// Bus fans job-scoped events out to subscribers. One topic exists per
// job_id, created lazily on first Publish or Subscribe and removed by
// Evict once the owning job leaves the job table.
type Bus struct {
	logger core.Logger

	mu     sync.RWMutex
	topics map[string]*topic
}

// New creates an empty event bus.
func New(logger core.Logger) *Bus {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("forge/eventbus")
	}
	return &Bus{
		logger: logger,
		topics: make(map[string]*topic),
	}
}

func (b *Bus) topicFor(jobID string) *topic {
	b.mu.RLock()
	t, ok := b.topics[jobID]
	b.mu.RUnlock()
	if ok {
		return t
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.topics[jobID]; ok {
		return t
	}
	t = &topic{}
	b.topics[jobID] = t
	return t
}

// Subscribe attaches to job_id's event stream. A subscriber that attaches
// before the terminal event receives every event from this point forward,
// in emission order, ending with the terminal event. A subscriber that
// attaches after the terminal event has already fired receives that one
// cached event on an already-closed channel.
func (b *Bus) Subscribe(jobID string) <-chan Event {
	t := b.topicFor(jobID)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminal != nil {
		ch := make(chan Event, 1)
		ch <- *t.terminal
		close(ch)
		return ch
	}

	ch := make(chan Event, subscriberBufferSize)
	t.subscribers = append(t.subscribers, &subscriber{ch: ch})
	return ch
}

// Evict drops a job's topic entirely, e.g. when the orchestrator's janitor
// retires a terminal job past its retention window. Subscriber channels
// already handed out are left for their owners to stop reading; Evict does
// not forcibly close them since a concurrent Publish could still be
// mid-send.
func (b *Bus) Evict(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.topics, jobID)
}

// EmitStarted publishes the single started event a job emits at the
// beginning of its ladder.
func (b *Bus) EmitStarted(jobID string) {
	b.publish(Event{JobID: jobID, Kind: KindStarted, Timestamp: time.Now()})
}

// EmitProgress publishes a progress update. Progress events are dropped
// for any subscriber whose buffer is full rather than blocking the
// publisher, per the Event Bus's backpressure policy.
func (b *Bus) EmitProgress(jobID string, progress float64, message string, qualityPrediction *float64) {
	b.publish(Event{
		JobID:             jobID,
		Kind:              KindProgress,
		Timestamp:         time.Now(),
		Progress:          progress,
		Message:           message,
		QualityPrediction: qualityPrediction,
	})
}

// EmitChunk publishes one streamed token/chunk. Same drop policy as
// EmitProgress.
func (b *Bus) EmitChunk(jobID, chunk string) {
	b.publish(Event{JobID: jobID, Kind: KindChunk, Timestamp: time.Now(), Chunk: chunk})
}

// EmitComplete publishes the terminal success event and closes the topic
// out for every current subscriber.
func (b *Bus) EmitComplete(jobID, artifactID string, validationScore float64, isValid bool, artifact string) {
	b.publish(Event{
		JobID:           jobID,
		Kind:            KindComplete,
		Timestamp:       time.Now(),
		ArtifactID:      artifactID,
		ValidationScore: validationScore,
		IsValid:         isValid,
		Artifact:        artifact,
	})
}

// EmitError publishes the terminal failure event and closes the topic out
// for every current subscriber. The orchestrator also uses this for a
// cancelled job (with a cancellation message) so that every job still
// emits exactly one terminal bus event, even though cancellation must
// never emit a complete event.
func (b *Bus) EmitError(jobID, message string) {
	b.publish(Event{JobID: jobID, Kind: KindError, Timestamp: time.Now(), Error: message})
}

func (b *Bus) publish(ev Event) {
	t := b.topicFor(ev.JobID)

	t.mu.Lock()
	if ev.Kind.Terminal() {
		t.terminal = &ev
	}
	subs := make([]*subscriber, len(t.subscribers))
	copy(subs, t.subscribers)
	t.mu.Unlock()

	for _, sub := range subs {
		if ev.Kind == KindProgress || ev.Kind == KindChunk {
			sent := false
			if len(sub.ch) < cap(sub.ch)-1 {
				select {
				case sub.ch <- ev:
					sent = true
				default:
				}
			}
			if !sent {
				b.logger.Debug("dropping event for slow subscriber", map[string]interface{}{
					"job_id": ev.JobID,
					"kind":   string(ev.Kind),
				})
			}
			continue
		}

		select {
		case sub.ch <- ev:
		case <-time.After(terminalSendTimeout):
			b.logger.Warn("subscriber did not accept terminal-path event within timeout", map[string]interface{}{
				"job_id": ev.JobID,
				"kind":   string(ev.Kind),
			})
		}
	}

	if ev.Kind.Terminal() {
		t.mu.Lock()
		for _, sub := range t.subscribers {
			close(sub.ch)
		}
		t.subscribers = nil
		t.mu.Unlock()
	}
}
