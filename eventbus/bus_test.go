package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeBeforeTerminalReceivesFullSequenceInOrder(t *testing.T) {
	b := New(nil)
	ch := b.Subscribe("job-1")

	b.EmitStarted("job-1")
	b.EmitProgress("job-1", 10, "step 1", nil)
	b.EmitComplete("job-1", "artifact-1", 92, true, "content")

	var kinds []Kind
	for ev := range ch {
		kinds = append(kinds, ev.Kind)
	}

	assert.Equal(t, []Kind{KindStarted, KindProgress, KindComplete}, kinds)
}

func TestSubscribeAfterTerminalReceivesTerminalOnly(t *testing.T) {
	b := New(nil)
	b.EmitStarted("job-2")
	b.EmitError("job-2", "model unavailable")

	ch := b.Subscribe("job-2")

	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}

	require.Len(t, events, 1)
	assert.Equal(t, KindError, events[0].Kind)
	assert.Equal(t, "model unavailable", events[0].Error)
}

func TestProgressEventsDroppedForSlowSubscriberDoNotBlockPublisher(t *testing.T) {
	b := New(nil)
	ch := b.Subscribe("job-3")

	for i := 0; i < subscriberBufferSize+10; i++ {
		b.EmitProgress("job-3", float64(i), "tick", nil)
	}
	b.EmitComplete("job-3", "artifact-3", 100, true, "x")

	var last Event
	for ev := range ch {
		last = ev
	}

	assert.Equal(t, KindComplete, last.Kind)
}

func TestEachSubscriberReceivesItsOwnEventSequence(t *testing.T) {
	b := New(nil)
	chA := b.Subscribe("job-4")
	chB := b.Subscribe("job-4")

	b.EmitComplete("job-4", "artifact-4", 88, true, "y")

	evA := <-chA
	evB := <-chB

	assert.Equal(t, KindComplete, evA.Kind)
	assert.Equal(t, KindComplete, evB.Kind)
	_, openA := <-chA
	_, openB := <-chB
	assert.False(t, openA)
	assert.False(t, openB)
}

func TestEvictRemovesTopicWithoutPanicking(t *testing.T) {
	b := New(nil)
	b.EmitStarted("job-5")
	b.Evict("job-5")

	ch := b.Subscribe("job-5")
	select {
	case ev, ok := <-ch:
		t.Fatalf("expected no cached terminal event after evict, got %+v ok=%v", ev, ok)
	case <-time.After(20 * time.Millisecond):
	}
}
