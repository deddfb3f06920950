package generation

import (
	"sort"
	"sync"
	"time"

	"github.com/notekiln/forge/core"
)

// jobTable is the orchestrator's bounded, in-memory view of every job.
// Mutated by a single goroutine per job (the one running its worker) plus
// the orchestrator's Submit/Cancel/evict paths; external readers observe a
// consistent snapshot through a single RWMutex, since the job population is
// small enough that sharding buys nothing, per the concurrency model.
type jobTable struct {
	mu            sync.RWMutex
	jobs          map[string]*core.Job
	insertOrder   []string
	maxJobs       int
	jobRetention  time.Duration
}

func newJobTable(maxJobs int, jobRetention time.Duration) *jobTable {
	return &jobTable{
		jobs:         make(map[string]*core.Job),
		maxJobs:      maxJobs,
		jobRetention: jobRetention,
	}
}

func (t *jobTable) insert(job *core.Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[job.JobID] = job
	t.insertOrder = append(t.insertOrder, job.JobID)
}

func (t *jobTable) get(jobID string) (*core.Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	j, ok := t.jobs[jobID]
	return j, ok
}

// list returns up to limit jobs, most recently created first. limit<=0
// means unbounded.
func (t *jobTable) list(limit int) []*core.Job {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*core.Job, 0, len(t.jobs))
	for _, id := range t.insertOrder {
		if j, ok := t.jobs[id]; ok {
			out = append(out, j)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// evictExpired removes terminal jobs older than jobRetention, then, if the
// table still exceeds maxJobs, evicts the oldest remaining terminal jobs
// until it fits. Active jobs are never evicted, so the table can
// temporarily exceed maxJobs when every job in it is still running.
func (t *jobTable) evictExpired() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	evicted := 0

	for id, j := range t.jobs {
		if !j.Status.IsTerminal() {
			continue
		}
		if j.CompletedAt != nil && now.Sub(*j.CompletedAt) > t.jobRetention {
			delete(t.jobs, id)
			evicted++
		}
	}

	if len(t.jobs) <= t.maxJobs {
		t.compactLocked()
		return evicted
	}

	type terminalJob struct {
		id          string
		completedAt time.Time
	}
	var terminals []terminalJob
	for id, j := range t.jobs {
		if j.Status.IsTerminal() {
			at := j.CreatedAt
			if j.CompletedAt != nil {
				at = *j.CompletedAt
			}
			terminals = append(terminals, terminalJob{id: id, completedAt: at})
		}
	}
	sort.Slice(terminals, func(i, j int) bool {
		return terminals[i].completedAt.Before(terminals[j].completedAt)
	})

	over := len(t.jobs) - t.maxJobs
	for i := 0; i < over && i < len(terminals); i++ {
		delete(t.jobs, terminals[i].id)
		evicted++
	}

	t.compactLocked()
	return evicted
}

// compactLocked drops insertOrder entries for jobs no longer present.
// Caller must hold the write lock.
func (t *jobTable) compactLocked() {
	kept := t.insertOrder[:0]
	for _, id := range t.insertOrder {
		if _, ok := t.jobs[id]; ok {
			kept = append(kept, id)
		}
	}
	t.insertOrder = kept
}

func (t *jobTable) count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs)
}
