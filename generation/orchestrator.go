package generation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/notekiln/forge/cleaner"
	"github.com/notekiln/forge/core"
	"github.com/notekiln/forge/eventbus"
	"github.com/notekiln/forge/finetune"
	"github.com/notekiln/forge/providers"
	"github.com/notekiln/forge/quality"
	"github.com/notekiln/forge/resilience"
	"github.com/notekiln/forge/validation"
	"github.com/notekiln/forge/versionstore"
)

// Orchestrator ties the model backends, context provider, cleaner,
// validator, version store, event bus, and finetuning pool together into
// the generation pipeline. One Orchestrator is constructed per process;
// it owns the job table and spawns one goroutine per submitted job.
type Orchestrator struct {
	config *core.Config
	logger core.Logger

	backends map[string]providers.ModelBackend
	context  providers.ContextProvider
	judge    providers.QualityJudge
	html     HTMLRenderer
	notes    NotesProvider

	cleaner   *cleaner.Cleaner
	validator *validation.Validator
	versions  *versionstore.Store
	bus       *eventbus.Bus
	pool      *finetune.Pool
	ladder    *Ladder

	jobs *jobTable

	breakersMu sync.Mutex
	breakers   map[string]*resilience.CircuitBreaker

	janitorStop chan struct{}
	janitorWG   sync.WaitGroup
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithBackend registers a ModelBackend under modelID, the name ladder.yaml
// rungs reference.
func WithBackend(modelID string, backend providers.ModelBackend) Option {
	return func(o *Orchestrator) { o.backends[modelID] = backend }
}

// WithContextProvider sets the collaborator used to assemble retrieval
// context for a job's notes.
func WithContextProvider(cp providers.ContextProvider) Option {
	return func(o *Orchestrator) { o.context = cp }
}

// WithQualityJudge attaches an optional advisory judge whose score and
// reasoning are stamped onto Version metadata without gating acceptance.
func WithQualityJudge(judge providers.QualityJudge) Option {
	return func(o *Orchestrator) { o.judge = judge }
}

// WithHTMLRenderer attaches the optional mermaid_* -> html_content
// post-pass collaborator.
func WithHTMLRenderer(r HTMLRenderer) Option {
	return func(o *Orchestrator) { o.html = r }
}

// WithNotesProvider attaches the optional folder_id -> notes resolver.
func WithNotesProvider(np NotesProvider) Option {
	return func(o *Orchestrator) { o.notes = np }
}

// WithLadder overrides the ladder built from config.Ladder.RungsPath.
func WithLadder(l *Ladder) Option {
	return func(o *Orchestrator) { o.ladder = l }
}

// WithContextCache wraps whatever ContextProvider an earlier
// WithContextProvider option registered in a context_id-keyed cache backed
// by memory. Supplying this option before WithContextProvider, or without
// one at all, is a no-op: there is nothing to wrap yet.
func WithContextCache(mem core.Memory, namespace string, ttl time.Duration) Option {
	return func(o *Orchestrator) {
		if o.context == nil || mem == nil {
			return
		}
		o.context = providers.NewCachingContextProvider(o.context, mem, namespace, ttl, o.logger)
	}
}

// New builds an Orchestrator from its required collaborators plus options.
// cfg, vstore, bus, pool, and validator must be non-nil; a nil logger is
// replaced with a no-op logger.
func New(
	cfg *core.Config,
	vstore *versionstore.Store,
	bus *eventbus.Bus,
	pool *finetune.Pool,
	validator *validation.Validator,
	logger core.Logger,
	opts ...Option,
) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("generation: config is required")
	}
	if vstore == nil || bus == nil || pool == nil || validator == nil {
		return nil, fmt.Errorf("generation: version store, event bus, finetuning pool, and validator are all required")
	}

	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("forge/generation")
	}

	o := &Orchestrator{
		config:      cfg,
		logger:      logger,
		backends:    make(map[string]providers.ModelBackend),
		cleaner:     cleaner.New(logger),
		validator:   validator,
		versions:    vstore,
		bus:         bus,
		pool:        pool,
		jobs:        newJobTable(cfg.JobTable.MaxJobs, cfg.JobTable.JobRetention),
		breakers:    make(map[string]*resilience.CircuitBreaker),
		janitorStop: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.ladder == nil {
		ladder, err := LoadLadder(cfg.Ladder.RungsPath)
		if err != nil {
			return nil, fmt.Errorf("generation: loading ladder: %w", err)
		}
		o.ladder = ladder
	}

	o.janitorWG.Add(1)
	go o.runJanitor()

	return o, nil
}

// Close stops the janitor goroutine. Jobs still running at Close are left
// to finish on their own; Close does not cancel them.
func (o *Orchestrator) Close() {
	close(o.janitorStop)
	o.janitorWG.Wait()
}

func (o *Orchestrator) runJanitor() {
	defer o.janitorWG.Done()

	interval := o.config.JobTable.JobRetention / 4
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-o.janitorStop:
			return
		case <-ticker.C:
			before := o.jobs.list(0)
			if n := o.jobs.evictExpired(); n > 0 {
				for _, j := range before {
					if _, ok := o.jobs.get(j.JobID); !ok {
						o.bus.Evict(j.JobID)
					}
				}
				o.logger.Debug("janitor evicted terminal jobs", map[string]interface{}{"count": n})
			}
		}
	}
}

func (o *Orchestrator) breakerFor(modelID string) (*resilience.CircuitBreaker, error) {
	o.breakersMu.Lock()
	defer o.breakersMu.Unlock()

	if cb, ok := o.breakers[modelID]; ok {
		return cb, nil
	}

	cb, err := resilience.CreateCircuitBreaker("generation.ladder."+modelID, resilience.ResilienceDependencies{Logger: o.logger})
	if err != nil {
		return nil, err
	}
	o.breakers[modelID] = cb
	return cb, nil
}

// Submit validates the request, allocates a job, spawns its worker, and
// returns immediately with the job id.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (string, error) {
	if req.Notes == "" && req.FolderID == "" && req.ContextID == "" {
		return "", fmt.Errorf("%w: one of notes, folder_id, or context_id is required", core.ErrInvalidRequest)
	}

	opts := req.Options
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = o.config.Ladder.MaxRetries
	}

	jobID := uuid.NewString()
	job := core.NewJob(jobID, req.ArtifactType, opts)
	job.FolderID = req.FolderID
	job.Notes = req.Notes
	job.ContextID = req.ContextID

	workerCtx := job.WithCancel(context.Background())
	o.jobs.insert(job)

	go o.runWorker(workerCtx, job, req)

	return jobID, nil
}

// Generate is Submit's synchronous-leaning sibling: it submits the job and
// waits up to maxWait for a terminal state before falling back to the
// in-progress handle, per the inbound Generate contract.
func (o *Orchestrator) Generate(ctx context.Context, req Request, maxWait time.Duration) (Response, error) {
	jobID, err := o.Submit(ctx, req)
	if err != nil {
		return Response{}, err
	}
	return o.Await(ctx, jobID, maxWait)
}

// Await blocks up to maxWait for jobID to reach a terminal state, polling
// the job table, and returns whatever status it observes at that point.
func (o *Orchestrator) Await(ctx context.Context, jobID string, maxWait time.Duration) (Response, error) {
	deadline := time.Now().Add(maxWait)
	const pollInterval = 25 * time.Millisecond

	for {
		job, ok := o.jobs.get(jobID)
		if !ok {
			return Response{}, fmt.Errorf("%w: %s", core.ErrJobNotFound, jobID)
		}

		if job.Status.IsTerminal() || time.Now().After(deadline) {
			return o.responseFor(job), nil
		}

		select {
		case <-ctx.Done():
			return o.responseFor(job), ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (o *Orchestrator) responseFor(job *core.Job) Response {
	resp := Response{JobID: job.JobID, Status: job.Status, ArtifactID: job.ArtifactID}
	if job.Status == core.JobStatusCompleted && job.ArtifactID != "" {
		if v, ok, err := o.versions.GetCurrent(job.ArtifactID); err == nil && ok {
			resp.Content = v.Content
			if score, ok := v.Metadata["validation_score"].(float64); ok {
				resp.Score = score
			}
			if valid, ok := v.Metadata["is_valid"].(bool); ok {
				resp.IsValid = valid
			}
		}
	}
	return resp
}

// Stream subscribes to jobID's event topic. Callers normally call this
// immediately after Submit so they don't race the worker's first events.
func (o *Orchestrator) Stream(jobID string) <-chan eventbus.Event {
	return o.bus.Subscribe(jobID)
}

// GetJob returns a snapshot of jobID's current state.
func (o *Orchestrator) GetJob(jobID string) (*core.Job, bool) {
	return o.jobs.get(jobID)
}

// ListJobs returns up to limit jobs, most recently created first.
func (o *Orchestrator) ListJobs(limit int) []*core.Job {
	return o.jobs.list(limit)
}

// Cancel requests cancellation of jobID. Returns core.ErrJobNotFound if no
// such job exists, core.ErrJobNotCancellable if it has already reached a
// terminal state.
func (o *Orchestrator) Cancel(jobID string) error {
	job, ok := o.jobs.get(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrJobNotFound, jobID)
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", core.ErrJobNotCancellable, jobID)
	}
	job.Cancel()
	return nil
}

// BulkGenerate submits every request in order and waits for each to reach
// a terminal state (or maxWait) before moving to the next, per the
// sequential BulkGenerate contract. Each request still runs as an
// independently cancellable job; only the caller's observation of them is
// sequential.
func (o *Orchestrator) BulkGenerate(ctx context.Context, requests []Request, maxWait time.Duration) ([]Response, error) {
	out := make([]Response, 0, len(requests))
	for _, req := range requests {
		resp, err := o.Generate(ctx, req, maxWait)
		if err != nil && resp.JobID == "" {
			return out, err
		}
		out = append(out, resp)
	}
	return out, nil
}
