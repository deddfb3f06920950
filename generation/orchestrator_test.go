package generation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notekiln/forge/core"
	"github.com/notekiln/forge/eventbus"
	"github.com/notekiln/forge/finetune"
	"github.com/notekiln/forge/providers"
	"github.com/notekiln/forge/providers/mock"
	"github.com/notekiln/forge/validation"
	"github.com/notekiln/forge/versionstore"
)

// validERD clears the erd rule set's length, keyword, entity-block, and
// relationship checks so tests exercising acceptance don't have to fight
// the validator to get there.
const validERD = "erDiagram\n  USER {\n    string id\n  }\n  ORDER {\n    string id\n  }\n  USER ||--| ORDER : places\n"

func newTestOrchestrator(t *testing.T, opts ...Option) *Orchestrator {
	t.Helper()

	cfg, err := core.NewConfig()
	require.NoError(t, err)
	cfg.JobTable.MaxJobs = 50
	cfg.JobTable.JobRetention = time.Hour
	cfg.Ladder.MaxRetries = 4

	vstore, err := versionstore.New(t.TempDir(), nil)
	require.NoError(t, err)

	bus := eventbus.New(nil)
	pool := finetune.NewPool(nil)
	validator, err := validation.New(nil)
	require.NoError(t, err)

	defaultLadder := NewLadder(map[string]typeLadderConfig{
		"default": TypeLadderConfig("local-primary", []string{"local-secondary"}, []string{"remote-primary"}),
	})

	allOpts := append([]Option{WithLadder(defaultLadder)}, opts...)

	o, err := New(cfg, vstore, bus, pool, validator, nil, allOpts...)
	require.NoError(t, err)
	t.Cleanup(o.Close)
	return o
}

func awaitTerminal(t *testing.T, o *Orchestrator, jobID string) *core.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := o.GetJob(jobID)
		require.True(t, ok)
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state in time", jobID)
	return nil
}

func TestSubmitRejectsRequestWithNoNotesSource(t *testing.T) {
	o := newTestOrchestrator(t)
	_, err := o.Submit(context.Background(), Request{ArtifactType: "mermaid_erd"})
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestGenerateCompletesOnFirstRungWhenValidationPasses(t *testing.T) {
	backend := mock.New("local-primary", validERD)
	ctxProvider := mock.NewContextProvider("")

	o := newTestOrchestrator(t,
		WithBackend("local-primary", backend),
		WithContextProvider(ctxProvider),
	)

	resp, err := o.Generate(context.Background(), Request{
		ArtifactType: "mermaid_erd",
		Notes:        "The user places an order containing line items.",
	}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, core.JobStatusCompleted, resp.Status)
	assert.NotEmpty(t, resp.ArtifactID)
	assert.Equal(t, 1, backend.CallCount)
}

func TestGenerateRepairsOnRejectThenSucceeds(t *testing.T) {
	backend := mock.New("local-primary", "not a diagram at all", validERD)

	o := newTestOrchestrator(t, WithBackend("local-primary", backend))

	resp, err := o.Generate(context.Background(), Request{
		ArtifactType: "mermaid_erd",
		Notes:        "The user places an order containing line items.",
		Options:      core.JobOptions{UseValidation: true},
	}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, core.JobStatusCompleted, resp.Status)
	assert.Equal(t, 2, backend.CallCount)
}

func TestGenerateExhaustsLadderAndReportsBestCandidate(t *testing.T) {
	primary := mock.New("local-primary", "garbage", "still garbage")
	secondary := mock.New("local-secondary", "also garbage")
	remote := mock.New("remote-primary", "final garbage")

	o := newTestOrchestrator(t,
		WithBackend("local-primary", primary),
		WithBackend("local-secondary", secondary),
		WithBackend("remote-primary", remote),
	)

	resp, err := o.Generate(context.Background(), Request{
		ArtifactType: "mermaid_erd",
		Notes:        "The user places an order.",
		Options:      core.JobOptions{UseValidation: true, MaxRetries: 10},
	}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, core.JobStatusFailed, resp.Status)
	job, ok := o.GetJob(resp.JobID)
	require.True(t, ok)
	require.NotNil(t, job.JobErr)
	assert.Equal(t, "failed_but_best", job.JobErr.ErrorType)
}

func TestGenerateScopesArtifactIDToFolder(t *testing.T) {
	backend := mock.New("local-primary", validERD)
	o := newTestOrchestrator(t, WithBackend("local-primary", backend))

	resp, err := o.Generate(context.Background(), Request{
		ArtifactType: "mermaid_erd",
		Notes:        "A has many B.",
		FolderID:     "folder-1",
	}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, "folder-1::mermaid_erd", resp.ArtifactID)
}

func TestUpdateArtifactRecordsManualEditAsNewVersion(t *testing.T) {
	backend := mock.New("local-primary", validERD)
	o := newTestOrchestrator(t, WithBackend("local-primary", backend))

	resp, err := o.Generate(context.Background(), Request{
		ArtifactType: "mermaid_erd",
		Notes:        "A has many B.",
		FolderID:     "folder-1",
	}, time.Second)
	require.NoError(t, err)

	updated, err := o.UpdateArtifact(resp.ArtifactID, validERD, nil)
	require.NoError(t, err)
	assert.Equal(t, "mermaid_erd", updated.ArtifactType)
	assert.Equal(t, "folder-1", updated.FolderID)

	versions, err := o.versions.GetVersions(resp.ArtifactID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

// blockingBackend holds generation open until the caller's context is
// cancelled, so a cancellation test doesn't race a mock backend that would
// otherwise answer instantly.
type blockingBackend struct{}

func newBlockingBackend() *blockingBackend { return &blockingBackend{} }

func (b *blockingBackend) Generate(ctx context.Context, modelID, prompt string, opts providers.GenerateOptions) (providers.GenerateResult, error) {
	<-ctx.Done()
	return providers.GenerateResult{}, ctx.Err()
}

func (b *blockingBackend) GenerateStream(ctx context.Context, modelID, prompt string, opts providers.GenerateOptions) (<-chan providers.Token, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingBackend) EnsureModelAvailable(ctx context.Context, modelID string) error {
	return nil
}

func (b *blockingBackend) ListModels(ctx context.Context) ([]string, error) {
	return []string{"local-primary"}, nil
}

func TestCancelStopsJobBeforeCompletion(t *testing.T) {
	backend := newBlockingBackend()
	o := newTestOrchestrator(t, WithBackend("local-primary", backend))

	jobID, err := o.Submit(context.Background(), Request{
		ArtifactType: "mermaid_erd",
		Notes:        "A has many B.",
	})
	require.NoError(t, err)

	require.NoError(t, o.Cancel(jobID))

	job := awaitTerminal(t, o, jobID)
	assert.Equal(t, core.JobStatusCancelled, job.Status)
}

func TestCancelUnknownJobReturnsNotFound(t *testing.T) {
	o := newTestOrchestrator(t)
	err := o.Cancel("does-not-exist")
	assert.ErrorIs(t, err, core.ErrJobNotFound)
}

func TestBulkGenerateRunsRequestsSequentially(t *testing.T) {
	backend := mock.New("local-primary", validERD, validERD)
	o := newTestOrchestrator(t, WithBackend("local-primary", backend))

	responses, err := o.BulkGenerate(context.Background(), []Request{
		{ArtifactType: "mermaid_erd", Notes: "A has many B."},
		{ArtifactType: "mermaid_erd", Notes: "C has many D."},
	}, time.Second)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	for _, r := range responses {
		assert.Equal(t, core.JobStatusCompleted, r.Status)
	}
	assert.Equal(t, 2, backend.CallCount)
}
