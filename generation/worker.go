package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/notekiln/forge/core"
	"github.com/notekiln/forge/finetune"
	"github.com/notekiln/forge/providers"
	"github.com/notekiln/forge/quality"
	"github.com/notekiln/forge/telemetry"
	"github.com/notekiln/forge/validation"
)

// candidate is the best content a ladder run has produced so far, tracked
// across rungs so a ladder-exhausted failure can still report the closest
// attempt.
type candidate struct {
	content string
	model   string
	score   float64
	isValid bool
	errors  []string
}

// runWorker drives one job from started to a terminal state. It owns the
// job's cancellation context and is the job's sole writer, per the
// single-writer invariant; the orchestrator's Cancel/evict paths only read
// or signal it.
func (o *Orchestrator) runWorker(ctx context.Context, job *core.Job, req Request) {
	ctx, endSpan := telemetry.StartLinkedSpan(ctx, "generation.job", "", "", map[string]string{
		"job_id":        job.JobID,
		"artifact_type": job.ArtifactType,
	})
	defer endSpan()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("generation worker panicked", map[string]interface{}{
				"job_id": job.JobID,
				"panic":  fmt.Sprintf("%v", r),
			})
			job.Fail("internal", fmt.Sprintf("internal error: %v", r), "")
			o.bus.EmitError(job.JobID, "internal error")
		}
	}()

	o.bus.EmitStarted(job.JobID)

	if o.cancelled(ctx, job) {
		return
	}

	notes, err := o.resolveNotes(ctx, req)
	if err != nil {
		if o.cancelled(ctx, job) {
			return
		}
		o.failJob(job, "invalid_request", err.Error(), "")
		return
	}

	prediction := quality.Predict(job.ArtifactType, notes, quality.Context{})
	o.bus.EmitProgress(job.JobID, 10, "quality_forecast", &prediction.Score)

	if o.cancelled(ctx, job) {
		return
	}

	built, err := o.buildContextWithRetry(ctx, notes, req.ContextID)
	if err != nil {
		if o.cancelled(ctx, job) {
			return
		}
		o.failJob(job, "context_build_failed", err.Error(), "check the context provider's health")
		return
	}
	o.bus.EmitProgress(job.JobID, 30, "context_ready", nil)

	if o.cancelled(ctx, job) {
		return
	}

	rungs := o.ladder.RungsFor(job.ArtifactType)
	if len(rungs) == 0 {
		o.failJob(job, "invalid_request", fmt.Sprintf("no ladder configured for artifact type %q", job.ArtifactType), "")
		return
	}

	best, accepted, cancelledDuringLadder := o.runLadder(ctx, job, req, notes, built.Assembled)
	if cancelledDuringLadder {
		return
	}

	if !accepted {
		if best.content == "" {
			o.failJob(job, "model_unavailable", "no configured model backend produced any content", "enable a cloud backend")
			return
		}
		o.failJob(job, "failed_but_best",
			fmt.Sprintf("ladder exhausted; best candidate from %s scored %.0f: %s", best.model, best.score, strings.Join(best.errors, "; ")),
			"review the validator errors for the closest attempt")
		return
	}

	o.finishJob(ctx, job, req, notes, best)
}

// resolveNotes uses the request's notes verbatim, or resolves them from the
// folder collaborator when only a folder_id was given.
func (o *Orchestrator) resolveNotes(ctx context.Context, req Request) (string, error) {
	if req.Notes != "" {
		return req.Notes, nil
	}
	if req.FolderID == "" {
		return "", fmt.Errorf("%w: no notes and no folder_id to resolve them from", core.ErrInvalidRequest)
	}
	if o.notes == nil {
		return "", fmt.Errorf("%w: no notes provider configured", core.ErrInvalidRequest)
	}

	notes, err := o.notes.GetNotesByFolder(ctx, req.FolderID)
	if err != nil {
		return "", fmt.Errorf("%w: resolving notes for folder %s: %v", core.ErrInvalidRequest, req.FolderID, err)
	}
	if notes == "" {
		return "", fmt.Errorf("%w: folder %s has no notes", core.ErrInvalidRequest, req.FolderID)
	}
	return notes, nil
}

// buildContextWithRetry implements the ContextBuildFailed propagation
// policy: retried at most once, surfaced on the second failure.
func (o *Orchestrator) buildContextWithRetry(ctx context.Context, notes, contextID string) (providers.BuiltContext, error) {
	if o.context == nil {
		return providers.BuiltContext{}, nil
	}

	built, err := o.context.BuildContext(ctx, notes, providers.ContextOptions{ContextID: contextID})
	if err == nil {
		return built, nil
	}

	built, err = o.context.BuildContext(ctx, notes, providers.ContextOptions{ContextID: contextID})
	if err != nil {
		return providers.BuiltContext{}, fmt.Errorf("%w: %v", core.ErrContextBuildFailed, err)
	}
	return built, nil
}

// runLadder walks the configured rungs, cleaning and validating each
// candidate, injecting a repair prompt on a repairable rung's first miss,
// and stopping as soon as a candidate clears the orchestrator's acceptance
// threshold or the job's retry budget is spent.
func (o *Orchestrator) runLadder(ctx context.Context, job *core.Job, req Request, notes, assembledContext string) (candidate, bool, bool) {
	maxRetries := job.Options.MaxRetries
	if maxRetries <= 0 {
		maxRetries = o.config.Ladder.MaxRetries
	}

	prompt := buildPrompt(job.ArtifactType, notes, assembledContext)
	attempts := 0
	var best candidate

	rungs := o.ladder.RungsFor(job.ArtifactType)
	progress := 30.0
	progressStep := 50.0 / float64(len(rungs)*2+1)

	tryOnce := func(rung Rung, p string) (candidate, bool) {
		attempts++
		attempt := core.Attempt{ModelID: rung.ModelID, StartedAt: time.Now()}

		content, err := o.callRung(ctx, rung.ModelID, job.JobID, p, req.Options)
		attempt.EndedAt = time.Now()
		if err != nil {
			attempt.Errors = []string{err.Error()}
			job.RecordAttempt(attempt)
			return candidate{}, false
		}

		cleaned := o.cleaner.Clean(content, job.ArtifactType)
		result := o.validator.Validate(job.ArtifactType, cleaned, validation.Context{Notes: notes})
		attempt.ValidationScore = int(result.Score)
		attempt.Errors = result.Errors
		job.RecordAttempt(attempt)

		progress += progressStep
		o.bus.EmitProgress(job.JobID, progress, fmt.Sprintf("attempt:%s", rung.ModelID), nil)

		c := candidate{content: cleaned, model: rung.ModelID, score: result.Score, isValid: result.IsValid, errors: result.Errors}
		return c, true
	}

	for _, rung := range rungs {
		if o.cancelled(ctx, job) {
			return best, false, true
		}
		if attempts >= maxRetries {
			break
		}

		c, ok := tryOnce(rung, prompt)
		if !ok && o.cancelled(ctx, job) {
			return best, false, true
		}
		if ok && c.score > best.score {
			best = c
		}
		if ok && c.score >= core.OrchestratorAcceptThreshold {
			return c, true, false
		}

		if ok && rung.Repairable && req.Options.UseValidation && attempts < maxRetries {
			if o.cancelled(ctx, job) {
				return best, false, true
			}
			repairPrompt := buildRepairPrompt(prompt, c.content, c.errors)
			c2, ok2 := tryOnce(rung, repairPrompt)
			if !ok2 && o.cancelled(ctx, job) {
				return best, false, true
			}
			if ok2 && c2.score > best.score {
				best = c2
			}
			if ok2 && c2.score >= core.OrchestratorAcceptThreshold {
				return c2, true, false
			}
		}
	}

	return best, false, false
}

// callRung runs one backend call under that model's circuit breaker,
// republishing streamed tokens as chunk events when the backend supports
// streaming.
func (o *Orchestrator) callRung(ctx context.Context, modelID, jobID, prompt string, opts core.JobOptions) (string, error) {
	backend, ok := o.backends[modelID]
	if !ok {
		return "", fmt.Errorf("%w: no backend registered for model %s", core.ErrModelUnavailable, modelID)
	}

	cb, err := o.breakerFor(modelID)
	if err != nil {
		return "", err
	}
	if !cb.CanExecute() {
		return "", fmt.Errorf("%w: %s", core.ErrCircuitOpen, modelID)
	}

	genOpts := providers.GenerateOptions{Temperature: opts.Temperature}

	ch, err := backend.GenerateStream(ctx, modelID, prompt, genOpts)
	if err != nil {
		cb.RecordFailure()
		return "", fmt.Errorf("%w: %v", core.ErrModelError, err)
	}

	var built strings.Builder
	for tok := range ch {
		if tok.Done {
			if tok.Final != nil {
				cb.RecordSuccess()
				return tok.Final.Content, nil
			}
			break
		}
		built.WriteString(tok.Text)
		o.bus.EmitChunk(jobID, tok.Text)

		select {
		case <-ctx.Done():
			cb.RecordFailure()
			return "", ctx.Err()
		default:
		}
	}

	cb.RecordSuccess()
	return built.String(), nil
}

// finishJob handles pool admission, the optional HTML post-pass, the
// optional judge post-pass, the version store write, and the terminal
// complete event.
func (o *Orchestrator) finishJob(ctx context.Context, job *core.Job, req Request, notes string, best candidate) {
	metadata := map[string]interface{}{
		"model_used":       best.model,
		"validation_score": best.score,
		"is_valid":         best.isValid,
		"attempts":         len(job.Attempts),
	}

	if best.score >= core.PoolAdmissionTarget {
		admitted := o.pool.Add(finetune.TrainingExample{
			ArtifactType: job.ArtifactType,
			Instruction:  "Generate " + job.ArtifactType,
			Input:        notes,
			Output:       best.content,
			QualityScore: best.score,
			Source:       finetune.SourceFeedback,
		})
		if !admitted {
			o.logger.Debug("generated artifact did not clear pool admission", map[string]interface{}{"job_id": job.JobID})
		}
	}

	if o.html != nil && strings.HasPrefix(job.ArtifactType, "mermaid_") {
		html, err := o.html.FromMermaid(ctx, best.content, job.ArtifactType, notes, nil, true)
		if err != nil {
			o.logger.Warn("html post-pass failed", map[string]interface{}{"job_id": job.JobID, "error": err.Error()})
		} else {
			metadata["html_content"] = html
		}
	}

	if o.judge != nil {
		score, reasoning, err := o.judge.Evaluate(ctx, job.ArtifactType, best.content, notes)
		if err != nil {
			o.logger.Warn("quality judge failed", map[string]interface{}{"job_id": job.JobID, "error": err.Error()})
		} else {
			metadata["judge_score"] = score
			metadata["judge_reasoning"] = reasoning
		}
	}

	id := artifactID(req.FolderID, job.ArtifactType)
	if _, err := o.versions.Create(id, job.ArtifactType, best.content, metadata, req.FolderID); err != nil {
		job.Fail("persistence", err.Error(), "")
		o.bus.EmitError(job.JobID, err.Error())
		return
	}

	job.Complete(id)
	o.bus.EmitComplete(job.JobID, id, best.score, best.isValid, best.content)
}

func (o *Orchestrator) failJob(job *core.Job, errType, message, suggestion string) {
	job.Fail(errType, message, suggestion)
	o.bus.EmitError(job.JobID, message)
}

// cancelled checks the job's cancellation token at a suspension point. A
// cancelled job still emits exactly one terminal bus event, so callers
// don't need a separate error path for cancellation.
func (o *Orchestrator) cancelled(ctx context.Context, job *core.Job) bool {
	select {
	case <-ctx.Done():
		job.MarkCancelled()
		o.bus.EmitError(job.JobID, "cancelled")
		return true
	default:
		return false
	}
}

func buildPrompt(artifactType, notes, assembledContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a %s artifact from the following meeting notes.\n\n", artifactType)
	b.WriteString("MEETING NOTES:\n")
	b.WriteString(notes)
	if assembledContext != "" {
		b.WriteString("\n\nADDITIONAL CONTEXT:\n")
		b.WriteString(assembledContext)
	}
	return b.String()
}

func buildRepairPrompt(original, lastAttempt string, errs []string) string {
	var b strings.Builder
	b.WriteString(original)
	b.WriteString("\n\nYour previous attempt had the following problems:\n")
	b.WriteString("CRITICAL FIX REQUIRED:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e)
		b.WriteString("\n")
	}
	b.WriteString("\nPREVIOUS ATTEMPT:\n")
	b.WriteString(lastAttempt)
	b.WriteString("\n\nProduce a corrected version that addresses every issue above.")
	return b.String()
}
