package core

import (
	"context"
	"testing"
	"time"
)

func TestJobStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   JobStatus
		expected bool
	}{
		{JobStatusInProgress, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
		{JobStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.expected {
				t.Errorf("JobStatus(%s).IsTerminal() = %v, want %v", tt.status, got, tt.expected)
			}
		})
	}
}

func TestNewJob(t *testing.T) {
	opts := JobOptions{MaxRetries: 4, UseValidation: true, Temperature: 0.7}
	job := NewJob("job-123", "mermaid_erd", opts)

	if job.JobID != "job-123" {
		t.Errorf("JobID = %v, want job-123", job.JobID)
	}
	if job.ArtifactType != "mermaid_erd" {
		t.Errorf("ArtifactType = %v, want mermaid_erd", job.ArtifactType)
	}
	if job.Status != JobStatusInProgress {
		t.Errorf("Status = %v, want %v", job.Status, JobStatusInProgress)
	}
	if job.Options.MaxRetries != 4 {
		t.Errorf("Options.MaxRetries = %v, want 4", job.Options.MaxRetries)
	}
	if job.CreatedAt.IsZero() {
		t.Error("CreatedAt should not be zero")
	}
	if job.CompletedAt != nil {
		t.Error("CompletedAt should be nil for a fresh job")
	}
}

func TestJob_RecordAttempt(t *testing.T) {
	job := NewJob("job-456", "prd", JobOptions{})
	job.RecordAttempt(Attempt{ModelID: "local-primary", Errors: []string{"timeout"}})
	job.RecordAttempt(Attempt{ModelID: "cloud-fallback", ValidationScore: 82})

	if len(job.Attempts) != 2 {
		t.Fatalf("len(Attempts) = %d, want 2", len(job.Attempts))
	}
	if job.Attempts[0].ModelID != "local-primary" {
		t.Errorf("Attempts[0].ModelID = %v, want local-primary", job.Attempts[0].ModelID)
	}
	if job.Attempts[1].ValidationScore != 82 {
		t.Errorf("Attempts[1].ValidationScore = %v, want 82", job.Attempts[1].ValidationScore)
	}
}

func TestJob_Complete(t *testing.T) {
	job := NewJob("job-789", "mermaid_flowchart", JobOptions{})
	job.Complete("folder-1::mermaid_flowchart")

	if job.Status != JobStatusCompleted {
		t.Errorf("Status = %v, want %v", job.Status, JobStatusCompleted)
	}
	if job.ArtifactID != "folder-1::mermaid_flowchart" {
		t.Errorf("ArtifactID = %v, want folder-1::mermaid_flowchart", job.ArtifactID)
	}
	if job.Progress != 100 {
		t.Errorf("Progress = %v, want 100", job.Progress)
	}
	if job.CompletedAt == nil {
		t.Error("CompletedAt should be set after Complete")
	}
	if !job.Status.IsTerminal() {
		t.Error("completed status should be terminal")
	}
}

func TestJob_Fail(t *testing.T) {
	job := NewJob("job-fail", "prd", JobOptions{})
	job.Fail("model_error", "all ladder rungs exhausted", "check backend availability")

	if job.Status != JobStatusFailed {
		t.Errorf("Status = %v, want %v", job.Status, JobStatusFailed)
	}
	if job.JobErr == nil {
		t.Fatal("JobErr should be set after Fail")
	}
	if job.JobErr.ErrorType != "model_error" {
		t.Errorf("JobErr.ErrorType = %v, want model_error", job.JobErr.ErrorType)
	}
	if job.CompletedAt == nil {
		t.Error("CompletedAt should be set after Fail")
	}
}

func TestJob_CancelFlow(t *testing.T) {
	job := NewJob("job-cancel", "prd", JobOptions{})
	ctx := job.WithCancel(context.Background())

	select {
	case <-ctx.Done():
		t.Fatal("context should not be done before Cancel")
	default:
	}

	job.Cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context should be done immediately after Cancel")
	}

	job.MarkCancelled()
	if job.Status != JobStatusCancelled {
		t.Errorf("Status = %v, want %v", job.Status, JobStatusCancelled)
	}
	if job.CompletedAt == nil {
		t.Error("CompletedAt should be set after MarkCancelled")
	}
}

func TestJob_CancelWithoutStart(t *testing.T) {
	job := NewJob("job-no-cancel-token", "prd", JobOptions{})
	// Cancel must be a safe no-op when WithCancel was never called.
	job.Cancel()
}
