// Package generation implements the orchestrator that drives a single
// artifact-generation request from submission through a retry/fallback
// ladder of model backends to a validated, versioned artifact.
package generation

import (
	"context"
	"time"

	"github.com/notekiln/forge/core"
)

// Request is one artifact-generation request. At least one of Notes,
// FolderID, or ContextID must be set so the worker can assemble content to
// generate from.
type Request struct {
	ArtifactType string
	Notes        string
	FolderID     string
	ContextID    string
	Options      core.JobOptions
}

// Response is what Submit's synchronous sibling, Generate, returns: either
// a completed artifact or a handle to keep polling/streaming.
type Response struct {
	JobID      string
	Status     core.JobStatus
	ArtifactID string
	Content    string
	Score      float64
	IsValid    bool
}

// Artifact is the read-model the orchestrator returns for artifact CRUD
// operations, assembled from a versionstore.Version.
type Artifact struct {
	ArtifactID   string
	ArtifactType string
	Content      string
	HTMLContent  string
	FolderID     string
	GeneratedAt  time.Time
	ModelUsed    string
	Score        float64
	IsValid      bool
}

// NotesProvider resolves a folder's meeting notes into the text a job
// generates from. Out of scope for this module's persistence, per the
// Non-goals around folder CRUD and note file I/O; only the contract lives
// here.
type NotesProvider interface {
	GetNotesByFolder(ctx context.Context, folderID string) (string, error)
}

// HTMLRenderer turns a validated mermaid_* artifact into an html_content
// post-pass. A renderer failure is a warning, never a job failure.
type HTMLRenderer interface {
	FromMermaid(ctx context.Context, content, artifactType, notes string, rag []string, useAI bool) (string, error)
}

// artifactID computes the stable identity a folder-scoped or orphaned
// artifact is versioned under.
func artifactID(folderID, artifactType string) string {
	if folderID == "" {
		return artifactType
	}
	return folderID + "::" + artifactType
}
