// Package versionstore owns the durable, append-only version history for
// generated artifacts. One artifact_id accumulates a dense, monotonically
// numbered sequence of Versions; exactly one is current at any time.
package versionstore

import "time"

// Version is one immutable snapshot of an artifact's content.
type Version struct {
	ArtifactID    string                 `json:"artifact_id"`
	ArtifactType  string                 `json:"artifact_type"`
	VersionNumber int                    `json:"version_number"`
	Content       string                 `json:"content"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	FolderID      string                 `json:"folder_id,omitempty"`
	IsCurrent     bool                   `json:"is_current"`
	CreatedAt     time.Time              `json:"created_at"`

	// RestoreToken is a ULID stamped on every version, independent of
	// VersionNumber. It is an opaque audit handle only, never consulted
	// by identity logic.
	RestoreToken string `json:"restore_token"`
}

// Diff summarizes the comparison between two versions of the same artifact.
type Diff struct {
	ArtifactID    string  `json:"artifact_id"`
	FromVersion   int     `json:"from_version"`
	ToVersion     int     `json:"to_version"`
	SizeDiff      int     `json:"size_diff"`
	LineCountDiff int     `json:"line_count_diff"`
	Similarity    float64 `json:"similarity"`
}
