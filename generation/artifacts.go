package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/notekiln/forge/core"
	"github.com/notekiln/forge/versionstore"
)

func toArtifact(v versionstore.Version) Artifact {
	a := Artifact{
		ArtifactID:   v.ArtifactID,
		ArtifactType: v.ArtifactType,
		Content:      v.Content,
		FolderID:     v.FolderID,
		GeneratedAt:  v.CreatedAt,
	}
	if model, ok := v.Metadata["model_used"].(string); ok {
		a.ModelUsed = model
	}
	if score, ok := v.Metadata["validation_score"].(float64); ok {
		a.Score = score
	}
	if valid, ok := v.Metadata["is_valid"].(bool); ok {
		a.IsValid = valid
	}
	if html, ok := v.Metadata["html_content"].(string); ok {
		a.HTMLContent = html
	}
	return a
}

// GetArtifact returns the current version of artifactID.
func (o *Orchestrator) GetArtifact(artifactID string) (Artifact, bool, error) {
	v, ok, err := o.versions.GetCurrent(artifactID)
	if err != nil || !ok {
		return Artifact{}, ok, err
	}
	return toArtifact(v), true, nil
}

// DeleteArtifact removes every version of artifactID.
func (o *Orchestrator) DeleteArtifact(artifactID string) (bool, error) {
	deleted, _, err := o.versions.DeleteAll(artifactID)
	return deleted, err
}

// UpdateArtifact records a manual edit: a new version carrying content,
// preserving folder_id and artifact_type from the previous current
// version.
func (o *Orchestrator) UpdateArtifact(artifactID, content string, extraMetadata map[string]interface{}) (Artifact, error) {
	current, ok, err := o.versions.GetCurrent(artifactID)
	if err != nil {
		return Artifact{}, err
	}
	if !ok {
		return Artifact{}, fmt.Errorf("%w: %s", core.ErrArtifactNotFound, artifactID)
	}

	metadata := make(map[string]interface{}, len(extraMetadata)+1)
	for k, v := range extraMetadata {
		metadata[k] = v
	}
	metadata["update_type"] = "manual_edit"

	v, err := o.versions.Create(artifactID, current.ArtifactType, content, metadata, current.FolderID)
	if err != nil {
		return Artifact{}, err
	}
	return toArtifact(v), nil
}

// ListArtifacts returns the current version of every artifact whose
// folder_id matches folderID (all artifacts when folderID is empty). When
// allVersions is true, every retained version of each matching artifact is
// returned rather than just its current one.
func (o *Orchestrator) ListArtifacts(allVersions bool, folderID string) ([]Artifact, error) {
	all, err := o.versions.ListAll()
	if err != nil {
		return nil, err
	}

	var matching []versionstore.Version
	for _, v := range all {
		if folderID != "" && sanitizeGroup(v.FolderID) != folderID {
			continue
		}
		matching = append(matching, v)
	}

	if !allVersions {
		out := make([]Artifact, 0, len(matching))
		for _, v := range matching {
			out = append(out, toArtifact(v))
		}
		return out, nil
	}

	var out []Artifact
	for _, v := range matching {
		history, err := o.versions.GetVersions(v.ArtifactID)
		if err != nil {
			return nil, err
		}
		for _, h := range history {
			out = append(out, toArtifact(h))
		}
	}
	return out, nil
}

// RegenerateArtifact resubmits generation for artifactID's current
// artifact_type and folder_id, using notesOverride when supplied or
// falling back to the configured notes provider resolving the artifact's
// folder.
func (o *Orchestrator) RegenerateArtifact(ctx context.Context, artifactID, notesOverride string) (string, error) {
	current, ok, err := o.versions.GetCurrent(artifactID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrArtifactNotFound, artifactID)
	}

	notes := notesOverride
	if notes == "" && o.notes != nil && current.FolderID != "" {
		notes, err = o.notes.GetNotesByFolder(ctx, current.FolderID)
		if err != nil {
			return "", fmt.Errorf("generation: resolving notes for regeneration: %w", err)
		}
	}
	if notes == "" {
		return "", fmt.Errorf("%w: no notes available to regenerate %s", core.ErrInvalidRequest, artifactID)
	}

	return o.Submit(ctx, Request{
		ArtifactType: current.ArtifactType,
		Notes:        notes,
		FolderID:     current.FolderID,
	})
}

// sanitizeGroup mirrors versionstore's folder-default substitution so
// folder-scoped lookups agree on what "no folder" means.
func sanitizeGroup(folderID string) string {
	if strings.TrimSpace(folderID) == "" {
		return core.OrphanedArtifactsFolder
	}
	return folderID
}

