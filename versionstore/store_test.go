package versionstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notekiln/forge/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	return s
}

func TestCreateAllocatesDenseVersionNumbers(t *testing.T) {
	s := newTestStore(t)

	v1, err := s.Create("mermaid_erd:folder1", "mermaid_erd", "first", nil, "folder1")
	require.NoError(t, err)
	assert.Equal(t, 1, v1.VersionNumber)
	assert.True(t, v1.IsCurrent)
	assert.NotEmpty(t, v1.RestoreToken)

	v2, err := s.Create("mermaid_erd:folder1", "mermaid_erd", "second", nil, "folder1")
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNumber)

	versions, err := s.GetVersions("mermaid_erd:folder1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.False(t, versions[0].IsCurrent)
	assert.True(t, versions[1].IsCurrent)
}

func TestCreatePrunesToMaxVersions(t *testing.T) {
	s := newTestStore(t)

	const total = core.MaxVersionsPerArtifact + 5
	var last int
	for i := 0; i < total; i++ {
		v, err := s.Create("code_prototype:x", "code_prototype", "content", nil, "")
		require.NoError(t, err)
		last = v.VersionNumber
	}

	versions, err := s.GetVersions("code_prototype:x")
	require.NoError(t, err)
	assert.Len(t, versions, core.MaxVersionsPerArtifact)
	assert.Equal(t, last, versions[len(versions)-1].VersionNumber)
}

func TestGetCurrentFallsBackToLastWhenNoneFlagged(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create("api_docs:y", "api_docs", "v1", nil, "")
	require.NoError(t, err)

	versions, err := s.load("api_docs:y")
	require.NoError(t, err)
	versions[0].IsCurrent = false
	require.NoError(t, s.persist("api_docs:y", versions))

	current, ok, err := s.GetCurrent("api_docs:y")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, current.VersionNumber)
}

func TestCompareIdenticalContentIsFullySimilar(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create("html_prototype:z", "html_prototype", "<html></html>", nil, "")
	require.NoError(t, err)
	_, err = s.Create("html_prototype:z", "html_prototype", "<html></html>", nil, "")
	require.NoError(t, err)

	diff, err := s.Compare("html_prototype:z", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, diff.Similarity)
	assert.Equal(t, 0, diff.SizeDiff)
}

func TestCompareEmptyVersionsAreFullySimilar(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create("code_prototype:empty", "code_prototype", "", nil, "")
	require.NoError(t, err)
	_, err = s.Create("code_prototype:empty", "code_prototype", "", nil, "")
	require.NoError(t, err)

	diff, err := s.Compare("code_prototype:empty", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, diff.Similarity)
}

func TestCompareOneEmptyIsFullyDissimilar(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create("code_prototype:half", "code_prototype", "", nil, "")
	require.NoError(t, err)
	_, err = s.Create("code_prototype:half", "code_prototype", "abc", nil, "")
	require.NoError(t, err)

	diff, err := s.Compare("code_prototype:half", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, diff.Similarity)
}

func TestRestoreCreatesNewVersionWithRestoredFromMetadata(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create("jira_tickets:r", "jira_tickets", "original content", map[string]interface{}{"attempts": 1}, "")
	require.NoError(t, err)
	_, err = s.Create("jira_tickets:r", "jira_tickets", "edited content", nil, "")
	require.NoError(t, err)

	restored, err := s.Restore("jira_tickets:r", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, restored.VersionNumber)
	assert.Equal(t, "original content", restored.Content)
	assert.Equal(t, 1, restored.Metadata["restored_from"])
	assert.NotEmpty(t, restored.Metadata["restored_at"])

	current, ok, err := s.GetCurrent("jira_tickets:r")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, current.VersionNumber)
}

func TestDeleteAllRemovesEveryVersion(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create("workflows:d", "workflows", "v1", nil, "")
	require.NoError(t, err)
	_, err = s.Create("workflows:d", "workflows", "v2", nil, "")
	require.NoError(t, err)

	ok, count, err := s.DeleteAll("workflows:d")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, count)

	versions, err := s.GetVersions("workflows:d")
	require.NoError(t, err)
	assert.Empty(t, versions)

	ok, count, err = s.DeleteAll("workflows:d")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, count)
}

func TestListByTypeMatchesNormalizedSeparatorsAndCase(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create("mermaid-ERD:folderA", "mermaid_erd", "erDiagram", nil, "folderA")
	require.NoError(t, err)
	_, err = s.Create("other:folderB", "mermaid erd", "erDiagram v2", nil, "folderB")
	require.NoError(t, err)
	_, err = s.Create("api_docs:folderC", "api_docs", "docs", nil, "folderC")
	require.NoError(t, err)

	matches, err := s.ListByType("mermaid_erd")
	require.NoError(t, err)
	require.Len(t, matches, 2)
}

func TestListByTypeOrdersNewestFirst(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create("code_prototype:a", "code_prototype", "a", nil, "")
	require.NoError(t, err)
	_, err = s.Create("code_prototype:b", "code_prototype", "b", nil, "")
	require.NoError(t, err)

	matches, err := s.ListByType("code_prototype")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.False(t, matches[0].CreatedAt.Before(matches[1].CreatedAt))
}

func TestFilenameSanitizesPathHostileCharacters(t *testing.T) {
	assert.Equal(t, "mermaid_erd_folder1", sanitizeFilename("mermaid_erd:folder1"))
	assert.NotContains(t, sanitizeFilename("a/b:c d"), "/")
}
