package versionstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/notekiln/forge/core"
)

// Store is the file-backed Version Store. Writes for a given artifact_id
// are serialized through a per-id mutex held in a sync.Map, a sharded-lock
// pattern so that unrelated artifacts never contend with each other.
type Store struct {
	dir    string
	logger core.Logger

	locks sync.Map // artifact_id -> *sync.Mutex

	cacheMu sync.RWMutex
	cache   map[string][]Version // artifact_id -> versions, ascending by VersionNumber
}

// New opens (creating if necessary) a Version Store rooted at dir. Existing
// per-id files are not eagerly loaded; each artifact_id is read from disk on
// first access and cached afterward.
func New(dir string, logger core.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("versionstore: creating %s: %w", dir, err)
	}

	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("forge/versionstore")
	}

	return &Store{
		dir:    dir,
		logger: logger,
		cache:  make(map[string][]Version),
	}, nil
}

// lockFor returns the mutex serializing writes to a single artifact_id,
// creating it on first use.
func (s *Store) lockFor(artifactID string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(artifactID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// sanitizeFilename replaces path-hostile characters so artifact_id values
// containing ':' or '/' (folder-scoped ids) can still name a flat file.
func sanitizeFilename(artifactID string) string {
	replacer := strings.NewReplacer(
		":", "_",
		"/", "_",
		"\\", "_",
		" ", "_",
	)
	return replacer.Replace(artifactID)
}

func (s *Store) pathFor(artifactID string) string {
	return filepath.Join(s.dir, sanitizeFilename(artifactID)+".json")
}

// load returns the cached version slice for artifactID, reading it from
// disk on a cache miss. Callers must already hold the per-id lock if they
// intend to mutate the result; load itself only takes the cache's read/write
// lock for the duration of the map access.
func (s *Store) load(artifactID string) ([]Version, error) {
	s.cacheMu.RLock()
	if v, ok := s.cache[artifactID]; ok {
		s.cacheMu.RUnlock()
		return v, nil
	}
	s.cacheMu.RUnlock()

	raw, err := os.ReadFile(s.pathFor(artifactID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("versionstore: reading %s: %w", artifactID, err)
	}

	var versions []Version
	if err := json.Unmarshal(raw, &versions); err != nil {
		return nil, fmt.Errorf("versionstore: parsing %s: %w", artifactID, err)
	}

	s.cacheMu.Lock()
	s.cache[artifactID] = versions
	s.cacheMu.Unlock()

	return versions, nil
}

// persist atomically writes versions for artifactID and updates the cache.
// The caller must hold the per-id lock.
func (s *Store) persist(artifactID string, versions []Version) error {
	raw, err := json.MarshalIndent(versions, "", "  ")
	if err != nil {
		return fmt.Errorf("versionstore: encoding %s: %w", artifactID, err)
	}

	target := s.pathFor(artifactID)
	tmp, err := os.CreateTemp(s.dir, sanitizeFilename(artifactID)+".*.tmp")
	if err != nil {
		return fmt.Errorf("versionstore: creating temp file for %s: %w", artifactID, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("versionstore: writing temp file for %s: %w", artifactID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("versionstore: closing temp file for %s: %w", artifactID, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: renaming %s into place: %v", core.ErrPersistence, artifactID, err)
	}

	s.cacheMu.Lock()
	s.cache[artifactID] = versions
	s.cacheMu.Unlock()

	return nil
}

// Create allocates the next version_number for artifactID, clears
// is_current on every prior version, appends the new current version,
// prunes history to the most recent core.MaxVersionsPerArtifact entries,
// and persists atomically. Concurrent Create calls on the same artifact_id
// serialize through the per-id lock so version numbers stay dense and
// unique.
func (s *Store) Create(artifactID, artifactType, content string, metadata map[string]interface{}, folderID string) (Version, error) {
	lock := s.lockFor(artifactID)
	lock.Lock()
	defer lock.Unlock()

	return s.createLocked(artifactID, artifactType, content, metadata, folderID)
}

// createLocked is Create's body without lock acquisition, so Restore can
// read the source version and append the restored one under a single
// critical section instead of two.
func (s *Store) createLocked(artifactID, artifactType, content string, metadata map[string]interface{}, folderID string) (Version, error) {
	existing, err := s.load(artifactID)
	if err != nil {
		return Version{}, err
	}

	for i := range existing {
		existing[i].IsCurrent = false
	}

	v := Version{
		ArtifactID:    artifactID,
		ArtifactType:  artifactType,
		VersionNumber: len(existing) + 1,
		Content:       content,
		Metadata:      metadata,
		FolderID:      folderID,
		IsCurrent:     true,
		CreatedAt:     time.Now(),
		RestoreToken:  ulid.Make().String(),
	}

	versions := append(existing, v)
	if len(versions) > core.MaxVersionsPerArtifact {
		versions = versions[len(versions)-core.MaxVersionsPerArtifact:]
	}

	if err := s.persist(artifactID, versions); err != nil {
		return Version{}, err
	}

	s.logger.Info("version created", map[string]interface{}{
		"artifact_id":    artifactID,
		"version_number": v.VersionNumber,
	})

	return v, nil
}

// GetVersions returns every retained version of artifactID, ascending by
// version_number.
func (s *Store) GetVersions(artifactID string) ([]Version, error) {
	lock := s.lockFor(artifactID)
	lock.Lock()
	defer lock.Unlock()

	versions, err := s.load(artifactID)
	if err != nil {
		return nil, err
	}
	out := make([]Version, len(versions))
	copy(out, versions)
	return out, nil
}

// GetCurrent returns the version flagged is_current=true, falling back to
// the last entry in the slice if, somehow, none are flagged current.
func (s *Store) GetCurrent(artifactID string) (Version, bool, error) {
	versions, err := s.GetVersions(artifactID)
	if err != nil {
		return Version{}, false, err
	}
	if len(versions) == 0 {
		return Version{}, false, nil
	}

	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].IsCurrent {
			return versions[i], true, nil
		}
	}
	return versions[len(versions)-1], true, nil
}

// GetByVersion returns the version numbered n for artifactID.
func (s *Store) GetByVersion(artifactID string, n int) (Version, bool, error) {
	versions, err := s.GetVersions(artifactID)
	if err != nil {
		return Version{}, false, err
	}
	for _, v := range versions {
		if v.VersionNumber == n {
			return v, true, nil
		}
	}
	return Version{}, false, nil
}

// Compare diffs two versions of the same artifact by size, line count, and
// character-set Jaccard similarity: |set1 ∩ set2| / |set1 ∪ set2|, with
// both-empty defined as perfectly similar and exactly-one-empty as wholly
// dissimilar.
func (s *Store) Compare(artifactID string, n1, n2 int) (Diff, error) {
	v1, ok1, err := s.GetByVersion(artifactID, n1)
	if err != nil {
		return Diff{}, err
	}
	v2, ok2, err := s.GetByVersion(artifactID, n2)
	if err != nil {
		return Diff{}, err
	}
	if !ok1 || !ok2 {
		return Diff{}, fmt.Errorf("%w: %s versions %d/%d", core.ErrVersionNotFound, artifactID, n1, n2)
	}

	return Diff{
		ArtifactID:    artifactID,
		FromVersion:   n1,
		ToVersion:     n2,
		SizeDiff:      len(v2.Content) - len(v1.Content),
		LineCountDiff: strings.Count(v2.Content, "\n") - strings.Count(v1.Content, "\n"),
		Similarity:    characterSetSimilarity(v1.Content, v2.Content),
	}, nil
}

func characterSetSimilarity(a, b string) float64 {
	set1 := charSet(a)
	set2 := charSet(b)

	if len(set1) == 0 && len(set2) == 0 {
		return 1.0
	}
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}

	intersection := 0
	for r := range set1 {
		if set2[r] {
			intersection++
		}
	}

	union := len(set1)
	for r := range set2 {
		if !set1[r] {
			union++
		}
	}

	return float64(intersection) / float64(union)
}

func charSet(s string) map[rune]bool {
	set := make(map[rune]bool)
	for _, r := range s {
		set[r] = true
	}
	return set
}

// Restore creates a new version whose content equals version n's content,
// stamping metadata.restored_from with n. The lookup of version n and the
// append of the restored version happen under the same per-id critical
// section, so a concurrent Create cannot land between them.
func (s *Store) Restore(artifactID string, n int) (Version, error) {
	lock := s.lockFor(artifactID)
	lock.Lock()
	defer lock.Unlock()

	versions, err := s.load(artifactID)
	if err != nil {
		return Version{}, err
	}

	var source Version
	var found bool
	for _, v := range versions {
		if v.VersionNumber == n {
			source, found = v, true
			break
		}
	}
	if !found {
		return Version{}, fmt.Errorf("%w: %s version %d", core.ErrVersionNotFound, artifactID, n)
	}

	metadata := make(map[string]interface{}, len(source.Metadata)+2)
	for k, v := range source.Metadata {
		metadata[k] = v
	}
	metadata["restored_from"] = n
	metadata["restored_at"] = time.Now().Format(time.RFC3339)

	return s.createLocked(artifactID, source.ArtifactType, source.Content, metadata, source.FolderID)
}

// DeleteAll removes every retained version of artifactID, reporting how
// many were deleted.
func (s *Store) DeleteAll(artifactID string) (bool, int, error) {
	lock := s.lockFor(artifactID)
	lock.Lock()
	defer lock.Unlock()

	versions, err := s.load(artifactID)
	if err != nil {
		return false, 0, err
	}
	if len(versions) == 0 {
		return false, 0, nil
	}

	if err := os.Remove(s.pathFor(artifactID)); err != nil && !os.IsNotExist(err) {
		return false, 0, fmt.Errorf("versionstore: deleting %s: %w", artifactID, err)
	}

	s.cacheMu.Lock()
	delete(s.cache, artifactID)
	s.cacheMu.Unlock()

	return true, len(versions), nil
}

// normalizeType lowercases and collapses '-'/' ' separators to '_', matching
// across artifact_type spellings the way the original dashboard's
// by-type filter does.
func normalizeType(t string) string {
	t = strings.ToLower(t)
	t = strings.ReplaceAll(t, "-", "_")
	t = strings.ReplaceAll(t, " ", "_")
	return t
}

// ListAll returns the current version of every artifact_id in the store,
// newest first, for callers that group or filter by folder rather than
// type.
func (s *Store) ListAll() ([]Version, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("versionstore: listing %s: %w", s.dir, err)
	}

	var out []Version
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("versionstore: reading %s: %w", entry.Name(), err)
		}

		var versions []Version
		if err := json.Unmarshal(raw, &versions); err != nil {
			return nil, fmt.Errorf("versionstore: parsing %s: %w", entry.Name(), err)
		}
		if len(versions) == 0 {
			continue
		}

		current := versions[len(versions)-1]
		for i := len(versions) - 1; i >= 0; i-- {
			if versions[i].IsCurrent {
				current = versions[i]
				break
			}
		}
		out = append(out, current)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

// ListByType returns the current version of every artifact whose id is
// prefixed by artifactType, or whose own artifact_type field matches,
// case- and separator-insensitively, newest first.
func (s *Store) ListByType(artifactType string) ([]Version, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("versionstore: listing %s: %w", s.dir, err)
	}

	normalizedType := normalizeType(artifactType)

	var out []Version
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("versionstore: reading %s: %w", entry.Name(), err)
		}

		var versions []Version
		if err := json.Unmarshal(raw, &versions); err != nil {
			return nil, fmt.Errorf("versionstore: parsing %s: %w", entry.Name(), err)
		}
		if len(versions) == 0 {
			continue
		}

		current := versions[len(versions)-1]
		for i := len(versions) - 1; i >= 0; i-- {
			if versions[i].IsCurrent {
				current = versions[i]
				break
			}
		}

		artifactID := current.ArtifactID
		matchesID := strings.HasPrefix(artifactID, artifactType) || strings.HasPrefix(normalizeType(artifactID), normalizedType)
		matchesType := current.ArtifactType == artifactType || normalizeType(current.ArtifactType) == normalizedType

		if matchesID || matchesType {
			out = append(out, current)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}
