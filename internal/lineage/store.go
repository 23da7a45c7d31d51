package lineage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketByPath = []byte("lineage_by_path")
	bucketByID   = []byte("lineage_by_id")
)

// Store is the lineage store's durable backend, a thin bbolt wrapper
// (grounded on cuemby-warren's use of bbolt for its own durable state —
// see SPEC_FULL.md §3). All writes are serialized under the store-wide mu;
// reads return copy-on-write snapshots so concurrent readers never observe
// a torn Lineage value.
type Store struct {
	mu sync.Mutex
	db *bolt.DB
}

// Open opens (creating if absent) the lineage database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening lineage store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketByPath); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketByID)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing lineage buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func (s *Store) getByPath(tx *bolt.Tx, path string) (Lineage, bool) {
	raw := tx.Bucket(bucketByPath).Get([]byte(path))
	if raw == nil {
		return Lineage{}, false
	}
	var l Lineage
	_ = json.Unmarshal(raw, &l)
	return l, true
}

func (s *Store) putByPath(tx *bolt.Tx, path string, l Lineage) error {
	raw, err := json.Marshal(l)
	if err != nil {
		return err
	}
	if err := tx.Bucket(bucketByPath).Put([]byte(path), raw); err != nil {
		return err
	}
	return tx.Bucket(bucketByID).Put([]byte(l.Artifact.ArtifactID), []byte(path))
}

// findDeletedByHash scans all deleted lineages for a matching content hash,
// in deletion order (first match wins's deterministic
// hash-reuse invariant). This is an O(n) scan over tombstones; acceptable
// at the scale this store operates at (single project workspace).
func (s *Store) findDeletedByHash(tx *bolt.Tx, hash string) (Lineage, bool) {
	type candidate struct {
		l   Lineage
		del time.Time
	}
	var candidates []candidate
	c := tx.Bucket(bucketByPath).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var l Lineage
		if err := json.Unmarshal(v, &l); err != nil {
			continue
		}
		if l.DeletedAt != nil && l.Artifact.ContentHash == hash {
			candidates = append(candidates, candidate{l, *l.DeletedAt})
		}
	}
	if len(candidates) == 0 {
		return Lineage{}, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].del.Before(candidates[j].del) })
	return candidates[0].l, true
}

// RecordCreate resolves artifact identity for (path, content) and persists
// a new Lineage: if a previously-deleted artifact shares the content hash,
// its id is reused (a restore); otherwise a fresh id is minted.
func (s *Store) RecordCreate(path string, content []byte, goalID, taskID, model string) (Lineage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := hashContent(content)
	var result Lineage

	err := s.db.Update(func(tx *bolt.Tx) error {
		var artifactID string
		if restored, ok := s.findDeletedByHash(tx, hash); ok {
			artifactID = restored.Artifact.ArtifactID
		} else {
			artifactID = fmt.Sprintf("%s:%s", uuid.NewString(), hash[:12])
		}

		now := time.Now()
		l := Lineage{
			Artifact: Artifact{
				ArtifactID:    artifactID,
				Path:          path,
				ContentHash:   hash,
				CreatedByGoal: goalID,
				CreatedByTask: taskID,
				CreatedAt:     now,
				Model:         model,
			},
			Edits: []Edit{{
				EditID:      uuid.NewString(),
				ArtifactID:  artifactID,
				GoalID:      goalID,
				TaskID:      taskID,
				EditType:    EditCreate,
				Source:      SourceSunwell,
				Timestamp:   now,
				ContentHash: hash,
			}},
		}
		result = l
		return s.putByPath(tx, path, l)
	})
	return result, err
}

// RecordEdit appends an edit to the lineage at path, updating its content
// hash. If source is human, HumanEdited is set permanently.
func (s *Store) RecordEdit(path string, linesAdded, linesRemoved int, source Source, content []byte, goalID, taskID string) (Lineage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result Lineage
	err := s.db.Update(func(tx *bolt.Tx) error {
		l, ok := s.getByPath(tx, path)
		if !ok {
			return fmt.Errorf("no lineage recorded for path %q", path)
		}
		hash := hashContent(content)
		l.Artifact.ContentHash = hash
		if source == SourceHuman {
			l.Artifact.HumanEdited = true
		}
		l.Edits = append(l.Edits, Edit{
			EditID:       uuid.NewString(),
			ArtifactID:   l.Artifact.ArtifactID,
			GoalID:       goalID,
			TaskID:       taskID,
			LinesAdded:   linesAdded,
			LinesRemoved: linesRemoved,
			EditType:     EditModify,
			Source:       source,
			Timestamp:    time.Now(),
			ContentHash:  hash,
		})
		result = l
		return s.putByPath(tx, path, l)
	})
	return result, err
}

// RecordRename moves a lineage from oldPath to newPath; the artifact id is unchanged.
func (s *Store) RecordRename(oldPath, newPath string) (Lineage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result Lineage
	err := s.db.Update(func(tx *bolt.Tx) error {
		l, ok := s.getByPath(tx, oldPath)
		if !ok {
			return fmt.Errorf("no lineage recorded for path %q", oldPath)
		}
		l.Artifact.Path = newPath
		l.Edits = append(l.Edits, Edit{
			EditID:      uuid.NewString(),
			ArtifactID:  l.Artifact.ArtifactID,
			EditType:    EditRename,
			Source:      SourceSunwell,
			Timestamp:   time.Now(),
			ContentHash: l.Artifact.ContentHash,
		})
		if err := tx.Bucket(bucketByPath).Delete([]byte(oldPath)); err != nil {
			return err
		}
		result = l
		return s.putByPath(tx, newPath, l)
	})
	return result, err
}

// RecordDelete tombstones the lineage at path; the record is retained so a
// later restore with matching content can reuse its id.
func (s *Store) RecordDelete(path string) (Lineage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result Lineage
	err := s.db.Update(func(tx *bolt.Tx) error {
		l, ok := s.getByPath(tx, path)
		if !ok {
			return fmt.Errorf("no lineage recorded for path %q", path)
		}
		now := time.Now()
		l.DeletedAt = &now
		l.Edits = append(l.Edits, Edit{
			EditID:      uuid.NewString(),
			ArtifactID:  l.Artifact.ArtifactID,
			EditType:    EditDelete,
			Source:      SourceSunwell,
			Timestamp:   now,
			ContentHash: l.Artifact.ContentHash,
		})
		result = l
		return s.putByPath(tx, path, l)
	})
	return result, err
}

// Get returns the lineage currently recorded at path.
func (s *Store) Get(path string) (Lineage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var l Lineage
	var ok bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		l, ok = s.getByPath(tx, path)
		return nil
	})
	return l.Clone(), ok
}

// UpdateImports atomically replaces both the forward (imports) and reverse
// (imported_by) edges for path. Reverse edges on the imported paths'
// lineages are updated in the same transaction.
func (s *Store) UpdateImports(path string, imports []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		l, ok := s.getByPath(tx, path)
		if !ok {
			return fmt.Errorf("no lineage recorded for path %q", path)
		}
		old := l.Imports
		l.Imports = append([]string(nil), imports...)
		if err := s.putByPath(tx, path, l); err != nil {
			return err
		}

		removed := diff(old, imports)
		added := diff(imports, old)
		for _, p := range removed {
			if dep, ok := s.getByPath(tx, p); ok {
				dep.ImportedBy = removeString(dep.ImportedBy, path)
				if err := s.putByPath(tx, p, dep); err != nil {
					return err
				}
			}
		}
		for _, p := range added {
			if dep, ok := s.getByPath(tx, p); ok {
				dep.ImportedBy = appendUnique(dep.ImportedBy, path)
				if err := s.putByPath(tx, p, dep); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// GetDependents returns paths that import path (reverse edges).
func (s *Store) GetDependents(path string) []string {
	l, ok := s.Get(path)
	if !ok {
		return nil
	}
	return l.ImportedBy
}

// GetDependencies returns paths that path imports (forward edges).
func (s *Store) GetDependencies(path string) []string {
	l, ok := s.Get(path)
	if !ok {
		return nil
	}
	return l.Imports
}

func diff(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, x := range b {
		inB[x] = struct{}{}
	}
	var out []string
	for _, x := range a {
		if _, ok := inB[x]; !ok {
			out = append(out, x)
		}
	}
	return out
}

func removeString(list []string, s string) []string {
	out := list[:0:0]
	for _, x := range list {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}

func appendUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}
