// Package governor implements the kernel's resource governance: a coarse
// ceiling on in-flight LLM calls, a worker-count recommendation function,
// and per-file advisory write locks with cross-worker conflict surfacing.
//
// The per-file lock file convention (gofrs/flock against
// locks/{hash(path)}.lock) follows the same single-writer coordination
// pattern used elsewhere in this codebase for shared-resource locking.
package governor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/gofrs/flock"

	"github.com/sunwell-ai/sunwell/internal/kernelerr"
)

// Governor throttles concurrent model calls and manages per-file write locks.
type Governor struct {
	mu        sync.Mutex
	inFlight  int
	ceiling   int
	locksDir  string
}

// NewGovernor builds a Governor with the given LLM call ceiling and a
// directory for per-file lock files.
func NewGovernor(ceiling int, locksDir string) *Governor {
	return &Governor{ceiling: ceiling, locksDir: locksDir}
}

// AcquireSlot blocks the caller's own decision-making (it does not spin):
// it reports whether a model call may proceed right now. Callers are
// expected to back off and retry if false.
func (g *Governor) AcquireSlot() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight >= g.ceiling {
		return false
	}
	g.inFlight++
	return true
}

// ReleaseSlot returns a previously-acquired slot, always — even on failure.
func (g *Governor) ReleaseSlot() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight > 0 {
		g.inFlight--
	}
}

// InFlight reports the current number of in-flight model calls.
func (g *Governor) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// RecommendedWorkerCount derives an optimal worker count from available
// system memory, CPU count, and the LLM call ceiling: never more workers
// than the LLM ceiling allows concurrent generations for, never more than
// one worker per two CPUs (workers shell out to git and tools), and never
// more than memAvailableMB/memPerWorkerMB.
func RecommendedWorkerCount(memAvailableMB int, memPerWorkerMB int, llmCeiling int) int {
	if memPerWorkerMB <= 0 {
		memPerWorkerMB = 512
	}
	byMemory := memAvailableMB / memPerWorkerMB
	byCPU := runtime.NumCPU() / 2
	if byCPU < 1 {
		byCPU = 1
	}
	n := min3(byMemory, byCPU, llmCeiling)
	if n < 1 {
		n = 1
	}
	return n
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// fileLockName returns the deterministic lock-file name for path, hashed so
// the lock directory never has to mirror workspace directory structure.
func fileLockName(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:]) + ".lock"
}

// lockPayload is the content written inside a path's lock file, so a
// conflict scan can report which worker holds which path.
type lockPayload struct {
	Path     string `json:"path"`
	WorkerID string `json:"worker_id"`
}

// FileLock is an advisory write lock on a single workspace path, held by one
// worker at a time.
type FileLock struct {
	path     string
	workerID string
	fl       *flock.Flock
	lockPath string
}

// AcquireFileLock attempts to take the advisory write lock on path for
// workerID. It returns ok=false (not an error) when another worker already
// holds it — lock contention is an expected, surfaced-not-fatal condition.
func (g *Governor) AcquireFileLock(path, workerID string) (*FileLock, bool, error) {
	if err := os.MkdirAll(g.locksDir, 0755); err != nil {
		return nil, false, kernelerr.New(kernelerr.IOWriteFailed, "creating locks directory", err)
	}
	lockPath := filepath.Join(g.locksDir, fileLockName(path))
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, kernelerr.New(kernelerr.IOWriteFailed, "acquiring file lock", err).WithContext("path", path)
	}
	if !locked {
		return nil, false, nil
	}

	payload := lockPayload{Path: path, WorkerID: workerID}
	data, _ := json.Marshal(payload)
	if err := os.WriteFile(lockPath+".meta", data, 0644); err != nil {
		_ = fl.Unlock()
		return nil, false, kernelerr.New(kernelerr.IOWriteFailed, "writing lock metadata", err)
	}

	return &FileLock{path: path, workerID: workerID, fl: fl, lockPath: lockPath}, true, nil
}

// Release releases the lock and removes its metadata, intended to be
// called after the holder's next commit.
func (l *FileLock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return err
	}
	_ = os.Remove(l.lockPath + ".meta")
	return nil
}

// Conflict describes two workers whose held locks reference overlapping
// paths — surfaced to the UI, never auto-resolved.
type Conflict struct {
	Path     string
	WorkerA  string
	WorkerB  string
}

// ScanConflicts reads every lock metadata file under locksDir and reports
// any path held by more than one worker. In normal operation this never
// happens (TryLock prevents it) — it exists to surface stale or
// inconsistent lock state for diagnostics.
func ScanConflicts(locksDir string) ([]Conflict, error) {
	entries, err := os.ReadDir(locksDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	byPath := make(map[string][]string)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".meta" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(locksDir, e.Name()))
		if err != nil {
			continue
		}
		var p lockPayload
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		byPath[p.Path] = append(byPath[p.Path], p.WorkerID)
	}

	var conflicts []Conflict
	for path, workers := range byPath {
		if len(workers) > 1 {
			for i := 1; i < len(workers); i++ {
				conflicts = append(conflicts, Conflict{Path: path, WorkerA: workers[0], WorkerB: workers[i]})
			}
		}
	}
	return conflicts, nil
}
