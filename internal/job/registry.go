package job

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rxminer/rxminer/internal/util"
)

// EpochProvider rebuilds the hashing substrate for a seed hash before a
// job referencing it becomes visible to workers. Implemented by
// randomx.Context.
type EpochProvider interface {
	EnsureEpoch(seedHex string) error
}

// published pairs a snapshot with the epoch counter value it was
// published under, so readers observe both atomically.
type published struct {
	job   *Job
	epoch uint64
}

// Registry is the single source of truth for what the workers should
// be mining. Publish replaces the snapshot atomically and wakes every
// waiter; readers never block.
type Registry struct {
	publishMu sync.Mutex // serializes Publish
	current   atomic.Pointer[published]

	// Wakeup for workers waiting on a job or epoch change
	mu   sync.Mutex
	cond *sync.Cond

	closed atomic.Bool

	epochs EpochProvider

	// Duplicate suppression state, guarded by publishMu
	lastID        string
	lastNumericID uint64
	lastIsNumeric bool
	hasLast       bool
}

// NewRegistry creates a registry that rebuilds epochs through the given
// provider before publishing.
func NewRegistry(epochs EpochProvider) *Registry {
	r := &Registry{epochs: epochs}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Publish ingests a new job from the pool. Duplicate job ids (numeric
// comparison, string fallback) are dropped. The seed-hash epoch is made
// resident before the snapshot is replaced, so a worker that observes
// epoch E is guaranteed a matching dataset.
func (r *Registry) Publish(j *Job) error {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	if r.isDuplicateLocked(j.ID) {
		util.Debugf("Skipping duplicate job %s", j.ID)
		return nil
	}

	if err := j.Derive(); err != nil {
		return err
	}

	if err := r.epochs.EnsureEpoch(j.SeedHash); err != nil {
		return err
	}

	prev := r.current.Load()
	next := &published{job: j}
	if prev != nil {
		next.epoch = prev.epoch + 1
	} else {
		next.epoch = 1
	}
	r.current.Store(next)
	r.rememberLocked(j.ID)

	util.Infof("New job %s height %d difficulty %.0f", j.ID, j.Height, j.Difficulty)

	r.mu.Lock()
	r.cond.Broadcast()
	r.mu.Unlock()
	return nil
}

// isDuplicateLocked compares a job id against the last accepted one.
// Ids that parse as decimal integers compare numerically.
func (r *Registry) isDuplicateLocked(id string) bool {
	if !r.hasLast {
		return false
	}
	if n, err := strconv.ParseUint(id, 10, 64); err == nil && r.lastIsNumeric {
		return n == r.lastNumericID
	}
	return id == r.lastID
}

func (r *Registry) rememberLocked(id string) {
	r.lastID = id
	r.hasLast = true
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		r.lastNumericID = n
		r.lastIsNumeric = true
	} else {
		r.lastIsNumeric = false
	}
}

// Current returns the latest snapshot and its epoch; nil before the
// first publish. Never blocks.
func (r *Registry) Current() (*Job, uint64) {
	p := r.current.Load()
	if p == nil {
		return nil, 0
	}
	return p.job, p.epoch
}

// Epoch returns the current epoch counter; 0 before the first publish
func (r *Registry) Epoch() uint64 {
	p := r.current.Load()
	if p == nil {
		return 0
	}
	return p.epoch
}

// WaitForChange blocks until the epoch exceeds observed or the registry
// shuts down. Returns the fresh snapshot, its epoch, and false on
// shutdown.
func (r *Registry) WaitForChange(observed uint64) (*Job, uint64, bool) {
	r.mu.Lock()
	for r.Epoch() <= observed && !r.closed.Load() {
		r.cond.Wait()
	}
	r.mu.Unlock()

	if r.closed.Load() {
		return nil, 0, false
	}
	j, e := r.Current()
	return j, e, true
}

// Close wakes every waiter with the shutdown sentinel
func (r *Registry) Close() {
	r.closed.Store(true)
	r.mu.Lock()
	r.cond.Broadcast()
	r.mu.Unlock()
}
