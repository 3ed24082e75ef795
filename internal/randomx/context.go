package randomx

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/remeh/sizedwaitgroup"

	"github.com/rxminer/rxminer/internal/util"
)

// maxInitThreads bounds the short-lived dataset initialization pool
const maxInitThreads = 8

// VM is a per-worker RandomX virtual machine bound to the shared
// dataset. A VM is owned by exactly one worker but destroyed centrally
// by the Context when the epoch changes.
type VM struct {
	ptr *vmHandle
	gen uint64
}

// Context owns the cache, dataset and worker VMs for the current
// seed-hash epoch and mediates epoch changes. All VMs reference the
// single shared dataset and must be destroyed before it is released;
// EnsureEpoch enforces that by destroying every live VM under the
// swap lock before touching the dataset.
type Context struct {
	initMu sync.Mutex // serializes epoch changes

	// swapMu is held for writing across the destroy/release/rebuild
	// sequence and for reading around every hash and VM creation, so
	// no VM or hash call can overlap a dataset swap.
	swapMu sync.RWMutex

	dataset *datasetHandle
	seedHex string
	gen     uint64
	dataDir string
	liveVMs map[*VM]struct{}
	vmsMu   sync.Mutex
}

// NewContext creates an empty context. dataDir is where persisted
// datasets are kept; empty means the working directory.
func NewContext(dataDir string) *Context {
	return &Context{
		dataDir: dataDir,
		liveVMs: make(map[*VM]struct{}),
	}
}

// SeedHash returns the seed hash hex of the active epoch, or "" before
// the first EnsureEpoch.
func (c *Context) SeedHash() string {
	c.swapMu.RLock()
	defer c.swapMu.RUnlock()
	return c.seedHex
}

// EnsureEpoch makes the dataset for seedHex resident. Idempotent for
// the active seed. On a seed change every live VM is destroyed, the old
// dataset and cache are released, and the new dataset is loaded from
// disk or rebuilt from scratch and persisted.
func (c *Context) EnsureEpoch(seedHex string) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	c.swapMu.RLock()
	same := c.seedHex == seedHex && c.dataset != nil
	c.swapMu.RUnlock()
	if same {
		util.Debugf("Dataset for seed %s already resident", shortSeed(seedHex))
		return nil
	}

	seed, err := util.HexToBytes(seedHex)
	if err != nil {
		return fmt.Errorf("invalid seed hash %q: %w", seedHex, err)
	}

	c.swapMu.Lock()
	defer c.swapMu.Unlock()

	c.destroyAllVMsLocked()
	// Every outstanding handle is stale from here on, even if the
	// rebuild below fails
	c.gen++

	if c.dataset != nil {
		releaseDataset(c.dataset)
		c.dataset = nil
		c.seedHex = ""
	}

	dataset, err := allocDataset()
	if err != nil {
		return err
	}

	if c.loadPersisted(dataset, seedHex) {
		c.dataset = dataset
		c.seedHex = seedHex
		return nil
	}

	if err := c.buildDataset(dataset, seed, seedHex); err != nil {
		releaseDataset(dataset)
		return err
	}

	c.dataset = dataset
	c.seedHex = seedHex
	return nil
}

// buildDataset initializes dataset from the seed: cache init, parallel
// dataset init across min(NumCPU, 8) threads, then persistence.
func (c *Context) buildDataset(dataset *datasetHandle, seed []byte, seedHex string) error {
	util.Infof("Building RandomX dataset for seed %s", shortSeed(seedHex))

	cache, err := allocCache()
	if err != nil {
		return err
	}
	defer releaseCache(cache)

	initCache(cache, seed)

	threads := runtime.NumCPU()
	if threads > maxInitThreads {
		threads = maxInitThreads
	}
	if threads < 1 {
		threads = 1
	}

	items := datasetItemCount()
	swg := sizedwaitgroup.New(threads)
	for _, r := range splitRanges(items, uint64(threads)) {
		swg.Add()
		go func(start, count uint64) {
			defer swg.Done()
			initDatasetRange(dataset, cache, start, count)
		}(r.start, r.count)
	}
	swg.Wait()

	if err := c.persist(dataset, seedHex); err != nil {
		util.Warnf("Failed to persist dataset: %v", err)
	}

	util.Infof("RandomX dataset ready for seed %s", shortSeed(seedHex))
	return nil
}

// initRange is a contiguous span of dataset items
type initRange struct {
	start uint64
	count uint64
}

// splitRanges partitions items into k contiguous ranges; the last range
// absorbs the remainder.
func splitRanges(items, k uint64) []initRange {
	if k == 0 || items == 0 {
		return nil
	}
	if k > items {
		k = items
	}
	per := items / k
	ranges := make([]initRange, 0, k)
	for j := uint64(0); j < k; j++ {
		start := j * per
		count := per
		if j == k-1 {
			count = items - start
		}
		ranges = append(ranges, initRange{start: start, count: count})
	}
	return ranges
}

// CreateVM allocates a worker VM bound to the shared dataset. Blocks
// while an epoch swap is in progress.
func (c *Context) CreateVM() (*VM, error) {
	c.swapMu.RLock()
	defer c.swapMu.RUnlock()

	if c.dataset == nil {
		return nil, fmt.Errorf("randomx: no dataset resident")
	}

	ptr, err := createVM(c.dataset)
	if err != nil {
		return nil, err
	}

	vm := &VM{ptr: ptr, gen: c.gen}
	c.vmsMu.Lock()
	c.liveVMs[vm] = struct{}{}
	c.vmsMu.Unlock()
	return vm, nil
}

// DestroyVM releases a worker VM. Safe to call on a handle already
// invalidated by an epoch change.
func (c *Context) DestroyVM(vm *VM) {
	if vm == nil {
		return
	}
	c.vmsMu.Lock()
	defer c.vmsMu.Unlock()
	if _, ok := c.liveVMs[vm]; !ok {
		return
	}
	delete(c.liveVMs, vm)
	destroyVM(vm.ptr)
}

// destroyAllVMsLocked tears down every live VM. Caller holds swapMu.
func (c *Context) destroyAllVMsLocked() {
	c.vmsMu.Lock()
	defer c.vmsMu.Unlock()
	for vm := range c.liveVMs {
		destroyVM(vm.ptr)
		delete(c.liveVMs, vm)
	}
}

// Hash computes the RandomX hash of input on the worker's VM. Returns
// ErrStaleVM when the VM was destroyed by an epoch change, in which
// case the caller must drop the handle and wait for the next job.
func (c *Context) Hash(vm *VM, input []byte) ([32]byte, error) {
	c.swapMu.RLock()
	defer c.swapMu.RUnlock()

	if vm.gen != c.gen {
		return [32]byte{}, ErrStaleVM
	}
	return calculateHash(vm.ptr, input), nil
}

// Close destroys every VM and then releases the dataset; the cache
// never outlives a build.
func (c *Context) Close() {
	c.swapMu.Lock()
	defer c.swapMu.Unlock()

	c.destroyAllVMsLocked()
	if c.dataset != nil {
		releaseDataset(c.dataset)
		c.dataset = nil
	}
	c.seedHex = ""
}

func shortSeed(seedHex string) string {
	if len(seedHex) > 16 {
		return seedHex[:16]
	}
	return seedHex
}
