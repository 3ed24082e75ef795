// Package randomx owns the RandomX hashing substrate: the per-epoch
// cache and dataset, the worker virtual machines bound to it, and the
// on-disk dataset store.
package randomx

/*
#cgo CFLAGS: -O3
#cgo LDFLAGS: -lrandomx -lm -lstdc++

#include <stdlib.h>

typedef struct randomx_cache randomx_cache;
typedef struct randomx_dataset randomx_dataset;
typedef struct randomx_vm randomx_vm;

typedef enum {
	RANDOMX_FLAG_DEFAULT = 0,
	RANDOMX_FLAG_LARGE_PAGES = 1,
	RANDOMX_FLAG_HARD_AES = 2,
	RANDOMX_FLAG_FULL_MEM = 4,
	RANDOMX_FLAG_JIT = 8,
	RANDOMX_FLAG_SECURE = 16,
	RANDOMX_FLAG_ARGON2_SSSE3 = 32,
	RANDOMX_FLAG_ARGON2_AVX2 = 64,
	RANDOMX_FLAG_ARGON2 = 96
} randomx_flags;

extern randomx_cache *randomx_alloc_cache(randomx_flags flags);
extern void randomx_init_cache(randomx_cache *cache, const void *key, size_t keySize);
extern void randomx_release_cache(randomx_cache *cache);

extern randomx_dataset *randomx_alloc_dataset(randomx_flags flags);
extern unsigned long randomx_dataset_item_count(void);
extern void randomx_init_dataset(randomx_dataset *dataset, randomx_cache *cache, unsigned long startItem, unsigned long itemCount);
extern void *randomx_get_dataset_memory(randomx_dataset *dataset);
extern void randomx_release_dataset(randomx_dataset *dataset);

extern randomx_vm *randomx_create_vm(randomx_flags flags, randomx_cache *cache, randomx_dataset *dataset);
extern void randomx_destroy_vm(randomx_vm *machine);
extern void randomx_calculate_hash(randomx_vm *machine, const void *input, size_t inputSize, void *output);
*/
import "C"
import (
	"errors"
	"fmt"
	"unsafe"
)

// datasetItemSize is the size of one dataset item in bytes
const datasetItemSize = 64

// Aliases so that non-cgo files in the package can name the C handles
type (
	cacheHandle   = C.randomx_cache
	datasetHandle = C.randomx_dataset
	vmHandle      = C.randomx_vm
)

var (
	// ErrStaleVM is returned by Hash when the VM was destroyed by an
	// epoch change; the worker drops its handle and recreates.
	ErrStaleVM = errors.New("randomx: vm belongs to a previous epoch")

	// ErrInit marks allocation or library failures; mining cannot
	// proceed past one, so callers treat it as fatal.
	ErrInit = errors.New("randomx: initialization failed")

	errCacheAlloc   = fmt.Errorf("%w: cache allocation", ErrInit)
	errDatasetAlloc = fmt.Errorf("%w: dataset allocation", ErrInit)
	errVMAlloc      = fmt.Errorf("%w: vm creation", ErrInit)
)

func cacheFlags() C.randomx_flags {
	return C.randomx_flags(C.RANDOMX_FLAG_JIT | C.RANDOMX_FLAG_HARD_AES)
}

func datasetFlags() C.randomx_flags {
	return cacheFlags() | C.randomx_flags(C.RANDOMX_FLAG_FULL_MEM)
}

func vmFlags() C.randomx_flags {
	return C.randomx_flags(C.RANDOMX_FLAG_FULL_MEM | C.RANDOMX_FLAG_JIT |
		C.RANDOMX_FLAG_HARD_AES | C.RANDOMX_FLAG_SECURE)
}

func allocCache() (*C.randomx_cache, error) {
	cache := C.randomx_alloc_cache(cacheFlags())
	if cache == nil {
		return nil, errCacheAlloc
	}
	return cache, nil
}

func initCache(cache *C.randomx_cache, seed []byte) {
	C.randomx_init_cache(cache, unsafe.Pointer(&seed[0]), C.size_t(len(seed)))
}

func releaseCache(cache *C.randomx_cache) {
	C.randomx_release_cache(cache)
}

func allocDataset() (*C.randomx_dataset, error) {
	dataset := C.randomx_alloc_dataset(datasetFlags())
	if dataset == nil {
		return nil, errDatasetAlloc
	}
	return dataset, nil
}

func datasetItemCount() uint64 {
	return uint64(C.randomx_dataset_item_count())
}

// datasetSize is the byte size of the full dataset
func datasetSize() uint64 {
	return datasetItemCount() * datasetItemSize
}

func initDatasetRange(dataset *C.randomx_dataset, cache *C.randomx_cache, start, count uint64) {
	C.randomx_init_dataset(dataset, cache, C.ulong(start), C.ulong(count))
}

// datasetMemory returns the dataset's backing memory as a byte slice.
// The slice aliases C memory and is only valid while the dataset lives.
func datasetMemory(dataset *C.randomx_dataset) []byte {
	ptr := C.randomx_get_dataset_memory(dataset)
	if ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), datasetSize())
}

func releaseDataset(dataset *C.randomx_dataset) {
	C.randomx_release_dataset(dataset)
}

func createVM(dataset *C.randomx_dataset) (*C.randomx_vm, error) {
	vm := C.randomx_create_vm(vmFlags(), nil, dataset)
	if vm == nil {
		return nil, errVMAlloc
	}
	return vm, nil
}

func destroyVM(vm *C.randomx_vm) {
	C.randomx_destroy_vm(vm)
}

func calculateHash(vm *C.randomx_vm, input []byte) [32]byte {
	var out [32]byte
	C.randomx_calculate_hash(vm, unsafe.Pointer(&input[0]), C.size_t(len(input)), unsafe.Pointer(&out[0]))
	return out
}
