// Package job defines the pool work unit and the registry that fans it
// out to workers.
package job

import (
	"fmt"

	"github.com/rxminer/rxminer/internal/target"
	"github.com/rxminer/rxminer/internal/util"
)

// blobMinLen is the smallest blob the hash loop accepts; the nonce
// occupies bytes [39..43), so shorter blobs are zero-padded up to this.
const blobMinLen = 43

// NonceOffset is the byte position of the 32-bit big-endian nonce
// within the blob.
const NonceOffset = 39

// Job is one unit of work from the pool. Immutable once published;
// workers operate on snapshots.
type Job struct {
	ID       string `json:"job_id"`
	Blob     string `json:"blob"`
	Target   string `json:"target"`
	Height   uint64 `json:"height"`
	SeedHash string `json:"seed_hash"`

	// Derived on publish, not on the wire
	Compact    uint32      `json:"-"`
	Target256  target.U256 `json:"-"`
	Difficulty float64     `json:"-"`
}

// Derive validates the wire fields and computes the expanded target and
// display difficulty.
func (j *Job) Derive() error {
	if j.ID == "" || j.Blob == "" || j.Target == "" || j.SeedHash == "" {
		return fmt.Errorf("job %q missing required fields", j.ID)
	}

	compact, err := target.ParseCompact(j.Target)
	if err != nil {
		return fmt.Errorf("job %s: %w", j.ID, err)
	}

	j.Compact = compact
	j.Target256 = target.ExpandTarget(compact)
	j.Difficulty = target.Difficulty(j.Target256)
	return nil
}

// BlobBytes decodes the blob hex, zero-padded to the minimum hashable
// length. The returned slice is a fresh copy the worker may mutate.
func (j *Job) BlobBytes() ([]byte, error) {
	b, err := util.HexToBytes(j.Blob)
	if err != nil {
		return nil, fmt.Errorf("job %s: invalid blob: %w", j.ID, err)
	}
	return util.PadBytes(b, blobMinLen), nil
}
