package randomx

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/rxminer/rxminer/internal/util"
)

// maxSeedLen rejects absurd header values before allocating
const maxSeedLen = 64

// datasetPath returns the persisted dataset file for a seed hash
func (c *Context) datasetPath(seedHex string) string {
	return filepath.Join(c.dataDir, "randomx_dataset_"+seedHex+".bin")
}

// writeDatasetHeader writes the file preamble: dataset size (u64 LE),
// seed length (u32 LE), seed bytes.
func writeDatasetHeader(w io.Writer, size uint64, seed []byte) error {
	if err := binary.Write(w, binary.LittleEndian, size); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(seed))); err != nil {
		return err
	}
	_, err := w.Write(seed)
	return err
}

// readDatasetHeader parses the file preamble written by writeDatasetHeader
func readDatasetHeader(r io.Reader) (size uint64, seed []byte, err error) {
	if err = binary.Read(r, binary.LittleEndian, &size); err != nil {
		return 0, nil, err
	}
	var seedLen uint32
	if err = binary.Read(r, binary.LittleEndian, &seedLen); err != nil {
		return 0, nil, err
	}
	if seedLen == 0 || seedLen > maxSeedLen {
		return 0, nil, fmt.Errorf("implausible seed length %d", seedLen)
	}
	seed = make([]byte, seedLen)
	if _, err = io.ReadFull(r, seed); err != nil {
		return 0, nil, err
	}
	return size, seed, nil
}

// persist writes the resident dataset to disk so the next run skips the
// rebuild. Layout: header, dataset bytes, 32-byte blake3 sum of the
// dataset bytes. Failures are non-fatal; the caller logs and moves on.
func (c *Context) persist(dataset *datasetHandle, seedHex string) error {
	memory := datasetMemory(dataset)
	if memory == nil {
		return fmt.Errorf("dataset memory unavailable")
	}

	seed, err := util.HexToBytes(seedHex)
	if err != nil {
		return err
	}

	path := c.datasetPath(seedHex)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 1<<20)
	if err := writeDatasetHeader(w, uint64(len(memory)), seed); err != nil {
		return err
	}

	hasher := blake3.New()
	if _, err := io.MultiWriter(w, hasher).Write(memory); err != nil {
		return err
	}
	if _, err := w.Write(hasher.Sum(nil)); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	util.Infof("Persisted dataset to %s", path)
	return nil
}

// loadPersisted fills dataset from a previously persisted file. Any
// mismatch (size, seed, checksum, truncation) aborts the load and the
// caller rebuilds from scratch.
func (c *Context) loadPersisted(dataset *datasetHandle, seedHex string) bool {
	path := c.datasetPath(seedHex)
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	memory := datasetMemory(dataset)
	if memory == nil {
		return false
	}

	seed, err := util.HexToBytes(seedHex)
	if err != nil {
		return false
	}

	r := bufio.NewReaderSize(f, 1<<20)
	size, fileSeed, err := readDatasetHeader(r)
	if err != nil {
		util.Warnf("Corrupt dataset header in %s: %v", path, err)
		return false
	}
	if size != uint64(len(memory)) {
		util.Warnf("Dataset size mismatch in %s: file %d, expected %d", path, size, len(memory))
		return false
	}
	if !bytes.Equal(fileSeed, seed) {
		util.Warnf("Seed hash mismatch in %s", path)
		return false
	}

	if _, err := io.ReadFull(r, memory); err != nil {
		util.Warnf("Truncated dataset in %s: %v", path, err)
		return false
	}

	var sum [32]byte
	if _, err := io.ReadFull(r, sum[:]); err != nil {
		util.Warnf("Missing dataset checksum in %s: %v", path, err)
		return false
	}
	if blake3.Sum256(memory) != sum {
		util.Warnf("Dataset checksum mismatch in %s", path)
		return false
	}

	util.Infof("Loaded persisted dataset from %s", path)
	return true
}
