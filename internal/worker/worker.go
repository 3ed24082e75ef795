// Package worker drives the nonce search: each worker owns one RandomX
// VM, scans its slice of the 32-bit nonce space over the current job,
// and submits hashes that meet the target.
package worker

import (
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/rxminer/rxminer/internal/job"
	"github.com/rxminer/rxminer/internal/randomx"
	"github.com/rxminer/rxminer/internal/stats"
	"github.com/rxminer/rxminer/internal/target"
	"github.com/rxminer/rxminer/internal/util"
)

const (
	// AlgoTag identifies the hash algorithm on submits
	AlgoTag = "rx/0"

	// submitAttempts bounds retries for one candidate share
	submitAttempts = 3
	// submitRetryDelay separates consecutive attempts
	submitRetryDelay = 100 * time.Millisecond
)

// stepResult tells the outer worker loop why the hash loop stopped
type stepResult int

const (
	stepNewEpoch stepResult = iota // job or epoch changed, re-read the snapshot
	stepWrapped                    // nonce space exhausted, wait for a new job
	stepShutdown                   // stop requested
	stepBadJob                     // snapshot unusable, wait for a new job
)

// Submitter sends shares to the pool. Implemented by pool.Client.
type Submitter interface {
	Submit(jobID, nonceHex, hashHex, algo string) error
}

// Worker is one mining thread
type Worker struct {
	id    int
	count int

	rx     *randomx.Context
	reg    *job.Registry
	submit Submitter
	stats  *stats.Stats
	pool   *Pool

	vm *randomx.VM
}

// startNonce is worker i's slot in the partitioned nonce space:
// i * (2^32 / N), scanning upward.
func startNonce(id, count int) uint32 {
	return uint32(uint64(id) * ((1 << 32) / uint64(count)))
}

// run is the worker's main loop: wait for a job, (re)create the VM if
// the last epoch change destroyed it, and hash until something changes.
func (w *Worker) run() {
	observed := uint64(0)

	for {
		if w.pool.stopped() {
			return
		}

		j, epoch := w.reg.Current()
		if j == nil || epoch <= observed {
			var ok bool
			j, epoch, ok = w.reg.WaitForChange(observed)
			if !ok {
				return
			}
		}
		observed = epoch

		if w.vm == nil {
			vm, err := w.rx.CreateVM()
			if err != nil {
				util.Errorf("Thread %d: VM allocation failed: %v", w.id, err)
				w.pool.fatal(err)
				return
			}
			w.vm = vm
			util.Debugf("Thread %d: VM ready", w.id)
		}

		switch w.mineJob(j, epoch) {
		case stepShutdown:
			return
		case stepNewEpoch, stepWrapped, stepBadJob:
			// Loop; the epoch guard above blocks until there is
			// genuinely new work.
		}
	}
}

// mineJob scans nonces over one snapshot until the epoch moves on,
// the nonce space wraps, or shutdown.
func (w *Worker) mineJob(j *job.Job, epoch uint64) stepResult {
	blob, err := j.BlobBytes()
	if err != nil {
		util.Warnf("Thread %d: %v", w.id, err)
		return stepBadJob
	}

	nonce := startNonce(w.id, w.count)
	util.Debugf("Thread %d: job %s from nonce %08x", w.id, j.ID, nonce)

	for {
		if w.pool.stopped() {
			return stepShutdown
		}

		binary.BigEndian.PutUint32(blob[job.NonceOffset:job.NonceOffset+4], nonce)

		hash, err := w.rx.Hash(w.vm, blob)
		if err != nil {
			if errors.Is(err, randomx.ErrStaleVM) {
				w.vm = nil
				return stepNewEpoch
			}
			util.Errorf("Thread %d: hash failed: %v", w.id, err)
			return stepBadJob
		}
		w.stats.AddHash(w.id)

		if target.Meets(target.HashValue(hash), j.Target256) {
			w.submitShare(j, nonce, hash)
		}

		if w.reg.Epoch() != epoch {
			return stepNewEpoch
		}
		if nonce == math.MaxUint32 {
			util.Warnf("Thread %d: nonce space exhausted on job %s", w.id, j.ID)
			return stepWrapped
		}
		nonce++
	}
}

// submitShare formats and submits one candidate, retrying on failure.
// A candidate computed under a superseded job is dropped silently.
func (w *Worker) submitShare(j *job.Job, nonce uint32, hash [32]byte) {
	if cur, _ := w.reg.Current(); cur == nil || cur.ID != j.ID {
		util.Debugf("Thread %d: dropping stale candidate for job %s", w.id, j.ID)
		return
	}

	nonceHex := util.NonceToHex(nonce)
	hashHex := util.BytesToHex(hash[:])
	util.Infof("Thread %d: share found, job %s nonce %s", w.id, j.ID, nonceHex)

	for attempt := 1; attempt <= submitAttempts; attempt++ {
		err := w.submit.Submit(j.ID, nonceHex, hashHex, AlgoTag)
		if err == nil {
			w.stats.ShareAccepted(w.id)
			util.Infof("Thread %d: share accepted", w.id)
			return
		}
		util.Warnf("Thread %d: submit attempt %d/%d failed: %v", w.id, attempt, submitAttempts, err)
		if attempt < submitAttempts {
			time.Sleep(submitRetryDelay)
		}
	}
	w.stats.ShareRejected(w.id)
}
