// Package stats keeps the in-memory mining counters and logs periodic
// hashrate reports.
package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rxminer/rxminer/internal/util"
)

// reportInterval is how often the monitor logs a hashrate line
const reportInterval = 30 * time.Second

// ThreadCounters are one worker's counters, updated with atomics only
type ThreadCounters struct {
	Hashes   atomic.Uint64
	Accepted atomic.Uint64
	Rejected atomic.Uint64
}

// Stats aggregates per-thread counters and runs the monitor goroutine
type Stats struct {
	start   time.Time
	threads []*ThreadCounters

	totalHashes atomic.Uint64

	quit chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// Snapshot is a point-in-time view of the counters, served by the API
// and logged by the monitor.
type Snapshot struct {
	UptimeSeconds uint64          `json:"uptime_seconds"`
	TotalHashes   uint64          `json:"total_hashes"`
	Hashrate      float64         `json:"hashrate"`
	Accepted      uint64          `json:"accepted"`
	Rejected      uint64          `json:"rejected"`
	Threads       []ThreadSummary `json:"threads"`
}

// ThreadSummary is one worker's slice of a Snapshot
type ThreadSummary struct {
	ID       int     `json:"id"`
	Hashes   uint64  `json:"hashes"`
	Hashrate float64 `json:"hashrate"`
	Accepted uint64  `json:"accepted"`
	Rejected uint64  `json:"rejected"`
}

// New creates counters for numThreads workers
func New(numThreads int) *Stats {
	s := &Stats{
		start:   time.Now(),
		threads: make([]*ThreadCounters, numThreads),
		quit:    make(chan struct{}),
	}
	for i := range s.threads {
		s.threads[i] = &ThreadCounters{}
	}
	return s
}

// Thread returns worker i's counters
func (s *Stats) Thread(i int) *ThreadCounters {
	return s.threads[i]
}

// AddHash records one hash for worker i
func (s *Stats) AddHash(i int) {
	s.threads[i].Hashes.Add(1)
	s.totalHashes.Add(1)
}

// ShareAccepted records an accepted share for worker i
func (s *Stats) ShareAccepted(i int) {
	s.threads[i].Accepted.Add(1)
}

// ShareRejected records a rejected share for worker i
func (s *Stats) ShareRejected(i int) {
	s.threads[i].Rejected.Add(1)
}

// Snapshot assembles the current counters. Hashrates are lifetime
// averages; good enough for a console miner.
func (s *Stats) Snapshot() Snapshot {
	elapsed := time.Since(s.start).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}

	snap := Snapshot{
		UptimeSeconds: uint64(elapsed),
		TotalHashes:   s.totalHashes.Load(),
		Threads:       make([]ThreadSummary, len(s.threads)),
	}
	snap.Hashrate = float64(snap.TotalHashes) / elapsed

	for i, tc := range s.threads {
		hashes := tc.Hashes.Load()
		snap.Threads[i] = ThreadSummary{
			ID:       i,
			Hashes:   hashes,
			Hashrate: float64(hashes) / elapsed,
			Accepted: tc.Accepted.Load(),
			Rejected: tc.Rejected.Load(),
		}
		snap.Accepted += snap.Threads[i].Accepted
		snap.Rejected += snap.Threads[i].Rejected
	}
	return snap
}

// StartMonitor launches the periodic hashrate logger
func (s *Stats) StartMonitor() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(reportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.quit:
				return
			case <-ticker.C:
				s.report()
			}
		}
	}()
}

func (s *Stats) report() {
	snap := s.Snapshot()
	util.Infof("Hashrate %s | shares %d/%d | total hashes %d | up %s",
		util.FormatHashrate(snap.Hashrate), snap.Accepted, snap.Rejected,
		snap.TotalHashes, util.FormatRuntime(snap.UptimeSeconds))
	for _, th := range snap.Threads {
		util.Debugf("Thread %d: %s, %d hashes, shares %d/%d",
			th.ID, util.FormatHashrate(th.Hashrate), th.Hashes, th.Accepted, th.Rejected)
	}
}

// Stop halts the monitor
func (s *Stats) Stop() {
	s.once.Do(func() { close(s.quit) })
	s.wg.Wait()
}

// LogSummary prints the end-of-run totals
func (s *Stats) LogSummary() {
	snap := s.Snapshot()
	util.Infof("Session summary: %d accepted, %d rejected, %d hashes, average %s over %s",
		snap.Accepted, snap.Rejected, snap.TotalHashes,
		util.FormatHashrate(snap.Hashrate), util.FormatRuntime(snap.UptimeSeconds))
}
