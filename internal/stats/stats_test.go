package stats

import (
	"sync"
	"testing"
)

func TestCountersAggregate(t *testing.T) {
	s := New(3)

	for i := 0; i < 10; i++ {
		s.AddHash(0)
	}
	for i := 0; i < 5; i++ {
		s.AddHash(1)
	}
	s.ShareAccepted(0)
	s.ShareAccepted(1)
	s.ShareRejected(2)

	snap := s.Snapshot()
	if snap.TotalHashes != 15 {
		t.Errorf("TotalHashes = %d, want 15", snap.TotalHashes)
	}
	if snap.Accepted != 2 || snap.Rejected != 1 {
		t.Errorf("shares = %d/%d, want 2/1", snap.Accepted, snap.Rejected)
	}
	if snap.Threads[0].Hashes != 10 || snap.Threads[1].Hashes != 5 || snap.Threads[2].Hashes != 0 {
		t.Errorf("per-thread hashes = %d/%d/%d",
			snap.Threads[0].Hashes, snap.Threads[1].Hashes, snap.Threads[2].Hashes)
	}
}

func TestCountersConcurrent(t *testing.T) {
	s := New(4)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for n := 0; n < 1000; n++ {
				s.AddHash(id)
			}
			s.ShareAccepted(id)
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	if snap.TotalHashes != 4000 {
		t.Errorf("TotalHashes = %d, want 4000", snap.TotalHashes)
	}
	if snap.Accepted != 4 {
		t.Errorf("Accepted = %d, want 4", snap.Accepted)
	}
}

func TestSharesMonotone(t *testing.T) {
	s := New(1)

	last := uint64(0)
	for i := 0; i < 50; i++ {
		if i%3 == 0 {
			s.ShareAccepted(0)
		} else {
			s.ShareRejected(0)
		}
		snap := s.Snapshot()
		total := snap.Accepted + snap.Rejected
		if total < last {
			t.Fatalf("accepted+rejected went backwards: %d < %d", total, last)
		}
		last = total
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(1)
	s.StartMonitor()
	s.Stop()
	s.Stop()
}
