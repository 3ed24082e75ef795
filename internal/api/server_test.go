package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rxminer/rxminer/internal/config"
	"github.com/rxminer/rxminer/internal/stats"
)

type fakeJobs struct{ epoch uint64 }

func (f fakeJobs) Epoch() uint64 { return f.epoch }

func newTestServer(t *testing.T) (*Server, *stats.Stats) {
	t.Helper()
	cfg := &config.Config{API: config.APIConfig{Enabled: true, Bind: "127.0.0.1:0"}}
	st := stats.New(2)
	return NewServer(cfg, st, fakeJobs{epoch: 7}), st
}

func TestHandleStats(t *testing.T) {
	s, st := newTestServer(t)
	st.AddHash(0)
	st.AddHash(1)
	st.ShareAccepted(0)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp StatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Snapshot.TotalHashes != 2 {
		t.Errorf("TotalHashes = %d, want 2", resp.Snapshot.TotalHashes)
	}
	if resp.Snapshot.Accepted != 1 {
		t.Errorf("Accepted = %d, want 1", resp.Snapshot.Accepted)
	}
	if resp.Epoch != 7 {
		t.Errorf("Epoch = %d, want 7", resp.Epoch)
	}
}

func TestHandleWorkers(t *testing.T) {
	s, st := newTestServer(t)
	st.AddHash(1)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/workers", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var threads []stats.ThreadSummary
	if err := json.Unmarshal(w.Body.Bytes(), &threads); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(threads) != 2 {
		t.Fatalf("threads = %d, want 2", len(threads))
	}
	if threads[1].Hashes != 1 {
		t.Errorf("thread 1 hashes = %d, want 1", threads[1].Hashes)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
