package worker

import (
	"sync"
	"sync/atomic"

	"github.com/rxminer/rxminer/internal/job"
	"github.com/rxminer/rxminer/internal/randomx"
	"github.com/rxminer/rxminer/internal/stats"
	"github.com/rxminer/rxminer/internal/util"
)

// Pool owns the mining threads
type Pool struct {
	workers []*Worker

	reg     *job.Registry
	onFatal func(error)

	stop atomic.Bool
	wg   sync.WaitGroup
}

// NewPool creates count workers sharing one context, registry,
// submitter and stats sink.
func NewPool(count int, rx *randomx.Context, reg *job.Registry, submit Submitter, st *stats.Stats) *Pool {
	p := &Pool{reg: reg}
	for i := 0; i < count; i++ {
		p.workers = append(p.workers, &Worker{
			id:     i,
			count:  count,
			rx:     rx,
			reg:    reg,
			submit: submit,
			stats:  st,
			pool:   p,
		})
	}
	return p
}

// Start launches every worker
func (p *Pool) Start() {
	util.Infof("Starting %d mining threads", len(p.workers))
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.run()
		}(w)
	}
}

// Stop signals the workers and joins them
func (p *Pool) Stop() {
	p.stop.Store(true)
	p.reg.Close()
	p.wg.Wait()
	util.Info("Mining threads stopped")
}

// OnFatal registers a callback for unrecoverable worker errors (VM
// allocation failure). Set before Start.
func (p *Pool) OnFatal(fn func(error)) {
	p.onFatal = fn
}

func (p *Pool) stopped() bool {
	return p.stop.Load()
}

// fatal is called by a worker that hit an unrecoverable error
func (p *Pool) fatal(err error) {
	p.stop.Store(true)
	p.reg.Close()
	if p.onFatal != nil {
		p.onFatal(err)
	}
}
