package job

import (
	"context"
	"fmt"
	"sync"

	"github.com/Klingon-tech/slp-validator/internal/graph"
	"github.com/Klingon-tech/slp-validator/internal/log"
	"github.com/Klingon-tech/slp-validator/pkg/types"
)

// Manager runs submitted jobs one at a time off a single FIFO queue, on a
// single worker goroutine. A killed manager drops its queue and cancels
// whatever is running; it cannot be reused (spec.md §4.4).
type Manager struct {
	mu      sync.Mutex
	queue   chan *submission
	killed  bool
	killCh  chan struct{}
	current *Job
	wg      sync.WaitGroup
}

type submission struct {
	j *Job
}

// Handle is returned from Submit. It lets the caller cancel the job, block
// until it finishes, and inspect its status and resulting node map.
type Handle struct {
	job *Job
}

// Cancel requests cooperative cancellation of this one job.
func (h *Handle) Cancel() { h.job.Cancel() }

// Wait blocks until the job finishes.
func (h *Handle) Wait() {
	<-h.job.Status().Done()
}

// Status returns the job's current (possibly still running) status.
func (h *Handle) Status() Snapshot { return h.job.Status().Snapshot() }

// Nodes returns the graph's node map as it stood when the job stopped
// touching it. Safe to call any time; most useful after Wait returns.
func (h *Handle) Nodes() map[types.TxID]*graph.Node {
	return h.job.cfg.Graph.Nodes()
}

// NewManager creates a manager with a FIFO queue of the given depth. A
// depth of 0 still accepts one pending submission beyond the one running.
func NewManager(queueDepth int) *Manager {
	if queueDepth < 1 {
		queueDepth = 1
	}
	m := &Manager{
		queue:  make(chan *submission, queueDepth),
		killCh: make(chan struct{}),
	}
	m.wg.Add(1)
	go m.run()
	return m
}

// Submit enqueues cfg as a new job and returns its handle. Returns an error
// if the manager has been killed.
func (m *Manager) Submit(cfg Config) (*Handle, error) {
	m.mu.Lock()
	if m.killed {
		m.mu.Unlock()
		return nil, fmt.Errorf("job: manager is killed, submit a new one")
	}
	m.mu.Unlock()

	j := New(cfg)
	h := &Handle{job: j}

	select {
	case m.queue <- &submission{j: j}:
		return h, nil
	case <-m.killCh:
		return nil, fmt.Errorf("job: manager is killed, submit a new one")
	}
}

// run is the single worker: pop, run to completion, repeat. Stops draining
// once killed; a job already running is cancelled by Kill, not by run.
func (m *Manager) run() {
	defer m.wg.Done()
	for {
		select {
		case <-m.killCh:
			return
		default:
		}

		select {
		case sub := <-m.queue:
			m.mu.Lock()
			m.current = sub.j
			m.mu.Unlock()

			log.JobManager.Info().Msg("job started")
			sub.j.Run(context.Background())
			log.JobManager.Info().Str("outcome", sub.j.Status().Snapshot().Outcome.String()).Msg("job finished")

			m.mu.Lock()
			m.current = nil
			m.mu.Unlock()
		case <-m.killCh:
			return
		}
	}
}

// Kill cancels whatever job is running, drops every queued job (marking each
// Cancelled so its handle's Wait unblocks), and leaves the manager
// permanently unusable.
func (m *Manager) Kill() {
	m.mu.Lock()
	if m.killed {
		m.mu.Unlock()
		return
	}
	m.killed = true
	current := m.current
	close(m.killCh)
	m.mu.Unlock()

	if current != nil {
		current.Cancel()
	}
	m.wg.Wait()

drain:
	for {
		select {
		case sub := <-m.queue:
			sub.j.Cancel()
			sub.j.status.finish(OutcomeCancelled)
		default:
			break drain
		}
	}
}
