package job

import (
	"sync"

	"github.com/Klingon-tech/slp-validator/internal/graph"
	"github.com/Klingon-tech/slp-validator/pkg/types"
)

// Outcome tags how a job run ended.
type Outcome int

const (
	OutcomeRunning Outcome = iota
	OutcomeComplete
	OutcomeIncomplete // a resource limit was hit, or the frontier ran out, before every root decided
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRunning:
		return "running"
	case OutcomeComplete:
		return "complete"
	case OutcomeIncomplete:
		return "incomplete"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Status is the externally observable state of a job, per spec.md §6:
// {validity, downloads_made, depths_reached, error_msg?, cancelled}.
type Status struct {
	mu            sync.Mutex
	outcome       Outcome
	validity      map[types.TxID]graph.Validity
	downloadsMade int
	depthsReached int
	errorMsg      string
	cancelled     bool
	done          chan struct{}
}

func newStatus(roots []types.TxID) *Status {
	s := &Status{
		outcome:  OutcomeRunning,
		validity: make(map[types.TxID]graph.Validity, len(roots)),
		done:     make(chan struct{}),
	}
	for _, r := range roots {
		s.validity[r] = graph.Unknown
	}
	return s
}

// Snapshot is a point-in-time copy of Status safe to read without a lock.
type Snapshot struct {
	Outcome       Outcome
	Validity      map[types.TxID]graph.Validity
	DownloadsMade int
	DepthsReached int
	ErrorMsg      string
	Cancelled     bool
}

// Snapshot returns a copy of the current status.
func (s *Status) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make(map[types.TxID]graph.Validity, len(s.validity))
	for k, val := range s.validity {
		v[k] = val
	}
	return Snapshot{
		Outcome:       s.outcome,
		Validity:      v,
		DownloadsMade: s.downloadsMade,
		DepthsReached: s.depthsReached,
		ErrorMsg:      s.errorMsg,
		Cancelled:     s.cancelled,
	}
}

// Done returns a channel closed once the job finishes, for Wait.
func (s *Status) Done() <-chan struct{} {
	return s.done
}

func (s *Status) setRootValidity(txid types.TxID, v graph.Validity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validity[txid] = v
}

func (s *Status) recordDownload() {
	s.mu.Lock()
	s.downloadsMade++
	s.mu.Unlock()
}

func (s *Status) recordDepth(d int) {
	s.mu.Lock()
	if d > s.depthsReached {
		s.depthsReached = d
	}
	s.mu.Unlock()
}

func (s *Status) recordError(msg string) {
	s.mu.Lock()
	s.errorMsg = msg
	s.mu.Unlock()
}

func (s *Status) finish(outcome Outcome) {
	s.mu.Lock()
	if s.outcome == OutcomeRunning {
		s.outcome = outcome
		if outcome == OutcomeCancelled {
			s.cancelled = true
		}
	}
	s.mu.Unlock()
	close(s.done)
}
