package store

import (
	"context"
	"sync"

	"github.com/roach88/sqltutor/internal/symbolic"
)

// Recorder is a scheduler observer that buffers firings and writes them
// with Flush. Each firing is stamped from the store clock when it is
// reported, so buffered firings keep scheduler order.
type Recorder struct {
	store *Store

	mu      sync.Mutex
	pending []Firing
}

var _ symbolic.Observer = (*Recorder)(nil)

// NewRecorder returns a recorder writing to s.
func NewRecorder(s *Store) *Recorder {
	return &Recorder{store: s}
}

func (r *Recorder) PhaseStarted(string, symbolic.Phase) {}

func (r *Recorder) RuleApplied(ev symbolic.FiringEvent) {
	f := Firing{
		Session:    ev.Session,
		Seq:        r.store.NextSeq(),
		Phase:      ev.Phase.String(),
		Round:      ev.Round,
		Rule:       ev.Rule,
		Precedence: ev.Precedence,
		Tuples:     ev.Tuples,
		Changed:    ev.Changed,
	}
	if ev.Err != nil {
		f.Error = ev.Err.Error()
	}
	r.mu.Lock()
	r.pending = append(r.pending, f)
	r.mu.Unlock()
}

func (r *Recorder) PhaseCompleted(string, symbolic.Phase, int) {}

// Pending returns the number of buffered firings.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Flush writes the firings of session in one transaction and drops them
// from the buffer. The session row must be written first. Firings of other
// sessions stay buffered.
func (r *Recorder) Flush(ctx context.Context, session string) error {
	r.mu.Lock()
	var mine, rest []Firing
	for _, f := range r.pending {
		if f.Session == session {
			mine = append(mine, f)
		} else {
			rest = append(rest, f)
		}
	}
	r.pending = rest
	r.mu.Unlock()

	if err := r.store.WriteFirings(ctx, mine); err != nil {
		r.mu.Lock()
		r.pending = append(mine, r.pending...)
		r.mu.Unlock()
		return err
	}
	return nil
}

// Discard drops the buffered firings of session.
func (r *Recorder) Discard(session string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.pending[:0]
	for _, f := range r.pending {
		if f.Session != session {
			kept = append(kept, f)
		}
	}
	r.pending = kept
}
