package store

import (
	"context"
	"fmt"
)

// PhaseSummary counts the work a session did in one phase.
type PhaseSummary struct {
	Phase   string
	Rounds  int
	Firings int
	Changed int
}

// Transcript is a stored session with its firings and per-phase summaries.
type Transcript struct {
	Session Session
	Firings []Firing
	Phases  []PhaseSummary
	// FailedRule names the rule whose firing carried an error, if any.
	FailedRule string
}

// ReadTranscript assembles the stored history of one session.
func (s *Store) ReadTranscript(ctx context.Context, id string) (Transcript, error) {
	sess, err := s.ReadSession(ctx, id)
	if err != nil {
		return Transcript{}, fmt.Errorf("read transcript: %w", err)
	}
	firings, err := s.ReadFirings(ctx, id)
	if err != nil {
		return Transcript{}, fmt.Errorf("read transcript: %w", err)
	}

	tr := Transcript{Session: sess, Firings: firings}
	index := make(map[string]int)
	for _, f := range firings {
		i, ok := index[f.Phase]
		if !ok {
			i = len(tr.Phases)
			index[f.Phase] = i
			tr.Phases = append(tr.Phases, PhaseSummary{Phase: f.Phase})
		}
		ps := &tr.Phases[i]
		ps.Firings++
		if f.Changed {
			ps.Changed++
		}
		if f.Round > ps.Rounds {
			ps.Rounds = f.Round
		}
		if f.Error != "" && tr.FailedRule == "" {
			tr.FailedRule = f.Rule
		}
	}
	return tr, nil
}
