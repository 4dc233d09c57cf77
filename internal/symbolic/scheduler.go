package symbolic

import (
	"context"
	"fmt"

	"github.com/roach88/sqltutor/internal/logic"
)

// Scheduler runs a registry's rules over session states.
//
// A Scheduler holds no per-session data and may be shared by concurrent
// sessions as long as its Evaluator is safe for that; the default creates
// one evaluator per phase run.
type Scheduler struct {
	registry  *Registry
	evaluator func() logic.Evaluator
	observer  Observer
	maxRounds int
	phases    []Phase
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithMaxRounds bounds the rounds per phase. Zero means no limit.
func WithMaxRounds(n int) SchedulerOption {
	return func(s *Scheduler) {
		s.maxRounds = n
	}
}

// WithObserver attaches an observer.
func WithObserver(o Observer) SchedulerOption {
	return func(s *Scheduler) {
		s.observer = o
	}
}

// WithEvaluator replaces the fact evaluator. newEval is called once per
// phase run.
func WithEvaluator(newEval func() logic.Evaluator) SchedulerOption {
	return func(s *Scheduler) {
		s.evaluator = newEval
	}
}

// WithPhases restricts Run to phases, in the given order.
func WithPhases(phases ...Phase) SchedulerOption {
	return func(s *Scheduler) {
		s.phases = phases
	}
}

// NewScheduler returns a Scheduler for reg.
func NewScheduler(reg *Registry, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		registry:  reg,
		evaluator: func() logic.Evaluator { return logic.NewMemEvaluator() },
		observer:  NopObserver{},
		phases:    AllPhases,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives st through every configured phase.
func (s *Scheduler) Run(ctx context.Context, st *State) error {
	for _, p := range s.phases {
		if err := s.RunPhase(ctx, st, p); err != nil {
			return err
		}
	}
	return nil
}

// RunPhase iterates the rules of phase p to a fixpoint.
func (s *Scheduler) RunPhase(ctx context.Context, st *State, p Phase) error {
	if st.running {
		return &RuntimeError{Code: ErrCodeReentrant, Message: "scheduler started from a rule handler", Session: st.ID, Phase: p}
	}
	st.running = true
	defer func() { st.running = false }()

	rules := s.registry.ForPhase(p)
	clauses := s.registry.Clauses(p)
	declared := s.registry.Declared()
	eval := s.evaluator()

	s.observer.PhaseStarted(st.ID, p)
	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("phase %s: %w", p, err)
		}
		if s.maxRounds > 0 && round > s.maxRounds {
			return NewRoundLimitError(st.ID, p, s.maxRounds)
		}

		changed := false
		var fs *logic.FactSet
		var projected stamp
		for _, rule := range rules {
			// Re-project whenever an earlier rule touched the tree or state.
			if fs == nil || projected != st.stamp() {
				var err error
				if fs, err = st.Project(declared); err != nil {
					return fmt.Errorf("phase %s round %d: %w", p, round, err)
				}
				projected = st.stamp()
			}

			tuples, err := eval.Evaluate(fs, clauses, rule.Query)
			if err != nil {
				return &RuleError{Rule: rule.Name, Phase: p, Round: round, Err: err}
			}
			if len(tuples) == 0 {
				continue
			}

			ok, err := rule.Apply(st, tuples)
			s.observer.RuleApplied(FiringEvent{
				Session:    st.ID,
				Phase:      p,
				Round:      round,
				Rule:       rule.Name,
				Precedence: rule.Precedence,
				Tuples:     len(tuples),
				Changed:    ok,
				Err:        err,
			})
			if err != nil {
				return &RuleError{Rule: rule.Name, Phase: p, Round: round, Err: err}
			}
			if ok {
				if st.stamp() == projected {
					return &RuntimeError{
						Code:    ErrCodeNoProgress,
						Message: "rule reported a change but the tree and state are unchanged",
						Session: st.ID,
						Phase:   p,
						Rule:    rule.Name,
						Round:   round,
					}
				}
				changed = true
			}
		}

		if !changed {
			s.observer.PhaseCompleted(st.ID, p, round)
			return nil
		}
	}
}
