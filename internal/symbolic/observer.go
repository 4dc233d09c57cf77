package symbolic

import (
	"log/slog"
)

// FiringEvent describes one rule invocation.
type FiringEvent struct {
	Session    string
	Phase      Phase
	Round      int
	Rule       string
	Precedence int
	Tuples     int
	Changed    bool
	Err        error
}

// Observer receives scheduler progress. Hosts attach one per session.
// Observers run on the scheduler goroutine and must not block.
type Observer interface {
	PhaseStarted(session string, p Phase)
	RuleApplied(ev FiringEvent)
	PhaseCompleted(session string, p Phase, rounds int)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) PhaseStarted(string, Phase)        {}
func (NopObserver) RuleApplied(FiringEvent)           {}
func (NopObserver) PhaseCompleted(string, Phase, int) {}

// SlogObserver logs scheduler progress at debug level and rule failures at
// error level.
type SlogObserver struct {
	Logger *slog.Logger
}

// NewSlogObserver returns an observer writing to logger, or to the default
// logger when logger is nil.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogObserver{Logger: logger}
}

func (o *SlogObserver) PhaseStarted(session string, p Phase) {
	o.Logger.Debug("phase started", "session", session, "phase", p.String())
}

func (o *SlogObserver) RuleApplied(ev FiringEvent) {
	if ev.Err != nil {
		o.Logger.Error("rule failed",
			"session", ev.Session,
			"phase", ev.Phase.String(),
			"round", ev.Round,
			"rule", ev.Rule,
			"error", ev.Err,
		)
		return
	}
	o.Logger.Debug("rule applied",
		"session", ev.Session,
		"phase", ev.Phase.String(),
		"round", ev.Round,
		"rule", ev.Rule,
		"tuples", ev.Tuples,
		"changed", ev.Changed,
	)
}

func (o *SlogObserver) PhaseCompleted(session string, p Phase, rounds int) {
	o.Logger.Debug("phase completed", "session", session, "phase", p.String(), "rounds", rounds)
}

// MultiObserver fans events out in order.
type MultiObserver []Observer

func (m MultiObserver) PhaseStarted(session string, p Phase) {
	for _, o := range m {
		o.PhaseStarted(session, p)
	}
}

func (m MultiObserver) RuleApplied(ev FiringEvent) {
	for _, o := range m {
		o.RuleApplied(ev)
	}
}

func (m MultiObserver) PhaseCompleted(session string, p Phase, rounds int) {
	for _, o := range m {
		o.PhaseCompleted(session, p, rounds)
	}
}
