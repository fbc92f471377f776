package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/podctl/internal/data"
	"github.com/roach88/podctl/internal/pod"
	"github.com/roach88/podctl/internal/protocol"
)

// Owner is the claim name the engine uses for the state machine domain.
const Owner = "engine"

// Engine is the single writer of the state machine domain.
//
// Thread-safety model:
//   - Step(), Run(): must be called from exactly one goroutine
//   - Phase(), Cycle(), Failed(): only meaningful from that goroutine or
//     after Run has returned
//
// INVARIANTS:
//   - A transition is published only if pod.CanTransition allows it
//   - failed only grows; a module seen in CriticalFailure stays latched
//   - A cycle without a transition has no side effects
type Engine struct {
	store     *data.Store
	writer    *data.Writer[pod.StateMachineData]
	flag      *data.RunFlag
	policy    Policy
	clock     Clock
	logger    *slog.Logger
	observers []Observer
	phases    map[pod.Phase]phaseBehavior

	cycle     int64
	failed    pod.ModuleSet
	statuses  protocol.Statuses
	enteredAt time.Time
	started   bool

	// Phase-local: set once the brakes report Running within the phase.
	brakesRunning bool
}

// Option allows configuration of engine collaborators.
type Option func(*Engine)

// WithClock sets the wall clock used by the timeout guard.
// Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the engine logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithObserver registers an observer. Observers are notified in
// registration order.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// New validates the policy and claims the state machine domain.
//
// Returns a *PolicyError if the policy cannot be run, or an error wrapping
// data.ErrAlreadyClaimed if another writer owns the state machine domain.
func New(s *data.Store, flag *data.RunFlag, policy Policy, opts ...Option) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	w, err := s.ClaimStateMachine(Owner)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e := &Engine{
		store:  s,
		writer: w,
		flag:   flag,
		policy: policy,
		clock:  SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine")
	e.phases = e.phaseTable()

	return e, nil
}

// Run cycles the engine until the run flag is cleared or ctx ends.
//
// Returns nil when the flag is cleared (shutdown or Exiting) and ctx.Err()
// when the context ends first.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting",
		"phase", e.Phase().String(),
		"subscribed", e.policy.Subscribed.String(),
		"period", e.policy.CyclePeriod,
	)

	err := protocol.Loop(ctx, e.flag, e.policy.CyclePeriod, func(ctx context.Context) {
		e.Step(ctx)
	})

	e.logger.Info("engine stopped",
		"phase", e.Phase().String(),
		"cycles", e.cycle,
		"failed", e.failed.String(),
	)
	return err
}

// Step runs one engine cycle and returns the phase published at its end.
func (e *Engine) Step(ctx context.Context) pod.Phase {
	e.cycle++
	now := e.clock.Now()

	sm := e.store.StateMachine()
	if !e.started {
		e.enteredAt = now
		e.started = true
	}

	st := protocol.Observe(e.store, e.policy.Subscribed)
	e.reportStatusChanges(st, now)
	if newly := st.Failed().Subtract(e.failed); !newly.Empty() {
		e.failed = e.failed.Union(newly)
		e.logger.Error("critical failure latched",
			"modules", newly.String(),
			"phase", sm.CurrentPhase.String(),
			"cycle", e.cycle,
		)
	}

	in := cycleInput{
		phase:     sm.CurrentPhase,
		statuses:  st,
		nav:       e.store.Navigation(),
		telemetry: e.store.Telemetry(),
		now:       now,
	}

	d, ok := e.evaluate(in)
	if !ok {
		if sm.FailedModules != e.failed {
			e.republishFailed(sm)
		}
		return sm.CurrentPhase
	}
	return e.transition(sm, d, now)
}

// republishFailed publishes a latch that grew without a phase change, as
// happens inside EmergencyBraking or a terminal phase. Phase and reason are
// left as they were.
func (e *Engine) republishFailed(sm pod.StateMachineData) {
	sm.FailedModules = e.failed
	e.writer.Set(sm)
	e.logger.Warn("failed modules republished",
		"phase", sm.CurrentPhase.String(),
		"failed", e.failed.String(),
		"cycle", e.cycle,
	)
}

// Phase returns the currently published phase.
func (e *Engine) Phase() pod.Phase {
	return e.writer.Get().CurrentPhase
}

// Cycle returns the number of cycles run so far.
func (e *Engine) Cycle() int64 {
	return e.cycle
}

// Failed returns the modules latched as failed.
func (e *Engine) Failed() pod.ModuleSet {
	return e.failed
}

// cycleInput is everything one cycle's decision may depend on.
type cycleInput struct {
	phase     pod.Phase
	statuses  protocol.Statuses
	nav       pod.NavigationData
	telemetry pod.TelemetryData
	now       time.Time
}

// decision is a requested transition.
type decision struct {
	to     pod.Phase
	reason string
}

// evaluate applies the policy in priority order: terminal, fail-safe
// override, nominal rule, timeout guard.
func (e *Engine) evaluate(in cycleInput) (decision, bool) {
	if in.phase.IsTerminal() {
		if in.telemetry.ShutdownCommand && e.flag.Running() {
			e.logger.Info("shutdown requested", "phase", in.phase.String())
			e.flag.Stop()
		}
		return decision{}, false
	}

	if !in.phase.IsFailSafe() {
		if !e.failed.Empty() {
			return decision{to: pod.PhaseEmergencyBraking, reason: failureReason(e.failed)}, true
		}
		if in.telemetry.EmergencyStopCommand {
			return decision{to: pod.PhaseEmergencyBraking, reason: ReasonEmergencyStop}, true
		}
	}

	if b := e.phases[in.phase]; b.check != nil {
		if d, ok := b.check(in); ok {
			return d, true
		}
	}

	if t, ok := e.policy.Timeouts[in.phase]; ok && in.now.Sub(e.enteredAt) > t.After {
		return decision{to: t.EscalateTo, reason: timeoutReason(in.phase)}, true
	}
	return decision{}, false
}

// transition publishes the new phase: exit(old), publish, enter(new),
// notify observers.
func (e *Engine) transition(sm pod.StateMachineData, d decision, now time.Time) pod.Phase {
	from := sm.CurrentPhase
	if !pod.CanTransition(from, d.to) {
		e.logger.Error("illegal transition suppressed",
			"from", from.String(),
			"to", d.to.String(),
			"reason", d.reason,
			"allowed", pod.Successors(from),
		)
		return from
	}

	next := sm
	next.PreviousPhase = from
	next.CurrentPhase = d.to
	next.Reason = d.reason
	next.Cycle = e.cycle
	next.FailedModules = e.failed

	if b := e.phases[from]; b.exit != nil {
		b.exit(&next)
	}
	seq := e.writer.Set(next)

	t := Transition{
		From:          from,
		To:            d.to,
		Reason:        d.reason,
		Cycle:         e.cycle,
		Seq:           seq,
		At:            now,
		FailedModules: e.failed,
	}

	e.enteredAt = now
	e.brakesRunning = false
	e.logger.Info("phase change",
		"from", from.String(),
		"to", d.to.String(),
		"reason", d.reason,
		"cycle", e.cycle,
	)
	if b := e.phases[d.to]; b.enter != nil {
		b.enter(t)
	}

	for _, o := range e.observers {
		o.OnTransition(t)
	}
	return d.to
}

func (e *Engine) reportStatusChanges(st protocol.Statuses, now time.Time) {
	prev := e.statuses
	e.statuses = st
	for _, m := range st.Diff(prev) {
		c := StatusChange{
			Module: m,
			From:   prev.Of(m),
			To:     st.Of(m),
			Cycle:  e.cycle,
			At:     now,
		}
		e.logger.Debug("module status",
			"module", m.String(),
			"from", c.From.String(),
			"to", c.To.String(),
		)
		for _, o := range e.observers {
			o.OnStatusChange(c)
		}
	}
}
