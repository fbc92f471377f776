package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/podctl/internal/config"
	"github.com/roach88/podctl/internal/data"
	"github.com/roach88/podctl/internal/engine"
	"github.com/roach88/podctl/internal/pod"
	"github.com/roach88/podctl/internal/testutil"
)

// Harness is one scenario execution: an engine, its store and a writer
// for every module domain.
//
// The domain writers bypass the publishing adapters, so a scenario can
// produce any status sequence, including a revert out of CriticalFailure.
type Harness struct {
	store  *data.Store
	flag   *data.RunFlag
	clock  *testutil.FakeClock
	trace  *engine.Trace
	engine *engine.Engine
	logger *slog.Logger

	nav       *data.Writer[pod.NavigationData]
	sensors   *data.Writer[pod.SensorsData]
	prop      *data.Writer[pod.PropulsionData]
	brakes    *data.Writer[pod.BrakesData]
	telemetry *data.Writer[pod.TelemetryData]
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Resolve the profile
//  2. Build a fresh store, engine and domain writers
//  3. Execute steps, checking expect clauses
//  4. Check trace legality and evaluate assertions
//
// A returned error means the scenario could not be executed; failed
// expectations are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with engine logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	profile := config.Default()
	if scenario.Profile != "" {
		var err error
		profile, err = config.Parse([]byte(scenario.Profile), scenario.Name+".cue")
		if err != nil {
			return nil, fmt.Errorf("failed to resolve profile: %w", err)
		}
	}

	h, err := newHarness(profile.Policy(), logger)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	for _, t := range h.trace.Transitions() {
		result.Trace = append(result.Trace, traceEvent(t))
	}
	result.FinalPhase = h.engine.Phase()
	result.Failed = h.engine.Failed()
	result.Cycles = h.engine.Cycle()
	result.Stopped = !h.flag.Running()

	for _, msg := range checkTrace(result.Trace) {
		result.AddError(msg)
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(policy engine.Policy, logger *slog.Logger) (*Harness, error) {
	h := &Harness{
		store:  data.NewStore(),
		flag:   data.NewRunFlag(),
		clock:  testutil.NewFakeClock(testutil.Epoch),
		trace:  engine.NewTrace(),
		logger: logger,
	}

	var err error
	h.engine, err = engine.New(h.store, h.flag, policy,
		engine.WithClock(h.clock),
		engine.WithLogger(logger),
		engine.WithObserver(h.trace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	const owner = "harness"
	if h.nav, err = h.store.ClaimNavigation(owner); err != nil {
		return nil, err
	}
	if h.sensors, err = h.store.ClaimSensors(owner); err != nil {
		return nil, err
	}
	if h.prop, err = h.store.ClaimPropulsion(owner); err != nil {
		return nil, err
	}
	if h.brakes, err = h.store.ClaimBrakes(owner); err != nil {
		return nil, err
	}
	if h.telemetry, err = h.store.ClaimTelemetry(owner); err != nil {
		return nil, err
	}
	return h, nil
}

// executeStep applies all, set and advance, runs the cycles and checks
// expect.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	if step.All != "" {
		s, err := pod.ParseModuleStatus(step.All)
		if err != nil {
			return err
		}
		for _, m := range pod.AllModules {
			h.setStatus(m, s)
		}
	}

	for name, st := range step.Set {
		m, err := pod.ParseModule(name)
		if err != nil {
			return err
		}
		if err := h.apply(m, st); err != nil {
			return err
		}
	}

	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return err
		}
		h.clock.Advance(d)
	}

	for i := 0; i < step.cycles(); i++ {
		h.engine.Step(ctx)
	}

	if step.Expect != "" {
		want, err := pod.ParsePhase(step.Expect)
		if err != nil {
			return err
		}
		if got := h.engine.Phase(); got != want {
			result.AddError(fmt.Sprintf("steps[%d]: expected phase %s, got %s", index, want, got))
		}
	}

	h.logger.Debug("step completed",
		"step", index,
		"phase", h.engine.Phase().String(),
		"cycle", h.engine.Cycle(),
	)
	return nil
}

func (h *Harness) setStatus(m pod.Module, s pod.ModuleStatus) {
	switch m {
	case pod.ModuleNavigation:
		h.nav.Set(h.nav.Get().WithStatus(s))
	case pod.ModuleSensors:
		h.sensors.Set(h.sensors.Get().WithStatus(s))
	case pod.ModulePropulsion:
		h.prop.Set(h.prop.Get().WithStatus(s))
	case pod.ModuleBrakes:
		h.brakes.Set(h.brakes.Get().WithStatus(s))
	case pod.ModuleTelemetry:
		h.telemetry.Set(h.telemetry.Get().WithStatus(s))
	}
}

// apply overwrites the fields st names in m's snapshot.
func (h *Harness) apply(m pod.Module, st ModuleState) error {
	if st.Status != "" {
		s, err := pod.ParseModuleStatus(st.Status)
		if err != nil {
			return err
		}
		h.setStatus(m, s)
	}

	switch m {
	case pod.ModuleNavigation:
		d := h.nav.Get()
		setFloat(&d.Displacement, st.Displacement)
		setFloat(&d.Velocity, st.Velocity)
		setFloat(&d.BrakingDistance, st.BrakingDistance)
		h.nav.Set(d)
	case pod.ModuleBrakes:
		if st.Engaged != nil {
			d := h.brakes.Get()
			for i := range d.Engaged {
				d.Engaged[i] = *st.Engaged
			}
			h.brakes.Set(d)
		}
	case pod.ModuleTelemetry:
		d := h.telemetry.Get()
		setBool(&d.CalibrateCommand, st.Calibrate)
		setBool(&d.LaunchCommand, st.Launch)
		setBool(&d.EmergencyStopCommand, st.Stop)
		setBool(&d.ShutdownCommand, st.Shutdown)
		h.telemetry.Set(d)
	}
	return nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
