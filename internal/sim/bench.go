package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/podctl/internal/data"
	"github.com/roach88/podctl/internal/pod"
	"github.com/roach88/podctl/internal/protocol"
)

// Bench runs the simulated subsystems against a shared store.
type Bench struct {
	store  *data.Store
	flag   *data.RunFlag
	cfg    Config
	logger *slog.Logger

	loops     []loop
	brakes    *Brakes
	telemetry *Telemetry
}

type loop struct {
	name  string
	cycle protocol.CycleFunc
}

// NewBench claims the domains of modules and builds their simulators.
// Modules outside the set are left for another writer.
// A nil logger uses slog.Default().
func NewBench(s *data.Store, flag *data.RunFlag, modules pod.ModuleSet, cfg Config, logger *slog.Logger) (*Bench, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TimeStep <= 0 {
		return nil, fmt.Errorf("sim: time step must be positive, got %s", cfg.TimeStep)
	}
	b := &Bench{
		store:  s,
		flag:   flag,
		cfg:    cfg,
		logger: logger.With("component", "sim"),
	}

	for _, m := range modules.Modules() {
		if err := b.add(m); err != nil {
			return nil, fmt.Errorf("sim: %w", err)
		}
	}

	if cfg.Autopilot {
		if b.telemetry == nil {
			return nil, errors.New("sim: autopilot needs the telemetry simulator")
		}
		ap := NewAutopilot(s, b.telemetry.Send)
		b.loops = append(b.loops, loop{name: "autopilot", cycle: ap.Cycle})
	}
	return b, nil
}

func (b *Bench) add(m pod.Module) error {
	owner := "sim." + m.String()
	base := newBase(b.store, b.cfg, m)

	switch m {
	case pod.ModuleNavigation:
		pub, err := protocol.NavigationPublisher(b.store, owner, b.logger)
		if err != nil {
			return err
		}
		n := &Navigation{base: base, pub: pub}
		b.loops = append(b.loops, loop{name: m.String(), cycle: n.Cycle})
	case pod.ModuleSensors:
		pub, err := protocol.SensorsPublisher(b.store, owner, b.logger)
		if err != nil {
			return err
		}
		s := &Sensors{base: base, pub: pub}
		b.loops = append(b.loops, loop{name: m.String(), cycle: s.Cycle})
	case pod.ModulePropulsion:
		pub, err := protocol.PropulsionPublisher(b.store, owner, b.logger)
		if err != nil {
			return err
		}
		p := &Propulsion{base: base, pub: pub}
		b.loops = append(b.loops, loop{name: m.String(), cycle: p.Cycle})
	case pod.ModuleBrakes:
		pub, err := protocol.BrakesPublisher(b.store, owner, b.logger)
		if err != nil {
			return err
		}
		b.brakes = &Brakes{base: base, pub: pub}
		b.loops = append(b.loops, loop{name: m.String(), cycle: b.brakes.Cycle})
	case pod.ModuleTelemetry:
		pub, err := protocol.TelemetryPublisher(b.store, owner, b.logger)
		if err != nil {
			return err
		}
		b.telemetry = &Telemetry{base: base, pub: pub, mailbox: NewMailbox()}
		b.loops = append(b.loops, loop{name: m.String(), cycle: b.telemetry.Cycle})
	default:
		return fmt.Errorf("unknown module %d", int(m))
	}
	return nil
}

// Send delivers an operator command through the telemetry simulator.
// Returns false when telemetry is not simulated.
func (b *Bench) Send(c Command) bool {
	if b.telemetry == nil {
		return false
	}
	b.logger.Info("operator command", "command", c.String())
	b.telemetry.Send(c)
	return true
}

// Run starts every loop and blocks until all of them have returned.
// Once the loops stop the brakes are clamped.
func (b *Bench) Run(ctx context.Context) error {
	b.logger.Info("bench started", "loops", len(b.loops), "faults", len(b.cfg.Faults))

	var wg sync.WaitGroup
	errs := make([]error, len(b.loops))
	for i, l := range b.loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := protocol.Loop(ctx, b.flag, b.cfg.Period, l.cycle); err != nil {
				errs[i] = fmt.Errorf("%s: %w", l.name, err)
			}
		}()
	}
	wg.Wait()

	if b.brakes != nil {
		b.brakes.Engage()
	}
	b.logger.Info("bench stopped")
	return errors.Join(errs...)
}
