package sim

import (
	"context"
	"math"
	"time"

	"github.com/roach88/podctl/internal/data"
	"github.com/roach88/podctl/internal/engine"
	"github.com/roach88/podctl/internal/pod"
	"github.com/roach88/podctl/internal/protocol"
)

const (
	motorRPM     = 6000
	motorCurrent = 80.0
	gravity      = 9.81
)

// lifecycle is the status shared by all simulators: Init until setup has
// finished, Running while the pod is in motion, Ready otherwise.
func lifecycle(phase pod.Phase, calibrated bool) pod.ModuleStatus {
	switch {
	case !calibrated:
		return pod.StatusInit
	case moving(phase):
		return pod.StatusRunning
	default:
		return pod.StatusReady
	}
}

func moving(phase pod.Phase) bool {
	switch phase {
	case pod.PhaseAccelerating, pod.PhaseCruising, pod.PhaseNominalBraking, pod.PhaseEmergencyBraking:
		return true
	}
	return false
}

// brakesReleased reports whether the brakes are open in phase.
func brakesReleased(phase pod.Phase) bool {
	return phase == pod.PhaseAccelerating || phase == pod.PhaseCruising
}

// stoppingDistance is v²/2a.
func stoppingDistance(v, decel float64) float64 {
	if decel <= 0 {
		return math.Inf(1)
	}
	return v * v / (2 * decel)
}

// base is the state every simulator keeps: setup progress and its fault.
type base struct {
	store   *data.Store
	cfg     Config
	clock   engine.Clock
	started time.Time
	fault   *Fault

	setup int
}

func newBase(s *data.Store, cfg Config, m pod.Module) base {
	b := base{store: s, cfg: cfg, clock: cfg.Clock}
	if b.clock == nil {
		b.clock = engine.SystemClock{}
	}
	b.started = b.clock.Now()
	for _, f := range cfg.Faults {
		if f.Module == m {
			b.fault = &f
			break
		}
	}
	return b
}

// observe reads the published phase and advances setup.
func (b *base) observe() pod.Phase {
	phase := b.store.StateMachine().CurrentPhase
	if phase != pod.PhaseIdle {
		b.setup++
	}
	return phase
}

func (b *base) calibrated() bool {
	return b.setup >= b.cfg.SetupCycles
}

func (b *base) faultDue() bool {
	return b.fault != nil && b.clock.Now().Sub(b.started) >= b.fault.After
}

// status applies the sticky failure to the lifecycle status.
func status[T pod.Snapshot[T]](pub *protocol.Publisher[T], s pod.ModuleStatus) pod.ModuleStatus {
	if pub.Failed() {
		return pod.StatusCriticalFailure
	}
	return s
}

// Navigation integrates the pod's motion.
//
// A failed navigation module keeps integrating; its readings are published
// under CriticalFailure and are not trusted by the engine.
type Navigation struct {
	base
	pub *protocol.Publisher[pod.NavigationData]
}

// Cycle implements protocol.CycleFunc.
func (n *Navigation) Cycle(ctx context.Context) {
	phase := n.observe()
	if n.faultDue() && !n.pub.Failed() {
		n.pub.Fail("injected fault")
	}

	d := n.pub.Last()
	a := n.acceleration(phase)
	dt := n.cfg.TimeStep.Seconds()

	d.Velocity = math.Max(0, d.Velocity+a*dt)
	if d.Velocity == 0 && a < 0 {
		a = 0
	}
	d.Displacement += d.Velocity * dt
	d.Acceleration = a
	d.BrakingDistance = stoppingDistance(d.Velocity, n.cfg.Deceleration)
	d.EmergencyBrakingDistance = stoppingDistance(d.Velocity, n.cfg.EmergencyDeceleration)
	d.ModuleStatus = status(n.pub, lifecycle(phase, n.calibrated()))
	n.pub.Publish(d)
}

func (n *Navigation) acceleration(phase pod.Phase) float64 {
	brakes := n.store.Brakes()
	switch {
	case brakes.AllEngaged() && phase == pod.PhaseNominalBraking:
		return -n.cfg.Deceleration
	case brakes.AllEngaged():
		return -n.cfg.EmergencyDeceleration
	case phase == pod.PhaseAccelerating && n.store.Propulsion().ModuleStatus == pod.StatusRunning:
		return n.cfg.Acceleration
	}
	return 0
}

// Sensors publishes IMU and stripe readings derived from the navigation
// state.
type Sensors struct {
	base
	pub *protocol.Publisher[pod.SensorsData]
}

// Cycle implements protocol.CycleFunc.
func (s *Sensors) Cycle(ctx context.Context) {
	phase := s.observe()
	if s.faultDue() && !s.pub.Failed() {
		s.pub.Fail("injected fault")
	}

	nav := s.store.Navigation()
	d := s.pub.Last()
	for i := range d.IMUs {
		d.IMUs[i] = pod.IMUReading{Operational: true, Acc: [3]float64{nav.Acceleration, 0, gravity}}
	}
	var stripes uint32
	if s.cfg.StripeSpacing > 0 {
		stripes = uint32(nav.Displacement / s.cfg.StripeSpacing)
	}
	for i := range d.Stripes {
		d.Stripes[i] = pod.StripeCount{Operational: true, Count: stripes}
	}
	d.Sequence++
	d.ModuleStatus = status(s.pub, lifecycle(phase, s.calibrated()))
	s.pub.Publish(d)
}

// Propulsion drives the motors while the pod is accelerating.
type Propulsion struct {
	base
	pub *protocol.Publisher[pod.PropulsionData]
}

// Cycle implements protocol.CycleFunc.
func (p *Propulsion) Cycle(ctx context.Context) {
	phase := p.observe()
	if p.faultDue() && !p.pub.Failed() {
		p.pub.Fail("injected fault")
	}

	var d pod.PropulsionData
	st := pod.StatusInit
	if p.calibrated() {
		st = pod.StatusReady
		if phase == pod.PhaseAccelerating && !p.pub.Failed() {
			st = pod.StatusRunning
			for i := range d.MotorRPM {
				d.MotorRPM[i] = motorRPM
				d.MotorCurrent[i] = motorCurrent
			}
		}
	}
	d.ModuleStatus = status(p.pub, st)
	p.pub.Publish(d)
}

// Brakes clamps outside the propulsion phases. It reports Running while
// clamped on a moving pod and Ready once the pod has stopped.
//
// A failed brakes module clamps.
type Brakes struct {
	base
	pub *protocol.Publisher[pod.BrakesData]
}

// Cycle implements protocol.CycleFunc.
func (b *Brakes) Cycle(ctx context.Context) {
	phase := b.observe()
	if b.faultDue() && !b.pub.Failed() {
		b.pub.Fail("injected fault")
	}

	engaged := !brakesReleased(phase) || b.pub.Failed()
	var d pod.BrakesData
	for i := range d.Engaged {
		d.Engaged[i] = engaged
	}

	st := pod.StatusInit
	if b.calibrated() {
		st = pod.StatusReady
		if engaged && b.store.Navigation().Velocity > b.cfg.StoppedVelocity {
			st = pod.StatusRunning
		}
	}
	d.ModuleStatus = status(b.pub, st)
	b.pub.Publish(d)
}

// Engage clamps every brake unit. Called once the loops have stopped.
func (b *Brakes) Engage() {
	d := b.pub.Last()
	for i := range d.Engaged {
		d.Engaged[i] = true
	}
	b.pub.Publish(d)
}

// Telemetry holds the ground link and turns operator commands into
// snapshot flags.
type Telemetry struct {
	base
	pub     *protocol.Publisher[pod.TelemetryData]
	mailbox *Mailbox
}

// Send queues an operator command for the next telemetry cycle.
func (t *Telemetry) Send(c Command) {
	t.mailbox.Send(c)
}

// Cycle implements protocol.CycleFunc.
func (t *Telemetry) Cycle(ctx context.Context) {
	phase := t.observe()
	if t.faultDue() && !t.pub.Failed() {
		t.pub.Fail("injected fault")
	}

	d := t.pub.Last()
	d.Connected = !t.pub.Failed()
	for c := range t.mailbox.Collect() {
		switch c {
		case CommandCalibrate:
			d.CalibrateCommand = true
		case CommandLaunch:
			d.LaunchCommand = true
		case CommandEmergencyStop:
			d.EmergencyStopCommand = true
		case CommandShutdown:
			d.ShutdownCommand = true
		}
	}
	d.ModuleStatus = status(t.pub, lifecycle(phase, t.calibrated()))
	t.pub.Publish(d)
}

// Autopilot plays the operator: calibrate in Idle, launch in Ready,
// shut down once the run is over. Each command is sent once.
type Autopilot struct {
	store *data.Store
	send  func(Command)
	sent  map[Command]bool
}

// NewAutopilot creates an autopilot that delivers commands through send.
func NewAutopilot(s *data.Store, send func(Command)) *Autopilot {
	return &Autopilot{store: s, send: send, sent: make(map[Command]bool)}
}

// Cycle implements protocol.CycleFunc.
func (a *Autopilot) Cycle(ctx context.Context) {
	switch a.store.StateMachine().CurrentPhase {
	case pod.PhaseIdle:
		a.once(CommandCalibrate)
	case pod.PhaseReady:
		a.once(CommandLaunch)
	case pod.PhaseRunComplete, pod.PhaseFailureStopped:
		a.once(CommandShutdown)
	}
}

func (a *Autopilot) once(c Command) {
	if a.sent[c] {
		return
	}
	a.sent[c] = true
	a.send(c)
}
