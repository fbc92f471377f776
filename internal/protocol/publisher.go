package protocol

import (
	"log/slog"

	"github.com/roach88/podctl/internal/data"
	"github.com/roach88/podctl/internal/pod"
)

// Publisher is the write-side adapter for one module's domain.
//
// A Publisher is owned by the subsystem loop that claimed the domain and
// must only be used from that loop's goroutine.
//
// INVARIANT: once a CriticalFailure has been published, every later
// publish carries CriticalFailure regardless of the status the caller set.
// Recovery is not modeled; a failed module stays failed for the run.
type Publisher[T pod.Snapshot[T]] struct {
	module pod.Module
	writer *data.Writer[T]
	logger *slog.Logger

	last   T
	failed bool
	reason string
}

// NewPublisher wraps a claimed writer for module.
// A nil logger uses slog.Default().
func NewPublisher[T pod.Snapshot[T]](module pod.Module, w *data.Writer[T], logger *slog.Logger) *Publisher[T] {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher[T]{
		module: module,
		writer: w,
		logger: logger.With("component", "publisher", "module", module.String()),
		last:   w.Get(),
	}
	if p.last.Status() == pod.StatusCriticalFailure {
		p.failed = true
	}
	return p
}

// Publish writes a fully populated snapshot and returns its sequence number.
func (p *Publisher[T]) Publish(snap T) int64 {
	if p.failed && snap.Status() != pod.StatusCriticalFailure {
		p.logger.Warn("status revert after critical failure rejected",
			"requested", snap.Status().String(),
			"reason", p.reason,
		)
		snap = snap.WithStatus(pod.StatusCriticalFailure)
	}
	if !p.failed && snap.Status() == pod.StatusCriticalFailure {
		p.failed = true
		if p.reason == "" {
			p.reason = "reported by module"
		}
		p.logger.Error("module critical failure", "reason", p.reason)
	}
	p.last = snap
	return p.writer.Set(snap)
}

// Fail publishes the last snapshot with CriticalFailure.
func (p *Publisher[T]) Fail(reason string) int64 {
	if !p.failed {
		p.reason = reason
	}
	return p.Publish(p.last.WithStatus(pod.StatusCriticalFailure))
}

// Failed reports whether a critical failure has been published.
func (p *Publisher[T]) Failed() bool {
	return p.failed
}

// Last returns the most recently published snapshot.
func (p *Publisher[T]) Last() T {
	return p.last
}

// Module returns the module the publisher writes for.
func (p *Publisher[T]) Module() pod.Module {
	return p.module
}

// NavigationPublisher claims the navigation domain and wraps it.
func NavigationPublisher(s *data.Store, owner string, logger *slog.Logger) (*Publisher[pod.NavigationData], error) {
	w, err := s.ClaimNavigation(owner)
	if err != nil {
		return nil, err
	}
	return NewPublisher(pod.ModuleNavigation, w, logger), nil
}

// SensorsPublisher claims the sensors domain and wraps it.
func SensorsPublisher(s *data.Store, owner string, logger *slog.Logger) (*Publisher[pod.SensorsData], error) {
	w, err := s.ClaimSensors(owner)
	if err != nil {
		return nil, err
	}
	return NewPublisher(pod.ModuleSensors, w, logger), nil
}

// PropulsionPublisher claims the propulsion domain and wraps it.
func PropulsionPublisher(s *data.Store, owner string, logger *slog.Logger) (*Publisher[pod.PropulsionData], error) {
	w, err := s.ClaimPropulsion(owner)
	if err != nil {
		return nil, err
	}
	return NewPublisher(pod.ModulePropulsion, w, logger), nil
}

// BrakesPublisher claims the brakes domain and wraps it.
func BrakesPublisher(s *data.Store, owner string, logger *slog.Logger) (*Publisher[pod.BrakesData], error) {
	w, err := s.ClaimBrakes(owner)
	if err != nil {
		return nil, err
	}
	return NewPublisher(pod.ModuleBrakes, w, logger), nil
}

// TelemetryPublisher claims the telemetry domain and wraps it.
func TelemetryPublisher(s *data.Store, owner string, logger *slog.Logger) (*Publisher[pod.TelemetryData], error) {
	w, err := s.ClaimTelemetry(owner)
	if err != nil {
		return nil, err
	}
	return NewPublisher(pod.ModuleTelemetry, w, logger), nil
}
