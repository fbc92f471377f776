package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/podctl/internal/pod"
)

func TestDefaultPolicy_Valid(t *testing.T) {
	p := DefaultPolicy()
	require.NoError(t, p.Validate())

	assert.Equal(t, pod.AllModuleSet, p.Subscribed)
	assert.Equal(t, pod.NewModuleSet(pod.ModuleNavigation, pod.ModuleSensors), p.CalibratingReady)
	assert.Equal(t, Timeout{After: 30 * time.Second, EscalateTo: pod.PhaseEmergencyBraking}, p.Timeouts[pod.PhaseNominalBraking])
	assert.Equal(t, Timeout{After: 60 * time.Second, EscalateTo: pod.PhaseFailureStopped}, p.Timeouts[pod.PhaseEmergencyBraking])
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Policy)
		code   PolicyErrorCode
		phase  string
	}{
		{
			name: "calibrating requires unsubscribed",
			mutate: func(p *Policy) {
				p.Subscribed = p.Subscribed.Remove(pod.ModuleSensors)
				p.LaunchReady = p.Subscribed
			},
			code:  ErrCodeUnsubscribedRequirement,
			phase: "calibrating",
		},
		{
			name:   "launch requires unsubscribed",
			mutate: func(p *Policy) { p.Subscribed = p.Subscribed.Remove(pod.ModuleTelemetry) },
			code:   ErrCodeUnsubscribedRequirement,
			phase:  "ready",
		},
		{
			name:   "negative margin",
			mutate: func(p *Policy) { p.BrakingMargin = -1 },
			code:   ErrCodeInvalidThreshold,
		},
		{
			name:   "zero cruise velocity",
			mutate: func(p *Policy) { p.CruiseVelocity = 0 },
			code:   ErrCodeInvalidThreshold,
		},
		{
			name: "zero timeout",
			mutate: func(p *Policy) {
				p.Timeouts[pod.PhaseReady] = Timeout{EscalateTo: pod.PhaseEmergencyBraking}
			},
			code:  ErrCodeInvalidTimeout,
			phase: "ready",
		},
		{
			name: "terminal phase timeout",
			mutate: func(p *Policy) {
				p.Timeouts[pod.PhaseRunComplete] = Timeout{After: time.Second, EscalateTo: pod.PhaseFailureStopped}
			},
			code:  ErrCodeInvalidTimeout,
			phase: "run_complete",
		},
		{
			name: "nominal escalation target",
			mutate: func(p *Policy) {
				p.Timeouts[pod.PhaseCruising] = Timeout{After: time.Second, EscalateTo: pod.PhaseNominalBraking}
			},
			code:  ErrCodeInvalidTimeout,
			phase: "cruising",
		},
		{
			name: "emergency braking escalating to itself",
			mutate: func(p *Policy) {
				p.Timeouts[pod.PhaseEmergencyBraking] = Timeout{After: time.Second, EscalateTo: pod.PhaseEmergencyBraking}
			},
			code:  ErrCodeInvalidTimeout,
			phase: "emergency_braking",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)

			err := p.Validate()
			require.Error(t, err)

			var pe *PolicyError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.code, pe.Code)
			assert.Equal(t, tt.phase, pe.Phase)
		})
	}
}

func TestPolicy_NoTimeoutsIsValid(t *testing.T) {
	p := DefaultPolicy()
	p.Timeouts = nil
	assert.NoError(t, p.Validate())
}

func TestPolicyError_Message(t *testing.T) {
	err := &PolicyError{Code: ErrCodeInvalidTimeout, Message: "timeout must be positive", Phase: "ready"}
	assert.Equal(t, "INVALID_TIMEOUT: timeout must be positive (phase=ready)", err.Error())

	err = &PolicyError{Code: ErrCodeInvalidThreshold, Message: "run length must be positive"}
	assert.Equal(t, "INVALID_THRESHOLD: run length must be positive", err.Error())
}

func TestBrakingPointReached(t *testing.T) {
	p := DefaultPolicy()

	assert.False(t, p.brakingPointReached(pod.NavigationData{Displacement: 1000, BrakingDistance: 229}))
	assert.True(t, p.brakingPointReached(pod.NavigationData{Displacement: 1000, BrakingDistance: 230}))
}
