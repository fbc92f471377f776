package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/podctl/internal/pod"
)

func TestTrace_Phases(t *testing.T) {
	tr := NewTrace()
	assert.Nil(t, tr.Phases())

	tr.OnTransition(Transition{From: pod.PhaseIdle, To: pod.PhaseCalibrating})
	tr.OnTransition(Transition{From: pod.PhaseCalibrating, To: pod.PhaseReady})

	assert.Equal(t, []pod.Phase{pod.PhaseIdle, pod.PhaseCalibrating, pod.PhaseReady}, tr.Phases())
}

func TestTrace_ReturnsCopies(t *testing.T) {
	tr := NewTrace()
	tr.OnStatusChange(StatusChange{Module: pod.ModuleBrakes, To: pod.StatusInit})

	changes := tr.StatusChanges()
	changes[0].To = pod.StatusCriticalFailure

	assert.Equal(t, pod.StatusInit, tr.StatusChanges()[0].To)
}
