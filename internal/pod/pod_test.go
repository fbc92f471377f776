package pod

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhase_StringRoundTrip(t *testing.T) {
	for _, p := range AllPhases {
		t.Run(p.String(), func(t *testing.T) {
			parsed, err := ParsePhase(p.String())
			require.NoError(t, err)
			assert.Equal(t, p, parsed)
		})
	}
}

func TestPhase_Unknown(t *testing.T) {
	assert.Equal(t, "unknown", Phase(99).String())

	_, err := ParsePhase("warp")
	assert.Error(t, err)
}

func TestPhase_Classification(t *testing.T) {
	terminal := map[Phase]bool{PhaseRunComplete: true, PhaseFailureStopped: true, PhaseExiting: true}
	failSafe := map[Phase]bool{PhaseEmergencyBraking: true, PhaseFailureStopped: true}

	for _, p := range AllPhases {
		assert.Equal(t, terminal[p], p.IsTerminal(), "IsTerminal(%s)", p)
		assert.Equal(t, failSafe[p], p.IsFailSafe(), "IsFailSafe(%s)", p)
	}
}

func TestZeroValues_AreDocumentedDefaults(t *testing.T) {
	assert.Equal(t, PhaseIdle, StateMachineData{}.CurrentPhase)
	assert.Equal(t, StatusStart, NavigationData{}.Status())
	assert.Equal(t, StatusStart, SensorsData{}.Status())
	assert.Equal(t, StatusStart, PropulsionData{}.Status())
	assert.Equal(t, StatusStart, BrakesData{}.Status())
	assert.Equal(t, StatusStart, TelemetryData{}.Status())
}

func TestModuleStatus_AtLeastInit(t *testing.T) {
	assert.False(t, StatusStart.AtLeastInit())
	assert.True(t, StatusInit.AtLeastInit())
	assert.True(t, StatusReady.AtLeastInit())
	assert.True(t, StatusRunning.AtLeastInit())
	assert.False(t, StatusCriticalFailure.AtLeastInit())
}

func TestModuleStatus_JSON(t *testing.T) {
	out, err := json.Marshal(NavigationData{ModuleStatus: StatusCriticalFailure})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"module_status":"critical_failure"`)

	var back NavigationData
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, StatusCriticalFailure, back.ModuleStatus)
}

func TestWithStatus_ReturnsCopy(t *testing.T) {
	orig := BrakesData{ModuleStatus: StatusReady, Engaged: [NumBrakes]bool{true, true}}
	changed := orig.WithStatus(StatusRunning)

	assert.Equal(t, StatusReady, orig.ModuleStatus)
	assert.Equal(t, StatusRunning, changed.ModuleStatus)
	assert.Equal(t, orig.Engaged, changed.Engaged)
}

func TestModuleSet(t *testing.T) {
	s := NewModuleSet(ModuleBrakes, ModuleNavigation)

	assert.True(t, s.Has(ModuleBrakes))
	assert.True(t, s.Has(ModuleNavigation))
	assert.False(t, s.Has(ModuleTelemetry))
	assert.Equal(t, []Module{ModuleNavigation, ModuleBrakes}, s.Modules())
	assert.Equal(t, "navigation,brakes", s.String())
	assert.True(t, s.SubsetOf(AllModuleSet))
	assert.False(t, AllModuleSet.SubsetOf(s))
	assert.Equal(t, NewModuleSet(ModuleSensors, ModulePropulsion, ModuleTelemetry), AllModuleSet.Subtract(s))

	s = s.Remove(ModuleBrakes)
	assert.Equal(t, "navigation", s.String())
	assert.Equal(t, "none", ModuleSet(0).String())
}

func TestParseModuleSet(t *testing.T) {
	s, err := ParseModuleSet([]string{"sensors", "telemetry"})
	require.NoError(t, err)
	assert.Equal(t, NewModuleSet(ModuleSensors, ModuleTelemetry), s)

	_, err = ParseModuleSet([]string{"flux_capacitor"})
	assert.Error(t, err)
}

func TestDomain_Module(t *testing.T) {
	for _, m := range AllModules {
		d := m.Domain()
		got, ok := d.Module()
		require.True(t, ok)
		assert.Equal(t, m, got)
		assert.Equal(t, m.String(), d.String())
	}

	_, ok := DomainStateMachine.Module()
	assert.False(t, ok)
	assert.Equal(t, "state_machine", DomainStateMachine.String())
}

func TestCanTransition_TerminalPhasesHaveNoEdges(t *testing.T) {
	for _, from := range []Phase{PhaseRunComplete, PhaseFailureStopped, PhaseExiting} {
		assert.Empty(t, Successors(from), "terminal phase %s", from)
	}
}

func TestCanTransition_FailSafeReachableFromNonTerminal(t *testing.T) {
	for _, from := range AllPhases {
		if from.IsTerminal() || from.IsFailSafe() {
			continue
		}
		assert.True(t, CanTransition(from, PhaseEmergencyBraking), "from %s", from)
	}
	assert.False(t, CanTransition(PhaseEmergencyBraking, PhaseEmergencyBraking))
	assert.True(t, CanTransition(PhaseEmergencyBraking, PhaseFailureStopped))
}

func TestCanTransition_Nominal(t *testing.T) {
	tests := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseIdle, PhaseCalibrating, true},
		{PhaseIdle, PhaseReady, false},
		{PhaseCalibrating, PhaseReady, true},
		{PhaseReady, PhaseAccelerating, true},
		{PhaseAccelerating, PhaseCruising, true},
		{PhaseAccelerating, PhaseNominalBraking, true},
		{PhaseCruising, PhaseAccelerating, false},
		{PhaseNominalBraking, PhaseRunComplete, true},
		{PhaseRunComplete, PhaseIdle, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}
