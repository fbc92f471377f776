package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/podctl/internal/pod"
)

func TestScenarios_Golden(t *testing.T) {
	files, err := FindScenarioFiles("testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestFormatTrace(t *testing.T) {
	r := NewResult()
	r.Trace = []TraceEvent{{Cycle: 3, From: pod.PhaseIdle, To: pod.PhaseCalibrating, Reason: "calibrate_command"}}
	r.FinalPhase = pod.PhaseCalibrating

	assert.Equal(t, "scenario: demo\n"+
		"cycle 3: idle -> calibrating (calibrate_command)\n"+
		"final: calibrating\n"+
		"failed: none\n", string(FormatTrace("demo", r)))
}
