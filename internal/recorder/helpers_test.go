package recorder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/podctl/internal/data"
	"github.com/roach88/podctl/internal/pod"
)

// engineStore is a data store with every module domain claimed by the test.
type engineStore struct {
	data *data.Store
	flag *data.RunFlag

	nav     *data.Writer[pod.NavigationData]
	sensors *data.Writer[pod.SensorsData]
	prop    *data.Writer[pod.PropulsionData]
	brakes  *data.Writer[pod.BrakesData]
	tel     *data.Writer[pod.TelemetryData]
}

func newEngineStore(t *testing.T) *engineStore {
	t.Helper()
	es := &engineStore{data: data.NewStore(), flag: data.NewRunFlag()}

	var err error
	es.nav, err = es.data.ClaimNavigation("test")
	require.NoError(t, err)
	es.sensors, err = es.data.ClaimSensors("test")
	require.NoError(t, err)
	es.prop, err = es.data.ClaimPropulsion("test")
	require.NoError(t, err)
	es.brakes, err = es.data.ClaimBrakes("test")
	require.NoError(t, err)
	es.tel, err = es.data.ClaimTelemetry("test")
	require.NoError(t, err)
	return es
}

func (es *engineStore) setAll(s pod.ModuleStatus) {
	es.nav.Set(pod.NavigationData{ModuleStatus: s})
	es.sensors.Set(pod.SensorsData{ModuleStatus: s})
	es.prop.Set(pod.PropulsionData{ModuleStatus: s})
	es.brakes.Set(pod.BrakesData{ModuleStatus: s})
	es.tel.Set(pod.TelemetryData{ModuleStatus: s})
}
