package recorder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/podctl/internal/engine"
	"github.com/roach88/podctl/internal/pod"
	"github.com/roach88/podctl/internal/testutil"
)

func TestRecorder_WritesQueuedEventsInOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")
	rec := New(s, "run-1", nil)

	rec.OnStatusChange(engine.StatusChange{Module: pod.ModuleNavigation, From: pod.StatusStart, To: pod.StatusInit, Cycle: 1})
	rec.OnTransition(engine.Transition{From: pod.PhaseIdle, To: pod.PhaseCalibrating, Cycle: 1, Seq: 3, At: testutil.Epoch})
	rec.OnTransition(engine.Transition{From: pod.PhaseCalibrating, To: pod.PhaseReady, Cycle: 9, Seq: 12, At: testutil.Epoch})
	assert.Equal(t, 3, rec.Pending())

	rec.Close()
	require.NoError(t, rec.Run(ctx))
	assert.Equal(t, 0, rec.Pending())

	trs, err := s.ReadTransitions(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, trs, 2)
	assert.Equal(t, 1, trs[0].Ordinal)
	assert.Equal(t, pod.PhaseCalibrating, trs[0].To)
	assert.Equal(t, 2, trs[1].Ordinal)
	assert.Equal(t, pod.PhaseReady, trs[1].To)

	changes, err := s.ReadStatusChanges(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, changes, 1)
}

func TestRecorder_DropsAfterClose(t *testing.T) {
	s := createTestStore(t)
	beginTestRun(t, s, "run-1")
	rec := New(s, "run-1", nil)

	rec.Close()
	rec.OnTransition(engine.Transition{From: pod.PhaseIdle, To: pod.PhaseExiting})
	assert.Equal(t, 0, rec.Pending())
}

func TestRecorder_ConcurrentProducer(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")
	rec := New(s, "run-1", nil)

	done := make(chan error, 1)
	go func() {
		done <- rec.Run(ctx)
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 50; i++ {
			rec.OnStatusChange(engine.StatusChange{Module: pod.ModuleSensors, Cycle: int64(i), At: testutil.Epoch})
		}
	}()
	wg.Wait()
	rec.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("recorder did not drain")
	}

	changes, err := s.ReadStatusChanges(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, changes, 50)
	for i, c := range changes {
		assert.Equal(t, int64(i+1), c.Cycle)
	}
}

func TestRecorder_ContextCancel(t *testing.T) {
	s := createTestStore(t)
	beginTestRun(t, s, "run-1")
	rec := New(s, "run-1", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rec.Run(ctx), context.Canceled)
}

func TestRecorder_SkipsFailedWrites(t *testing.T) {
	s := createTestStore(t)
	// No run row: every insert violates the foreign key
	rec := New(s, "ghost", nil)

	rec.OnTransition(engine.Transition{From: pod.PhaseIdle, To: pod.PhaseExiting})
	rec.Close()
	require.NoError(t, rec.Run(context.Background()))
	assert.Equal(t, 1, rec.failures)
	assert.Equal(t, 0, rec.written)
}

// An engine run observed by the recorder verifies cleanly.
func TestRecorder_EngineRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")
	rec := New(s, "run-1", nil)

	store := newEngineStore(t)
	eng, err := engine.New(store.data, store.flag, engine.DefaultPolicy(), engine.WithObserver(rec), engine.WithClock(testutil.NewFakeClock(testutil.Epoch)))
	require.NoError(t, err)

	store.setAll(pod.StatusInit)
	store.tel.Set(pod.TelemetryData{ModuleStatus: pod.StatusInit, CalibrateCommand: true})
	require.Equal(t, pod.PhaseCalibrating, eng.Step(ctx))
	store.tel.Set(pod.TelemetryData{ModuleStatus: pod.StatusInit, EmergencyStopCommand: true})
	require.Equal(t, pod.PhaseEmergencyBraking, eng.Step(ctx))

	rec.Close()
	require.NoError(t, rec.Run(ctx))
	require.NoError(t, s.EndRun(ctx, "run-1", testutil.Epoch, eng.Phase(), eng.Cycle()))

	state, err := s.VerifyRun(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, state.Valid(), "issues: %v", state.Issues)
	assert.Equal(t, []pod.Phase{pod.PhaseIdle, pod.PhaseCalibrating, pod.PhaseEmergencyBraking}, state.Phases)
	assert.True(t, state.FailSafe)
	assert.False(t, state.Terminal)

	changes, err := s.ReadStatusChanges(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, changes, pod.NumModules)
}
