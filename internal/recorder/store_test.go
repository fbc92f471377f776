package recorder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/podctl/internal/engine"
	"github.com/roach88/podctl/internal/pod"
	"github.com/roach88/podctl/internal/testutil"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func beginTestRun(t *testing.T, s *Store, id string) Run {
	t.Helper()
	run := Run{
		ID:         id,
		Profile:    "bench",
		Subscribed: pod.AllModuleSet,
		StartedAt:  testutil.Epoch,
	}
	require.NoError(t, s.BeginRun(context.Background(), run))
	return run
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	for name, want := range map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"busy_timeout": "5000",
		"foreign_keys": "1",
		"user_version": "1",
	} {
		got, err := s.pragma(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
	assert.False(t, s.ReadOnly())
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	w, err := Open(path)
	require.NoError(t, err)
	beginTestRun(t, w, "run-1")
	require.NoError(t, w.Close())

	r, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer r.Close()
	assert.True(t, r.ReadOnly())

	runs, err := r.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	err = r.BeginRun(context.Background(), Run{ID: "run-2", Profile: "p", StartedAt: testutil.Epoch})
	assert.Error(t, err, "read-only store accepts no writes")
}

func TestOpenReadOnly_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	_, err := OpenReadOnly(path)
	assert.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "read-only open must not create the file")
}

func TestOpenReadOnly_NotRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.db")

	// An empty SQLite file has user_version 0.
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, err := OpenReadOnly(path)
	assert.ErrorIs(t, err, ErrNotRecorder)
}

func TestRun_BeginAndEnd(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "bench", run.Profile)
	assert.Equal(t, pod.AllModuleSet, run.Subscribed)
	assert.True(t, testutil.Epoch.Equal(run.StartedAt))
	assert.False(t, run.Ended)

	end := testutil.Epoch.Add(90 * time.Second)
	require.NoError(t, s.EndRun(ctx, "run-1", end, pod.PhaseRunComplete, 9000))

	run, err = s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, run.Ended)
	assert.True(t, end.Equal(run.EndedAt))
	assert.Equal(t, pod.PhaseRunComplete, run.FinalPhase)
	assert.Equal(t, int64(9000), run.Cycles)
}

func TestRun_BeginTwiceIgnored(t *testing.T) {
	s := createTestStore(t)
	beginTestRun(t, s, "run-1")
	beginTestRun(t, s, "run-1")

	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRun_EndUnknown(t *testing.T) {
	s := createTestStore(t)
	err := s.EndRun(context.Background(), "nope", testutil.Epoch, pod.PhaseExiting, 1)
	assert.Error(t, err)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = s.LatestRun(context.Background())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns_OrderedByStart(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginRun(ctx, Run{ID: "b", Profile: "p", StartedAt: testutil.Epoch.Add(time.Hour)}))
	require.NoError(t, s.BeginRun(ctx, Run{ID: "a", Profile: "p", StartedAt: testutil.Epoch}))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)
}

func TestTransitions_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	tr := engine.Transition{
		From:          pod.PhaseAccelerating,
		To:            pod.PhaseEmergencyBraking,
		Reason:        "critical_failure:propulsion",
		Cycle:         42,
		Seq:           108,
		At:            testutil.Epoch.Add(3 * time.Second),
		FailedModules: pod.NewModuleSet(pod.ModulePropulsion),
	}
	require.NoError(t, s.WriteTransition(ctx, "run-1", 1, tr))
	// Duplicate ordinal ignored
	require.NoError(t, s.WriteTransition(ctx, "run-1", 1, tr))

	got, err := s.ReadTransitions(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Ordinal)
	assert.Equal(t, tr.From, got[0].From)
	assert.Equal(t, tr.To, got[0].To)
	assert.Equal(t, tr.Reason, got[0].Reason)
	assert.Equal(t, tr.Cycle, got[0].Cycle)
	assert.Equal(t, tr.Seq, got[0].Seq)
	assert.Equal(t, tr.FailedModules, got[0].FailedModules)
	assert.True(t, tr.At.Equal(got[0].At))
}

func TestTransitions_EmptyRun(t *testing.T) {
	s := createTestStore(t)
	beginTestRun(t, s, "run-1")

	got, err := s.ReadTransitions(context.Background(), "run-1")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestTransitions_RequireRun(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteTransition(context.Background(), "nope", 1, engine.Transition{})
	assert.Error(t, err, "foreign key to runs")
}

func TestStatusChanges_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	c := engine.StatusChange{
		Module: pod.ModuleBrakes,
		From:   pod.StatusRunning,
		To:     pod.StatusReady,
		Cycle:  7,
		At:     testutil.Epoch,
	}
	require.NoError(t, s.WriteStatusChange(ctx, "run-1", 1, c))

	got, err := s.ReadStatusChanges(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Ordinal)
	assert.Equal(t, c.Module, got[0].Module)
	assert.Equal(t, c.From, got[0].From)
	assert.Equal(t, c.To, got[0].To)
	assert.Equal(t, c.Cycle, got[0].Cycle)
}
