package data

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/podctl/internal/pod"
)

func TestStore_DefaultsBeforeAnySet(t *testing.T) {
	s := NewStore()

	assert.Equal(t, pod.PhaseIdle, s.StateMachine().CurrentPhase)
	for _, m := range pod.AllModules {
		assert.Equal(t, pod.StatusStart, s.ModuleStatus(m), "module %s", m)
	}
	assert.Equal(t, int64(0), s.StateMachineVersioned().Seq)
	assert.Equal(t, int64(0), s.Seq())
}

func TestStore_SetThenGet(t *testing.T) {
	s := NewStore()
	nav, err := s.ClaimNavigation("nav")
	require.NoError(t, err)

	seq := nav.Set(pod.NavigationData{ModuleStatus: pod.StatusReady, Velocity: 12.5})

	got := s.NavigationVersioned()
	assert.Equal(t, pod.StatusReady, got.Value.ModuleStatus)
	assert.Equal(t, 12.5, got.Value.Velocity)
	assert.Equal(t, seq, got.Seq)
	assert.Equal(t, pod.StatusReady, s.ModuleStatus(pod.ModuleNavigation))
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore()
	sensors, err := s.ClaimSensors("sensors")
	require.NoError(t, err)

	snap := pod.SensorsData{ModuleStatus: pod.StatusReady}
	snap.IMUs[0].Acc = [3]float64{1, 2, 3}
	sensors.Set(snap)

	// Mutating the caller's value after Set must not leak into the store.
	snap.IMUs[0].Acc[0] = 99

	got := s.Sensors()
	assert.Equal(t, 1.0, got.IMUs[0].Acc[0])

	// Mutating a read copy must not leak either.
	got.IMUs[0].Acc[1] = 42
	assert.Equal(t, 2.0, s.Sensors().IMUs[0].Acc[1])
}

func TestStore_ClaimOncePerDomain(t *testing.T) {
	s := NewStore()

	_, err := s.ClaimBrakes("brakes")
	require.NoError(t, err)

	w, err := s.ClaimBrakes("impostor")
	assert.Nil(t, w)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyClaimed))

	var claimErr *ClaimError
	require.True(t, errors.As(err, &claimErr))
	assert.Equal(t, pod.DomainBrakes, claimErr.Domain)
	assert.Equal(t, "brakes", claimErr.Owner)
	assert.Equal(t, "impostor", claimErr.Requester)
	assert.Contains(t, err.Error(), "already owned")
}

func TestStore_ClaimIsPerDomain(t *testing.T) {
	s := NewStore()

	_, err := s.ClaimStateMachine("engine")
	require.NoError(t, err)
	_, err = s.ClaimNavigation("nav")
	require.NoError(t, err)
	_, err = s.ClaimTelemetry("")
	require.NoError(t, err)

	owners := s.Owners()
	assert.Equal(t, map[pod.Domain]string{
		pod.DomainStateMachine: "engine",
		pod.DomainNavigation:   "nav",
		pod.DomainTelemetry:    "telemetry",
	}, owners)
}

// TestStore_ConcurrentClaims spawns several would-be writers per domain and
// verifies exactly one wins each domain.
func TestStore_ConcurrentClaims(t *testing.T) {
	s := NewStore()
	const writersPerDomain = 8

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins = map[pod.Domain]int{}
	)
	claimers := map[pod.Domain]func(string) error{
		pod.DomainNavigation: func(o string) error { _, err := s.ClaimNavigation(o); return err },
		pod.DomainSensors:    func(o string) error { _, err := s.ClaimSensors(o); return err },
		pod.DomainPropulsion: func(o string) error { _, err := s.ClaimPropulsion(o); return err },
		pod.DomainBrakes:     func(o string) error { _, err := s.ClaimBrakes(o); return err },
		pod.DomainTelemetry:  func(o string) error { _, err := s.ClaimTelemetry(o); return err },
	}

	for domain, claimFn := range claimers {
		for i := 0; i < writersPerDomain; i++ {
			wg.Add(1)
			go func(d pod.Domain, fn func(string) error, idx int) {
				defer wg.Done()
				if err := fn(d.String() + "-writer"); err == nil {
					mu.Lock()
					wins[d]++
					mu.Unlock()
				} else {
					assert.ErrorIs(t, err, ErrAlreadyClaimed)
				}
			}(domain, claimFn, i)
		}
	}
	wg.Wait()

	for domain := range claimers {
		assert.Equal(t, 1, wins[domain], "domain %s", domain)
	}
}

// TestStore_SnapshotAtomicity alternates the writer between two internally
// consistent snapshots while readers check they never see a mixture.
func TestStore_SnapshotAtomicity(t *testing.T) {
	s := NewStore()
	prop, err := s.ClaimPropulsion("propulsion")
	require.NoError(t, err)

	fill := func(v int32) pod.PropulsionData {
		d := pod.PropulsionData{ModuleStatus: pod.StatusRunning}
		for i := range d.MotorRPM {
			d.MotorRPM[i] = v
			d.MotorCurrent[i] = float64(v)
		}
		return d
	}
	a, b := fill(1000), fill(2000)

	const iterations = 5000
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < iterations; i++ {
			if i%2 == 0 {
				prop.Set(a)
			} else {
				prop.Set(b)
			}
		}
	}()

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				got := s.Propulsion()
				first := got.MotorRPM[0]
				for i := range got.MotorRPM {
					if got.MotorRPM[i] != first || got.MotorCurrent[i] != float64(first) {
						t.Errorf("torn snapshot: %+v", got)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	<-done
}

func TestStore_SeqIsMonotonicAcrossDomains(t *testing.T) {
	s := NewStore()
	nav, err := s.ClaimNavigation("nav")
	require.NoError(t, err)
	brakes, err := s.ClaimBrakes("brakes")
	require.NoError(t, err)

	s1 := nav.Set(pod.NavigationData{})
	s2 := brakes.Set(pod.BrakesData{})
	s3 := nav.Set(pod.NavigationData{Velocity: 1})

	assert.Less(t, s1, s2)
	assert.Less(t, s2, s3)
	assert.Equal(t, s3, s.Seq())
}

func TestWriter_GetReturnsOwnDomain(t *testing.T) {
	s := NewStore()
	tel, err := s.ClaimTelemetry("telemetry")
	require.NoError(t, err)

	tel.Set(pod.TelemetryData{ModuleStatus: pod.StatusReady, LaunchCommand: true})
	assert.True(t, tel.Get().LaunchCommand)
	assert.Equal(t, "telemetry", tel.Owner())
}

func TestRunFlag(t *testing.T) {
	f := NewRunFlag()
	assert.True(t, f.Running())

	select {
	case <-f.Done():
		t.Fatal("Done closed before Stop")
	default:
	}

	f.Stop()
	f.Stop() // idempotent

	assert.False(t, f.Running())
	<-f.Done()
}

func TestSeq_SharedAcrossDomains(t *testing.T) {
	s := NewStore()
	assert.Equal(t, int64(0), s.Seq())

	nav, err := s.ClaimNavigation("nav")
	require.NoError(t, err)
	brakes, err := s.ClaimBrakes("brakes")
	require.NoError(t, err)

	assert.Equal(t, int64(1), nav.Set(pod.NavigationData{}))
	assert.Equal(t, int64(2), brakes.Set(pod.BrakesData{}))
	assert.Equal(t, int64(3), nav.Set(pod.NavigationData{}))
	assert.Equal(t, int64(3), s.Seq())
	assert.Equal(t, int64(3), s.NavigationVersioned().Seq)
}
