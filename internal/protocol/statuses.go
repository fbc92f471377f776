package protocol

import (
	"github.com/roach88/podctl/internal/data"
	"github.com/roach88/podctl/internal/pod"
)

// Statuses is one cycle's view of the subscribed modules' statuses.
// Unsubscribed modules read as StatusStart and never count as failed.
type Statuses struct {
	subscribed pod.ModuleSet
	status     [pod.NumModules]pod.ModuleStatus
}

// Observe reads the status of every subscribed module from the store.
// Each module is read with its own snapshot copy; the result is consistent
// per module, not across modules.
func Observe(s *data.Store, subscribed pod.ModuleSet) Statuses {
	st := Statuses{subscribed: subscribed}
	for _, m := range subscribed.Modules() {
		st.status[m] = s.ModuleStatus(m)
	}
	return st
}

// NewStatuses builds a Statuses value directly. Used by tests.
func NewStatuses(values map[pod.Module]pod.ModuleStatus) Statuses {
	var st Statuses
	for m, s := range values {
		st.subscribed = st.subscribed.Add(m)
		st.status[m] = s
	}
	return st
}

// Of returns the status of m.
func (st Statuses) Of(m pod.Module) pod.ModuleStatus {
	if !st.subscribed.Has(m) {
		return pod.StatusStart
	}
	return st.status[m]
}

// Failed returns the subscribed modules reporting CriticalFailure.
func (st Statuses) Failed() pod.ModuleSet {
	var failed pod.ModuleSet
	for _, m := range st.subscribed.Modules() {
		if st.status[m] == pod.StatusCriticalFailure {
			failed = failed.Add(m)
		}
	}
	return failed
}

// AllReady reports whether every module of required that is also
// subscribed reports Ready.
func (st Statuses) AllReady(required pod.ModuleSet) bool {
	for _, m := range st.subscribed.Modules() {
		if required.Has(m) && st.status[m] != pod.StatusReady {
			return false
		}
	}
	return true
}

// AllAtLeastInit reports whether every module of required that is also
// subscribed has started its setup.
func (st Statuses) AllAtLeastInit(required pod.ModuleSet) bool {
	for _, m := range st.subscribed.Modules() {
		if required.Has(m) && !st.status[m].AtLeastInit() {
			return false
		}
	}
	return true
}

// Diff returns the modules whose status differs between st and prev.
func (st Statuses) Diff(prev Statuses) []pod.Module {
	var changed []pod.Module
	for _, m := range st.subscribed.Union(prev.subscribed).Modules() {
		if st.Of(m) != prev.Of(m) {
			changed = append(changed, m)
		}
	}
	return changed
}
