package data

import "sync"

// RunFlag is the process-wide "is running" flag.
//
// It is the only cooperative cancellation signal shared by the engine and
// the subsystem loops: each loop checks Running at the top of its cycle and
// exits once the flag is cleared. No loop is interrupted mid-cycle.
type RunFlag struct {
	once sync.Once
	done chan struct{}
}

// NewRunFlag returns a flag in the running state.
func NewRunFlag() *RunFlag {
	return &RunFlag{done: make(chan struct{})}
}

// Running reports whether the flag is still set.
func (f *RunFlag) Running() bool {
	select {
	case <-f.done:
		return false
	default:
		return true
	}
}

// Stop clears the flag. Safe to call more than once and from any goroutine.
func (f *RunFlag) Stop() {
	f.once.Do(func() { close(f.done) })
}

// Done returns a channel that is closed once the flag is cleared, for use
// in select statements alongside a context.
func (f *RunFlag) Done() <-chan struct{} {
	return f.done
}
