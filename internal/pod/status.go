package pod

import "fmt"

// ModuleStatus is a subsystem's self-reported health and readiness.
//
// Each subsystem owns exactly one ModuleStatus value at a time and is the
// only writer of it. StatusCriticalFailure is sticky: once published it is
// terminal for the run.
type ModuleStatus int

const (
	StatusStart           ModuleStatus = iota // Loop launched, not yet initialized.
	StatusInit                                // Performing one-time setup.
	StatusReady                               // Setup complete, awaiting next phase.
	StatusRunning                             // Performing its phase-specific duty.
	StatusCriticalFailure                     // Unrecoverable fault.
)

var statusNames = map[ModuleStatus]string{
	StatusStart:           "start",
	StatusInit:            "init",
	StatusReady:           "ready",
	StatusRunning:         "running",
	StatusCriticalFailure: "critical_failure",
}

// String returns the snake_case name of the status.
func (s ModuleStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseModuleStatus converts a snake_case status name into a ModuleStatus.
func ParseModuleStatus(s string) (ModuleStatus, error) {
	for st, name := range statusNames {
		if name == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown module status %q", s)
}

// AtLeastInit reports whether the module has started its setup.
// A failed module does not count.
func (s ModuleStatus) AtLeastInit() bool {
	return s == StatusInit || s == StatusReady || s == StatusRunning
}

// MarshalText implements encoding.TextMarshaler.
func (s ModuleStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ModuleStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseModuleStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
