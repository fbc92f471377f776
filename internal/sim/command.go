package sim

import (
	"fmt"
	"sync"
)

// Command is an operator command delivered over telemetry.
type Command int

const (
	CommandCalibrate Command = iota + 1
	CommandLaunch
	CommandEmergencyStop
	CommandShutdown
)

var commandNames = map[Command]string{
	CommandCalibrate:     "calibrate",
	CommandLaunch:        "launch",
	CommandEmergencyStop: "stop",
	CommandShutdown:      "shutdown",
}

// String returns the operator-facing name of the command.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// ParseCommand parses an operator-facing command name.
func ParseCommand(s string) (Command, error) {
	for c, name := range commandNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", s)
}

// Mailbox latches commands until the telemetry loop collects them.
// Safe for concurrent use.
type Mailbox struct {
	mu      sync.Mutex
	pending map[Command]bool
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{pending: make(map[Command]bool)}
}

// Send latches c. Sending the same command twice before it is collected
// has no further effect.
func (m *Mailbox) Send(c Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[c] = true
}

// Collect returns and clears the latched commands.
func (m *Mailbox) Collect() map[Command]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.pending
	m.pending = make(map[Command]bool)
	return out
}
