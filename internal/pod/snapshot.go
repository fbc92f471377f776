package pod

// Snapshot is implemented by every module domain snapshot. It lets the
// publishing adapters read and rewrite the status field without knowing the
// concrete domain.
type Snapshot[T any] interface {
	Status() ModuleStatus
	WithStatus(ModuleStatus) T
}

// StateMachineData is the state machine's published view of the run.
// Written only by the engine; readable by everyone.
type StateMachineData struct {
	CurrentPhase  Phase  `json:"current_phase"`
	PreviousPhase Phase  `json:"previous_phase"`
	Reason        string `json:"reason,omitempty"`

	// Cycle is the engine cycle on which CurrentPhase was entered.
	Cycle int64 `json:"cycle"`

	CalibrationComplete bool      `json:"calibration_complete"`
	FailedModules       ModuleSet `json:"failed_modules"`
}

// NavigationData carries the navigation estimate along the track.
// Distances are metres from the start line, velocities m/s.
type NavigationData struct {
	ModuleStatus ModuleStatus `json:"module_status"`

	Displacement float64 `json:"displacement"`
	Velocity     float64 `json:"velocity"`
	Acceleration float64 `json:"acceleration"`

	// BrakingDistance is the distance needed to stop with nominal braking.
	BrakingDistance float64 `json:"braking_distance"`
	// EmergencyBrakingDistance is the distance needed with emergency braking.
	EmergencyBrakingDistance float64 `json:"emergency_braking_distance"`
}

func (d NavigationData) Status() ModuleStatus { return d.ModuleStatus }

func (d NavigationData) WithStatus(s ModuleStatus) NavigationData {
	d.ModuleStatus = s
	return d
}

// NumIMUs is the number of inertial measurement units on the pod.
const NumIMUs = 4

// NumStripeCounters is the number of optical stripe counters on the pod.
const NumStripeCounters = 2

// IMUReading is one accelerometer sample in m/s².
type IMUReading struct {
	Operational bool       `json:"operational"`
	Acc         [3]float64 `json:"acc"`
}

// StripeCount is the number of track stripes a counter has seen.
type StripeCount struct {
	Operational bool   `json:"operational"`
	Count       uint32 `json:"count"`
}

// SensorsData carries raw sensor readings.
type SensorsData struct {
	ModuleStatus ModuleStatus `json:"module_status"`

	IMUs     [NumIMUs]IMUReading            `json:"imus"`
	Stripes  [NumStripeCounters]StripeCount `json:"stripes"`
	Sequence uint64                         `json:"sequence"`
}

func (d SensorsData) Status() ModuleStatus { return d.ModuleStatus }

func (d SensorsData) WithStatus(s ModuleStatus) SensorsData {
	d.ModuleStatus = s
	return d
}

// NumMotors is the number of propulsion motors.
const NumMotors = 4

// PropulsionData carries motor controller state.
type PropulsionData struct {
	ModuleStatus ModuleStatus `json:"module_status"`

	MotorRPM     [NumMotors]int32   `json:"motor_rpm"`
	MotorCurrent [NumMotors]float64 `json:"motor_current"`
}

func (d PropulsionData) Status() ModuleStatus { return d.ModuleStatus }

func (d PropulsionData) WithStatus(s ModuleStatus) PropulsionData {
	d.ModuleStatus = s
	return d
}

// NumBrakes is the number of brake units.
const NumBrakes = 2

// BrakesData carries brake unit state.
type BrakesData struct {
	ModuleStatus ModuleStatus `json:"module_status"`

	Engaged [NumBrakes]bool `json:"engaged"`
}

func (d BrakesData) Status() ModuleStatus { return d.ModuleStatus }

func (d BrakesData) WithStatus(s ModuleStatus) BrakesData {
	d.ModuleStatus = s
	return d
}

// AllEngaged reports whether every brake unit is clamped.
func (d BrakesData) AllEngaged() bool {
	for _, e := range d.Engaged {
		if !e {
			return false
		}
	}
	return true
}

// TelemetryData carries the ground link state and the operator commands
// received over it. Commands are level-triggered: they stay set once
// received.
type TelemetryData struct {
	ModuleStatus ModuleStatus `json:"module_status"`

	Connected            bool `json:"connected"`
	CalibrateCommand     bool `json:"calibrate_command"`
	LaunchCommand        bool `json:"launch_command"`
	EmergencyStopCommand bool `json:"emergency_stop_command"`
	ShutdownCommand      bool `json:"shutdown_command"`
}

func (d TelemetryData) Status() ModuleStatus { return d.ModuleStatus }

func (d TelemetryData) WithStatus(s ModuleStatus) TelemetryData {
	d.ModuleStatus = s
	return d
}
