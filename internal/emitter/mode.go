package emitter

// Mode is the single advertising role the node is in. Moving between two
// non-idle modes always passes through Idle.
type Mode int

const (
	ModeIdle Mode = iota
	ModeIBeacon
	ModeFreePayload
	ModeConnectable
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeIBeacon:
		return "ibeacon"
	case ModeFreePayload:
		return "free-payload"
	case ModeConnectable:
		return "connectable"
	default:
		return "unknown"
	}
}

// ActivationPolicy decides whether RegisterAndActivate activates a service
// the radio refused to register.
type ActivationPolicy int

const (
	// ActivateAlways activates the service whatever the registration
	// result. The service object is then committed but not reachable over
	// the air.
	ActivateAlways ActivationPolicy = iota
	// ActivateOnSuccess leaves a refused service inactive so characteristics
	// can still be attached and registration retried.
	ActivateOnSuccess
)

func (p ActivationPolicy) String() string {
	if p == ActivateOnSuccess {
		return "on-success"
	}
	return "always"
}
