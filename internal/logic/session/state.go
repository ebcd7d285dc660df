package session

// ConfigState is the progress of one configuration attempt.
type ConfigState int

const (
	ConfigUninitialized ConfigState = iota
	ConfigConfiguring
	ConfigConfigured
	ConfigFailed
)

func (s ConfigState) String() string {
	switch s {
	case ConfigUninitialized:
		return "uninitialized"
	case ConfigConfiguring:
		return "configuring"
	case ConfigConfigured:
		return "configured"
	case ConfigFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of a camera session.
type State int

const (
	StateIdle State = iota
	StateAwaitingAuthorization
	StateConfiguring
	StateRunning
	StateStopped
	StateStalled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingAuthorization:
		return "awaiting_authorization"
	case StateConfiguring:
		return "configuring"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateStalled:
		return "stalled"
	default:
		return "unknown"
	}
}

// StallReason says why a session is stalled.
type StallReason int

const (
	StallNone StallReason = iota
	StallNotAuthorized
	StallConfigurationFailed
)

func (r StallReason) String() string {
	switch r {
	case StallNone:
		return "none"
	case StallNotAuthorized:
		return "not_authorized"
	case StallConfigurationFailed:
		return "configuration_failed"
	default:
		return "unknown"
	}
}

// Message is the alert text shown to the user.
func (r StallReason) Message() string {
	switch r {
	case StallNotAuthorized:
		return "camera permission denied"
	case StallConfigurationFailed:
		return "unable to capture media"
	default:
		return ""
	}
}
