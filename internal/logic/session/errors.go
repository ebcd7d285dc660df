package session

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceUnavailable     = errors.New("no capture device available")
	ErrInputCreationFailed   = errors.New("could not create device input")
	ErrInputRejected         = errors.New("session rejected device input")
	ErrOutputRejected        = errors.New("session rejected output")
	ErrNotAuthorized         = errors.New("camera access not authorized")
	ErrLockAcquisitionFailed = errors.New("could not lock device for configuration")

	// ErrInvalidState is returned when an operation is called in a state that does not accept it.
	ErrInvalidState = errors.New("invalid state for operation")
	// ErrNotRunning is returned by operations that need a running session.
	ErrNotRunning = errors.New("session is not running")
)

// Stage identifies a configuration step.
type Stage int

const (
	StageBegin Stage = iota
	StagePickDevice
	StageCreateInput
	StageSetPreset
	StageAttachInput
	StageAttachOutput
	StageVariantSetup
)

func (s Stage) String() string {
	switch s {
	case StageBegin:
		return "begin"
	case StagePickDevice:
		return "pick device"
	case StageCreateInput:
		return "create input"
	case StageSetPreset:
		return "set preset"
	case StageAttachInput:
		return "attach input"
	case StageAttachOutput:
		return "attach output"
	case StageVariantSetup:
		return "variant setup"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageError reports the configuration step that failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("configure session: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
