package session

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/CloseUpCam/internal/debug"
	"github.com/cjeanneret/CloseUpCam/internal/hw/camera"
)

// Behavior is the extra setup a camera variant runs once the session is
// assembled. Variants may also implement ZoomLimiter or FocusMapper.
type Behavior interface {
	Name() string
	Setup(h *DeviceHandle) error
}

// ZoomLimiter narrows the zoom range offered to the user.
type ZoomLimiter interface {
	MaxZoom(p camera.Profile) float64
}

// FocusMapper converts a preview-surface point into device focus space.
type FocusMapper interface {
	MapFocusPoint(p camera.Point) camera.Point
}

// AttachedSession is the result of a configuration attempt.
type AttachedSession struct {
	Session camera.Session
	Input   *camera.Input
	Output  camera.Output
	Handle  *DeviceHandle
	Preset  camera.Preset
}

// Configurator assembles a capture session in one configuration bracket:
// device, input, preset, input attachment, output attachment, variant setup.
type Configurator struct {
	behavior Behavior

	mu    sync.Mutex
	state ConfigState
	err   error
}

// NewConfigurator creates a configurator running b after attachment; b may be nil.
func NewConfigurator(b Behavior) *Configurator {
	return &Configurator{behavior: b}
}

// State returns the configuration state.
func (c *Configurator) State() ConfigState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the failure of the last attempt, if any.
func (c *Configurator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Reset returns a failed configurator to Uninitialized so it can retry.
func (c *Configurator) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ConfigFailed {
		return &StageError{Stage: StageBegin, Err: fmt.Errorf("reset from %s: %w", c.state, ErrInvalidState)}
	}
	c.setState(ConfigUninitialized)
	c.err = nil
	return nil
}

func (c *Configurator) setState(next ConfigState) {
	debug.Verbose("Configurator: %s -> %s", c.state, next)
	c.state = next
}

// Configure attaches the picked device and out to s. Earlier steps are not
// undone when a later one fails: on a variant setup failure the returned
// AttachedSession is non-nil alongside the error.
func (c *Configurator) Configure(s camera.Session, pick camera.DevicePicker, out camera.Output) (*AttachedSession, error) {
	c.mu.Lock()
	if c.state != ConfigUninitialized {
		st := c.state
		c.mu.Unlock()
		return nil, &StageError{Stage: StageBegin, Err: fmt.Errorf("configure from %s: %w", st, ErrInvalidState)}
	}
	c.setState(ConfigConfiguring)
	c.mu.Unlock()

	debug.Section("Session configuration")
	s.BeginConfiguration()
	attached, err := c.configure(s, pick, out)
	s.CommitConfiguration()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.setState(ConfigFailed)
		c.err = err
		debug.Error(err)
		return attached, err
	}
	c.setState(ConfigConfigured)
	return attached, nil
}

func (c *Configurator) configure(s camera.Session, pick camera.DevicePicker, out camera.Output) (*AttachedSession, error) {
	debug.Step(1, "pick device")
	var dev camera.Device
	if pick != nil {
		dev = pick()
	}
	if dev == nil {
		return nil, &StageError{Stage: StagePickDevice, Err: ErrDeviceUnavailable}
	}
	profile := dev.Profile()
	debug.Value("device", profile.Name)

	debug.Step(2, "create input")
	in, err := camera.NewInput(dev)
	if err != nil {
		return nil, &StageError{Stage: StageCreateInput, Err: fmt.Errorf("%w: %w", ErrInputCreationFailed, err)}
	}

	debug.Step(3, "set preset")
	preset := c.applyPreset(s, profile)

	debug.Step(4, "attach input")
	if !s.CanAddInput(in) {
		_ = in.Close()
		return nil, &StageError{Stage: StageAttachInput, Err: ErrInputRejected}
	}
	s.AddInput(in)

	attached := &AttachedSession{
		Session: s,
		Input:   in,
		Handle:  NewDeviceHandle(dev),
		Preset:  preset,
	}

	debug.Step(5, "attach output")
	if out == nil || !s.CanAddOutput(out) {
		return attached, &StageError{Stage: StageAttachOutput, Err: ErrOutputRejected}
	}
	s.AddOutput(out)
	attached.Output = out

	if c.behavior != nil {
		debug.Step(6, "variant setup: "+c.behavior.Name())
		if err := c.behavior.Setup(attached.Handle); err != nil {
			return attached, &StageError{Stage: StageVariantSetup, Err: err}
		}
	}
	return attached, nil
}

// applyPreset sets the highest-fidelity preset both the session and the
// device accept. A device that lists no presets accepts all of them.
func (c *Configurator) applyPreset(s camera.Session, p camera.Profile) camera.Preset {
	for _, preset := range camera.PresetsByFidelity {
		if len(p.Presets) > 0 && !p.SupportsPreset(preset) {
			continue
		}
		if s.CanSetPreset(preset) {
			s.SetPreset(preset)
			debug.Value("preset", preset)
			return preset
		}
	}
	debug.Verbose("No common preset, keeping session default")
	return s.Preset()
}
