package camera

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cjeanneret/CloseUpCam/internal/debug"
	"github.com/cjeanneret/CloseUpCam/internal/hw/gpio"
	"github.com/cjeanneret/CloseUpCam/internal/hw/stepper"
)

// RigConfig wires a RigDevice to its motor and remote connector.
type RigConfig struct {
	Profile        Profile
	Stepper        stepper.Config // MaxSteps is derived from the profile
	StepsPerFactor int            // ring steps per 1.0 of zoom
	FocusPin       int
	FocusDelay     time.Duration
}

// RigDevice is a DSLR on a motorized rig: a stepper turns the zoom ring
// and the remote FOCUS line triggers single-shot autofocus. The rig cannot
// target a focus point.
type RigDevice struct {
	cfg   RigConfig
	gpio  gpio.Driver
	motor *stepper.Stepper
	lock  configLock

	mu        sync.Mutex
	acquired  bool
	focusMode FocusMode
}

// NewRigDevice sets up the zoom motor at the ring's wide end.
func NewRigDevice(g gpio.Driver, cfg RigConfig) (*RigDevice, error) {
	if cfg.StepsPerFactor <= 0 {
		return nil, fmt.Errorf("rig: steps per zoom factor must be > 0")
	}
	maxZoom := cfg.Profile.ActiveFormat.MaxZoomFactor
	sc := cfg.Stepper
	sc.MaxSteps = int(math.Round((maxZoom - 1) * float64(cfg.StepsPerFactor)))

	cfg.Profile.FocusPointOfInterestSupported = false
	_ = g.SetupPin(cfg.FocusPin, gpio.Output)
	_ = g.WritePin(cfg.FocusPin, gpio.High)

	return &RigDevice{
		cfg:       cfg,
		gpio:      g,
		motor:     stepper.NewStepper(g, sc),
		lock:      configLock{id: cfg.Profile.ID},
		focusMode: FocusLocked,
	}, nil
}

func (d *RigDevice) Profile() Profile { return d.cfg.Profile }

func (d *RigDevice) Acquire() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.acquired {
		return ErrDeviceBusy
	}
	if err := d.motor.Enable(); err != nil {
		return fmt.Errorf("rig: enable zoom motor: %w", err)
	}
	d.acquired = true
	return nil
}

// Release frees the device and the ring motor.
func (d *RigDevice) Release() error {
	d.mu.Lock()
	d.acquired = false
	d.mu.Unlock()
	return d.motor.Release()
}

func (d *RigDevice) LockForConfiguration() error { return d.lock.lock() }
func (d *RigDevice) UnlockForConfiguration()     { d.lock.unlock() }

func (d *RigDevice) ZoomFactor() float64 {
	return 1 + float64(d.motor.Position())/float64(d.cfg.StepsPerFactor)
}

// SetZoomFactor turns the ring to the step nearest factor.
func (d *RigDevice) SetZoomFactor(factor float64) error {
	if !d.lock.isHeld() {
		return ErrNotLocked
	}
	if max := d.cfg.Profile.ActiveFormat.MaxZoomFactor; factor < 1 || factor > max {
		return fmt.Errorf("zoom factor %.2f outside [1, %.2f]", factor, max)
	}
	target := int(math.Round((factor - 1) * float64(d.cfg.StepsPerFactor)))
	return d.motor.MoveTo(target)
}

func (d *RigDevice) FocusPointOfInterest() Point { return Point{X: 0.5, Y: 0.5} }

func (d *RigDevice) SetFocusPointOfInterest(Point) error {
	if !d.lock.isHeld() {
		return ErrNotLocked
	}
	return ErrUnsupported
}

func (d *RigDevice) FocusMode() FocusMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focusMode
}

// SetFocusMode with FocusAuto half-presses the remote for the autofocus
// delay, after which focus stays locked. Continuous focus is not available.
func (d *RigDevice) SetFocusMode(m FocusMode) error {
	if !d.lock.isHeld() {
		return ErrNotLocked
	}
	switch m {
	case FocusAuto:
		debug.Verbose("Rig: autofocus on pin %d (%v)", d.cfg.FocusPin, d.cfg.FocusDelay)
		if err := gpio.Pulse(d.gpio, d.cfg.FocusPin, gpio.Low, d.cfg.FocusDelay); err != nil {
			return fmt.Errorf("rig autofocus: %w", err)
		}
		m = FocusLocked
	case FocusContinuous:
		return ErrUnsupported
	}
	d.mu.Lock()
	d.focusMode = m
	d.mu.Unlock()
	return nil
}
