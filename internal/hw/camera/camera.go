package camera

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDeviceBusy is returned by Device.Acquire when another client holds the device.
	ErrDeviceBusy = errors.New("device is in use by another client")
	// ErrLockUnavailable is returned by LockForConfiguration when the lock is held elsewhere.
	ErrLockUnavailable = errors.New("device configuration lock unavailable")
	// ErrNotLocked is returned by a property mutation made without holding the configuration lock.
	ErrNotLocked = errors.New("device is not locked for configuration")
	// ErrUnsupported is returned for a property the device does not expose.
	ErrUnsupported = errors.New("unsupported by device")
)

// Position is the side of the host a camera faces.
type Position int

const (
	PositionUnspecified Position = iota
	PositionBack
	PositionFront
)

func (p Position) String() string {
	switch p {
	case PositionBack:
		return "back"
	case PositionFront:
		return "front"
	default:
		return "unspecified"
	}
}

// FocusMode is the device autofocus behavior.
type FocusMode int

const (
	FocusLocked FocusMode = iota
	FocusAuto             // single-shot autofocus, then lock
	FocusContinuous
)

func (m FocusMode) String() string {
	switch m {
	case FocusLocked:
		return "locked"
	case FocusAuto:
		return "auto"
	case FocusContinuous:
		return "continuous"
	default:
		return "unknown"
	}
}

// Point is a point of interest in normalized device coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Preset names a session quality level.
type Preset string

const (
	PresetPhoto  Preset = "photo"
	PresetHigh   Preset = "high"
	PresetMedium Preset = "medium"
	PresetLow    Preset = "low"
)

// PresetsByFidelity lists presets from the highest fidelity down.
var PresetsByFidelity = []Preset{PresetPhoto, PresetHigh, PresetMedium, PresetLow}

// Format is the active capture format of a device.
type Format struct {
	Width         int
	Height        int
	FieldOfView   float64 // horizontal, degrees
	MaxZoomFactor float64
}

// Profile is a read-only snapshot of a device's optical properties.
type Profile struct {
	ID       string
	Name     string
	Position Position

	// MinimumFocusDistance in millimeters; -1 when the device does not report it.
	MinimumFocusDistance float64
	ActiveFormat         Format

	// SwitchOverZoomFactors are the zoom factors at which a multi-lens
	// device changes physical optics, in ascending order.
	SwitchOverZoomFactors []float64
	Presets               []Preset

	FocusPointOfInterestSupported bool
}

// SupportsPreset reports whether p is in the profile's preset list.
func (p Profile) SupportsPreset(preset Preset) bool {
	for _, s := range p.Presets {
		if s == preset {
			return true
		}
	}
	return false
}

// Device is a capture device. Property mutations require holding the
// configuration lock (LockForConfiguration ... UnlockForConfiguration).
type Device interface {
	Profile() Profile

	// Acquire claims the device for a session input; Release gives it back.
	Acquire() error
	Release() error

	LockForConfiguration() error
	UnlockForConfiguration()

	ZoomFactor() float64
	SetZoomFactor(factor float64) error

	FocusPointOfInterest() Point
	SetFocusPointOfInterest(p Point) error
	FocusMode() FocusMode
	SetFocusMode(m FocusMode) error
}

// DevicePicker selects the capture device to configure; nil means none found.
type DevicePicker func() Device

// PickFirst returns a picker choosing the first device at the given position.
func PickFirst(pos Position, devices ...Device) DevicePicker {
	return func() Device {
		for _, d := range devices {
			if d != nil && (pos == PositionUnspecified || d.Profile().Position == pos) {
				return d
			}
		}
		return nil
	}
}

// Photo is the result of a capture.
type Photo struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"captured_at"`
	Format     string    `json:"format"` // "jpeg", or "remote" when stored on the camera itself
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	ZoomFactor float64   `json:"zoom_factor"`
	Data       []byte    `json:"-"`
}

// Output is a session output able to capture photos from the attached device.
type Output interface {
	Name() string
	CapturePhoto(ctx context.Context, dev Device) (*Photo, error)
}

// Input binds a device to a session. Created by NewInput, which acquires the device.
type Input struct {
	device Device
}

// NewInput acquires dev for exclusive use by a session.
func NewInput(dev Device) (*Input, error) {
	if dev == nil {
		return nil, fmt.Errorf("new input: nil device")
	}
	if err := dev.Acquire(); err != nil {
		return nil, fmt.Errorf("acquire %s: %w", dev.Profile().ID, err)
	}
	return &Input{device: dev}, nil
}

// Device returns the device behind the input.
func (in *Input) Device() Device {
	return in.device
}

// Close releases the device.
func (in *Input) Close() error {
	return in.device.Release()
}
