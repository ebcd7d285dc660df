package camera

import (
	"context"
	"time"

	"github.com/cjeanneret/CloseUpCam/internal/debug"
	"github.com/cjeanneret/CloseUpCam/internal/hw/gpio"
	"github.com/google/uuid"
)

// RemoteShutterOutput is an Output that fires a DSLR through its 3-pin
// remote connector:
// - GND: connected to Raspberry Pi ground
// - FOCUS: autofocus (activate by setting to LOW)
// - SHUTTER: trigger (activate by setting to LOW)
//
// The image stays on the camera's card; the returned Photo only records
// when and at which zoom the shot was taken.
type RemoteShutterOutput struct {
	gpio         gpio.Driver
	focusPin     int
	shutterPin   int
	focusDelay   time.Duration // time for autofocus
	shutterDelay time.Duration // shutter hold time
}

// NewRemoteShutterOutput configures both lines as outputs, idle HIGH.
func NewRemoteShutterOutput(g gpio.Driver, focusPin, shutterPin int, focusDelay, shutterDelay time.Duration) *RemoteShutterOutput {
	_ = g.SetupPin(focusPin, gpio.Output)
	_ = g.SetupPin(shutterPin, gpio.Output)
	_ = g.WritePin(focusPin, gpio.High)
	_ = g.WritePin(shutterPin, gpio.High)

	return &RemoteShutterOutput{
		gpio:         g,
		focusPin:     focusPin,
		shutterPin:   shutterPin,
		focusDelay:   focusDelay,
		shutterDelay: shutterDelay,
	}
}

func (r *RemoteShutterOutput) Name() string { return "remote_shutter" }

// CapturePhoto runs FOCUS -> wait for AF -> SHUTTER -> hold -> release.
// Cancelling ctx during the autofocus wait releases FOCUS without firing.
func (r *RemoteShutterOutput) CapturePhoto(ctx context.Context, dev Device) (*Photo, error) {
	debug.Info("Camera: triggering shot (focus=%d, shutter=%d)", r.focusPin, r.shutterPin)

	debug.Verbose("Camera: activating FOCUS (pin %d -> LOW)", r.focusPin)
	if err := r.gpio.WritePin(r.focusPin, gpio.Low); err != nil {
		return nil, err
	}

	debug.Verbose("Camera: waiting for autofocus (%v)", r.focusDelay)
	if err := sleepCtx(ctx, r.focusDelay); err != nil {
		_ = r.gpio.WritePin(r.focusPin, gpio.High)
		return nil, err
	}

	debug.Verbose("Camera: activating SHUTTER (pin %d -> LOW)", r.shutterPin)
	if err := r.gpio.WritePin(r.shutterPin, gpio.Low); err != nil {
		_ = r.gpio.WritePin(r.focusPin, gpio.High)
		return nil, err
	}
	shotAt := time.Now()

	// Once the shutter is down the shot is taken; the hold is not cancellable.
	time.Sleep(r.shutterDelay)

	debug.Verbose("Camera: releasing SHUTTER (pin %d -> HIGH)", r.shutterPin)
	if err := r.gpio.WritePin(r.shutterPin, gpio.High); err != nil {
		return nil, err
	}
	debug.Verbose("Camera: releasing FOCUS (pin %d -> HIGH)", r.focusPin)
	if err := r.gpio.WritePin(r.focusPin, gpio.High); err != nil {
		return nil, err
	}

	photo := &Photo{
		ID:         uuid.NewString(),
		CapturedAt: shotAt,
		Format:     "remote",
	}
	if dev != nil {
		f := dev.Profile().ActiveFormat
		photo.Width, photo.Height = f.Width, f.Height
		photo.ZoomFactor = dev.ZoomFactor()
	}
	debug.Info("Camera: shot %s triggered", photo.ID)
	return photo, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
