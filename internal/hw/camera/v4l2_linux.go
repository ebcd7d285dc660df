//go:build linux

package camera

import (
	"fmt"
	"math"
	"sync"

	"github.com/cjeanneret/CloseUpCam/internal/debug"
	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"
)

// Camera class control IDs (linux/v4l2-controls.h).
const (
	ctrlFocusAuto      v4l2.CtrlID = 0x009a090c
	ctrlZoomAbsolute   v4l2.CtrlID = 0x009a090d
	ctrlAutoFocusStart v4l2.CtrlID = 0x009a091c
)

// V4L2Device drives a UVC or CSI camera through its V4L2 controls.
// Zoom factors in [1, MaxZoomFactor] are mapped linearly onto the
// device's ZOOM_ABSOLUTE range.
type V4L2Device struct {
	path    string
	profile Profile
	lock    configLock

	mu        sync.Mutex
	dev       *device.Device
	zoomMin   int32
	zoomMax   int32
	zoom      float64
	focusMode FocusMode
}

// NewV4L2Device prepares a device; the node is opened on Acquire.
func NewV4L2Device(path string, p Profile) *V4L2Device {
	p.FocusPointOfInterestSupported = false
	return &V4L2Device{
		path:      path,
		profile:   p,
		lock:      configLock{id: p.ID},
		zoom:      1.0,
		focusMode: FocusContinuous,
	}
}

func (d *V4L2Device) Profile() Profile { return d.profile }

func (d *V4L2Device) Acquire() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev != nil {
		return ErrDeviceBusy
	}
	dev, err := device.Open(d.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.path, err)
	}
	d.dev = dev

	ctrl, err := v4l2.GetControl(dev.Fd(), ctrlZoomAbsolute)
	if err != nil {
		debug.Info("V4L2: %s has no zoom control, zoom stays at 1x", d.path)
		d.zoomMin, d.zoomMax = 0, 0
	} else {
		d.zoomMin, d.zoomMax = ctrl.Minimum, ctrl.Maximum
		debug.Verbose("V4L2: %s zoom range [%d, %d]", d.path, ctrl.Minimum, ctrl.Maximum)
	}
	return nil
}

func (d *V4L2Device) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return nil
	}
	err := d.dev.Close()
	d.dev = nil
	return err
}

func (d *V4L2Device) LockForConfiguration() error { return d.lock.lock() }
func (d *V4L2Device) UnlockForConfiguration()     { d.lock.unlock() }

func (d *V4L2Device) ZoomFactor() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.zoom
}

func (d *V4L2Device) SetZoomFactor(factor float64) error {
	if !d.lock.isHeld() {
		return ErrNotLocked
	}
	max := d.profile.ActiveFormat.MaxZoomFactor
	if factor < 1 || factor > max {
		return fmt.Errorf("zoom factor %.2f outside [1, %.2f]", factor, max)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return ErrDeviceBusy
	}
	if d.zoomMax <= d.zoomMin {
		if factor != 1 {
			return ErrUnsupported
		}
		return nil
	}
	value := d.zoomMin
	if max > 1 {
		value += int32(math.Round((factor - 1) / (max - 1) * float64(d.zoomMax-d.zoomMin)))
	}
	if err := d.dev.SetControlValue(ctrlZoomAbsolute, v4l2.CtrlValue(value)); err != nil {
		return fmt.Errorf("set zoom: %w", err)
	}
	d.zoom = factor
	return nil
}

func (d *V4L2Device) FocusPointOfInterest() Point { return Point{X: 0.5, Y: 0.5} }

func (d *V4L2Device) SetFocusPointOfInterest(Point) error {
	if !d.lock.isHeld() {
		return ErrNotLocked
	}
	return ErrUnsupported
}

func (d *V4L2Device) FocusMode() FocusMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focusMode
}

func (d *V4L2Device) SetFocusMode(m FocusMode) error {
	if !d.lock.isHeld() {
		return ErrNotLocked
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return ErrDeviceBusy
	}

	var err error
	switch m {
	case FocusContinuous:
		err = d.dev.SetControlValue(ctrlFocusAuto, 1)
	case FocusAuto:
		if err = d.dev.SetControlValue(ctrlFocusAuto, 0); err == nil {
			err = d.dev.SetControlValue(ctrlAutoFocusStart, 1)
		}
	case FocusLocked:
		err = d.dev.SetControlValue(ctrlFocusAuto, 0)
	}
	if err != nil {
		return fmt.Errorf("set focus mode %s: %w", m, err)
	}
	d.focusMode = m
	return nil
}
