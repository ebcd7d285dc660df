package camera

import (
	"fmt"
	"sync"
)

// SimulatedDevice is an in-memory device for development and tests.
// It enforces the same rules as hardware: exclusive acquisition, mutations
// only under the configuration lock, zoom within [1, max].
type SimulatedDevice struct {
	profile Profile
	lock    configLock

	mu         sync.Mutex
	acquired   bool
	busy       bool
	zoom       float64
	focusPoint Point
	focusMode  FocusMode
}

// NewSimulatedDevice creates a device with the given profile at zoom 1.0,
// focus point centered, continuous autofocus.
func NewSimulatedDevice(p Profile) *SimulatedDevice {
	return &SimulatedDevice{
		profile:    p,
		lock:       configLock{id: p.ID},
		zoom:       1.0,
		focusPoint: Point{X: 0.5, Y: 0.5},
		focusMode:  FocusContinuous,
	}
}

// SetBusy makes Acquire fail as if another client held the camera.
func (d *SimulatedDevice) SetBusy(busy bool) {
	d.mu.Lock()
	d.busy = busy
	d.mu.Unlock()
}

// RefuseLocks makes LockForConfiguration fail.
func (d *SimulatedDevice) RefuseLocks(refuse bool) {
	d.lock.refuse.Store(refuse)
}

func (d *SimulatedDevice) Profile() Profile { return d.profile }

func (d *SimulatedDevice) Acquire() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy || d.acquired {
		return ErrDeviceBusy
	}
	d.acquired = true
	return nil
}

func (d *SimulatedDevice) Release() error {
	d.mu.Lock()
	d.acquired = false
	d.mu.Unlock()
	return nil
}

func (d *SimulatedDevice) LockForConfiguration() error { return d.lock.lock() }
func (d *SimulatedDevice) UnlockForConfiguration()     { d.lock.unlock() }

func (d *SimulatedDevice) ZoomFactor() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.zoom
}

func (d *SimulatedDevice) SetZoomFactor(factor float64) error {
	if !d.lock.isHeld() {
		return ErrNotLocked
	}
	if max := d.profile.ActiveFormat.MaxZoomFactor; factor < 1 || factor > max {
		return fmt.Errorf("zoom factor %.2f outside [1, %.2f]", factor, max)
	}
	d.mu.Lock()
	d.zoom = factor
	d.mu.Unlock()
	return nil
}

func (d *SimulatedDevice) FocusPointOfInterest() Point {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focusPoint
}

func (d *SimulatedDevice) SetFocusPointOfInterest(p Point) error {
	if !d.lock.isHeld() {
		return ErrNotLocked
	}
	if !d.profile.FocusPointOfInterestSupported {
		return ErrUnsupported
	}
	d.mu.Lock()
	d.focusPoint = p
	d.mu.Unlock()
	return nil
}

func (d *SimulatedDevice) FocusMode() FocusMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focusMode
}

func (d *SimulatedDevice) SetFocusMode(m FocusMode) error {
	if !d.lock.isHeld() {
		return ErrNotLocked
	}
	d.mu.Lock()
	d.focusMode = m
	d.mu.Unlock()
	return nil
}
