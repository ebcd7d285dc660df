package session

import (
	"fmt"

	"github.com/cjeanneret/CloseUpCam/internal/debug"
	"github.com/cjeanneret/CloseUpCam/internal/hw/camera"
)

// DeviceHandle is the configured device as passed to variant behaviors.
// It is the only path to device mutation.
type DeviceHandle struct {
	dev camera.Device
}

// NewDeviceHandle wraps dev.
func NewDeviceHandle(dev camera.Device) *DeviceHandle {
	return &DeviceHandle{dev: dev}
}

// Profile returns the device profile.
func (h *DeviceHandle) Profile() camera.Profile { return h.dev.Profile() }

// ZoomFactor returns the current zoom factor.
func (h *DeviceHandle) ZoomFactor() float64 { return h.dev.ZoomFactor() }

// WithLock runs fn while holding the device configuration lock and
// releases the lock as soon as fn returns. If the lock is unavailable
// the mutation is dropped.
func (h *DeviceHandle) WithLock(op string, fn func(d camera.Device) error) error {
	id := h.dev.Profile().ID
	if err := h.dev.LockForConfiguration(); err != nil {
		err = fmt.Errorf("%s: %w: %w", op, ErrLockAcquisitionFailed, err)
		debug.Error(err)
		debug.Lock("dropped "+op, id)
		return err
	}
	defer h.dev.UnlockForConfiguration()
	if err := fn(h.dev); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
