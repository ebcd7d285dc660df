package variant

import (
	"github.com/cjeanneret/CloseUpCam/internal/debug"
	"github.com/cjeanneret/CloseUpCam/internal/hw/camera"
	"github.com/cjeanneret/CloseUpCam/internal/logic/geometry"
	"github.com/cjeanneret/CloseUpCam/internal/logic/session"
)

// SwitchLens starts a multi-lens device at its first lens switch-over
// zoom factor.
type SwitchLens struct{}

func (SwitchLens) Name() string { return NameSwitchLens }

func (SwitchLens) Setup(h *session.DeviceHandle) error {
	p := h.Profile()
	if len(p.SwitchOverZoomFactors) == 0 {
		debug.Verbose("Switch lens: %s has a single lens", p.Name)
		return nil
	}
	factor := geometry.ClampZoom(p.SwitchOverZoomFactors[0], p.ActiveFormat.MaxZoomFactor)
	debug.Zoom(p.SwitchOverZoomFactors[0], factor)
	return h.WithLock("switch-over zoom", func(d camera.Device) error {
		return d.SetZoomFactor(factor)
	})
}
