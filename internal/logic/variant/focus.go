package variant

import (
	"github.com/cjeanneret/CloseUpCam/internal/hw/camera"
	"github.com/cjeanneret/CloseUpCam/internal/logic/session"
)

// TapFocus focuses where the user taps. Tap coordinates are used as device
// point-of-interest coordinates without transformation.
type TapFocus struct{}

func (TapFocus) Name() string { return NameTapFocus }

func (TapFocus) Setup(*session.DeviceHandle) error { return nil }

func (TapFocus) MapFocusPoint(p camera.Point) camera.Point { return p }
