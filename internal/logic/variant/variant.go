// Package variant holds the camera behaviors a session can run with:
// close-up zoom, tap to focus, and lens switch-over zoom.
package variant

import (
	"fmt"

	"github.com/cjeanneret/CloseUpCam/internal/logic/session"
)

const (
	NameCloseUp    = "close_up"
	NameTapFocus   = "tap_focus"
	NameSwitchLens = "switch_lens"
)

// Names lists the selectable variants.
var Names = []string{NameCloseUp, NameTapFocus, NameSwitchLens}

// Options parameterizes variants that need it.
type Options struct {
	TargetSizeMm  float64
	SliderMaxZoom float64
}

// New returns the behavior registered under name.
func New(name string, opts Options) (session.Behavior, error) {
	switch name {
	case NameCloseUp:
		if opts.TargetSizeMm <= 0 {
			return nil, fmt.Errorf("variant %s: target size must be > 0, got %v", name, opts.TargetSizeMm)
		}
		return NewCloseUp(opts.TargetSizeMm, opts.SliderMaxZoom), nil
	case NameTapFocus:
		return TapFocus{}, nil
	case NameSwitchLens:
		return SwitchLens{}, nil
	default:
		return nil, fmt.Errorf("unknown variant %q (want one of %v)", name, Names)
	}
}
