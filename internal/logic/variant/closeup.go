package variant

import (
	"fmt"
	"math"
	"sync"

	"github.com/cjeanneret/CloseUpCam/internal/debug"
	"github.com/cjeanneret/CloseUpCam/internal/hw/camera"
	"github.com/cjeanneret/CloseUpCam/internal/logic/geometry"
	"github.com/cjeanneret/CloseUpCam/internal/logic/session"
)

// DefaultSliderMaxZoom caps the close-up zoom slider.
const DefaultSliderMaxZoom = 8.0

// CloseUp frames a small subject (a code, a label) that the lens cannot
// focus on from close enough: it zooms in so the subject fills the region
// of interest from the minimum focus distance.
type CloseUp struct {
	targetSize    float64 // mm
	sliderMaxZoom float64

	mu          sync.RWMutex
	roi         geometry.RegionOfInterest
	recommended float64
}

// NewCloseUp creates the variant for a subject of targetSizeMm.
func NewCloseUp(targetSizeMm, sliderMaxZoom float64) *CloseUp {
	if sliderMaxZoom < 1 {
		sliderMaxZoom = DefaultSliderMaxZoom
	}
	return &CloseUp{targetSize: targetSizeMm, sliderMaxZoom: sliderMaxZoom, recommended: 1}
}

func (c *CloseUp) Name() string { return NameCloseUp }

// Setup computes the region of interest from the active format, then
// applies the recommended zoom, capped at the slider max. Devices that do
// not report a minimum focus distance keep their zoom.
func (c *CloseUp) Setup(h *session.DeviceHandle) error {
	p := h.Profile()
	f := p.ActiveFormat

	roi, err := geometry.RegionOfInterestForFormat(f.Width, f.Height)
	if err != nil {
		return fmt.Errorf("region of interest: %w", err)
	}
	c.mu.Lock()
	c.roi = roi
	c.mu.Unlock()
	debug.PrintStruct("roi", roi)

	if p.MinimumFocusDistance == -1 {
		debug.Verbose("Close-up: minimum focus distance unknown, zoom unchanged")
		return nil
	}

	distance, err := geometry.MinimumSubjectDistance(f.FieldOfView, c.targetSize, roi.Width)
	if err != nil {
		return fmt.Errorf("subject distance: %w", err)
	}
	zoom := geometry.RecommendedZoomFactor(p.MinimumFocusDistance, distance)
	debug.Value("subject distance (mm)", math.Round(distance*100)/100)
	debug.Value("recommended zoom", zoom)
	if zoom <= 1 {
		return nil
	}

	applied := geometry.ClampZoom(zoom, c.MaxZoom(p))
	c.mu.Lock()
	c.recommended = applied
	c.mu.Unlock()
	debug.Zoom(zoom, applied)
	return h.WithLock("recommended zoom", func(d camera.Device) error {
		return d.SetZoomFactor(applied)
	})
}

// MaxZoom limits the slider to min(device max, slider max).
func (c *CloseUp) MaxZoom(p camera.Profile) float64 {
	return math.Min(p.ActiveFormat.MaxZoomFactor, c.sliderMaxZoom)
}

// RegionOfInterest returns the region computed by the last Setup.
func (c *CloseUp) RegionOfInterest() geometry.RegionOfInterest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roi
}

// RecommendedZoom returns the zoom applied by the last Setup (1 when none).
func (c *CloseUp) RecommendedZoom() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recommended
}
