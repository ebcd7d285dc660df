package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/CloseUpCam/internal/debug"
	"github.com/cjeanneret/CloseUpCam/internal/hw/camera"
	"github.com/cjeanneret/CloseUpCam/internal/logic/session"
)

// ErrNoZoomRange is returned when the camera is not configured yet.
var ErrNoZoomRange = errors.New("zoom range unavailable")

// Camera is the controller surface a sequence drives.
type Camera interface {
	SetZoom(factor float64) <-chan error
	CapturePhoto(ctx context.Context) (*camera.Photo, error)
	Zoom() (session.ZoomInfo, bool)
}

// Sequence contains multi-shot capture logic on top of the session
// controller (zoom brackets for now).
type Sequence struct {
	camera Camera
}

func NewSequence(c Camera) *Sequence {
	return &Sequence{camera: c}
}

// BracketParams defines a zoom bracket.
type BracketParams struct {
	Factors []float64 // zoom factor of each shot, in order

	SettleDelay   time.Duration // delay after zooming, before the shot (stabilization)
	PostShotDelay time.Duration // delay after a shot before the next zoom
}

// BracketFactors spreads shots evenly over the zoom slider range, from
// Min to Max. A single shot uses the current zoom.
func BracketFactors(z session.ZoomInfo, shots int) []float64 {
	switch {
	case shots <= 0:
		return nil
	case shots == 1 || z.Max <= z.Min:
		return []float64{z.Current}
	}
	step := (z.Max - z.Min) / float64(shots-1)
	factors := make([]float64, shots)
	for i := range factors {
		factors[i] = z.Min + step*float64(i)
	}
	factors[shots-1] = z.Max
	return factors
}

// RunBracket zooms to each factor and takes one photo there, then
// restores the zoom the preview had before the bracket. Photos taken
// before a failure are returned along with the error.
func (s *Sequence) RunBracket(ctx context.Context, p BracketParams) ([]*camera.Photo, error) {
	start, ok := s.camera.Zoom()
	if !ok {
		return nil, ErrNoZoomRange
	}
	defer func() {
		if err := <-s.camera.SetZoom(start.Current); err != nil {
			debug.Error(fmt.Errorf("restore zoom: %w", err))
		}
	}()

	debug.Section("Zoom bracket")
	debug.Value("Shots", len(p.Factors))

	photos := make([]*camera.Photo, 0, len(p.Factors))
	for i, f := range p.Factors {
		select {
		case <-ctx.Done():
			return photos, ctx.Err()
		default:
		}

		debug.Live("Shot %d/%d at %.2fx", i+1, len(p.Factors), f)
		if err := <-s.camera.SetZoom(f); err != nil {
			return photos, fmt.Errorf("shot %d: zoom %.2f: %w", i+1, f, err)
		}
		if err := sleepCtx(ctx, p.SettleDelay); err != nil {
			return photos, err
		}

		photo, err := s.camera.CapturePhoto(ctx)
		if err != nil {
			return photos, fmt.Errorf("shot %d: %w", i+1, err)
		}
		photos = append(photos, photo)
		debug.Verbose("  captured %s (%.2fx)", photo.ID, photo.ZoomFactor)

		if i < len(p.Factors)-1 {
			if err := sleepCtx(ctx, p.PostShotDelay); err != nil {
				return photos, err
			}
		}
	}
	return photos, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
