package geometry

import "fmt"

// RegionOfInterest is a normalized rectangle centered in the frame.
// Width and Height are fractions of the frame, both in (0, 1].
type RegionOfInterest struct {
	Width  float64
	Height float64
}

// RegionOfInterestForFormat returns a square region of interest spanning the
// full frame height of a landscape format: Width = height/width, Height = 1.
func RegionOfInterestForFormat(widthPx, heightPx int) (RegionOfInterest, error) {
	if widthPx <= 0 || heightPx <= 0 {
		return RegionOfInterest{}, fmt.Errorf("%w: format %dx%d", ErrInvalidArgument, widthPx, heightPx)
	}
	if heightPx > widthPx {
		return RegionOfInterest{}, fmt.Errorf("%w: portrait format %dx%d", ErrInvalidArgument, widthPx, heightPx)
	}
	return RegionOfInterest{
		Width:  float64(heightPx) / float64(widthPx),
		Height: 1.0,
	}, nil
}
