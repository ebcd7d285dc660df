package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidArgument is returned for inputs outside a calculation's domain.
var ErrInvalidArgument = errors.New("invalid argument")

// MinimumSubjectDistance returns the farthest distance at which a subject of
// minSubjectSize fills fillFraction of the frame width, for a lens with the
// given horizontal field of view. The result uses the unit of minSubjectSize.
//
// The frame width at distance d is 2·d·tan(FOV/2), so
// distance = (size / fill) / (2 × tan(FOV / 2)).
//
// fieldOfViewDeg must be in (0, 180), minSubjectSize > 0 and fillFraction in (0, 1].
func MinimumSubjectDistance(fieldOfViewDeg, minSubjectSize, fillFraction float64) (float64, error) {
	if math.IsNaN(fieldOfViewDeg) || fieldOfViewDeg <= 0 || fieldOfViewDeg >= 180 {
		return 0, fmt.Errorf("%w: field of view must be in (0, 180), got %g", ErrInvalidArgument, fieldOfViewDeg)
	}
	if !finitePositive(minSubjectSize) {
		return 0, fmt.Errorf("%w: subject size must be > 0, got %g", ErrInvalidArgument, minSubjectSize)
	}
	if math.IsNaN(fillFraction) || fillFraction <= 0 || fillFraction > 1 {
		return 0, fmt.Errorf("%w: fill fraction must be in (0, 1], got %g", ErrInvalidArgument, fillFraction)
	}

	filledSize := minSubjectSize / fillFraction
	return filledSize / (2 * math.Tan(degreesToRadians(fieldOfViewDeg/2))), nil
}

// RecommendedZoomFactor returns the zoom factor that lets the subject be
// framed from the device's minimum focus distance. When the subject can
// already be framed from farther than the minimum focus distance, no zoom
// is needed and 1.0 is returned.
func RecommendedZoomFactor(minFocusDistance, subjectDistance float64) float64 {
	if !finitePositive(minFocusDistance) || !finitePositive(subjectDistance) {
		return 1.0
	}
	if subjectDistance < minFocusDistance {
		return minFocusDistance / subjectDistance
	}
	return 1.0
}

// ClampZoom clamps factor into [1.0, max]. A max below 1 is treated as 1.
func ClampZoom(factor, max float64) float64 {
	if math.IsNaN(max) || max < 1 {
		max = 1
	}
	if math.IsNaN(factor) || factor < 1 {
		return 1
	}
	if factor > max {
		return max
	}
	return factor
}
