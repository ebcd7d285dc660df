package geometry

import (
	"fmt"
	"math"
)

// FieldOfView calculates a field of view angle in degrees from a sensor
// dimension and a focal length.
// Formula: FOV = 2 × arctan(sensor_size / (2 × focal_length))
func FieldOfView(sensorSizeMm, focalLengthMm float64) (float64, error) {
	if !finitePositive(sensorSizeMm) || !finitePositive(focalLengthMm) {
		return 0, fmt.Errorf("%w: sensor %.2fmm, focal length %.2fmm", ErrInvalidArgument, sensorSizeMm, focalLengthMm)
	}
	return 2.0 * math.Atan(sensorSizeMm/(2.0*focalLengthMm)) * 180.0 / math.Pi, nil
}

// degreesToRadians converts an angle from degrees to radians.
func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
