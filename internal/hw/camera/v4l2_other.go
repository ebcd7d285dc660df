//go:build !linux

package camera

// NewV4L2Device is only available on linux; elsewhere it returns a
// simulated device with the same profile.
func NewV4L2Device(path string, p Profile) *SimulatedDevice {
	return NewSimulatedDevice(p)
}
