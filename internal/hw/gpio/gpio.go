package gpio

import (
	"sync"
	"time"

	"github.com/cjeanneret/CloseUpCam/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver is the GPIO surface used by the camera rig: the remote
// FOCUS/SHUTTER lines and the zoom ring stepper.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// NewDriver returns a MockDriver when mock is true (development on a PC),
// otherwise the go-rpio driver for a Raspberry Pi.
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return NewMockDriver(), nil
	}
	return NewRPiRealDriver()
}

// Pulse drives pin to active, holds it for d, then drives it back to the
// opposite level. The line is released even when the hold is interrupted
// by a write error on the way in.
func Pulse(d Driver, pin int, active Level, hold time.Duration) error {
	if err := d.WritePin(pin, active); err != nil {
		_ = d.WritePin(pin, !active)
		return err
	}
	time.Sleep(hold)
	return d.WritePin(pin, !active)
}

// MockDriver keeps pin levels in memory so the rig can run off-device.
type MockDriver struct {
	mu     sync.Mutex
	levels map[int]Level
	writes int
}

// NewMockDriver creates an in-memory driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{levels: make(map[int]Level)}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.mu.Lock()
	m.levels[pin] = level
	m.writes++
	m.mu.Unlock()
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin], nil
}

// Writes returns the number of WritePin calls so far.
func (m *MockDriver) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
