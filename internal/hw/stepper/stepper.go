package stepper

import (
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/CloseUpCam/internal/debug"
	"github.com/cjeanneret/CloseUpCam/internal/hw/gpio"
)

// Config holds the hardware configuration for the zoom ring motor.
type Config struct {
	StepPin   int
	DirPin    int
	EnablePin int           // A4988 ENABLE pin (BCM). 0 = not used. Active LOW (LOW=enabled).
	StepDelay time.Duration // delay per half-cycle of STEP pulse. Total step = 2*StepDelay.
	MaxSteps  int           // end stop of the ring, 0 = unbounded
}

// Stepper turns a lens ring through an A4988 driver and tracks the
// ring position in steps from its home (widest) end.
type Stepper struct {
	gpio  gpio.Driver
	cfg   Config
	delay time.Duration

	mu       sync.Mutex
	position int
}

// NewStepper creates a stepper at position 0 (home).
// cfg.StepDelay: if 0, defaults to 1ms.
func NewStepper(g gpio.Driver, cfg Config) *Stepper {
	_ = g.SetupPin(cfg.StepPin, gpio.Output)
	_ = g.SetupPin(cfg.DirPin, gpio.Output)

	delay := cfg.StepDelay
	if delay <= 0 {
		delay = 1 * time.Millisecond
	}

	// A4988 ENABLE: active LOW. Enabled so the ring holds its position.
	if cfg.EnablePin > 0 {
		_ = g.SetupPin(cfg.EnablePin, gpio.Output)
		_ = g.WritePin(cfg.EnablePin, gpio.Low)
	}

	return &Stepper{
		gpio:  g,
		cfg:   cfg,
		delay: delay,
	}
}

// Position returns the current ring position in steps.
func (s *Stepper) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// MoveTo drives the ring to an absolute position. Targets beyond the end
// stops are rejected before any movement.
func (s *Stepper) MoveTo(target int) error {
	if target < 0 || (s.cfg.MaxSteps > 0 && target > s.cfg.MaxSteps) {
		return fmt.Errorf("stepper: target %d outside [0, %d]", target, s.cfg.MaxSteps)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delta := target - s.position
	if delta == 0 {
		return nil
	}

	dirLevel := gpio.High
	direction := "tele"
	steps := delta
	if delta < 0 {
		dirLevel = gpio.Low
		direction = "wide"
		steps = -delta
	}

	debug.Verbose("Stepper: %d -> %d (%d steps %s) on pin %d", s.position, target, steps, direction, s.cfg.StepPin)

	if err := s.gpio.WritePin(s.cfg.DirPin, dirLevel); err != nil {
		return err
	}
	for i := 0; i < steps; i++ {
		if err := s.stepPulse(); err != nil {
			return err
		}
		if delta > 0 {
			s.position++
		} else {
			s.position--
		}
	}
	return nil
}

func (s *Stepper) stepPulse() error {
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.High); err != nil {
		return err
	}
	time.Sleep(s.delay)
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	time.Sleep(s.delay)
	return nil
}

// Enable powers the driver (ENABLE=LOW) so the ring holds its position
// and steps are actually made.
func (s *Stepper) Enable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.Low)
}

// Release turns off the driver (ENABLE=HIGH) so the ring can be turned by hand.
func (s *Stepper) Release() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.High)
}
