package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/cjeanneret/CloseUpCam/internal/debug"
	"github.com/cjeanneret/CloseUpCam/internal/hw/camera"
	"github.com/cjeanneret/CloseUpCam/internal/logic/geometry"
)

// Observer receives lifecycle notifications on the worker goroutine.
type Observer interface {
	OnStalled(reason StallReason, err error)
	OnRunningChanged(running bool)
}

type nopObserver struct{}

func (nopObserver) OnStalled(StallReason, error) {}
func (nopObserver) OnRunningChanged(bool)        {}

// Options configures a Controller.
type Options struct {
	Session    camera.Session
	Picker     camera.DevicePicker
	Output     camera.Output
	Authorizer camera.Authorizer
	Behavior   Behavior // nil for a plain preview
	Observer   Observer
}

// ZoomInfo describes the zoom slider range and position.
type ZoomInfo struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Current float64 `json:"current"`
}

// Controller owns a capture session: authorization, configuration, and
// start/stop. Every session and device call runs on a single Worker;
// state reads are safe from any goroutine.
type Controller struct {
	opts   Options
	worker *Worker
	conf   *Configurator

	mu         sync.RWMutex
	state      State
	reason     StallReason
	stallErr   error
	denied     bool
	configured bool
	attached   *AttachedSession
}

// NewController creates an idle controller and starts its worker.
func NewController(opts Options) *Controller {
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Controller{
		opts:   opts,
		worker: NewWorker(),
		conf:   NewConfigurator(opts.Behavior),
	}
}

// State returns the lifecycle state and, when stalled, the reason.
func (c *Controller) State() (State, StallReason) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.reason
}

// StallError returns the error behind a stall, if any.
func (c *Controller) StallError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stallErr
}

// ConfigState returns the configurator's state.
func (c *Controller) ConfigState() ConfigState {
	return c.conf.State()
}

func (c *Controller) setState(next State) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()
	if prev != next {
		debug.Transition(prev, next)
	}
}

func (c *Controller) stall(reason StallReason, err error) {
	c.mu.Lock()
	c.reason = reason
	c.stallErr = err
	c.mu.Unlock()
	c.setState(StateStalled)
	c.opts.Observer.OnStalled(reason, err)
}

// Load checks camera authorization and queues session configuration.
// When the user has not decided yet, the worker is suspended until the
// access request is answered.
func (c *Controller) Load() error {
	c.mu.Lock()
	if c.state != StateIdle {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("load from %s: %w", st, ErrInvalidState)
	}
	c.mu.Unlock()
	c.setState(StateAwaitingAuthorization)

	status := camera.AuthorizationAuthorized
	if c.opts.Authorizer != nil {
		status = c.opts.Authorizer.Status()
	}
	debug.Value("authorization", status)

	switch status {
	case camera.AuthorizationAuthorized:
	case camera.AuthorizationNotDetermined:
		c.worker.Suspend()
		c.opts.Authorizer.RequestAccess(func(granted bool) {
			if !granted {
				c.setDenied()
			}
			c.worker.Resume()
		})
	default:
		c.setDenied()
	}

	c.worker.Enqueue(c.configure)
	return nil
}

func (c *Controller) setDenied() {
	c.mu.Lock()
	c.denied = true
	c.mu.Unlock()
}

// configure runs on the worker.
func (c *Controller) configure() {
	c.mu.RLock()
	denied := c.denied
	c.mu.RUnlock()
	if denied {
		c.stall(StallNotAuthorized, ErrNotAuthorized)
		return
	}

	c.setState(StateConfiguring)
	attached, err := c.conf.Configure(c.opts.Session, c.opts.Picker, c.opts.Output)

	c.mu.Lock()
	c.attached = attached
	c.configured = err == nil
	c.mu.Unlock()

	if err != nil {
		c.stall(StallConfigurationFailed, err)
		return
	}
	debug.Info("Session configured (%s)", attached.Handle.Profile().Name)
}

// submit runs fn on the worker; the returned channel yields its result.
func (c *Controller) submit(fn func() error) <-chan error {
	res := make(chan error, 1)
	if !c.worker.Enqueue(func() { res <- fn(); close(res) }) {
		res <- fmt.Errorf("controller closed: %w", ErrInvalidState)
		close(res)
	}
	return res
}

// Appear starts the session if configuration succeeded. A stalled
// controller re-sends its stall notification instead.
func (c *Controller) Appear() <-chan error {
	return c.submit(func() error {
		c.mu.RLock()
		state, reason, stallErr, configured := c.state, c.reason, c.stallErr, c.configured
		c.mu.RUnlock()

		switch {
		case state == StateStalled:
			c.opts.Observer.OnStalled(reason, stallErr)
			return nil
		case state == StateRunning:
			return nil
		case configured && (state == StateConfiguring || state == StateStopped):
			if err := c.opts.Session.StartRunning(); err != nil {
				debug.Error(err)
				return err
			}
			c.setState(StateRunning)
			c.opts.Observer.OnRunningChanged(true)
			return nil
		default:
			debug.Verbose("Appear ignored in state %s", state)
			return nil
		}
	})
}

// Disappear stops a running session.
func (c *Controller) Disappear() <-chan error {
	return c.submit(func() error {
		c.mu.RLock()
		state := c.state
		c.mu.RUnlock()
		if state != StateRunning {
			return nil
		}
		c.opts.Session.StopRunning()
		c.setState(StateStopped)
		c.opts.Observer.OnRunningChanged(false)
		return nil
	})
}

// handle returns the device handle when the session accepts control input.
func (c *Controller) handle() (*DeviceHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.configured || c.attached == nil {
		return nil, false
	}
	if c.state != StateRunning && c.state != StateConfiguring {
		return nil, false
	}
	return c.attached.Handle, true
}

func (c *Controller) maxZoom(p camera.Profile) float64 {
	if l, ok := c.opts.Behavior.(ZoomLimiter); ok {
		return l.MaxZoom(p)
	}
	return p.ActiveFormat.MaxZoomFactor
}

// SetZoom sets the zoom factor, clamped to the allowed range. It does
// nothing unless the session is configured and not stopped or stalled.
func (c *Controller) SetZoom(factor float64) <-chan error {
	return c.submit(func() error {
		h, ok := c.handle()
		if !ok {
			debug.Verbose("SetZoom(%.2f) ignored", factor)
			return nil
		}
		applied := geometry.ClampZoom(factor, c.maxZoom(h.Profile()))
		debug.Zoom(factor, applied)
		return h.WithLock("set zoom", func(d camera.Device) error {
			return d.SetZoomFactor(applied)
		})
	})
}

// ChangeFocusPoint focuses once at p, given in preview coordinates.
// It does nothing unless the session is configured and not stopped or stalled.
func (c *Controller) ChangeFocusPoint(p camera.Point) <-chan error {
	return c.submit(func() error {
		h, ok := c.handle()
		if !ok {
			debug.Verbose("ChangeFocusPoint(%+v) ignored", p)
			return nil
		}
		if m, ok := c.opts.Behavior.(FocusMapper); ok {
			p = m.MapFocusPoint(p)
		}
		debug.Live("Focus at (%.3f, %.3f)", p.X, p.Y)
		return h.WithLock("change focus point", func(d camera.Device) error {
			if d.Profile().FocusPointOfInterestSupported {
				if err := d.SetFocusPointOfInterest(p); err != nil {
					return err
				}
			}
			return d.SetFocusMode(camera.FocusAuto)
		})
	})
}

// CapturePhoto takes a photo through the session output. It waits for
// the result or for ctx; the queued capture itself is not cancelled.
func (c *Controller) CapturePhoto(ctx context.Context) (*camera.Photo, error) {
	type result struct {
		photo *camera.Photo
		err   error
	}
	res := make(chan result, 1)
	if !c.worker.Enqueue(func() {
		c.mu.RLock()
		state, attached := c.state, c.attached
		c.mu.RUnlock()
		if state != StateRunning || attached == nil || attached.Output == nil {
			res <- result{err: ErrNotRunning}
			return
		}
		photo, err := attached.Output.CapturePhoto(ctx, attached.Input.Device())
		res <- result{photo: photo, err: err}
	}) {
		return nil, ErrNotRunning
	}

	select {
	case r := <-res:
		return r.photo, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Zoom returns the slider range and the current zoom factor.
func (c *Controller) Zoom() (ZoomInfo, bool) {
	c.mu.RLock()
	attached := c.attached
	c.mu.RUnlock()
	if attached == nil || attached.Handle == nil {
		return ZoomInfo{}, false
	}
	return ZoomInfo{
		Min:     1,
		Max:     c.maxZoom(attached.Handle.Profile()),
		Current: attached.Handle.ZoomFactor(),
	}, true
}

// Flush waits for every operation queued so far.
func (c *Controller) Flush() {
	c.worker.Flush()
}

// Close stops the session, releases the device, and stops the worker.
func (c *Controller) Close() {
	c.worker.Enqueue(func() {
		c.mu.RLock()
		attached := c.attached
		c.mu.RUnlock()
		if c.opts.Session != nil && c.opts.Session.IsRunning() {
			c.opts.Session.StopRunning()
		}
		if attached != nil && attached.Input != nil {
			_ = attached.Input.Close()
		}
	})
	c.worker.Close()
}
