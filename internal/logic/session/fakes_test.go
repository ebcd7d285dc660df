package session

import (
	"context"
	"errors"
	"sync"

	"github.com/cjeanneret/CloseUpCam/internal/hw/camera"
)

func testProfile() camera.Profile {
	return camera.Profile{
		ID:                   "back-wide",
		Name:                 "Back Camera",
		Position:             camera.PositionBack,
		MinimumFocusDistance: 60,
		ActiveFormat: camera.Format{
			Width:         1920,
			Height:        1080,
			FieldOfView:   40,
			MaxZoomFactor: 10,
		},
		Presets:                       camera.PresetsByFidelity,
		FocusPointOfInterestSupported: true,
	}
}

// recordingSession wraps a MemorySession and records attachment order.
// The reject flags make the session decline inputs or outputs.
type recordingSession struct {
	*camera.MemorySession

	mu           sync.Mutex
	calls        []string
	rejectInput  bool
	rejectOutput bool
	startErr     error
}

func newRecordingSession(presets ...camera.Preset) *recordingSession {
	return &recordingSession{MemorySession: camera.NewMemorySession(presets...)}
}

func (s *recordingSession) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *recordingSession) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *recordingSession) BeginConfiguration() {
	s.record("begin")
	s.MemorySession.BeginConfiguration()
}

func (s *recordingSession) CommitConfiguration() {
	s.record("commit")
	s.MemorySession.CommitConfiguration()
}

func (s *recordingSession) CanAddInput(in *camera.Input) bool {
	return !s.rejectInput && s.MemorySession.CanAddInput(in)
}

func (s *recordingSession) AddInput(in *camera.Input) {
	s.record("add_input")
	s.MemorySession.AddInput(in)
}

func (s *recordingSession) CanAddOutput(out camera.Output) bool {
	return !s.rejectOutput && s.MemorySession.CanAddOutput(out)
}

func (s *recordingSession) AddOutput(out camera.Output) {
	s.record("add_output")
	s.MemorySession.AddOutput(out)
}

func (s *recordingSession) StartRunning() error {
	s.record("start")
	if s.startErr != nil {
		return s.startErr
	}
	return s.MemorySession.StartRunning()
}

func (s *recordingSession) StopRunning() {
	s.record("stop")
	s.MemorySession.StopRunning()
}

// fakeOutput returns a fixed photo.
type fakeOutput struct {
	err error
}

func (o *fakeOutput) Name() string { return "fake" }

func (o *fakeOutput) CapturePhoto(ctx context.Context, dev camera.Device) (*camera.Photo, error) {
	if o.err != nil {
		return nil, o.err
	}
	return &camera.Photo{ID: "photo-1", Format: "jpeg", ZoomFactor: dev.ZoomFactor()}, nil
}

// stubBehavior records Setup calls and can fail them.
type stubBehavior struct {
	setupErr error
	calls    int
}

func (b *stubBehavior) Name() string { return "stub" }

func (b *stubBehavior) Setup(h *DeviceHandle) error {
	b.calls++
	return b.setupErr
}

// limitedBehavior caps zoom and mirrors focus points horizontally.
type limitedBehavior struct {
	stubBehavior
	max float64
}

func (b *limitedBehavior) MaxZoom(p camera.Profile) float64 { return b.max }

func (b *limitedBehavior) MapFocusPoint(p camera.Point) camera.Point {
	return camera.Point{X: 1 - p.X, Y: p.Y}
}

// recordingObserver records notifications.
type recordingObserver struct {
	mu      sync.Mutex
	stalls  []StallReason
	errs    []error
	running []bool
}

func (o *recordingObserver) OnStalled(reason StallReason, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stalls = append(o.stalls, reason)
	o.errs = append(o.errs, err)
}

func (o *recordingObserver) OnRunningChanged(running bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = append(o.running, running)
}

func (o *recordingObserver) Stalls() []StallReason {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]StallReason(nil), o.stalls...)
}

func (o *recordingObserver) Running() []bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]bool(nil), o.running...)
}

// gatedAuthorizer answers RequestAccess only when answer is called.
type gatedAuthorizer struct {
	mu      sync.Mutex
	pending func(bool)
	asked   chan struct{}
}

func newGatedAuthorizer() *gatedAuthorizer {
	return &gatedAuthorizer{asked: make(chan struct{})}
}

func (a *gatedAuthorizer) Status() camera.AuthorizationStatus {
	return camera.AuthorizationNotDetermined
}

func (a *gatedAuthorizer) RequestAccess(done func(bool)) {
	a.mu.Lock()
	a.pending = done
	a.mu.Unlock()
	close(a.asked)
}

func (a *gatedAuthorizer) answer(granted bool) {
	a.mu.Lock()
	done := a.pending
	a.mu.Unlock()
	go done(granted)
}

var errSetup = errors.New("setup failed")
