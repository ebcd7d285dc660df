package camera

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/cjeanneret/CloseUpCam/internal/debug"
	"github.com/google/uuid"
)

// ErrNoInputs is returned when starting a session without an attached input.
var ErrNoInputs = errors.New("session has no inputs")

// Session connects inputs to outputs. Changes made between
// BeginConfiguration and CommitConfiguration become visible atomically.
type Session interface {
	ID() string

	BeginConfiguration()
	CommitConfiguration()

	CanSetPreset(p Preset) bool
	SetPreset(p Preset)
	Preset() Preset

	CanAddInput(in *Input) bool
	AddInput(in *Input)
	Inputs() []*Input

	CanAddOutput(out Output) bool
	AddOutput(out Output)
	Outputs() []Output

	StartRunning() error
	StopRunning()
	IsRunning() bool
}

type sessionState struct {
	preset  Preset
	inputs  []*Input
	outputs []Output
}

func (s sessionState) clone() sessionState {
	return sessionState{
		preset:  s.preset,
		inputs:  append([]*Input(nil), s.inputs...),
		outputs: append([]Output(nil), s.outputs...),
	}
}

// MemorySession is a Session holding one input. Preset, Inputs, Outputs and
// IsRunning are safe from any goroutine and always see the last committed
// state. The Can*/Add*/SetPreset methods belong to a single configuring
// goroutine: inside a transaction they act on its staged state, outside
// one each call commits immediately.
type MemorySession struct {
	id        string
	supported map[Preset]bool

	tx     sync.Mutex // held from BeginConfiguration to CommitConfiguration
	inTx   atomic.Bool
	smu    sync.Mutex // guards staged
	staged sessionState

	mu        sync.RWMutex
	committed sessionState
	running   bool
}

// NewMemorySession creates a session supporting the given presets
// (all presets when none are given).
func NewMemorySession(presets ...Preset) *MemorySession {
	if len(presets) == 0 {
		presets = PresetsByFidelity
	}
	supported := make(map[Preset]bool, len(presets))
	for _, p := range presets {
		supported[p] = true
	}
	return &MemorySession{
		id:        uuid.NewString(),
		supported: supported,
	}
}

func (s *MemorySession) ID() string { return s.id }

func (s *MemorySession) BeginConfiguration() {
	s.tx.Lock()
	s.mu.RLock()
	st := s.committed.clone()
	s.mu.RUnlock()
	s.smu.Lock()
	s.staged = st
	s.smu.Unlock()
	s.inTx.Store(true)
	debug.Trace("Session %s: begin configuration", s.id)
}

func (s *MemorySession) CommitConfiguration() {
	if !s.inTx.CompareAndSwap(true, false) {
		return
	}
	s.smu.Lock()
	st := s.staged
	s.staged = sessionState{}
	s.smu.Unlock()
	s.mu.Lock()
	s.committed = st
	s.mu.Unlock()
	s.tx.Unlock()
	debug.Trace("Session %s: commit configuration", s.id)
}

// mutate applies fn to the staged state, or to the committed state in its
// own transaction when none is open.
func (s *MemorySession) mutate(fn func(st *sessionState)) {
	if s.inTx.Load() {
		s.smu.Lock()
		fn(&s.staged)
		s.smu.Unlock()
		return
	}
	s.BeginConfiguration()
	s.smu.Lock()
	fn(&s.staged)
	s.smu.Unlock()
	s.CommitConfiguration()
}

// view returns the state seen by the transaction owner or, outside a
// transaction, the committed state.
func (s *MemorySession) view() sessionState {
	if s.inTx.Load() {
		s.smu.Lock()
		defer s.smu.Unlock()
		return s.staged.clone()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed
}

func (s *MemorySession) CanSetPreset(p Preset) bool {
	return s.supported[p]
}

func (s *MemorySession) SetPreset(p Preset) {
	if !s.CanSetPreset(p) {
		return
	}
	s.mutate(func(st *sessionState) { st.preset = p })
}

func (s *MemorySession) Preset() Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed.preset
}

// CanAddInput accepts a single input whose device supports the session preset.
func (s *MemorySession) CanAddInput(in *Input) bool {
	if in == nil {
		return false
	}
	st := s.view()
	if len(st.inputs) > 0 {
		return false
	}
	if st.preset != "" && len(in.Device().Profile().Presets) > 0 && !in.Device().Profile().SupportsPreset(st.preset) {
		return false
	}
	return true
}

func (s *MemorySession) AddInput(in *Input) {
	if !s.CanAddInput(in) {
		return
	}
	s.mutate(func(st *sessionState) { st.inputs = append(st.inputs, in) })
}

func (s *MemorySession) Inputs() []*Input {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Input(nil), s.committed.inputs...)
}

// CanAddOutput accepts each output once.
func (s *MemorySession) CanAddOutput(out Output) bool {
	if out == nil {
		return false
	}
	for _, o := range s.view().outputs {
		if o == out {
			return false
		}
	}
	return true
}

func (s *MemorySession) AddOutput(out Output) {
	if !s.CanAddOutput(out) {
		return
	}
	s.mutate(func(st *sessionState) { st.outputs = append(st.outputs, out) })
}

func (s *MemorySession) Outputs() []Output {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Output(nil), s.committed.outputs...)
}

func (s *MemorySession) StartRunning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.committed.inputs) == 0 {
		return ErrNoInputs
	}
	s.running = true
	debug.Verbose("Session %s: running", s.id)
	return nil
}

func (s *MemorySession) StopRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	debug.Verbose("Session %s: stopped", s.id)
}

func (s *MemorySession) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
