package camera

import (
	"sync"
	"sync/atomic"

	"github.com/cjeanneret/CloseUpCam/internal/debug"
)

// configLock is the exclusive configuration lock shared by device backends.
// Lock never blocks: a held lock is reported as ErrLockUnavailable.
type configLock struct {
	id     string
	mu     sync.Mutex
	held   atomic.Bool
	refuse atomic.Bool
}

func (l *configLock) lock() error {
	if l.refuse.Load() || !l.mu.TryLock() {
		debug.Lock("lock refused", l.id)
		return ErrLockUnavailable
	}
	l.held.Store(true)
	debug.Lock("locked", l.id)
	return nil
}

func (l *configLock) unlock() {
	if !l.held.CompareAndSwap(true, false) {
		return
	}
	debug.Lock("unlocked", l.id)
	l.mu.Unlock()
}

func (l *configLock) isHeld() bool {
	return l.held.Load()
}
