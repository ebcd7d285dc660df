package camera

import (
	"sync"

	"github.com/cjeanneret/CloseUpCam/internal/debug"
)

// AuthorizationStatus is the user's camera permission.
type AuthorizationStatus int

const (
	AuthorizationNotDetermined AuthorizationStatus = iota
	AuthorizationRestricted
	AuthorizationDenied
	AuthorizationAuthorized
)

func (s AuthorizationStatus) String() string {
	switch s {
	case AuthorizationNotDetermined:
		return "not_determined"
	case AuthorizationRestricted:
		return "restricted"
	case AuthorizationDenied:
		return "denied"
	case AuthorizationAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Authorizer reports and requests camera permission.
// RequestAccess may call done on any goroutine, exactly once.
type Authorizer interface {
	Status() AuthorizationStatus
	RequestAccess(done func(granted bool))
}

// StaticAuthorizer answers from a fixed status. When the status is not
// determined, RequestAccess grants or denies according to the configured
// answer, asynchronously.
type StaticAuthorizer struct {
	mu     sync.Mutex
	status AuthorizationStatus
	answer bool
}

// NewStaticAuthorizer creates an authorizer whose pending request resolves to answer.
func NewStaticAuthorizer(status AuthorizationStatus, answer bool) *StaticAuthorizer {
	return &StaticAuthorizer{status: status, answer: answer}
}

func (a *StaticAuthorizer) Status() AuthorizationStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *StaticAuthorizer) RequestAccess(done func(granted bool)) {
	go func() {
		a.mu.Lock()
		granted := a.status == AuthorizationAuthorized
		if a.status == AuthorizationNotDetermined {
			granted = a.answer
			if granted {
				a.status = AuthorizationAuthorized
			} else {
				a.status = AuthorizationDenied
			}
		}
		a.mu.Unlock()
		debug.Info("Camera access request answered: granted=%v", granted)
		done(granted)
	}()
}
