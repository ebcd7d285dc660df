package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/CloseUpCam/internal/logic/session"
)

// Event types carried on the status stream.
const (
	EventLog     = "log"
	EventStalled = "stalled"
	EventRunning = "running"
	EventPhoto   = "photo"
)

// StatusEvent is one message on the SSE status stream.
type StatusEvent struct {
	Time    string `json:"t"`
	Type    string `json:"type"`
	Level   string `json:"l,omitempty"`
	Msg     string `json:"msg"`
	Reason  string `json:"reason,omitempty"`
	Running *bool  `json:"running,omitempty"`
	PhotoID string `json:"photo_id,omitempty"`
}

// StatusBroadcaster distributes status messages to multiple SSE clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

// NewStatusBroadcaster creates a new broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast messages and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Publish sends evt to all subscribed clients. Slow clients may miss
// messages (non-blocking, buffered).
func (b *StatusBroadcaster) Publish(evt StatusEvent) {
	if evt.Time == "" {
		evt.Time = time.Now().Format(time.RFC3339)
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// Broadcast sends a log line: {"t":"...","type":"log","l":"info","msg":"..."}
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.Publish(StatusEvent{Type: EventLog, Level: level, Msg: msg})
}

// BroadcastMsg is a convenience for level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

// BroadcastWriter implements io.Writer; each Write broadcasts the content to SSE clients.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

// broadcastWriter wraps StatusBroadcaster as io.Writer for use with debug.SetOutput.
type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		if msg := strings.TrimSpace(line); msg != "" {
			w.b.BroadcastMsg(msg)
		}
	}
	return len(p), nil
}

// BroadcastObserver forwards lifecycle notifications to the status stream
// so the UI can show alerts and enable controls.
type BroadcastObserver struct {
	B *StatusBroadcaster
}

func (o BroadcastObserver) OnStalled(reason session.StallReason, err error) {
	evt := StatusEvent{Type: EventStalled, Level: "error", Reason: reason.String(), Msg: reason.Message()}
	if err != nil && reason != session.StallNotAuthorized {
		evt.Msg += ": " + err.Error()
	}
	o.B.Publish(evt)
}

func (o BroadcastObserver) OnRunningChanged(running bool) {
	msg := "preview stopped"
	if running {
		msg = "preview running"
	}
	o.B.Publish(StatusEvent{Type: EventRunning, Level: "info", Msg: msg, Running: &running})
}
