package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cjeanneret/CloseUpCam/internal/logic/session"
)

func receive(t *testing.T, ch <-chan string) StatusEvent {
	t.Helper()
	select {
	case msg := <-ch:
		var evt StatusEvent
		if err := json.Unmarshal([]byte(msg), &evt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast")
		return StatusEvent{}
	}
}

func TestBroadcaster_SubscribeAndReceive(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Broadcast("info", "hello")

	evt := receive(t, ch)
	if evt.Msg != "hello" {
		t.Errorf("msg = %q, want \"hello\"", evt.Msg)
	}
	if evt.Level != "info" {
		t.Errorf("level = %q, want \"info\"", evt.Level)
	}
	if evt.Type != EventLog {
		t.Errorf("type = %q, want %q", evt.Type, EventLog)
	}
	if evt.Time == "" {
		t.Error("time should be set")
	}
}

func TestBroadcaster_MultipleSubscribers(t *testing.T) {
	b := NewStatusBroadcaster()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Broadcast("info", "multi")

	for i, ch := range []<-chan string{ch1, ch2} {
		if evt := receive(t, ch); evt.Msg != "multi" {
			t.Errorf("subscriber %d: msg = %q, want \"multi\"", i, evt.Msg)
		}
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	unsub()

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
}

func TestBroadcaster_FullChannelDropsMessage(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < 64; i++ {
		b.Broadcast("info", fmt.Sprintf("fill %d", i))
	}
	done := make(chan struct{})
	go func() {
		b.Broadcast("info", "overflow")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a full client")
	}
	if len(ch) != 64 {
		t.Errorf("buffered = %d, want 64", len(ch))
	}
}

func TestBroadcastWriter_SplitsLines(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	w := BroadcastWriter(b)
	in := []byte("first\n\n  second  \n")
	n, err := w.Write(in)
	if err != nil || n != len(in) {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if evt := receive(t, ch); evt.Msg != "first" {
		t.Errorf("msg = %q, want first", evt.Msg)
	}
	if evt := receive(t, ch); evt.Msg != "second" {
		t.Errorf("msg = %q, want second", evt.Msg)
	}
	if len(ch) != 0 {
		t.Errorf("extra messages: %d", len(ch))
	}
}

func TestBroadcastObserver(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()
	obs := BroadcastObserver{B: b}

	obs.OnStalled(session.StallNotAuthorized, session.ErrNotAuthorized)
	evt := receive(t, ch)
	if evt.Type != EventStalled || evt.Reason != "not_authorized" || evt.Msg != "camera permission denied" {
		t.Errorf("stalled event = %+v", evt)
	}

	obs.OnStalled(session.StallConfigurationFailed, errors.New("no device"))
	evt = receive(t, ch)
	if evt.Msg != "unable to capture media: no device" {
		t.Errorf("msg = %q", evt.Msg)
	}

	obs.OnRunningChanged(true)
	evt = receive(t, ch)
	if evt.Type != EventRunning || evt.Running == nil || !*evt.Running {
		t.Errorf("running event = %+v", evt)
	}
}
