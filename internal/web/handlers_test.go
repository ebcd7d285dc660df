package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/CloseUpCam/internal/hw/camera"
	"github.com/cjeanneret/CloseUpCam/internal/logic/session"
)

// fakeCamera records calls and answers with fixed results.
type fakeCamera struct {
	state   session.State
	reason  session.StallReason
	zoom    session.ZoomInfo
	hasZoom bool
	err     error
	photo   *camera.Photo

	zoomCalls  []float64
	focusCalls []camera.Point
	appears    int
	disappears int
}

func done(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	return ch
}

func (f *fakeCamera) Appear() <-chan error    { f.appears++; return done(f.err) }
func (f *fakeCamera) Disappear() <-chan error { f.disappears++; return done(f.err) }

func (f *fakeCamera) SetZoom(factor float64) <-chan error {
	f.zoomCalls = append(f.zoomCalls, factor)
	return done(f.err)
}

func (f *fakeCamera) ChangeFocusPoint(p camera.Point) <-chan error {
	f.focusCalls = append(f.focusCalls, p)
	return done(f.err)
}

func (f *fakeCamera) CapturePhoto(ctx context.Context) (*camera.Photo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.photo, nil
}

func (f *fakeCamera) State() (session.State, session.StallReason) { return f.state, f.reason }
func (f *fakeCamera) Zoom() (session.ZoomInfo, bool)              { return f.zoom, f.hasZoom }

func newTestRouter(cam Camera) (http.Handler, *StatusBroadcaster) {
	b := NewStatusBroadcaster()
	return NewServer(":0", b, cam, "close_up").Router(), b
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ---------- POST /zoom ----------

func TestHandleZoom_Valid(t *testing.T) {
	cam := &fakeCamera{state: session.StateRunning, hasZoom: true, zoom: session.ZoomInfo{Min: 1, Max: 8, Current: 2.5}}
	r, _ := newTestRouter(cam)

	rec := do(t, r, http.MethodPost, "/zoom", `{"factor": 2.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if len(cam.zoomCalls) != 1 || cam.zoomCalls[0] != 2.5 {
		t.Errorf("zoom calls = %v, want [2.5]", cam.zoomCalls)
	}
	var resp StateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.State != "running" || resp.Zoom == nil || resp.Zoom.Current != 2.5 {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandleZoom_Invalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not_json", "factor=2"},
		{"zero", `{"factor": 0}`},
		{"negative", `{"factor": -3}`},
		{"missing", `{}`},
		{"string", `{"factor": "2"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cam := &fakeCamera{}
			r, _ := newTestRouter(cam)
			if rec := do(t, r, http.MethodPost, "/zoom", tc.body); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if len(cam.zoomCalls) != 0 {
				t.Error("controller called for invalid request")
			}
		})
	}
}

func TestHandleZoom_LockFailureIsConflict(t *testing.T) {
	cam := &fakeCamera{err: fmt.Errorf("set zoom: %w", session.ErrLockAcquisitionFailed)}
	r, _ := newTestRouter(cam)
	if rec := do(t, r, http.MethodPost, "/zoom", `{"factor": 2}`); rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestHandleZoom_MethodNotAllowed(t *testing.T) {
	r, _ := newTestRouter(&fakeCamera{})
	if rec := do(t, r, http.MethodGet, "/zoom", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

// ---------- POST /focus ----------

func TestHandleFocus(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"center", `{"x": 0.5, "y": 0.5}`, http.StatusOK},
		{"corner", `{"x": 0, "y": 1}`, http.StatusOK},
		{"x_above_one", `{"x": 1.2, "y": 0.5}`, http.StatusBadRequest},
		{"y_negative", `{"x": 0.5, "y": -0.1}`, http.StatusBadRequest},
		{"bad_json", `{"x":`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cam := &fakeCamera{state: session.StateRunning}
			r, _ := newTestRouter(cam)
			rec := do(t, r, http.MethodPost, "/focus", tc.body)
			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.wantCode, rec.Body)
			}
			if tc.wantCode == http.StatusOK && len(cam.focusCalls) != 1 {
				t.Errorf("focus calls = %v, want one", cam.focusCalls)
			}
		})
	}
}

// ---------- POST /appear, /disappear, GET /state ----------

func TestHandleAppearDisappear(t *testing.T) {
	cam := &fakeCamera{state: session.StateRunning}
	r, _ := newTestRouter(cam)

	if rec := do(t, r, http.MethodPost, "/appear", ""); rec.Code != http.StatusOK {
		t.Errorf("appear status = %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/disappear", ""); rec.Code != http.StatusOK {
		t.Errorf("disappear status = %d", rec.Code)
	}
	if cam.appears != 1 || cam.disappears != 1 {
		t.Errorf("appears=%d disappears=%d, want 1 each", cam.appears, cam.disappears)
	}
}

func TestHandleState_Stalled(t *testing.T) {
	cam := &fakeCamera{state: session.StateStalled, reason: session.StallNotAuthorized}
	r, _ := newTestRouter(cam)

	rec := do(t, r, http.MethodGet, "/state", "")
	var resp StateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.State != "stalled" || resp.Reason != "not_authorized" || resp.Message != "camera permission denied" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Zoom != nil {
		t.Error("zoom should be omitted before configuration")
	}
}

// ---------- GET /config ----------

func TestHandleConfig(t *testing.T) {
	cam := &fakeCamera{hasZoom: true, zoom: session.ZoomInfo{Min: 1, Max: 8, Current: 1.7}}
	r, _ := newTestRouter(cam)

	rec := do(t, r, http.MethodGet, "/config", "")
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var resp ConfigResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Variant != "close_up" || resp.Zoom == nil || resp.Zoom.Max != 8 || resp.Zoom.Current != 1.7 {
		t.Errorf("response = %+v", resp)
	}
}

// ---------- POST /capture, GET /photos/{id} ----------

func TestHandleCapture(t *testing.T) {
	photo := &camera.Photo{ID: "abc", Format: "jpeg", Width: 4, Height: 3, Data: []byte{0xff, 0xd8, 0xff}}
	cam := &fakeCamera{state: session.StateRunning, photo: photo}
	r, b := newTestRouter(cam)
	events, unsub := b.Subscribe()
	defer unsub()

	rec := do(t, r, http.MethodPost, "/capture", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var meta camera.Photo
	if err := json.Unmarshal(rec.Body.Bytes(), &meta); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if meta.ID != "abc" || meta.Width != 4 {
		t.Errorf("metadata = %+v", meta)
	}

	select {
	case msg := <-events:
		if !strings.Contains(msg, `"photo_id":"abc"`) {
			t.Errorf("event = %s, want photo event", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no photo event")
	}

	rec = do(t, r, http.MethodGet, "/photos/abc", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Fatalf("photo status = %d, type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.Equal(rec.Body.Bytes(), photo.Data) {
		t.Error("photo body mismatch")
	}

	if rec := do(t, r, http.MethodGet, "/photos/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing photo status = %d, want 404", rec.Code)
	}
}

func TestHandleCapture_AcceptJPEG(t *testing.T) {
	photo := &camera.Photo{ID: "j", Format: "jpeg", Data: []byte{1, 2, 3}}
	r, _ := newTestRouter(&fakeCamera{photo: photo})

	req := httptest.NewRequest(http.MethodPost, "/capture", nil)
	req.Header.Set("Accept", "image/jpeg")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Type") != "image/jpeg" || rec.Header().Get("X-Photo-Id") != "j" {
		t.Errorf("headers = %v", rec.Header())
	}
	if !bytes.Equal(rec.Body.Bytes(), photo.Data) {
		t.Error("body mismatch")
	}
}

func TestHandleCapture_NotRunning(t *testing.T) {
	r, _ := newTestRouter(&fakeCamera{err: session.ErrNotRunning})
	if rec := do(t, r, http.MethodPost, "/capture", ""); rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

// ---------- POST /bracket ----------

func TestHandleBracket_Invalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not_json", "shots=3"},
		{"no_shots", `{}`},
		{"too_many_shots", `{"shots": 10}`},
		{"negative_factor", `{"factors": [1, -2]}`},
		{"too_many_factors", `{"factors": [1,1,1,1,1,1,1,1,1,1]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cam := &fakeCamera{hasZoom: true, zoom: session.ZoomInfo{Min: 1, Max: 8, Current: 1}}
			r, _ := newTestRouter(cam)
			if rec := do(t, r, http.MethodPost, "/bracket", tc.body); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if len(cam.zoomCalls) != 0 {
				t.Error("controller called for invalid request")
			}
		})
	}
}

func TestHandleBracket_NotConfigured(t *testing.T) {
	r, _ := newTestRouter(&fakeCamera{})
	if rec := do(t, r, http.MethodPost, "/bracket", `{"shots": 3}`); rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestHandleBracket_AlreadyRunning(t *testing.T) {
	cam := &fakeCamera{hasZoom: true, zoom: session.ZoomInfo{Min: 1, Max: 8, Current: 1}}
	h := NewHandlers(NewStatusBroadcaster(), cam, "close_up")
	h.running = true

	rec := httptest.NewRecorder()
	h.HandleBracket(rec, httptest.NewRequest(http.MethodPost, "/bracket", strings.NewReader(`{"shots": 2}`)))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if len(cam.zoomCalls) != 0 {
		t.Error("second bracket started")
	}
}

func TestHandleBracket_StopsWithServerContext(t *testing.T) {
	cam := &fakeCamera{hasZoom: true, zoom: session.ZoomInfo{Min: 1, Max: 8, Current: 3}, photo: &camera.Photo{ID: "p"}}
	b := NewStatusBroadcaster()
	h := NewHandlers(b, cam, "close_up")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.ctx = ctx
	events, unsub := b.Subscribe()
	defer unsub()

	rec := httptest.NewRecorder()
	h.HandleBracket(rec, httptest.NewRequest(http.MethodPost, "/bracket", strings.NewReader(`{"factors": [1, 2]}`)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	select {
	case msg := <-events:
		if !strings.Contains(msg, "Bracket failed") || !strings.Contains(msg, context.Canceled.Error()) {
			t.Errorf("event = %s, want cancelled bracket", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no bracket event")
	}
	// Only the restore of the starting zoom; no shot was taken.
	if len(cam.zoomCalls) != 1 || cam.zoomCalls[0] != 3 {
		t.Errorf("zoom calls = %v, want [3]", cam.zoomCalls)
	}
}

// ---------- GET /status/stream ----------

func TestHandleStatusStream(t *testing.T) {
	r, b := newTestRouter(&fakeCamera{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/status/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	sc := bufio.NewScanner(resp.Body)
	if !sc.Scan() || sc.Text() != ": connected" {
		t.Fatalf("first line = %q", sc.Text())
	}

	BroadcastObserver{B: b}.OnRunningChanged(true)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var evt StatusEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if evt.Type != EventRunning {
			t.Errorf("type = %q, want running", evt.Type)
		}
		return
	}
	t.Fatal("stream ended without event")
}

// ---------- end to end with the session controller ----------

var _ Camera = (*session.Controller)(nil)

func TestRouter_WithController(t *testing.T) {
	p := camera.Profile{
		ID:                            "sim",
		Name:                          "Simulated",
		Position:                      camera.PositionBack,
		MinimumFocusDistance:          -1,
		ActiveFormat:                  camera.Format{Width: 64, Height: 48, FieldOfView: 60, MaxZoomFactor: 4},
		FocusPointOfInterestSupported: true,
	}
	dev := camera.NewSimulatedDevice(p)
	b := NewStatusBroadcaster()
	ctrl := session.NewController(session.Options{
		Session:    camera.NewMemorySession(),
		Picker:     camera.PickFirst(camera.PositionBack, dev),
		Output:     camera.NewSimulatedPhotoOutput(80),
		Authorizer: camera.NewStaticAuthorizer(camera.AuthorizationAuthorized, true),
		Observer:   BroadcastObserver{B: b},
	})
	defer ctrl.Close()
	if err := ctrl.Load(); err != nil {
		t.Fatal(err)
	}
	r := NewServer(":0", b, ctrl, "tap_focus").Router()

	if rec := do(t, r, http.MethodPost, "/appear", ""); rec.Code != http.StatusOK {
		t.Fatalf("appear = %d %s", rec.Code, rec.Body)
	}
	if rec := do(t, r, http.MethodPost, "/zoom", `{"factor": 9}`); rec.Code != http.StatusOK {
		t.Fatalf("zoom = %d %s", rec.Code, rec.Body)
	}
	if got := dev.ZoomFactor(); got != 4 {
		t.Errorf("zoom = %v, want clamped 4", got)
	}
	if rec := do(t, r, http.MethodPost, "/focus", `{"x": 0.2, "y": 0.8}`); rec.Code != http.StatusOK {
		t.Fatalf("focus = %d %s", rec.Code, rec.Body)
	}
	if got := dev.FocusPointOfInterest(); got != (camera.Point{X: 0.2, Y: 0.8}) {
		t.Errorf("focus point = %+v", got)
	}

	req := httptest.NewRequest(http.MethodPost, "/capture", nil)
	req.Header.Set("Accept", "image/jpeg")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Fatalf("capture = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}

	if rec := do(t, r, http.MethodPost, "/disappear", ""); rec.Code != http.StatusOK {
		t.Fatalf("disappear = %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/capture", ""); rec.Code != http.StatusConflict {
		t.Errorf("capture while stopped = %d, want 409", rec.Code)
	}
}

func TestBracket_WithController(t *testing.T) {
	dev := camera.NewSimulatedDevice(camera.Profile{
		ID:                   "sim",
		Name:                 "Simulated",
		Position:             camera.PositionBack,
		MinimumFocusDistance: -1,
		ActiveFormat:         camera.Format{Width: 64, Height: 48, FieldOfView: 60, MaxZoomFactor: 4},
	})
	b := NewStatusBroadcaster()
	ctrl := session.NewController(session.Options{
		Session: camera.NewMemorySession(),
		Picker:  camera.PickFirst(camera.PositionBack, dev),
		Output:  camera.NewSimulatedPhotoOutput(80),
	})
	defer ctrl.Close()
	if err := ctrl.Load(); err != nil {
		t.Fatal(err)
	}
	srv := NewServer(":0", b, ctrl, "close_up")
	srv.SetBracketDelays(time.Microsecond, time.Microsecond)
	r := srv.Router()

	if rec := do(t, r, http.MethodPost, "/appear", ""); rec.Code != http.StatusOK {
		t.Fatalf("appear = %d %s", rec.Code, rec.Body)
	}

	ch, unsub := b.Subscribe()
	defer unsub()
	if rec := do(t, r, http.MethodPost, "/bracket", `{"shots": 3}`); rec.Code != http.StatusAccepted {
		t.Fatalf("bracket = %d %s", rec.Code, rec.Body)
	}

	var ids []string
	for {
		evt := receive(t, ch)
		if evt.Type == EventPhoto {
			ids = append(ids, evt.PhotoID)
			continue
		}
		if evt.Msg == "Bracket complete" {
			break
		}
		if evt.Level == "error" {
			t.Fatalf("bracket failed: %s", evt.Msg)
		}
	}
	if len(ids) != 3 {
		t.Fatalf("photo events = %d, want 3", len(ids))
	}
	for _, id := range ids {
		if rec := do(t, r, http.MethodGet, "/photos/"+id, ""); rec.Code != http.StatusOK {
			t.Errorf("GET /photos/%s = %d", id, rec.Code)
		}
	}
	ctrl.Flush()
	if got := dev.ZoomFactor(); got != 1 {
		t.Errorf("zoom after bracket = %v, want 1", got)
	}
}
