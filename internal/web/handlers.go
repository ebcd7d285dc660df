package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/CloseUpCam/internal/debug"
	"github.com/cjeanneret/CloseUpCam/internal/hw/camera"
	"github.com/cjeanneret/CloseUpCam/internal/logic/capture"
	"github.com/cjeanneret/CloseUpCam/internal/logic/session"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	recentPhotos    = 16 // captured photos kept downloadable
	maxBracketShots = 9
)

// Camera is the session controller surface used by the handlers.
type Camera interface {
	Appear() <-chan error
	Disappear() <-chan error
	SetZoom(factor float64) <-chan error
	ChangeFocusPoint(p camera.Point) <-chan error
	CapturePhoto(ctx context.Context) (*camera.Photo, error)
	State() (session.State, session.StallReason)
	Zoom() (session.ZoomInfo, bool)
}

// ZoomRequest is the body of POST /zoom.
type ZoomRequest struct {
	Factor float64 `json:"factor"`
}

// StateResponse is returned by GET /state and the control endpoints.
type StateResponse struct {
	State   string            `json:"state"`
	Reason  string            `json:"reason,omitempty"`
	Message string            `json:"message,omitempty"`
	Zoom    *session.ZoomInfo `json:"zoom,omitempty"`
}

// BracketRequest is the body of POST /bracket: either explicit zoom
// factors or a shot count spread over the slider range.
type BracketRequest struct {
	Shots   int       `json:"shots,omitempty"`
	Factors []float64 `json:"factors,omitempty"`
}

// ConfigResponse carries what the UI needs to set up its controls.
type ConfigResponse struct {
	Variant string            `json:"variant"`
	Zoom    *session.ZoomInfo `json:"zoom,omitempty"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Camera      Camera
	Variant     string

	// Delays between bracket shots; Factors is ignored.
	Bracket capture.BracketParams

	// ctx bounds background work such as brackets; Server.Run sets it.
	ctx       context.Context
	photos    *lru.Cache[string, *camera.Photo]
	runningMu sync.Mutex
	running   bool
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(broadcaster *StatusBroadcaster, cam Camera, variant string) *Handlers {
	photos, err := lru.New[string, *camera.Photo](recentPhotos)
	if err != nil {
		panic(err) // only fails for a non-positive size
	}
	return &Handlers{
		Broadcaster: broadcaster,
		Camera:      cam,
		Variant:     variant,
		ctx:         context.Background(),
		photos:      photos,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handlers) stateResponse() StateResponse {
	state, reason := h.Camera.State()
	resp := StateResponse{State: state.String()}
	if state == session.StateStalled {
		resp.Reason = reason.String()
		resp.Message = reason.Message()
	}
	if z, ok := h.Camera.Zoom(); ok {
		resp.Zoom = &z
	}
	return resp
}

// await waits for a queued controller operation and writes the outcome.
func (h *Handlers) await(w http.ResponseWriter, r *http.Request, done <-chan error) {
	select {
	case err := <-done:
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.stateResponse())
	case <-r.Context().Done():
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrLockAcquisitionFailed):
		status = http.StatusConflict
	case errors.Is(err, session.ErrNotRunning), errors.Is(err, session.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	debug.Error(err)
	http.Error(w, err.Error(), status)
}

// HandleAppear handles POST /appear (preview shown).
func (h *Handlers) HandleAppear(w http.ResponseWriter, r *http.Request) {
	h.await(w, r, h.Camera.Appear())
}

// HandleDisappear handles POST /disappear (preview hidden).
func (h *Handlers) HandleDisappear(w http.ResponseWriter, r *http.Request) {
	h.await(w, r, h.Camera.Disappear())
}

// HandleZoom handles POST /zoom with {"factor": f}.
func (h *Handlers) HandleZoom(w http.ResponseWriter, r *http.Request) {
	var req ZoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if math.IsNaN(req.Factor) || math.IsInf(req.Factor, 0) || req.Factor <= 0 {
		http.Error(w, "factor must be a positive number", http.StatusBadRequest)
		return
	}
	h.await(w, r, h.Camera.SetZoom(req.Factor))
}

// HandleFocus handles POST /focus with {"x": x, "y": y} in [0, 1].
func (h *Handlers) HandleFocus(w http.ResponseWriter, r *http.Request) {
	var p camera.Point
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
		http.Error(w, "x and y must be between 0 and 1", http.StatusBadRequest)
		return
	}
	h.await(w, r, h.Camera.ChangeFocusPoint(p))
}

// HandleCapture handles POST /capture. The JPEG is returned directly when
// the client accepts image/jpeg, otherwise the photo metadata is returned.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	photo, err := h.Camera.CapturePhoto(ctx)
	if err != nil {
		h.Broadcaster.Broadcast("error", "Capture failed: "+err.Error())
		writeError(w, err)
		return
	}
	h.photos.Add(photo.ID, photo)
	h.Broadcaster.Publish(StatusEvent{Type: EventPhoto, Level: "info", Msg: "photo captured", PhotoID: photo.ID})

	if photo.Format == "jpeg" && strings.Contains(r.Header.Get("Accept"), "image/jpeg") {
		writePhoto(w, photo)
		return
	}
	writeJSON(w, http.StatusOK, photo)
}

// HandleBracket handles POST /bracket. The bracket runs in the
// background; each photo is announced on the status stream.
func (h *Handlers) HandleBracket(w http.ResponseWriter, r *http.Request) {
	var req BracketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	factors, err := h.bracketFactors(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if factors == nil {
		http.Error(w, "camera not configured", http.StatusConflict)
		return
	}

	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		http.Error(w, "bracket already in progress", http.StatusConflict)
		return
	}
	h.running = true
	h.runningMu.Unlock()

	params := h.Bracket
	params.Factors = factors
	ctx := h.ctx
	go func() {
		defer func() {
			h.runningMu.Lock()
			h.running = false
			h.runningMu.Unlock()
		}()

		photos, err := capture.NewSequence(h.Camera).RunBracket(ctx, params)
		for _, p := range photos {
			h.photos.Add(p.ID, p)
			h.Broadcaster.Publish(StatusEvent{Type: EventPhoto, Level: "info", Msg: "photo captured", PhotoID: p.ID})
		}
		if err != nil {
			h.Broadcaster.Broadcast("error", "Bracket failed: "+err.Error())
			debug.Error(err)
			return
		}
		h.Broadcaster.Broadcast("info", "Bracket complete")
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "started", "factors": factors})
}

// bracketFactors validates req. A nil result with no error means the
// zoom range is unknown.
func (h *Handlers) bracketFactors(req BracketRequest) ([]float64, error) {
	if len(req.Factors) > 0 {
		if len(req.Factors) > maxBracketShots {
			return nil, fmt.Errorf("at most %d factors", maxBracketShots)
		}
		for _, f := range req.Factors {
			if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
				return nil, fmt.Errorf("factors must be positive numbers")
			}
		}
		if _, ok := h.Camera.Zoom(); !ok {
			return nil, nil
		}
		return req.Factors, nil
	}
	if req.Shots < 1 || req.Shots > maxBracketShots {
		return nil, fmt.Errorf("shots must be between 1 and %d", maxBracketShots)
	}
	z, ok := h.Camera.Zoom()
	if !ok {
		return nil, nil
	}
	return capture.BracketFactors(z, req.Shots), nil
}

// HandlePhoto handles GET /photos/{id} for recently captured photos.
func (h *Handlers) HandlePhoto(w http.ResponseWriter, r *http.Request) {
	photo, ok := h.photos.Get(mux.Vars(r)["id"])
	if !ok || len(photo.Data) == 0 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writePhoto(w, photo)
}

func writePhoto(w http.ResponseWriter, photo *camera.Photo) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("X-Photo-Id", photo.ID)
	w.WriteHeader(http.StatusOK)
	w.Write(photo.Data)
}

// HandleState handles GET /state.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stateResponse())
}

// HandleConfig handles GET /config: variant and zoom slider range.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	resp := ConfigResponse{Variant: h.Variant}
	if z, ok := h.Camera.Zoom(); ok {
		resp.Zoom = &z
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
