package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cjeanneret/CloseUpCam/internal/debug"
	"github.com/gorilla/mux"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
}

// NewServer creates a server for the given address and camera controller.
func NewServer(addr string, broadcaster *StatusBroadcaster, cam Camera, variant string) *Server {
	return &Server{
		addr:     addr,
		handlers: NewHandlers(broadcaster, cam, variant),
	}
}

// SetBracketDelays sets the settle and post-shot delays of POST /bracket.
func (s *Server) SetBracketDelays(settle, postShot time.Duration) {
	s.handlers.Bracket.SettleDelay = settle
	s.handlers.Bracket.PostShotDelay = postShot
}

// Router returns an http.Handler with all routes registered.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/appear", s.handlers.HandleAppear).Methods("POST")
	r.HandleFunc("/disappear", s.handlers.HandleDisappear).Methods("POST")
	r.HandleFunc("/zoom", s.handlers.HandleZoom).Methods("POST")
	r.HandleFunc("/focus", s.handlers.HandleFocus).Methods("POST")
	r.HandleFunc("/capture", s.handlers.HandleCapture).Methods("POST")
	r.HandleFunc("/bracket", s.handlers.HandleBracket).Methods("POST")
	r.HandleFunc("/photos/{id}", s.handlers.HandlePhoto).Methods("GET")
	r.HandleFunc("/state", s.handlers.HandleState).Methods("GET")
	r.HandleFunc("/config", s.handlers.HandleConfig).Methods("GET")
	r.HandleFunc("/status/stream", s.handlers.HandleStatusStream).Methods("GET")

	return r
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
// Brackets started through the server stop when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.handlers.ctx = ctx
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
		// Request contexts end with ctx so open status streams do not hold up Shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		debug.Info("web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
