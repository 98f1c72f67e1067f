// Package server exposes the scene over HTTP: the terrain buffer, shaders,
// anchors, the frame state and the camera preview.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/mingshan/internal/app"
	"github.com/ayusman/mingshan/internal/logging"
	"github.com/ayusman/mingshan/internal/render"
	"github.com/ayusman/mingshan/internal/server/api"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	App       *app.App
	Logger    zerolog.Logger
}

// Server represents the HTTP server for the mingshan scene.
type Server struct {
	config  Config
	log     zerolog.Logger
	mux     *http.ServeMux
	start   time.Time
	control *ControlHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		log:    logging.Component(config.Logger, "server"),
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/shaders/", s.handleShader)

	if a := s.config.App; a != nil {
		anchors := api.NewAnchorHandler(a)
		s.mux.Handle("/api/anchors", anchors)
		s.mux.Handle("/api/anchors/", anchors)

		s.mux.HandleFunc("/api/terrain", s.handleTerrain)
		s.mux.HandleFunc("/api/state", s.handleState)
		s.mux.HandleFunc("/api/gesture", s.handleGesture)
		s.mux.Handle("/api/stream", NewStreamHandler(a, s.log))

		s.control = NewControlHandler(a, s.log)
		s.mux.Handle("/api/control", s.control)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.control != nil {
		response["clients"] = s.control.Clients()
	}
	if a := s.config.App; a != nil {
		snap := a.Snapshot()
		response["session"] = snap.Status
		response["frame"] = snap.Frame
		if sess := a.Session(); sess != nil {
			response["capture"] = sess.Stats()
		}
	}

	api.WriteJSON(w, http.StatusOK, response)
}

// handleTerrain serves the encoded point buffer.
func (s *Server) handleTerrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	buf := s.config.App.TerrainBuffer()
	f := s.config.App.Field()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
	w.Header().Set("X-Terrain-Count", strconv.Itoa(f.Len()))
	w.Header().Set("X-Terrain-Seed", strconv.FormatUint(f.Seed(), 10))
	w.Header().Set("Cache-Control", "no-cache")
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(buf); err != nil {
		s.log.Debug().Err(err).Msg("writing terrain")
	}
}

// handleState serves the latest frame snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	api.WriteJSON(w, http.StatusOK, s.config.App.Snapshot())
}

type gestureRequest struct {
	Enabled bool `json:"enabled"`
}

// handleGesture switches gesture control. POST {"enabled": bool}.
func (s *Server) handleGesture(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		api.WriteJSON(w, http.StatusOK, gestureRequest{Enabled: s.config.App.GestureEnabled()})
	case http.MethodPost:
		var req gestureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.WriteError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		err := s.config.App.SetGestureEnabled(req.Enabled)
		switch {
		case errors.Is(err, app.ErrNoCamera):
			api.WriteError(w, http.StatusConflict, err.Error())
		case err != nil && !errors.Is(err, context.Canceled):
			// The session is in Error; the status says so.
			api.WriteJSON(w, http.StatusServiceUnavailable, s.config.App.Snapshot())
		default:
			api.WriteJSON(w, http.StatusOK, s.config.App.Snapshot())
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleShader serves the embedded GLSL sources.
func (s *Server) handleShader(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/shaders/")
	src, err := render.Shader(name)
	if err != nil {
		api.WriteError(w, http.StatusNotFound, "Shader not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(src)
}

// Run serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
