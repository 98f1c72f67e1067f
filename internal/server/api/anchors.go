// Package api provides the JSON handlers of the mingshan HTTP server.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ayusman/mingshan/internal/app"
)

// MarkerSet is the anchor collection the handler serves. It is fixed for
// the life of the process.
type MarkerSet interface {
	Markers() []app.Marker
	Marker(id string) (app.Marker, bool)
}

// AnchorHandler serves the read-only anchor list.
type AnchorHandler struct {
	markers MarkerSet
}

// NewAnchorHandler creates a new AnchorHandler over the given markers.
func NewAnchorHandler(m MarkerSet) *AnchorHandler {
	return &AnchorHandler{markers: m}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *AnchorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/anchors or /api/anchors/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/anchors")
	path = strings.TrimPrefix(path, "/")

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if path == "" {
		h.list(w, r)
		return
	}
	h.get(w, r, path)
}

// Request and response types

type anchorResponse struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Position position `json:"position"`
	Marker   position `json:"marker"`
}

type position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type listAnchorsResponse struct {
	Anchors []anchorResponse `json:"anchors"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toResponse(m app.Marker) anchorResponse {
	return anchorResponse{
		ID:       m.ID,
		Name:     m.Name,
		Label:    m.Label,
		Position: position{m.X, m.Y, m.Z},
		Marker:   position{m.Position.X, m.Position.Y, m.Position.Z},
	}
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorResponse{Error: message})
}

// list handles GET /api/anchors and returns all anchors.
func (h *AnchorHandler) list(w http.ResponseWriter, r *http.Request) {
	markers := h.markers.Markers()
	response := listAnchorsResponse{
		Anchors: make([]anchorResponse, 0, len(markers)),
	}
	for _, m := range markers {
		response.Anchors = append(response.Anchors, toResponse(m))
	}

	WriteJSON(w, http.StatusOK, response)
}

// get handles GET /api/anchors/{id} and returns a single anchor.
func (h *AnchorHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	m, ok := h.markers.Marker(id)
	if !ok {
		WriteError(w, http.StatusNotFound, "Anchor not found")
		return
	}

	WriteJSON(w, http.StatusOK, toResponse(m))
}
