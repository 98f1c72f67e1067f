package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// PreviewSource provides the latest annotated camera frame as JPEG.
type PreviewSource interface {
	Preview() ([]byte, bool)
}

// StreamHandler serves the camera preview as MJPEG.
type StreamHandler struct {
	source   PreviewSource
	log      zerolog.Logger
	interval time.Duration
}

// NewStreamHandler creates a new StreamHandler over the given source.
func NewStreamHandler(source PreviewSource, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{source: source, log: log, interval: 66 * time.Millisecond}
}

// ServeHTTP streams MJPEG frames until the client goes away.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last []byte
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		jpg, ok := h.source.Preview()
		// Each preview is a fresh slice; same backing array means no new frame.
		if !ok || len(jpg) == 0 || (len(last) > 0 && &jpg[0] == &last[0]) {
			continue
		}
		last = jpg

		if err := writePart(w, jpg); err != nil {
			h.log.Debug().Err(err).Msg("stream client gone")
			return
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

func writePart(w http.ResponseWriter, jpg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpg)); err != nil {
		return err
	}
	if _, err := w.Write(jpg); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\r\n")
	return err
}
