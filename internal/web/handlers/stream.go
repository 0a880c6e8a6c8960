package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/recognizer"
)

// frameBoundary separates parts of the MJPEG response.
const frameBoundary = "frame"

// StreamSource hands out annotated frame subscriptions.
type StreamSource interface {
	Subscribe() *recognizer.Subscription
	Unsubscribe(sub *recognizer.Subscription)
	Status() recognizer.Status
}

// StreamHandler serves the live annotated feed.
type StreamHandler struct {
	source StreamSource
	logger *slog.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(source StreamSource, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{source: source, logger: logger}
}

// VideoFeed streams JPEG frames as multipart/x-mixed-replace until the client
// goes away or the recognition loop stops.
func (h *StreamHandler) VideoFeed(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// The server write timeout does not apply to a live stream.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	sub := h.source.Subscribe()
	defer h.source.Unsubscribe(sub)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+frameBoundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Debug("stream client connected", "subscription", sub.ID.String())
	defer h.logger.Debug("stream client disconnected", "subscription", sub.ID.String())

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeFrame(w, frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n",
		frameBoundary, len(frame)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}

// Status reports whether the loop is running and its counters.
func (h *StreamHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.source.Status())
}
