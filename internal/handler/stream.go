package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/realtime"
	"github.com/BuzzLyutic/taskboard/pkg/respond"
)

const heartbeatInterval = 15 * time.Second

// StreamHandler pushes every task change to the client as server-sent events.
type StreamHandler struct {
	hub       *realtime.Hub
	logger    *zap.Logger
	heartbeat time.Duration
}

func NewStreamHandler(hub *realtime.Hub, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, logger: logger, heartbeat: heartbeatInterval}
}

func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	// The server-wide WriteTimeout would otherwise cut the stream.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	sub := h.hub.Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = respond.Comment(w, "connected")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := respond.Comment(w, "ping"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-sub.Events():
			if !ok {
				// evicted or shutting down; the client reconnects and reloads
				return
			}
			if err := respond.Event(w, string(ev.Type), ev); err != nil {
				h.logger.Debug("stream write failed", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}
