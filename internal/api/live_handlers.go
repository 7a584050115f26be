package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/onnwee/galleria/internal/live"
	"github.com/onnwee/galleria/internal/middleware"
)

// LiveHandlers holds dependencies for live stats WebSocket handlers.
type LiveHandlers struct {
	broadcaster *live.StatsBroadcaster
	upgrader    websocket.Upgrader
}

// NewLiveHandlers creates a new LiveHandlers instance. checkOrigin is
// applied to upgrade requests; pass nil to accept the default same-origin
// policy.
func NewLiveHandlers(broadcaster *live.StatsBroadcaster, checkOrigin func(r *http.Request) bool) *LiveHandlers {
	return &LiveHandlers{
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Subscribe upgrades the connection and streams stat updates for one
// content item until the client disconnects.
// GET /reactions/live?content_id=...
func (h *LiveHandlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	contentID := r.URL.Query().Get("content_id")
	if contentID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "content_id is required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an error response.
		slog.WarnContext(ctx, "websocket upgrade failed", "error", err)
		return
	}

	h.broadcaster.Subscribe(contentID, conn)
	slog.InfoContext(ctx, "live stats subscription opened", "content_id", contentID)

	// Drain reads to detect disconnect; subscribers never send payloads.
	go func() {
		defer func() {
			h.broadcaster.Unsubscribe(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
