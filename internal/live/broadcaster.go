// Package live pushes reaction stat updates over WebSocket so open pages
// converge on authoritative counts without polling.
package live

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/galleria/internal/reaction"
)

// StatsEvent is the message pushed after every successful toggle.
type StatsEvent struct {
	ContentID string         `json:"content_id"`
	Stats     reaction.Stats `json:"stats"`
	At        time.Time      `json:"at"`
}

// StatsBroadcaster manages WebSocket subscriptions keyed by content id.
type StatsBroadcaster struct {
	mu          sync.RWMutex
	connections map[string]map[*websocket.Conn]bool // contentID -> connections
	logger      *slog.Logger
}

// NewStatsBroadcaster creates a new broadcaster.
func NewStatsBroadcaster(logger *slog.Logger) *StatsBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsBroadcaster{
		connections: make(map[string]map[*websocket.Conn]bool),
		logger:      logger,
	}
}

// Subscribe registers a connection for updates on one content item.
func (b *StatsBroadcaster) Subscribe(contentID string, conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connections[contentID] == nil {
		b.connections[contentID] = make(map[*websocket.Conn]bool)
	}
	b.connections[contentID][conn] = true
}

// Unsubscribe removes a connection from all content subscriptions.
func (b *StatsBroadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for contentID, conns := range b.connections {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(b.connections, contentID)
		}
	}
}

// Broadcast sends updated stats to every subscriber of the content item.
func (b *StatsBroadcaster) Broadcast(contentID string, stats reaction.Stats) {
	event := StatsEvent{
		ContentID: contentID,
		Stats:     stats,
		At:        time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to marshal stats event", "error", err)
		return
	}

	// gorilla/websocket allows at most one concurrent writer per
	// connection. Concurrent toggles on one content id are the normal
	// workload, so the write lock serializes broadcasts end to end.
	b.mu.Lock()
	defer b.mu.Unlock()

	conns := b.connections[contentID]
	if len(conns) == 0 {
		return
	}

	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			b.logger.Warn("failed to send stats update",
				"error", err,
				"content_id", contentID,
			)
			delete(conns, conn)
		}
	}
	if len(conns) == 0 {
		delete(b.connections, contentID)
	}
}

// ConnectionCount returns the number of subscribers for a content item.
func (b *StatsBroadcaster) ConnectionCount(contentID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if conns, exists := b.connections[contentID]; exists {
		return len(conns)
	}
	return 0
}
