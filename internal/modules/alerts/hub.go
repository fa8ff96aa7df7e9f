package alerts

import (
	"sync"

	"github.com/gorilla/websocket"
)

// watcher wraps a connection with its write lock. gorilla/websocket allows
// at most one concurrent writer per connection, and alerts fire from
// independent goroutines, so every write goes through send.
type watcher struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (w *watcher) send(message interface{}) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteJSON(message)
}

// Hub tracks websocket watchers subscribed to security alerts. One
// connection per watcher; a reconnect replaces the old connection.
type Hub struct {
	watchers map[int64]*watcher
	mutex    sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		watchers: make(map[int64]*watcher),
	}
}

func (h *Hub) Register(watcherID int64, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if old, exists := h.watchers[watcherID]; exists && old != nil {
		_ = old.conn.Close()
	}

	h.watchers[watcherID] = &watcher{conn: conn}
}

func (h *Hub) Unregister(watcherID int64) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if w, exists := h.watchers[watcherID]; exists && w != nil {
		_ = w.conn.Close()
		delete(h.watchers, watcherID)
	}
}

// Broadcast pushes the message to every watcher. Dead connections are
// dropped; delivery is best effort.
func (h *Hub) Broadcast(message interface{}) {
	h.mutex.RLock()
	snapshot := make(map[int64]*watcher, len(h.watchers))
	for id, w := range h.watchers {
		snapshot[id] = w
	}
	h.mutex.RUnlock()

	for id, w := range snapshot {
		if w == nil {
			continue
		}
		if err := w.send(message); err != nil {
			h.Unregister(id)
		}
	}
}

func (h *Hub) WatcherCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.watchers)
}

func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for id, w := range h.watchers {
		if w != nil {
			_ = w.conn.Close()
		}
		delete(h.watchers, id)
	}
}
