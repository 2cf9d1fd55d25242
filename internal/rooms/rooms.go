package rooms

import (
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"github.com/PlayConnect01/PlayConnect-sub002/pkg/registry"
)

// Hub tracks which users are subscribed to which chat rooms and fans
// lifecycle frames out to them. It is a separate surface from the relay:
// rooms reach every participant of a conversation, the relay reaches one
// user whether or not they joined a room.
type Hub struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{} // chatID -> set of userIDs

	registry *registry.Registry
	logger   *slog.Logger
}

func NewHub(reg *registry.Registry, logger *slog.Logger) *Hub {
	return &Hub{
		members:  make(map[string]map[string]struct{}),
		registry: reg,
		logger:   logger.With(slog.String("component", "rooms")),
	}
}

// Join adds userID to the chat room, creating the room if needed. Joining a
// room twice is a no-op.
func (h *Hub) Join(chatID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.members[chatID]
	if !ok {
		room = make(map[string]struct{})
		h.members[chatID] = room
	}
	room[userID] = struct{}{}
	h.logger.Debug("User joined room", slog.String("userID", userID), slog.String("chatID", chatID))
}

// Leave removes userID from the chat room. Empty rooms are deleted.
func (h *Hub) Leave(chatID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.members[chatID]
	if !ok {
		return
	}
	delete(room, userID)
	if len(room) == 0 {
		delete(h.members, chatID)
		h.logger.Debug("Removed empty room", slog.String("chatID", chatID))
	}
	h.logger.Debug("User left room", slog.String("userID", userID), slog.String("chatID", chatID))
}

// LeaveAll removes userID from every room it joined. Called when the user's
// connection goes away.
func (h *Hub) LeaveAll(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for chatID, room := range h.members {
		delete(room, userID)
		if len(room) == 0 {
			delete(h.members, chatID)
		}
	}
}

// Members returns a snapshot of the room's user ids.
func (h *Hub) Members(chatID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.members[chatID]
	if !ok {
		return nil
	}
	return lo.Keys(room)
}

// Broadcast sends frame to every member of the chat room that currently has
// a live connection. Members are resolved through the registry at send time,
// so a member whose connection died is simply skipped.
func (h *Hub) Broadcast(chatID string, frame []byte) int {
	delivered := 0
	for _, userID := range h.Members(chatID) {
		conn, found := h.registry.Lookup(userID)
		if !found || !conn.Open() {
			continue
		}
		conn.Send(frame)
		delivered++
	}
	h.logger.Debug("Broadcast to room",
		slog.String("chatID", chatID),
		slog.Int("delivered", delivered),
	)
	return delivered
}
