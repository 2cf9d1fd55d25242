package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Conn is the slice of a transport connection the registry needs. The entry
// owns its Conn exclusively; nothing else may close it.
type Conn interface {
	Send(message []byte)
	Close(err error)
	Ping(ctx context.Context) error
	Open() bool
}

// Entry represents one live client connection keyed by user id.
type Entry struct {
	UserID       string
	Conn         Conn
	RegisteredAt time.Time
}

// Registry is the single source of truth for "is this user currently
// reachable". It holds at most one entry per user id.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	logger *slog.Logger
}

func New(logger *slog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		logger:  logger.With(slog.String("component", "registry")),
	}
}

// Register stores the connection for userID. A prior connection for the same
// id is superseded: it is removed from the registry and closed, so a user can
// never leak a duplicate connection.
func (r *Registry) Register(userID string, conn Conn) {
	r.mu.Lock()
	prev, existed := r.entries[userID]
	r.entries[userID] = &Entry{
		UserID:       userID,
		Conn:         conn,
		RegisteredAt: time.Now(),
	}
	r.mu.Unlock()

	// Close the superseded connection outside the lock; its close callback
	// may call back into the registry.
	if existed {
		r.logger.Info("Superseding existing connection",
			slog.String("userID", userID),
			slog.Duration("prevConnAge", time.Since(prev.RegisteredAt)),
		)
		prev.Conn.Close(errors.New("superseded by new connection for same user"))
	}
	r.logger.Debug("Connection registered", slog.String("userID", userID))
}

// Lookup returns the live connection for userID. It never blocks on anything
// but the registry lock itself.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[userID]
	if !ok {
		return nil, false
	}
	return entry.Conn, true
}

// Remove deletes the entry for userID. Removing an absent id is a no-op.
func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[userID]; !ok {
		return
	}
	delete(r.entries, userID)
	r.logger.Debug("Connection removed", slog.String("userID", userID))
}

// RemoveConn deletes the entry for userID only if it still holds conn.
// A close notification from a superseded connection must not evict the
// connection that replaced it.
func (r *Registry) RemoveConn(userID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[userID]
	if !ok || entry.Conn != conn {
		return false
	}
	delete(r.entries, userID)
	r.logger.Debug("Connection removed", slog.String("userID", userID))
	return true
}

// ForEach calls fn for every entry in a consistent snapshot of the registry.
// fn runs without the lock held, so it may mutate the registry.
func (r *Registry) ForEach(fn func(userID string, conn Conn)) {
	r.mu.RLock()
	snapshot := make([]*Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		snapshot = append(snapshot, entry)
	}
	r.mu.RUnlock()

	for _, entry := range snapshot {
		fn(entry.UserID, entry.Conn)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
