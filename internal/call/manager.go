package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PlayConnect01/PlayConnect-sub002/internal/protocol"
)

// ErrStale marks a lifecycle event whose precondition no longer holds: no
// record for the channel id, or the record already moved on. Stale events
// are an expected race (reject vs end firing close together), not a fault;
// callers drop them without notifying anyone.
var ErrStale = errors.New("stale lifecycle transition")

// Broadcaster is the room surface the manager emits lifecycle events on.
type Broadcaster interface {
	Broadcast(chatID string, frame []byte) int
}

// Manager owns the call state machine. Every transition is a
// read-then-conditional-write against the store, serialized per channel id;
// transitions for different channels proceed in parallel.
type Manager struct {
	store  Store
	hub    Broadcaster
	logger *slog.Logger

	mu       sync.Mutex
	channels map[string]*channelLock
}

// channelLock serializes transitions for one channel id. The refs count
// covers the holder and all waiters, so the table entry lives exactly as
// long as someone is working on the channel.
type channelLock struct {
	mu   sync.Mutex
	refs int
}

func NewManager(store Store, hub Broadcaster, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		hub:      hub,
		logger:   logger.With(slog.String("component", "call_manager")),
		channels: make(map[string]*channelLock),
	}
}

// lockChannel acquires the channel's transition lock, creating the table
// entry on first use.
func (m *Manager) lockChannel(channelID string) *channelLock {
	m.mu.Lock()
	lock, ok := m.channels[channelID]
	if !ok {
		lock = &channelLock{}
		m.channels[channelID] = lock
	}
	lock.refs++
	m.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// unlockChannel releases the transition lock and drops the table entry once
// nobody holds or waits on it. Calls abandoned mid-lifecycle therefore leave
// nothing behind.
func (m *Manager) unlockChannel(channelID string, lock *channelLock) {
	lock.mu.Unlock()

	m.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(m.channels, channelID)
	}
	m.mu.Unlock()
}

// NewChannelID derives a channel id unique even for repeated calls within
// the same chat: an immediate retry gets a different timestamp.
func NewChannelID(chatID string) string {
	return fmt.Sprintf("%s-%d", chatID, time.Now().UnixNano())
}

// Request creates a new INITIATED record and announces the incoming call to
// the chat's participants.
func (m *Manager) Request(ctx context.Context, chatID, callerID, receiverID string) (*Record, error) {
	channelID := NewChannelID(chatID)
	record, err := m.store.CreateCall(ctx, chatID, callerID, receiverID, channelID)
	if err != nil {
		return nil, fmt.Errorf("create call for chat '%s': %w", chatID, err)
	}

	m.logger.Info("Call initiated",
		slog.String("channelID", channelID),
		slog.String("callerID", callerID),
		slog.String("receiverID", receiverID),
	)
	m.announce(protocol.KindIncomingCall, record)
	return record, nil
}

// Accept moves an INITIATED record to ONGOING.
func (m *Manager) Accept(ctx context.Context, channelID string) error {
	return m.transition(ctx, channelID, protocol.KindCallAccepted, nil, func(s Status) (Status, bool) {
		if s != StatusInitiated {
			return s, false
		}
		return StatusOngoing, true
	})
}

// Reject moves an INITIATED record to REJECTED: the receiver declined
// before any answer.
func (m *Manager) Reject(ctx context.Context, channelID string) error {
	now := time.Now()
	return m.transition(ctx, channelID, protocol.KindCallRejected, &now, func(s Status) (Status, bool) {
		if s != StatusInitiated {
			return s, false
		}
		return StatusRejected, true
	})
}

// End terminates a call. Hanging up before any answer yields MISSED; ending
// an answered call yields COMPLETED.
func (m *Manager) End(ctx context.Context, channelID string) error {
	now := time.Now()
	return m.transition(ctx, channelID, protocol.KindCallEnded, &now, func(s Status) (Status, bool) {
		switch s {
		case StatusInitiated:
			return StatusMissed, true
		case StatusOngoing:
			return StatusCompleted, true
		}
		return s, false
	})
}

func (m *Manager) transition(ctx context.Context, channelID, eventKind string, endedAt *time.Time, step func(Status) (Status, bool)) error {
	lock := m.lockChannel(channelID)
	defer m.unlockChannel(channelID, lock)

	record, err := m.store.FindByChannel(ctx, channelID)
	if errors.Is(err, ErrNotFound) {
		m.logger.Debug("Dropping event for unknown channel",
			slog.String("event", eventKind),
			slog.String("channelID", channelID),
		)
		return ErrStale
	}
	if err != nil {
		return fmt.Errorf("find call by channel '%s': %w", channelID, err)
	}

	next, ok := step(record.Status)
	if !ok {
		m.logger.Debug("Dropping stale transition",
			slog.String("event", eventKind),
			slog.String("channelID", channelID),
			slog.String("status", string(record.Status)),
		)
		return ErrStale
	}

	updated, err := m.store.UpdateStatus(ctx, record.ID, next, endedAt)
	if err != nil {
		return fmt.Errorf("update call '%s' to %s: %w", channelID, next, err)
	}

	m.logger.Info("Call transitioned",
		slog.String("channelID", channelID),
		slog.String("from", string(record.Status)),
		slog.String("to", string(next)),
	)
	m.announce(eventKind, updated)
	return nil
}

// announce fans a lifecycle event out to the call's chat room. A failed
// broadcast never fails the transition; the record is already persisted.
func (m *Manager) announce(kind string, record *Record) {
	frame, err := protocol.MarshalEvent(kind, protocol.CallEvent{
		ChatID:      record.ChatID,
		CallerID:    record.CallerID,
		ReceiverID:  record.ReceiverID,
		ChannelName: record.ChannelID,
		Status:      string(record.Status),
	})
	if err != nil {
		m.logger.Error("Failed to marshal lifecycle event", slog.Any("error", err))
		return
	}
	m.hub.Broadcast(record.ChatID, frame)
}
