package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PlayConnect01/PlayConnect-sub002/internal/call"
)

// Store is the in-memory persistence collaborator. It is the default
// backend; call history lives only for the process lifetime.
type Store struct {
	mu        sync.RWMutex
	byChannel map[string]*call.Record
	byID      map[string]*call.Record
}

var _ call.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		byChannel: make(map[string]*call.Record),
		byID:      make(map[string]*call.Record),
	}
}

func (s *Store) CreateCall(_ context.Context, chatID, callerID, receiverID, channelID string) (*call.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := &call.Record{
		ID:         uuid.NewString(),
		ChannelID:  channelID,
		ChatID:     chatID,
		CallerID:   callerID,
		ReceiverID: receiverID,
		Status:     call.StatusInitiated,
		CreatedAt:  time.Now(),
	}
	s.byChannel[channelID] = record
	s.byID[record.ID] = record
	return clone(record), nil
}

func (s *Store) FindByChannel(_ context.Context, channelID string) (*call.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.byChannel[channelID]
	if !ok {
		return nil, call.ErrNotFound
	}
	return clone(record), nil
}

func (s *Store) UpdateStatus(_ context.Context, id string, status call.Status, endedAt *time.Time) (*call.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byID[id]
	if !ok {
		return nil, call.ErrNotFound
	}
	record.Status = status
	if endedAt != nil {
		t := *endedAt
		record.EndedAt = &t
	}
	return clone(record), nil
}

// clone keeps callers from mutating stored records.
func clone(r *call.Record) *call.Record {
	c := *r
	if r.EndedAt != nil {
		t := *r.EndedAt
		c.EndedAt = &t
	}
	return &c
}
