package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/PlayConnect01/PlayConnect-sub002/internal/call"
)

const (
	channelPrefix = "call:"
	idPrefix      = "callid:"
)

// Store persists call history in an embedded badger database so it survives
// restarts. Values are the JSON form of call.Record keyed by channel id,
// with a secondary record-id -> channel-id index for status updates.
type Store struct {
	db  *badger.DB
	log *slog.Logger
}

var _ call.Store = (*Store)(nil)

func New(db *badger.DB, log *slog.Logger) *Store {
	return &Store{db: db, log: log.With(slog.String("component", "badger_store"))}
}

// Open opens the badger database at path with logging quieted down to
// errors, matching the service's own log stream.
func Open(path string) (*badger.DB, error) {
	return badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
}

func (s *Store) CreateCall(_ context.Context, chatID, callerID, receiverID, channelID string) (*call.Record, error) {
	record := &call.Record{
		ID:         uuid.NewString(),
		ChannelID:  channelID,
		ChatID:     chatID,
		CallerID:   callerID,
		ReceiverID: receiverID,
		Status:     call.StatusInitiated,
		CreatedAt:  time.Now(),
	}
	bytes, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(channelPrefix+channelID), bytes); err != nil {
			return err
		}
		return txn.Set([]byte(idPrefix+record.ID), []byte(channelID))
	})
	if err != nil {
		return nil, fmt.Errorf("persist call record: %w", err)
	}
	return record, nil
}

func (s *Store) FindByChannel(_ context.Context, channelID string) (*call.Record, error) {
	var record call.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(channelPrefix + channelID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, call.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) UpdateStatus(_ context.Context, id string, status call.Status, endedAt *time.Time) (*call.Record, error) {
	var record call.Record
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(idPrefix + id))
		if err != nil {
			return err
		}
		var channelID string
		if err := item.Value(func(val []byte) error {
			channelID = string(val)
			return nil
		}); err != nil {
			return err
		}

		item, err = txn.Get([]byte(channelPrefix + channelID))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		}); err != nil {
			return err
		}

		record.Status = status
		if endedAt != nil {
			t := *endedAt
			record.EndedAt = &t
		}
		bytes, err := json.Marshal(&record)
		if err != nil {
			return err
		}
		return txn.Set([]byte(channelPrefix+channelID), bytes)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, call.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update call record: %w", err)
	}
	return &record, nil
}
