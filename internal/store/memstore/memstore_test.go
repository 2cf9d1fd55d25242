package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PlayConnect01/PlayConnect-sub002/internal/call"
	"github.com/PlayConnect01/PlayConnect-sub002/internal/store/memstore"
)

func TestCreateFindUpdate(t *testing.T) {
	req := require.New(t)
	store := memstore.New()
	ctx := context.Background()

	record, err := store.CreateCall(ctx, "chat-42", "1", "2", "chat-42-100")
	req.NoError(err)
	req.Equal(call.StatusInitiated, record.Status)

	_, err = store.FindByChannel(ctx, "chat-42-999")
	req.ErrorIs(err, call.ErrNotFound)

	ended := time.Now()
	updated, err := store.UpdateStatus(ctx, record.ID, call.StatusRejected, &ended)
	req.NoError(err)
	req.Equal(call.StatusRejected, updated.Status)
	req.NotNil(updated.EndedAt)

	found, err := store.FindByChannel(ctx, "chat-42-100")
	req.NoError(err)
	req.Equal(call.StatusRejected, found.Status)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	req := require.New(t)
	store := memstore.New()
	ctx := context.Background()

	record, err := store.CreateCall(ctx, "chat-42", "1", "2", "chat-42-100")
	req.NoError(err)

	// Mutating what the store handed out must not corrupt stored history.
	record.Status = call.StatusCompleted
	found, err := store.FindByChannel(ctx, "chat-42-100")
	req.NoError(err)
	req.Equal(call.StatusInitiated, found.Status)
}
