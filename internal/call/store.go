package call

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store lookups for unknown channel ids.
var ErrNotFound = errors.New("call record not found")

// Store is the persistence collaborator. Implementations live outside this
// package; the manager only ever reads-then-conditionally-writes through it.
type Store interface {
	CreateCall(ctx context.Context, chatID, callerID, receiverID, channelID string) (*Record, error)
	FindByChannel(ctx context.Context, channelID string) (*Record, error)
	UpdateStatus(ctx context.Context, id string, status Status, endedAt *time.Time) (*Record, error)
}
