package sweeper

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/PlayConnect01/PlayConnect-sub002/internal/protocol"
	"github.com/PlayConnect01/PlayConnect-sub002/internal/rooms"
	"github.com/PlayConnect01/PlayConnect-sub002/pkg/registry"
)

// Sweeper reconciles the registry against actual transport liveness. The
// primary removal path is a connection's own close notification; the sweeper
// is the safety net for transports that died without one firing.
type Sweeper struct {
	registry *registry.Registry
	hub      *rooms.Hub
	logger   *slog.Logger

	interval     time.Duration
	probeTimeout time.Duration
}

func New(reg *registry.Registry, hub *rooms.Hub, interval, probeTimeout time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		registry:     reg,
		hub:          hub,
		logger:       logger.With(slog.String("component", "sweeper")),
		interval:     interval,
		probeTimeout: probeTimeout,
	}
}

// Run probes all connections once per interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Sweeper started", slog.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	s.registry.ForEach(func(userID string, conn registry.Conn) {
		probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
		err := conn.Ping(probeCtx)
		cancel()
		if err == nil {
			return
		}

		s.logger.Warn("Reaping dead connection",
			slog.String("userID", userID),
			slog.Any("error", err),
		)
		s.Reap(userID, conn)
		conn.Close(errors.New("reaped by liveness sweeper"))
	})
}

// Reap removes the connection's registry entry and room memberships and
// tells everyone still connected that the user went away. The registry's
// conn-guarded removal makes this race-safe against the connection's own
// close notification and against a superseding registration: whichever
// caller actually removes the entry is the one that broadcasts, so remaining
// clients see exactly one user-disconnected notice.
func (s *Sweeper) Reap(userID string, conn registry.Conn) bool {
	if !s.registry.RemoveConn(userID, conn) {
		return false
	}
	s.hub.LeaveAll(userID)

	payload, _ := json.Marshal(map[string]string{"userId": userID})
	frame, err := json.Marshal(protocol.Envelope{
		Kind:    protocol.KindUserDisconnected,
		Payload: payload,
	})
	if err != nil {
		s.logger.Error("Failed to marshal disconnect notice", slog.Any("error", err))
		return true
	}
	s.registry.ForEach(func(otherID string, other registry.Conn) {
		other.Send(frame)
	})
	s.logger.Info("User disconnected", slog.String("userID", userID))
	return true
}
