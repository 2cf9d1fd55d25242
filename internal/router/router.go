package router

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/PlayConnect01/PlayConnect-sub002/internal/call"
	"github.com/PlayConnect01/PlayConnect-sub002/internal/protocol"
	"github.com/PlayConnect01/PlayConnect-sub002/internal/relay"
	"github.com/PlayConnect01/PlayConnect-sub002/internal/rooms"
	"github.com/PlayConnect01/PlayConnect-sub002/pkg/registry"
)

// EventRouter is the per-connection message entry point. Lifecycle kinds go
// to the call manager, room kinds to the hub, and everything else addressed
// to a recipient is relayed untouched. Failures are per-event: they are
// reported to the sender (or dropped, for stale transitions) and never
// terminate the connection's loop.
type EventRouter struct {
	relay   *relay.Relay
	manager *call.Manager
	hub     *rooms.Hub
	logger  *slog.Logger
}

func NewEventRouter(r *relay.Relay, manager *call.Manager, hub *rooms.Hub, logger *slog.Logger) *EventRouter {
	return &EventRouter{
		relay:   r,
		manager: manager,
		hub:     hub,
		logger:  logger.With(slog.String("component", "event_router")),
	}
}

func (r *EventRouter) HandleMessage(ctx context.Context, userID string, sender registry.Conn, msg []byte) {
	if !gjson.ValidBytes(msg) {
		r.logger.Warn("Received invalid JSON frame", slog.String("userID", userID))
		sender.Send(protocol.MarshalError(protocol.CodeMalformedMessage, "frame is not valid JSON"))
		return
	}

	kind := gjson.GetBytes(msg, "kind").String()
	r.logger.Debug("Routing event", slog.String("kind", kind), slog.String("userID", userID))

	switch kind {
	case protocol.KindCallRequest:
		r.handleCallRequest(ctx, userID, sender, msg)
	case protocol.KindCallAccepted:
		r.handleTransition(ctx, sender, msg, r.manager.Accept)
	case protocol.KindCallRejected:
		r.handleTransition(ctx, sender, msg, r.manager.Reject)
	case protocol.KindCallEnd:
		r.handleTransition(ctx, sender, msg, r.manager.End)
	case protocol.KindJoinChat:
		if chatID := gjson.GetBytes(msg, "payload.chatId").String(); chatID != "" {
			r.hub.Join(chatID, userID)
		} else {
			sender.Send(protocol.MarshalError(protocol.CodeMalformedMessage, "join-chat requires payload.chatId"))
		}
	case protocol.KindLeaveChat:
		if chatID := gjson.GetBytes(msg, "payload.chatId").String(); chatID != "" {
			r.hub.Leave(chatID, userID)
		} else {
			sender.Send(protocol.MarshalError(protocol.CodeMalformedMessage, "leave-chat requires payload.chatId"))
		}
	default:
		// Negotiation traffic (offer/answer/candidate/...) is opaque to us;
		// anything addressed to a recipient gets relayed as-is.
		r.relay.Forward(userID, sender, msg)
	}
}

func (r *EventRouter) handleCallRequest(ctx context.Context, userID string, sender registry.Conn, msg []byte) {
	chatID := gjson.GetBytes(msg, "payload.chatId").String()
	receiverID := gjson.GetBytes(msg, "payload.receiverId").String()
	if chatID == "" || receiverID == "" {
		sender.Send(protocol.MarshalError(protocol.CodeMalformedMessage, "call-request requires payload.chatId and payload.receiverId"))
		return
	}

	// Both participants belong in the chat room so lifecycle broadcasts
	// reach them even if neither sent an explicit join-chat.
	r.hub.Join(chatID, userID)
	r.hub.Join(chatID, receiverID)

	if _, err := r.manager.Request(ctx, chatID, userID, receiverID); err != nil {
		r.logger.Error("Call request failed", slog.String("userID", userID), slog.Any("error", err))
		sender.Send(protocol.MarshalError(protocol.CodePersistenceFailure, err.Error()))
	}
}

func (r *EventRouter) handleTransition(ctx context.Context, sender registry.Conn, msg []byte, apply func(context.Context, string) error) {
	channelID := gjson.GetBytes(msg, "payload.channelName").String()
	if channelID == "" {
		sender.Send(protocol.MarshalError(protocol.CodeMalformedMessage, "lifecycle event requires payload.channelName"))
		return
	}

	err := apply(ctx, channelID)
	if errors.Is(err, call.ErrStale) {
		// Expected race (duplicate or late signal); intentionally invisible
		// to the client.
		return
	}
	if err != nil {
		r.logger.Error("Lifecycle transition failed", slog.String("channelID", channelID), slog.Any("error", err))
		sender.Send(protocol.MarshalError(protocol.CodePersistenceFailure, err.Error()))
	}
}
