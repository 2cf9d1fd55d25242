package relay

import (
	"encoding/json"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/PlayConnect01/PlayConnect-sub002/internal/protocol"
	"github.com/PlayConnect01/PlayConnect-sub002/pkg/registry"
)

// Relay forwards opaque negotiation frames between two identified endpoints.
// It has no knowledge of call semantics and persists nothing.
type Relay struct {
	registry *registry.Registry
	logger   *slog.Logger
}

func New(reg *registry.Registry, logger *slog.Logger) *Relay {
	return &Relay{
		registry: reg,
		logger:   logger.With(slog.String("component", "relay")),
	}
}

// Forward delivers raw to the recipient named in the frame. Structural
// validation only: the kind and recipient id must be present; the payload is
// never inspected. Every failure is reported to the sender as exactly one
// error frame and the relay takes no further action.
func (r *Relay) Forward(senderID string, sender registry.Conn, raw []byte) {
	if !gjson.ValidBytes(raw) {
		sender.Send(protocol.MarshalError(protocol.CodeMalformedMessage, "frame is not valid JSON"))
		return
	}
	kind := gjson.GetBytes(raw, "kind")
	recipient := gjson.GetBytes(raw, "recipientId")
	if kind.String() == "" || recipient.String() == "" {
		sender.Send(protocol.MarshalError(protocol.CodeMalformedMessage, "frame requires kind and recipientId"))
		return
	}

	target, found := r.registry.Lookup(recipient.String())
	if !found || !target.Open() {
		r.logger.Debug("Recipient unreachable",
			slog.String("senderID", senderID),
			slog.String("recipientID", recipient.String()),
		)
		sender.Send(protocol.MarshalError(protocol.CodeRecipientUnreachable, "user "+recipient.String()+" has no live connection"))
		return
	}

	// Re-stamp the sender id; kind, recipient and payload pass through
	// untouched (Payload stays the raw bytes the sender supplied).
	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		sender.Send(protocol.MarshalError(protocol.CodeMalformedMessage, "frame does not match envelope shape"))
		return
	}
	env.SenderID = senderID

	out, err := json.Marshal(env)
	if err != nil {
		sender.Send(protocol.MarshalError(protocol.CodeMalformedMessage, "frame could not be re-encoded"))
		return
	}
	target.Send(out)
	r.logger.Debug("Relayed frame",
		slog.String("kind", kind.String()),
		slog.String("senderID", senderID),
		slog.String("recipientID", recipient.String()),
	)
}
