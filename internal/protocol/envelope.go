package protocol

import "encoding/json"

// Client-originated lifecycle kinds.
const (
	KindCallRequest  = "call-request"
	KindCallAccepted = "call-accepted"
	KindCallRejected = "call-rejected"
	KindCallEnd      = "call-end"
	KindJoinChat     = "join-chat"
	KindLeaveChat    = "leave-chat"
)

// Server-emitted kinds.
const (
	KindIncomingCall     = "incoming-call"
	KindCallEnded        = "call-ended"
	KindUserDisconnected = "user-disconnected"
	KindError            = "error"
)

// Error codes carried by an error frame.
const (
	CodeMalformedMessage     = "malformed-message"
	CodeRecipientUnreachable = "recipient-unreachable"
	CodePersistenceFailure   = "persistence-failure"
)

// Envelope is the point-to-point wire frame. The payload is opaque: the
// relay forwards it verbatim and never interprets it.
type Envelope struct {
	Kind        string          `json:"kind"`
	SenderID    string          `json:"senderId,omitempty"`
	RecipientID string          `json:"recipientId,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// CallEvent is the payload of room-broadcast lifecycle frames.
type CallEvent struct {
	ChatID      string `json:"chatId"`
	CallerID    string `json:"callerId"`
	ReceiverID  string `json:"receiverId"`
	ChannelName string `json:"channelName"`
	Status      string `json:"status,omitempty"`
}

// ErrorFrame reports a per-event failure back to the originating connection.
type ErrorFrame struct {
	Kind   string `json:"kind"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// MarshalError builds the wire form of an error frame. Marshalling a flat
// struct of strings cannot fail, so no error is returned.
func MarshalError(code, reason string) []byte {
	b, _ := json.Marshal(ErrorFrame{Kind: KindError, Code: code, Reason: reason})
	return b
}

// MarshalEvent builds a room-broadcast lifecycle frame.
func MarshalEvent(kind string, event CallEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Kind: kind, Payload: payload})
}
