package call

import "time"

// Status enumerates the lifecycle of a signaling session. Transitions are
// one-directional: INITIATED may move to ONGOING, MISSED or REJECTED;
// ONGOING may move only to COMPLETED; everything else is final.
type Status string

const (
	StatusInitiated Status = "INITIATED"
	StatusOngoing   Status = "ONGOING"
	StatusMissed    Status = "MISSED"
	StatusRejected  Status = "REJECTED"
	StatusCompleted Status = "COMPLETED"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusMissed, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// Record represents one signaling session, independent of any media
// transport. Records are history: they are never deleted.
type Record struct {
	ID         string     `json:"id"`
	ChannelID  string     `json:"channelId"`
	ChatID     string     `json:"chatId"`
	CallerID   string     `json:"callerId"`
	ReceiverID string     `json:"receiverId"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
}
