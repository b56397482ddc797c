package models

import "time"

// Actions recorded in the activity journal.
const (
	ActionSendRequest = "send_request"
	ActionAccept      = "accept"
	ActionDeny        = "deny"
	ActionCancel      = "cancel"
	ActionMessage     = "message"
)

const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Activity is one audited action (PostgreSQL). Failed rows keep the error text so an
// operator can see which pairs may need the user to retry.
type Activity struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ActorID   string    `json:"actor_id" gorm:"size:64;index"`
	TargetID  string    `json:"target_id" gorm:"size:64;index"`
	Action    string    `json:"action" gorm:"size:30;index"`
	Outcome   string    `json:"outcome" gorm:"size:10"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
