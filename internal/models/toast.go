package models

import "time"

// DefaultToastTimeout applies when a toast is pushed without its own timeout.
const DefaultToastTimeout = 4 * time.Second

// Toast is an ephemeral notification owned by one session. Never persisted.
type Toast struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	TimeoutMs int64     `json:"timeoutMs"`
	CreatedAt time.Time `json:"createdAt"`
}
