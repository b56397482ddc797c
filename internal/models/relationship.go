package models

import (
	"fmt"
	"time"
)

// Status is the lifecycle state shared by an invitation and its request mirror.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDenied   Status = "denied"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDenied:
		return true
	}
	return false
}

// ParseStatus rejects anything outside pending, accepted and denied.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrMalformedDocument, raw)
	}
	return s, nil
}

// Relationship is one side of a pending or answered connection attempt. Stored at
// users/{owner}/invitations/{other} or users/{owner}/requests/{other}; the snapshot
// always describes the other party.
type Relationship struct {
	ProfileSnapshot
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}

// NewPendingRelationship describes other as seen by the owner of the document.
func NewPendingRelationship(other ProfileSnapshot, at time.Time) Relationship {
	return Relationship{ProfileSnapshot: other, Status: StatusPending, CreatedAt: at}
}

func (r Relationship) ToMap() map[string]any {
	m := r.ProfileSnapshot.fields()
	m["status"] = string(r.Status)
	m["createdAt"] = r.CreatedAt
	if r.RespondedAt != nil {
		m["respondedAt"] = *r.RespondedAt
	}
	return m
}

// DecodeRelationship reads an invitation or request document. The snapshot uid
// falls back to the document id.
func DecodeRelationship(id string, data map[string]any) (Relationship, error) {
	d := &decoder{data: data}
	r := Relationship{
		ProfileSnapshot: decodeSnapshot(id, d),
		Status:          d.status("status"),
		CreatedAt:       d.time("createdAt"),
		RespondedAt:     d.optionalTime("respondedAt"),
	}
	if d.err != nil {
		return Relationship{}, fmt.Errorf("relationship %s: %w", id, d.err)
	}
	return r, nil
}

// StatusChange is the update applied to both mirrors when an invitation is answered.
func StatusChange(s Status, at time.Time) map[string]any {
	return map[string]any{"status": string(s), "respondedAt": at}
}

// Connection is stored at users/{owner}/connections/{other} once both sides agree.
type Connection struct {
	ProfileSnapshot
	Status      Status    `json:"status"`
	ConnectedAt time.Time `json:"connectedAt"`
}

func NewConnection(other ProfileSnapshot, at time.Time) Connection {
	return Connection{ProfileSnapshot: other, Status: StatusAccepted, ConnectedAt: at}
}

func (c Connection) ToMap() map[string]any {
	m := c.ProfileSnapshot.fields()
	m["status"] = string(c.Status)
	m["connectedAt"] = c.ConnectedAt
	return m
}

func DecodeConnection(id string, data map[string]any) (Connection, error) {
	d := &decoder{data: data}
	c := Connection{
		ProfileSnapshot: decodeSnapshot(id, d),
		Status:          d.status("status"),
		ConnectedAt:     d.time("connectedAt"),
	}
	if d.err != nil {
		return Connection{}, fmt.Errorf("connection %s: %w", id, d.err)
	}
	return c, nil
}
