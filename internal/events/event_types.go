package events

import (
	"time"

	"github.com/streetfix/resolve-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketTransitioned EventType = "ticket_transitioned"
	EventTicketsMerged      EventType = "tickets_merged"
	EventReferralPaid       EventType = "referral_paid"
	EventNeighborChanged    EventType = "neighbor_changed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services after their transaction commits.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
	// Staged counts the outbox entries written with the change.
	Staged int `json:"staged"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Kind     domain.TicketKind     `json:"kind"`
	Status   domain.TicketStatus   `json:"status"`
	Category domain.TicketCategory `json:"category"`
	Title    string                `json:"title"`
}

// TicketTransitionedPayload payload.
type TicketTransitionedPayload struct {
	Action     string              `json:"action"`
	OldStatus  domain.TicketStatus `json:"old_status"`
	NewStatus  domain.TicketStatus `json:"new_status"`
	AssignedTo *string             `json:"assigned_to,omitempty"`
}

// TicketsMergedPayload payload.
type TicketsMergedPayload struct {
	ParentID     string   `json:"parent_id"`
	DuplicateIDs []string `json:"duplicate_ids"`
}

// ReferralPaidPayload payload.
type ReferralPaidPayload struct {
	ReferrerID string `json:"referrer_id"`
	Reward     int64  `json:"reward"`
}

// NeighborChangedPayload payload.
type NeighborChangedPayload struct {
	Change  string `json:"change"`
	OtherID string `json:"other_id"`
}
