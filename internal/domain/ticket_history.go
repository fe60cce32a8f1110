package domain

import "time"

// TicketHistory is an immutable audit trail entry for a status change.
type TicketHistory struct {
	ID         string
	TicketID   string
	ActorID    *string
	Action     string
	FromStatus TicketStatus
	ToStatus   TicketStatus
	Note       string
	CreatedAt  time.Time
}
