package domain

import "time"

// NotificationType groups notifications for client-side rendering.
type NotificationType string

const (
	NotificationTicketUpdate NotificationType = "ticket_update"
	NotificationNewTicket    NotificationType = "new_ticket"
	NotificationJob          NotificationType = "job"
	NotificationVerification NotificationType = "verification"
	NotificationReferral     NotificationType = "referral"
	NotificationSocial       NotificationType = "social"
)

// Notification is one record in a user's notification stream.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Body      string
	Type      NotificationType
	TicketID  *string
	Read      bool
	CreatedAt time.Time
}

// OutboxState is the delivery state of a staged notification.
type OutboxState string

const (
	OutboxPending   OutboxState = "pending"
	OutboxDelivered OutboxState = "delivered"
	OutboxDead      OutboxState = "dead"
)

// OutboxEntry is a notification staged in the same transaction as the mutation that
// caused it, awaiting delivery. Its ID becomes the delivered notification's ID.
type OutboxEntry struct {
	ID            string
	RecipientID   string
	Title         string
	Body          string
	Type          NotificationType
	TicketID      *string
	State         OutboxState
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DeliveredAt   *time.Time
}

// Notification converts the entry into the record appended to the recipient's stream.
func (e OutboxEntry) Notification() Notification {
	return Notification{
		ID:        e.ID,
		UserID:    e.RecipientID,
		Title:     e.Title,
		Body:      e.Body,
		Type:      e.Type,
		TicketID:  e.TicketID,
		CreatedAt: e.CreatedAt,
	}
}
