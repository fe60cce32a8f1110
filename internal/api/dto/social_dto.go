package dto

import (
	"time"

	"github.com/streetfix/resolve-service/internal/domain"
)

// NeighborRequestCreate invites another citizen.
type NeighborRequestCreate struct {
	ToUserID string `json:"to_user_id"`
}

// NeighborRequestResponse is a pending or declined invitation.
type NeighborRequestResponse struct {
	ID        string                     `json:"id"`
	FromID    string                     `json:"from_id"`
	FromName  string                     `json:"from_name"`
	ToID      string                     `json:"to_id"`
	ToName    string                     `json:"to_name"`
	Status    domain.FriendRequestStatus `json:"status"`
	CreatedAt time.Time                  `json:"created_at"`
}

// NeighborResponse is one side of a neighbor edge.
type NeighborResponse struct {
	UserID string    `json:"user_id"`
	Name   string    `json:"name"`
	Since  time.Time `json:"since"`
}

// NotificationResponse is a delivered notification.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	Title     string                  `json:"title"`
	Body      string                  `json:"body"`
	Type      domain.NotificationType `json:"type"`
	TicketID  *string                 `json:"ticket_id,omitempty"`
	Read      bool                    `json:"read"`
	CreatedAt time.Time               `json:"created_at"`
}
