package domain

import "time"

// FriendRequestStatus is the state of a neighbor invitation.
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestDeclined FriendRequestStatus = "declined"
)

// FriendRequest is an invitation from one citizen to become another's neighbor.
type FriendRequest struct {
	ID        string
	FromID    string
	FromName  string
	ToID      string
	ToName    string
	Status    FriendRequestStatus
	CreatedAt time.Time
}

// NeighborEdge is the single record backing a neighbor relationship. UserLow always sorts
// before UserHigh so each pair has exactly one edge.
type NeighborEdge struct {
	UserLow   string
	UserHigh  string
	CreatedAt time.Time
}

// NewNeighborEdge orders the pair.
func NewNeighborEdge(a, b string, now time.Time) NeighborEdge {
	if a > b {
		a, b = b, a
	}
	return NeighborEdge{UserLow: a, UserHigh: b, CreatedAt: now}
}

// Other returns the partner of userID on the edge.
func (e NeighborEdge) Other(userID string) string {
	if e.UserLow == userID {
		return e.UserHigh
	}
	return e.UserLow
}

// Neighbor is one side's view of an edge.
type Neighbor struct {
	UserID string
	Name   string
	Since  time.Time
}
