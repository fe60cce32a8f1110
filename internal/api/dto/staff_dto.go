package dto

import "github.com/streetfix/resolve-service/internal/domain"

// CreateStaffRequest payload for dispatcher-created accounts.
type CreateStaffRequest struct {
	Role     domain.Role `json:"role"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
}

// ZoneRequest replaces an engineer's coverage polygon. An empty polygon clears it.
type ZoneRequest struct {
	Polygon []domain.Coordinate `json:"polygon"`
}

// CandidateResponse is a ranked engineer for a ticket.
type CandidateResponse struct {
	Engineer   UserResponse `json:"engineer"`
	InZone     bool         `json:"in_zone"`
	DistanceKm float64      `json:"distance_km"`
}
