package dto

import (
	"time"

	"github.com/streetfix/resolve-service/internal/domain"
)

// UserRegisterRequest payload for new citizens.
type UserRegisterRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	ReferralCode string `json:"referral_code"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is an account as its owner sees it.
type UserResponse struct {
	ID                string                `json:"id"`
	Name              string                `json:"name"`
	Email             string                `json:"email,omitempty"`
	Username          *string               `json:"username,omitempty"`
	Role              domain.Role           `json:"role"`
	Balance           int64                 `json:"balance"`
	ReportCount       int                   `json:"report_count"`
	ReferralCode      string                `json:"referral_code,omitempty"`
	ReferralStatus    domain.ReferralStatus `json:"referral_status,omitempty"`
	NeighborCount     int                   `json:"neighbor_count"`
	EngineerStatus    domain.EngineerStatus `json:"engineer_status,omitempty"`
	LastKnownLocation *domain.Coordinate    `json:"last_known_location,omitempty"`
	Zone              domain.Zone           `json:"zone,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
}

// ProfileResponse is an account as another user sees it.
type ProfileResponse struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Username      *string     `json:"username,omitempty"`
	Role          domain.Role `json:"role"`
	ReportCount   int         `json:"report_count"`
	NeighborCount int         `json:"neighbor_count"`
	IsNeighbor    bool        `json:"is_neighbor"`
}

// EngineerStatusRequest sets an engineer's availability.
type EngineerStatusRequest struct {
	Status domain.EngineerStatus `json:"status"`
}

// LocationRequest reports an engineer's position.
type LocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
