package dto

import (
	"time"

	"github.com/streetfix/resolve-service/internal/domain"
)

// CreateTicketRequest payload for reports and drafts.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	Latitude    float64               `json:"latitude"`
	Longitude   float64               `json:"longitude"`
	Address     string                `json:"address"`
	Photos      []string              `json:"photos"`
	Video       *string               `json:"video"`
}

// CreatePostRequest payload for community feed posts.
type CreatePostRequest struct {
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Photos    []string `json:"photos"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
}

// AssignRequest names the engineer to assign.
type AssignRequest struct {
	EngineerID string `json:"engineer_id"`
}

// ResolveRequest carries resolution evidence.
type ResolveRequest struct {
	Notes      string `json:"notes"`
	AfterPhoto string `json:"after_photo"`
}

// ReopenRequest carries the QA rejection reason.
type ReopenRequest struct {
	Reason string `json:"reason"`
}

// MergeRequest lists duplicates to close into the ticket named in the path.
type MergeRequest struct {
	DuplicateIDs []string `json:"duplicate_ids"`
}

// TicketResponse is the full ticket representation.
type TicketResponse struct {
	ID              string                `json:"id"`
	UserID          string                `json:"user_id"`
	Kind            domain.TicketKind     `json:"kind"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Category        domain.TicketCategory `json:"category"`
	CategoryDetail  string                `json:"category_detail,omitempty"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	Location        domain.Location       `json:"location"`
	Photos          []string              `json:"photos"`
	Video           *string               `json:"video,omitempty"`
	AssignedTo      *string               `json:"assigned_to,omitempty"`
	ResolutionNotes string                `json:"resolution_notes,omitempty"`
	AfterPhoto      *string               `json:"after_photo,omitempty"`
	RejectionReason string                `json:"rejection_reason,omitempty"`
	MergedInto      *string               `json:"merged_into,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	ResolvedAt      *time.Time            `json:"resolved_at,omitempty"`
	VerifiedAt      *time.Time            `json:"verified_at,omitempty"`
	ReopenedAt      *time.Time            `json:"reopened_at,omitempty"`
}

// TicketHistoryResponse is one audit trail entry.
type TicketHistoryResponse struct {
	ID         string              `json:"id"`
	ActorID    *string             `json:"actor_id,omitempty"`
	Action     string              `json:"action"`
	FromStatus domain.TicketStatus `json:"from_status,omitempty"`
	ToStatus   domain.TicketStatus `json:"to_status"`
	Note       string              `json:"note,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// UploadRequest asks for a presigned media upload.
type UploadRequest struct {
	Purpose     string `json:"purpose"`
	ContentType string `json:"content_type"`
}
