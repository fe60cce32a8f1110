package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusDraft       TicketStatus = "draft"
	TicketStatusSubmitted   TicketStatus = "submitted"
	TicketStatusAssigned    TicketStatus = "assigned"
	TicketStatusInProgress  TicketStatus = "in_progress"
	TicketStatusResolved    TicketStatus = "resolved"
	TicketStatusVerified    TicketStatus = "verified"
	TicketStatusReopened    TicketStatus = "reopened"
	TicketStatusUnderReview TicketStatus = "under_review"
	TicketStatusMerged      TicketStatus = "merged"
)

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// TicketCategory is the kind of street issue reported.
type TicketCategory string

const (
	CategoryPothole     TicketCategory = "pothole"
	CategoryStreetLight TicketCategory = "street_light"
	CategoryRubbish     TicketCategory = "rubbish"
	CategoryOther       TicketCategory = "other"
)

// NormalizeCategory maps free text onto a known category. Unknown values become
// CategoryOther and the original text is returned as the detail.
func NormalizeCategory(raw string) (TicketCategory, string) {
	value := strings.TrimSpace(raw)
	switch TicketCategory(strings.ToLower(value)) {
	case CategoryPothole:
		return CategoryPothole, ""
	case CategoryStreetLight:
		return CategoryStreetLight, ""
	case CategoryRubbish:
		return CategoryRubbish, ""
	case CategoryOther, "":
		return CategoryOther, ""
	}
	return CategoryOther, value
}

// TicketKind separates reportable issues from community feed posts sharing the collection.
type TicketKind string

const (
	TicketKindIssue  TicketKind = "issue"
	TicketKindSocial TicketKind = "social"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Location is where an issue was reported.
type Location struct {
	Coordinate
	Address string `json:"address,omitempty"`
}

// Ticket is a citizen-reported issue tracked to resolution.
type Ticket struct {
	ID              string
	UserID          string
	Kind            TicketKind
	Title           string
	Description     string
	Category        TicketCategory
	CategoryDetail  string
	Status          TicketStatus
	Priority        TicketPriority
	Location        Location
	Photos          []string
	Video           *string
	AssignedTo      *string
	ResolutionNotes string
	AfterPhoto      *string
	RejectionReason string
	MergedInto      *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ResolvedAt      *time.Time
	VerifiedAt      *time.Time
	ReopenedAt      *time.Time
}

// NewTicketInput carries the citizen-supplied fields of a report.
type NewTicketInput struct {
	Title       string
	Description string
	Category    string
	Priority    TicketPriority
	Latitude    float64
	Longitude   float64
	Address     string
	Photos      []string
	Video       *string
}

// NewTicket builds a ticket with canonical defaults applied.
func NewTicket(userID string, status TicketStatus, input NewTicketInput, now time.Time) *Ticket {
	category, detail := NormalizeCategory(input.Category)
	priority := input.Priority
	if !priority.Valid() {
		priority = TicketPriorityMedium
	}
	photos := make([]string, 0, len(input.Photos))
	for _, p := range input.Photos {
		if p = strings.TrimSpace(p); p != "" {
			photos = append(photos, p)
		}
	}
	return &Ticket{
		UserID:         userID,
		Kind:           TicketKindIssue,
		Title:          strings.TrimSpace(input.Title),
		Description:    strings.TrimSpace(input.Description),
		Category:       category,
		CategoryDetail: detail,
		Status:         status,
		Priority:       priority,
		Location: Location{
			Coordinate: Coordinate{Latitude: input.Latitude, Longitude: input.Longitude},
			Address:    strings.TrimSpace(input.Address),
		},
		Photos:    photos,
		Video:     input.Video,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsAssignedTo reports whether engineerID holds the ticket.
func (t *Ticket) IsAssignedTo(engineerID string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == engineerID
}

// Clone returns a copy that shares no mutable state with t.
func (t *Ticket) Clone() *Ticket {
	c := *t
	c.Photos = append([]string(nil), t.Photos...)
	return &c
}
