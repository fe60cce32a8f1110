// Package workflow holds the ticket transition table and the single guarded entry point
// through which every ticket status change is applied.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/streetfix/resolve-service/internal/domain"
)

var (
	// ErrIllegal means the table has no edge for the requested change.
	ErrIllegal = errors.New("illegal transition")
	// ErrEvidenceRequired means a resolve lacked notes or an after photo.
	ErrEvidenceRequired = errors.New("resolution notes and after photo are required")
	// ErrReasonRequired means a reopen lacked a reason.
	ErrReasonRequired = errors.New("reopen reason is required")
	// ErrUnassigned means the ticket has no engineer where one is mandatory.
	ErrUnassigned = errors.New("ticket has no assigned engineer")
	// ErrNotAnIssue means a social feed entry was routed into the workflow.
	ErrNotAnIssue = errors.New("social posts have no lifecycle")
)

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusDraft:       {domain.TicketStatusSubmitted},
	domain.TicketStatusSubmitted:   {domain.TicketStatusAssigned, domain.TicketStatusUnderReview},
	domain.TicketStatusAssigned:    {domain.TicketStatusInProgress},
	domain.TicketStatusInProgress:  {domain.TicketStatusResolved},
	domain.TicketStatusResolved:    {domain.TicketStatusVerified, domain.TicketStatusReopened},
	domain.TicketStatusReopened:    {domain.TicketStatusAssigned},
	domain.TicketStatusVerified:    {},
	domain.TicketStatusUnderReview: {},
	domain.TicketStatusMerged:      {},
}

// CanTransitionTo reports whether next is in the allowed list for current.
func CanTransitionTo(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// CanAssign reports whether a ticket in current may be given to an engineer. Assignment
// also sets assignedTo, so it is checked on its own rather than by walking the table.
func CanAssign(current domain.TicketStatus) bool {
	switch current {
	case domain.TicketStatusSubmitted, domain.TicketStatusReopened, domain.TicketStatusUnderReview:
		return true
	}
	return false
}

// ActionType names a mutation on a ticket.
type ActionType string

const (
	ActionSubmit    ActionType = "submit"
	ActionReview    ActionType = "review"
	ActionAssign    ActionType = "assign"
	ActionStartWork ActionType = "start_work"
	ActionResolve   ActionType = "resolve"
	ActionVerify    ActionType = "verify"
	ActionReopen    ActionType = "reopen"
	ActionMerge     ActionType = "merge"
)

// Action is a requested mutation with its parameters.
type Action struct {
	Type       ActionType
	EngineerID string
	Notes      string
	AfterPhoto string
	Reason     string
	ParentID   string
	At         time.Time
}

// Submit files a draft.
func Submit(at time.Time) Action { return Action{Type: ActionSubmit, At: at} }

// Review moves a submitted report under review.
func Review(at time.Time) Action { return Action{Type: ActionReview, At: at} }

// Assign hands the ticket to engineerID.
func Assign(engineerID string, at time.Time) Action {
	return Action{Type: ActionAssign, EngineerID: engineerID, At: at}
}

// StartWork marks the assigned engineer on site.
func StartWork(at time.Time) Action { return Action{Type: ActionStartWork, At: at} }

// Resolve closes the work with notes and an optional after photo.
func Resolve(notes, afterPhoto string, at time.Time) Action {
	return Action{Type: ActionResolve, Notes: notes, AfterPhoto: afterPhoto, At: at}
}

// Verify records QA sign-off.
func Verify(at time.Time) Action { return Action{Type: ActionVerify, At: at} }

// Reopen sends a resolved ticket back for more work.
func Reopen(reason string, at time.Time) Action {
	return Action{Type: ActionReopen, Reason: reason, At: at}
}

// Merge closes the ticket as a duplicate of parentID.
func Merge(parentID string, at time.Time) Action {
	return Action{Type: ActionMerge, ParentID: parentID, At: at}
}

// TransitionError describes why Apply refused an action.
type TransitionError struct {
	From   domain.TicketStatus
	Action ActionType
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s from %s: %v", e.Action, e.From, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// Apply validates action against ticket's current state and returns the updated ticket.
// The input is never modified.
func Apply(ticket domain.Ticket, action Action) (domain.Ticket, error) {
	fail := func(err error) (domain.Ticket, error) {
		return ticket, &TransitionError{From: ticket.Status, Action: action.Type, Err: err}
	}
	if ticket.Kind == domain.TicketKindSocial {
		return fail(ErrNotAnIssue)
	}

	next := ticket
	next.Photos = append([]string(nil), ticket.Photos...)
	next.UpdatedAt = action.At

	switch action.Type {
	case ActionSubmit:
		if !CanTransitionTo(ticket.Status, domain.TicketStatusSubmitted) {
			return fail(ErrIllegal)
		}
		next.Status = domain.TicketStatusSubmitted

	case ActionReview:
		if !CanTransitionTo(ticket.Status, domain.TicketStatusUnderReview) {
			return fail(ErrIllegal)
		}
		next.Status = domain.TicketStatusUnderReview

	case ActionAssign:
		if !CanAssign(ticket.Status) {
			return fail(ErrIllegal)
		}
		engineerID := strings.TrimSpace(action.EngineerID)
		if engineerID == "" {
			return fail(ErrUnassigned)
		}
		next.Status = domain.TicketStatusAssigned
		next.AssignedTo = &engineerID

	case ActionStartWork:
		if !CanTransitionTo(ticket.Status, domain.TicketStatusInProgress) {
			return fail(ErrIllegal)
		}
		next.Status = domain.TicketStatusInProgress

	case ActionResolve:
		notes := strings.TrimSpace(action.Notes)
		photo := strings.TrimSpace(action.AfterPhoto)
		if notes == "" || photo == "" {
			return fail(ErrEvidenceRequired)
		}
		// resolving straight from assigned implies starting work; both edges must exist
		path := []domain.TicketStatus{domain.TicketStatusResolved}
		if ticket.Status == domain.TicketStatusAssigned {
			path = []domain.TicketStatus{domain.TicketStatusInProgress, domain.TicketStatusResolved}
		}
		if !walk(ticket.Status, path) {
			return fail(ErrIllegal)
		}
		at := action.At
		next.Status = domain.TicketStatusResolved
		next.ResolutionNotes = notes
		next.AfterPhoto = &photo
		next.ResolvedAt = &at

	case ActionVerify:
		if !CanTransitionTo(ticket.Status, domain.TicketStatusVerified) {
			return fail(ErrIllegal)
		}
		at := action.At
		next.Status = domain.TicketStatusVerified
		next.VerifiedAt = &at

	case ActionReopen:
		if !CanTransitionTo(ticket.Status, domain.TicketStatusReopened) {
			return fail(ErrIllegal)
		}
		reason := strings.TrimSpace(action.Reason)
		if reason == "" {
			return fail(ErrReasonRequired)
		}
		at := action.At
		next.Status = domain.TicketStatusReopened
		next.RejectionReason = reason
		next.ReopenedAt = &at

	case ActionMerge:
		parentID := strings.TrimSpace(action.ParentID)
		if ticket.Status == domain.TicketStatusMerged || parentID == "" || parentID == ticket.ID {
			return fail(ErrIllegal)
		}
		next.Status = domain.TicketStatusMerged
		next.MergedInto = &parentID
		next.ResolutionNotes = "Closed as duplicate of " + parentID

	default:
		return fail(ErrIllegal)
	}

	if requiresEngineer(next.Status) && (next.AssignedTo == nil || *next.AssignedTo == "") {
		return fail(ErrUnassigned)
	}
	return next, nil
}

func walk(from domain.TicketStatus, path []domain.TicketStatus) bool {
	current := from
	for _, step := range path {
		if !CanTransitionTo(current, step) {
			return false
		}
		current = step
	}
	return true
}

func requiresEngineer(status domain.TicketStatus) bool {
	switch status {
	case domain.TicketStatusAssigned, domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusVerified:
		return true
	}
	return false
}

// Statuses lists every known status.
func Statuses() []domain.TicketStatus {
	return []domain.TicketStatus{
		domain.TicketStatusDraft,
		domain.TicketStatusSubmitted,
		domain.TicketStatusAssigned,
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
		domain.TicketStatusVerified,
		domain.TicketStatusReopened,
		domain.TicketStatusUnderReview,
		domain.TicketStatusMerged,
	}
}
