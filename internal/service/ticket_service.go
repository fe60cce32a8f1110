package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streetfix/resolve-service/internal/cache"
	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/events"
	"github.com/streetfix/resolve-service/internal/repository"
	"github.com/streetfix/resolve-service/internal/workflow"
	apperrors "github.com/streetfix/resolve-service/pkg/util/errorutil"
)

const maxTitleLength = 200

// Viewer identifies who is reading.
type Viewer struct {
	UserID string
	Role   domain.Role
}

// TicketService coordinates ticket workflows. Every status change goes through
// workflow.Apply and is written conditionally on the status it was read in, together with
// its history entry and staged notifications.
type TicketService struct {
	tx         repository.Transactor
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	users      repository.UserRepository
	neighbors  repository.NeighborRepository
	notifier   *NotificationService
	userCache  cache.UserCache
	dispatcher events.Dispatcher
	logger     *zap.Logger
	referral   domain.ReferralPolicy
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Transactor   repository.Transactor
	TicketRepo   repository.TicketRepository
	HistoryRepo  repository.TicketHistoryRepository
	UserRepo     repository.UserRepository
	NeighborRepo repository.NeighborRepository
	Notifier     *NotificationService
	UserCache    cache.UserCache
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Referral     domain.ReferralPolicy
	Clock        func() time.Time
}

// PostInput describes a community feed post.
type PostInput struct {
	Title     string
	Body      string
	Photos    []string
	Latitude  float64
	Longitude float64
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{
		tx:         deps.Transactor,
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		users:      deps.UserRepo,
		neighbors:  deps.NeighborRepo,
		notifier:   deps.Notifier,
		userCache:  deps.UserCache,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		referral:   deps.Referral,
		now:        clock,
	}
}

// SubmitTicket files a report directly in submitted, notifies the citizen and the
// dispatchers, then counts the report towards the citizen's referral reward.
func (s *TicketService) SubmitTicket(ctx context.Context, userID string, input domain.NewTicketInput) (*domain.Ticket, error) {
	if err := validateTicketInput(input, true); err != nil {
		return nil, err
	}
	ticket := domain.NewTicket(userID, domain.TicketStatusSubmitted, input, s.now())
	ticket.ID = uuid.NewString()

	staged, err := s.create(ctx, ticket, string(workflow.ActionSubmit), submitNotices(ticket))
	if err != nil {
		return nil, err
	}
	s.publishCreated(ctx, userID, ticket, staged)
	s.recordReport(ctx, userID)
	return ticket, nil
}

// SaveDraft stores an unfinished report server side.
func (s *TicketService) SaveDraft(ctx context.Context, userID string, input domain.NewTicketInput) (*domain.Ticket, error) {
	if err := validateTicketInput(input, false); err != nil {
		return nil, err
	}
	ticket := domain.NewTicket(userID, domain.TicketStatusDraft, input, s.now())
	ticket.ID = uuid.NewString()

	if _, err := s.create(ctx, ticket, "draft", nil); err != nil {
		return nil, err
	}
	s.publishCreated(ctx, userID, ticket, 0)
	return ticket, nil
}

// SubmitDraft moves the caller's draft to submitted.
func (s *TicketService) SubmitDraft(ctx context.Context, userID, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.apply(ctx, change{
		ticketID: ticketID,
		actorID:  userID,
		action:   workflow.Submit(s.now()),
		guard: func(t *domain.Ticket) error {
			if t.UserID != userID {
				return apperrors.NewForbidden("only the author can submit a draft")
			}
			if strings.TrimSpace(t.Title) == "" {
				return apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
			}
			return nil
		},
		notices: func(_, after *domain.Ticket) []Notice { return submitNotices(after) },
	})
	if err != nil {
		return nil, err
	}
	s.recordReport(ctx, userID)
	return ticket, nil
}

// CreatePost publishes a community feed entry and tells the author's neighbors.
func (s *TicketService) CreatePost(ctx context.Context, userID string, input PostInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	now := s.now()
	post := domain.NewTicket(userID, domain.TicketStatusSubmitted, domain.NewTicketInput{
		Title:       title,
		Description: input.Body,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		Photos:      input.Photos,
	}, now)
	post.ID = uuid.NewString()
	post.Kind = domain.TicketKindSocial

	var staged int
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.tickets.Create(ctx, post); err != nil {
			return err
		}
		neighbors, err := s.neighbors.ListForUser(ctx, userID)
		if err != nil {
			return err
		}
		notices := make([]Notice, 0, len(neighbors))
		for _, n := range neighbors {
			notices = append(notices, ToUser(n.UserID, domain.NotificationSocial,
				"New post from a neighbor", post.Title).About(post.ID))
		}
		staged, err = s.notifier.Stage(ctx, notices...)
		return err
	})
	if err != nil {
		return nil, mapRepoError(err, "post", nil)
	}
	s.publishCreated(ctx, userID, post, staged)
	return post, nil
}

// AssignTicket gives the ticket to engineerID.
func (s *TicketService) AssignTicket(ctx context.Context, ticketID, engineerID, actorID string) (*domain.Ticket, error) {
	engineer, err := s.users.GetByID(ctx, engineerID)
	if err != nil {
		return nil, mapRepoError(err, "engineer", map[string]any{"engineer_id": engineerID})
	}
	if engineer.Role != domain.RoleEngineer {
		return nil, apperrors.NewValidationError("assignee is not an engineer", map[string]any{"engineer_id": engineerID})
	}
	return s.apply(ctx, change{
		ticketID: ticketID,
		actorID:  actorID,
		action:   workflow.Assign(engineerID, s.now()),
		notices: func(_, after *domain.Ticket) []Notice {
			return []Notice{
				ToUser(engineerID, domain.NotificationJob, "New job assigned", after.Title).About(after.ID),
				ToUser(after.UserID, domain.NotificationTicketUpdate, "Engineer en route",
					fmt.Sprintf("%s has been assigned to %q.", engineer.Name, after.Title)).About(after.ID),
			}
		},
	})
}

// AutoAssign picks an available engineer for the ticket and assigns it. An engineer whose
// zone contains the ticket wins; otherwise the nearest known location; otherwise the first
// available engineer.
func (s *TicketService) AutoAssign(ctx context.Context, ticketID, actorID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	engineers, err := s.users.ListAvailableEngineers(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	pick, ok := SelectEngineer(ticket.Location.Coordinate, engineers)
	if !ok {
		return nil, apperrors.NewConflict("no engineer is available", map[string]any{"ticket_id": ticketID})
	}
	s.logger.Info("auto-assign selected engineer",
		zap.String("ticket_id", ticketID),
		zap.String("engineer_id", pick.ID))
	return s.AssignTicket(ctx, ticketID, pick.ID, actorID)
}

// MarkUnderReview parks a submitted ticket for triage.
func (s *TicketService) MarkUnderReview(ctx context.Context, ticketID, actorID string) (*domain.Ticket, error) {
	return s.apply(ctx, change{
		ticketID: ticketID,
		actorID:  actorID,
		action:   workflow.Review(s.now()),
		notices: func(_, after *domain.Ticket) []Notice {
			return []Notice{
				ToUser(after.UserID, domain.NotificationTicketUpdate, "Report under review",
					fmt.Sprintf("%q is being reviewed by a dispatcher.", after.Title)).About(after.ID),
			}
		},
	})
}

// StartWork records that the assigned engineer is on the job.
func (s *TicketService) StartWork(ctx context.Context, ticketID, engineerID string) (*domain.Ticket, error) {
	return s.apply(ctx, change{
		ticketID: ticketID,
		actorID:  engineerID,
		action:   workflow.StartWork(s.now()),
		guard:    requireAssignee(engineerID),
		notices: func(_, after *domain.Ticket) []Notice {
			return []Notice{
				ToUser(after.UserID, domain.NotificationTicketUpdate, "Work started",
					fmt.Sprintf("Work on %q has started.", after.Title)).About(after.ID),
			}
		},
	})
}

// ResolveTicket closes the work with notes and an after photo, then asks QA to verify.
func (s *TicketService) ResolveTicket(ctx context.Context, ticketID, engineerID, notes, afterPhoto string) (*domain.Ticket, error) {
	return s.apply(ctx, change{
		ticketID: ticketID,
		actorID:  engineerID,
		action:   workflow.Resolve(notes, afterPhoto, s.now()),
		guard:    requireAssignee(engineerID),
		note:     notes,
		notices: func(_, after *domain.Ticket) []Notice {
			return []Notice{
				ToUser(after.UserID, domain.NotificationTicketUpdate, "Issue resolved",
					fmt.Sprintf("%q has been fixed: %s", after.Title, after.ResolutionNotes)).About(after.ID),
				ToRole(domain.RoleQA, domain.NotificationVerification, "Verification needed", after.Title).About(after.ID),
			}
		},
	})
}

// VerifyTicket confirms a resolved ticket. Any other status is refused.
func (s *TicketService) VerifyTicket(ctx context.Context, ticketID, actorID string) (*domain.Ticket, error) {
	return s.apply(ctx, change{
		ticketID: ticketID,
		actorID:  actorID,
		action:   workflow.Verify(s.now()),
		notices: func(_, after *domain.Ticket) []Notice {
			notices := []Notice{
				ToUser(after.UserID, domain.NotificationTicketUpdate, "Case closed",
					fmt.Sprintf("%q has been verified as fixed.", after.Title)).About(after.ID),
			}
			if after.AssignedTo != nil {
				notices = append(notices, ToUser(*after.AssignedTo, domain.NotificationJob, "Work verified", after.Title).About(after.ID))
			}
			return notices
		},
	})
}

// ReopenTicket sends a resolved ticket back to its engineer with a reason.
func (s *TicketService) ReopenTicket(ctx context.Context, ticketID, actorID, reason string) (*domain.Ticket, error) {
	return s.apply(ctx, change{
		ticketID: ticketID,
		actorID:  actorID,
		action:   workflow.Reopen(reason, s.now()),
		note:     reason,
		notices: func(_, after *domain.Ticket) []Notice {
			notices := []Notice{
				ToUser(after.UserID, domain.NotificationTicketUpdate, "Report reopened",
					fmt.Sprintf("%q needs more work.", after.Title)).About(after.ID),
			}
			if after.AssignedTo != nil {
				notices = append(notices, ToUser(*after.AssignedTo, domain.NotificationJob, "Job reopened",
					fmt.Sprintf("%q was rejected: %s", after.Title, after.RejectionReason)).About(after.ID))
			}
			return notices
		},
	})
}

// MergeTickets closes every duplicate into parentID. Either all duplicates are merged or
// none are.
func (s *TicketService) MergeTickets(ctx context.Context, parentID string, duplicateIDs []string, actorID string) ([]domain.Ticket, error) {
	parentID = strings.TrimSpace(parentID)
	ids := dedupe(duplicateIDs)
	if parentID == "" || len(ids) == 0 {
		return nil, apperrors.NewValidationError("a parent and at least one duplicate are required", nil)
	}
	for _, id := range ids {
		if id == parentID {
			return nil, apperrors.NewValidationError("a ticket cannot be merged into itself", map[string]any{"ticket_id": id})
		}
	}

	var (
		merged []domain.Ticket
		staged int
	)
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		merged = merged[:0]
		staged = 0

		parent, err := s.tickets.GetByID(ctx, parentID)
		if err != nil {
			return mapRepoError(err, "parent ticket", map[string]any{"ticket_id": parentID})
		}
		if parent.Status == domain.TicketStatusMerged || parent.Kind == domain.TicketKindSocial {
			return apperrors.NewConflict("parent ticket cannot absorb duplicates",
				map[string]any{"ticket_id": parentID, "current_status": parent.Status})
		}

		var notices []Notice
		for _, id := range ids {
			current, err := s.tickets.GetByID(ctx, id)
			if err != nil {
				return mapRepoError(err, "ticket", map[string]any{"ticket_id": id})
			}
			next, err := workflow.Apply(*current, workflow.Merge(parentID, s.now()))
			if err != nil {
				return mapTransitionError(err)
			}
			if err := s.tickets.UpdateIfStatus(ctx, &next, current.Status); err != nil {
				return mapRepoError(err, "ticket", map[string]any{"ticket_id": id})
			}
			if err := s.recordHistory(ctx, actorID, current.Status, &next, string(workflow.ActionMerge), next.ResolutionNotes); err != nil {
				return err
			}
			notices = append(notices, ToUser(next.UserID, domain.NotificationTicketUpdate, "Report merged",
				fmt.Sprintf("%q was closed as a duplicate of %q.", next.Title, parent.Title)).About(next.ID))
			merged = append(merged, next)
		}
		staged, err = s.notifier.Stage(ctx, notices...)
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketsMerged,
		TicketID: parentID,
		Actor:    events.Actor{UserID: actorID},
		Payload:  events.TicketsMergedPayload{ParentID: parentID, DuplicateIDs: ids},
		Staged:   staged,
	})
	return merged, nil
}

// GetTicket returns a ticket the viewer may see. Citizens see their own reports and any
// feed post; staff see everything.
func (s *TicketService) GetTicket(ctx context.Context, viewer Viewer, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if viewer.Role == domain.RoleCitizen && ticket.UserID != viewer.UserID && ticket.Kind != domain.TicketKindSocial {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// GetAllTickets lists reports, newest first. Merged tickets are hidden unless requested.
func (s *TicketService) GetAllTickets(ctx context.Context, includeMerged bool) ([]domain.Ticket, error) {
	return s.list(ctx, repository.TicketFilter{IncludeMerged: includeMerged})
}

// GetTicketsByStatus lists reports in any of statuses.
func (s *TicketService) GetTicketsByStatus(ctx context.Context, statuses ...domain.TicketStatus) ([]domain.Ticket, error) {
	return s.list(ctx, repository.TicketFilter{Statuses: statuses, IncludeMerged: true})
}

// GetEngineerJobs lists tickets held by engineerID, excluding merged ones.
func (s *TicketService) GetEngineerJobs(ctx context.Context, engineerID string) ([]domain.Ticket, error) {
	return s.list(ctx, repository.TicketFilter{AssignedTo: &engineerID})
}

// GetCitizenTickets lists every report filed by userID, merged ones included.
func (s *TicketService) GetCitizenTickets(ctx context.Context, userID string) ([]domain.Ticket, error) {
	return s.list(ctx, repository.TicketFilter{UserID: &userID, IncludeMerged: true})
}

// GetFeed lists community posts, newest first.
func (s *TicketService) GetFeed(ctx context.Context) ([]domain.Ticket, error) {
	all, err := s.list(ctx, repository.TicketFilter{IncludeSocial: true})
	if err != nil {
		return nil, err
	}
	posts := make([]domain.Ticket, 0, len(all))
	for _, t := range all {
		if t.Kind == domain.TicketKindSocial {
			posts = append(posts, t)
		}
	}
	return posts, nil
}

// GetHistory returns the audit trail of a ticket the viewer may see.
func (s *TicketService) GetHistory(ctx context.Context, viewer Viewer, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, viewer, ticketID); err != nil {
		return nil, err
	}
	history, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if history == nil {
		history = []domain.TicketHistory{}
	}
	return history, nil
}

func (s *TicketService) list(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// change describes one guarded mutation of a single ticket.
type change struct {
	ticketID string
	actorID  string
	action   workflow.Action
	note     string
	// guard runs against the freshly loaded ticket before the workflow does.
	guard   func(t *domain.Ticket) error
	notices func(before, after *domain.Ticket) []Notice
}

func (s *TicketService) apply(ctx context.Context, c change) (*domain.Ticket, error) {
	var (
		before domain.Ticket
		after  domain.Ticket
		staged int
	)
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.tickets.GetByID(ctx, c.ticketID)
		if err != nil {
			return mapRepoError(err, "ticket", map[string]any{"ticket_id": c.ticketID})
		}
		if c.guard != nil {
			if err := c.guard(current); err != nil {
				return err
			}
		}
		next, err := workflow.Apply(*current, c.action)
		if err != nil {
			return mapTransitionError(err)
		}
		if err := s.tickets.UpdateIfStatus(ctx, &next, current.Status); err != nil {
			return mapRepoError(err, "ticket", map[string]any{"ticket_id": c.ticketID})
		}
		if err := s.recordHistory(ctx, c.actorID, current.Status, &next, string(c.action.Type), c.note); err != nil {
			return err
		}
		if c.notices != nil {
			if staged, err = s.notifier.Stage(ctx, c.notices(current, &next)...); err != nil {
				return err
			}
		}
		before, after = *current, next
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketTransitioned,
		TicketID: after.ID,
		Actor:    events.Actor{UserID: c.actorID},
		Payload: events.TicketTransitionedPayload{
			Action:     string(c.action.Type),
			OldStatus:  before.Status,
			NewStatus:  after.Status,
			AssignedTo: after.AssignedTo,
		},
		Staged: staged,
	})
	return &after, nil
}

func (s *TicketService) create(ctx context.Context, ticket *domain.Ticket, action string, notices []Notice) (int, error) {
	var staged int
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return err
		}
		if err := s.recordHistory(ctx, ticket.UserID, "", ticket, action, ""); err != nil {
			return err
		}
		var err error
		staged, err = s.notifier.Stage(ctx, notices...)
		return err
	})
	if err != nil {
		return 0, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticket.ID})
	}
	return staged, nil
}

// recordReport runs the referral reward transaction for a submitted report. Its failure
// never fails the submission.
func (s *TicketService) recordReport(ctx context.Context, userID string) {
	var outcome domain.ReferralOutcome
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		outcome, err = s.users.RecordReport(ctx, userID, s.referral)
		if err != nil || !outcome.PaidOut {
			return err
		}
		_, err = s.notifier.Stage(ctx,
			ToUser(userID, domain.NotificationReferral, "Referral reward earned",
				fmt.Sprintf("You reached %d reports and earned %d points.", outcome.ReportCount, outcome.Reward)),
			ToUser(outcome.ReferrerID, domain.NotificationReferral, "Your referral paid off",
				fmt.Sprintf("Someone you invited met the report goal. You earned %d points.", outcome.Reward)),
		)
		return err
	})
	if err != nil {
		s.logger.Error("referral bookkeeping failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	s.invalidateUsers(ctx, userID, outcome.ReferrerID)
	if outcome.PaidOut {
		s.logger.Info("referral reward paid",
			zap.String("user_id", userID),
			zap.String("referrer_id", outcome.ReferrerID),
			zap.Int64("reward", outcome.Reward))
		s.publishEvent(ctx, events.Event{
			Type:    events.EventReferralPaid,
			Actor:   events.Actor{UserID: userID},
			Payload: events.ReferralPaidPayload{ReferrerID: outcome.ReferrerID, Reward: outcome.Reward},
			Staged:  2,
		})
	}
}

func (s *TicketService) invalidateUsers(ctx context.Context, ids ...string) {
	var keep []string
	for _, id := range ids {
		if id != "" {
			keep = append(keep, id)
		}
	}
	invalidate(ctx, s.userCache, s.logger, keep...)
}

func (s *TicketService) recordHistory(ctx context.Context, actorID string, from domain.TicketStatus, ticket *domain.Ticket, action, note string) error {
	if s.history == nil {
		return nil
	}
	entry := &domain.TicketHistory{
		TicketID:   ticket.ID,
		Action:     action,
		FromStatus: from,
		ToStatus:   ticket.Status,
		Note:       note,
		CreatedAt:  s.now(),
	}
	if actorID != "" {
		entry.ActorID = &actorID
	}
	return s.history.Create(ctx, entry)
}

func (s *TicketService) publishCreated(ctx context.Context, userID string, ticket *domain.Ticket, staged int) {
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.Actor{UserID: userID, Role: domain.RoleCitizen},
		Payload: events.TicketCreatedPayload{
			Kind:     ticket.Kind,
			Status:   ticket.Status,
			Category: ticket.Category,
			Title:    ticket.Title,
		},
		Staged: staged,
	})
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	publish(ctx, s.dispatcher, s.logger, s.now, event)
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, now func() time.Time, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now()
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func submitNotices(ticket *domain.Ticket) []Notice {
	return []Notice{
		ToUser(ticket.UserID, domain.NotificationTicketUpdate, "Report received",
			fmt.Sprintf("Thanks! %q has been submitted.", ticket.Title)).About(ticket.ID),
		ToRole(domain.RoleDispatcher, domain.NotificationNewTicket, "New report", ticket.Title).About(ticket.ID),
	}
}

func requireAssignee(engineerID string) func(*domain.Ticket) error {
	return func(t *domain.Ticket) error {
		if !t.IsAssignedTo(engineerID) {
			return apperrors.NewForbidden("ticket is not assigned to you")
		}
		return nil
	}
}

func validateTicketInput(input domain.NewTicketInput, complete bool) error {
	title := strings.TrimSpace(input.Title)
	if complete && title == "" {
		return apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if len(title) > maxTitleLength {
		return apperrors.NewValidationError("title is too long", map[string]any{"field": "title", "max": maxTitleLength})
	}
	if input.Priority != "" && !input.Priority.Valid() {
		return apperrors.NewValidationError("unknown priority", map[string]any{"field": "priority"})
	}
	if math.IsNaN(input.Latitude) || input.Latitude < -90 || input.Latitude > 90 {
		return apperrors.NewValidationError("latitude out of range", map[string]any{"field": "latitude"})
	}
	if math.IsNaN(input.Longitude) || input.Longitude < -180 || input.Longitude > 180 {
		return apperrors.NewValidationError("longitude out of range", map[string]any{"field": "longitude"})
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
