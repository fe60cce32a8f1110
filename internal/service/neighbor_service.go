package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streetfix/resolve-service/internal/cache"
	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/events"
	"github.com/streetfix/resolve-service/internal/repository"
	apperrors "github.com/streetfix/resolve-service/pkg/util/errorutil"
)

// Neighbor graph changes carried in events.
const (
	NeighborRequested = "requested"
	NeighborAdded     = "added"
	NeighborRemoved   = "removed"
)

// NeighborService manages requests and the neighbor graph. Each relationship is one edge
// written together with both counters in a single transaction.
type NeighborService struct {
	tx         repository.Transactor
	requests   repository.FriendRequestRepository
	neighbors  repository.NeighborRepository
	users      repository.UserRepository
	notifier   *NotificationService
	userCache  cache.UserCache
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NeighborDependencies bundles collaborators for the neighbor service.
type NeighborDependencies struct {
	Transactor   repository.Transactor
	RequestRepo  repository.FriendRequestRepository
	NeighborRepo repository.NeighborRepository
	UserRepo     repository.UserRepository
	Notifier     *NotificationService
	UserCache    cache.UserCache
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Clock        func() time.Time
}

// NewNeighborService creates the service.
func NewNeighborService(deps NeighborDependencies) *NeighborService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &NeighborService{
		tx:         deps.Transactor,
		requests:   deps.RequestRepo,
		neighbors:  deps.NeighborRepo,
		users:      deps.UserRepo,
		notifier:   deps.Notifier,
		userCache:  deps.UserCache,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        clock,
	}
}

// SendRequest invites toID to become fromID's neighbor.
func (s *NeighborService) SendRequest(ctx context.Context, fromID, toID string) (*domain.FriendRequest, error) {
	if fromID == toID {
		return nil, apperrors.NewValidationError("cannot send a request to yourself", nil)
	}
	from, err := s.users.GetByID(ctx, fromID)
	if err != nil {
		return nil, mapRepoError(err, "user", map[string]any{"user_id": fromID})
	}
	to, err := s.users.GetByID(ctx, toID)
	if err != nil {
		return nil, mapRepoError(err, "user", map[string]any{"user_id": toID})
	}
	for _, u := range []*domain.User{from, to} {
		if u.Role != domain.RoleCitizen {
			return nil, apperrors.NewValidationError("neighbors must both be citizens",
				map[string]any{"user_id": u.ID, "role": u.Role})
		}
	}

	req := &domain.FriendRequest{
		ID:        uuid.NewString(),
		FromID:    from.ID,
		FromName:  from.Name,
		ToID:      to.ID,
		ToName:    to.Name,
		Status:    domain.FriendRequestPending,
		CreatedAt: s.now(),
	}
	var staged int
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		already, err := s.neighbors.Exists(ctx, fromID, toID)
		if err != nil {
			return err
		}
		if already {
			return apperrors.NewConflict("already neighbors", map[string]any{"user_id": toID})
		}
		if err := s.requests.Create(ctx, req); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.NewConflict("already sent", map[string]any{"user_id": toID})
			}
			return err
		}
		staged, err = s.notifier.Stage(ctx,
			ToUser(to.ID, domain.NotificationSocial, "New neighbor request",
				fmt.Sprintf("%s wants to be your neighbor.", from.Name)),
			ToUser(from.ID, domain.NotificationSocial, "Request sent",
				fmt.Sprintf("Your neighbor request to %s was sent.", to.Name)),
		)
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.kick(ctx, fromID, NeighborRequested, toID, staged)
	return req, nil
}

// AcceptRequest turns a pending request into a neighbor edge. Only the recipient may
// accept.
func (s *NeighborService) AcceptRequest(ctx context.Context, requestID, accepterID string) (*domain.Neighbor, error) {
	var (
		neighbor domain.Neighbor
		req      *domain.FriendRequest
		staged   int
	)
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		req, err = s.requests.GetByID(ctx, requestID)
		if err != nil {
			return mapRepoError(err, "neighbor request", map[string]any{"request_id": requestID})
		}
		if req.ToID != accepterID {
			return apperrors.NewForbidden("only the recipient can accept a request")
		}
		if req.Status != domain.FriendRequestPending {
			return apperrors.NewConflict("request is no longer pending", map[string]any{"status": req.Status})
		}
		if err := s.requests.Delete(ctx, req.ID); err != nil {
			return mapRepoError(err, "neighbor request", map[string]any{"request_id": requestID})
		}
		// the reverse invitation, if any, is settled by this acceptance
		if reverse, err := s.requests.FindByPair(ctx, req.ToID, req.FromID); err == nil {
			if err := s.requests.Delete(ctx, reverse.ID); err != nil {
				return err
			}
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		edge := domain.NewNeighborEdge(req.FromID, req.ToID, s.now())
		if err := s.neighbors.Create(ctx, edge); err != nil {
			return mapRepoError(err, "neighbor", map[string]any{"user_id": req.FromID})
		}
		for _, id := range []string{req.FromID, req.ToID} {
			if err := s.users.AdjustNeighborCount(ctx, id, 1); err != nil {
				return mapRepoError(err, "user", map[string]any{"user_id": id})
			}
		}
		neighbor = domain.Neighbor{UserID: req.FromID, Name: req.FromName, Since: edge.CreatedAt}

		staged, err = s.notifier.Stage(ctx,
			ToUser(req.FromID, domain.NotificationSocial, "Request accepted",
				fmt.Sprintf("%s is now your neighbor.", req.ToName)),
			ToUser(req.ToID, domain.NotificationSocial, "New neighbor",
				fmt.Sprintf("You and %s are now neighbors.", req.FromName)),
		)
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	invalidate(ctx, s.userCache, s.logger, req.FromID, req.ToID)
	s.kick(ctx, accepterID, NeighborAdded, req.FromID, staged)
	return &neighbor, nil
}

// DeclineRequest marks a pending request declined. Only the recipient may decline.
func (s *NeighborService) DeclineRequest(ctx context.Context, requestID, userID string) (*domain.FriendRequest, error) {
	var req *domain.FriendRequest
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		req, err = s.requests.GetByID(ctx, requestID)
		if err != nil {
			return mapRepoError(err, "neighbor request", map[string]any{"request_id": requestID})
		}
		if req.ToID != userID {
			return apperrors.NewForbidden("only the recipient can decline a request")
		}
		if req.Status != domain.FriendRequestPending {
			return apperrors.NewConflict("request is no longer pending", map[string]any{"status": req.Status})
		}
		req.Status = domain.FriendRequestDeclined
		return s.requests.UpdateStatus(ctx, req.ID, req.Status)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return req, nil
}

// ClearRequest removes a declined request so the pair may try again. Either party may
// clear it.
func (s *NeighborService) ClearRequest(ctx context.Context, requestID, userID string) error {
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		req, err := s.requests.GetByID(ctx, requestID)
		if err != nil {
			return mapRepoError(err, "neighbor request", map[string]any{"request_id": requestID})
		}
		if req.FromID != userID && req.ToID != userID {
			return apperrors.NewForbidden("not a party to this request")
		}
		if req.Status != domain.FriendRequestDeclined {
			return apperrors.NewConflict("only declined requests can be cleared", map[string]any{"status": req.Status})
		}
		return s.requests.Delete(ctx, req.ID)
	})
	return apperrors.MapError(err)
}

// RemoveNeighbor deletes the edge between userID and neighborID and tells the removed
// party.
func (s *NeighborService) RemoveNeighbor(ctx context.Context, userID, neighborID string) error {
	var staged int
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		removed, err := s.neighbors.Delete(ctx, userID, neighborID)
		if err != nil {
			return err
		}
		if !removed {
			return apperrors.NewNotFound("neighbor", map[string]any{"user_id": neighborID})
		}
		for _, id := range []string{userID, neighborID} {
			if err := s.users.AdjustNeighborCount(ctx, id, -1); err != nil {
				return mapRepoError(err, "user", map[string]any{"user_id": id})
			}
		}
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return mapRepoError(err, "user", map[string]any{"user_id": userID})
		}
		staged, err = s.notifier.Stage(ctx, ToUser(neighborID, domain.NotificationSocial, "Neighbor removed",
			fmt.Sprintf("%s is no longer your neighbor.", user.Name)))
		return err
	})
	if err != nil {
		return apperrors.MapError(err)
	}
	invalidate(ctx, s.userCache, s.logger, userID, neighborID)
	s.kick(ctx, userID, NeighborRemoved, neighborID, staged)
	return nil
}

// ListNeighbors returns the accounts sharing an edge with userID, newest first.
func (s *NeighborService) ListNeighbors(ctx context.Context, userID string) ([]domain.Neighbor, error) {
	list, err := s.neighbors.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if list == nil {
		list = []domain.Neighbor{}
	}
	return list, nil
}

// ListRequests returns requests addressed to userID when incoming, else those it sent.
func (s *NeighborService) ListRequests(ctx context.Context, userID string, incoming bool) ([]domain.FriendRequest, error) {
	list, err := s.requests.ListForUser(ctx, userID, incoming)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if list == nil {
		list = []domain.FriendRequest{}
	}
	return list, nil
}

func (s *NeighborService) kick(ctx context.Context, actorID, change, otherID string, staged int) {
	publish(ctx, s.dispatcher, s.logger, s.now, events.Event{
		Type:    events.EventNeighborChanged,
		Actor:   events.Actor{UserID: actorID},
		Payload: events.NeighborChangedPayload{Change: change, OtherID: otherID},
		Staged:  staged,
	})
}
