package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/streetfix/resolve-service/internal/cache"
	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/repository"
	apperrors "github.com/streetfix/resolve-service/pkg/util/errorutil"
)

// Profile is what one account sees of another.
type Profile struct {
	User       domain.User
	IsNeighbor bool
}

// UserService serves account reads through the user cache and the self-service writes
// that must evict it.
type UserService struct {
	users     repository.UserRepository
	neighbors repository.NeighborRepository
	userCache cache.UserCache
	logger    *zap.Logger
	now       func() time.Time
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	UserRepo     repository.UserRepository
	NeighborRepo repository.NeighborRepository
	UserCache    cache.UserCache
	Logger       *zap.Logger
	Clock        func() time.Time
}

// NewUserService creates the service.
func NewUserService(deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &UserService{
		users:     deps.UserRepo,
		neighbors: deps.NeighborRepo,
		userCache: deps.UserCache,
		logger:    logger,
		now:       clock,
	}
}

// GetUser returns an account, preferring the cache. Cache failures fall through to the
// repository.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if s.userCache != nil {
		user, ok, err := s.userCache.Get(ctx, id)
		if err != nil {
			s.logger.Warn("user cache read failed", zap.String("user_id", id), zap.Error(err))
		} else if ok {
			return user, nil
		}
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "user", map[string]any{"user_id": id})
	}
	if s.userCache != nil {
		if err := s.userCache.Set(ctx, user); err != nil {
			s.logger.Warn("user cache write failed", zap.String("user_id", id), zap.Error(err))
		}
	}
	return user, nil
}

// ViewProfile returns userID as seen by viewerID. The neighbor count shown is always the
// true edge count; when the owner looks at their own profile a drifted stored counter is
// corrected.
func (s *UserService) ViewProfile(ctx context.Context, viewerID, userID string) (*Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "user", map[string]any{"user_id": userID})
	}
	actual, err := s.neighbors.CountForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if actual != user.NeighborCount {
		if viewerID == userID {
			if err := s.users.SetNeighborCount(ctx, userID, actual); err != nil {
				s.logger.Warn("neighbor counter repair failed", zap.String("user_id", userID), zap.Error(err))
			} else {
				s.logger.Info("neighbor counter repaired",
					zap.String("user_id", userID),
					zap.Int("stored", user.NeighborCount),
					zap.Int("actual", actual))
				invalidate(ctx, s.userCache, s.logger, userID)
			}
		}
		user.NeighborCount = actual
	}

	profile := &Profile{User: *user}
	if viewerID != userID {
		profile.IsNeighbor, err = s.neighbors.Exists(ctx, viewerID, userID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	return profile, nil
}

// SetEngineerStatus changes the caller's availability.
func (s *UserService) SetEngineerStatus(ctx context.Context, engineerID string, status domain.EngineerStatus) (*domain.User, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("status must be Available, Busy or Holiday", map[string]any{"field": "status"})
	}
	return s.updateEngineer(ctx, engineerID, func(u *domain.User) { u.EngineerStatus = status })
}

// UpdateLocation records the caller's last known position.
func (s *UserService) UpdateLocation(ctx context.Context, engineerID string, at domain.Coordinate) (*domain.User, error) {
	if at.Latitude < -90 || at.Latitude > 90 || at.Longitude < -180 || at.Longitude > 180 {
		return nil, apperrors.NewValidationError("location out of range", map[string]any{"field": "location"})
	}
	return s.updateEngineer(ctx, engineerID, func(u *domain.User) {
		loc := at
		u.LastKnownLocation = &loc
	})
}

func (s *UserService) updateEngineer(ctx context.Context, engineerID string, mutate func(*domain.User)) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, engineerID)
	if err != nil {
		return nil, mapRepoError(err, "user", map[string]any{"user_id": engineerID})
	}
	if user.Role != domain.RoleEngineer {
		return nil, apperrors.NewForbidden("engineer role required")
	}
	mutate(user)
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, mapRepoError(err, "user", map[string]any{"user_id": engineerID})
	}
	invalidate(ctx, s.userCache, s.logger, engineerID)
	return user, nil
}
