package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streetfix/resolve-service/internal/cache"
	"github.com/streetfix/resolve-service/internal/config"
	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/repository"
	apperrors "github.com/streetfix/resolve-service/pkg/util/errorutil"
)

// StaffInput describes a dispatcher, engineer or QA account.
type StaffInput struct {
	Role     domain.Role
	Name     string
	Email    string
	Password string
}

// ZoneAssignment binds a coverage polygon to an engineer by id or email.
type ZoneAssignment struct {
	Engineer string
	Zone     domain.Zone
}

// StaffService manages staff accounts and engineer coverage.
type StaffService struct {
	tx         repository.Transactor
	users      repository.UserRepository
	userCache  cache.UserCache
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// StaffDependencies encapsulates repositories required for staff management.
type StaffDependencies struct {
	Transactor repository.Transactor
	UserRepo   repository.UserRepository
	UserCache  cache.UserCache
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewStaffService constructs the service.
func NewStaffService(cfg config.Config, deps StaffDependencies) *StaffService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &StaffService{
		tx:         deps.Transactor,
		users:      deps.UserRepo,
		userCache:  deps.UserCache,
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     logger,
		now:        clock,
	}
}

// CreateStaff adds a staff account. Engineers start Available.
func (s *StaffService) CreateStaff(ctx context.Context, input StaffInput) (*domain.User, error) {
	if !input.Role.Valid() || input.Role == domain.RoleCitizen {
		return nil, apperrors.NewValidationError("role must be dispatcher, engineer or qa", map[string]any{"field": "role"})
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:             uuid.NewString(),
		Email:          email,
		PasswordHash:   hash,
		Role:           input.Role,
		Name:           name,
		ReferralStatus: domain.ReferralStatusNone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if input.Role == domain.RoleEngineer {
		user.EngineerStatus = domain.EngineerAvailable
	}
	if err := createAccount(ctx, s.tx, s.users, user); err != nil {
		return nil, err
	}
	s.logger.Info("staff account created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// BootstrapDispatcher creates the first dispatcher when email is configured and unused.
func (s *StaffService) BootstrapDispatcher(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	_, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	_, err = s.CreateStaff(ctx, StaffInput{
		Role:     domain.RoleDispatcher,
		Name:     "Dispatcher",
		Email:    email,
		Password: password,
	})
	return err
}

// ListStaff returns the accounts holding role, oldest first.
func (s *StaffService) ListStaff(ctx context.Context, role domain.Role) ([]domain.User, error) {
	if !role.Valid() || role == domain.RoleCitizen {
		return nil, apperrors.NewValidationError("unknown staff role", map[string]any{"field": "role"})
	}
	users, err := s.users.ListByRole(ctx, role)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// SetZone replaces the coverage polygon of an engineer. An empty zone clears it.
func (s *StaffService) SetZone(ctx context.Context, engineerID string, zone domain.Zone) (*domain.User, error) {
	if len(zone) > 0 && len(zone) < 3 {
		return nil, apperrors.NewValidationError("a zone needs at least three vertices", map[string]any{"field": "zone"})
	}
	for _, v := range zone {
		if v.Latitude < -90 || v.Latitude > 90 || v.Longitude < -180 || v.Longitude > 180 {
			return nil, apperrors.NewValidationError("zone vertex out of range", map[string]any{"field": "zone"})
		}
	}
	engineer, err := s.users.GetByID(ctx, engineerID)
	if err != nil {
		return nil, mapRepoError(err, "engineer", map[string]any{"engineer_id": engineerID})
	}
	if engineer.Role != domain.RoleEngineer {
		return nil, apperrors.NewValidationError("zones apply to engineers only", map[string]any{"engineer_id": engineerID})
	}
	engineer.Zone = zone
	engineer.UpdatedAt = s.now()
	if err := s.users.Update(ctx, engineer); err != nil {
		return nil, mapRepoError(err, "engineer", map[string]any{"engineer_id": engineerID})
	}
	invalidate(ctx, s.userCache, s.logger, engineer.ID)
	return engineer, nil
}

// ApplyZones seeds coverage polygons. Unknown engineers are logged and skipped.
func (s *StaffService) ApplyZones(ctx context.Context, assignments []ZoneAssignment) (int, error) {
	applied := 0
	for _, a := range assignments {
		ref := strings.TrimSpace(a.Engineer)
		var (
			engineer *domain.User
			err      error
		)
		if strings.Contains(ref, "@") {
			engineer, err = s.users.GetByEmail(ctx, strings.ToLower(ref))
		} else {
			engineer, err = s.users.GetByID(ctx, ref)
		}
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("zone seed names an unknown engineer", zap.String("engineer", ref))
			continue
		}
		if err != nil {
			return applied, err
		}
		if _, err := s.SetZone(ctx, engineer.ID, a.Zone); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func invalidate(ctx context.Context, c cache.UserCache, logger *zap.Logger, ids ...string) {
	if c == nil {
		return
	}
	if err := c.Invalidate(ctx, ids...); err != nil {
		logger.Warn("user cache invalidation failed", zap.Strings("user_ids", ids), zap.Error(err))
	}
}
