package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streetfix/resolve-service/internal/auth"
	"github.com/streetfix/resolve-service/internal/config"
	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/repository"
	apperrors "github.com/streetfix/resolve-service/pkg/util/errorutil"
)

const (
	minPasswordLength    = 8
	referralCodeAttempts = 5
)

// RegisterInput is a citizen sign-up.
type RegisterInput struct {
	Name         string
	Email        string
	Username     string
	Password     string
	ReferralCode string
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	tx         repository.Transactor
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	Transactor repository.Transactor
	UserRepo   repository.UserRepository
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &AuthService{
		tx:         deps.Transactor,
		users:      deps.UserRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     logger,
		now:        clock,
	}
}

// Register creates a citizen account. The account and its username claim are written in
// one transaction, so a lost username race leaves no account behind.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, domain.Token, error) {
	name := strings.TrimSpace(input.Name)
	username := strings.ToLower(strings.TrimSpace(input.Username))
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, domain.Token{}, err
	}
	if name == "" {
		return nil, domain.Token{}, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	if !validUsername(username) {
		return nil, domain.Token{}, apperrors.NewValidationError("username must be 3-30 letters, digits or underscores",
			map[string]any{"field": "username"})
	}
	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, domain.Token{}, err
	}

	now := s.now()
	user := &domain.User{
		ID:             uuid.NewString(),
		Email:          email,
		PasswordHash:   hash,
		Role:           domain.RoleCitizen,
		Name:           name,
		Username:       &username,
		ReferralStatus: domain.ReferralStatusNone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if code := strings.TrimSpace(input.ReferralCode); code != "" {
		referrer, err := s.users.GetByReferralCode(ctx, strings.ToUpper(code))
		if err != nil {
			return nil, domain.Token{}, mapRepoError(err, "referral code", map[string]any{"referral_code": code})
		}
		user.ReferredBy = &referrer.ID
		user.ReferralStatus = domain.ReferralStatusPending
	}

	if err := createAccount(ctx, s.tx, s.users, user); err != nil {
		return nil, domain.Token{}, err
	}
	s.logger.Info("citizen registered",
		zap.String("user_id", user.ID),
		zap.Bool("referred", user.ReferredBy != nil))

	token, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, domain.Token{}, apperrors.NewInternalError(err)
	}
	return user, token, nil
}

// Login authenticates any account.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, domain.Token, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.Token{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, domain.Token{}, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, domain.Token{}, apperrors.NewUnauthorized("invalid credentials")
	}
	token, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, domain.Token{}, apperrors.NewInternalError(err)
	}
	return user, token, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// createAccount inserts user with a fresh referral code, retrying on code collisions.
func createAccount(ctx context.Context, tx repository.Transactor, users repository.UserRepository, user *domain.User) error {
	var err error
	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		user.ReferralCode = newReferralCode(user.Name)
		err = tx.RunInTransaction(ctx, func(ctx context.Context) error {
			if existing, err := users.GetByEmail(ctx, user.Email); err == nil && existing != nil {
				return errEmailTaken
			} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			if err := users.Create(ctx, user); err != nil {
				return err
			}
			if user.Username != nil {
				if err := users.ClaimUsername(ctx, *user.Username, user.ID); err != nil {
					if errors.Is(err, repository.ErrDuplicate) {
						return errUsernameTaken
					}
					return err
				}
			}
			return nil
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, errEmailTaken):
			return apperrors.NewConflict("email already registered", map[string]any{"field": "email"})
		case errors.Is(err, errUsernameTaken):
			return apperrors.NewConflict("username already taken", map[string]any{"field": "username"})
		case errors.Is(err, repository.ErrDuplicate):
			// email or referral code raced another insert; a new code settles the latter
			continue
		default:
			return apperrors.MapError(err)
		}
	}
	return apperrors.NewConflict("account already exists", map[string]any{"field": "email"})
}

var (
	errEmailTaken    = errors.New("email taken")
	errUsernameTaken = errors.New("username taken")
)

func (s *AuthService) hashPassword(password string) (string, error) {
	return hashPassword(password, s.bcryptCost)
}

func hashPassword(password string, cost int) (string, error) {
	if len(password) < minPasswordLength {
		return "", apperrors.NewValidationError("password is too short",
			map[string]any{"field": "password", "min": minPasswordLength})
	}
	hash, err := auth.HashPassword(password, cost)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", apperrors.NewValidationError("password is too long",
			map[string]any{"field": "password", "max": 72})
	}
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return hash, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Address != strings.TrimSpace(raw) {
		return "", apperrors.NewValidationError("email is invalid", map[string]any{"field": "email"})
	}
	return strings.ToLower(addr.Address), nil
}

func validUsername(username string) bool {
	if len(username) < 3 || len(username) > 30 {
		return false
	}
	for _, r := range username {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// newReferralCode derives a code from up to four letters of name plus a random suffix.
func newReferralCode(name string) string {
	var prefix []rune
	for _, r := range strings.ToUpper(name) {
		if r <= unicode.MaxASCII && unicode.IsLetter(r) {
			prefix = append(prefix, r)
			if len(prefix) == 4 {
				break
			}
		}
	}
	if len(prefix) == 0 {
		prefix = []rune("USER")
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return string(prefix) + suffix
}
