package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/persistence"
)

// UserRepository defines persistence access for accounts of every role.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	// Update writes the profile columns: name, engineer status, last location and zone.
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByReferralCode(ctx context.Context, code string) (*domain.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
	ListAvailableEngineers(ctx context.Context) ([]domain.User, error)
	// ClaimUsername registers username for userID, failing with ErrDuplicate when taken.
	ClaimUsername(ctx context.Context, username, userID string) error
	// RecordReport counts one submitted report and pays the referral reward when the
	// policy threshold is crossed. The read and both credits happen in one transaction.
	RecordReport(ctx context.Context, userID string, policy domain.ReferralPolicy) (domain.ReferralOutcome, error)
	AdjustNeighborCount(ctx context.Context, userID string, delta int) error
	SetNeighborCount(ctx context.Context, userID string, count int) error
}

type userRepository struct {
	pool *pgxpool.Pool
	tx   *persistence.TransactionManager
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool, tx: persistence.NewTransactionManager(pool)}
}

const userColumns = `id, email, password_hash, role, name, username, balance, report_count, referral_code,
               referred_by, referral_status, neighbor_count, engineer_status, last_latitude, last_longitude,
               zone, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	lat, lng := splitCoordinate(user.LastKnownLocation)
	const query = `
        INSERT INTO users (` + userColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`
	_, err := persistence.QuerierFromContext(ctx, r.pool).Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Name,
		user.Username,
		user.Balance,
		user.ReportCount,
		user.ReferralCode,
		user.ReferredBy,
		user.ReferralStatus,
		user.NeighborCount,
		user.EngineerStatus,
		lat,
		lng,
		user.Zone,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return translate(err)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	lat, lng := splitCoordinate(user.LastKnownLocation)
	const query = `
        UPDATE users SET name=$1, engineer_status=$2, last_latitude=$3, last_longitude=$4, zone=$5, updated_at=$6
        WHERE id=$7`
	cmd, err := persistence.QuerierFromContext(ctx, r.pool).Exec(ctx, query,
		user.Name,
		user.EngineerStatus,
		lat,
		lng,
		user.Zone,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

func (r *userRepository) GetByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE referral_code=$1`, code)
}

func (r *userRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE role=$1 ORDER BY created_at ASC, id ASC`, role)
}

func (r *userRepository) ListAvailableEngineers(ctx context.Context) ([]domain.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE role=$1 AND engineer_status=$2 ORDER BY created_at ASC, id ASC`,
		domain.RoleEngineer, domain.EngineerAvailable)
}

func (r *userRepository) ClaimUsername(ctx context.Context, username, userID string) error {
	q := persistence.QuerierFromContext(ctx, r.pool)
	if _, err := q.Exec(ctx, `INSERT INTO username_claims (username, user_id) VALUES ($1, $2)`, username, userID); err != nil {
		return translate(err)
	}
	_, err := q.Exec(ctx, `UPDATE users SET username=$1 WHERE id=$2`, username, userID)
	return translate(err)
}

func (r *userRepository) RecordReport(ctx context.Context, userID string, policy domain.ReferralPolicy) (domain.ReferralOutcome, error) {
	var outcome domain.ReferralOutcome
	err := r.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		q := persistence.QuerierFromContext(ctx, r.pool)

		var (
			count      int
			referredBy *string
			status     domain.ReferralStatus
		)
		if err := q.QueryRow(ctx,
			`SELECT report_count, referred_by, referral_status FROM users WHERE id=$1 FOR UPDATE`, userID,
		).Scan(&count, &referredBy, &status); err != nil {
			return translate(err)
		}

		count++
		outcome = domain.ReferralOutcome{ReportCount: count}

		if count >= policy.Threshold && status == domain.ReferralStatusPending && referredBy != nil && *referredBy != "" {
			cmd, err := q.Exec(ctx, `UPDATE users SET balance = balance + $1, updated_at = NOW() WHERE id=$2`,
				policy.Reward, *referredBy)
			if err != nil {
				return err
			}
			if cmd.RowsAffected() == 0 {
				return fmt.Errorf("referrer %s: %w", *referredBy, ErrNotFound)
			}
			if _, err := q.Exec(ctx,
				`UPDATE users SET report_count=$1, balance = balance + $2, referral_status=$3, updated_at = NOW() WHERE id=$4`,
				count, policy.Reward, domain.ReferralStatusCompleted, userID,
			); err != nil {
				return err
			}
			outcome.PaidOut = true
			outcome.ReferrerID = *referredBy
			outcome.Reward = policy.Reward
			return nil
		}

		_, err := q.Exec(ctx, `UPDATE users SET report_count=$1, updated_at = NOW() WHERE id=$2`, count, userID)
		return err
	})
	if err != nil {
		return domain.ReferralOutcome{}, err
	}
	return outcome, nil
}

func (r *userRepository) AdjustNeighborCount(ctx context.Context, userID string, delta int) error {
	cmd, err := persistence.QuerierFromContext(ctx, r.pool).Exec(ctx,
		`UPDATE users SET neighbor_count = GREATEST(neighbor_count + $1, 0) WHERE id=$2`, delta, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) SetNeighborCount(ctx context.Context, userID string, count int) error {
	cmd, err := persistence.QuerierFromContext(ctx, r.pool).Exec(ctx,
		`UPDATE users SET neighbor_count=$1 WHERE id=$2`, count, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	row := persistence.QuerierFromContext(ctx, r.pool).QueryRow(ctx, query, arg)
	user, err := scanUser(row)
	if err != nil {
		return nil, translate(err)
	}
	return user, nil
}

func (r *userRepository) list(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := persistence.QuerierFromContext(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user     domain.User
		lat, lng *float64
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Name,
		&user.Username,
		&user.Balance,
		&user.ReportCount,
		&user.ReferralCode,
		&user.ReferredBy,
		&user.ReferralStatus,
		&user.NeighborCount,
		&user.EngineerStatus,
		&lat,
		&lng,
		&user.Zone,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		user.LastKnownLocation = &domain.Coordinate{Latitude: *lat, Longitude: *lng}
	}
	return &user, nil
}

func splitCoordinate(c *domain.Coordinate) (*float64, *float64) {
	if c == nil {
		return nil, nil
	}
	lat, lng := c.Latitude, c.Longitude
	return &lat, &lng
}
