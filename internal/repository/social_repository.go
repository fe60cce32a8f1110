package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/persistence"
)

// FriendRequestRepository persists neighbor invitations. At most one request exists per
// ordered (from, to) pair; Create returns ErrDuplicate otherwise.
type FriendRequestRepository interface {
	Create(ctx context.Context, req *domain.FriendRequest) error
	GetByID(ctx context.Context, id string) (*domain.FriendRequest, error)
	FindByPair(ctx context.Context, fromID, toID string) (*domain.FriendRequest, error)
	UpdateStatus(ctx context.Context, id string, status domain.FriendRequestStatus) error
	Delete(ctx context.Context, id string) error
	// ListForUser returns requests addressed to userID when incoming, else those it sent.
	ListForUser(ctx context.Context, userID string, incoming bool) ([]domain.FriendRequest, error)
}

// NeighborRepository persists the single edge backing each neighbor relationship.
type NeighborRepository interface {
	Create(ctx context.Context, edge domain.NeighborEdge) error
	// Delete removes the edge between a and b and reports whether one existed.
	Delete(ctx context.Context, a, b string) (bool, error)
	Exists(ctx context.Context, a, b string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Neighbor, error)
	CountForUser(ctx context.Context, userID string) (int, error)
}

type friendRequestRepository struct {
	pool *pgxpool.Pool
}

// NewFriendRequestRepository builds repository.
func NewFriendRequestRepository(pool *pgxpool.Pool) FriendRequestRepository {
	return &friendRequestRepository{pool: pool}
}

const friendRequestColumns = `id, from_id, from_name, to_id, to_name, status, created_at`

func (r *friendRequestRepository) Create(ctx context.Context, req *domain.FriendRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	_, err := persistence.QuerierFromContext(ctx, r.pool).Exec(ctx,
		`INSERT INTO friend_requests (`+friendRequestColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		req.ID, req.FromID, req.FromName, req.ToID, req.ToName, req.Status, req.CreatedAt)
	return translate(err)
}

func (r *friendRequestRepository) GetByID(ctx context.Context, id string) (*domain.FriendRequest, error) {
	row := persistence.QuerierFromContext(ctx, r.pool).QueryRow(ctx,
		`SELECT `+friendRequestColumns+` FROM friend_requests WHERE id=$1`, id)
	req, err := scanFriendRequest(row)
	if err != nil {
		return nil, translate(err)
	}
	return req, nil
}

func (r *friendRequestRepository) FindByPair(ctx context.Context, fromID, toID string) (*domain.FriendRequest, error) {
	row := persistence.QuerierFromContext(ctx, r.pool).QueryRow(ctx,
		`SELECT `+friendRequestColumns+` FROM friend_requests WHERE from_id=$1 AND to_id=$2`, fromID, toID)
	req, err := scanFriendRequest(row)
	if err != nil {
		return nil, translate(err)
	}
	return req, nil
}

func (r *friendRequestRepository) UpdateStatus(ctx context.Context, id string, status domain.FriendRequestStatus) error {
	cmd, err := persistence.QuerierFromContext(ctx, r.pool).Exec(ctx,
		`UPDATE friend_requests SET status=$1 WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *friendRequestRepository) Delete(ctx context.Context, id string) error {
	cmd, err := persistence.QuerierFromContext(ctx, r.pool).Exec(ctx, `DELETE FROM friend_requests WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *friendRequestRepository) ListForUser(ctx context.Context, userID string, incoming bool) ([]domain.FriendRequest, error) {
	column := "from_id"
	if incoming {
		column = "to_id"
	}
	rows, err := persistence.QuerierFromContext(ctx, r.pool).Query(ctx,
		`SELECT `+friendRequestColumns+` FROM friend_requests WHERE `+column+`=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.FriendRequest
	for rows.Next() {
		req, err := scanFriendRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

func scanFriendRequest(row pgx.Row) (*domain.FriendRequest, error) {
	var req domain.FriendRequest
	if err := row.Scan(&req.ID, &req.FromID, &req.FromName, &req.ToID, &req.ToName, &req.Status, &req.CreatedAt); err != nil {
		return nil, err
	}
	return &req, nil
}

type neighborRepository struct {
	pool *pgxpool.Pool
}

// NewNeighborRepository builds repository.
func NewNeighborRepository(pool *pgxpool.Pool) NeighborRepository {
	return &neighborRepository{pool: pool}
}

func (r *neighborRepository) Create(ctx context.Context, edge domain.NeighborEdge) error {
	edge = domain.NewNeighborEdge(edge.UserLow, edge.UserHigh, edge.CreatedAt)
	_, err := persistence.QuerierFromContext(ctx, r.pool).Exec(ctx,
		`INSERT INTO neighbors (user_low, user_high, created_at) VALUES ($1,$2,$3)`,
		edge.UserLow, edge.UserHigh, edge.CreatedAt)
	return translate(err)
}

func (r *neighborRepository) Delete(ctx context.Context, a, b string) (bool, error) {
	edge := domain.NewNeighborEdge(a, b, time.Time{})
	cmd, err := persistence.QuerierFromContext(ctx, r.pool).Exec(ctx,
		`DELETE FROM neighbors WHERE user_low=$1 AND user_high=$2`, edge.UserLow, edge.UserHigh)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *neighborRepository) Exists(ctx context.Context, a, b string) (bool, error) {
	edge := domain.NewNeighborEdge(a, b, time.Time{})
	var exists bool
	err := persistence.QuerierFromContext(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM neighbors WHERE user_low=$1 AND user_high=$2)`, edge.UserLow, edge.UserHigh,
	).Scan(&exists)
	return exists, err
}

func (r *neighborRepository) ListForUser(ctx context.Context, userID string) ([]domain.Neighbor, error) {
	const query = `
        SELECT u.id, u.name, n.created_at
        FROM neighbors n
        JOIN users u ON u.id = CASE WHEN n.user_low = $1 THEN n.user_high ELSE n.user_low END
        WHERE n.user_low = $1 OR n.user_high = $1
        ORDER BY n.created_at DESC`
	rows, err := persistence.QuerierFromContext(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Neighbor
	for rows.Next() {
		var n domain.Neighbor
		if err := rows.Scan(&n.UserID, &n.Name, &n.Since); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *neighborRepository) CountForUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := persistence.QuerierFromContext(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM neighbors WHERE user_low=$1 OR user_high=$1`, userID,
	).Scan(&count)
	return count, err
}
