package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/persistence"
)

// NotificationRepository is the per-user notification stream.
type NotificationRepository interface {
	// Append adds n to its recipient's stream. Appending an id twice is a no-op.
	Append(ctx context.Context, n domain.Notification) error
	ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

// OutboxRepository stages notifications for at-least-once delivery.
type OutboxRepository interface {
	Enqueue(ctx context.Context, entries ...domain.OutboxEntry) error
	// ClaimDue returns up to limit pending entries whose next attempt is due and pushes
	// their next attempt back by lease so concurrent workers do not pick them up.
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]domain.OutboxEntry, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, next time.Time, lastErr string, dead bool) error
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Append(ctx context.Context, n domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO notifications (id, user_id, title, body, type, ticket_id, read, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (id) DO NOTHING`
	_, err := persistence.QuerierFromContext(ctx, r.pool).Exec(ctx, query,
		n.ID, n.UserID, n.Title, n.Body, n.Type, n.TicketID, n.Read, n.CreatedAt)
	return err
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, user_id, title, body, type, ticket_id, read, created_at FROM notifications WHERE user_id=$1`
	if unreadOnly {
		query += ` AND read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := persistence.QuerierFromContext(ctx, r.pool).Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Type, &n.TicketID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	cmd, err := persistence.QuerierFromContext(ctx, r.pool).Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	cmd, err := persistence.QuerierFromContext(ctx, r.pool).Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id=$1 AND read = FALSE`, userID)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

type outboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository builds repository.
func NewOutboxRepository(pool *pgxpool.Pool) OutboxRepository {
	return &outboxRepository{pool: pool}
}

const outboxColumns = `id, recipient_id, title, body, type, ticket_id, state, attempts, next_attempt_at,
               last_error, created_at, delivered_at`

func (r *outboxRepository) Enqueue(ctx context.Context, entries ...domain.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	q := persistence.QuerierFromContext(ctx, r.pool)
	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.State == "" {
			e.State = domain.OutboxPending
		}
		if _, err := q.Exec(ctx,
			`INSERT INTO notification_outbox (`+outboxColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			e.ID, e.RecipientID, e.Title, e.Body, e.Type, e.TicketID, e.State, e.Attempts, e.NextAttemptAt,
			e.LastError, e.CreatedAt, e.DeliveredAt,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *outboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]domain.OutboxEntry, error) {
	const query = `
        UPDATE notification_outbox SET next_attempt_at = $1
        WHERE id IN (
            SELECT id FROM notification_outbox
            WHERE state = $2 AND next_attempt_at <= $3
            ORDER BY next_attempt_at ASC
            LIMIT $4
            FOR UPDATE SKIP LOCKED
        )
        RETURNING ` + outboxColumns
	rows, err := persistence.QuerierFromContext(ctx, r.pool).Query(ctx, query,
		now.Add(lease), domain.OutboxPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.OutboxEntry
	for rows.Next() {
		var e domain.OutboxEntry
		if err := rows.Scan(
			&e.ID,
			&e.RecipientID,
			&e.Title,
			&e.Body,
			&e.Type,
			&e.TicketID,
			&e.State,
			&e.Attempts,
			&e.NextAttemptAt,
			&e.LastError,
			&e.CreatedAt,
			&e.DeliveredAt,
		); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *outboxRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	_, err := persistence.QuerierFromContext(ctx, r.pool).Exec(ctx,
		`UPDATE notification_outbox SET state=$1, delivered_at=$2, attempts = attempts + 1 WHERE id=$3`,
		domain.OutboxDelivered, at, id)
	return err
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, attempts int, next time.Time, lastErr string, dead bool) error {
	state := domain.OutboxPending
	if dead {
		state = domain.OutboxDead
	}
	_, err := persistence.QuerierFromContext(ctx, r.pool).Exec(ctx,
		`UPDATE notification_outbox SET state=$1, attempts=$2, next_attempt_at=$3, last_error=$4 WHERE id=$5`,
		state, attempts, next, lastErr, id)
	return err
}
