package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/persistence"
)

// TicketHistoryRepository stores the append-only audit trail of ticket transitions.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

// Create appends an entry. It joins the caller's transaction so the entry commits with the
// status write it describes. A nil actor is stored as NULL.
func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO ticket_history (id, ticket_id, actor_id, action, from_status, to_status, note, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := persistence.QuerierFromContext(ctx, r.pool).Exec(ctx, query,
		history.ID, history.TicketID, history.ActorID, history.Action,
		history.FromStatus, history.ToStatus, history.Note, history.CreatedAt)
	return translate(err)
}

// ListByTicket returns entries oldest first; seq breaks timestamp ties in insert order.
func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_id, actor_id::text, action, from_status, to_status, note, created_at
        FROM ticket_history
        WHERE ticket_id = $1
        ORDER BY seq ASC`
	rows, err := persistence.QuerierFromContext(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, translate(err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TicketHistory, error) {
		var h domain.TicketHistory
		err := row.Scan(&h.ID, &h.TicketID, &h.ActorID, &h.Action, &h.FromStatus, &h.ToStatus, &h.Note, &h.CreatedAt)
		return h, err
	})
	return entries, translate(err)
}
