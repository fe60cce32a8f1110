package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/persistence"
)

// TicketFilter narrows ticket listings. Merged tickets and social posts are excluded
// unless asked for.
type TicketFilter struct {
	UserID        *string
	AssignedTo    *string
	Statuses      []domain.TicketStatus
	IncludeMerged bool
	IncludeSocial bool
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// UpdateIfStatus writes ticket only while the stored status still equals expected.
	UpdateIfStatus(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, user_id, kind, title, description, category, category_detail, status, priority,
               latitude, longitude, address, photos, video, assigned_to, resolution_notes, after_photo,
               rejection_reason, merged_into, created_at, updated_at, resolved_at, verified_at, reopened_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO tickets (` + ticketColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`
	_, err := persistence.QuerierFromContext(ctx, r.pool).Exec(ctx, query,
		ticket.ID,
		ticket.UserID,
		ticket.Kind,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.CategoryDetail,
		ticket.Status,
		ticket.Priority,
		ticket.Location.Latitude,
		ticket.Location.Longitude,
		ticket.Location.Address,
		ticket.Photos,
		ticket.Video,
		ticket.AssignedTo,
		ticket.ResolutionNotes,
		ticket.AfterPhoto,
		ticket.RejectionReason,
		ticket.MergedInto,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.ResolvedAt,
		ticket.VerifiedAt,
		ticket.ReopenedAt,
	)
	return translate(err)
}

func (r *ticketRepository) UpdateIfStatus(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	const query = `
        UPDATE tickets SET status=$1, priority=$2, assigned_to=$3, resolution_notes=$4, after_photo=$5,
            rejection_reason=$6, merged_into=$7, updated_at=$8, resolved_at=$9, verified_at=$10, reopened_at=$11
        WHERE id=$12 AND status=$13`
	q := persistence.QuerierFromContext(ctx, r.pool)
	cmd, err := q.Exec(ctx, query,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedTo,
		ticket.ResolutionNotes,
		ticket.AfterPhoto,
		ticket.RejectionReason,
		ticket.MergedInto,
		ticket.UpdatedAt,
		ticket.ResolvedAt,
		ticket.VerifiedAt,
		ticket.ReopenedAt,
		ticket.ID,
		expected,
	)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, ticket.ID).Scan(&exists); err != nil {
			return translate(err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStaleWrite
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	row := persistence.QuerierFromContext(ctx, r.pool).QueryRow(ctx, query, id)
	ticket, err := scanTicket(row)
	if err != nil {
		return nil, translate(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if !filter.IncludeMerged {
		args = append(args, domain.TicketStatusMerged)
		clauses = append(clauses, fmt.Sprintf("status<>$%d", len(args)))
	}
	if !filter.IncludeSocial {
		args = append(args, domain.TicketKindSocial)
		clauses = append(clauses, fmt.Sprintf("kind<>$%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC`,
		ticketColumns, strings.Join(clauses, " AND "))

	rows, err := persistence.QuerierFromContext(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.Kind,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.CategoryDetail,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Location.Latitude,
		&ticket.Location.Longitude,
		&ticket.Location.Address,
		&ticket.Photos,
		&ticket.Video,
		&ticket.AssignedTo,
		&ticket.ResolutionNotes,
		&ticket.AfterPhoto,
		&ticket.RejectionReason,
		&ticket.MergedInto,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
		&ticket.VerifiedAt,
		&ticket.ReopenedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
