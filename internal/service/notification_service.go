package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/repository"
	apperrors "github.com/streetfix/resolve-service/pkg/util/errorutil"
)

// Notice is a notification a mutation wants delivered. Exactly one of UserID and Role is
// set; a role notice reaches every account holding that role.
type Notice struct {
	UserID   string
	Role     domain.Role
	Title    string
	Body     string
	Type     domain.NotificationType
	TicketID *string
}

// ToUser addresses a notice to one account.
func ToUser(userID string, typ domain.NotificationType, title, body string) Notice {
	return Notice{UserID: userID, Type: typ, Title: title, Body: body}
}

// ToRole addresses a notice to every account with role.
func ToRole(role domain.Role, typ domain.NotificationType, title, body string) Notice {
	return Notice{Role: role, Type: typ, Title: title, Body: body}
}

// About attaches a ticket reference.
func (n Notice) About(ticketID string) Notice {
	id := ticketID
	n.TicketID = &id
	return n
}

// NotificationService stages notices into the outbox and serves notification streams.
type NotificationService struct {
	users         repository.UserRepository
	outbox        repository.OutboxRepository
	notifications repository.NotificationRepository
	logger        *zap.Logger
	now           func() time.Time
}

// NotificationDependencies bundles repositories for the notification service.
type NotificationDependencies struct {
	UserRepo         repository.UserRepository
	OutboxRepo       repository.OutboxRepository
	NotificationRepo repository.NotificationRepository
	Logger           *zap.Logger
	Clock            func() time.Time
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &NotificationService{
		users:         deps.UserRepo,
		outbox:        deps.OutboxRepo,
		notifications: deps.NotificationRepo,
		logger:        logger,
		now:           clock,
	}
}

// Stage writes one outbox entry per recipient. Call it with the ctx of the transaction
// that performs the business write so both commit or neither does. Role notices are
// expanded to the accounts holding the role at staging time.
func (n *NotificationService) Stage(ctx context.Context, notices ...Notice) (int, error) {
	if len(notices) == 0 {
		return 0, nil
	}
	now := n.now()
	roleMembers := make(map[domain.Role][]domain.User)
	var entries []domain.OutboxEntry

	for _, notice := range notices {
		recipients := []string{notice.UserID}
		if notice.UserID == "" {
			members, ok := roleMembers[notice.Role]
			if !ok {
				var err error
				members, err = n.users.ListByRole(ctx, notice.Role)
				if err != nil {
					return 0, err
				}
				roleMembers[notice.Role] = members
			}
			recipients = recipients[:0]
			for _, m := range members {
				recipients = append(recipients, m.ID)
			}
		}
		for _, recipient := range recipients {
			entries = append(entries, domain.OutboxEntry{
				ID:            uuid.NewString(),
				RecipientID:   recipient,
				Title:         notice.Title,
				Body:          notice.Body,
				Type:          notice.Type,
				TicketID:      notice.TicketID,
				State:         domain.OutboxPending,
				NextAttemptAt: now,
				CreatedAt:     now,
			})
		}
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if err := n.outbox.Enqueue(ctx, entries...); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ListForUser returns the newest notifications of userID.
func (n *NotificationService) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	list, err := n.notifications.ListForUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if list == nil {
		list = []domain.Notification{}
	}
	return list, nil
}

// MarkRead flags one notification of userID as read.
func (n *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	if strings.TrimSpace(notificationID) == "" {
		return apperrors.NewValidationError("notification id is required", nil)
	}
	return mapRepoError(n.notifications.MarkRead(ctx, userID, notificationID),
		"notification", map[string]any{"notification_id": notificationID})
}

// MarkAllRead flags every unread notification of userID and returns how many changed.
func (n *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	changed, err := n.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return changed, nil
}
