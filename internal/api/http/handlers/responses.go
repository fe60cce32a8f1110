package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/streetfix/resolve-service/internal/api/dto"
	"github.com/streetfix/resolve-service/internal/auth"
	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/service"
	apperrors "github.com/streetfix/resolve-service/pkg/util/errorutil"
)

func currentUser(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func viewerOf(p *auth.Principal) service.Viewer {
	return service.Viewer{UserID: p.ID(), Role: p.Role()}
}

func bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func parseStatuses(raw string) []domain.TicketStatus {
	var statuses []domain.TicketStatus
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			statuses = append(statuses, domain.TicketStatus(part))
		}
	}
	return statuses
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketResponse(t *domain.Ticket) dto.TicketResponse {
	photos := t.Photos
	if photos == nil {
		photos = []string{}
	}
	return dto.TicketResponse{
		ID:              t.ID,
		UserID:          t.UserID,
		Kind:            t.Kind,
		Title:           t.Title,
		Description:     t.Description,
		Category:        t.Category,
		CategoryDetail:  t.CategoryDetail,
		Status:          t.Status,
		Priority:        t.Priority,
		Location:        t.Location,
		Photos:          photos,
		Video:           t.Video,
		AssignedTo:      t.AssignedTo,
		ResolutionNotes: t.ResolutionNotes,
		AfterPhoto:      t.AfterPhoto,
		RejectionReason: t.RejectionReason,
		MergedInto:      t.MergedInto,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		ResolvedAt:      t.ResolvedAt,
		VerifiedAt:      t.VerifiedAt,
		ReopenedAt:      t.ReopenedAt,
	}
}

func ticketResponses(tickets []domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return items
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:         entry.ID,
			ActorID:    entry.ActorID,
			Action:     entry.Action,
			FromStatus: entry.FromStatus,
			ToStatus:   entry.ToStatus,
			Note:       entry.Note,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return resp
}

func userResponse(u *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:                u.ID,
		Name:              u.Name,
		Email:             u.Email,
		Username:          u.Username,
		Role:              u.Role,
		Balance:           u.Balance,
		ReportCount:       u.ReportCount,
		ReferralCode:      u.ReferralCode,
		ReferralStatus:    u.ReferralStatus,
		NeighborCount:     u.NeighborCount,
		EngineerStatus:    u.EngineerStatus,
		LastKnownLocation: u.LastKnownLocation,
		Zone:              u.Zone,
		CreatedAt:         u.CreatedAt,
	}
}

func userResponses(users []domain.User) []dto.UserResponse {
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, userResponse(&users[i]))
	}
	return items
}
