package service

import (
	"context"
	"sort"

	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/geo"
	"github.com/streetfix/resolve-service/internal/repository"
	apperrors "github.com/streetfix/resolve-service/pkg/util/errorutil"
)

// Candidate is an available engineer ranked for one ticket.
type Candidate struct {
	Engineer   domain.User
	InZone     bool
	DistanceKm float64
}

// AssignmentService ranks engineers for dispatchers.
type AssignmentService struct {
	tickets repository.TicketRepository
	users   repository.UserRepository
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		tickets: deps.TicketRepo,
		users:   deps.UserRepo,
	}
}

// Candidates lists available engineers for ticketID, best match first.
func (s *AssignmentService) Candidates(ctx context.Context, ticketID string) ([]Candidate, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	engineers, err := s.users.ListAvailableEngineers(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return RankEngineers(ticket.Location.Coordinate, engineers), nil
}

// RankEngineers orders engineers for a ticket at point: those whose zone contains the
// point first, then by distance to their last known location. Ties keep input order.
func RankEngineers(point domain.Coordinate, engineers []domain.User) []Candidate {
	ranked := make([]Candidate, len(engineers))
	for i, e := range engineers {
		ranked[i] = Candidate{
			Engineer:   e,
			InZone:     len(e.Zone) >= 3 && geo.Contains(e.Zone, point),
			DistanceKm: geo.DistanceKm(e.LastKnownLocation, &point),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].InZone != ranked[j].InZone {
			return ranked[i].InZone
		}
		if ranked[i].InZone {
			return false
		}
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})
	return ranked
}

// SelectEngineer returns the best engineer for a ticket at point.
func SelectEngineer(point domain.Coordinate, engineers []domain.User) (domain.User, bool) {
	ranked := RankEngineers(point, engineers)
	if len(ranked) == 0 {
		return domain.User{}, false
	}
	return ranked[0].Engineer, true
}
