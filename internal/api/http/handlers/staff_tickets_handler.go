package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/streetfix/resolve-service/internal/api/dto"
	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/service"
)

// StaffTicketsHandler serves the dispatcher, engineer and QA ticket endpoints.
type StaffTicketsHandler struct {
	tickets    *service.TicketService
	assignment *service.AssignmentService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(ticketService *service.TicketService, assignment *service.AssignmentService) *StaffTicketsHandler {
	return &StaffTicketsHandler{tickets: ticketService, assignment: assignment}
}

// ListDispatch GET /dispatch/tickets. Accepts ?status=a,b and ?include_merged=true.
func (h *StaffTicketsHandler) ListDispatch(c *fiber.Ctx) error {
	var (
		tickets []domain.Ticket
		err     error
	)
	if statuses := parseStatuses(c.Query("status")); len(statuses) > 0 {
		tickets, err = h.tickets.GetTicketsByStatus(c.UserContext(), statuses...)
	} else {
		tickets, err = h.tickets.GetAllTickets(c.UserContext(), c.QueryBool("include_merged"))
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets)})
}

// Assign POST /dispatch/tickets/:id/assign.
func (h *StaffTicketsHandler) Assign(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.AssignTicket(c.UserContext(), c.Params("id"), req.EngineerID, principal.ID())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// AutoAssign POST /dispatch/tickets/:id/auto-assign.
func (h *StaffTicketsHandler) AutoAssign(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.AutoAssign(c.UserContext(), c.Params("id"), principal.ID())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Candidates GET /dispatch/tickets/:id/candidates.
func (h *StaffTicketsHandler) Candidates(c *fiber.Ctx) error {
	candidates, err := h.assignment.Candidates(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.CandidateResponse, 0, len(candidates))
	for i := range candidates {
		items = append(items, dto.CandidateResponse{
			Engineer:   userResponse(&candidates[i].Engineer),
			InZone:     candidates[i].InZone,
			DistanceKm: candidates[i].DistanceKm,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Review POST /dispatch/tickets/:id/review.
func (h *StaffTicketsHandler) Review(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.MarkUnderReview(c.UserContext(), c.Params("id"), principal.ID())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Merge POST /dispatch/tickets/:id/merge.
func (h *StaffTicketsHandler) Merge(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.MergeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	merged, err := h.tickets.MergeTickets(c.UserContext(), c.Params("id"), req.DuplicateIDs, principal.ID())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(merged)})
}

// EngineerJobs GET /engineer/jobs.
func (h *StaffTicketsHandler) EngineerJobs(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	jobs, err := h.tickets.GetEngineerJobs(c.UserContext(), principal.ID())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(jobs)})
}

// StartWork POST /engineer/jobs/:id/start.
func (h *StaffTicketsHandler) StartWork(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.StartWork(c.UserContext(), c.Params("id"), principal.ID())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Resolve POST /engineer/jobs/:id/resolve.
func (h *StaffTicketsHandler) Resolve(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ResolveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.ResolveTicket(c.UserContext(), c.Params("id"), principal.ID(), req.Notes, req.AfterPhoto)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// QAQueue GET /qa/tickets. Defaults to resolved tickets awaiting verification.
func (h *StaffTicketsHandler) QAQueue(c *fiber.Ctx) error {
	statuses := parseStatuses(c.Query("status"))
	if len(statuses) == 0 {
		statuses = []domain.TicketStatus{domain.TicketStatusResolved}
	}
	tickets, err := h.tickets.GetTicketsByStatus(c.UserContext(), statuses...)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets)})
}

// Verify POST /qa/tickets/:id/verify.
func (h *StaffTicketsHandler) Verify(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.VerifyTicket(c.UserContext(), c.Params("id"), principal.ID())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Reopen POST /qa/tickets/:id/reopen.
func (h *StaffTicketsHandler) Reopen(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ReopenRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.ReopenTicket(c.UserContext(), c.Params("id"), principal.ID(), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}
