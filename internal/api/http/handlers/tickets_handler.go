package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/harborview/support-service/internal/api/dto"
	"github.com/harborview/support-service/internal/auth"
	"github.com/harborview/support-service/internal/domain"
	"github.com/harborview/support-service/internal/service"
	apperrors "github.com/harborview/support-service/pkg/util/errorutil"
)

// TicketsHandler exposes the support-desk operations over HTTP.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/v1/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketCreateInput{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Priority:     domain.TicketPriority(strings.ToUpper(strings.TrimSpace(req.Priority))),
		AssignedTeam: domain.Team(req.AssignedTeam),
	}
	ticket, err := h.service.CreateTicket(c.Context(), actor, input)
	if err != nil {
		return err
	}
	facts := h.service.Facts(ticket)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket, facts)})
}

// ListTickets GET /api/v1/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	page, err := h.service.ListTickets(c.Context(), actor, parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, ticketResponse(&page.Items[i].Ticket, page.Items[i].Facts))
	}
	return c.JSON(fiber.Map{"data": dto.TicketListResponse{Items: items, Total: page.Total}})
}

// GetTicket GET /api/v1/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	if _, ok := auth.ActorFromContext(c); !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	annotated, transitions, err := h.service.GetTicket(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	detail := dto.TicketDetailResponse{
		TicketResponse: ticketResponse(&annotated.Ticket, annotated.Facts),
		Transitions:    transitionResponses(transitions),
	}
	return c.JSON(fiber.Map{"data": detail})
}

// UpdateStatus PATCH /api/v1/tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Status) == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	ticket, err := h.service.UpdateStatus(c.Context(), actor, c.Params("id"), domain.TicketStatus(strings.ToUpper(strings.TrimSpace(req.Status))), req.Notes)
	if err != nil {
		return err
	}
	facts := h.service.Facts(ticket)
	return c.JSON(fiber.Map{"data": ticketResponse(ticket, facts)})
}

// AddComment POST /api/v1/tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.service.AddComment(c.Context(), actor, c.Params("id"), req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// ListComments GET /api/v1/tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	if _, ok := auth.ActorFromContext(c); !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	comments, err := h.service.ListComments(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, commentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// DashboardStats GET /api/v1/tickets/stats.
func (h *TicketsHandler) DashboardStats(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	stats, err := h.service.DashboardStats(c.Context(), actor, parseTicketQuery(c))
	if err != nil {
		return err
	}
	resp := dto.DashboardStatsResponse{
		Total:        stats.Total,
		ByStatus:     make(map[string]int, len(stats.ByStatus)),
		ByPriority:   make(map[string]int, len(stats.ByPriority)),
		MyTickets:    stats.MyTickets,
		AssignedToMe: stats.AssignedToMe,
	}
	for status, count := range stats.ByStatus {
		resp.ByStatus[string(status)] = count
	}
	for priority, count := range stats.ByPriority {
		resp.ByPriority[string(priority)] = count
	}
	return c.JSON(fiber.Map{"data": resp})
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListQuery {
	query := service.TicketListQuery{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			if status, ok := domain.ParseStatus(part); ok {
				query.Statuses = append(query.Statuses, status)
			}
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			if priority, ok := domain.ParsePriority(part); ok {
				query.Priorities = append(query.Priorities, priority)
			}
		}
	}
	if categoryStr := c.Query("category"); categoryStr != "" {
		for _, part := range strings.Split(categoryStr, ",") {
			if trimmed := strings.ToLower(strings.TrimSpace(part)); trimmed != "" {
				query.Categories = append(query.Categories, trimmed)
			}
		}
	}
	if teamStr := c.Query("team"); teamStr != "" {
		for _, part := range strings.Split(teamStr, ",") {
			if team, ok := domain.ParseTeam(part); ok {
				query.Teams = append(query.Teams, team)
			}
		}
	}
	if c.Query("my_tickets") == "true" {
		query.MyTicketsOnly = true
	}
	if overdueStr := c.Query("overdue"); overdueStr != "" {
		if overdue, err := strconv.ParseBool(overdueStr); err == nil {
			query.Overdue = &overdue
		}
	}
	query.Search = c.Query("search")
	query.Page = parseInt(c.Query("page"), 1)
	query.PageSize = parseInt(c.Query("page_size"), 20)
	return query
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

func ticketResponse(ticket *domain.Ticket, facts domain.Facts) dto.TicketResponse {
	return dto.TicketResponse{
		ID:            ticket.ID,
		ExternalKey:   ticket.ExternalKey,
		Title:         ticket.Title,
		Description:   ticket.Description,
		Category:      ticket.Category,
		Priority:      ticket.Priority,
		Status:        ticket.Status,
		AssignedTeam:  ticket.AssignedTeam,
		AssignedTo:    ticket.AssignedTo,
		CreatedBy:     ticket.CreatedBy,
		CreatedByRole: ticket.CreatedByRole,
		CreatedAt:     ticket.CreatedAt,
		UpdatedAt:     ticket.UpdatedAt,
		DaysOpen:      facts.DaysOpen,
		IsOverdue:     facts.IsOverdue,
		IsUrgent:      facts.IsUrgent,
	}
}

func transitionResponses(transitions []domain.StatusTransition) []dto.TransitionResponse {
	resp := make([]dto.TransitionResponse, 0, len(transitions))
	for _, tr := range transitions {
		resp = append(resp, dto.TransitionResponse{
			ID:         tr.ID,
			Seq:        tr.Seq,
			FromStatus: tr.FromStatus,
			ToStatus:   tr.ToStatus,
			Notes:      tr.Notes,
			ActorID:    tr.ActorID,
			CreatedAt:  tr.CreatedAt,
		})
	}
	return resp
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:        comment.ID,
		TicketID:  comment.TicketID,
		Seq:       comment.Seq,
		AuthorID:  comment.AuthorID,
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
	}
}
