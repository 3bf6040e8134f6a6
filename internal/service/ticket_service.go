package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harborview/support-service/internal/config"
	"github.com/harborview/support-service/internal/domain"
	"github.com/harborview/support-service/internal/events"
	"github.com/harborview/support-service/internal/policy"
	"github.com/harborview/support-service/internal/repository"
	apperrors "github.com/harborview/support-service/pkg/util/errorutil"
)

// TicketService coordinates ticket routing, lifecycle and the comment thread.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	policy     *policy.Table
	dispatcher events.Dispatcher
	categories map[string]struct{}
	thresholds domain.OverdueThresholds
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	Policy      *policy.Table
	Dispatcher  events.Dispatcher
	Support     config.SupportConfig
	// Now overrides the clock used for derived facts; nil means time.Now.
	Now func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title        string
	Description  string
	Category     string
	Priority     domain.TicketPriority
	AssignedTeam domain.Team
}

// TicketListQuery describes the filter criteria accepted by the query facade.
// Teams is the caller's requested team filter; it is always intersected with
// the actor's viewable teams before touching storage.
type TicketListQuery struct {
	Statuses      []domain.TicketStatus
	Priorities    []domain.TicketPriority
	Categories    []string
	Teams         []domain.Team
	MyTicketsOnly bool
	Overdue       *bool
	Search        string
	Page          int
	PageSize      int
}

// AnnotatedTicket pairs a ticket with its read-time derived facts.
type AnnotatedTicket struct {
	domain.Ticket
	Facts domain.Facts
}

// TicketPage is one deterministic page plus the total match count.
type TicketPage struct {
	Items []AnnotatedTicket
	Total int
}

// DashboardStats drives the portal dashboards.
type DashboardStats struct {
	Total        int
	ByStatus     map[domain.TicketStatus]int
	ByPriority   map[domain.TicketPriority]int
	MyTickets    int
	AssignedToMe int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	categories := make(map[string]struct{}, len(deps.Support.Categories))
	for _, category := range deps.Support.Categories {
		categories[category.Value] = struct{}{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		policy:     deps.Policy,
		dispatcher: deps.Dispatcher,
		categories: categories,
		thresholds: deps.Support.OverdueThresholds,
		now:        now,
	}
}

// CreateTicket validates the payload against the enumerated sets and the
// role-team policy, then persists the ticket in status NEW. The creator's
// role is snapshotted; the team invariant is checked once here and never
// re-validated.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, apperrors.NewUnauthorized("actor required")
	}

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}

	category := strings.ToLower(strings.TrimSpace(input.Category))
	if _, ok := s.categories[category]; !ok {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": input.Category})
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if _, ok := domain.ParsePriority(string(priority)); !ok {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}

	team, ok := domain.ParseTeam(string(input.AssignedTeam))
	if !ok {
		return nil, apperrors.NewValidationError("unknown team", map[string]any{"team": input.AssignedTeam})
	}

	role := domain.NormalizeRole(string(actor.Role))
	creatable, err := s.policy.CreatableTeams(role)
	if err != nil {
		if errors.Is(err, policy.ErrUnknownRole) {
			return nil, apperrors.NewPolicyViolation("role has no ticket permissions", map[string]any{"role": string(actor.Role)})
		}
		return nil, err
	}
	if !teamInSet(creatable, team) {
		return nil, apperrors.NewPolicyViolation("role may not create tickets for this team", map[string]any{
			"role": string(role),
			"team": string(team),
		})
	}

	ticket := &domain.Ticket{
		ExternalKey:   generateTicketKey(),
		Title:         title,
		Description:   description,
		Category:      category,
		Priority:      priority,
		Status:        domain.TicketStatusNew,
		AssignedTeam:  team,
		CreatedBy:     actor.ID,
		CreatedByRole: role,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketCreatedPayload{
			ExternalKey:  ticket.ExternalKey,
			AssignedTeam: ticket.AssignedTeam,
			Category:     ticket.Category,
			Priority:     ticket.Priority,
			Title:        ticket.Title,
		},
	})
	return ticket, nil
}

// GetTicket fetches a ticket with derived facts and its audit trail.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*AnnotatedTicket, []domain.StatusTransition, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	transitions, err := s.tickets.ListTransitions(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	annotated := s.annotate(*ticket)
	return &annotated, transitions, nil
}

// ListTickets resolves the query facade: the actor's viewable teams are
// intersected with any requested team filter, then one consistent page plus
// total is returned. A requested team outside the viewable set yields an
// empty result, not an error.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, query TicketListQuery) (*TicketPage, error) {
	filter, visible := s.buildFilter(actor, query)
	if !visible {
		return &TicketPage{Items: []AnnotatedTicket{}, Total: 0}, nil
	}

	tickets, total, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]AnnotatedTicket, 0, len(tickets))
	for _, ticket := range tickets {
		items = append(items, s.annotate(ticket))
	}
	return &TicketPage{Items: items, Total: total}, nil
}

// DashboardStats aggregates counts over exactly the candidate set ListTickets
// would match for the same query.
func (s *TicketService) DashboardStats(ctx context.Context, actor domain.Actor, query TicketListQuery) (*DashboardStats, error) {
	stats := &DashboardStats{
		ByStatus:   make(map[domain.TicketStatus]int),
		ByPriority: make(map[domain.TicketPriority]int),
	}
	filter, visible := s.buildFilter(actor, query)
	if !visible {
		return stats, nil
	}

	agg, err := s.tickets.AggregateCounts(ctx, filter)
	if err != nil {
		return nil, err
	}
	stats.Total = agg.Total
	for status, count := range agg.ByStatus {
		stats.ByStatus[status] = count
	}
	for priority, count := range agg.ByPriority {
		stats.ByPriority[priority] = count
	}

	mineFilter := filter
	actorID := actor.ID
	mineFilter.CreatedBy = &actorID
	mine, err := s.tickets.AggregateCounts(ctx, mineFilter)
	if err != nil {
		return nil, err
	}
	stats.MyTickets = mine.Total

	assignedFilter := filter
	assignedFilter.AssignedTo = &actorID
	assigned, err := s.tickets.AggregateCounts(ctx, assignedFilter)
	if err != nil {
		return nil, err
	}
	stats.AssignedToMe = assigned.Total

	return stats, nil
}

// UpdateStatus drives the ticket through the state machine. The status
// change and its audit record commit atomically; a concurrent transition on
// the same ticket loses the compare-and-swap and gets
// CONCURRENT_MODIFICATION, which is safe to retry after re-reading.
func (s *TicketService) UpdateStatus(ctx context.Context, actor domain.Actor, ticketID string, newStatus domain.TicketStatus, notes string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !s.policy.MayView(actor.Role, ticket.AssignedTeam) {
		return nil, apperrors.NewUnauthorized("actor may not modify tickets of this team")
	}

	status, ok := domain.ParseStatus(string(newStatus))
	if !ok {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": newStatus})
	}
	if status == ticket.Status || !ticket.Status.CanTransitionTo(status) {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(status))
	}

	transition := &domain.StatusTransition{
		Notes:   strings.TrimSpace(notes),
		ActorID: actor.ID,
	}
	updated, err := s.tickets.UpdateStatus(ctx, ticketID, ticket.Status, status, transition)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: updated.ID,
		Actor:    actor,
		Payload: events.TicketStatusChangedPayload{
			FromStatus: transition.FromStatus,
			ToStatus:   transition.ToStatus,
			Notes:      transition.Notes,
		},
	})
	return updated, nil
}

// AddComment appends a remark to the ticket's thread. The ticket's status
// timeline and UpdatedAt are deliberately untouched.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, ticketID, body string) (*domain.Comment, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil, apperrors.NewValidationError("comment body required", nil)
	}
	comment := &domain.Comment{
		TicketID: ticketID,
		AuthorID: actor.ID,
		Body:     trimmed,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: ticketID,
		Actor:    actor,
		Payload: events.TicketCommentAddedPayload{
			CommentID:   comment.ID,
			AuthorID:    comment.AuthorID,
			BodyPreview: stringPreview(comment.Body, 120),
		},
	})
	return comment, nil
}

// ListComments returns the ticket's thread ordered ascending by
// (created_at, seq).
func (s *TicketService) ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	return s.comments.ListByTicket(ctx, ticketID)
}

// Facts computes the derived flags for a ticket as of the service clock.
func (s *TicketService) Facts(ticket *domain.Ticket) domain.Facts {
	return domain.ComputeFacts(ticket, s.now(), s.thresholds)
}

func (s *TicketService) annotate(ticket domain.Ticket) AnnotatedTicket {
	return AnnotatedTicket{Ticket: ticket, Facts: s.Facts(&ticket)}
}

// buildFilter narrows the query to the actor's viewable teams. The second
// return is false when nothing can be visible (unknown role, or a requested
// team set disjoint from the viewable set).
func (s *TicketService) buildFilter(actor domain.Actor, query TicketListQuery) (repository.TicketFilter, bool) {
	viewable, err := s.policy.ViewableTeams(actor.Role)
	if err != nil || len(viewable) == 0 {
		return repository.TicketFilter{}, false
	}

	teams := viewable
	if len(query.Teams) > 0 {
		teams = intersectTeams(query.Teams, viewable)
		if len(teams) == 0 {
			return repository.TicketFilter{}, false
		}
	}

	filter := repository.TicketFilter{
		Teams:      teams,
		Statuses:   query.Statuses,
		Priorities: query.Priorities,
		Categories: query.Categories,
		Overdue:    query.Overdue,
	}
	if query.MyTicketsOnly {
		actorID := actor.ID
		filter.CreatedBy = &actorID
	}
	if strings.TrimSpace(query.Search) != "" {
		search := query.Search
		filter.SearchTerm = &search
	}
	if query.Overdue != nil {
		filter.OverdueCutoffs = s.overdueCutoffs()
	}

	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	return filter, true
}

func (s *TicketService) overdueCutoffs() map[domain.TicketPriority]time.Time {
	now := s.now()
	cutoffs := make(map[domain.TicketPriority]time.Time, len(s.thresholds))
	for _, priority := range domain.Priorities() {
		if cutoff, ok := s.thresholds.OverdueCutoff(priority, now); ok {
			cutoffs[priority] = cutoff
		}
	}
	return cutoffs
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func generateTicketKey() string {
	return "HSP-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func intersectTeams(requested, viewable []domain.Team) []domain.Team {
	result := make([]domain.Team, 0, len(requested))
	for _, team := range requested {
		if teamInSet(viewable, team) {
			result = append(result, team)
		}
	}
	return result
}

func teamInSet(teams []domain.Team, team domain.Team) bool {
	for _, candidate := range teams {
		if candidate == team {
			return true
		}
	}
	return false
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
