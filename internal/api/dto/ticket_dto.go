package dto

import (
	"time"

	"github.com/harborview/support-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Priority     string `json:"priority"`
	AssignedTeam string `json:"assigned_team"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// TicketResponse is the annotated ticket representation. The derived fields
// are computed at read time and reflect the moment of the request.
type TicketResponse struct {
	ID            string                `json:"id"`
	ExternalKey   string                `json:"external_key"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Category      string                `json:"category"`
	Priority      domain.TicketPriority `json:"priority"`
	Status        domain.TicketStatus   `json:"status"`
	AssignedTeam  domain.Team           `json:"assigned_team"`
	AssignedTo    *string               `json:"assigned_to"`
	CreatedBy     string                `json:"created_by"`
	CreatedByRole domain.Role           `json:"created_by_role"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	DaysOpen      int                   `json:"days_open"`
	IsOverdue     bool                  `json:"is_overdue"`
	IsUrgent      bool                  `json:"is_urgent"`
}

// TicketDetailResponse adds the audit trail to the ticket representation.
type TicketDetailResponse struct {
	TicketResponse
	Transitions []TransitionResponse `json:"transitions"`
}

// TicketListResponse is one page plus the total match count.
type TicketListResponse struct {
	Items []TicketResponse `json:"items"`
	Total int              `json:"total"`
}

// TransitionResponse is one audit trail entry.
type TransitionResponse struct {
	ID         string              `json:"id"`
	Seq        int                 `json:"seq"`
	FromStatus domain.TicketStatus `json:"from_status"`
	ToStatus   domain.TicketStatus `json:"to_status"`
	Notes      string              `json:"notes,omitempty"`
	ActorID    string              `json:"actor_id"`
	CreatedAt  time.Time           `json:"created_at"`
}

// CommentResponse is one thread entry.
type CommentResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	Seq       int       `json:"seq"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// DashboardStatsResponse drives the portal dashboard widgets.
type DashboardStatsResponse struct {
	Total        int            `json:"total"`
	ByStatus     map[string]int `json:"by_status"`
	ByPriority   map[string]int `json:"by_priority"`
	MyTickets    int            `json:"my_tickets"`
	AssignedToMe int            `json:"assigned_to_me"`
}
