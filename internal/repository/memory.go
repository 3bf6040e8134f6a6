package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harborview/support-service/internal/domain"
	apperrors "github.com/harborview/support-service/pkg/util/errorutil"
)

// MemoryStore is an in-memory implementation of TicketRepository and
// CommentRepository. It backs local development runs without a Postgres DSN
// and the service test suites. All mutations on a ticket serialize on the
// store lock; reads operate on copies, so returned values are snapshots.
type MemoryStore struct {
	mu          sync.RWMutex
	tickets     map[string]*domain.Ticket
	transitions map[string][]domain.StatusTransition
	comments    map[string][]domain.Comment
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:     make(map[string]*domain.Ticket),
		transitions: make(map[string][]domain.StatusTransition),
		comments:    make(map[string][]domain.Comment),
	}
}

func (s *MemoryStore) Create(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	ticket.UpdatedAt = ticket.CreatedAt

	stored := *ticket
	s.tickets[ticket.ID] = &stored
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.tickets[id]
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	ticket := *stored
	return &ticket, nil
}

func (s *MemoryStore) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := s.matchLocked(filter)
	total := len(matches)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []domain.Ticket{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

func (s *MemoryStore) AggregateCounts(_ context.Context, filter TicketFilter) (*TicketAggregates, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg := newTicketAggregates()
	for _, ticket := range s.matchLocked(filter) {
		agg.Total++
		agg.ByStatus[ticket.Status]++
		agg.ByPriority[ticket.Priority]++
		agg.ByTeam[ticket.AssignedTeam]++
	}
	return agg, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, ticketID string, from, to domain.TicketStatus, transition *domain.StatusTransition) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tickets[ticketID]
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if stored.Status != from {
		return nil, apperrors.NewConcurrentModification(ticketID)
	}

	stored.Status = to
	stored.UpdatedAt = time.Now().UTC()

	transition.ID = uuid.NewString()
	transition.TicketID = ticketID
	transition.Seq = len(s.transitions[ticketID]) + 1
	transition.FromStatus = from
	transition.ToStatus = to
	transition.CreatedAt = stored.UpdatedAt
	s.transitions[ticketID] = append(s.transitions[ticketID], *transition)

	ticket := *stored
	return &ticket, nil
}

func (s *MemoryStore) ListTransitions(_ context.Context, ticketID string) ([]domain.StatusTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StatusTransition, len(s.transitions[ticketID]))
	copy(result, s.transitions[ticketID])
	return result, nil
}

func (s *MemoryStore) CreateComment(_ context.Context, comment *domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[comment.TicketID]; !ok {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": comment.TicketID})
	}
	comment.ID = uuid.NewString()
	comment.Seq = len(s.comments[comment.TicketID]) + 1
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	s.comments[comment.TicketID] = append(s.comments[comment.TicketID], *comment)
	return nil
}

func (s *MemoryStore) ListCommentsByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Comment, len(s.comments[ticketID]))
	copy(result, s.comments[ticketID])
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].Seq < result[j].Seq
	})
	return result, nil
}

// Comments returns an adapter satisfying CommentRepository.
func (s *MemoryStore) Comments() CommentRepository {
	return memoryCommentRepository{store: s}
}

type memoryCommentRepository struct {
	store *MemoryStore
}

func (r memoryCommentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	return r.store.CreateComment(ctx, comment)
}

func (r memoryCommentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	return r.store.ListCommentsByTicket(ctx, ticketID)
}

// matchLocked evaluates the filter over a copy of the candidate set, sorted
// by the facade's stable key (created_at descending, id as tiebreak).
func (s *MemoryStore) matchLocked(filter TicketFilter) []domain.Ticket {
	matches := []domain.Ticket{}
	for _, stored := range s.tickets {
		if ticketMatches(stored, filter) {
			matches = append(matches, *stored)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID < matches[j].ID
	})
	return matches
}

func ticketMatches(t *domain.Ticket, filter TicketFilter) bool {
	if len(filter.Teams) > 0 && !containsTeam(filter.Teams, t.AssignedTeam) {
		return false
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, t.Priority) {
		return false
	}
	if len(filter.Categories) > 0 && !containsString(filter.Categories, t.Category) {
		return false
	}
	if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
		return false
	}
	if filter.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *filter.AssignedTo) {
		return false
	}
	if filter.SearchTerm != nil {
		needle := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if needle != "" {
			haystack := strings.ToLower(t.Title) + " " + strings.ToLower(t.Description)
			if !strings.Contains(haystack, needle) {
				return false
			}
		}
	}
	if filter.Overdue != nil {
		overdue := false
		if !t.Status.Terminal() {
			if cutoff, ok := filter.OverdueCutoffs[t.Priority]; ok && !t.CreatedAt.After(cutoff) {
				overdue = true
			}
		}
		if overdue != *filter.Overdue {
			return false
		}
	}
	return true
}

func containsStatus(values []domain.TicketStatus, v domain.TicketStatus) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func containsPriority(values []domain.TicketPriority, v domain.TicketPriority) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func containsTeam(values []domain.Team, v domain.Team) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
