package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/support-service/internal/domain"
	apperrors "github.com/harborview/support-service/pkg/util/errorutil"
)

func seedTicket(t *testing.T, store *MemoryStore, mutate func(*domain.Ticket)) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		ExternalKey:   "HSP-" + time.Now().Format("150405.000000000"),
		Title:         "Billing issue",
		Description:   "Invoice total looks wrong",
		Category:      "billing",
		Priority:      domain.TicketPriorityMedium,
		Status:        domain.TicketStatusNew,
		AssignedTeam:  domain.TeamAdministrator,
		CreatedBy:     "user-1",
		CreatedByRole: domain.RoleCoordinator,
	}
	if mutate != nil {
		mutate(ticket)
	}
	require.NoError(t, store.Create(context.Background(), ticket))
	return ticket
}

func TestMemoryCreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	created := seedTicket(t, store, nil)

	got, err := store.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, domain.TicketStatusNew, got.Status)
	assert.Equal(t, created.CreatedAt, got.UpdatedAt)

	_, err = store.GetByID(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestMemoryGetReturnsSnapshot(t *testing.T) {
	store := NewMemoryStore()
	created := seedTicket(t, store, nil)

	got, err := store.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	got.Status = domain.TicketStatusCancelled

	again, err := store.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusNew, again.Status, "mutating a read copy must not leak into the store")
}

func TestMemoryUpdateStatusCAS(t *testing.T) {
	store := NewMemoryStore()
	created := seedTicket(t, store, nil)

	transition := &domain.StatusTransition{ActorID: "staff-1", Notes: "picked up"}
	updated, err := store.UpdateStatus(context.Background(), created.ID, domain.TicketStatusNew, domain.TicketStatusInProgress, transition)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt) || updated.UpdatedAt.Equal(updated.CreatedAt))
	assert.Equal(t, 1, transition.Seq)
	assert.Equal(t, domain.TicketStatusNew, transition.FromStatus)

	// Second CAS against the stale expected status loses the race.
	_, err = store.UpdateStatus(context.Background(), created.ID, domain.TicketStatusNew, domain.TicketStatusInProgress, &domain.StatusTransition{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConcurrentModification))

	_, err = store.UpdateStatus(context.Background(), "missing", domain.TicketStatusNew, domain.TicketStatusInProgress, &domain.StatusTransition{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	transitions, err := store.ListTransitions(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, transitions, 1, "a lost race must not append an audit record")
}

func TestMemoryConcurrentTransitionsExactlyOneWins(t *testing.T) {
	store := NewMemoryStore()
	created := seedTicket(t, store, nil)

	const attempts = 16
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.UpdateStatus(context.Background(), created.ID,
				domain.TicketStatusNew, domain.TicketStatusInProgress, &domain.StatusTransition{ActorID: "racer"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.True(t, apperrors.HasCode(err, apperrors.CodeConcurrentModification))
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, losses)

	transitions, err := store.ListTransitions(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Len(t, transitions, 1)
}

func TestMemoryListOrderingAndPagination(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		offset := time.Duration(i) * time.Hour
		seedTicket(t, store, func(ticket *domain.Ticket) {
			ticket.CreatedAt = base.Add(offset)
		})
	}

	pageOne, total, err := store.List(context.Background(), TicketFilter{Limit: 2, Offset: 0})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, pageOne, 2)
	assert.True(t, pageOne[0].CreatedAt.After(pageOne[1].CreatedAt), "newest first")

	pageThree, total, err := store.List(context.Background(), TicketFilter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, pageThree, 1)

	beyond, total, err := store.List(context.Background(), TicketFilter{Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, beyond)
}

func TestMemoryListTieBreaksByID(t *testing.T) {
	store := NewMemoryStore()
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		seedTicket(t, store, func(ticket *domain.Ticket) {
			ticket.CreatedAt = created
		})
	}

	first, _, err := store.List(context.Background(), TicketFilter{Limit: 10})
	require.NoError(t, err)
	second, _, err := store.List(context.Background(), TicketFilter{Limit: 10})
	require.NoError(t, err)

	require.Len(t, first, 4)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, "same-timestamp ordering must be deterministic")
	}
}

func TestMemoryFilters(t *testing.T) {
	store := NewMemoryStore()
	seedTicket(t, store, func(ticket *domain.Ticket) {
		ticket.AssignedTeam = domain.TeamCoordinator
		ticket.Status = domain.TicketStatusInProgress
		ticket.Priority = domain.TicketPriorityHigh
		ticket.Category = "scheduling"
		ticket.Title = "Calendar sync broken"
		ticket.CreatedBy = "user-2"
	})
	admin := seedTicket(t, store, nil)

	byTeam, total, err := store.List(context.Background(), TicketFilter{Teams: []domain.Team{domain.TeamAdministrator}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, byTeam, 1)
	assert.Equal(t, admin.ID, byTeam[0].ID)

	bySearch, _, err := store.List(context.Background(), TicketFilter{SearchTerm: strPtr("CALENDAR")})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	assert.Equal(t, "Calendar sync broken", bySearch[0].Title)

	byCreator, _, err := store.List(context.Background(), TicketFilter{CreatedBy: strPtr("user-2")})
	require.NoError(t, err)
	assert.Len(t, byCreator, 1)

	none, total, err := store.List(context.Background(), TicketFilter{
		Teams:    []domain.Team{domain.TeamCoordinator},
		Statuses: []domain.TicketStatus{domain.TicketStatusResolved},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, none)
}

func TestMemoryOverdueFilter(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now().UTC()
	thresholds := domain.OverdueThresholds{domain.TicketPriorityUrgent: 2, domain.TicketPriorityLow: 14}

	overdue := seedTicket(t, store, func(ticket *domain.Ticket) {
		ticket.Priority = domain.TicketPriorityUrgent
		ticket.CreatedAt = now.Add(-10 * 24 * time.Hour)
	})
	seedTicket(t, store, func(ticket *domain.Ticket) {
		ticket.Priority = domain.TicketPriorityLow
		ticket.CreatedAt = now.Add(-10 * 24 * time.Hour)
	})
	seedTicket(t, store, func(ticket *domain.Ticket) {
		ticket.Priority = domain.TicketPriorityUrgent
		ticket.Status = domain.TicketStatusCancelled
		ticket.CreatedAt = now.Add(-10 * 24 * time.Hour)
	})

	cutoffs := map[domain.TicketPriority]time.Time{}
	for _, priority := range domain.Priorities() {
		if cutoff, ok := thresholds.OverdueCutoff(priority, now); ok {
			cutoffs[priority] = cutoff
		}
	}

	flag := true
	matches, total, err := store.List(context.Background(), TicketFilter{Overdue: &flag, OverdueCutoffs: cutoffs})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, matches, 1)
	assert.Equal(t, overdue.ID, matches[0].ID)

	flag = false
	notOverdue, total, err := store.List(context.Background(), TicketFilter{Overdue: &flag, OverdueCutoffs: cutoffs})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, notOverdue, 2)
}

func TestMemoryAggregatesMatchList(t *testing.T) {
	store := NewMemoryStore()
	seedTicket(t, store, nil)
	seedTicket(t, store, func(ticket *domain.Ticket) {
		ticket.Priority = domain.TicketPriorityUrgent
	})
	seedTicket(t, store, func(ticket *domain.Ticket) {
		ticket.AssignedTeam = domain.TeamCoordinator
		ticket.Status = domain.TicketStatusInProgress
	})

	filters := []TicketFilter{
		{},
		{Teams: []domain.Team{domain.TeamAdministrator}},
		{Priorities: []domain.TicketPriority{domain.TicketPriorityUrgent}},
		{Statuses: []domain.TicketStatus{domain.TicketStatusInProgress}},
	}
	for _, filter := range filters {
		filter.Limit = 100
		_, total, err := store.List(context.Background(), filter)
		require.NoError(t, err)
		agg, err := store.AggregateCounts(context.Background(), filter)
		require.NoError(t, err)
		assert.Equal(t, total, agg.Total, "aggregate total must match list total")
	}

	agg, err := store.AggregateCounts(context.Background(), TicketFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, agg.Total)
	assert.Equal(t, 2, agg.ByStatus[domain.TicketStatusNew])
	assert.Equal(t, 1, agg.ByStatus[domain.TicketStatusInProgress])
	assert.Equal(t, 1, agg.ByPriority[domain.TicketPriorityUrgent])
	assert.Equal(t, 2, agg.ByTeam[domain.TeamAdministrator])
}

func TestMemoryCommentThread(t *testing.T) {
	store := NewMemoryStore()
	comments := store.Comments()
	created := seedTicket(t, store, nil)

	err := comments.Create(context.Background(), &domain.Comment{TicketID: "missing", AuthorID: "u", Body: "hello"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	for i := 0; i < 3; i++ {
		require.NoError(t, comments.Create(context.Background(), &domain.Comment{
			TicketID: created.ID,
			AuthorID: "user-1",
			Body:     "remark",
		}))
	}

	thread, err := comments.ListByTicket(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, thread, 3)
	for i, comment := range thread {
		assert.Equal(t, i+1, comment.Seq, "creation order must be preserved")
	}

	// Comments never touch the ticket's UpdatedAt.
	after, err := store.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.UpdatedAt, after.UpdatedAt)
}

func strPtr(s string) *string {
	return &s
}
