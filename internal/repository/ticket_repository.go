package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborview/support-service/internal/domain"
	apperrors "github.com/harborview/support-service/pkg/util/errorutil"
)

// TicketFilter captures the query facade's criteria. Teams must already be
// narrowed against the caller's viewable set; the repository applies no
// authorization of its own.
type TicketFilter struct {
	Teams          []domain.Team
	Statuses       []domain.TicketStatus
	Priorities     []domain.TicketPriority
	Categories     []string
	CreatedBy      *string
	AssignedTo     *string
	Overdue        *bool
	OverdueCutoffs map[domain.TicketPriority]time.Time
	SearchTerm     *string
	Limit          int
	Offset         int
}

// TicketAggregates holds counts over the same candidate set List matches.
type TicketAggregates struct {
	Total      int
	ByStatus   map[domain.TicketStatus]int
	ByPriority map[domain.TicketPriority]int
	ByTeam     map[domain.Team]int
}

// TicketRepository encapsulates ticket and audit-trail persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// List returns one page plus the total match count, both computed
	// against a single consistent snapshot.
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	AggregateCounts(ctx context.Context, filter TicketFilter) (*TicketAggregates, error)
	// UpdateStatus performs a compare-and-swap on the ticket's current
	// status and appends the audit record in the same transaction. A stale
	// expected status yields CONCURRENT_MODIFICATION.
	UpdateStatus(ctx context.Context, ticketID string, from, to domain.TicketStatus, transition *domain.StatusTransition) (*domain.Ticket, error)
	ListTransitions(ctx context.Context, ticketID string) ([]domain.StatusTransition, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, title, description, category, priority, status,
               assigned_team, assigned_to, created_by, created_by_role, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = ticket.CreatedAt

	const query = `
        INSERT INTO tickets (id, external_key, title, description, category, priority, status,
                             assigned_team, assigned_to, created_by, created_by_role, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.ExternalKey,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedTeam,
		ticket.AssignedTo,
		ticket.CreatedBy,
		ticket.CreatedByRole,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewStorageUnavailable(err)
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return scanTicketRow(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	where, args := buildTicketWhere(filter)

	// Count and page share one repeatable-read snapshot so the total can
	// never drift from the items as concurrent creates land.
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, apperrors.NewStorageUnavailable(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM tickets WHERE %s`, where)
	if err := tx.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.NewStorageUnavailable(err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	pageQuery := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, id LIMIT %d OFFSET %d`,
		ticketColumns, where, limit, offset)

	rows, err := tx.Query(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, apperrors.NewStorageUnavailable(err)
	}
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, 0, apperrors.NewStorageUnavailable(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, 0, apperrors.NewStorageUnavailable(err)
	}
	return tickets, total, nil
}

func (r *ticketRepository) AggregateCounts(ctx context.Context, filter TicketFilter) (*TicketAggregates, error) {
	where, args := buildTicketWhere(filter)
	query := fmt.Sprintf(`SELECT status, priority, assigned_team, COUNT(*)
        FROM tickets WHERE %s GROUP BY status, priority, assigned_team`, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}
	defer rows.Close()

	agg := newTicketAggregates()
	for rows.Next() {
		var (
			status   domain.TicketStatus
			priority domain.TicketPriority
			team     domain.Team
			count    int
		)
		if err := rows.Scan(&status, &priority, &team, &count); err != nil {
			return nil, apperrors.NewStorageUnavailable(err)
		}
		agg.Total += count
		agg.ByStatus[status] += count
		agg.ByPriority[priority] += count
		agg.ByTeam[team] += count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}
	return agg, nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, ticketID string, from, to domain.TicketStatus, transition *domain.StatusTransition) (*domain.Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	updateQuery := fmt.Sprintf(`
        UPDATE tickets SET status=$3, updated_at=$4
        WHERE id=$1 AND status=$2
        RETURNING %s`, ticketColumns)
	ticket, err := scanTicketRow(tx.QueryRow(ctx, updateQuery, ticketID, from, to, time.Now().UTC()))
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			// Distinguish a missing ticket from a lost CAS race.
			var exists bool
			checkErr := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=$1)`, ticketID).Scan(&exists)
			if checkErr != nil {
				return nil, apperrors.NewStorageUnavailable(checkErr)
			}
			if exists {
				return nil, apperrors.NewConcurrentModification(ticketID)
			}
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}

	transition.ID = uuid.NewString()
	transition.TicketID = ticketID
	transition.FromStatus = from
	transition.ToStatus = to
	const insertQuery = `
        INSERT INTO ticket_transitions (id, ticket_id, seq, from_status, to_status, notes, actor_id)
        VALUES ($1, $2, (SELECT COALESCE(MAX(seq),0)+1 FROM ticket_transitions WHERE ticket_id=$2), $3, $4, $5, $6)
        RETURNING seq, created_at`
	if err := tx.QueryRow(ctx, insertQuery,
		transition.ID,
		ticketID,
		from,
		to,
		transition.Notes,
		transition.ActorID,
	).Scan(&transition.Seq, &transition.CreatedAt); err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}
	return ticket, nil
}

func (r *ticketRepository) ListTransitions(ctx context.Context, ticketID string) ([]domain.StatusTransition, error) {
	const query = `
        SELECT id, ticket_id, seq, from_status, to_status, notes, actor_id, created_at
        FROM ticket_transitions WHERE ticket_id=$1 ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}
	defer rows.Close()

	var result []domain.StatusTransition
	for rows.Next() {
		var tr domain.StatusTransition
		if err := rows.Scan(
			&tr.ID,
			&tr.TicketID,
			&tr.Seq,
			&tr.FromStatus,
			&tr.ToStatus,
			&tr.Notes,
			&tr.ActorID,
			&tr.CreatedAt,
		); err != nil {
			return nil, apperrors.NewStorageUnavailable(err)
		}
		result = append(result, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}
	return result, nil
}

func buildTicketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	addInClause := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			args = append(args, v)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ",")))
	}

	addInClause("assigned_team", teamStrings(filter.Teams))
	addInClause("status", statusStrings(filter.Statuses))
	addInClause("priority", priorityStrings(filter.Priorities))
	addInClause("category", filter.Categories)

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}
	if filter.Overdue != nil {
		overdueClause := buildOverdueClause(filter.OverdueCutoffs, &args)
		if *filter.Overdue {
			clauses = append(clauses, overdueClause)
		} else {
			clauses = append(clauses, fmt.Sprintf("NOT %s", overdueClause))
		}
	}

	return strings.Join(clauses, " AND "), args
}

// buildOverdueClause renders the derived overdue flag in SQL: a non-terminal
// ticket older than its priority's cutoff.
func buildOverdueClause(cutoffs map[domain.TicketPriority]time.Time, args *[]any) string {
	priorityClauses := []string{}
	for _, priority := range domain.Priorities() {
		cutoff, ok := cutoffs[priority]
		if !ok {
			continue
		}
		*args = append(*args, string(priority))
		priorityPlaceholder := fmt.Sprintf("$%d", len(*args))
		*args = append(*args, cutoff)
		cutoffPlaceholder := fmt.Sprintf("$%d", len(*args))
		priorityClauses = append(priorityClauses,
			fmt.Sprintf("(priority=%s AND created_at <= %s)", priorityPlaceholder, cutoffPlaceholder))
	}
	if len(priorityClauses) == 0 {
		return "(FALSE)"
	}
	return fmt.Sprintf("(status IN ('%s','%s') AND (%s))",
		domain.TicketStatusNew, domain.TicketStatusInProgress, strings.Join(priorityClauses, " OR "))
}

func newTicketAggregates() *TicketAggregates {
	return &TicketAggregates{
		ByStatus:   make(map[domain.TicketStatus]int),
		ByPriority: make(map[domain.TicketPriority]int),
		ByTeam:     make(map[domain.Team]int),
	}
}

func teamStrings(teams []domain.Team) []string {
	out := make([]string, len(teams))
	for i, t := range teams {
		out[i] = string(t)
	}
	return out
}

func statusStrings(statuses []domain.TicketStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func priorityStrings(priorities []domain.TicketPriority) []string {
	out := make([]string, len(priorities))
	for i, p := range priorities {
		out[i] = string(p)
	}
	return out
}

func scanTicketRow(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.AssignedTeam,
		&ticket.AssignedTo,
		&ticket.CreatedBy,
		&ticket.CreatedByRole,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", nil)
		}
		return nil, apperrors.NewStorageUnavailable(err)
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	defer rows.Close()
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.ExternalKey,
			&ticket.Title,
			&ticket.Description,
			&ticket.Category,
			&ticket.Priority,
			&ticket.Status,
			&ticket.AssignedTeam,
			&ticket.AssignedTo,
			&ticket.CreatedBy,
			&ticket.CreatedByRole,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
