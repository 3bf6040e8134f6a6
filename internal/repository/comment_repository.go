package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborview/support-service/internal/domain"
	apperrors "github.com/harborview/support-service/pkg/util/errorutil"
)

// CommentRepository manages the append-only comment thread of a ticket.
// Comment writes never touch the ticket row's updated_at.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds the Postgres-backed repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperrors.NewStorageUnavailable(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Row lock serializes concurrent appends on one ticket so the per-ticket
	// sequence stays gapless. The lock does not modify the ticket row.
	var lockedID string
	err = tx.QueryRow(ctx, `SELECT id FROM tickets WHERE id=$1 FOR UPDATE`, comment.TicketID).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": comment.TicketID})
		}
		return apperrors.NewStorageUnavailable(err)
	}

	comment.ID = uuid.NewString()
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `
        INSERT INTO ticket_comments (id, ticket_id, seq, author_id, body, created_at)
        VALUES ($1, $2, (SELECT COALESCE(MAX(seq),0)+1 FROM ticket_comments WHERE ticket_id=$2), $3, $4, $5)
        RETURNING seq`
	if err := tx.QueryRow(ctx, query,
		comment.ID,
		comment.TicketID,
		comment.AuthorID,
		comment.Body,
		comment.CreatedAt,
	).Scan(&comment.Seq); err != nil {
		return apperrors.NewStorageUnavailable(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewStorageUnavailable(err)
	}
	return nil
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	const query = `
        SELECT id, ticket_id, seq, author_id, body, created_at
        FROM ticket_comments WHERE ticket_id=$1 ORDER BY created_at ASC, seq ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.Seq,
			&comment.AuthorID,
			&comment.Body,
			&comment.CreatedAt,
		); err != nil {
			return nil, apperrors.NewStorageUnavailable(err)
		}
		result = append(result, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}
	return result, nil
}
