package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dispute-engine/internal/domain"
)

// MessageRepository persists the append-only communications log.
type MessageRepository interface {
	Create(ctx context.Context, message *domain.DisputeMessage) error
	ListByDispute(ctx context.Context, disputeID string) ([]domain.DisputeMessage, error)
	CountByDispute(ctx context.Context, disputeID string) (int, error)
	CountFromOthers(ctx context.Context, disputeID, initiatorID string) (int, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository instantiates repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, message *domain.DisputeMessage) error {
	const query = `
        INSERT INTO dispute_messages (dispute_id, sender_id, sender_role, sender_name, message, message_type, is_private, attachments)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		message.DisputeID,
		message.SenderID,
		message.SenderRole,
		message.SenderName,
		message.Message,
		message.Type,
		message.IsPrivate,
		message.Attachments,
	).Scan(&message.ID, &message.CreatedAt)
}

func (r *messageRepository) ListByDispute(ctx context.Context, disputeID string) ([]domain.DisputeMessage, error) {
	const query = `
        SELECT id, dispute_id, sender_id, sender_role, sender_name, message, message_type, is_private, attachments, created_at
        FROM dispute_messages WHERE dispute_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, disputeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *messageRepository) CountByDispute(ctx context.Context, disputeID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dispute_messages WHERE dispute_id=$1`, disputeID).Scan(&count)
	return count, err
}

func (r *messageRepository) CountFromOthers(ctx context.Context, disputeID, initiatorID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM dispute_messages WHERE dispute_id=$1 AND sender_id<>$2`,
		disputeID, initiatorID).Scan(&count)
	return count, err
}

func scanMessages(rows pgx.Rows) ([]domain.DisputeMessage, error) {
	var result []domain.DisputeMessage
	for rows.Next() {
		var msg domain.DisputeMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.DisputeID,
			&msg.SenderID,
			&msg.SenderRole,
			&msg.SenderName,
			&msg.Message,
			&msg.Type,
			&msg.IsPrivate,
			&msg.Attachments,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
