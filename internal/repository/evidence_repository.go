package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dispute-engine/internal/domain"
)

// EvidenceRepository persists the append-only evidence log.
type EvidenceRepository interface {
	Create(ctx context.Context, evidence *domain.DisputeEvidence) error
	ListByDispute(ctx context.Context, disputeID string) ([]domain.DisputeEvidence, error)
}

type evidenceRepository struct {
	pool *pgxpool.Pool
}

// NewEvidenceRepository instantiates repository.
func NewEvidenceRepository(pool *pgxpool.Pool) EvidenceRepository {
	return &evidenceRepository{pool: pool}
}

func (r *evidenceRepository) Create(ctx context.Context, evidence *domain.DisputeEvidence) error {
	const query = `
        INSERT INTO dispute_evidence (dispute_id, evidence_type, title, description, file_url, uploaded_by, uploaded_by_role, is_public, mime_type, size_bytes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, uploaded_at`
	return r.pool.QueryRow(ctx, query,
		evidence.DisputeID,
		evidence.Type,
		evidence.Title,
		evidence.Description,
		evidence.FileURL,
		evidence.UploadedBy,
		evidence.UploadedByRole,
		evidence.IsPublic,
		evidence.Metadata.MimeType,
		evidence.Metadata.SizeBytes,
	).Scan(&evidence.ID, &evidence.UploadedAt)
}

func (r *evidenceRepository) ListByDispute(ctx context.Context, disputeID string) ([]domain.DisputeEvidence, error) {
	const query = `
        SELECT id, dispute_id, evidence_type, title, description, file_url, uploaded_by, uploaded_by_role, is_public, mime_type, size_bytes, uploaded_at
        FROM dispute_evidence WHERE dispute_id=$1 ORDER BY uploaded_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, disputeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvidence(rows)
}

func scanEvidence(rows pgx.Rows) ([]domain.DisputeEvidence, error) {
	var result []domain.DisputeEvidence
	for rows.Next() {
		var item domain.DisputeEvidence
		if err := rows.Scan(
			&item.ID,
			&item.DisputeID,
			&item.Type,
			&item.Title,
			&item.Description,
			&item.FileURL,
			&item.UploadedBy,
			&item.UploadedByRole,
			&item.IsPublic,
			&item.Metadata.MimeType,
			&item.Metadata.SizeBytes,
			&item.UploadedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}
