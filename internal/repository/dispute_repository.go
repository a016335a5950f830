package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dispute-engine/internal/domain"
)

// ErrVersionConflict is returned when a state-changing write loses the
// optimistic-concurrency race. Callers re-read and retry.
var ErrVersionConflict = errors.New("dispute version conflict")

// DisputeFilter captures listing parameters. PartyUserID restricts the
// result to disputes the user initiated or is the job counterparty on.
type DisputeFilter struct {
	PartyUserID *string
	JobID       *string
	PropertyID  *string
	Statuses    []domain.DisputeStatus
	Priorities  []domain.DisputePriority
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// DisputeRepository encapsulates dispute-row persistence. Messages,
// evidence, and offers live in their own repositories; the service layer
// assembles the aggregate.
type DisputeRepository interface {
	Create(ctx context.Context, dispute *domain.Dispute) error
	GetByID(ctx context.Context, id string) (*domain.Dispute, error)
	// UpdateState applies status/priority/settlement fields guarded by
	// dispute.Version. On success the version and updated_at fields on
	// the passed dispute are refreshed; a stale version yields
	// ErrVersionConflict.
	UpdateState(ctx context.Context, dispute *domain.Dispute) error
	// TouchUpdatedAt advances updated_at without a version bump. Used by
	// log appends, which are commutative and never conflict.
	TouchUpdatedAt(ctx context.Context, id string) error
	ListWithFilter(ctx context.Context, filter DisputeFilter) ([]domain.Dispute, error)
	// ListStaleOpen returns open disputes created before cutoff that have
	// no counterparty communication yet, for priority auto-escalation.
	ListStaleOpen(ctx context.Context, cutoff time.Time, limit int) ([]domain.Dispute, error)
}

type disputeRepository struct {
	pool *pgxpool.Pool
}

// NewDisputeRepository instantiates repository.
func NewDisputeRepository(pool *pgxpool.Pool) DisputeRepository {
	return &disputeRepository{pool: pool}
}

const disputeColumns = `id, job_id, job_title, property_id, initiated_by, initiated_by_role, counterparty_role,
               title, description, desired_outcome, amount_cents, settled_cents, priority, status, version,
               created_at, updated_at, resolved_at, closed_at`

func (r *disputeRepository) Create(ctx context.Context, dispute *domain.Dispute) error {
	const query = `
        INSERT INTO disputes (job_id, job_title, property_id, initiated_by, initiated_by_role, counterparty_role,
            title, description, desired_outcome, amount_cents, priority, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		dispute.JobID,
		dispute.JobTitle,
		dispute.PropertyID,
		dispute.InitiatedBy,
		dispute.InitiatedByRole,
		dispute.CounterpartyRole,
		dispute.Title,
		dispute.Description,
		dispute.DesiredOutcome,
		dispute.AmountCents,
		dispute.Priority,
		dispute.Status,
	).Scan(&dispute.ID, &dispute.Version, &dispute.CreatedAt, &dispute.UpdatedAt)
}

func (r *disputeRepository) GetByID(ctx context.Context, id string) (*domain.Dispute, error) {
	query := fmt.Sprintf(`SELECT %s FROM disputes WHERE id=$1`, disputeColumns)
	var dispute domain.Dispute
	if err := r.pool.QueryRow(ctx, query, id).Scan(scanTargets(&dispute)...); err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *disputeRepository) UpdateState(ctx context.Context, dispute *domain.Dispute) error {
	const query = `
        UPDATE disputes SET status=$1, priority=$2, settled_cents=$3, resolved_at=$4, closed_at=$5,
            version=version+1, updated_at=NOW()
        WHERE id=$6 AND version=$7
        RETURNING version, updated_at`
	err := r.pool.QueryRow(ctx, query,
		dispute.Status,
		dispute.Priority,
		dispute.SettledCents,
		dispute.ResolvedAt,
		dispute.ClosedAt,
		dispute.ID,
		dispute.Version,
	).Scan(&dispute.Version, &dispute.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVersionConflict
	}
	return err
}

func (r *disputeRepository) TouchUpdatedAt(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE disputes SET updated_at=NOW() WHERE id=$1`, id)
	return err
}

func (r *disputeRepository) ListWithFilter(ctx context.Context, filter DisputeFilter) ([]domain.Dispute, error) {
	base := fmt.Sprintf(`SELECT %s FROM disputes`, disputeColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.PartyUserID != nil {
		args = append(args, *filter.PartyUserID)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(`(initiated_by=%s OR job_id IN (
            SELECT id FROM jobs WHERE landlord_user_id=%s OR contractor_user_id=%s OR tenant_user_id=%s))`,
			placeholder, placeholder, placeholder, placeholder))
	}
	if filter.JobID != nil {
		args = append(args, *filter.JobID)
		clauses = append(clauses, fmt.Sprintf("job_id=$%d", len(args)))
	}
	if filter.PropertyID != nil {
		args = append(args, *filter.PropertyID)
		clauses = append(clauses, fmt.Sprintf("property_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDisputes(rows)
}

func (r *disputeRepository) ListStaleOpen(ctx context.Context, cutoff time.Time, limit int) ([]domain.Dispute, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
        SELECT %s FROM disputes d
        WHERE d.status='open' AND d.priority <> 'urgent' AND d.created_at < $1
          AND NOT EXISTS (
            SELECT 1 FROM dispute_messages m
            WHERE m.dispute_id = d.id AND m.sender_id <> d.initiated_by)
        ORDER BY d.created_at ASC LIMIT %d`, disputeColumns, limit)
	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDisputes(rows)
}

func scanTargets(dispute *domain.Dispute) []any {
	return []any{
		&dispute.ID,
		&dispute.JobID,
		&dispute.JobTitle,
		&dispute.PropertyID,
		&dispute.InitiatedBy,
		&dispute.InitiatedByRole,
		&dispute.CounterpartyRole,
		&dispute.Title,
		&dispute.Description,
		&dispute.DesiredOutcome,
		&dispute.AmountCents,
		&dispute.SettledCents,
		&dispute.Priority,
		&dispute.Status,
		&dispute.Version,
		&dispute.CreatedAt,
		&dispute.UpdatedAt,
		&dispute.ResolvedAt,
		&dispute.ClosedAt,
	}
}

func scanDisputes(rows pgx.Rows) ([]domain.Dispute, error) {
	var result []domain.Dispute
	for rows.Next() {
		var dispute domain.Dispute
		if err := rows.Scan(scanTargets(&dispute)...); err != nil {
			return nil, err
		}
		result = append(result, dispute)
	}
	return result, rows.Err()
}
