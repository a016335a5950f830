package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dispute-engine/internal/domain"
)

// ErrPendingOfferExists is returned when a second pending offer would
// violate the one-pending-offer invariant, enforced by a partial unique
// index on settlement_offers.
var ErrPendingOfferExists = errors.New("a pending offer already exists for this dispute")

// ErrOfferNotPending is returned when a guarded status write finds the
// offer already terminal.
var ErrOfferNotPending = errors.New("offer is no longer pending")

// OfferRepository persists settlement offers. Terminal offers are
// immutable; every status write is guarded on status='pending'.
type OfferRepository interface {
	Create(ctx context.Context, offer *domain.SettlementOffer) error
	GetByID(ctx context.Context, id string) (*domain.SettlementOffer, error)
	ListByDispute(ctx context.Context, disputeID string) ([]domain.SettlementOffer, error)
	// Resolve moves a pending offer to accepted or rejected, recording
	// the response.
	Resolve(ctx context.Context, offerID string, status domain.OfferStatus, response domain.OfferResponse) error
	// MarkExpired moves a pending offer to expired. Safe to call twice;
	// the second call reports ErrOfferNotPending.
	MarkExpired(ctx context.Context, offerID string) error
	// ListExpiredPending returns pending offers whose deadline has
	// passed, for the background sweep.
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.SettlementOffer, error)
}

type offerRepository struct {
	pool *pgxpool.Pool
}

// NewOfferRepository instantiates repository.
func NewOfferRepository(pool *pgxpool.Pool) OfferRepository {
	return &offerRepository{pool: pool}
}

const offerColumns = `id, dispute_id, offered_by, offered_by_role, offer_type,
               monetary_amount_cents, monetary_description,
               work_description, work_timeline, work_materials, work_no_charge,
               conditions, expires_at, status,
               responded_by, responded_role, response_action, response_message, responded_at,
               created_at`

func (r *offerRepository) Create(ctx context.Context, offer *domain.SettlementOffer) error {
	const query = `
        INSERT INTO settlement_offers (dispute_id, offered_by, offered_by_role, offer_type,
            monetary_amount_cents, monetary_description,
            work_description, work_timeline, work_materials, work_no_charge,
            conditions, expires_at, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, created_at`
	var (
		monetaryAmount *int64
		monetaryDesc   *string
		workDesc       *string
		workTimeline   *string
		workMaterials  *string
		workNoCharge   *bool
	)
	if offer.Monetary != nil {
		monetaryAmount = &offer.Monetary.AmountCents
		monetaryDesc = &offer.Monetary.Description
	}
	if offer.Work != nil {
		workDesc = &offer.Work.Description
		workTimeline = &offer.Work.Timeline
		workMaterials = &offer.Work.Materials
		workNoCharge = &offer.Work.NoCharge
	}
	err := r.pool.QueryRow(ctx, query,
		offer.DisputeID,
		offer.OfferedBy,
		offer.OfferedByRole,
		offer.OfferType,
		monetaryAmount,
		monetaryDesc,
		workDesc,
		workTimeline,
		workMaterials,
		workNoCharge,
		offer.Conditions,
		offer.ExpiresAt,
		offer.Status,
	).Scan(&offer.ID, &offer.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrPendingOfferExists
	}
	return err
}

func (r *offerRepository) GetByID(ctx context.Context, id string) (*domain.SettlementOffer, error) {
	query := `SELECT ` + offerColumns + ` FROM settlement_offers WHERE id=$1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanOffer(row)
}

func (r *offerRepository) ListByDispute(ctx context.Context, disputeID string) ([]domain.SettlementOffer, error) {
	query := `SELECT ` + offerColumns + ` FROM settlement_offers WHERE dispute_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, disputeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []domain.SettlementOffer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *offer)
	}
	return result, rows.Err()
}

func (r *offerRepository) Resolve(ctx context.Context, offerID string, status domain.OfferStatus, response domain.OfferResponse) error {
	const query = `
        UPDATE settlement_offers SET status=$1, responded_by=$2, responded_role=$3,
            response_action=$4, response_message=$5, responded_at=$6
        WHERE id=$7 AND status='pending'`
	cmd, err := r.pool.Exec(ctx, query,
		status,
		response.RespondedBy,
		response.RespondedRole,
		response.Action,
		response.Message,
		response.RespondedAt,
		offerID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrOfferNotPending
	}
	return nil
}

func (r *offerRepository) MarkExpired(ctx context.Context, offerID string) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE settlement_offers SET status='expired' WHERE id=$1 AND status='pending'`, offerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrOfferNotPending
	}
	return nil
}

func (r *offerRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.SettlementOffer, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + offerColumns + ` FROM settlement_offers
        WHERE status='pending' AND expires_at <= $1 ORDER BY expires_at ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []domain.SettlementOffer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *offer)
	}
	return result, rows.Err()
}

func scanOffer(row pgx.Row) (*domain.SettlementOffer, error) {
	var (
		offer          domain.SettlementOffer
		monetaryAmount *int64
		monetaryDesc   *string
		workDesc       *string
		workTimeline   *string
		workMaterials  *string
		workNoCharge   *bool
		respondedBy    *string
		respondedRole  *domain.PartyRole
		responseAction *domain.OfferAction
		responseMsg    *string
		respondedAt    *time.Time
	)
	if err := row.Scan(
		&offer.ID,
		&offer.DisputeID,
		&offer.OfferedBy,
		&offer.OfferedByRole,
		&offer.OfferType,
		&monetaryAmount,
		&monetaryDesc,
		&workDesc,
		&workTimeline,
		&workMaterials,
		&workNoCharge,
		&offer.Conditions,
		&offer.ExpiresAt,
		&offer.Status,
		&respondedBy,
		&respondedRole,
		&responseAction,
		&responseMsg,
		&respondedAt,
		&offer.CreatedAt,
	); err != nil {
		return nil, err
	}
	if monetaryAmount != nil {
		offer.Monetary = &domain.MonetaryOffer{AmountCents: *monetaryAmount}
		if monetaryDesc != nil {
			offer.Monetary.Description = *monetaryDesc
		}
	}
	if workDesc != nil {
		offer.Work = &domain.WorkOffer{Description: *workDesc}
		if workTimeline != nil {
			offer.Work.Timeline = *workTimeline
		}
		if workMaterials != nil {
			offer.Work.Materials = *workMaterials
		}
		if workNoCharge != nil {
			offer.Work.NoCharge = *workNoCharge
		}
	}
	if respondedBy != nil && responseAction != nil && respondedAt != nil {
		offer.Response = &domain.OfferResponse{
			RespondedBy: *respondedBy,
			Action:      *responseAction,
			RespondedAt: *respondedAt,
		}
		if respondedRole != nil {
			offer.Response.RespondedRole = *respondedRole
		}
		if responseMsg != nil {
			offer.Response.Message = *responseMsg
		}
	}
	return &offer, nil
}
