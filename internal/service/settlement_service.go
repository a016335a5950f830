package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spec-kit/dispute-engine/internal/bridge"
	"github.com/spec-kit/dispute-engine/internal/domain"
	"github.com/spec-kit/dispute-engine/internal/events"
	"github.com/spec-kit/dispute-engine/internal/repository"
	apperrors "github.com/spec-kit/dispute-engine/pkg/util"
)

// SettlementService governs the settlement offer lifecycle and the
// settlement instruction emitted when an offer is accepted.
type SettlementService struct {
	disputeSvc *DisputeService
	disputes   repository.DisputeRepository
	offers     repository.OfferRepository
	emitter    *bridge.Emitter
	dispatcher events.Dispatcher
	defaultTTL time.Duration
	clock      func() time.Time
}

// SettlementDependencies bundles collaborators for the settlement service.
type SettlementDependencies struct {
	DisputeService *DisputeService
	DisputeRepo    repository.DisputeRepository
	OfferRepo      repository.OfferRepository
	Emitter        *bridge.Emitter
	Dispatcher     events.Dispatcher
	DefaultTTL     time.Duration
	Clock          func() time.Time
}

// MonetaryOfferInput is the payload for monetary and partial_refund offers.
type MonetaryOfferInput struct {
	AmountCents int64
	Description string
}

// WorkOfferInput is the payload for work_completion and additional_work offers.
type WorkOfferInput struct {
	Description string
	Timeline    string
	Materials   string
	NoCharge    bool
}

// OfferInput describes a settlement offer proposal. Exactly one of
// Monetary/Work must be set, matching the offer type.
type OfferInput struct {
	OfferType  domain.OfferType
	Monetary   *MonetaryOfferInput
	Work       *WorkOfferInput
	Conditions []string
	ExpiresAt  *time.Time
}

// NewSettlementService constructs the service.
func NewSettlementService(deps SettlementDependencies) *SettlementService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	ttl := deps.DefaultTTL
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &SettlementService{
		disputeSvc: deps.DisputeService,
		disputes:   deps.DisputeRepo,
		offers:     deps.OfferRepo,
		emitter:    deps.Emitter,
		dispatcher: deps.Dispatcher,
		defaultTTL: ttl,
		clock:      clock,
	}
}

// CreateOffer proposes a settlement on behalf of a dispute party. At
// most one offer may be pending per dispute at any time.
func (s *SettlementService) CreateOffer(ctx context.Context, party domain.Party, disputeID string, input OfferInput) (*domain.SettlementOffer, error) {
	if err := validateOfferPayload(input); err != nil {
		return nil, err
	}

	dispute, err := s.disputeSvc.loadAggregate(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if party.Role.IsStaff() {
		return nil, apperrors.NewForbidden("offers come from the dispute parties, not staff")
	}
	involved, err := s.disputeSvc.partyOnDispute(ctx, dispute, party)
	if err != nil {
		return nil, err
	}
	if !involved {
		return nil, apperrors.NewForbidden("not a party to this dispute")
	}
	if dispute.Status == domain.DisputeStatusResolved || dispute.Status == domain.DisputeStatusClosed {
		return nil, apperrors.NewInvalidState("dispute no longer accepts offers", map[string]any{
			"status": string(dispute.Status),
		})
	}
	if pending := dispute.PendingOffer(); pending != nil {
		return nil, apperrors.NewInvalidState("an offer is already pending", map[string]any{
			"pending_offer_id": pending.ID,
		})
	}

	now := s.clock()
	expiresAt := now.Add(s.defaultTTL)
	if input.ExpiresAt != nil {
		if !input.ExpiresAt.After(now) {
			return nil, apperrors.NewValidationError("expires_at must be in the future", nil)
		}
		expiresAt = *input.ExpiresAt
	}

	// Serialize against concurrent offer creation and close: the version
	// bump is the compare-and-swap, the partial unique index is the
	// backstop.
	if err := s.disputes.UpdateState(ctx, dispute); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, apperrors.NewConflict("dispute was modified concurrently, re-read and retry", nil)
		}
		return nil, err
	}

	offer := &domain.SettlementOffer{
		DisputeID:     dispute.ID,
		OfferedBy:     party.UserID,
		OfferedByRole: party.Role,
		OfferType:     input.OfferType,
		Conditions:    input.Conditions,
		ExpiresAt:     expiresAt,
		Status:        domain.OfferStatusPending,
	}
	if input.Monetary != nil {
		offer.Monetary = &domain.MonetaryOffer{
			AmountCents: input.Monetary.AmountCents,
			Description: strings.TrimSpace(input.Monetary.Description),
		}
	}
	if input.Work != nil {
		offer.Work = &domain.WorkOffer{
			Description: strings.TrimSpace(input.Work.Description),
			Timeline:    strings.TrimSpace(input.Work.Timeline),
			Materials:   strings.TrimSpace(input.Work.Materials),
			NoCharge:    input.Work.NoCharge,
		}
	}
	if err := s.offers.Create(ctx, offer); err != nil {
		if errors.Is(err, repository.ErrPendingOfferExists) {
			return nil, apperrors.NewInvalidState("an offer is already pending", nil)
		}
		return nil, err
	}

	s.disputeSvc.publishEvent(ctx, events.Event{
		Type:      events.EventOfferCreated,
		DisputeID: dispute.ID,
		Actor:     partyActor(party),
		Payload: events.OfferCreatedPayload{
			OfferID:   offer.ID,
			OfferType: offer.OfferType,
			ExpiresAt: offer.ExpiresAt,
		},
	})
	return offer, nil
}

// RespondToOffer accepts or rejects the current pending offer. Only the
// counterparty to the offeror may respond, and only before the deadline;
// acceptance resolves the dispute and emits a settlement instruction
// exactly once.
func (s *SettlementService) RespondToOffer(ctx context.Context, party domain.Party, disputeID, offerID string, action domain.OfferAction, message string) (*domain.SettlementOffer, error) {
	if action != domain.OfferActionAccept && action != domain.OfferActionReject {
		return nil, apperrors.NewValidationError("action must be accept or reject", nil)
	}
	if action == domain.OfferActionReject && strings.TrimSpace(message) == "" {
		return nil, apperrors.NewValidationError("rejection requires a message", nil)
	}

	dispute, err := s.disputeSvc.loadAggregate(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	offer := findOffer(dispute, offerID)
	if offer == nil {
		return nil, apperrors.NewNotFound("settlement offer", map[string]any{"offer_id": offerID})
	}
	if party.Role.IsStaff() {
		return nil, apperrors.NewForbidden("only the counterparty may respond to an offer")
	}
	involved, err := s.disputeSvc.partyOnDispute(ctx, dispute, party)
	if err != nil {
		return nil, err
	}
	if !involved {
		return nil, apperrors.NewForbidden("not a party to this dispute")
	}
	if offer.OfferedBy == party.UserID {
		return nil, apperrors.NewForbidden("cannot respond to your own offer")
	}

	// loadAggregate already expired stale offers, so a terminal status
	// here distinguishes late responses from replays.
	if offer.Status == domain.OfferStatusExpired {
		return nil, apperrors.NewOfferExpired(offer.ID)
	}
	if offer.Terminal() {
		return nil, apperrors.NewInvalidState("offer already resolved", map[string]any{
			"status": string(offer.Status),
		})
	}

	now := s.clock()
	response := domain.OfferResponse{
		RespondedBy:   party.UserID,
		RespondedRole: party.Role,
		Action:        action,
		Message:       strings.TrimSpace(message),
		RespondedAt:   now,
	}

	newStatus := domain.OfferStatusRejected
	if action == domain.OfferActionAccept {
		newStatus = domain.OfferStatusAccepted
	}
	if err := s.offers.Resolve(ctx, offer.ID, newStatus, response); err != nil {
		if errors.Is(err, repository.ErrOfferNotPending) {
			return nil, apperrors.NewConflict("offer was resolved concurrently, re-read and retry", nil)
		}
		return nil, err
	}
	offer.Status = newStatus
	offer.Response = &response

	if err := s.disputes.TouchUpdatedAt(ctx, dispute.ID); err != nil {
		return nil, err
	}
	s.disputeSvc.publishEvent(ctx, events.Event{
		Type:      events.EventOfferResolved,
		DisputeID: dispute.ID,
		Actor:     partyActor(party),
		Payload: events.OfferResolvedPayload{
			OfferID:   offer.ID,
			NewStatus: newStatus,
			Message:   response.Message,
		},
	})

	if action == domain.OfferActionAccept {
		if err := s.resolveDispute(ctx, dispute, offer, party); err != nil {
			return nil, err
		}
		s.emitSettlement(ctx, dispute, offer)
	}
	return offer, nil
}

// ExpireDueOffers transitions pending offers past their deadline. The
// background sweep is an optimization; lazy evaluation on read remains
// authoritative.
func (s *SettlementService) ExpireDueOffers(ctx context.Context, limit int) (int, error) {
	due, err := s.offers.ListExpiredPending(ctx, s.clock(), limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range due {
		offer := due[i]
		if err := s.offers.MarkExpired(ctx, offer.ID); err != nil {
			if errors.Is(err, repository.ErrOfferNotPending) {
				continue
			}
			return expired, err
		}
		expired++
		_ = s.disputes.TouchUpdatedAt(ctx, offer.DisputeID)
		s.disputeSvc.publishEvent(ctx, events.Event{
			Type:      events.EventOfferResolved,
			DisputeID: offer.DisputeID,
			Actor:     events.Actor{UserID: "system", Role: domain.RoleAdmin},
			Payload: events.OfferResolvedPayload{
				OfferID:   offer.ID,
				NewStatus: domain.OfferStatusExpired,
				Message:   "deadline passed",
			},
		})
	}
	return expired, nil
}

// resolveDispute moves the dispute to resolved after an acceptance. The
// offer is already terminal in storage, so a version race here is
// resolved by retrying until the dispute reflects the acceptance.
func (s *SettlementService) resolveDispute(ctx context.Context, dispute *domain.Dispute, offer *domain.SettlementOffer, party domain.Party) error {
	for attempt := 0; attempt < 3; attempt++ {
		if dispute.Status == domain.DisputeStatusResolved || dispute.Status == domain.DisputeStatusClosed {
			return nil
		}
		now := s.clock()
		oldStatus := dispute.Status
		settled := offer.SettledAmount()
		dispute.Status = domain.DisputeStatusResolved
		dispute.SettledCents = &settled
		dispute.ResolvedAt = &now
		err := s.disputes.UpdateState(ctx, dispute)
		if err == nil {
			s.disputeSvc.publishEvent(ctx, events.Event{
				Type:      events.EventDisputeStatusChanged,
				DisputeID: dispute.ID,
				Actor:     partyActor(party),
				Payload: events.DisputeStatusChangedPayload{
					OldStatus: oldStatus,
					NewStatus: domain.DisputeStatusResolved,
					Comment:   "offer accepted",
				},
			})
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
		fresh, getErr := s.disputes.GetByID(ctx, dispute.ID)
		if getErr != nil {
			return getErr
		}
		*dispute = *fresh
	}
	return apperrors.NewConflict("dispute was modified concurrently, re-read and retry", nil)
}

func (s *SettlementService) emitSettlement(ctx context.Context, dispute *domain.Dispute, offer *domain.SettlementOffer) {
	if s.emitter == nil {
		return
	}
	payer, payee := settlementDirection(dispute, offer)
	instruction := bridge.SettlementInstruction{
		DisputeID:   dispute.ID,
		OfferID:     offer.ID,
		AmountCents: offer.SettledAmount(),
		PayerRole:   payer,
		PayeeRole:   payee,
		Conditions:  offer.Conditions,
	}
	emitted, err := s.emitter.Emit(ctx, instruction)
	if err != nil || !emitted {
		return
	}
	s.disputeSvc.publishEvent(ctx, events.Event{
		Type:      events.EventSettlementEmitted,
		DisputeID: dispute.ID,
		Actor:     events.Actor{UserID: "system", Role: domain.RoleAdmin},
		Payload: events.SettlementEmittedPayload{
			OfferID:     offer.ID,
			AmountCents: instruction.AmountCents,
			PayerRole:   payer,
			PayeeRole:   payee,
		},
	})
}

// settlementDirection maps an accepted offer to a fund movement. A
// monetary or work offer settles the escrowed job payment toward the
// offeror; a partial refund flows the other way.
func settlementDirection(dispute *domain.Dispute, offer *domain.SettlementOffer) (payer, payee domain.PartyRole) {
	other := dispute.CounterpartyRole
	if offer.OfferedByRole == dispute.CounterpartyRole {
		other = dispute.InitiatedByRole
	}
	if offer.OfferType == domain.OfferTypePartialRefund {
		return offer.OfferedByRole, other
	}
	return other, offer.OfferedByRole
}

func findOffer(dispute *domain.Dispute, offerID string) *domain.SettlementOffer {
	for i := range dispute.SettlementOffers {
		if dispute.SettlementOffers[i].ID == offerID {
			return &dispute.SettlementOffers[i]
		}
	}
	return nil
}

func validateOfferPayload(input OfferInput) error {
	switch input.OfferType {
	case domain.OfferTypeMonetary, domain.OfferTypePartialRefund:
		if input.Monetary == nil || input.Work != nil {
			return apperrors.NewValidationError("monetary offer types require exactly a monetary payload", nil)
		}
		if input.Monetary.AmountCents < 0 {
			return apperrors.NewValidationError("offer amount must be non-negative", nil)
		}
	case domain.OfferTypeWorkCompletion, domain.OfferTypeAdditionalWork:
		if input.Work == nil || input.Monetary != nil {
			return apperrors.NewValidationError("work offer types require exactly a work payload", nil)
		}
		if strings.TrimSpace(input.Work.Description) == "" {
			return apperrors.NewValidationError("work offer requires a description", nil)
		}
	default:
		return apperrors.NewValidationError("unknown offer type", map[string]any{"offer_type": string(input.OfferType)})
	}
	return nil
}
