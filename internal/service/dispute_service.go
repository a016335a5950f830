package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/dispute-engine/internal/directory"
	"github.com/spec-kit/dispute-engine/internal/domain"
	"github.com/spec-kit/dispute-engine/internal/events"
	"github.com/spec-kit/dispute-engine/internal/repository"
	apperrors "github.com/spec-kit/dispute-engine/pkg/util"
)

// DisputeService coordinates dispute workflows: filing, the append-only
// communications and evidence logs, the dispute status machine, and the
// party-scoped view filter.
type DisputeService struct {
	disputes   repository.DisputeRepository
	messages   repository.MessageRepository
	evidence   repository.EvidenceRepository
	offers     repository.OfferRepository
	jobs       directory.JobDirectory
	dispatcher events.Dispatcher
	clock      func() time.Time
}

// DisputeDependencies bundles collaborators for the dispute service.
type DisputeDependencies struct {
	DisputeRepo  repository.DisputeRepository
	MessageRepo  repository.MessageRepository
	EvidenceRepo repository.EvidenceRepository
	OfferRepo    repository.OfferRepository
	Jobs         directory.JobDirectory
	Dispatcher   events.Dispatcher
	Clock        func() time.Time
}

// DisputeCreateInput describes a dispute filing.
type DisputeCreateInput struct {
	JobID          string
	Title          string
	Description    string
	DesiredOutcome string
	AmountCents    int64
	Priority       domain.DisputePriority
}

// DisputeListFilter describes listing filters for a viewing party.
type DisputeListFilter struct {
	Statuses    []domain.DisputeStatus
	Priorities  []domain.DisputePriority
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// MessageInput describes a communications-log append.
type MessageInput struct {
	Message     string
	Type        domain.DisputeMessageType
	IsPrivate   bool
	Attachments []string
}

// EvidenceInput describes an evidence-log append. FileURL and metadata
// come from the external evidence store.
type EvidenceInput struct {
	Type        domain.EvidenceType
	Title       string
	Description string
	FileURL     string
	IsPublic    bool
	MimeType    string
	SizeBytes   int64
}

// NewDisputeService constructs the service.
func NewDisputeService(deps DisputeDependencies) *DisputeService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &DisputeService{
		disputes:   deps.DisputeRepo,
		messages:   deps.MessageRepo,
		evidence:   deps.EvidenceRepo,
		offers:     deps.OfferRepo,
		jobs:       deps.Jobs,
		dispatcher: deps.Dispatcher,
		clock:      clock,
	}
}

// FileDispute creates a dispute against a job on behalf of a party.
func (s *DisputeService) FileDispute(ctx context.Context, party domain.Party, input DisputeCreateInput) (*domain.Dispute, error) {
	if !party.Role.IsParticipantRole() {
		return nil, apperrors.NewForbidden("only landlords, contractors, and tenants may file disputes")
	}
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}
	if input.AmountCents < 0 {
		return nil, apperrors.NewValidationError("amount must be non-negative", nil)
	}
	if input.Priority != "" && !domain.ValidPriority(input.Priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": string(input.Priority)})
	}

	job, err := s.jobs.GetJob(ctx, input.JobID)
	if err != nil {
		return nil, err
	}
	role, ok := job.RoleOf(party.UserID)
	if !ok || role != party.Role {
		return nil, apperrors.NewForbidden("filer is not a party to this job")
	}
	counterparty, err := job.Counterparty(party.Role)
	if err != nil {
		return nil, err
	}

	dispute := &domain.Dispute{
		JobID:            job.ID,
		JobTitle:         job.Title,
		PropertyID:       job.PropertyID,
		InitiatedBy:      party.UserID,
		InitiatedByRole:  party.Role,
		CounterpartyRole: counterparty,
		Title:            strings.TrimSpace(input.Title),
		Description:      strings.TrimSpace(input.Description),
		DesiredOutcome:   strings.TrimSpace(input.DesiredOutcome),
		AmountCents:      input.AmountCents,
		Priority:         input.Priority,
		Status:           domain.DisputeStatusOpen,
	}
	if dispute.Priority == "" {
		dispute.Priority = domain.DisputePriorityNormal
	}

	if err := s.disputes.Create(ctx, dispute); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:      events.EventDisputeFiled,
		DisputeID: dispute.ID,
		Actor:     partyActor(party),
		Payload: events.DisputeFiledPayload{
			JobID:            dispute.JobID,
			PropertyID:       dispute.PropertyID,
			CounterpartyRole: dispute.CounterpartyRole,
			AmountCents:      dispute.AmountCents,
			Priority:         dispute.Priority,
			Title:            dispute.Title,
		},
	})
	return dispute, nil
}

// GetDisputeForParty loads the full aggregate for a viewer, expiring any
// stale pending offer first and redacting private entries.
func (s *DisputeService) GetDisputeForParty(ctx context.Context, party domain.Party, disputeID string) (*domain.Dispute, error) {
	dispute, err := s.loadAggregate(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	involved, err := s.partyOnDispute(ctx, dispute, party)
	if err != nil {
		return nil, err
	}
	if !involved {
		return nil, apperrors.NewForbidden("not a party to this dispute")
	}
	redactForViewer(dispute, party)
	return dispute, nil
}

// ListDisputesForParty returns disputes visible to the viewer: those the
// viewer initiated or is the derived counterparty on. Mediators and
// admins see everything.
func (s *DisputeService) ListDisputesForParty(ctx context.Context, party domain.Party, filter DisputeListFilter) ([]domain.Dispute, error) {
	repoFilter := repository.DisputeFilter{
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	if !party.Role.IsStaff() {
		userID := party.UserID
		repoFilter.PartyUserID = &userID
	}
	disputes, err := s.disputes.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	if party.Role.IsStaff() {
		return disputes, nil
	}

	// The SQL filter admits anyone on the job; a third role on the same
	// job is still not a party to the dispute.
	visible := make([]domain.Dispute, 0, len(disputes))
	for i := range disputes {
		ok, err := s.partyOnDispute(ctx, &disputes[i], party)
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, disputes[i])
		}
	}
	return visible, nil
}

// ListPendingResponse returns open disputes awaiting the viewer's first
// reply: the viewer is the counterparty and the communications log is
// still empty.
func (s *DisputeService) ListPendingResponse(ctx context.Context, party domain.Party) ([]domain.Dispute, error) {
	disputes, err := s.ListDisputesForParty(ctx, party, DisputeListFilter{
		Statuses: []domain.DisputeStatus{domain.DisputeStatusOpen},
	})
	if err != nil {
		return nil, err
	}
	pending := make([]domain.Dispute, 0, len(disputes))
	for i := range disputes {
		if disputes[i].IsInitiator(party.UserID) {
			continue
		}
		count, err := s.messages.CountByDispute(ctx, disputes[i].ID)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			pending = append(pending, disputes[i])
		}
	}
	return pending, nil
}

// AddMessage appends to the communications log. The first counterparty
// message moves an open dispute to in_review.
func (s *DisputeService) AddMessage(ctx context.Context, party domain.Party, disputeID string, input MessageInput) (*domain.DisputeMessage, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, apperrors.NewValidationError("message required", nil)
	}
	if input.IsPrivate && !party.Role.IsStaff() {
		return nil, apperrors.NewForbidden("only mediators and admins may post private messages")
	}

	dispute, err := s.loadAggregate(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	involved, err := s.partyOnDispute(ctx, dispute, party)
	if err != nil {
		return nil, err
	}
	if !involved {
		return nil, apperrors.NewForbidden("not a party to this dispute")
	}
	if dispute.Terminal() {
		return nil, apperrors.NewInvalidState("dispute is closed", nil)
	}

	messageType := input.Type
	if messageType == "" {
		messageType = domain.MessageTypeGeneral
	}
	msg := &domain.DisputeMessage{
		DisputeID:   dispute.ID,
		SenderID:    party.UserID,
		SenderRole:  party.Role,
		SenderName:  party.Name,
		Message:     strings.TrimSpace(input.Message),
		Type:        messageType,
		IsPrivate:   input.IsPrivate,
		Attachments: input.Attachments,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.disputes.TouchUpdatedAt(ctx, dispute.ID); err != nil {
		return nil, err
	}

	if dispute.Status == domain.DisputeStatusOpen && !dispute.IsInitiator(party.UserID) && party.Role == dispute.CounterpartyRole {
		s.autoTransitionToReview(ctx, dispute, party)
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventMessageAdded,
		DisputeID: dispute.ID,
		Actor:     partyActor(party),
		Payload: events.MessageAddedPayload{
			MessageID:   msg.ID,
			MessageType: msg.Type,
			SenderRole:  msg.SenderRole,
			IsPrivate:   msg.IsPrivate,
			BodyPreview: stringPreview(msg.Message, 120),
		},
	})
	return msg, nil
}

// AddEvidence appends an evidence reference produced by the external
// store to the evidence log.
func (s *DisputeService) AddEvidence(ctx context.Context, party domain.Party, disputeID string, input EvidenceInput) (*domain.DisputeEvidence, error) {
	if strings.TrimSpace(input.FileURL) == "" {
		return nil, apperrors.NewValidationError("file_url required", nil)
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}

	dispute, err := s.loadAggregate(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	involved, err := s.partyOnDispute(ctx, dispute, party)
	if err != nil {
		return nil, err
	}
	if !involved {
		return nil, apperrors.NewForbidden("not a party to this dispute")
	}
	if dispute.Terminal() {
		return nil, apperrors.NewInvalidState("dispute is closed", nil)
	}

	item := &domain.DisputeEvidence{
		DisputeID:      dispute.ID,
		Type:           input.Type,
		Title:          strings.TrimSpace(input.Title),
		Description:    strings.TrimSpace(input.Description),
		FileURL:        input.FileURL,
		UploadedBy:     party.UserID,
		UploadedByRole: party.Role,
		IsPublic:       input.IsPublic,
		Metadata: domain.EvidenceMetadata{
			MimeType:  input.MimeType,
			SizeBytes: input.SizeBytes,
		},
	}
	if err := s.evidence.Create(ctx, item); err != nil {
		return nil, err
	}
	if err := s.disputes.TouchUpdatedAt(ctx, dispute.ID); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:      events.EventEvidenceAdded,
		DisputeID: dispute.ID,
		Actor:     partyActor(party),
		Payload: events.EvidenceAddedPayload{
			EvidenceID:   item.ID,
			EvidenceType: item.Type,
			IsPublic:     item.IsPublic,
			Title:        item.Title,
		},
	})
	return item, nil
}

// SetStatus drives the dispute status machine for a party action.
// Re-resolving a resolved dispute is an idempotent no-op, protecting
// against duplicate offer-acceptance events.
func (s *DisputeService) SetStatus(ctx context.Context, party domain.Party, disputeID string, newStatus domain.DisputeStatus, comment string) (*domain.Dispute, error) {
	dispute, err := s.loadAggregate(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	involved, err := s.partyOnDispute(ctx, dispute, party)
	if err != nil {
		return nil, err
	}
	if !involved {
		return nil, apperrors.NewForbidden("not a party to this dispute")
	}

	if newStatus == dispute.Status && (newStatus == domain.DisputeStatusResolved || newStatus == domain.DisputeStatusClosed) {
		return dispute, nil
	}
	if !isValidTransition(dispute.Status, newStatus) {
		return nil, apperrors.NewInvalidState("invalid status transition", map[string]any{
			"from": string(dispute.Status),
			"to":   string(newStatus),
		})
	}

	now := s.clock()
	// Closing a dispute with a live offer implicitly expires the offer.
	if newStatus == domain.DisputeStatusClosed {
		if pending := dispute.PendingOffer(); pending != nil {
			if err := s.offers.MarkExpired(ctx, pending.ID); err != nil && !errors.Is(err, repository.ErrOfferNotPending) {
				return nil, err
			}
			pending.Status = domain.OfferStatusExpired
			s.publishEvent(ctx, events.Event{
				Type:      events.EventOfferResolved,
				DisputeID: dispute.ID,
				Actor:     partyActor(party),
				Payload: events.OfferResolvedPayload{
					OfferID:   pending.ID,
					NewStatus: domain.OfferStatusExpired,
					Message:   "dispute closed",
				},
			})
		}
		dispute.ClosedAt = &now
	}
	if newStatus == domain.DisputeStatusResolved {
		dispute.ResolvedAt = &now
	}

	oldStatus := dispute.Status
	dispute.Status = newStatus
	if err := s.disputes.UpdateState(ctx, dispute); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, apperrors.NewConflict("dispute was modified concurrently, re-read and retry", nil)
		}
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:      events.EventDisputeStatusChanged,
		DisputeID: dispute.ID,
		Actor:     partyActor(party),
		Payload: events.DisputeStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Comment:   comment,
		},
	})
	return dispute, nil
}

// SetPriority changes dispute priority on behalf of a party.
func (s *DisputeService) SetPriority(ctx context.Context, party domain.Party, disputeID string, newPriority domain.DisputePriority) (*domain.Dispute, error) {
	if !domain.ValidPriority(newPriority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": string(newPriority)})
	}
	dispute, err := s.loadAggregate(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	involved, err := s.partyOnDispute(ctx, dispute, party)
	if err != nil {
		return nil, err
	}
	if !involved {
		return nil, apperrors.NewForbidden("not a party to this dispute")
	}
	if dispute.Terminal() {
		return nil, apperrors.NewInvalidState("dispute is closed", nil)
	}

	oldPriority := dispute.Priority
	dispute.Priority = newPriority
	if err := s.disputes.UpdateState(ctx, dispute); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, apperrors.NewConflict("dispute was modified concurrently, re-read and retry", nil)
		}
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:      events.EventDisputePriorityChanged,
		DisputeID: dispute.ID,
		Actor:     partyActor(party),
		Payload: events.DisputePriorityChangedPayload{
			OldPriority: oldPriority,
			NewPriority: newPriority,
		},
	})
	return dispute, nil
}

// EscalateStale raises priority one step on open disputes with no
// counterparty communication after the cutoff. Invoked by the sweep
// worker; losing a version race just skips that dispute.
func (s *DisputeService) EscalateStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := s.disputes.ListStaleOpen(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	escalated := 0
	for i := range stale {
		dispute := stale[i]
		oldPriority := dispute.Priority
		dispute.Priority = oldPriority.NextEscalation()
		if dispute.Priority == oldPriority {
			continue
		}
		if err := s.disputes.UpdateState(ctx, &dispute); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return escalated, err
		}
		escalated++
		s.publishEvent(ctx, events.Event{
			Type:      events.EventDisputePriorityChanged,
			DisputeID: dispute.ID,
			Actor:     events.Actor{UserID: "system", Role: domain.RoleAdmin},
			Payload: events.DisputePriorityChangedPayload{
				OldPriority: oldPriority,
				NewPriority: dispute.Priority,
			},
		})
	}
	return escalated, nil
}

// loadAggregate assembles the dispute with its logs and offers, expiring
// any pending offer past its deadline before returning. Every read and
// write path goes through here, which is what makes lazy expiry
// deterministic without a scheduler.
func (s *DisputeService) loadAggregate(ctx context.Context, disputeID string) (*domain.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	dispute.Communications, err = s.messages.ListByDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	dispute.Evidence, err = s.evidence.ListByDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	dispute.SettlementOffers, err = s.offers.ListByDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if err := s.expireStaleOffer(ctx, dispute); err != nil {
		return nil, err
	}
	return dispute, nil
}

func (s *DisputeService) expireStaleOffer(ctx context.Context, dispute *domain.Dispute) error {
	now := s.clock()
	for i := range dispute.SettlementOffers {
		offer := &dispute.SettlementOffers[i]
		if !offer.ExpiredBy(now) {
			continue
		}
		if err := s.offers.MarkExpired(ctx, offer.ID); err != nil {
			if errors.Is(err, repository.ErrOfferNotPending) {
				offer.Status = domain.OfferStatusExpired
				continue
			}
			return err
		}
		offer.Status = domain.OfferStatusExpired
		s.publishEvent(ctx, events.Event{
			Type:      events.EventOfferResolved,
			DisputeID: dispute.ID,
			Actor:     events.Actor{UserID: "system", Role: domain.RoleAdmin},
			Payload: events.OfferResolvedPayload{
				OfferID:   offer.ID,
				NewStatus: domain.OfferStatusExpired,
				Message:   "deadline passed",
			},
		})
	}
	return nil
}

// partyOnDispute reports whether the party may view and act on the
// dispute: staff always, otherwise the initiator or the holder of the
// derived counterparty role on the job.
func (s *DisputeService) partyOnDispute(ctx context.Context, dispute *domain.Dispute, party domain.Party) (bool, error) {
	if party.Role.IsStaff() {
		return true, nil
	}
	if dispute.IsInitiator(party.UserID) {
		return party.Role == dispute.InitiatedByRole, nil
	}
	job, err := s.jobs.GetJob(ctx, dispute.JobID)
	if err != nil {
		return false, err
	}
	role, ok := job.RoleOf(party.UserID)
	if !ok {
		return false, nil
	}
	return role == dispute.CounterpartyRole && role == party.Role, nil
}

func (s *DisputeService) autoTransitionToReview(ctx context.Context, dispute *domain.Dispute, party domain.Party) {
	oldStatus := dispute.Status
	dispute.Status = domain.DisputeStatusInReview
	if err := s.disputes.UpdateState(ctx, dispute); err != nil {
		// Advisory transition; someone else already moved the dispute.
		dispute.Status = oldStatus
		return
	}
	s.publishEvent(ctx, events.Event{
		Type:      events.EventDisputeStatusChanged,
		DisputeID: dispute.ID,
		Actor:     partyActor(party),
		Payload: events.DisputeStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: domain.DisputeStatusInReview,
			Comment:   "first counterparty response",
		},
	})
}

func (s *DisputeService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func partyActor(party domain.Party) events.Actor {
	return events.Actor{UserID: party.UserID, Role: party.Role}
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}

var allowedTransitions = map[domain.DisputeStatus][]domain.DisputeStatus{
	domain.DisputeStatusOpen:        {domain.DisputeStatusInReview, domain.DisputeStatusResolved, domain.DisputeStatusClosed},
	domain.DisputeStatusInReview:    {domain.DisputeStatusInMediation, domain.DisputeStatusResolved, domain.DisputeStatusClosed},
	domain.DisputeStatusInMediation: {domain.DisputeStatusResolved, domain.DisputeStatusClosed},
	domain.DisputeStatusResolved:    {domain.DisputeStatusClosed},
	domain.DisputeStatusClosed:      {},
}

func isValidTransition(current, next domain.DisputeStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
