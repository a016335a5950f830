package service_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/dispute-engine/internal/bridge"
	"github.com/spec-kit/dispute-engine/internal/directory"
	"github.com/spec-kit/dispute-engine/internal/domain"
	"github.com/spec-kit/dispute-engine/internal/events"
	"github.com/spec-kit/dispute-engine/internal/repository"
	"github.com/spec-kit/dispute-engine/internal/service"
	apperrors "github.com/spec-kit/dispute-engine/pkg/util"
)

var (
	landlordParty   = domain.Party{UserID: "u-landlord", Role: domain.RoleLandlord, Name: "Priya"}
	contractorParty = domain.Party{UserID: "u-contractor", Role: domain.RoleContractor, Name: "Marcus"}
	tenantParty     = domain.Party{UserID: "u-tenant", Role: domain.RoleTenant, Name: "Jo"}
	mediatorParty   = domain.Party{UserID: "u-mediator", Role: domain.RoleMediator, Name: "Dana"}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memEnv is shared in-memory storage behind the fake repositories.
type memEnv struct {
	mu             sync.Mutex
	seq            int
	clock          *fakeClock
	disputes       map[string]*domain.Dispute
	disputeOrder   []string
	messages       map[string][]domain.DisputeMessage
	evidence       map[string][]domain.DisputeEvidence
	offers         map[string]*domain.SettlementOffer
	offerOrder     map[string][]string
	jobs           map[string]*directory.Job
	failNextUpdate bool
}

func newMemEnv(clock *fakeClock) *memEnv {
	return &memEnv{
		clock:      clock,
		disputes:   make(map[string]*domain.Dispute),
		messages:   make(map[string][]domain.DisputeMessage),
		evidence:   make(map[string][]domain.DisputeEvidence),
		offers:     make(map[string]*domain.SettlementOffer),
		offerOrder: make(map[string][]string),
		jobs:       make(map[string]*directory.Job),
	}
}

func (e *memEnv) nextID(prefix string) string {
	e.seq++
	return prefix + "-" + strconv.Itoa(e.seq)
}

func (e *memEnv) backdateDispute(id string, createdAt time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.disputes[id]; ok {
		d.CreatedAt = createdAt
	}
}

func copyDispute(d *domain.Dispute) *domain.Dispute {
	out := *d
	if d.SettledCents != nil {
		v := *d.SettledCents
		out.SettledCents = &v
	}
	if d.ResolvedAt != nil {
		v := *d.ResolvedAt
		out.ResolvedAt = &v
	}
	if d.ClosedAt != nil {
		v := *d.ClosedAt
		out.ClosedAt = &v
	}
	out.Communications = nil
	out.Evidence = nil
	out.SettlementOffers = nil
	return &out
}

func copyOffer(o *domain.SettlementOffer) *domain.SettlementOffer {
	out := *o
	if o.Monetary != nil {
		v := *o.Monetary
		out.Monetary = &v
	}
	if o.Work != nil {
		v := *o.Work
		out.Work = &v
	}
	if o.Response != nil {
		v := *o.Response
		out.Response = &v
	}
	return &out
}

type fakeDisputeRepo struct{ env *memEnv }

func (r *fakeDisputeRepo) Create(ctx context.Context, dispute *domain.Dispute) error {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	dispute.ID = r.env.nextID("dsp")
	dispute.Version = 1
	dispute.CreatedAt = r.env.clock.Now()
	dispute.UpdatedAt = dispute.CreatedAt
	r.env.disputes[dispute.ID] = copyDispute(dispute)
	r.env.disputeOrder = append(r.env.disputeOrder, dispute.ID)
	return nil
}

func (r *fakeDisputeRepo) GetByID(ctx context.Context, id string) (*domain.Dispute, error) {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	stored, ok := r.env.disputes[id]
	if !ok {
		return nil, apperrors.NewNotFound("dispute", map[string]any{"id": id})
	}
	return copyDispute(stored), nil
}

func (r *fakeDisputeRepo) UpdateState(ctx context.Context, dispute *domain.Dispute) error {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	if r.env.failNextUpdate {
		r.env.failNextUpdate = false
		return repository.ErrVersionConflict
	}
	stored, ok := r.env.disputes[dispute.ID]
	if !ok || stored.Version != dispute.Version {
		return repository.ErrVersionConflict
	}
	stored.Status = dispute.Status
	stored.Priority = dispute.Priority
	stored.SettledCents = dispute.SettledCents
	stored.ResolvedAt = dispute.ResolvedAt
	stored.ClosedAt = dispute.ClosedAt
	stored.Version++
	stored.UpdatedAt = r.env.clock.Now()
	dispute.Version = stored.Version
	dispute.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *fakeDisputeRepo) TouchUpdatedAt(ctx context.Context, id string) error {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	if stored, ok := r.env.disputes[id]; ok {
		stored.UpdatedAt = r.env.clock.Now()
	}
	return nil
}

func (r *fakeDisputeRepo) ListWithFilter(ctx context.Context, filter repository.DisputeFilter) ([]domain.Dispute, error) {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	var result []domain.Dispute
	for _, id := range r.env.disputeOrder {
		d := r.env.disputes[id]
		if filter.PartyUserID != nil && !r.onJobOrInitiator(d, *filter.PartyUserID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, d.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, d.Priority) {
			continue
		}
		if filter.CreatedFrom != nil && d.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && d.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		result = append(result, *copyDispute(d))
	}
	return result, nil
}

func (r *fakeDisputeRepo) ListStaleOpen(ctx context.Context, cutoff time.Time, limit int) ([]domain.Dispute, error) {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	var result []domain.Dispute
	for _, id := range r.env.disputeOrder {
		d := r.env.disputes[id]
		if d.Status != domain.DisputeStatusOpen || d.Priority == domain.DisputePriorityUrgent {
			continue
		}
		if !d.CreatedAt.Before(cutoff) {
			continue
		}
		replied := false
		for _, msg := range r.env.messages[d.ID] {
			if msg.SenderID != d.InitiatedBy {
				replied = true
				break
			}
		}
		if replied {
			continue
		}
		result = append(result, *copyDispute(d))
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (r *fakeDisputeRepo) onJobOrInitiator(d *domain.Dispute, userID string) bool {
	if d.InitiatedBy == userID {
		return true
	}
	job, ok := r.env.jobs[d.JobID]
	if !ok {
		return false
	}
	_, onJob := job.RoleOf(userID)
	return onJob
}

func containsStatus(statuses []domain.DisputeStatus, s domain.DisputeStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func containsPriority(priorities []domain.DisputePriority, p domain.DisputePriority) bool {
	for _, candidate := range priorities {
		if candidate == p {
			return true
		}
	}
	return false
}

type fakeMessageRepo struct{ env *memEnv }

func (r *fakeMessageRepo) Create(ctx context.Context, message *domain.DisputeMessage) error {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	message.ID = r.env.nextID("msg")
	message.CreatedAt = r.env.clock.Now()
	r.env.messages[message.DisputeID] = append(r.env.messages[message.DisputeID], *message)
	return nil
}

func (r *fakeMessageRepo) ListByDispute(ctx context.Context, disputeID string) ([]domain.DisputeMessage, error) {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	return append([]domain.DisputeMessage(nil), r.env.messages[disputeID]...), nil
}

func (r *fakeMessageRepo) CountByDispute(ctx context.Context, disputeID string) (int, error) {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	return len(r.env.messages[disputeID]), nil
}

func (r *fakeMessageRepo) CountFromOthers(ctx context.Context, disputeID, initiatorID string) (int, error) {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	count := 0
	for _, msg := range r.env.messages[disputeID] {
		if msg.SenderID != initiatorID {
			count++
		}
	}
	return count, nil
}

type fakeEvidenceRepo struct{ env *memEnv }

func (r *fakeEvidenceRepo) Create(ctx context.Context, evidence *domain.DisputeEvidence) error {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	evidence.ID = r.env.nextID("evd")
	evidence.UploadedAt = r.env.clock.Now()
	r.env.evidence[evidence.DisputeID] = append(r.env.evidence[evidence.DisputeID], *evidence)
	return nil
}

func (r *fakeEvidenceRepo) ListByDispute(ctx context.Context, disputeID string) ([]domain.DisputeEvidence, error) {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	return append([]domain.DisputeEvidence(nil), r.env.evidence[disputeID]...), nil
}

type fakeOfferRepo struct{ env *memEnv }

func (r *fakeOfferRepo) Create(ctx context.Context, offer *domain.SettlementOffer) error {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	for _, id := range r.env.offerOrder[offer.DisputeID] {
		if r.env.offers[id].Status == domain.OfferStatusPending {
			return repository.ErrPendingOfferExists
		}
	}
	offer.ID = r.env.nextID("ofr")
	offer.CreatedAt = r.env.clock.Now()
	r.env.offers[offer.ID] = copyOffer(offer)
	r.env.offerOrder[offer.DisputeID] = append(r.env.offerOrder[offer.DisputeID], offer.ID)
	return nil
}

func (r *fakeOfferRepo) GetByID(ctx context.Context, id string) (*domain.SettlementOffer, error) {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	stored, ok := r.env.offers[id]
	if !ok {
		return nil, apperrors.NewNotFound("settlement offer", map[string]any{"id": id})
	}
	return copyOffer(stored), nil
}

func (r *fakeOfferRepo) ListByDispute(ctx context.Context, disputeID string) ([]domain.SettlementOffer, error) {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	var result []domain.SettlementOffer
	for _, id := range r.env.offerOrder[disputeID] {
		result = append(result, *copyOffer(r.env.offers[id]))
	}
	return result, nil
}

func (r *fakeOfferRepo) Resolve(ctx context.Context, offerID string, status domain.OfferStatus, response domain.OfferResponse) error {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	stored, ok := r.env.offers[offerID]
	if !ok || stored.Status != domain.OfferStatusPending {
		return repository.ErrOfferNotPending
	}
	stored.Status = status
	resp := response
	stored.Response = &resp
	return nil
}

func (r *fakeOfferRepo) MarkExpired(ctx context.Context, offerID string) error {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	stored, ok := r.env.offers[offerID]
	if !ok || stored.Status != domain.OfferStatusPending {
		return repository.ErrOfferNotPending
	}
	stored.Status = domain.OfferStatusExpired
	return nil
}

func (r *fakeOfferRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.SettlementOffer, error) {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	var result []domain.SettlementOffer
	for _, offer := range r.env.offers {
		if offer.Status == domain.OfferStatusPending && !now.Before(offer.ExpiresAt) {
			result = append(result, *copyOffer(offer))
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

type fakeJobDirectory struct{ env *memEnv }

func (r *fakeJobDirectory) GetJob(ctx context.Context, jobID string) (*directory.Job, error) {
	r.env.mu.Lock()
	defer r.env.mu.Unlock()
	job, ok := r.env.jobs[jobID]
	if !ok {
		return nil, apperrors.NewNotFound("job", map[string]any{"id": jobID})
	}
	copied := *job
	return &copied, nil
}

type captureDispatcher struct {
	mu       sync.Mutex
	recorded []events.Event
}

func (d *captureDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recorded = append(d.recorded, event)
	return nil
}

func (d *captureDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func (d *captureDispatcher) ofType(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.recorded {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type captureBridge struct {
	mu           sync.Mutex
	instructions []bridge.SettlementInstruction
	failNext     int
}

func (b *captureBridge) Submit(ctx context.Context, instruction bridge.SettlementInstruction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNext > 0 {
		b.failNext--
		return context.DeadlineExceeded
	}
	b.instructions = append(b.instructions, instruction)
	return nil
}

func (b *captureBridge) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.instructions)
}

type memCoordinator struct {
	mu         sync.Mutex
	held       map[string]bool
	queue      [][]byte
	acquireErr error
}

func newMemCoordinator() *memCoordinator {
	return &memCoordinator{held: make(map[string]bool)}
}

func (c *memCoordinator) AcquireOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.acquireErr != nil {
		return false, c.acquireErr
	}
	if c.held[key] {
		return false, nil
	}
	c.held[key] = true
	return true, nil
}

func (c *memCoordinator) EnqueueRetry(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, payload)
	return nil
}

func (c *memCoordinator) DequeueRetry(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, nil
	}
	payload := c.queue[len(c.queue)-1]
	c.queue = c.queue[:len(c.queue)-1]
	return payload, nil
}

type testEnv struct {
	store       *memEnv
	clock       *fakeClock
	dispatcher  *captureDispatcher
	bridgeSink  *captureBridge
	coord       *memCoordinator
	disputes    *service.DisputeService
	settlements *service.SettlementService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := newFakeClock()
	store := newMemEnv(clock)

	contractorID := contractorParty.UserID
	tenantID := tenantParty.UserID
	store.jobs["job-1"] = &directory.Job{
		ID:           "job-1",
		Title:        "Bathroom renovation",
		PropertyID:   "prop-1",
		LandlordID:   landlordParty.UserID,
		ContractorID: &contractorID,
		TenantID:     &tenantID,
	}

	dispatcher := &captureDispatcher{}
	bridgeSink := &captureBridge{}
	coord := newMemCoordinator()
	emitter := bridge.NewEmitter(bridgeSink, coord, time.Hour, zap.NewNop())

	disputeRepo := &fakeDisputeRepo{env: store}
	offerRepo := &fakeOfferRepo{env: store}

	disputeSvc := service.NewDisputeService(service.DisputeDependencies{
		DisputeRepo:  disputeRepo,
		MessageRepo:  &fakeMessageRepo{env: store},
		EvidenceRepo: &fakeEvidenceRepo{env: store},
		OfferRepo:    offerRepo,
		Jobs:         &fakeJobDirectory{env: store},
		Dispatcher:   dispatcher,
		Clock:        clock.Now,
	})
	settlementSvc := service.NewSettlementService(service.SettlementDependencies{
		DisputeService: disputeSvc,
		DisputeRepo:    disputeRepo,
		OfferRepo:      offerRepo,
		Emitter:        emitter,
		Dispatcher:     dispatcher,
		DefaultTTL:     48 * time.Hour,
		Clock:          clock.Now,
	})

	return &testEnv{
		store:       store,
		clock:       clock,
		dispatcher:  dispatcher,
		bridgeSink:  bridgeSink,
		coord:       coord,
		disputes:    disputeSvc,
		settlements: settlementSvc,
	}
}

func (e *testEnv) fileDispute(t *testing.T, party domain.Party) *domain.Dispute {
	t.Helper()
	dispute, err := e.disputes.FileDispute(context.Background(), party, service.DisputeCreateInput{
		JobID:       "job-1",
		Title:       "Work left unfinished",
		Description: "Tiling was never completed after final payment",
		AmountCents: 50_000,
	})
	if err != nil {
		t.Fatalf("FileDispute: %v", err)
	}
	return dispute
}

func (e *testEnv) createOffer(t *testing.T, party domain.Party, disputeID string, input service.OfferInput) *domain.SettlementOffer {
	t.Helper()
	offer, err := e.settlements.CreateOffer(context.Background(), party, disputeID, input)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	return offer
}

func monetaryOffer(amountCents int64) service.OfferInput {
	return service.OfferInput{
		OfferType: domain.OfferTypeMonetary,
		Monetary:  &service.MonetaryOfferInput{AmountCents: amountCents, Description: "settle remaining balance"},
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !apperrors.IsCode(err, code) {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}
