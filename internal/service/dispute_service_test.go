package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/dispute-engine/internal/domain"
	"github.com/spec-kit/dispute-engine/internal/events"
	"github.com/spec-kit/dispute-engine/internal/service"
)

func TestFileDisputeDerivesCounterparty(t *testing.T) {
	env := newTestEnv(t)

	dispute := env.fileDispute(t, landlordParty)
	if dispute.Status != domain.DisputeStatusOpen {
		t.Fatalf("status = %s, want open", dispute.Status)
	}
	if dispute.Priority != domain.DisputePriorityNormal {
		t.Fatalf("priority = %s, want normal", dispute.Priority)
	}
	if dispute.CounterpartyRole != domain.RoleContractor {
		t.Fatalf("counterparty = %s, want contractor", dispute.CounterpartyRole)
	}
	if dispute.JobTitle != "Bathroom renovation" || dispute.PropertyID != "prop-1" {
		t.Fatalf("job snapshot not copied: %+v", dispute)
	}
	if got := env.dispatcher.ofType(events.EventDisputeFiled); len(got) != 1 {
		t.Fatalf("dispute_filed events = %d, want 1", len(got))
	}
}

func TestFileDisputeRejectsOutsiders(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.disputes.FileDispute(context.Background(), mediatorParty, service.DisputeCreateInput{
		JobID: "job-1", Title: "t", Description: "d",
	})
	assertCode(t, err, "FORBIDDEN")

	stranger := domain.Party{UserID: "u-stranger", Role: domain.RoleContractor}
	_, err = env.disputes.FileDispute(context.Background(), stranger, service.DisputeCreateInput{
		JobID: "job-1", Title: "t", Description: "d",
	})
	assertCode(t, err, "FORBIDDEN")

	_, err = env.disputes.FileDispute(context.Background(), landlordParty, service.DisputeCreateInput{
		JobID: "missing", Title: "t", Description: "d",
	})
	assertCode(t, err, "NOT_FOUND")
}

func TestGetDisputeVisibility(t *testing.T) {
	env := newTestEnv(t)
	dispute := env.fileDispute(t, landlordParty)

	if _, err := env.disputes.GetDisputeForParty(context.Background(), contractorParty, dispute.ID); err != nil {
		t.Fatalf("counterparty view: %v", err)
	}
	if _, err := env.disputes.GetDisputeForParty(context.Background(), mediatorParty, dispute.ID); err != nil {
		t.Fatalf("mediator view: %v", err)
	}

	// The tenant is on the job but holds neither side of this dispute.
	_, err := env.disputes.GetDisputeForParty(context.Background(), tenantParty, dispute.ID)
	assertCode(t, err, "FORBIDDEN")
}

func TestListDisputesExcludesThirdRole(t *testing.T) {
	env := newTestEnv(t)
	env.fileDispute(t, landlordParty)

	visible, err := env.disputes.ListDisputesForParty(context.Background(), contractorParty, service.DisputeListFilter{})
	if err != nil {
		t.Fatalf("list as contractor: %v", err)
	}
	if len(visible) != 1 {
		t.Fatalf("contractor sees %d disputes, want 1", len(visible))
	}

	visible, err = env.disputes.ListDisputesForParty(context.Background(), tenantParty, service.DisputeListFilter{})
	if err != nil {
		t.Fatalf("list as tenant: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("tenant sees %d disputes, want 0", len(visible))
	}

	visible, err = env.disputes.ListDisputesForParty(context.Background(), mediatorParty, service.DisputeListFilter{})
	if err != nil {
		t.Fatalf("list as mediator: %v", err)
	}
	if len(visible) != 1 {
		t.Fatalf("mediator sees %d disputes, want 1", len(visible))
	}
}

func TestViewRedaction(t *testing.T) {
	env := newTestEnv(t)
	dispute := env.fileDispute(t, landlordParty)

	if _, err := env.disputes.AddMessage(context.Background(), mediatorParty, dispute.ID, service.MessageInput{
		Message: "internal case note", IsPrivate: true,
	}); err != nil {
		t.Fatalf("private message: %v", err)
	}
	if _, err := env.disputes.AddEvidence(context.Background(), contractorParty, dispute.ID, service.EvidenceInput{
		Type: domain.EvidenceTypePhoto, Title: "invoice draft", FileURL: "https://files/e1", IsPublic: false,
	}); err != nil {
		t.Fatalf("private evidence: %v", err)
	}
	if _, err := env.disputes.AddEvidence(context.Background(), landlordParty, dispute.ID, service.EvidenceInput{
		Type: domain.EvidenceTypePhoto, Title: "cracked tiles", FileURL: "https://files/e2", IsPublic: true,
	}); err != nil {
		t.Fatalf("public evidence: %v", err)
	}

	view, err := env.disputes.GetDisputeForParty(context.Background(), landlordParty, dispute.ID)
	if err != nil {
		t.Fatalf("landlord view: %v", err)
	}
	if len(view.Communications) != 0 {
		t.Fatalf("landlord sees %d messages, want 0", len(view.Communications))
	}
	if len(view.Evidence) != 1 || view.Evidence[0].Title != "cracked tiles" {
		t.Fatalf("landlord evidence = %+v, want only the public item", view.Evidence)
	}

	view, err = env.disputes.GetDisputeForParty(context.Background(), contractorParty, dispute.ID)
	if err != nil {
		t.Fatalf("contractor view: %v", err)
	}
	if len(view.Evidence) != 2 {
		t.Fatalf("uploader sees %d evidence items, want 2", len(view.Evidence))
	}

	view, err = env.disputes.GetDisputeForParty(context.Background(), mediatorParty, dispute.ID)
	if err != nil {
		t.Fatalf("mediator view: %v", err)
	}
	if len(view.Communications) != 1 || len(view.Evidence) != 2 {
		t.Fatalf("mediator view redacted: %d messages, %d evidence", len(view.Communications), len(view.Evidence))
	}
}

func TestPrivateMessageRequiresStaff(t *testing.T) {
	env := newTestEnv(t)
	dispute := env.fileDispute(t, landlordParty)

	_, err := env.disputes.AddMessage(context.Background(), landlordParty, dispute.ID, service.MessageInput{
		Message: "between us", IsPrivate: true,
	})
	assertCode(t, err, "FORBIDDEN")
}

func TestFirstCounterpartyMessageMovesToReview(t *testing.T) {
	env := newTestEnv(t)
	dispute := env.fileDispute(t, landlordParty)

	// Initiator messages do not advance the dispute.
	if _, err := env.disputes.AddMessage(context.Background(), landlordParty, dispute.ID, service.MessageInput{
		Message: "please respond",
	}); err != nil {
		t.Fatalf("initiator message: %v", err)
	}
	current, err := env.disputes.GetDisputeForParty(context.Background(), mediatorParty, dispute.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if current.Status != domain.DisputeStatusOpen {
		t.Fatalf("status after initiator message = %s, want open", current.Status)
	}

	if _, err := env.disputes.AddMessage(context.Background(), contractorParty, dispute.ID, service.MessageInput{
		Message: "the grout needed a second pass, happy to discuss",
	}); err != nil {
		t.Fatalf("counterparty message: %v", err)
	}
	current, err = env.disputes.GetDisputeForParty(context.Background(), mediatorParty, dispute.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if current.Status != domain.DisputeStatusInReview {
		t.Fatalf("status after counterparty message = %s, want in_review", current.Status)
	}
}

func TestListPendingResponse(t *testing.T) {
	env := newTestEnv(t)
	dispute := env.fileDispute(t, landlordParty)

	pending, err := env.disputes.ListPendingResponse(context.Background(), contractorParty)
	if err != nil {
		t.Fatalf("pending as contractor: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != dispute.ID {
		t.Fatalf("contractor pending = %+v, want the filed dispute", pending)
	}

	pending, err = env.disputes.ListPendingResponse(context.Background(), landlordParty)
	if err != nil {
		t.Fatalf("pending as landlord: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("initiator pending = %d, want 0", len(pending))
	}

	if _, err := env.disputes.AddMessage(context.Background(), contractorParty, dispute.ID, service.MessageInput{
		Message: "responding now",
	}); err != nil {
		t.Fatalf("message: %v", err)
	}
	pending, err = env.disputes.ListPendingResponse(context.Background(), contractorParty)
	if err != nil {
		t.Fatalf("pending after reply: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after reply = %d, want 0", len(pending))
	}
}

func TestSetStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	dispute := env.fileDispute(t, landlordParty)

	_, err := env.disputes.SetStatus(context.Background(), mediatorParty, dispute.ID, domain.DisputeStatusInMediation, "")
	assertCode(t, err, "INVALID_STATE")

	updated, err := env.disputes.SetStatus(context.Background(), mediatorParty, dispute.ID, domain.DisputeStatusInReview, "taking the case")
	if err != nil {
		t.Fatalf("open -> in_review: %v", err)
	}
	if updated.Status != domain.DisputeStatusInReview {
		t.Fatalf("status = %s, want in_review", updated.Status)
	}

	updated, err = env.disputes.SetStatus(context.Background(), mediatorParty, dispute.ID, domain.DisputeStatusResolved, "agreement reached")
	if err != nil {
		t.Fatalf("in_review -> resolved: %v", err)
	}
	if updated.ResolvedAt == nil {
		t.Fatal("resolved_at not set")
	}

	// Re-resolving is an idempotent no-op, not an error.
	before := len(env.dispatcher.ofType(events.EventDisputeStatusChanged))
	if _, err := env.disputes.SetStatus(context.Background(), mediatorParty, dispute.ID, domain.DisputeStatusResolved, "again"); err != nil {
		t.Fatalf("resolved -> resolved: %v", err)
	}
	if after := len(env.dispatcher.ofType(events.EventDisputeStatusChanged)); after != before {
		t.Fatalf("idempotent re-resolve published %d extra events", after-before)
	}

	_, err = env.disputes.SetStatus(context.Background(), mediatorParty, dispute.ID, domain.DisputeStatusOpen, "")
	assertCode(t, err, "INVALID_STATE")
}

func TestCloseExpiresPendingOffer(t *testing.T) {
	env := newTestEnv(t)
	dispute := env.fileDispute(t, landlordParty)
	offer := env.createOffer(t, contractorParty, dispute.ID, monetaryOffer(30_000))

	closed, err := env.disputes.SetStatus(context.Background(), landlordParty, dispute.ID, domain.DisputeStatusClosed, "withdrawn")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.ClosedAt == nil {
		t.Fatal("closed_at not set")
	}

	view, err := env.disputes.GetDisputeForParty(context.Background(), mediatorParty, dispute.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := view.SettlementOffers[0].Status; got != domain.OfferStatusExpired {
		t.Fatalf("offer status after close = %s, want expired", got)
	}

	// No late acceptance of the dead offer.
	_, err = env.settlements.RespondToOffer(context.Background(), landlordParty, dispute.ID, offer.ID, domain.OfferActionAccept, "")
	assertCode(t, err, "OFFER_EXPIRED")

	// And no further writes on a closed dispute.
	_, err = env.disputes.AddMessage(context.Background(), landlordParty, dispute.ID, service.MessageInput{Message: "one more thing"})
	assertCode(t, err, "INVALID_STATE")
}

func TestSetStatusVersionConflict(t *testing.T) {
	env := newTestEnv(t)
	dispute := env.fileDispute(t, landlordParty)

	env.store.failNextUpdate = true
	_, err := env.disputes.SetStatus(context.Background(), mediatorParty, dispute.ID, domain.DisputeStatusInReview, "")
	assertCode(t, err, "CONFLICT")
}

func TestSetPriority(t *testing.T) {
	env := newTestEnv(t)
	dispute := env.fileDispute(t, landlordParty)

	updated, err := env.disputes.SetPriority(context.Background(), mediatorParty, dispute.ID, domain.DisputePriorityUrgent)
	if err != nil {
		t.Fatalf("set priority: %v", err)
	}
	if updated.Priority != domain.DisputePriorityUrgent {
		t.Fatalf("priority = %s, want urgent", updated.Priority)
	}

	_, err = env.disputes.SetPriority(context.Background(), mediatorParty, dispute.ID, domain.DisputePriority("frantic"))
	assertCode(t, err, "VALIDATION_FAILED")
}

func TestEscalateStale(t *testing.T) {
	env := newTestEnv(t)
	quiet := env.fileDispute(t, landlordParty)
	answered := env.fileDispute(t, landlordParty)

	if _, err := env.disputes.AddMessage(context.Background(), contractorParty, answered.ID, service.MessageInput{
		Message: "on it",
	}); err != nil {
		t.Fatalf("message: %v", err)
	}

	weekAgo := env.clock.Now().Add(-7 * 24 * time.Hour)
	env.store.backdateDispute(quiet.ID, weekAgo)
	env.store.backdateDispute(answered.ID, weekAgo)

	escalated, err := env.disputes.EscalateStale(context.Background(), env.clock.Now().Add(-5*24*time.Hour), 10)
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if escalated != 1 {
		t.Fatalf("escalated = %d, want 1", escalated)
	}

	view, err := env.disputes.GetDisputeForParty(context.Background(), mediatorParty, quiet.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if view.Priority != domain.DisputePriorityHigh {
		t.Fatalf("quiet dispute priority = %s, want high", view.Priority)
	}
}
