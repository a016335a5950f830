package domain

import "time"

// DisputeStatus enumerates lifecycle states for disputes.
type DisputeStatus string

const (
	DisputeStatusOpen        DisputeStatus = "open"
	DisputeStatusInReview    DisputeStatus = "in_review"
	DisputeStatusInMediation DisputeStatus = "in_mediation"
	DisputeStatusResolved    DisputeStatus = "resolved"
	DisputeStatusClosed      DisputeStatus = "closed"
)

// DisputePriority enumerates urgency levels.
type DisputePriority string

const (
	DisputePriorityLow    DisputePriority = "low"
	DisputePriorityNormal DisputePriority = "normal"
	DisputePriorityHigh   DisputePriority = "high"
	DisputePriorityUrgent DisputePriority = "urgent"
)

// Dispute is the aggregate root for a disagreement between two parties
// over a completed job. Communications and Evidence are append-only;
// Version backs optimistic concurrency on state-changing writes.
type Dispute struct {
	ID               string
	JobID            string
	JobTitle         string
	PropertyID       string
	InitiatedBy      string
	InitiatedByRole  PartyRole
	CounterpartyRole PartyRole
	Title            string
	Description      string
	DesiredOutcome   string
	AmountCents      int64
	SettledCents     *int64
	Priority         DisputePriority
	Status           DisputeStatus
	Version          int64
	Communications   []DisputeMessage
	Evidence         []DisputeEvidence
	SettlementOffers []SettlementOffer
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ResolvedAt       *time.Time
	ClosedAt         *time.Time
}

// Terminal reports whether the dispute accepts no further state changes.
func (d *Dispute) Terminal() bool {
	return d.Status == DisputeStatusClosed
}

// PendingOffer returns the single pending offer, if any.
func (d *Dispute) PendingOffer() *SettlementOffer {
	for i := range d.SettlementOffers {
		if d.SettlementOffers[i].Status == OfferStatusPending {
			return &d.SettlementOffers[i]
		}
	}
	return nil
}

// IsInitiator reports whether the user filed this dispute. Counterparty
// membership is derived from job metadata by the caller, not stored here.
func (d *Dispute) IsInitiator(userID string) bool {
	return d.InitiatedBy == userID
}

// NextEscalation returns the priority one step above the current one.
func (p DisputePriority) NextEscalation() DisputePriority {
	switch p {
	case DisputePriorityLow:
		return DisputePriorityNormal
	case DisputePriorityNormal:
		return DisputePriorityHigh
	default:
		return DisputePriorityUrgent
	}
}

// ValidPriority reports whether the value is a known priority.
func ValidPriority(p DisputePriority) bool {
	switch p {
	case DisputePriorityLow, DisputePriorityNormal, DisputePriorityHigh, DisputePriorityUrgent:
		return true
	}
	return false
}
