package events

import (
	"time"

	"github.com/spec-kit/dispute-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventDisputeFiled           EventType = "dispute_filed"
	EventDisputeStatusChanged   EventType = "dispute_status_changed"
	EventDisputePriorityChanged EventType = "dispute_priority_changed"
	EventMessageAdded           EventType = "dispute_message_added"
	EventEvidenceAdded          EventType = "dispute_evidence_added"
	EventOfferCreated           EventType = "settlement_offer_created"
	EventOfferResolved          EventType = "settlement_offer_resolved"
	EventSettlementEmitted      EventType = "settlement_instruction_emitted"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string           `json:"user_id"`
	Role   domain.PartyRole `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	DisputeID string      `json:"dispute_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// DisputeFiledPayload payload.
type DisputeFiledPayload struct {
	JobID            string                 `json:"job_id"`
	PropertyID       string                 `json:"property_id"`
	CounterpartyRole domain.PartyRole       `json:"counterparty_role"`
	AmountCents      int64                  `json:"amount_cents"`
	Priority         domain.DisputePriority `json:"priority"`
	Title            string                 `json:"title"`
}

// DisputeStatusChangedPayload payload.
type DisputeStatusChangedPayload struct {
	OldStatus domain.DisputeStatus `json:"old_status"`
	NewStatus domain.DisputeStatus `json:"new_status"`
	Comment   string               `json:"comment,omitempty"`
}

// DisputePriorityChangedPayload payload.
type DisputePriorityChangedPayload struct {
	OldPriority domain.DisputePriority `json:"old_priority"`
	NewPriority domain.DisputePriority `json:"new_priority"`
}

// MessageAddedPayload payload.
type MessageAddedPayload struct {
	MessageID   string                    `json:"message_id"`
	MessageType domain.DisputeMessageType `json:"message_type"`
	SenderRole  domain.PartyRole          `json:"sender_role"`
	IsPrivate   bool                      `json:"is_private"`
	BodyPreview string                    `json:"body_preview"`
}

// EvidenceAddedPayload payload.
type EvidenceAddedPayload struct {
	EvidenceID   string              `json:"evidence_id"`
	EvidenceType domain.EvidenceType `json:"evidence_type"`
	IsPublic     bool                `json:"is_public"`
	Title        string              `json:"title"`
}

// OfferCreatedPayload payload.
type OfferCreatedPayload struct {
	OfferID   string           `json:"offer_id"`
	OfferType domain.OfferType `json:"offer_type"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// OfferResolvedPayload payload.
type OfferResolvedPayload struct {
	OfferID   string             `json:"offer_id"`
	NewStatus domain.OfferStatus `json:"new_status"`
	Message   string             `json:"message,omitempty"`
}

// SettlementEmittedPayload payload.
type SettlementEmittedPayload struct {
	OfferID     string           `json:"offer_id"`
	AmountCents int64            `json:"amount_cents"`
	PayerRole   domain.PartyRole `json:"payer_role"`
	PayeeRole   domain.PartyRole `json:"payee_role"`
}
