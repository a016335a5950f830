package dto

import (
	"time"

	"github.com/spec-kit/dispute-engine/internal/domain"
)

// MonetaryOfferPayload payload.
type MonetaryOfferPayload struct {
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
}

// WorkOfferPayload payload.
type WorkOfferPayload struct {
	Description string `json:"description"`
	Timeline    string `json:"timeline"`
	Materials   string `json:"materials"`
	NoCharge    bool   `json:"no_charge"`
}

// CreateOfferRequest payload. Exactly one of monetary/work must be set,
// matching the offer type.
type CreateOfferRequest struct {
	OfferType  domain.OfferType      `json:"offer_type"`
	Monetary   *MonetaryOfferPayload `json:"monetary,omitempty"`
	Work       *WorkOfferPayload     `json:"work,omitempty"`
	Conditions []string              `json:"conditions"`
	ExpiresAt  *time.Time            `json:"expires_at,omitempty"`
}

// RespondOfferRequest payload.
type RespondOfferRequest struct {
	Action  domain.OfferAction `json:"action"`
	Message string             `json:"message"`
}

// OfferResponseDetail records how a pending offer was resolved.
type OfferResponseDetail struct {
	RespondedBy   string             `json:"responded_by"`
	RespondedRole domain.PartyRole   `json:"responded_role"`
	Action        domain.OfferAction `json:"action"`
	Message       string             `json:"message,omitempty"`
	RespondedAt   time.Time          `json:"responded_at"`
}

// OfferResponse represents a settlement offer.
type OfferResponse struct {
	ID            string                `json:"id"`
	DisputeID     string                `json:"dispute_id"`
	OfferedBy     string                `json:"offered_by"`
	OfferedByRole domain.PartyRole      `json:"offered_by_role"`
	OfferType     domain.OfferType      `json:"offer_type"`
	Monetary      *MonetaryOfferPayload `json:"monetary,omitempty"`
	Work          *WorkOfferPayload     `json:"work,omitempty"`
	Conditions    []string              `json:"conditions"`
	ExpiresAt     time.Time             `json:"expires_at"`
	Status        domain.OfferStatus    `json:"status"`
	Response      *OfferResponseDetail  `json:"response,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}
