package domain

import "time"

// OfferStatus enumerates the settlement offer lifecycle. pending is the
// only non-terminal state.
type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
	OfferStatusExpired  OfferStatus = "expired"
)

// OfferType identifies what an offer proposes.
type OfferType string

const (
	OfferTypeMonetary       OfferType = "monetary"
	OfferTypeWorkCompletion OfferType = "work_completion"
	OfferTypePartialRefund  OfferType = "partial_refund"
	OfferTypeAdditionalWork OfferType = "additional_work"
)

// OfferAction is a counterparty response to a pending offer.
type OfferAction string

const (
	OfferActionAccept OfferAction = "accept"
	OfferActionReject OfferAction = "reject"
)

// MonetaryOffer proposes a payment amount. Used for monetary and
// partial_refund offer types.
type MonetaryOffer struct {
	AmountCents int64
	Description string
}

// WorkOffer proposes corrective or additional work. Used for
// work_completion and additional_work offer types.
type WorkOffer struct {
	Description string
	Timeline    string
	Materials   string
	NoCharge    bool
}

// OfferResponse records how a pending offer was resolved.
type OfferResponse struct {
	RespondedBy   string
	RespondedRole PartyRole
	Action        OfferAction
	Message       string
	RespondedAt   time.Time
}

// SettlementOffer is a time-boxed proposal to resolve a dispute. Once
// status leaves pending the offer is terminal and immutable.
type SettlementOffer struct {
	ID            string
	DisputeID     string
	OfferedBy     string
	OfferedByRole PartyRole
	OfferType     OfferType
	Monetary      *MonetaryOffer
	Work          *WorkOffer
	Conditions    []string
	ExpiresAt     time.Time
	Status        OfferStatus
	Response      *OfferResponse
	CreatedAt     time.Time
}

// Monetary offer types carry a MonetaryOffer payload, work offer types a
// WorkOffer payload. Exactly one must be populated.
func (t OfferType) IsMonetary() bool {
	return t == OfferTypeMonetary || t == OfferTypePartialRefund
}

// Terminal reports whether the offer can no longer change.
func (o *SettlementOffer) Terminal() bool {
	return o.Status != OfferStatusPending
}

// ExpiredBy reports whether a pending offer's deadline has passed at the
// given instant. Terminal offers are never considered newly expired.
func (o *SettlementOffer) ExpiredBy(now time.Time) bool {
	return o.Status == OfferStatusPending && !now.Before(o.ExpiresAt)
}

// SettledAmount returns the amount an accepted offer moves, in cents.
// Work offers and no-charge proposals settle at zero.
func (o *SettlementOffer) SettledAmount() int64 {
	if o.Monetary != nil {
		return o.Monetary.AmountCents
	}
	return 0
}
