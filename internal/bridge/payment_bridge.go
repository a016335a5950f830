package bridge

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/dispute-engine/internal/domain"
)

// SettlementInstruction authorizes the payments collaborator to move
// escrowed funds. OfferID doubles as the idempotency key at the bridge
// boundary.
type SettlementInstruction struct {
	DisputeID   string           `json:"dispute_id"`
	OfferID     string           `json:"offer_id"`
	AmountCents int64            `json:"amount_cents"`
	PayerRole   domain.PartyRole `json:"payer_role"`
	PayeeRole   domain.PartyRole `json:"payee_role"`
	Conditions  []string         `json:"conditions"`
}

// PaymentBridge is the consumed interface of the external payments
// collaborator. Escrow hold/release itself is out of scope.
type PaymentBridge interface {
	Submit(ctx context.Context, instruction SettlementInstruction) error
}

// loggingBridge stands in for the real payments collaborator in
// development and tests.
type loggingBridge struct {
	logger *zap.Logger
}

// NewLoggingBridge returns a bridge stub that records instructions.
func NewLoggingBridge(logger *zap.Logger) PaymentBridge {
	return &loggingBridge{logger: logger}
}

func (b *loggingBridge) Submit(ctx context.Context, instruction SettlementInstruction) error {
	b.logger.Info("settlement instruction",
		zap.String("dispute_id", instruction.DisputeID),
		zap.String("offer_id", instruction.OfferID),
		zap.Int64("amount_cents", instruction.AmountCents),
		zap.String("payer_role", string(instruction.PayerRole)),
		zap.String("payee_role", string(instruction.PayeeRole)))
	return nil
}
