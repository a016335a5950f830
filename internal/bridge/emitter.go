package bridge

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

const sentKeyPrefix = "settlement:sent:"

// Coordinator is the slice of redis the emitter needs: a first-writer
// guard and a redelivery queue. Implemented by persistence.Redis.
type Coordinator interface {
	AcquireOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	EnqueueRetry(ctx context.Context, payload []byte) error
	DequeueRetry(ctx context.Context) ([]byte, error)
}

// Emitter delivers settlement instructions at-least-once with exactly-one
// emission per offer id. Bridge failures never propagate to the dispute
// state; the instruction is queued for redelivery instead.
type Emitter struct {
	bridge PaymentBridge
	coord  Coordinator
	ttl    time.Duration
	logger *zap.Logger
}

// NewEmitter constructs the emitter.
func NewEmitter(paymentBridge PaymentBridge, coord Coordinator, idempotencyTTL time.Duration, logger *zap.Logger) *Emitter {
	return &Emitter{
		bridge: paymentBridge,
		coord:  coord,
		ttl:    idempotencyTTL,
		logger: logger,
	}
}

// Emit submits the instruction once per offer id. Returns true when this
// call performed the emission, false on a duplicate.
func (e *Emitter) Emit(ctx context.Context, instruction SettlementInstruction) (bool, error) {
	won, err := e.coord.AcquireOnce(ctx, sentKeyPrefix+instruction.OfferID, e.ttl)
	if err != nil {
		// The bridge dedupes by offer id as well, so delivering without
		// the guard is safe; losing the instruction is not.
		e.logger.Warn("idempotency guard unavailable, submitting anyway",
			zap.String("offer_id", instruction.OfferID), zap.Error(err))
	} else if !won {
		e.logger.Debug("settlement instruction already emitted",
			zap.String("offer_id", instruction.OfferID))
		return false, nil
	}

	if err := e.bridge.Submit(ctx, instruction); err != nil {
		// Dispute stays resolved regardless. Queue for redelivery and
		// raise an out-of-band alert for manual reconciliation.
		e.logger.Error("settlement delivery failed, queued for retry",
			zap.String("dispute_id", instruction.DisputeID),
			zap.String("offer_id", instruction.OfferID),
			zap.Error(err))
		payload, marshalErr := json.Marshal(instruction)
		if marshalErr != nil {
			return true, marshalErr
		}
		if queueErr := e.coord.EnqueueRetry(ctx, payload); queueErr != nil {
			e.logger.Error("settlement retry enqueue failed",
				zap.String("offer_id", instruction.OfferID), zap.Error(queueErr))
		}
	}
	return true, nil
}

// RetryOnce redelivers a single queued instruction. Returns false when
// the queue is empty. Failed redelivery re-enqueues the instruction.
func (e *Emitter) RetryOnce(ctx context.Context) (bool, error) {
	payload, err := e.coord.DequeueRetry(ctx)
	if err != nil {
		return false, err
	}
	if payload == nil {
		return false, nil
	}
	var instruction SettlementInstruction
	if err := json.Unmarshal(payload, &instruction); err != nil {
		e.logger.Error("dropping malformed settlement retry payload", zap.Error(err))
		return true, nil
	}
	if err := e.bridge.Submit(ctx, instruction); err != nil {
		e.logger.Warn("settlement redelivery failed",
			zap.String("offer_id", instruction.OfferID), zap.Error(err))
		if queueErr := e.coord.EnqueueRetry(ctx, payload); queueErr != nil {
			return true, queueErr
		}
	}
	return true, nil
}
