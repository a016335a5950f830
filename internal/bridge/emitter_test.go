package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/dispute-engine/internal/domain"
)

type stubBridge struct {
	mu           sync.Mutex
	instructions []SettlementInstruction
	failNext     int
}

func (b *stubBridge) Submit(ctx context.Context, instruction SettlementInstruction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNext > 0 {
		b.failNext--
		return errors.New("bridge unavailable")
	}
	b.instructions = append(b.instructions, instruction)
	return nil
}

type stubCoordinator struct {
	mu         sync.Mutex
	held       map[string]bool
	queue      [][]byte
	acquireErr error
}

func newStubCoordinator() *stubCoordinator {
	return &stubCoordinator{held: make(map[string]bool)}
}

func (c *stubCoordinator) AcquireOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
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

func (c *stubCoordinator) EnqueueRetry(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, payload)
	return nil
}

func (c *stubCoordinator) DequeueRetry(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, nil
	}
	payload := c.queue[len(c.queue)-1]
	c.queue = c.queue[:len(c.queue)-1]
	return payload, nil
}

func sampleInstruction() SettlementInstruction {
	return SettlementInstruction{
		DisputeID:   "dsp-1",
		OfferID:     "ofr-1",
		AmountCents: 30_000,
		PayerRole:   domain.RoleLandlord,
		PayeeRole:   domain.RoleContractor,
	}
}

func TestEmitOncePerOffer(t *testing.T) {
	sink := &stubBridge{}
	coord := newStubCoordinator()
	emitter := NewEmitter(sink, coord, time.Hour, zap.NewNop())

	emitted, err := emitter.Emit(context.Background(), sampleInstruction())
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if !emitted {
		t.Fatal("first emit reported duplicate")
	}

	emitted, err = emitter.Emit(context.Background(), sampleInstruction())
	if err != nil {
		t.Fatalf("duplicate emit: %v", err)
	}
	if emitted {
		t.Fatal("duplicate emit reported as fresh")
	}
	if len(sink.instructions) != 1 {
		t.Fatalf("submissions = %d, want 1", len(sink.instructions))
	}
}

func TestEmitQueuesOnBridgeFailure(t *testing.T) {
	sink := &stubBridge{failNext: 1}
	coord := newStubCoordinator()
	emitter := NewEmitter(sink, coord, time.Hour, zap.NewNop())

	emitted, err := emitter.Emit(context.Background(), sampleInstruction())
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if !emitted {
		t.Fatal("failed delivery still counts as this caller's emission")
	}
	if len(coord.queue) != 1 {
		t.Fatalf("queued = %d, want 1", len(coord.queue))
	}

	processed, err := emitter.RetryOnce(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !processed {
		t.Fatal("retry found empty queue")
	}
	if len(sink.instructions) != 1 {
		t.Fatalf("submissions after retry = %d, want 1", len(sink.instructions))
	}
	if len(coord.queue) != 0 {
		t.Fatalf("queue after retry = %d, want 0", len(coord.queue))
	}
}

func TestRetryReenqueuesOnFailure(t *testing.T) {
	sink := &stubBridge{failNext: 2}
	coord := newStubCoordinator()
	emitter := NewEmitter(sink, coord, time.Hour, zap.NewNop())

	if _, err := emitter.Emit(context.Background(), sampleInstruction()); err != nil {
		t.Fatalf("emit: %v", err)
	}
	processed, err := emitter.RetryOnce(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !processed {
		t.Fatal("retry found empty queue")
	}
	if len(coord.queue) != 1 {
		t.Fatalf("failed retry did not re-enqueue: queue = %d", len(coord.queue))
	}
}

func TestEmitSurvivesGuardOutage(t *testing.T) {
	sink := &stubBridge{}
	coord := newStubCoordinator()
	coord.acquireErr = errors.New("redis down")
	emitter := NewEmitter(sink, coord, time.Hour, zap.NewNop())

	emitted, err := emitter.Emit(context.Background(), sampleInstruction())
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if !emitted {
		t.Fatal("guard outage must not drop the instruction")
	}
	if len(sink.instructions) != 1 {
		t.Fatalf("submissions = %d, want 1", len(sink.instructions))
	}
}

func TestRetryOnEmptyQueue(t *testing.T) {
	emitter := NewEmitter(&stubBridge{}, newStubCoordinator(), time.Hour, zap.NewNop())
	processed, err := emitter.RetryOnce(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if processed {
		t.Fatal("empty queue reported as processed")
	}
}
