package mint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/solara-labs/mint-reservation/internal/model"
	"github.com/solara-labs/mint-reservation/internal/queue"
	"github.com/solara-labs/mint-reservation/internal/repository"
	"github.com/solara-labs/mint-reservation/internal/utils"
)

// SlotStore is the compare-and-swap surface over the mint_slots table.
// Every method that mutates a claimed slot is conditioned on the caller's
// lock id and reports repository.ErrLockConflict when the condition no
// longer holds.  The concrete implementation is repository.SlotRepo.
type SlotStore interface {
	ReapExpired(ctx context.Context, ttl time.Duration) (int64, error)
	PickRandomAvailable(ctx context.Context) (uint32, error)
	TryAcquire(ctx context.Context, index uint32, wallet, lockID string) error
	Release(ctx context.Context, index uint32) error
	RecordPaymentID(ctx context.Context, index uint32, lockID, paymentID string) error
	Get(ctx context.Context, index uint32) (*model.MintSlot, error)
	Touch(ctx context.Context, index uint32, lockID, wallet string) error
	MarkCompleted(ctx context.Context, index uint32, lockID, mintAddress, mintSig, paymentSig string, verified bool) error
	MarkMintFailed(ctx context.Context, index uint32, lockID, paymentSig string) error
}

// RefundStore queues compensating refund entries.
type RefundStore interface {
	Enqueue(ctx context.Context, req *model.RefundRequest) error
}

// AuditSink records best-effort trace rows.  Implementations must never
// fail the caller.
type AuditSink interface {
	Record(ctx context.Context, requestID string, mintIndex *uint32, wallet, event, detail string)
}

// ChainGateway builds unsigned payment transactions and checks whether a
// submitted payment landed.  PaymentStatus returns nil for a confirmed,
// error-free transaction, ErrPaymentNotFound when absent, and
// ErrPaymentFailed when present with an execution error.
type ChainGateway interface {
	BuildPayment(ctx context.Context, buyerWallet string) (string, error)
	PaymentStatus(ctx context.Context, signature string) error
}

// MintOutcome is what the minter reports for a created token.  Verified
// tracks the collection-verification step separately: the mint itself is
// authoritative even when verification fails.
type MintOutcome struct {
	MintAddress string
	Signature   string
	Verified    bool
}

// Minter performs the on-chain NFT creation for a slot.
type Minter interface {
	Mint(ctx context.Context, buyerWallet string, index uint32) (*MintOutcome, error)
}

// EventPublisher emits domain events to the broker.  Failures are logged
// by callers and never abort the request.
type EventPublisher interface {
	PublishMintCompleted(ctx context.Context, ev queue.MintCompletedEvent) error
	PublishRefundQueued(ctx context.Context, ev queue.RefundQueuedEvent) error
}

// Service implements the reservation protocol.  Construct one per process
// with NewService and share it across handlers; it holds no mutable state
// of its own, all coordination lives in the slot store.
type Service struct {
	slots   SlotStore
	refunds RefundStore
	audit   AuditSink
	chain   ChainGateway
	minter  Minter
	events  EventPublisher
	price   uint64
	lockTTL time.Duration
}

// NewService wires the reservation protocol.  All dependencies except the
// event publisher and audit sink must be non-nil; those two may be nil to
// disable events/auditing (useful in tests and degraded deployments).
func NewService(slots SlotStore, refunds RefundStore, audit AuditSink, chain ChainGateway, minter Minter, events EventPublisher, price uint64, lockTTL time.Duration) *Service {
	if slots == nil || refunds == nil || chain == nil || minter == nil {
		panic("nil dependency passed to mint.NewService")
	}
	if lockTTL <= 0 {
		lockTTL = 3 * time.Minute
	}
	return &Service{
		slots:   slots,
		refunds: refunds,
		audit:   audit,
		chain:   chain,
		minter:  minter,
		events:  events,
		price:   price,
		lockTTL: lockTTL,
	}
}

// Price returns the configured mint price in lamports.
func (s *Service) Price() uint64 { return s.price }

// LockTTL returns the configured lock lifetime.
func (s *Service) LockTTL() time.Duration { return s.lockTTL }

// AcquireResult is returned to the client after a successful reservation.
// Transaction is the unsigned payment transaction, base64 encoded; the
// client signs and submits it, refreshing the lock while the wallet UI is
// open, then calls Complete with the resulting signature.
type AcquireResult struct {
	Transaction   string    `json:"transaction"`
	Filename      string    `json:"filename"`
	MintIndex     uint32    `json:"mintIndex"`
	LockID        string    `json:"lockId"`
	PaymentID     string    `json:"paymentId"`
	RequestID     string    `json:"requestId"`
	LockExpiresAt time.Time `json:"lockExpiresAt"`
}

// Acquire reserves one random available slot for the buyer and returns
// the unsigned payment transaction.  Exactly one row transitions
// available → pending, or none does.  A lost race surfaces as
// ErrLockAcquisition and exhaustion as ErrNoSlots; the caller re-requests
// rather than the service retrying.
func (s *Service) Acquire(ctx context.Context, buyerWallet string) (*AcquireResult, error) {
	requestID := "req_" + uuid.NewString()
	masked := utils.MaskAddress(buyerWallet)

	// Best-effort sweep before picking: reaper failure reduces availability
	// until the next sweep but never blocks a reservation attempt.
	if released, err := s.slots.ReapExpired(ctx, s.lockTTL); err != nil {
		log.Printf("[%s] reaper sweep failed: %v", requestID, err)
	} else if released > 0 {
		log.Printf("[%s] reaper released %d expired locks", requestID, released)
		s.recordAudit(ctx, requestID, nil, masked, "reap", fmt.Sprintf("released %d expired locks", released))
	}

	index, err := s.slots.PickRandomAvailable(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNoFreeSlots) {
			return nil, ErrNoSlots
		}
		return nil, err
	}

	lockID := "lock_" + uuid.NewString()
	if err := s.slots.TryAcquire(ctx, index, buyerWallet, lockID); err != nil {
		if errors.Is(err, repository.ErrLockConflict) {
			return nil, ErrLockAcquisition
		}
		return nil, err
	}

	tx, err := s.chain.BuildPayment(ctx, buyerWallet)
	if err != nil {
		// The reservation never reached the client; roll the row back so the
		// slot does not sit pending for a full TTL.
		if rbErr := s.slots.Release(ctx, index); rbErr != nil {
			log.Printf("[%s] rollback of slot %d failed: %v", requestID, index, rbErr)
		}
		s.recordAudit(ctx, requestID, &index, masked, "acquire_failed", err.Error())
		return nil, err
	}

	paymentID := fmt.Sprintf("pending_%d_%d", index, time.Now().UnixMilli())
	if err := s.slots.RecordPaymentID(ctx, index, lockID, paymentID); err != nil {
		// Traceability only; the reservation stands.
		log.Printf("[%s] recording payment id for slot %d failed: %v", requestID, index, err)
	}

	expiresAt := time.Now().UTC().Add(s.lockTTL)
	s.recordAudit(ctx, requestID, &index, masked, "acquired", "lock "+lockID)
	return &AcquireResult{
		Transaction:   tx,
		Filename:      model.SlotFilename(index),
		MintIndex:     index,
		LockID:        lockID,
		PaymentID:     paymentID,
		RequestID:     requestID,
		LockExpiresAt: expiresAt,
	}, nil
}

// Refresh extends the caller's lease by bumping the slot's updated_at.
// It fails closed with distinct errors so clients can tell "someone
// else's lock" from "already finalized"; a mismatch never advances the
// lease.  This is the only defense against the reaper releasing a slot
// whose buyer is still waiting on the wallet-signature UI.
func (s *Service) Refresh(ctx context.Context, buyerWallet string, index uint32, lockID string) (time.Time, error) {
	slot, err := s.slots.Get(ctx, index)
	if err != nil {
		return time.Time{}, err
	}
	if slot.Status != model.SlotPending {
		return time.Time{}, &InvalidLockStateError{Status: slot.Status}
	}
	if slot.LockID == nil || *slot.LockID != lockID {
		return time.Time{}, ErrLockMismatch
	}
	if slot.Wallet == nil || *slot.Wallet != buyerWallet {
		return time.Time{}, ErrWalletMismatch
	}
	if err := s.slots.Touch(ctx, index, lockID, buyerWallet); err != nil {
		if errors.Is(err, repository.ErrLockConflict) {
			// The row changed between the read and the conditional write.
			return time.Time{}, ErrLockMismatch
		}
		return time.Time{}, err
	}
	return time.Now().UTC(), nil
}

// CompleteResult reports a finished mint.  VerificationSuccess is
// tracked separately because collection verification failing does not
// undo the mint.
type CompleteResult struct {
	MintAddress         string `json:"mintAddress"`
	MintTxSignature     string `json:"mintTxSignature"`
	VerificationSuccess bool   `json:"verificationSuccess"`
	Filename            string `json:"filename"`
}

// Complete verifies the payment landed, performs the mint, and moves the
// slot to its terminal state.  Failures before payment confirmation
// surface directly; failures after it queue a compensating refund because
// the payment cannot be undone.  A persistence failure after a successful
// mint is logged only; the chain is authoritative at that point.
func (s *Service) Complete(ctx context.Context, paymentSig string, index uint32, lockID, buyerWallet string) (*CompleteResult, error) {
	requestID := "req_" + uuid.NewString()
	masked := utils.MaskAddress(buyerWallet)

	slot, err := s.slots.Get(ctx, index)
	if err != nil {
		return nil, err
	}
	if slot.Status != model.SlotPending {
		// Covers double completion: a second call sees completed and rejects
		// without re-running the mint.
		return nil, &InvalidLockStateError{Status: slot.Status}
	}
	if slot.LockID == nil || *slot.LockID != lockID {
		return nil, ErrLockMismatch
	}
	if slot.Wallet == nil || *slot.Wallet != buyerWallet {
		return nil, ErrWalletMismatch
	}
	if leaseExpired(slot.UpdatedAt, time.Now().UTC(), s.lockTTL) {
		return nil, ErrLockExpired
	}

	// No funds-state change has happened from our point of view until the
	// payment is confirmed on chain; absence or an execution error stops
	// everything before the mint is attempted.
	if err := s.chain.PaymentStatus(ctx, paymentSig); err != nil {
		return nil, err
	}

	outcome, err := s.minter.Mint(ctx, buyerWallet, index)
	if err != nil {
		return nil, s.compensate(ctx, requestID, slot, lockID, buyerWallet, masked, paymentSig, err)
	}

	if err := s.slots.MarkCompleted(ctx, index, lockID, outcome.MintAddress, outcome.Signature, paymentSig, outcome.Verified); err != nil {
		// The token exists on chain; the row is advisory now.  Logged, not
		// surfaced, not retried.
		log.Printf("[%s] persisting completion of slot %d failed: %v", requestID, index, err)
		s.recordAudit(ctx, requestID, &index, masked, "complete_persist_failed", err.Error())
	}

	s.recordAudit(ctx, requestID, &index, masked, "completed", outcome.MintAddress)
	s.publishCompleted(ctx, requestID, index, buyerWallet, paymentSig, outcome)

	return &CompleteResult{
		MintAddress:         outcome.MintAddress,
		MintTxSignature:     outcome.Signature,
		VerificationSuccess: outcome.Verified,
		Filename:            model.SlotFilename(index),
	}, nil
}

// compensate handles the payment-succeeded-mint-failed path: mark the
// slot, queue exactly one refund entry, publish the event, and hand back
// the original error annotated with the refund notice.
func (s *Service) compensate(ctx context.Context, requestID string, slot *model.MintSlot, lockID, wallet, masked, paymentSig string, cause error) error {
	index := slot.MintIndex
	if err := s.slots.MarkMintFailed(ctx, index, lockID, paymentSig); err != nil {
		log.Printf("[%s] marking slot %d mint-failed failed: %v", requestID, index, err)
	}
	refund := &model.RefundRequest{
		MintIndex:          index,
		Wallet:             wallet,
		PaymentTxSignature: paymentSig,
		AmountLamports:     s.price,
		Reason:             model.ReasonMintFailed,
		Detail:             cause.Error(),
	}
	if err := s.refunds.Enqueue(ctx, refund); err != nil {
		log.Printf("[%s] queueing refund for slot %d failed: %v", requestID, index, err)
		s.recordAudit(ctx, requestID, &index, masked, "refund_enqueue_failed", err.Error())
		return fmt.Errorf("minting failed and refund could not be queued, contact support with payment %s: %w", paymentSig, cause)
	}
	s.recordAudit(ctx, requestID, &index, masked, "mint_failed", cause.Error())
	if s.events != nil {
		ev := queue.RefundQueuedEvent{
			RefundID:         refund.ID,
			MintIndex:        index,
			Wallet:           wallet,
			PaymentSignature: paymentSig,
			AmountLamports:   s.price,
			Reason:           model.ReasonMintFailed,
			QueuedAt:         time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.events.PublishRefundQueued(ctx, ev); err != nil {
			log.Printf("[%s] publishing refund event failed: %v", requestID, err)
		}
	}
	return fmt.Errorf("minting failed, a refund has been automatically queued: %w", cause)
}

func (s *Service) publishCompleted(ctx context.Context, requestID string, index uint32, wallet, paymentSig string, outcome *MintOutcome) {
	if s.events == nil {
		return
	}
	ev := queue.MintCompletedEvent{
		MintIndex:        index,
		Wallet:           wallet,
		MintAddress:      outcome.MintAddress,
		MintSignature:    outcome.Signature,
		PaymentSignature: paymentSig,
		Verified:         outcome.Verified,
		Filename:         model.SlotFilename(index),
		CompletedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.events.PublishMintCompleted(ctx, ev); err != nil {
		log.Printf("[%s] publishing mint event failed: %v", requestID, err)
	}
}

func (s *Service) recordAudit(ctx context.Context, requestID string, index *uint32, wallet, event, detail string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, requestID, index, wallet, event, detail)
}
