package mint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/solara-labs/mint-reservation/internal/model"
	"github.com/solara-labs/mint-reservation/internal/queue"
	"github.com/solara-labs/mint-reservation/internal/repository"
)

const (
	testPrice = uint64(1_500_000_000) // 1.5 SOL
	testTTL   = 3 * time.Minute

	walletA = "BuyerWalletAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	walletB = "BuyerWalletBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"
)

// fakeSlots is an in-memory SlotStore with the same conditional-update
// semantics as the MySQL repository: mutations check the lock triple and
// report repository.ErrLockConflict when the condition does not hold.
type fakeSlots struct {
	slots map[uint32]*model.MintSlot
	now   func() time.Time

	// picks, when non-empty, forces PickRandomAvailable to return these
	// indices in order regardless of slot state.  Used to simulate the
	// pick/acquire race.
	picks []uint32

	touchErr error
	markErr  error
}

func newFakeSlots(available ...uint32) *fakeSlots {
	f := &fakeSlots{
		slots: make(map[uint32]*model.MintSlot),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, idx := range available {
		f.slots[idx] = &model.MintSlot{
			MintIndex: idx,
			Status:    model.SlotAvailable,
			UpdatedAt: f.now(),
		}
	}
	return f
}

func (f *fakeSlots) ReapExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	var n int64
	for _, s := range f.slots {
		if s.Status == model.SlotPending && f.now().Sub(s.UpdatedAt) > ttl {
			s.Status = model.SlotAvailable
			s.Wallet, s.LockID, s.PaymentTxSignature = nil, nil, nil
			s.UpdatedAt = f.now()
			n++
		}
	}
	return n, nil
}

func (f *fakeSlots) PickRandomAvailable(ctx context.Context) (uint32, error) {
	if len(f.picks) > 0 {
		idx := f.picks[0]
		f.picks = f.picks[1:]
		return idx, nil
	}
	for idx, s := range f.slots {
		if s.Status == model.SlotAvailable {
			return idx, nil
		}
	}
	return 0, repository.ErrNoFreeSlots
}

func (f *fakeSlots) TryAcquire(ctx context.Context, index uint32, wallet, lockID string) error {
	s, ok := f.slots[index]
	if !ok || s.Status != model.SlotAvailable {
		return repository.ErrLockConflict
	}
	s.Status = model.SlotPending
	s.Wallet, s.LockID = &wallet, &lockID
	s.UpdatedAt = f.now()
	return nil
}

func (f *fakeSlots) Release(ctx context.Context, index uint32) error {
	s, ok := f.slots[index]
	if !ok {
		return repository.ErrSlotNotFound
	}
	s.Status = model.SlotAvailable
	s.Wallet, s.LockID, s.PaymentTxSignature = nil, nil, nil
	s.UpdatedAt = f.now()
	return nil
}

func (f *fakeSlots) RecordPaymentID(ctx context.Context, index uint32, lockID, paymentID string) error {
	s, ok := f.slots[index]
	if !ok || s.LockID == nil || *s.LockID != lockID {
		return repository.ErrLockConflict
	}
	s.PaymentTxSignature = &paymentID
	return nil
}

func (f *fakeSlots) Get(ctx context.Context, index uint32) (*model.MintSlot, error) {
	s, ok := f.slots[index]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSlots) Touch(ctx context.Context, index uint32, lockID, wallet string) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	s, ok := f.slots[index]
	if !ok || s.Status != model.SlotPending ||
		s.LockID == nil || *s.LockID != lockID ||
		s.Wallet == nil || *s.Wallet != wallet {
		return repository.ErrLockConflict
	}
	s.UpdatedAt = f.now()
	return nil
}

func (f *fakeSlots) MarkCompleted(ctx context.Context, index uint32, lockID, mintAddress, mintSig, paymentSig string, verified bool) error {
	if f.markErr != nil {
		return f.markErr
	}
	s, ok := f.slots[index]
	if !ok || s.LockID == nil || *s.LockID != lockID {
		return repository.ErrLockConflict
	}
	s.Status = model.SlotCompleted
	s.MintAddress, s.MintSignature, s.PaymentTxSignature = &mintAddress, &mintSig, &paymentSig
	s.Verified = verified
	s.UpdatedAt = f.now()
	return nil
}

func (f *fakeSlots) MarkMintFailed(ctx context.Context, index uint32, lockID, paymentSig string) error {
	s, ok := f.slots[index]
	if !ok || s.LockID == nil || *s.LockID != lockID {
		return repository.ErrLockConflict
	}
	s.Status = model.SlotMintFailed
	s.PaymentTxSignature = &paymentSig
	s.UpdatedAt = f.now()
	return nil
}

type fakeRefunds struct {
	entries    []model.RefundRequest
	enqueueErr error
	nextID     uint64
}

func (f *fakeRefunds) Enqueue(ctx context.Context, req *model.RefundRequest) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.nextID++
	req.ID = f.nextID
	req.Status = model.RefundQueued
	f.entries = append(f.entries, *req)
	return nil
}

type fakeChain struct {
	tx       string
	buildErr error
	payments map[string]error // signature -> status result
}

func (f *fakeChain) BuildPayment(ctx context.Context, buyerWallet string) (string, error) {
	if f.buildErr != nil {
		return "", f.buildErr
	}
	if f.tx == "" {
		return "dW5zaWduZWQ=", nil
	}
	return f.tx, nil
}

func (f *fakeChain) PaymentStatus(ctx context.Context, signature string) error {
	err, ok := f.payments[signature]
	if !ok {
		return ErrPaymentNotFound
	}
	return err
}

type fakeMinter struct {
	outcome *MintOutcome
	err     error
	calls   int
}

func (f *fakeMinter) Mint(ctx context.Context, buyerWallet string, index uint32) (*MintOutcome, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.outcome != nil {
		return f.outcome, nil
	}
	return &MintOutcome{
		MintAddress: fmt.Sprintf("Mint%d", index),
		Signature:   fmt.Sprintf("Sig%d", index),
		Verified:    true,
	}, nil
}

type fakeEvents struct {
	completed []queue.MintCompletedEvent
	refunds   []queue.RefundQueuedEvent
}

func (f *fakeEvents) PublishMintCompleted(ctx context.Context, ev queue.MintCompletedEvent) error {
	f.completed = append(f.completed, ev)
	return nil
}

func (f *fakeEvents) PublishRefundQueued(ctx context.Context, ev queue.RefundQueuedEvent) error {
	f.refunds = append(f.refunds, ev)
	return nil
}

type fixture struct {
	slots   *fakeSlots
	refunds *fakeRefunds
	chain   *fakeChain
	minter  *fakeMinter
	events  *fakeEvents
	svc     *Service
}

func newFixture(available ...uint32) *fixture {
	f := &fixture{
		slots:   newFakeSlots(available...),
		refunds: &fakeRefunds{},
		chain:   &fakeChain{payments: map[string]error{}},
		minter:  &fakeMinter{},
		events:  &fakeEvents{},
	}
	f.svc = NewService(f.slots, f.refunds, nil, f.chain, f.minter, f.events, testPrice, testTTL)
	return f
}

// acquire is a helper running a successful acquisition for walletA.
func (f *fixture) acquire(t *testing.T) *AcquireResult {
	t.Helper()
	res, err := f.svc.Acquire(context.Background(), walletA)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	return res
}

func TestAcquireReservesSlot(t *testing.T) {
	f := newFixture(42)
	res := f.acquire(t)

	if res.MintIndex != 42 {
		t.Fatalf("mint index = %d, want 42", res.MintIndex)
	}
	if res.Filename != "0043" {
		t.Fatalf("filename = %q, want %q", res.Filename, "0043")
	}
	if res.Transaction == "" || res.LockID == "" || res.RequestID == "" {
		t.Fatalf("incomplete result: %+v", res)
	}
	if !strings.HasPrefix(res.PaymentID, "pending_42_") {
		t.Fatalf("payment id = %q", res.PaymentID)
	}
	if remaining := time.Until(res.LockExpiresAt); remaining < testTTL-time.Minute {
		t.Fatalf("lock expiry too soon: %v", remaining)
	}

	slot := f.slots.slots[42]
	if slot.Status != model.SlotPending {
		t.Fatalf("slot status = %q, want pending", slot.Status)
	}
	if slot.Wallet == nil || *slot.Wallet != walletA {
		t.Fatalf("slot wallet = %v", slot.Wallet)
	}
	if slot.LockID == nil || *slot.LockID != res.LockID {
		t.Fatalf("slot lock = %v, want %q", slot.LockID, res.LockID)
	}
}

func TestAcquireExhaustion(t *testing.T) {
	f := newFixture() // no slots at all
	if _, err := f.svc.Acquire(context.Background(), walletA); !errors.Is(err, ErrNoSlots) {
		t.Fatalf("err = %v, want ErrNoSlots", err)
	}

	f = newFixture(7)
	f.acquire(t)
	// The only slot is now pending; a second buyer sees exhaustion.
	if _, err := f.svc.Acquire(context.Background(), walletB); !errors.Is(err, ErrNoSlots) {
		t.Fatalf("err = %v, want ErrNoSlots", err)
	}
}

func TestAcquireLostRace(t *testing.T) {
	f := newFixture(5)
	f.acquire(t)
	// Force the picker to hand out the already-pending index, as happens
	// when two requests pick the same row before either claims it.
	f.slots.picks = []uint32{5}
	if _, err := f.svc.Acquire(context.Background(), walletB); !errors.Is(err, ErrLockAcquisition) {
		t.Fatalf("err = %v, want ErrLockAcquisition", err)
	}
	// The winner's claim is untouched.
	if got := *f.slots.slots[5].Wallet; got != walletA {
		t.Fatalf("slot wallet = %q, want winner %q", got, walletA)
	}
}

func TestAcquireRollsBackOnBuildFailure(t *testing.T) {
	f := newFixture(3)
	f.chain.buildErr = errors.New("rpc unreachable")
	if _, err := f.svc.Acquire(context.Background(), walletA); err == nil {
		t.Fatal("expected error")
	}
	if got := f.slots.slots[3].Status; got != model.SlotAvailable {
		t.Fatalf("slot status = %q, want available after rollback", got)
	}
}

func TestAcquireReapsExpiredLocks(t *testing.T) {
	f := newFixture(1)
	res := f.acquire(t)
	// Age the lock past the TTL; the sweep in the next acquire should
	// release it and hand the slot to the new buyer.
	f.slots.slots[res.MintIndex].UpdatedAt = time.Now().UTC().Add(-testTTL - time.Minute)

	res2, err := f.svc.Acquire(context.Background(), walletB)
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	if res2.MintIndex != res.MintIndex {
		t.Fatalf("expected the reaped slot %d, got %d", res.MintIndex, res2.MintIndex)
	}
	if res2.LockID == res.LockID {
		t.Fatal("reacquired slot kept the old lock id")
	}
}

func TestRefreshExtendsLease(t *testing.T) {
	f := newFixture(9)
	res := f.acquire(t)
	before := f.slots.slots[9].UpdatedAt
	f.slots.now = func() time.Time { return before.Add(2 * time.Minute) }

	ts, err := f.svc.Refresh(context.Background(), walletA, res.MintIndex, res.LockID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if ts.IsZero() {
		t.Fatal("zero refresh timestamp")
	}
	if got := f.slots.slots[9].UpdatedAt; !got.After(before) {
		t.Fatalf("updated_at not advanced: %v -> %v", before, got)
	}
}

func TestRefreshRejections(t *testing.T) {
	f := newFixture(9)
	res := f.acquire(t)
	ctx := context.Background()
	before := f.slots.slots[9].UpdatedAt

	if _, err := f.svc.Refresh(ctx, walletA, 999, res.LockID); !errors.Is(err, repository.ErrSlotNotFound) {
		t.Fatalf("unknown index: err = %v, want ErrSlotNotFound", err)
	}
	if _, err := f.svc.Refresh(ctx, walletA, res.MintIndex, "lock_other"); !errors.Is(err, ErrLockMismatch) {
		t.Fatalf("wrong lock: err = %v, want ErrLockMismatch", err)
	}
	if _, err := f.svc.Refresh(ctx, walletB, res.MintIndex, res.LockID); !errors.Is(err, ErrWalletMismatch) {
		t.Fatalf("wrong wallet: err = %v, want ErrWalletMismatch", err)
	}
	// None of the rejected calls may have advanced the lease.
	if got := f.slots.slots[9].UpdatedAt; !got.Equal(before) {
		t.Fatalf("rejected refresh moved updated_at: %v -> %v", before, got)
	}

	// The row can change between the ownership read and the conditional
	// write; the store reports it as a conflict and the caller sees a
	// lock mismatch.
	f.slots.touchErr = repository.ErrLockConflict
	if _, err := f.svc.Refresh(ctx, walletA, res.MintIndex, res.LockID); !errors.Is(err, ErrLockMismatch) {
		t.Fatalf("conflicting touch: err = %v, want ErrLockMismatch", err)
	}
	f.slots.touchErr = nil

	// A finalized slot reports its state rather than a mismatch.
	f.slots.slots[9].Status = model.SlotCompleted
	var stateErr *InvalidLockStateError
	if _, err := f.svc.Refresh(ctx, walletA, res.MintIndex, res.LockID); !errors.As(err, &stateErr) {
		t.Fatalf("completed slot: err = %v, want InvalidLockStateError", err)
	} else if stateErr.Status != model.SlotCompleted {
		t.Fatalf("state = %q, want completed", stateErr.Status)
	}
}

func TestCompleteHappyPath(t *testing.T) {
	f := newFixture(42)
	res := f.acquire(t)
	f.chain.payments["PaySig42"] = nil

	out, err := f.svc.Complete(context.Background(), "PaySig42", res.MintIndex, res.LockID, walletA)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out.MintAddress != "Mint42" || out.MintTxSignature != "Sig42" {
		t.Fatalf("outcome = %+v", out)
	}
	if !out.VerificationSuccess {
		t.Fatal("verification flag not carried through")
	}
	if out.Filename != "0043" {
		t.Fatalf("filename = %q", out.Filename)
	}

	slot := f.slots.slots[42]
	if slot.Status != model.SlotCompleted {
		t.Fatalf("slot status = %q, want completed", slot.Status)
	}
	if slot.PaymentTxSignature == nil || *slot.PaymentTxSignature != "PaySig42" {
		t.Fatalf("payment signature = %v", slot.PaymentTxSignature)
	}
	if len(f.events.completed) != 1 {
		t.Fatalf("completed events = %d, want 1", len(f.events.completed))
	}
	if ev := f.events.completed[0]; ev.MintIndex != 42 || ev.Wallet != walletA {
		t.Fatalf("event = %+v", ev)
	}
	if len(f.refunds.entries) != 0 {
		t.Fatalf("unexpected refund entries: %+v", f.refunds.entries)
	}
}

func TestCompleteTwiceRejectsSecondCall(t *testing.T) {
	f := newFixture(42)
	res := f.acquire(t)
	f.chain.payments["PaySig"] = nil
	ctx := context.Background()

	if _, err := f.svc.Complete(ctx, "PaySig", res.MintIndex, res.LockID, walletA); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	_, err := f.svc.Complete(ctx, "PaySig", res.MintIndex, res.LockID, walletA)
	var stateErr *InvalidLockStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("second complete: err = %v, want InvalidLockStateError", err)
	}
	if got := stateErr.Error(); got != "invalid lock state: completed" {
		t.Fatalf("message = %q", got)
	}
	if f.minter.calls != 1 {
		t.Fatalf("mint ran %d times, want exactly once", f.minter.calls)
	}
}

func TestCompleteExpiredLease(t *testing.T) {
	f := newFixture(8)
	res := f.acquire(t)
	f.slots.slots[8].UpdatedAt = time.Now().UTC().Add(-testTTL - time.Minute)
	f.chain.payments["PaySig"] = nil

	if _, err := f.svc.Complete(context.Background(), "PaySig", res.MintIndex, res.LockID, walletA); !errors.Is(err, ErrLockExpired) {
		t.Fatalf("err = %v, want ErrLockExpired", err)
	}
	if f.minter.calls != 0 {
		t.Fatal("mint attempted on expired lease")
	}
}

func TestCompletePaymentValidation(t *testing.T) {
	f := newFixture(8)
	res := f.acquire(t)
	ctx := context.Background()
	f.chain.payments["FailedSig"] = ErrPaymentFailed

	if _, err := f.svc.Complete(ctx, "MissingSig", res.MintIndex, res.LockID, walletA); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("missing payment: err = %v, want ErrPaymentNotFound", err)
	}
	if _, err := f.svc.Complete(ctx, "FailedSig", res.MintIndex, res.LockID, walletA); !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("failed payment: err = %v, want ErrPaymentFailed", err)
	}
	// Pre-payment failures leave the reservation intact.
	if got := f.slots.slots[8].Status; got != model.SlotPending {
		t.Fatalf("slot status = %q, want pending", got)
	}
	if f.minter.calls != 0 {
		t.Fatal("mint attempted without confirmed payment")
	}
	if len(f.refunds.entries) != 0 {
		t.Fatal("refund queued before payment confirmation")
	}
}

func TestCompleteQueuesRefundWhenMintFails(t *testing.T) {
	f := newFixture(42)
	res := f.acquire(t)
	f.chain.payments["PaySig42"] = nil
	f.minter.err = errors.New("blockhash not found")

	_, err := f.svc.Complete(context.Background(), "PaySig42", res.MintIndex, res.LockID, walletA)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "refund has been automatically queued") {
		t.Fatalf("error lacks refund notice: %v", err)
	}
	if !errors.Is(err, f.minter.err) {
		t.Fatalf("cause not wrapped: %v", err)
	}

	if got := f.slots.slots[42].Status; got != model.SlotMintFailed {
		t.Fatalf("slot status = %q, want payment_received_mint_failed", got)
	}
	if len(f.refunds.entries) != 1 {
		t.Fatalf("refund entries = %d, want 1", len(f.refunds.entries))
	}
	entry := f.refunds.entries[0]
	if entry.AmountLamports != testPrice {
		t.Fatalf("refund amount = %d, want %d", entry.AmountLamports, testPrice)
	}
	if entry.MintIndex != 42 || entry.Wallet != walletA || entry.PaymentTxSignature != "PaySig42" {
		t.Fatalf("refund entry = %+v", entry)
	}
	if entry.Reason != model.ReasonMintFailed {
		t.Fatalf("refund reason = %q", entry.Reason)
	}
	if len(f.events.refunds) != 1 {
		t.Fatalf("refund events = %d, want 1", len(f.events.refunds))
	}
	if len(f.events.completed) != 0 {
		t.Fatal("completed event published for a failed mint")
	}
}

func TestCompleteRefundEnqueueFailure(t *testing.T) {
	f := newFixture(1)
	res := f.acquire(t)
	f.chain.payments["PaySig"] = nil
	f.minter.err = errors.New("mint rejected")
	f.refunds.enqueueErr = errors.New("db down")

	_, err := f.svc.Complete(context.Background(), "PaySig", res.MintIndex, res.LockID, walletA)
	if err == nil {
		t.Fatal("expected error")
	}
	// When even the compensating entry cannot be written, the message must
	// carry the payment signature so support can act on it.
	if !strings.Contains(err.Error(), "contact support") || !strings.Contains(err.Error(), "PaySig") {
		t.Fatalf("error = %v", err)
	}
}

func TestCompleteOwnershipChecks(t *testing.T) {
	f := newFixture(6)
	res := f.acquire(t)
	ctx := context.Background()
	f.chain.payments["PaySig"] = nil

	if _, err := f.svc.Complete(ctx, "PaySig", res.MintIndex, "lock_stale", walletA); !errors.Is(err, ErrLockMismatch) {
		t.Fatalf("wrong lock: err = %v", err)
	}
	if _, err := f.svc.Complete(ctx, "PaySig", res.MintIndex, res.LockID, walletB); !errors.Is(err, ErrWalletMismatch) {
		t.Fatalf("wrong wallet: err = %v", err)
	}
	if got := f.slots.slots[6].Status; got != model.SlotPending {
		t.Fatalf("slot status = %q after rejected completes", got)
	}
	if f.minter.calls != 0 {
		t.Fatal("mint ran for a rejected caller")
	}
}

func TestCompleteSurvivesPersistFailure(t *testing.T) {
	f := newFixture(2)
	res := f.acquire(t)
	f.chain.payments["PaySig"] = nil
	f.slots.markErr = errors.New("deadlock")

	// The token exists on chain once the minter returns; a row-write
	// failure must not turn a successful mint into a client-facing error.
	out, err := f.svc.Complete(context.Background(), "PaySig", res.MintIndex, res.LockID, walletA)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out.MintAddress == "" {
		t.Fatalf("outcome = %+v", out)
	}
}
