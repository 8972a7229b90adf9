package model

import (
	"fmt"
	"time"
)

// Slot status values.  A slot moves available → pending → {completed |
// payment_received_mint_failed}.  Only the reaper may move a pending slot
// back to available, and only after its lock has gone stale.
const (
	SlotAvailable  = "available"
	SlotPending    = "pending"
	SlotCompleted  = "completed"
	SlotMintFailed = "payment_received_mint_failed"
)

// MintSlot represents one reservable mint in the fixed supply.  A slot is
// claimed by writing a lock id onto the row with a conditional update; the
// lock id acts as a capability token and every later mutation must present
// it.  UpdatedAt doubles as the lock's freshness marker: a pending slot
// whose UpdatedAt is older than the lock TTL is considered abandoned.
//
// Fields:
//  MintIndex          – stable identity of the slot, 0-based.
//  Status             – one of the Slot* constants above.
//  Wallet             – owning wallet address; meaningful only off available.
//  LockID             – opaque token held by the current reservation attempt.
//  PaymentTxSignature – provisional payment id, later the on-chain signature.
//  MintAddress        – minted token address, populated on completion.
//  MintSignature      – mint transaction signature, populated on completion.
//  Verified           – whether collection verification succeeded.
//  UpdatedAt          – last mutation time; lease freshness marker.
//  CreatedAt          – when the row was seeded.
type MintSlot struct {
	MintIndex          uint32    // mint_slots.mint_index
	Status             string    // mint_slots.status
	Wallet             *string   // mint_slots.wallet (nullable)
	LockID             *string   // mint_slots.lock_id (nullable)
	PaymentTxSignature *string   // mint_slots.payment_tx_signature (nullable)
	MintAddress        *string   // mint_slots.mint_address (nullable)
	MintSignature      *string   // mint_slots.mint_signature (nullable)
	Verified           bool      // mint_slots.verified
	UpdatedAt          time.Time // mint_slots.updated_at
	CreatedAt          time.Time // mint_slots.created_at
}

// SlotFilename formats a mint index as the zero-padded asset filename,
// matching the metadata bundle layout (slot 0 → "0001").
func SlotFilename(index uint32) string {
	return fmt.Sprintf("%04d", index+1)
}
