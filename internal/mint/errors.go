// Package mint implements the mint reservation protocol: acquiring a
// time-bounded lock on a mint slot, refreshing it while the buyer signs,
// and completing (or compensating) once payment has landed on chain.
// All cross-request coordination happens through conditional row updates
// in the slot store; this package holds the state machine and the error
// taxonomy handlers translate into HTTP responses.
package mint

import (
	"errors"
	"fmt"
)

// ErrNoSlots is returned when every slot is taken: exhaustion rather than
// a race.  Distinguished from ErrLockAcquisition so clients can stop
// retrying.
var ErrNoSlots = errors.New("no NFTs available for minting")

// ErrLockAcquisition is returned when another caller won the race for the
// randomly picked slot.  The service never retries internally; clients
// re-request and get a different random pick.
var ErrLockAcquisition = errors.New("failed to lock mint record")

// ErrLockMismatch is returned when the presented lock id does not match
// the slot's current lock.  The caller's reservation was reaped and the
// slot re-acquired, or the caller is presenting someone else's token.
var ErrLockMismatch = errors.New("lock ID mismatch")

// ErrWalletMismatch is returned when the slot is owned by a different
// wallet than the caller's.  Surfaced as 403 rather than 400 because it
// smells like a front-running attempt, not a stale client.
var ErrWalletMismatch = errors.New("wallet mismatch")

// ErrLockExpired is returned by completion when the lease aged past the
// lock TTL without a refresh.  The slot may already have been reaped.
var ErrLockExpired = errors.New("lock expired")

// ErrPaymentNotFound is returned when the referenced payment transaction
// is absent from the chain at confirmed commitment.
var ErrPaymentNotFound = errors.New("payment transaction not found or not confirmed")

// ErrPaymentFailed is returned when the payment transaction is on chain
// but carries an execution error.
var ErrPaymentFailed = errors.New("payment transaction failed")

// InvalidLockStateError reports that a slot is not in the pending state
// the operation requires.  It carries the observed status so a client can
// tell "already finalized" from "never reserved".
type InvalidLockStateError struct {
	Status string
}

func (e *InvalidLockStateError) Error() string {
	return fmt.Sprintf("invalid lock state: %s", e.Status)
}
