package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/solara-labs/mint-reservation/internal/model"
)

// SlotRepo provides data access to the mint_slots table.  Every mutation
// is a conditional single-row update whose affected-row count is the
// success signal; the database's row-level atomicity is the only
// arbitration between concurrent reservation attempts.  All timestamps
// are written and compared in UTC.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a new SlotRepo bound to the provided database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

// DB exposes the underlying handle for callers that need to open a
// transaction spanning several repositories.
func (r *SlotRepo) DB() *sql.DB { return r.db }

// ReapExpired releases every pending slot whose lock has gone stale,
// returning the number of rows released.  A lock is stale when its
// updated_at is older than the given TTL.  This is the only code path
// allowed to move a slot backward from pending to available.
func (r *SlotRepo) ReapExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	const q = `UPDATE mint_slots
	           SET status = 'available', wallet = NULL, lock_id = NULL,
	               payment_tx_signature = NULL, updated_at = UTC_TIMESTAMP()
	           WHERE status = 'pending'
	             AND updated_at < (UTC_TIMESTAMP() - INTERVAL ? SECOND)`
	res, err := r.db.ExecContext(ctx, q, int64(ttl/time.Second))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PickRandomAvailable selects one available slot at random on the
// database side.  Doing the pick in SQL rather than in the handler keeps
// concurrent callers from piling onto the same low index; the follow-up
// conditional update in TryAcquire resolves any remaining collision.
// Returns ErrNoFreeSlots when the supply is exhausted.
func (r *SlotRepo) PickRandomAvailable(ctx context.Context) (uint32, error) {
	const q = `SELECT mint_index FROM mint_slots WHERE status = 'available' ORDER BY RAND() LIMIT 1`
	var index uint32
	if err := r.db.QueryRowContext(ctx, q).Scan(&index); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNoFreeSlots
		}
		return 0, err
	}
	return index, nil
}

// TryAcquire attempts the available → pending transition for the given
// index, stamping the caller's wallet and a fresh lock id.  The update is
// constrained to status = 'available'; when it affects zero rows another
// caller won the race and ErrLockConflict is returned.  There is no
// internal retry; the caller must re-request from the top.
func (r *SlotRepo) TryAcquire(ctx context.Context, index uint32, wallet, lockID string) error {
	const q = `UPDATE mint_slots
	           SET status = 'pending', wallet = ?, lock_id = ?, updated_at = UTC_TIMESTAMP()
	           WHERE mint_index = ? AND status = 'available'`
	res, err := r.db.ExecContext(ctx, q, wallet, lockID, index)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockConflict
	}
	return nil
}

// Release rolls a slot back to available, clearing the wallet, lock and
// provisional payment id.  It is used by the acquire path when transaction
// preparation fails after the row was already claimed; the reservation
// never reached the client, so a plain rollback is safe.
func (r *SlotRepo) Release(ctx context.Context, index uint32) error {
	const q = `UPDATE mint_slots
	           SET status = 'available', wallet = NULL, lock_id = NULL,
	               payment_tx_signature = NULL, updated_at = UTC_TIMESTAMP()
	           WHERE mint_index = ?`
	_, err := r.db.ExecContext(ctx, q, index)
	return err
}

// RecordPaymentID stores the provisional payment identifier on a slot the
// caller still holds.  The id exists only for traceability, so callers
// treat failures here as non-fatal; ErrLockConflict is still reported so
// they can log that the lock moved underneath them.
func (r *SlotRepo) RecordPaymentID(ctx context.Context, index uint32, lockID, paymentID string) error {
	const q = `UPDATE mint_slots SET payment_tx_signature = ?
	           WHERE mint_index = ? AND lock_id = ?`
	res, err := r.db.ExecContext(ctx, q, paymentID, index, lockID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrLockConflict
	}
	return nil
}

// Get loads a single slot row.  Returns ErrSlotNotFound when the index
// does not exist.
func (r *SlotRepo) Get(ctx context.Context, index uint32) (*model.MintSlot, error) {
	const q = `SELECT mint_index, status, wallet, lock_id, payment_tx_signature,
	                  mint_address, mint_signature, verified, updated_at, created_at
	           FROM mint_slots WHERE mint_index = ?`
	var s model.MintSlot
	var wallet, lockID, paySig, mintAddr, mintSig sql.NullString
	err := r.db.QueryRowContext(ctx, q, index).Scan(
		&s.MintIndex, &s.Status, &wallet, &lockID, &paySig,
		&mintAddr, &mintSig, &s.Verified, &s.UpdatedAt, &s.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	if wallet.Valid {
		v := wallet.String
		s.Wallet = &v
	}
	if lockID.Valid {
		v := lockID.String
		s.LockID = &v
	}
	if paySig.Valid {
		v := paySig.String
		s.PaymentTxSignature = &v
	}
	if mintAddr.Valid {
		v := mintAddr.String
		s.MintAddress = &v
	}
	if mintSig.Valid {
		v := mintSig.String
		s.MintSignature = &v
	}
	return &s, nil
}

// Touch bumps updated_at on a pending slot the caller owns, extending the
// lease.  The condition repeats the full ownership triple so a mismatched
// lock id or wallet can never advance someone else's lease; zero affected
// rows surfaces as ErrLockConflict.
func (r *SlotRepo) Touch(ctx context.Context, index uint32, lockID, wallet string) error {
	const q = `UPDATE mint_slots SET updated_at = UTC_TIMESTAMP()
	           WHERE mint_index = ? AND lock_id = ? AND wallet = ? AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, q, index, lockID, wallet)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrLockConflict
	}
	return nil
}

// MarkCompleted writes the terminal completed state with the mint
// address and signatures.  Conditioned on the lock id so a reaped and
// re-acquired slot cannot be clobbered by a stale completion.
func (r *SlotRepo) MarkCompleted(ctx context.Context, index uint32, lockID, mintAddress, mintSig, paymentSig string, verified bool) error {
	const q = `UPDATE mint_slots
	           SET status = 'completed', mint_address = ?, mint_signature = ?,
	               payment_tx_signature = ?, verified = ?, updated_at = UTC_TIMESTAMP()
	           WHERE mint_index = ? AND lock_id = ?`
	res, err := r.db.ExecContext(ctx, q, mintAddress, mintSig, paymentSig, verified, index, lockID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrLockConflict
	}
	return nil
}

// MarkMintFailed records the payment_received_mint_failed terminal state
// along with the confirmed payment signature, so the compensating refund
// entry can be matched back to the slot.
func (r *SlotRepo) MarkMintFailed(ctx context.Context, index uint32, lockID, paymentSig string) error {
	const q = `UPDATE mint_slots
	           SET status = 'payment_received_mint_failed', payment_tx_signature = ?,
	               updated_at = UTC_TIMESTAMP()
	           WHERE mint_index = ? AND lock_id = ?`
	res, err := r.db.ExecContext(ctx, q, paymentSig, index, lockID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrLockConflict
	}
	return nil
}

// CountByStatus returns the number of slots per status, used by the
// supply endpoints and the admin stats view.
func (r *SlotRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	const q = `SELECT status, COUNT(*) FROM mint_slots GROUP BY status`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// GetCompletedByWalletAndSig looks up a completed mint by its owning
// wallet and mint transaction signature.  The refund endpoint uses it to
// verify that a user-submitted refund request references a real mint
// belonging to the requester.  Returns ErrSlotNotFound when no such
// completed slot exists.
func (r *SlotRepo) GetCompletedByWalletAndSig(ctx context.Context, wallet, mintSig string) (*model.MintSlot, error) {
	const q = `SELECT mint_index FROM mint_slots
	           WHERE wallet = ? AND mint_signature = ? AND status = 'completed'`
	var index uint32
	if err := r.db.QueryRowContext(ctx, q, wallet, mintSig).Scan(&index); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return r.Get(ctx, index)
}
