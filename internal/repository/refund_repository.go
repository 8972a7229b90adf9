package repository

import (
	"context"
	"database/sql"

	"github.com/solara-labs/mint-reservation/internal/model"
)

// RefundRepo provides data access to the refund_queue table.  Entries are
// append-mostly: the completion path and the public refund endpoint
// insert, the notifier worker flips queued entries to notified, and
// operators mark them processed out of band.
type RefundRepo struct {
	db *sql.DB
}

// NewRefundRepo returns a new RefundRepo bound to the provided database.
func NewRefundRepo(db *sql.DB) *RefundRepo { return &RefundRepo{db: db} }

// Enqueue inserts a refund entry and populates its generated ID.  The
// completion path calls this exactly once per failed mint; the uniqueness
// of (mint_index, payment_tx_signature, reason) is enforced by a schema
// constraint so a retried completion cannot queue a second refund.
func (r *RefundRepo) Enqueue(ctx context.Context, req *model.RefundRequest) error {
	const q = `INSERT INTO refund_queue
	           (mint_index, wallet, payment_tx_signature, amount_lamports, reason, detail, contact_info, status)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	var contact interface{}
	if req.ContactInfo != nil {
		contact = *req.ContactInfo
	}
	res, err := r.db.ExecContext(ctx, q,
		req.MintIndex, req.Wallet, req.PaymentTxSignature, req.AmountLamports,
		req.Reason, req.Detail, contact, model.RefundQueued,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = uint64(id)
	req.Status = model.RefundQueued
	return nil
}

// ListByStatus returns refund entries in the given status, newest first,
// capped at limit.  A limit of 0 applies the default page size of 100.
func (r *RefundRepo) ListByStatus(ctx context.Context, status string, limit int) ([]model.RefundRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT id, mint_index, wallet, payment_tx_signature, amount_lamports,
	                  reason, detail, contact_info, status, created_at, updated_at
	           FROM refund_queue WHERE status = ?
	           ORDER BY created_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.RefundRequest, 0)
	for rows.Next() {
		var e model.RefundRequest
		var contact sql.NullString
		if err := rows.Scan(
			&e.ID, &e.MintIndex, &e.Wallet, &e.PaymentTxSignature, &e.AmountLamports,
			&e.Reason, &e.Detail, &contact, &e.Status, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if contact.Valid {
			v := contact.String
			e.ContactInfo = &v
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotified flips a queued entry to notified after its event has been
// published to the broker.  Conditioned on the queued status so two
// notifier runs cannot both claim the same entry.
func (r *RefundRepo) MarkNotified(ctx context.Context, id uint64) error {
	const q = `UPDATE refund_queue SET status = ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, model.RefundNotified, id, model.RefundQueued)
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
