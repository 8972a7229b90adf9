package repository

import (
	"context"
	"database/sql"
	"log"
)

// AuditRepo writes trace rows to mint_audit_logs.  Audit writes are
// best-effort: a failure is logged and swallowed so that tracing can
// never break a reservation.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns a new AuditRepo bound to the provided database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// Record inserts one audit row.  mintIndex may be nil for events that are
// not tied to a single slot (reap sweeps).  The wallet argument must
// already be masked by the caller.
func (r *AuditRepo) Record(ctx context.Context, requestID string, mintIndex *uint32, wallet, event, detail string) {
	const q = `INSERT INTO mint_audit_logs (request_id, mint_index, wallet, event, detail)
	           VALUES (?, ?, ?, ?, ?)`
	var idx interface{}
	if mintIndex != nil {
		idx = *mintIndex
	}
	if _, err := r.db.ExecContext(ctx, q, requestID, idx, wallet, event, detail); err != nil {
		log.Printf("[%s] audit write failed: %v", requestID, err)
	}
}
