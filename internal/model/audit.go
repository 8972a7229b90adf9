package model

import "time"

// MintAuditLog is a best-effort trace row written at the interesting points
// of a reservation's life (acquired, refreshed, completed, failed, reaped).
// Wallet addresses are stored masked; audit rows are for operators, not for
// reconstructing secrets.
type MintAuditLog struct {
	ID        uint64    // mint_audit_logs.id
	RequestID string    // mint_audit_logs.request_id
	MintIndex *uint32   // mint_audit_logs.mint_index (nullable; reap sweeps have none)
	Wallet    string    // mint_audit_logs.wallet (masked)
	Event     string    // mint_audit_logs.event
	Detail    string    // mint_audit_logs.detail
	CreatedAt time.Time // mint_audit_logs.created_at
}
