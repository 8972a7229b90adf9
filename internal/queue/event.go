// Package queue defines message payloads exchanged over the message broker.
package queue

// MintCompletedEvent is published when a reservation finishes minting.
// It contains enough information for downstream consumers to log, notify,
// or trigger analytics without querying the primary database.
type MintCompletedEvent struct {
	MintIndex        uint32 `json:"mint_index"`
	Wallet           string `json:"wallet"`
	MintAddress      string `json:"mint_address"`
	MintSignature    string `json:"mint_signature"`
	PaymentSignature string `json:"payment_signature"`
	Verified         bool   `json:"verified"`
	Filename         string `json:"filename"`
	CompletedAt      string `json:"completed_at"`
}

// RefundQueuedEvent is published when a compensating refund entry is
// created, either because a paid mint failed or because a user filed a
// refund request.  Consumers drive the actual refund transfer.
type RefundQueuedEvent struct {
	RefundID         uint64 `json:"refund_id"`
	MintIndex        uint32 `json:"mint_index"`
	Wallet           string `json:"wallet"`
	PaymentSignature string `json:"payment_signature"`
	AmountLamports   uint64 `json:"amount_lamports"`
	Reason           string `json:"reason"`
	QueuedAt         string `json:"queued_at"`
}
