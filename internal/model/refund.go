package model

import "time"

// Refund lifecycle status values.  A refund entry is queued by the
// completion path or by a user request, picked up by the notifier worker,
// and finally marked processed by an operator.
const (
	RefundQueued    = "queued"
	RefundNotified  = "notified"
	RefundProcessed = "processed"
)

// Refund reasons.  mint_failed entries are compensating records created
// automatically when payment landed but minting did not; user_requested
// entries come through the public refund endpoint.
const (
	ReasonMintFailed    = "mint_failed"
	ReasonUserRequested = "user_requested"
)

// RefundRequest is a compensating-transaction record: the payment on chain
// cannot be undone by this system, so a failed mint is answered by queueing
// a refund for an operator (or downstream consumer) to execute.
type RefundRequest struct {
	ID                 uint64    // refund_queue.id
	MintIndex          uint32    // refund_queue.mint_index
	Wallet             string    // refund_queue.wallet
	PaymentTxSignature string    // refund_queue.payment_tx_signature
	AmountLamports     uint64    // refund_queue.amount_lamports
	Reason             string    // refund_queue.reason
	Detail             string    // refund_queue.detail (free text from the requester or the error)
	ContactInfo        *string   // refund_queue.contact_info (nullable)
	Status             string    // refund_queue.status
	CreatedAt          time.Time // refund_queue.created_at
	UpdatedAt          time.Time // refund_queue.updated_at
}
