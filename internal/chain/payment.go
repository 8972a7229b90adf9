package chain

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
)

// maxTransactionBytes is the network's hard limit on a serialized
// transaction (one IPv6 MTU minus headers).  Anything larger is
// unsubmittable, so the builder rejects it before the client ever sees it.
const maxTransactionBytes = 1232

// BuildPayment constructs the unsigned payment transaction: a native
// transfer of the configured price from the buyer to the seller, fee paid
// by the buyer, against a freshly fetched confirmed blockhash.  The
// result is base64 so it survives the JSON round trip to the wallet.
// Nothing is persisted here; the caller records the provisional payment
// id separately.
func (c *Client) BuildPayment(ctx context.Context, buyerWallet string) (string, error) {
	buyer, err := solana.PublicKeyFromBase58(buyerWallet)
	if err != nil {
		return "", fmt.Errorf("invalid wallet address: %w", err)
	}

	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return "", fmt.Errorf("fetching blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(c.priceLamports, buyer, c.seller).Build(),
		},
		recent.Value.Blockhash,
		solana.TransactionPayer(buyer),
	)
	if err != nil {
		return "", fmt.Errorf("building transfer: %w", err)
	}

	return encodeUnsigned(tx)
}

// encodeUnsigned serializes a transaction with placeholder signatures (the
// wallet fills them in client-side) and enforces the size bound.
func encodeUnsigned(tx *solana.Transaction) (string, error) {
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("serializing transaction: %w", err)
	}
	if len(raw) > maxTransactionBytes {
		return "", fmt.Errorf("transaction size exceeds limit: %d bytes", len(raw))
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
