// Package chain wraps the Solana RPC surface the reservation protocol
// needs: building the unsigned payment transfer, checking that a payment
// landed, and minting the token once payment is confirmed.  Everything
// here talks to external infrastructure; the protocol logic lives in the
// mint package and sees only interfaces.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/solara-labs/mint-reservation/internal/mint"
)

// Client bundles the RPC connection with the payment parameters.  It is
// constructed once per process and shared; the underlying rpc.Client is
// safe for concurrent use.
type Client struct {
	rpc           *rpc.Client
	seller        solana.PublicKey
	priceLamports uint64
}

// NewClient dials nothing (the RPC client is lazy) but validates the
// seller address up front so a misconfigured deployment fails at startup
// rather than on the first purchase.
func NewClient(endpoint, sellerPubkey string, priceLamports uint64) (*Client, error) {
	seller, err := solana.PublicKeyFromBase58(sellerPubkey)
	if err != nil {
		return nil, fmt.Errorf("invalid seller public key: %w", err)
	}
	return &Client{
		rpc:           rpc.New(endpoint),
		seller:        seller,
		priceLamports: priceLamports,
	}, nil
}

// RPC exposes the underlying client for the minter.
func (c *Client) RPC() *rpc.Client { return c.rpc }

// PaymentStatus checks whether the payment transaction is present on
// chain at confirmed commitment and free of execution error.  Maps the
// outcome onto the protocol's error taxonomy: nil means paid,
// mint.ErrPaymentNotFound means absent or unconfirmed, and
// mint.ErrPaymentFailed means present but failed.
func (c *Client) PaymentStatus(ctx context.Context, signature string) error {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("%w: malformed signature", mint.ErrPaymentNotFound)
	}
	maxVer := uint64(0)
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVer,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return mint.ErrPaymentNotFound
		}
		return err
	}
	if out == nil {
		return mint.ErrPaymentNotFound
	}
	if out.Meta != nil && out.Meta.Err != nil {
		return fmt.Errorf("%w: %v", mint.ErrPaymentFailed, out.Meta.Err)
	}
	return nil
}

// confirmSignature polls signature statuses until the transaction reaches
// confirmed (or finalized) commitment, the transaction errors, or the
// context expires.  The RPC has no blocking confirm call, so a modest
// poll interval is the accepted pattern.
func (c *Client) confirmSignature(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err == nil && out != nil && len(out.Value) > 0 && out.Value[0] != nil {
			st := out.Value[0]
			if st.Err != nil {
				return fmt.Errorf("transaction %s failed: %v", sig, st.Err)
			}
			if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirming %s: %w", sig, ctx.Err())
		case <-ticker.C:
		}
	}
}
