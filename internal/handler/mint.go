package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/labstack/echo/v4"

	"github.com/solara-labs/mint-reservation/internal/mint"
	"github.com/solara-labs/mint-reservation/internal/repository"
)

// MintHandler exposes the reservation protocol over HTTP: purchase
// (acquire a slot and get the unsigned payment transaction), refresh-lock
// (extend the lease while the wallet UI is open), and complete (verify
// payment and mint).  All protocol logic lives in the mint service; the
// handler binds JSON, validates wallet addresses, and maps the error
// taxonomy onto status codes.
type MintHandler struct {
	Service *mint.Service
}

// NewMintHandler constructs a MintHandler.  The service must be non-nil.
func NewMintHandler(svc *mint.Service) *MintHandler {
	if svc == nil {
		panic("nil service passed to NewMintHandler")
	}
	return &MintHandler{Service: svc}
}

// parseWallet validates a base58 wallet address.  The on-curve check
// rejects PDAs and garbage that happens to decode; a payment built for
// such an address could never be signed.
func parseWallet(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if !pk.IsOnCurve() {
		return solana.PublicKey{}, errors.New("address not on curve")
	}
	return pk, nil
}

// Purchase handles POST /v1/purchase.  It reserves one random available
// slot for the caller's wallet and returns the unsigned payment
// transaction with the lock token and its expiry.  A lost race returns
// 409 (re-request for a fresh pick); exhaustion returns 410 so clients
// stop retrying.
func (h *MintHandler) Purchase(c echo.Context) error {
	var body struct {
		Wallet string `json:"wallet"`
	}
	if err := c.Bind(&body); err != nil || body.Wallet == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "wallet is required"})
	}
	if _, err := parseWallet(body.Wallet); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid wallet address"})
	}

	res, err := h.Service.Acquire(c.Request().Context(), body.Wallet)
	if err != nil {
		switch {
		case errors.Is(err, mint.ErrNoSlots):
			return c.JSON(http.StatusGone, echo.Map{"error": err.Error()})
		case errors.Is(err, mint.ErrLockAcquisition):
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		default:
			c.Logger().Errorf("purchase failed: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to prepare purchase"})
		}
	}
	return c.JSON(http.StatusOK, res)
}

// refreshRequest is the lock-identification triple shared by RefreshLock
// and (embedded in completeRequest) CompleteMint.
type refreshRequest struct {
	Wallet    string  `json:"wallet"`
	MintIndex *uint32 `json:"mintIndex"`
	LockID    string  `json:"lockId"`
}

// completeRequest extends the triple with the submitted payment signature.
type completeRequest struct {
	refreshRequest
	PaymentTxID string `json:"paymentTxId"`
}

// RefreshLock handles POST /v1/refresh-lock.  It bumps the lease on a
// pending slot the caller owns.  The distinct 404/400/403 responses let
// the client tell "someone else's lock" from "already finalized".
func (h *MintHandler) RefreshLock(c echo.Context) error {
	var body refreshRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Wallet == "" || body.MintIndex == nil || body.LockID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "missing required parameters: wallet, mintIndex and lockId are all required",
		})
	}

	ts, err := h.Service.Refresh(c.Request().Context(), body.Wallet, *body.MintIndex, body.LockID)
	if err != nil {
		var stateErr *mint.InvalidLockStateError
		switch {
		case errors.Is(err, repository.ErrSlotNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lock not found"})
		case errors.As(err, &stateErr):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": stateErr.Error()})
		case errors.Is(err, mint.ErrLockMismatch):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "lock ID mismatch"})
		case errors.Is(err, mint.ErrWalletMismatch):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "wallet mismatch"})
		default:
			c.Logger().Errorf("refresh lock failed: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to refresh lock"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"message":   "lock refreshed successfully",
		"timestamp": ts.Format(time.RFC3339),
	})
}

// CompleteMint handles POST /v1/complete.  Given the submitted payment
// signature, it re-validates the lock, verifies the payment on chain,
// mints the token, and returns the mint address and signature.  Errors
// after payment confirmation carry the queued-refund notice in their
// message.
func (h *MintHandler) CompleteMint(c echo.Context) error {
	var body completeRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.PaymentTxID == "" || body.MintIndex == nil || body.LockID == "" || body.Wallet == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "missing required parameters: paymentTxId, mintIndex, lockId and wallet are all required",
		})
	}
	if _, err := parseWallet(body.Wallet); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid wallet address"})
	}

	res, err := h.Service.Complete(c.Request().Context(), body.PaymentTxID, *body.MintIndex, body.LockID, body.Wallet)
	if err != nil {
		var stateErr *mint.InvalidLockStateError
		switch {
		case errors.Is(err, repository.ErrSlotNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lock not found"})
		case errors.As(err, &stateErr):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": stateErr.Error()})
		case errors.Is(err, mint.ErrLockMismatch):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "lock ID mismatch"})
		case errors.Is(err, mint.ErrWalletMismatch):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "wallet mismatch"})
		case errors.Is(err, mint.ErrLockExpired):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "lock expired, request a new reservation"})
		case errors.Is(err, mint.ErrPaymentNotFound), errors.Is(err, mint.ErrPaymentFailed):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		default:
			// Post-payment failures: the message includes the refund notice
			// and is safe to surface.
			c.Logger().Errorf("complete mint failed: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, res)
}
