package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/solara-labs/mint-reservation/internal/model"
	"github.com/solara-labs/mint-reservation/internal/repository"
)

// refundWindow bounds how long after a completed mint a user may still
// file a refund request.
const refundWindow = 48 * time.Hour

// RefundHandler serves the public refund-request endpoint.  Automatic
// refunds for failed mints are queued by the completion path; this
// handler covers the user-initiated case against a completed mint.
type RefundHandler struct {
	Slots   *repository.SlotRepo
	Refunds *repository.RefundRepo
	Price   uint64
}

// NewRefundHandler constructs a RefundHandler.
func NewRefundHandler(slots *repository.SlotRepo, refunds *repository.RefundRepo, price uint64) *RefundHandler {
	if slots == nil || refunds == nil {
		panic("nil repository passed to NewRefundHandler")
	}
	return &RefundHandler{Slots: slots, Refunds: refunds, Price: price}
}

// RequestRefund handles POST /v1/refunds.  The request must reference a
// completed mint belonging to the caller's wallet by its mint transaction
// signature, and must arrive within the refund window measured from the
// mint's completion.
func (h *RefundHandler) RequestRefund(c echo.Context) error {
	var body struct {
		Wallet      string `json:"wallet"`
		TxSignature string `json:"txSignature"`
		Reason      string `json:"reason"`
		ContactInfo string `json:"contactInfo"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Wallet == "" || body.TxSignature == "" || body.Reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "missing required fields: wallet, txSignature and reason are required",
		})
	}

	ctx := c.Request().Context()
	slot, err := h.Slots.GetCompletedByWalletAndSig(ctx, body.Wallet, body.TxSignature)
	if err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no matching mint record found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to look up mint record"})
	}
	if time.Now().UTC().Sub(slot.UpdatedAt) > refundWindow {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refund request time limit exceeded (48 hours)"})
	}

	paymentSig := ""
	if slot.PaymentTxSignature != nil {
		paymentSig = *slot.PaymentTxSignature
	}
	req := &model.RefundRequest{
		MintIndex:          slot.MintIndex,
		Wallet:             body.Wallet,
		PaymentTxSignature: paymentSig,
		AmountLamports:     h.Price,
		Reason:             model.ReasonUserRequested,
		Detail:             body.Reason,
	}
	if body.ContactInfo != "" {
		req.ContactInfo = &body.ContactInfo
	}
	if err := h.Refunds.Enqueue(ctx, req); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create refund request"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"message":   "refund request submitted successfully",
		"requestId": req.ID,
	})
}
