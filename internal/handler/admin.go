package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/solara-labs/mint-reservation/internal/model"
	"github.com/solara-labs/mint-reservation/internal/repository"
	"github.com/solara-labs/mint-reservation/internal/utils"
)

// AdminHandler serves the operator endpoints: login, refund-queue
// inspection, and slot statistics.  The service has a single admin
// identity configured through the environment; there is no user table.
type AdminHandler struct {
	Slots     *repository.SlotRepo
	Refunds   *repository.RefundRepo
	User      string
	PassHash  string
	JWTSecret string
	TokenTTL  time.Duration
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(slots *repository.SlotRepo, refunds *repository.RefundRepo, user, passHash, secret string, tokenTTL time.Duration) *AdminHandler {
	if slots == nil || refunds == nil {
		panic("nil repository passed to NewAdminHandler")
	}
	return &AdminHandler{
		Slots:     slots,
		Refunds:   refunds,
		User:      user,
		PassHash:  passHash,
		JWTSecret: secret,
		TokenTTL:  tokenTTL,
	}
}

// Login handles POST /v1/auth/admin-login.  Credentials are compared
// against the configured admin user and bcrypt hash; a match issues a
// short-lived ADMIN token.  Both failure modes return the same 401 body
// so the endpoint does not confirm which half was wrong.
func (h *AdminHandler) Login(c echo.Context) error {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil || body.Username == "" || body.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username and password are required"})
	}
	if body.Username != h.User || !utils.VerifyPassword(h.PassHash, body.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	tok, err := utils.NewAdminToken(h.JWTSecret, h.User, h.TokenTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to issue token"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": tok.Token,
		"expires_at":   tok.Exp.Format(time.RFC3339),
	})
}

// ListRefunds handles GET /v1/admin/refunds.  The optional status query
// parameter filters the queue; it defaults to queued entries, which are
// the ones awaiting operator action.
func (h *AdminHandler) ListRefunds(c echo.Context) error {
	status := c.QueryParam("status")
	if status == "" {
		status = model.RefundQueued
	}
	switch status {
	case model.RefundQueued, model.RefundNotified, model.RefundProcessed:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}
	items, err := h.Refunds.ListByStatus(c.Request().Context(), status, 0)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load refunds"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// SlotStats handles GET /v1/admin/slots/stats, returning slot counts per
// status for operational dashboards.
func (h *AdminHandler) SlotStats(c echo.Context) error {
	counts, err := h.Slots.CountByStatus(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load slot stats"})
	}
	return c.JSON(http.StatusOK, echo.Map{"counts": counts})
}
