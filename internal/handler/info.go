package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/solara-labs/mint-reservation/internal/model"
	"github.com/solara-labs/mint-reservation/internal/repository"
)

// InfoHandler serves the public supply endpoints: current mint price and
// minted/available counts.  Both sit behind the response cache since the
// answers change at most once per completed mint.
type InfoHandler struct {
	Slots *repository.SlotRepo
	Price uint64
}

// NewInfoHandler constructs an InfoHandler.
func NewInfoHandler(slots *repository.SlotRepo, price uint64) *InfoHandler {
	if slots == nil {
		panic("nil repository passed to NewInfoHandler")
	}
	return &InfoHandler{Slots: slots, Price: price}
}

// GetMintPrice handles GET /v1/mint/price.
func (h *InfoHandler) GetMintPrice(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"price_lamports": h.Price,
		"price_sol":      float64(h.Price) / 1e9,
		"currency":       "SOL",
	})
}

// GetMintedCount handles GET /v1/mint/count.  It reports slot counts by
// status; "minted" includes only completed slots, while pending and
// failed are broken out so dashboards can watch for stuck reservations.
func (h *InfoHandler) GetMintedCount(c echo.Context) error {
	counts, err := h.Slots.CountByStatus(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load mint counts"})
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return c.JSON(http.StatusOK, echo.Map{
		"total":     total,
		"minted":    counts[model.SlotCompleted],
		"available": counts[model.SlotAvailable],
		"pending":   counts[model.SlotPending],
		"failed":    counts[model.SlotMintFailed],
	})
}
