package walletstate

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/smartwallet/smartwallet/internal/ledger"
)

// Handler serves the derived wallet views used by the home and history screens.
type Handler struct {
	provider *Provider
	loc      *time.Location
}

// NewHandler builds a handler that groups history by day in loc. A nil loc
// selects UTC.
func NewHandler(provider *Provider, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{provider: provider, loc: loc}
}

type snapshotResponse struct {
	Snapshot
	Recent []ledger.Transaction `json:"recent"`
	Totals Totals               `json:"totals"`
}

// Snapshot returns the current wallet state with the recent list and totals.
// A failed provider answers 503 with the error message.
func (h *Handler) Snapshot(c *fiber.Ctx) error {
	snap := h.provider.Snapshot()
	status := http.StatusOK
	if snap.Failed() {
		status = http.StatusServiceUnavailable
	}
	return c.Status(status).JSON(snapshotResponse{
		Snapshot: snap,
		Recent:   snap.Recent(c.QueryInt("limit", DefaultRecentLimit)),
		Totals:   snap.Totals(),
	})
}

// History returns the filtered history grouped by day. Query parameters are
// q for a case-insensitive description search and direction (all, in, out).
func (h *Handler) History(c *fiber.Ctx) error {
	snap := h.provider.Snapshot()
	if snap.Failed() {
		return fiber.NewError(http.StatusServiceUnavailable, snap.Error)
	}

	dir := Direction(c.Query("direction", string(DirectionAll)))
	switch dir {
	case DirectionAll, DirectionIn, DirectionOut:
	default:
		return fiber.NewError(http.StatusBadRequest, "direction must be one of all, in, out")
	}

	filtered := snap.Filter(c.Query("q"), dir)
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"loading": snap.Loading,
		"count":   len(filtered),
		"groups":  GroupByDay(filtered, h.loc),
	})
}
