package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/smartwallet/smartwallet/internal/ledger"
	"github.com/smartwallet/smartwallet/internal/reconcile"
	"github.com/smartwallet/smartwallet/internal/walletstate"
)

// RegisterWalletRoutes wires balance, history and transaction lifecycle endpoints.
func RegisterWalletRoutes(r fiber.Router, h *ledger.Handler, state *walletstate.Handler, sched *reconcile.Scheduler) {
	w := r.Group("/wallet")
	w.Get("/", state.Snapshot)
	w.Get("/history", state.History)
	w.Get("/balance", h.Balance)
	w.Get("/transactions", h.Transactions)
	w.Get("/transactions/:id", h.Transaction)
	w.Post("/transactions/:id/confirm", h.Confirm)
	w.Post("/transactions/:id/fail", h.Fail)
	w.Delete("/", h.Clear)
	w.Post("/reconcile", h.Reconcile)

	if sched != nil {
		w.Get("/reconcile/last", func(c *fiber.Ctx) error {
			last, ok := sched.Last()
			if !ok {
				return fiber.NewError(http.StatusNotFound, "no reconciliation has run yet")
			}
			return c.Status(http.StatusOK).JSON(fiber.Map{
				"balanced":       last.Balanced(),
				"reconciliation": last,
			})
		})
	}
}
