package ledger

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes ledger HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type balanceResponse struct {
	WalletBalance
	Display string `json:"display"`
}

// Balance returns the wallet balance, seeding it on first access.
func (h *Handler) Balance(c *fiber.Ctx) error {
	b, err := h.service.GetBalance(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(balanceResponse{
		WalletBalance: b,
		Display:       h.service.FormatCurrency(b.Amount, b.Currency),
	})
}

// Transactions lists every transaction, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	txs, err := h.service.GetTransactions(c.UserContext())
	if err != nil {
		return err
	}
	SortByEffective(txs)
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"transactions": txs,
		"count":        len(txs),
	})
}

// Transaction returns a single transaction by id.
func (h *Handler) Transaction(c *fiber.Ctx) error {
	tx, err := h.service.GetTransaction(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(tx)
}

// Confirm settles a pending transaction as successful.
func (h *Handler) Confirm(c *fiber.Ctx) error {
	tx, err := h.service.ConfirmTransaction(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(tx)
}

// Fail settles a pending transaction as failed.
func (h *Handler) Fail(c *fiber.Ctx) error {
	tx, err := h.service.FailTransaction(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(tx)
}

// Clear wipes the wallet. The next read reseeds it.
func (h *Handler) Clear(c *fiber.Ctx) error {
	if err := h.service.ClearAll(c.UserContext()); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Reconcile compares the balance against the transaction history.
func (h *Handler) Reconcile(c *fiber.Ctx) error {
	r, err := h.service.Reconcile(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"balanced":       r.Balanced(),
		"reconciliation": r,
	})
}
