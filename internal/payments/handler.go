package payments

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/smartwallet/smartwallet/internal/ledger"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type paymentResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	Amount        string `json:"amount"`
	Display       string `json:"display"`
}

func toResponse(tx ledger.Transaction) paymentResponse {
	return paymentResponse{
		TransactionID: tx.ID,
		Status:        string(tx.Status),
		Description:   tx.Description,
		Category:      tx.Category,
		Amount:        tx.Amount.String(),
		Display:       ledger.FormatCurrency(tx.Amount, ledger.DefaultCurrency),
	}
}

// Pay processes a bill payment.
func (h *Handler) Pay(c *fiber.Ctx) error {
	var req PayInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.Pay(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toResponse(tx))
}

// Transfer processes a transfer to a bank account or e-wallet.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req TransferInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.Transfer(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toResponse(tx))
}

// QRIS pays a merchant. An empty body pays the simulated scan result.
func (h *Handler) QRIS(c *fiber.Ctx) error {
	req := DemoQRIS
	if len(c.Body()) > 0 {
		req = QRISInput{}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	tx, err := h.service.PayQRIS(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toResponse(tx))
}
