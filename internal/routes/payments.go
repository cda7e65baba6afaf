package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/smartwallet/smartwallet/internal/payments"
)

// RegisterPaymentRoutes wires payment endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler) {
	r.Post("/payments/bills", h.Pay)
	r.Post("/payments/transfers", h.Transfer)
	r.Post("/payments/qris", h.QRIS)
}
