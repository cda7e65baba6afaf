package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/smartwallet/smartwallet/internal/funding"
)

// RegisterFundingRoutes wires top-up endpoints.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
	r.Post("/topups", h.TopUp)
}
