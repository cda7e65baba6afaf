package funding

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/smartwallet/smartwallet/internal/ledger"
)

// Handler exposes HTTP endpoints for top-up flows.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// TopUp records a pending top-up. Settlement happens in the background; the
// response carries the time it is due.
func (h *Handler) TopUp(c *fiber.Ctx) error {
	var req TopUpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	job, err := h.service.TopUp(c.UserContext(), TopUpInput{
		Method:   req.Method,
		Provider: req.Provider,
		Amount:   req.Amount,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusAccepted).JSON(toResponse(job))
}

func toResponse(job *Job) TopUpResponse {
	tx := job.Transaction
	return TopUpResponse{
		TransactionID: tx.ID,
		Status:        string(tx.Status),
		Description:   tx.Description,
		Amount:        tx.Amount.String(),
		Display:       ledger.FormatCurrency(tx.Amount, ledger.DefaultCurrency),
		SettlesAt:     job.SettlesAt.UTC().Format(time.RFC3339Nano),
	}
}
