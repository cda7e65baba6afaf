package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/smartwallet/smartwallet/internal/config"
	"github.com/smartwallet/smartwallet/internal/funding"
	"github.com/smartwallet/smartwallet/internal/ledger"
	"github.com/smartwallet/smartwallet/internal/logging"
	"github.com/smartwallet/smartwallet/internal/middleware"
	"github.com/smartwallet/smartwallet/internal/payments"
	"github.com/smartwallet/smartwallet/internal/reconcile"
	"github.com/smartwallet/smartwallet/internal/walletstate"
)

// mutationsPerMinute caps money-moving requests per client when Redis is
// configured.
const mutationsPerMinute = 30

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg        config.Config
	Ledger     *ledger.Service
	Provider   *walletstate.Provider
	Funding    *funding.Service
	Payments   *payments.Service
	Reconciler *reconcile.Scheduler
	// DB and Cache are optional; health reports on the ones that are set.
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) {
	logger := logging.OrDiscard(d.Logger)

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(middleware.IdempotencyConfig{
			Cache:  d.Cache,
			TTL:    d.Cfg.IdempotencyTTL,
			Logger: logger,
		}))
	}

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.GetRequestID(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterWalletRoutes(api, ledger.NewHandler(d.Ledger), walletstate.NewHandler(d.Provider, nil), d.Reconciler)

	limited := api.Group("", middleware.RateLimit(d.Cache, "wallet", mutationsPerMinute, logger))
	RegisterFundingRoutes(limited, funding.NewHandler(d.Funding))
	RegisterPaymentRoutes(limited, payments.NewHandler(d.Payments))
}
