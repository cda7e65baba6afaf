package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes adds liveness/readiness style endpoints. Backends that
// are not configured report "disabled".
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		dbStatus := "disabled"
		redisStatus := "disabled"
		stateStatus := "ok"

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if d.DB != nil {
			dbStatus = "ok"
			if err := d.DB.Ping(ctx); err != nil {
				dbStatus = err.Error()
			}
		}
		if d.Cache != nil {
			redisStatus = "ok"
			if err := d.Cache.Ping(ctx).Err(); err != nil {
				redisStatus = err.Error()
			}
		}
		if d.Provider != nil {
			if snap := d.Provider.Snapshot(); snap.Failed() {
				stateStatus = snap.Error
			} else if snap.Loading {
				stateStatus = "loading"
			}
		}

		status := http.StatusOK
		for _, s := range []string{dbStatus, redisStatus} {
			if s != "ok" && s != "disabled" {
				status = http.StatusServiceUnavailable
			}
		}
		if stateStatus != "ok" && stateStatus != "loading" {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status": fiber.Map{
				"postgres":     dbStatus,
				"redis":        redisStatus,
				"wallet_state": stateStatus,
			},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
