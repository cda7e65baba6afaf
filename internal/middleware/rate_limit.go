package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/smartwallet/smartwallet/internal/logging"
)

const rateLimitPrefix = "smartwallet:rl:"

// RateLimit caps unsafe requests per client IP and scope to maxPerMin in a
// fixed one-minute window. It is a no-op without Redis and fails open on
// cache errors.
func RateLimit(cache *redis.Client, scope string, maxPerMin int, logger *slog.Logger) fiber.Handler {
	logger = logging.OrDiscard(logger)
	if maxPerMin <= 0 {
		maxPerMin = 30
	}
	return func(c *fiber.Ctx) error {
		if cache == nil || c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead {
			return c.Next()
		}

		window := time.Now().Unix() / 60
		key := rateLimitPrefix + scope + ":" + c.IP() + ":" + strconv.FormatInt(window, 10)
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			logger.Warn("rate limit check failed", slog.String("scope", scope), slog.String("error", err.Error()))
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			c.Set(fiber.HeaderRetryAfter, "60")
			return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}
