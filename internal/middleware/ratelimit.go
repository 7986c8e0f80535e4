package middleware

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"astrohub/internal/config"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Read endpoints (per IP) - mostly cache hits
	APIMax        int
	APIExpiration time.Duration

	// Chat (per IP) - every request reaches the completion service
	ChatMax        int
	ChatExpiration time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		// 120/min = 2 req/sec
		APIMax:        120,
		APIExpiration: 1 * time.Minute,

		// 20/min, completion quota is the scarce resource
		ChatMax:        20,
		ChatExpiration: 1 * time.Minute,
	}
}

// RateLimitConfigFrom applies configured overrides to the defaults
func RateLimitConfigFrom(cfg *config.Config) *RateLimitConfig {
	rl := DefaultRateLimitConfig()

	if cfg.RateLimitPerMin > 0 {
		rl.APIMax = cfg.RateLimitPerMin
	}
	if cfg.ChatRateLimitMin > 0 {
		rl.ChatMax = cfg.ChatRateLimitMin
	}

	// Development mode: more lenient limits
	if cfg.Environment == "development" {
		rl.APIMax = 1000
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed rate limits")
	}

	return rl
}

// APIRateLimiter limits read endpoints per client IP
func APIRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.APIMax,
		Expiration: config.APIExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "api:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] API limit reached for IP: %s on %s", c.IP(), c.Path())
			return tooManyRequests(c, config.APIExpiration)
		},
	})
}

// ChatRateLimiter limits chat requests per client IP
func ChatRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.ChatMax,
		Expiration: config.ChatExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "chat:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Chat limit reached for IP: %s", c.IP())
			return tooManyRequests(c, config.ChatExpiration)
		},
	})
}

func tooManyRequests(c *fiber.Ctx, window time.Duration) error {
	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())))
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"code":   "RATE_LIMITED",
		"detail": "Too many requests. Please slow down.",
	})
}
