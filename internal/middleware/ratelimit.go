package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimit caps calls per actor per minute on a route using a Redis counter.
// Without Redis, or when Redis errors, requests pass through.
func RateLimit(cache redis.UniversalClient, name string, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		caller := ActorFrom(c).String()
		if caller == "" {
			caller = c.IP()
		}
		key := "reserve:rl:" + name + ":" + caller
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many "+name+" requests, try again later")
		}
		return c.Next()
	}
}
