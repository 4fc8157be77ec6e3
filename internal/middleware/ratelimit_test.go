package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func TestRateLimitPerActor(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New()
	app.Post("/purge", Actor(), RateLimit(cache, "purge", 2), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	call := func(actor string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/purge", nil)
		req.Header.Set(actorHeader, actor)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		return resp.StatusCode
	}

	for i := range 2 {
		if status := call("admin"); status != fiber.StatusOK {
			t.Fatalf("call %d: expected 200 got %d", i, status)
		}
	}
	if status := call("admin"); status != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", status)
	}
	if status := call("other"); status != fiber.StatusOK {
		t.Fatalf("other actor must not be limited, got %d", status)
	}

	mr.FastForward(61 * time.Second)
	if status := call("admin"); status != fiber.StatusOK {
		t.Fatalf("limit must reset after a minute, got %d", status)
	}
}

func TestRateLimitWithoutRedis(t *testing.T) {
	app := fiber.New()
	app.Post("/purge", RateLimit(nil, "purge", 1), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	for range 3 {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/purge", nil))
		if err != nil || resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected pass-through, got %v %v", resp, err)
		}
	}
}
