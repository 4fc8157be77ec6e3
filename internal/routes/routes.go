package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/reserve/internal/access"
	"github.com/congo-pay/reserve/internal/account"
	"github.com/congo-pay/reserve/internal/config"
	"github.com/congo-pay/reserve/internal/currency"
	"github.com/congo-pay/reserve/internal/ledger"
	"github.com/congo-pay/reserve/internal/middleware"
	"github.com/congo-pay/reserve/internal/notification"
	"github.com/congo-pay/reserve/internal/purge"
)

// purgePerMinute caps purge sweeps per actor.
const purgePerMinute = 2

// Pinger reports backend health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) map[string]string
}

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg       config.Config
	Registry  *currency.Registry
	Persister account.Persister
	// Cache enables idempotency and rate limiting when set.
	Cache  redis.UniversalClient
	Health Pinger
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d.Health)

	store := account.NewMemoryStore(d.Persister)
	notifier := notification.NewLoggerNotifier(d.Logger)
	engine := ledger.NewEngine(store, d.Registry, access.NewAccessorPolicy(store), notifier, d.Logger)
	coordinator := purge.NewCoordinator(store, notifier, d.Logger, d.Cfg.PurgeWorkers)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"name":       ledger.Name,
			"version":    ledger.Version,
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	RegisterCurrencyRoutes(api, currency.NewHandler(d.Registry))

	protected := api.Group("", middleware.Actor())
	var idem, limit fiber.Handler = passThrough, passThrough
	if d.Cache != nil {
		idem = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
		limit = middleware.RateLimit(d.Cache, "purge", purgePerMinute)
	}
	RegisterLedgerRoutes(protected, ledger.NewHandler(engine), idem)
	admins := make([]account.ID, 0, len(d.Cfg.AdminActors))
	for _, raw := range d.Cfg.AdminActors {
		id, err := account.ParseID(raw)
		if err != nil {
			return fmt.Errorf("admin actor %q: %w", raw, err)
		}
		admins = append(admins, id)
	}
	RegisterPurgeRoutes(protected, purge.NewHandler(coordinator), middleware.RequireActors(admins...), limit)

	return nil
}

func passThrough(c *fiber.Ctx) error {
	return c.Next()
}
