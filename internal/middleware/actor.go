package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/reserve/internal/account"
)

const (
	actorHeader = "X-Actor-ID"
	// ActorKey is the Locals key holding the resolved account.ID of the caller.
	ActorKey = "actor_id"
)

// Actor reads the already-resolved caller identity from the X-Actor-ID header
// and stores it under ActorKey. Requests without a valid actor are rejected.
func Actor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(actorHeader)
		if raw == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing "+actorHeader+" header")
		}
		id, err := account.ParseID(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		c.Locals(ActorKey, id)
		return c.Next()
	}
}

// RequireActors lets only the listed actors through; everyone else gets 403.
// It must run after Actor.
func RequireActors(allowed ...account.ID) fiber.Handler {
	set := make(map[account.ID]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	return func(c *fiber.Ctx) error {
		if _, ok := set[ActorFrom(c)]; !ok {
			return fiber.NewError(fiber.StatusForbidden, "actor not permitted")
		}
		return c.Next()
	}
}

// ActorFrom returns the actor stored by Actor, or the empty ID.
func ActorFrom(c *fiber.Ctx) account.ID {
	id, _ := c.Locals(ActorKey).(account.ID)
	return id
}
