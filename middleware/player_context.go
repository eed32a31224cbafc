// middleware/player_context.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// PlayerContextMiddleware extracts the caller's wallet address from the
// X-Player-Address header set by the Gateway after signature verification
// and stores it in Locals for the handlers.
func PlayerContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		address := strings.TrimSpace(c.Get("X-Player-Address"))
		if address == "" {
			log.Printf("🚫 [PLAYER_CTX] Missing X-Player-Address for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "player address missing from request context",
			})
		}
		c.Locals("player_address", address)
		return c.Next()
	}
}
