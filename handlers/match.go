// handlers/match.go
package handlers

import (
	"brawl-match-engine/middleware"
	"brawl-match-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMatchRoutes(app *fiber.App, matches *services.MatchService, events *services.EventService) {
	// 🔓 Read-only state and the event stream (SSE clients can't set headers)
	app.Get("/matches/:id", matches.GetMatch)
	app.Get("/events/stream", events.StreamChannelSSE)

	// 🔐 Mutations require player context
	secured := app.Group("/matches", middleware.PlayerContextMiddleware())

	secured.Post("/:id/ready", matches.ReadyHandler)
	secured.Post("/:id/moves", matches.SubmitMoveHandler)
	secured.Post("/:id/surge", matches.SubmitSurgeHandler)
	secured.Post("/:id/forfeit", matches.ForfeitHandler)
	secured.Post("/:id/disconnect", matches.DisconnectHandler)
	secured.Post("/:id/reconnect", matches.ReconnectHandler)
}
