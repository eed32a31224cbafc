// handlers/queue.go
package handlers

import (
	"brawl-match-engine/middleware"
	"brawl-match-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupQueueRoutes(app *fiber.App, matchmaking *services.MatchmakingService) {
	// 🔐 All queue routes act on behalf of a player — player context required
	secured := app.Group("/queue", middleware.PlayerContextMiddleware())

	secured.Post("/join", matchmaking.JoinQueue)
	secured.Post("/leave", matchmaking.LeaveQueue)
	secured.Get("/poll", matchmaking.PollQueue)

	// 🔓 Ratings are public
	app.Get("/ratings/:address", matchmaking.GetRating)
}
