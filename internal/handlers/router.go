package handlers

import (
	"bikey/internal/app"
	"bikey/internal/handlers/middleware"
	"bikey/internal/logger"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	middleware middleware.Middleware
	log        logger.Logger
	router     fiber.Router
}

func Router(router fiber.Router, app *app.App) (err error) {
	router.Use(app.Middleware.TraceID())
	WebSocketHandler(router, app.Websocket)

	api := router.Group("/api")
	HealthHandler(api, app.Config)
	NewImportsHandler(*app, api).Register()
	NewRidesHandler(*app, api).Register()

	return nil
}
