package handlers

import (
	"errors"
	"strconv"

	"bikey/internal/app"
	ridesController "bikey/internal/controllers/rides"
	"bikey/internal/logger"
	"bikey/internal/repositories"

	"github.com/gofiber/fiber/v2"
)

type RidesHandler struct {
	Handler
	ridesController ridesController.RidesControllerInterface
}

func NewRidesHandler(app app.App, router fiber.Router) *RidesHandler {
	log := logger.New("handlers").File("rides_handler")
	return &RidesHandler{
		ridesController: app.Controllers.Rides,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *RidesHandler) Register() {
	rides := h.router.Group("/rides", h.middleware.RequireToken())
	rides.Get("", h.listRides)
	rides.Get("/:id", h.getRide)
	rides.Get("/:id/summary", h.getSummary)
	rides.Delete("/:id", h.deleteRide)
}

func (h *RidesHandler) listRides(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", repositories.DEFAULT_RIDE_PAGE_SIZE)
	offset := c.QueryInt("offset", 0)

	rides, err := h.ridesController.ListRides(c.UserContext(), limit, offset)
	if err != nil {
		return h.rideError(c, "listRides", err)
	}

	return c.JSON(fiber.Map{
		"rides":  rides,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *RidesHandler) getRide(c *fiber.Ctx) error {
	id, err := rideID(c)
	if err != nil {
		return h.rideError(c, "getRide", err)
	}

	detail, err := h.ridesController.GetRide(c.UserContext(), id)
	if err != nil {
		return h.rideError(c, "getRide", err)
	}

	return c.JSON(detail)
}

func (h *RidesHandler) getSummary(c *fiber.Ctx) error {
	id, err := rideID(c)
	if err != nil {
		return h.rideError(c, "getSummary", err)
	}

	summary, err := h.ridesController.GetSummary(c.UserContext(), id)
	if err != nil {
		return h.rideError(c, "getSummary", err)
	}

	return c.JSON(fiber.Map{"summary": summary})
}

func (h *RidesHandler) deleteRide(c *fiber.Ctx) error {
	id, err := rideID(c)
	if err != nil {
		return h.rideError(c, "deleteRide", err)
	}

	if err := h.ridesController.DeleteRide(c.UserContext(), id); err != nil {
		return h.rideError(c, "deleteRide", err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *RidesHandler) rideError(c *fiber.Ctx, operation string, err error) error {
	switch {
	case errors.Is(err, ridesController.ErrInvalidID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, repositories.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Ride not found",
		})
	default:
		h.log.TraceFromContext(c.UserContext()).Function(operation).Er("ride request failed", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load ride",
		})
	}
}

func rideID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, ridesController.ErrInvalidID
	}
	return id, nil
}
