package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/MagnunAVF/shinyid/internal/logger"
	"github.com/MagnunAVF/shinyid/internal/snowflake"
)

// NewIDApp builds the id-service app around gen.
func NewIDApp(gen *snowflake.Generator, l *slog.Logger) *fiber.App {
	app := newFiber(l)
	app.Get("/new-id", func(c *fiber.Ctx) error {
		id, err := gen.Next()
		if err != nil {
			logger.FromContext(c.UserContext()).Error("Failed to generate ID", "err", err)
			return jsonError(c, fiber.StatusInternalServerError, "Failed to generate ID")
		}
		return c.JSON(codecResponse{ID: id.Uint64(), Shiny: id.String()})
	})
	return app
}
