// Package api holds the fiber apps of the api-service and the id-service.
package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/MagnunAVF/shinyid/internal"
	"github.com/MagnunAVF/shinyid/internal/logger"
	"github.com/MagnunAVF/shinyid/pkg/shiny"
)

type Records interface {
	CreateRecord(ctx context.Context, rec *internal.Record) error
	FindRecord(ctx context.Context, code string) (*internal.Record, error)
	Stats(ctx context.Context, code string) (*internal.LookupStats, error)
}

type IDSource interface {
	NextID(ctx context.Context) (uint64, error)
}

type LookupPublisher interface {
	PublishLookup(ctx context.Context, ev internal.LookupEvent) error
}

type Deps struct {
	Records Records
	IDs     IDSource
	Events  LookupPublisher
	Logger  *slog.Logger
	Now     func() time.Time
}

type server struct {
	records Records
	ids     IDSource
	events  LookupPublisher
	now     func() time.Time
}

func newFiber(l *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(requestid.New())
	app.Use(recover.New())
	app.Use(logger.FiberMiddleware(l))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

// NewApp builds the api-service app.
func NewApp(d Deps) *fiber.App {
	s := &server{records: d.Records, ids: d.IDs, events: d.Events, now: d.Now}
	if s.now == nil {
		s.now = time.Now
	}

	app := newFiber(d.Logger)
	app.Use(cors.New())

	app.Get("/encode/:id", handleEncode)
	app.Get("/decode/:shiny", handleDecode)
	app.Get("/validate/:shiny", handleValidate)

	app.Post("/ids", s.handleCreate)
	app.Get("/ids/:shiny", s.handleLookup)
	app.Get("/stats/:shiny", s.handleStats)

	return app
}

func jsonError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// codecError answers a failed shiny.Decode.
func codecError(c *fiber.Ctx, err error) error {
	if errors.Is(err, shiny.ErrOutOfRange) {
		return jsonError(c, fiber.StatusUnprocessableEntity, "Shiny is out of range")
	}
	return jsonError(c, fiber.StatusBadRequest, "Input must be a valid shiny")
}
