package api

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/MagnunAVF/shinyid/internal"
	"github.com/MagnunAVF/shinyid/internal/logger"
	"github.com/MagnunAVF/shinyid/internal/store"
	"github.com/MagnunAVF/shinyid/pkg/shiny"
)

func (s *server) handleCreate(c *fiber.Ctx) error {
	var req struct {
		Label string `json:"label"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request")
	}
	label := strings.TrimSpace(req.Label)
	if label == "" {
		return jsonError(c, fiber.StatusBadRequest, "Label cannot be empty")
	}

	ctx := c.UserContext()
	log := logger.FromContext(ctx)

	id, err := s.ids.NextID(ctx)
	if err != nil {
		log.Error("Error getting new ID", "err", err)
		return jsonError(c, fiber.StatusInternalServerError, "Could not generate ID")
	}
	if id > math.MaxInt64 {
		log.Error("ID does not fit the records table", "id", id)
		return jsonError(c, fiber.StatusInternalServerError, "Could not generate ID")
	}

	rec := internal.Record{
		ID:        int64(id),
		Shiny:     shiny.Encode(id),
		Label:     label,
		CreatedAt: s.now().UTC(),
	}
	if err := s.records.CreateRecord(ctx, &rec); err != nil {
		log.Error("Error creating record", "shiny", rec.Shiny, "err", err)
		return jsonError(c, fiber.StatusInternalServerError, "Could not save record")
	}

	return c.Status(fiber.StatusCreated).JSON(rec)
}

// canonicalParam decodes the :shiny parameter and re-encodes it, so
// "AAH0" and "H0" name the same record.
func canonicalParam(c *fiber.Ctx) (string, error) {
	id, err := shiny.Decode(c.Params("shiny"))
	if err != nil {
		return "", err
	}
	return shiny.Encode(id), nil
}

func (s *server) handleLookup(c *fiber.Ctx) error {
	code, err := canonicalParam(c)
	if err != nil {
		return codecError(c, err)
	}

	ctx := c.UserContext()
	rec, err := s.records.FindRecord(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return jsonError(c, fiber.StatusNotFound, "Shiny not found")
	} else if err != nil {
		logger.FromContext(ctx).Error("Error finding record", "shiny", code, "err", err)
		return jsonError(c, fiber.StatusInternalServerError, "Database error")
	}

	userAgent := utils.CopyString(c.Get(fiber.HeaderUserAgent))
	if userAgent == "" {
		userAgent = "Unknown"
	}
	ev := internal.LookupEvent{Shiny: code, Timestamp: s.now().UTC(), UserAgent: userAgent}
	go s.publish(context.WithoutCancel(ctx), ev)

	return c.JSON(rec)
}

func (s *server) publish(ctx context.Context, ev internal.LookupEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishLookup(ctx, ev); err != nil {
		logger.FromContext(ctx).Error("Error publishing lookup event", "shiny", ev.Shiny, "err", err)
	}
}

func (s *server) handleStats(c *fiber.Ctx) error {
	code, err := canonicalParam(c)
	if err != nil {
		return codecError(c, err)
	}

	ctx := c.UserContext()
	st, err := s.records.Stats(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return jsonError(c, fiber.StatusNotFound, "No lookups recorded")
	} else if err != nil {
		logger.FromContext(ctx).Error("Error reading stats", "shiny", code, "err", err)
		return jsonError(c, fiber.StatusInternalServerError, "Database error")
	}
	return c.JSON(st)
}
