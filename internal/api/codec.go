package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/MagnunAVF/shinyid/pkg/shiny"
)

type codecResponse struct {
	ID    uint64 `json:"id"`
	Shiny string `json:"shiny"`
}

func handleEncode(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Id must be an unsigned 64-bit integer")
	}
	return c.JSON(codecResponse{ID: id, Shiny: shiny.Encode(id)})
}

func handleDecode(c *fiber.Ctx) error {
	code := c.Params("shiny")
	id, err := shiny.Decode(code)
	if err != nil {
		return codecError(c, err)
	}
	return c.JSON(codecResponse{ID: id, Shiny: code})
}

func handleValidate(c *fiber.Ctx) error {
	code := c.Params("shiny")
	return c.JSON(fiber.Map{"shiny": code, "valid": shiny.IsValid(code)})
}
