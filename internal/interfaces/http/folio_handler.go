package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/altiro-cl/dte-api/internal/application/dte"
	"github.com/altiro-cl/dte-api/internal/application/dto"
	"github.com/altiro-cl/dte-api/internal/domain/entity"
)

// FolioHandler maneja las peticiones HTTP de folios (protegido).
type FolioHandler struct {
	allocator *dte.FolioAllocator
}

// NewFolioHandler construye el handler.
func NewFolioHandler(allocator *dte.FolioAllocator) *FolioHandler {
	return &FolioHandler{allocator: allocator}
}

// Allocate solicita un bloque de folios al SII para la empresa.
// POST /api/folios/:empresaID
func (h *FolioHandler) Allocate(c *fiber.Ctx) error {
	empresaID, ok := empresaParam(c)
	if !ok {
		return nil
	}
	var in dto.ObtainFoliosRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	rango, err := h.allocator.Allocate(c.Context(), empresaID, in.TipoDTE, in.Cantidad)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FoliosResponse{
		TipoDTE:  rango.TipoDTE,
		Desde:    rango.Desde,
		Hasta:    rango.Hasta,
		Cantidad: rango.Cantidad(),
	})
}

// Available consulta cuántos folios quedan disponibles para la empresa.
// GET /api/folios/:empresaID?tipo_dte=52
func (h *FolioHandler) Available(c *fiber.Ctx) error {
	empresaID, ok := empresaParam(c)
	if !ok {
		return nil
	}
	tipoDTE, _ := strconv.Atoi(c.Query("tipo_dte", "0"))
	if tipoDTE == 0 {
		tipoDTE = entity.TipoGuiaDespacho
	}
	n, err := h.allocator.AvailableCount(c.Context(), empresaID, tipoDTE)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.FoliosDisponiblesResponse{TipoDTE: tipoDTE, Disponibles: n})
}
