package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/altiro-cl/dte-api/internal/application/dto"
	"github.com/altiro-cl/dte-api/internal/domain"
)

// respondError mapea errores de dominio a respuestas HTTP.
//
//	ErrValidation → 400, ErrNotFound → 404, ErrConflict → 409
//	UpstreamError → 502 (o 504 si fue transporte), preservando el diagnóstico verbatim
//	resto → 500
//
// Los fallos parciales de la generación no pasan por aquí: el handler de
// DTE los responde con su propio payload.
func respondError(c *fiber.Ctx, err error) error {
	var uerr *domain.UpstreamError
	if errors.As(err, &uerr) {
		status := fiber.StatusBadGateway
		if uerr.Kind == domain.KindUpstreamUnreachable {
			status = fiber.StatusGatewayTimeout
		}
		return c.Status(status).JSON(dto.ErrorResponse{Code: string(uerr.Kind), Message: uerr.Error()})
	}
	switch {
	case errors.Is(err, domain.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
