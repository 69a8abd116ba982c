package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/altiro-cl/dte-api/internal/application/dte"
	"github.com/altiro-cl/dte-api/internal/application/dto"
)

// SobreHandler maneja la agregación, despacho y consulta de sobres (protegido).
type SobreHandler struct {
	aggregator *dte.SobreAggregator
	dispatcher *dte.EnvioDispatcher
	resolver   *dte.StatusResolver
}

// NewSobreHandler construye el handler.
func NewSobreHandler(aggregator *dte.SobreAggregator, dispatcher *dte.EnvioDispatcher, resolver *dte.StatusResolver) *SobreHandler {
	return &SobreHandler{aggregator: aggregator, dispatcher: dispatcher, resolver: resolver}
}

// Aggregate agrupa folios ya generados en un sobre de envío.
// POST /api/sobre/:empresaID
func (h *SobreHandler) Aggregate(c *fiber.Ctx) error {
	empresaID, ok := empresaParam(c)
	if !ok {
		return nil
	}
	var in dto.GenerateSobreRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	caratula := dte.Caratula{
		RutEmisor:   in.Caratula.RutEmisor,
		RutEnvia:    in.Caratula.RutEnvia,
		RutReceptor: in.Caratula.RutReceptor,
		FchResol:    in.Caratula.FchResol,
		NroResol:    in.Caratula.NroResol,
	}
	env, err := h.aggregator.Aggregate(c.Context(), empresaID, in.Folios, caratula)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SobreResponse{
		SobreID: env.ID,
		XMLURL:  env.XMLURL,
		Folios:  env.Folios,
		Estado:  env.Estado,
	})
}

// Dispatch despacha uno o más sobres ya generados al SII.
// POST /api/sobre/:empresaID/enviar
//
// Cada sobre se envía de forma independiente; el primer fallo corta la
// operación y los sobres ya enviados conservan su track ID registrado.
func (h *SobreHandler) Dispatch(c *fiber.Ctx) error {
	empresaID, ok := empresaParam(c)
	if !ok {
		return nil
	}
	var in dto.EnviarSobreRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if len(in.SobresDocumentIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "sobres_document_ids no puede estar vacío"})
	}

	results := make([]dto.EnviarSobreResponse, 0, len(in.SobresDocumentIDs))
	for _, sobreID := range in.SobresDocumentIDs {
		trackID, err := h.dispatcher.Dispatch(c.Context(), empresaID, sobreID)
		if err != nil {
			return respondError(c, err)
		}
		results = append(results, dto.EnviarSobreResponse{SobreID: sobreID, TrackID: trackID})
	}
	return c.JSON(results)
}

// Status consulta el estado de un envío ante el SII por su track ID.
// GET /api/sobre/:empresaID/:trackID
func (h *SobreHandler) Status(c *fiber.Ctx) error {
	empresaID, ok := empresaParam(c)
	if !ok {
		return nil
	}
	trackID := c.Params("trackID")
	if trackID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "trackID requerido"})
	}
	report, err := h.resolver.ResolveEnvioStatus(c.Context(), empresaID, trackID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(statusReportResponse(report))
}
