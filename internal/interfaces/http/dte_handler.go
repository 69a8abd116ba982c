package http

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/altiro-cl/dte-api/internal/application/dte"
	"github.com/altiro-cl/dte-api/internal/application/dto"
	"github.com/altiro-cl/dte-api/internal/domain"
	"github.com/altiro-cl/dte-api/internal/domain/entity"
)

// DTEHandler maneja la generación y consulta de guías de despacho (protegido).
type DTEHandler struct {
	pipeline *dte.GenerationPipeline
	resolver *dte.StatusResolver
}

// NewDTEHandler construye el handler.
func NewDTEHandler(pipeline *dte.GenerationPipeline, resolver *dte.StatusResolver) *DTEHandler {
	return &DTEHandler{pipeline: pipeline, resolver: resolver}
}

// Generate ejecuta el ciclo completo de generación de una guía.
// POST /api/dte/:empresaID
//
// Un fallo parcial (XML generado pero timbre o PDF fallidos) responde 200
// con estado PDF_FALLIDO, la URL del XML y el código del error: el caller
// decide si re-ensobra con el XML o reintenta la generación.
func (h *DTEHandler) Generate(c *fiber.Ctx) error {
	empresaID, ok := empresaParam(c)
	if !ok {
		return nil
	}
	var in dto.GenerateGuiaRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}

	result, err := h.pipeline.Generate(c.Context(), empresaID, in)
	if err != nil {
		var partial *domain.PartialFailure
		if errors.As(err, &partial) {
			return c.JSON(dto.GenerateGuiaResponse{
				Folio:     in.Documento.Encabezado.IdentificacionDTE.Folio,
				Estado:    entity.EstadoPDFFallido,
				XMLURL:    partial.XMLURL,
				ErrorKind: string(partial.Err.Kind),
				Message:   partial.Err.Error(),
			})
		}
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.GenerateGuiaResponse{
		Folio:  result.Document.Folio,
		Estado: result.Document.Estado,
		XMLURL: result.XMLURL,
		PDFURL: result.PDFURL,
	})
}

// Validate valida el XML de un folio contra el validador del gateway.
// GET /api/dte/:empresaID/:folio/validar
func (h *DTEHandler) Validate(c *fiber.Ctx) error {
	empresaID, ok := empresaParam(c)
	if !ok {
		return nil
	}
	folio, err := strconv.Atoi(c.Params("folio"))
	if err != nil || folio <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "folio inválido"})
	}
	report, err := h.resolver.ResolveDocumentValidation(c.Context(), empresaID, folio)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(statusReportResponse(report))
}

// ConsultarEstado consulta el estado de aceptación de un documento por sus
// atributos declarados.
// GET /api/dte/:empresaID/consultar-estado?rut_receptor=...&folio=...&monto=...&fecha_dte=...
func (h *DTEHandler) ConsultarEstado(c *fiber.Ctx) error {
	empresaID, ok := empresaParam(c)
	if !ok {
		return nil
	}
	var in dto.ConsultarEstadoDTERequest
	if err := c.QueryParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "query inválida"})
	}
	if in.Folio <= 0 || in.RutReceptor == "" || in.FechaDTE == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "rut_receptor, folio y fecha_dte son obligatorios"})
	}
	consulta := dte.ConsultaEstadoDTE{
		RutReceptor: in.RutReceptor,
		Folio:       in.Folio,
		Monto:       in.Monto,
		FechaDTE:    in.FechaDTE,
		TipoDTE:     in.TipoDTE,
		Ambiente:    in.Ambiente,
	}
	report, err := h.resolver.ResolveDocumentStatus(c.Context(), empresaID, consulta)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(statusReportResponse(report))
}

func statusReportResponse(r *dte.StatusReport) dto.StatusReportResponse {
	return dto.StatusReportResponse{
		StatusCode: r.StatusCode,
		Reason:     r.Reason,
		Text:       r.Body,
		Estado:     r.Estado,
		Glosa:      r.Glosa,
	}
}
