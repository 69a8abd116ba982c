package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound   = errors.New("recurso no encontrado")
	ErrValidation = errors.New("entrada inválida")
	ErrConflict   = errors.New("conflicto con el estado actual")
)

// ErrorKind clasificación local del fallo, adicional al diagnóstico upstream.
type ErrorKind string

const (
	// KindXMLGeneration el gateway rechazó la generación del XML del DTE.
	KindXMLGeneration ErrorKind = "XML_GENERATION_FAILED"
	// KindBarcode el gateway rechazó la generación del timbre (código de barras PDF417).
	KindBarcode ErrorKind = "BARCODE_FAILED"
	// KindPDFRender falló la composición o el render del PDF.
	KindPDFRender ErrorKind = "PDF_RENDER_FAILED"
	// KindUpstreamRejected el gateway respondió non-200 en una operación sin contrato parcial.
	KindUpstreamRejected ErrorKind = "UPSTREAM_REJECTED"
	// KindUpstreamUnreachable fallo de transporte; el orquestador puede reintentar.
	KindUpstreamUnreachable ErrorKind = "UPSTREAM_UNREACHABLE"
)

// UpstreamError conserva el diagnóstico del gateway tal cual se observó
// (status, reason y body verbatim) junto con la clasificación local.
// Nunca se reescribe el texto upstream: el caller decide qué hacer con él.
type UpstreamError struct {
	Kind       ErrorKind
	StatusCode int    // 0 si nunca hubo respuesta HTTP
	Reason     string
	Body       string
	cause      error
}

func (e *UpstreamError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("%s: [%d] %s: %s", e.Kind, e.StatusCode, e.Reason, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.cause }

// Retryable indica si el fallo pertenece a la clase que la capa de
// orquestación puede reintentar (transporte, 5xx, expiración de token).
func (e *UpstreamError) Retryable() bool {
	if e.Kind == KindUpstreamUnreachable {
		return true
	}
	return e.StatusCode >= 500 || e.StatusCode == 401
}

// NewUpstreamRejected construye el error para una respuesta non-200 del gateway.
func NewUpstreamRejected(kind ErrorKind, statusCode int, reason, body string) *UpstreamError {
	return &UpstreamError{Kind: kind, StatusCode: statusCode, Reason: reason, Body: body}
}

// NewUpstreamUnreachable construye el error para un fallo de transporte.
func NewUpstreamUnreachable(cause error) *UpstreamError {
	return &UpstreamError{Kind: KindUpstreamUnreachable, cause: cause}
}

// PartialFailure fallo de una etapa tardía del pipeline con un artefacto
// previo todavía válido: el XML quedó generado y subido aunque el timbre o
// el PDF fallaran. Se reporta distinto de un fallo total para que el caller
// pueda usar la URL del XML.
type PartialFailure struct {
	XMLURL string
	Err    *UpstreamError
}

func (p *PartialFailure) Error() string {
	return fmt.Sprintf("fallo parcial (XML disponible en %s): %v", p.XMLURL, p.Err)
}

func (p *PartialFailure) Unwrap() error { return p.Err }
