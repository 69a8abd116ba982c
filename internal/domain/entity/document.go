package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TipoGuiaDespacho código SII del DTE Guía de Despacho.
const TipoGuiaDespacho = 52

// Estados del ciclo de vida de un documento / folio.
//
//	PENDIENTE → XML_GENERADO → TIMBRADO → PDF_LISTO        (éxito)
//	PENDIENTE → XML_GENERADO → PDF_FALLIDO                 (parcial: XML usable)
//	PENDIENTE → FALLIDO                                    (el gateway rechazó el XML)
//	… → ENSOBRADO → ENVIADO → ACEPTADO | RECHAZADO
const (
	EstadoPendiente   = "PENDIENTE"
	EstadoXMLGenerado = "XML_GENERADO"
	EstadoTimbrado    = "TIMBRADO"
	EstadoPDFListo    = "PDF_LISTO"
	EstadoPDFFallido  = "PDF_FALLIDO"
	EstadoFallido     = "FALLIDO"
	EstadoEnsobrado   = "ENSOBRADO"
	EstadoEnviado     = "ENVIADO"
	EstadoAceptado    = "ACEPTADO"
	EstadoRechazado   = "RECHAZADO"
)

// Document es un DTE emitido (o en emisión) para una empresa.
// Inmutable después del despacho del sobre que lo contiene.
type Document struct {
	ID           string
	EmpresaID    string
	TipoDTE      int // 52 = Guía de Despacho
	Folio        int
	RutReceptor  string
	FechaEmision time.Time
	MontoTotal   decimal.Decimal
	Detalle      []DocumentLine
	Estado       string
	XMLURL       string // vacío hasta XML_GENERADO
	PDFURL       string // vacío hasta PDF_LISTO
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DocumentLine línea de detalle de la guía.
type DocumentLine struct {
	Nombre   string          `json:"nombre"`
	Cantidad decimal.Decimal `json:"cantidad"`
	Precio   decimal.Decimal `json:"precio"`
}

// GeneradoOK indica si el documento tiene XML válido y puede ensobrarse.
func (d *Document) GeneradoOK() bool {
	switch d.Estado {
	case EstadoXMLGenerado, EstadoTimbrado, EstadoPDFListo, EstadoPDFFallido:
		return true
	}
	return false
}
