package dto

import "github.com/shopspring/decimal"

// ObtainFoliosRequest body para POST /api/folios/:empresaID.
type ObtainFoliosRequest struct {
	Cantidad int `json:"amount"`
	TipoDTE  int `json:"tipo_dte,omitempty"` // 0 = Guía de Despacho (52)
}

// FoliosResponse rango asignado por el SII.
type FoliosResponse struct {
	TipoDTE  int `json:"tipo_dte"`
	Desde    int `json:"desde"`
	Hasta    int `json:"hasta"`
	Cantidad int `json:"cantidad"`
}

// FoliosDisponiblesResponse respuesta de GET /api/folios/:empresaID.
type FoliosDisponiblesResponse struct {
	TipoDTE     int `json:"tipo_dte"`
	Disponibles int `json:"disponibles"`
}

// GenerateGuiaRequest body para POST /api/dte/:empresaID.
// PdfHTML es la plantilla HTML del caller; el pipeline le inyecta el timbre
// y el logo antes de renderizar.
type GenerateGuiaRequest struct {
	Documento GuiaDespachoDocumento `json:"documento"`
	PdfHTML   string                `json:"pdf_html_string"`
}

// GuiaDespachoDocumento payload canónico de la guía.
type GuiaDespachoDocumento struct {
	Encabezado Encabezado    `json:"encabezado"`
	Detalles   []DetalleGuia `json:"detalles"`
}

// Encabezado cabecera del DTE.
type Encabezado struct {
	IdentificacionDTE IdentificacionDTE `json:"identificacion_dte"`
	Receptor          Receptor          `json:"receptor"`
	Totales           Totales           `json:"totales"`
}

// IdentificacionDTE identificación del documento dentro del flujo de la empresa.
type IdentificacionDTE struct {
	TipoDTE      int    `json:"tipo_dte"`
	Folio        int    `json:"folio"`
	FechaEmision string `json:"fecha_emision"` // yyyy-MM-dd
}

// Receptor destinatario de la guía.
type Receptor struct {
	Rut         string `json:"rut"`
	RazonSocial string `json:"razon_social"`
	Direccion   string `json:"direccion,omitempty"`
}

// Totales montos del documento.
type Totales struct {
	MontoTotal decimal.Decimal `json:"monto_total"`
}

// DetalleGuia línea de detalle.
type DetalleGuia struct {
	Nombre   string          `json:"nombre"`
	Cantidad decimal.Decimal `json:"cantidad"`
	Precio   decimal.Decimal `json:"precio"`
}

// GenerateGuiaResponse resultado de la generación. En éxito total trae
// xml_url y pdf_url; en éxito parcial trae xml_url y el código del error.
type GenerateGuiaResponse struct {
	Folio     int    `json:"folio"`
	Estado    string `json:"estado"`
	XMLURL    string `json:"xml_url,omitempty"`
	PDFURL    string `json:"pdf_url,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`
}

// CaratulaRequest cabecera del sobre en POST /api/sobre/:empresaID.
// RutEmisor vacío = se usa el RUT de la empresa.
type CaratulaRequest struct {
	RutEmisor   string `json:"rut_emisor,omitempty"`
	RutEnvia    string `json:"rut_envia"`
	RutReceptor string `json:"rut_receptor"`
	FchResol    string `json:"fch_resol"`
	NroResol    int    `json:"nro_resol"`
}

// GenerateSobreRequest body para POST /api/sobre/:empresaID.
type GenerateSobreRequest struct {
	Folios   []int           `json:"folios"`
	Caratula CaratulaRequest `json:"caratula"`
}

// SobreResponse sobre generado.
type SobreResponse struct {
	SobreID string `json:"sobre_id"`
	XMLURL  string `json:"xml_url"`
	Folios  []int  `json:"folios"`
	Estado  string `json:"estado"`
}

// EnviarSobreRequest body para POST /api/sobre/:empresaID/enviar.
type EnviarSobreRequest struct {
	SobresDocumentIDs []string `json:"sobres_document_ids"`
}

// EnviarSobreResponse track ID del despacho. TrackID puede ser el centinela
// "Send Failed" cuando el gateway aceptó el envío sin devolver trackId.
type EnviarSobreResponse struct {
	SobreID string `json:"sobre_id"`
	TrackID string `json:"track_id"`
}

// StatusReportResponse estado crudo de un envío o documento, con los campos
// que se pudieron interpretar del payload del SII.
type StatusReportResponse struct {
	StatusCode int    `json:"status_code"`
	Reason     string `json:"reason"`
	Text       string `json:"text"`
	Estado     string `json:"estado,omitempty"`
	Glosa      string `json:"glosa,omitempty"`
}

// ConsultarEstadoDTERequest query para GET /api/dte/:empresaID/consultar-estado.
type ConsultarEstadoDTERequest struct {
	RutReceptor string          `query:"rut_receptor"`
	Folio       int             `query:"folio"`
	Monto       decimal.Decimal `query:"monto"`
	FechaDTE    string          `query:"fecha_dte"`
	TipoDTE     int             `query:"tipo_dte"`
	Ambiente    int             `query:"ambiente"`
}

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
