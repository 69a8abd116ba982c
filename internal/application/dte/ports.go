package dte

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/altiro-cl/dte-api/internal/domain/entity"
	"github.com/altiro-cl/dte-api/internal/domain/repository"
)

// ── Gateway de documentos tributarios ─────────────────────────────────────────

// GatewayResponse respuesta cruda del proveedor. Toda llamada del gateway
// devuelve status, reason y body sin interpretar; un status distinto de 200
// significa que el body es un diagnóstico a preservar verbatim.
type GatewayResponse struct {
	StatusCode int
	Reason     string
	Body       []byte
}

// OK indica si el gateway aceptó la operación.
func (r GatewayResponse) OK() bool { return r.StatusCode == 200 }

// Text devuelve el body como string.
func (r GatewayResponse) Text() string { return string(r.Body) }

// Credential credencial de firma de una empresa: el .pfx crudo más los
// datos que el gateway espera en el campo Certificado.
type Credential struct {
	RutFirmante string // RUT del titular del certificado, con guión
	Password    string
	PFX         []byte
}

// Caratula metadatos de cabecera del sobre de envío.
type Caratula struct {
	RutEmisor   string // vacío = se usa el RUT de la empresa
	RutEnvia    string
	RutReceptor string // SII: "60803000-K"
	FchResol    string // fecha de la resolución, yyyy-MM-dd
	NroResol    int
}

// InfoEnvio parámetros del despacho de un sobre al SII.
type InfoEnvio struct {
	SobreID    string
	RutEmpresa string
	Ambiente   int
}

// ConsultaEstadoDTE consulta de estado de un documento por sus atributos
// declarados (cuando no se conoce el track ID).
type ConsultaEstadoDTE struct {
	RutEmpresa  string
	RutReceptor string
	Folio       int
	Monto       decimal.Decimal
	FechaDTE    string // yyyy-MM-dd
	TipoDTE     int
	Ambiente    int
}

// SobreParte XML de un DTE que se adjunta a la generación del sobre.
type SobreParte struct {
	Folio int
	XML   []byte
}

// FiscalGateway puerto de salida hacia el proveedor de documentos
// tributarios. Las implementaciones devuelven la respuesta HTTP tal cual
// (status/reason/body) y reservan el error para fallos de transporte.
type FiscalGateway interface {
	SolicitarFolios(ctx context.Context, cred Credential, rutEmpresa string, tipoDTE, cantidad, ambiente int) (GatewayResponse, error)
	ConsultarFoliosDisponibles(ctx context.Context, cred Credential, rutEmpresa string, tipoDTE, ambiente int) (GatewayResponse, error)
	GenerarDTE(ctx context.Context, cred Credential, doc *entity.Document, cafXML []byte) (GatewayResponse, error)
	GenerarTimbre(ctx context.Context, dteXML []byte, folio int) (GatewayResponse, error)
	GenerarSobre(ctx context.Context, cred Credential, caratula Caratula, partes []SobreParte) (GatewayResponse, error)
	EnviarSobre(ctx context.Context, cred Credential, envio InfoEnvio, sobreXML []byte) (GatewayResponse, error)
	ConsultarEnvio(ctx context.Context, cred Credential, rutEmpresa, trackID string, ambiente int) (GatewayResponse, error)
	ValidarDTE(ctx context.Context, dteXML []byte, folio int) (GatewayResponse, error)
	ConsultarEstadoDTE(ctx context.Context, cred Credential, consulta ConsultaEstadoDTE) (GatewayResponse, error)
}

// ── Almacenamiento de artefactos ──────────────────────────────────────────────

// Tipos de artefacto en el bucket.
const (
	KindCAF   = "CAF"    // autorización de folios, aprovisionada externamente
	KindGD    = "GD"     // XML del DTE
	KindGDPDF = "GD-PDF" // PDF del DTE
	KindSobre = "SOBRE"  // XML del sobre de envío
	KindLogo  = "LOGO"   // logo de la empresa para el PDF
	KindCert  = "CERT"   // certificado .pfx de la empresa
)

// ArtifactStore puerto de salida al bucket de artefactos. El pipeline solo
// conserva URLs; los bytes pertenecen al store.
type ArtifactStore interface {
	// Put sube el artefacto y devuelve su URL recuperable.
	Put(ctx context.Context, empresaID, kind, seq string, data []byte) (string, error)
	// Get devuelve domain.ErrNotFound si el artefacto no existe.
	Get(ctx context.Context, empresaID, kind, seq string) ([]byte, error)
}

// ── Otros colaboradores externos ──────────────────────────────────────────────

// CertificateProvider resuelve la credencial de firma de una empresa.
type CertificateProvider interface {
	GetCredential(ctx context.Context, company *entity.Company) (Credential, error)
}

// PDFRenderer renderiza HTML ya sustituido (timbre + logo embebidos) a PDF.
type PDFRenderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// SobreTxRunner ejecuta la creación del sobre y la transición de folios
// en una sola transacción.
type SobreTxRunner interface {
	RunSobre(ctx context.Context, fn func(
		envelopes repository.EnvelopeRepository,
		docs repository.DocumentRepository,
	) error) error
}
