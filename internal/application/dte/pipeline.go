package dte

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/altiro-cl/dte-api/internal/application/dto"
	"github.com/altiro-cl/dte-api/internal/domain"
	"github.com/altiro-cl/dte-api/internal/domain/entity"
	"github.com/altiro-cl/dte-api/internal/domain/repository"
	"github.com/altiro-cl/dte-api/pkg/logger"
)

// Marcadores de la plantilla HTML del caller.
const (
	bodyCloseMarker = "</body>"
	logoPlaceholder = `<img src="placeholder.png" alt="logo" />`
)

// GenerationPipeline ejecuta el ciclo de generación de un DTE:
//
//	XML (gateway) → subir a bucket → timbre (gateway) → logo → PDF (renderer) → subir a bucket
//
// Cada etapa depende del artefacto de la anterior. Un fallo de timbre o PDF
// NO invalida el XML ya generado: se reporta como PartialFailure con la URL
// del XML, y el documento queda en PDF_FALLIDO (re-ensobrable).
type GenerationPipeline struct {
	gw        FiscalGateway
	store     ArtifactStore
	certs     CertificateProvider
	renderer  PDFRenderer
	companies repository.CompanyRepository
	docs      repository.DocumentRepository
	assembler *DocumentAssembler
	log       *logger.Logger
}

// NewGenerationPipeline construye el pipeline con todas sus dependencias.
func NewGenerationPipeline(
	gw FiscalGateway,
	store ArtifactStore,
	certs CertificateProvider,
	renderer PDFRenderer,
	companies repository.CompanyRepository,
	docs repository.DocumentRepository,
	log *logger.Logger,
) *GenerationPipeline {
	return &GenerationPipeline{
		gw:        gw,
		store:     store,
		certs:     certs,
		renderer:  renderer,
		companies: companies,
		docs:      docs,
		assembler: NewDocumentAssembler(),
		log:       log.ForComponent("generation-pipeline"),
	}
}

// GenerateResult resultado de una generación completa.
type GenerateResult struct {
	Document *entity.Document
	XMLURL   string
	PDFURL   string
}

// Generate ejecuta el pipeline completo para una guía. Contratos de error:
//   - entrada inconsistente → domain.ErrValidation (fatal, sin reintento)
//   - gateway rechaza el XML → *domain.UpstreamError Kind XML_GENERATION_FAILED
//   - timbre o PDF fallan con XML ya subido → *domain.PartialFailure con la
//     URL del XML todavía recuperable
//   - fallo de transporte antes de escribir nada → UPSTREAM_UNREACHABLE,
//     reintenable por el orquestador
func (p *GenerationPipeline) Generate(ctx context.Context, empresaID string, req dto.GenerateGuiaRequest) (*GenerateResult, error) {
	company, err := loadCompany(ctx, p.companies, empresaID)
	if err != nil {
		return nil, err
	}
	cred, err := p.certs.GetCredential(ctx, company)
	if err != nil {
		return nil, err
	}

	folio := req.Documento.Encabezado.IdentificacionDTE.Folio
	doc, err := p.assembler.Assemble(req.Documento, folio, company)
	if err != nil {
		return nil, err
	}

	// Reutilizar el registro si el folio ya tiene un intento previo
	// (regenerar tras PDF_FALLIDO o FALLIDO es legítimo).
	if existing, err := p.docs.GetByFolio(ctx, empresaID, doc.TipoDTE, folio); err != nil {
		return nil, err
	} else if existing != nil {
		doc.ID = existing.ID
		doc.CreatedAt = existing.CreatedAt
		if err := p.docs.UpdateArtifacts(ctx, doc); err != nil {
			return nil, err
		}
	} else if err := p.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	// El CAF del folio se aprovisiona externamente en el bucket.
	caf, err := p.store.Get(ctx, empresaID, KindCAF, folioSeq(folio))
	if err != nil {
		return nil, fmt.Errorf("%w: CAF no aprovisionado para el folio %d", domain.ErrValidation, folio)
	}

	// ── 1. Generar XML ────────────────────────────────────────────────────────
	respXML, err := p.gw.GenerarDTE(ctx, cred, doc, caf)
	if err != nil {
		// Transporte caído: sin escritura local previa, el caller puede repetir.
		return nil, domain.NewUpstreamUnreachable(err)
	}
	if !respXML.OK() {
		doc.Estado = entity.EstadoFallido
		doc.UpdatedAt = time.Now()
		if uerr := p.docs.UpdateArtifacts(ctx, doc); uerr != nil {
			p.log.Error().Err(uerr).Int("folio", folio).Msg("no se pudo persistir FALLIDO")
		}
		return nil, domain.NewUpstreamRejected(domain.KindXMLGeneration, respXML.StatusCode, respXML.Reason, respXML.Text())
	}

	xmlURL, err := p.store.Put(ctx, empresaID, KindGD, folioSeq(folio), respXML.Body)
	if err != nil {
		return nil, fmt.Errorf("subir XML de folio %d: %w", folio, err)
	}
	doc.XMLURL = xmlURL
	doc.Estado = entity.EstadoXMLGenerado
	doc.UpdatedAt = time.Now()
	if err := p.docs.UpdateArtifacts(ctx, doc); err != nil {
		return nil, err
	}
	p.log.Info().Str("empresa", empresaID).Int("folio", folio).Str("xml_url", xmlURL).Msg("XML generado y subido")

	// ── 2. Timbre ─────────────────────────────────────────────────────────────
	// Se relee el artefacto persistido: el timbre se calcula sobre lo que
	// efectivamente quedó en el bucket, no sobre el buffer en memoria.
	dteXML, err := p.store.Get(ctx, empresaID, KindGD, folioSeq(folio))
	if err != nil {
		return nil, p.partial(ctx, doc, &domain.UpstreamError{Kind: domain.KindBarcode, Reason: "releer XML del bucket", Body: err.Error()})
	}

	respTimbre, err := p.gw.GenerarTimbre(ctx, dteXML, folio)
	if err != nil {
		return nil, p.partial(ctx, doc, &domain.UpstreamError{Kind: domain.KindBarcode, Reason: "transporte", Body: err.Error()})
	}
	if !respTimbre.OK() {
		return nil, p.partial(ctx, doc, domain.NewUpstreamRejected(domain.KindBarcode, respTimbre.StatusCode, respTimbre.Reason, respTimbre.Text()))
	}
	doc.Estado = entity.EstadoTimbrado

	// Inyectar el timbre inmediatamente antes del cierre del body.
	html := req.PdfHTML
	if !strings.Contains(html, bodyCloseMarker) {
		return nil, p.partial(ctx, doc, &domain.UpstreamError{Kind: domain.KindPDFRender, Reason: "plantilla sin </body>", Body: "la plantilla HTML no contiene el marcador de cierre del body"})
	}
	timbreB64 := strings.TrimSpace(respTimbre.Text())
	timbreDiv := `<div style="position: absolute; left: 187.5px"><img src="data:image/png;base64,` +
		timbreB64 + `" style="width: 275px; height: 132px" /></div>`
	html = strings.Replace(html, bodyCloseMarker, timbreDiv+bodyCloseMarker, 1)

	// ── 3. Logo de la empresa ─────────────────────────────────────────────────
	logoBytes, err := p.store.Get(ctx, empresaID, KindLogo, "logo")
	if err != nil {
		return nil, p.partial(ctx, doc, &domain.UpstreamError{Kind: domain.KindPDFRender, Reason: "logo no disponible", Body: err.Error()})
	}
	logoB64 := base64.StdEncoding.EncodeToString(logoBytes)
	html = strings.Replace(html, logoPlaceholder,
		`<img src="data:image/png;base64,`+logoB64+`" alt="logo" style="height: 80px"/>`, 1)

	// ── 4. Render y subida del PDF ────────────────────────────────────────────
	pdfBytes, err := p.renderer.Render(ctx, html)
	if err != nil {
		return nil, p.partial(ctx, doc, &domain.UpstreamError{Kind: domain.KindPDFRender, Reason: "render", Body: err.Error()})
	}
	pdfURL, err := p.store.Put(ctx, empresaID, KindGDPDF, folioSeq(folio), pdfBytes)
	if err != nil {
		return nil, p.partial(ctx, doc, &domain.UpstreamError{Kind: domain.KindPDFRender, Reason: "subir PDF", Body: err.Error()})
	}

	doc.PDFURL = pdfURL
	doc.Estado = entity.EstadoPDFListo
	doc.UpdatedAt = time.Now()
	if err := p.docs.UpdateArtifacts(ctx, doc); err != nil {
		return nil, err
	}
	p.log.Info().Str("empresa", empresaID).Int("folio", folio).Str("pdf_url", pdfURL).Msg("guía generada completa")

	return &GenerateResult{Document: doc, XMLURL: xmlURL, PDFURL: pdfURL}, nil
}

// partial marca el documento como PDF_FALLIDO conservando el XML ya subido
// y construye el PartialFailure para el caller.
func (p *GenerationPipeline) partial(ctx context.Context, doc *entity.Document, uerr *domain.UpstreamError) error {
	doc.Estado = entity.EstadoPDFFallido
	doc.UpdatedAt = time.Now()
	if err := p.docs.UpdateArtifacts(ctx, doc); err != nil {
		p.log.Error().Err(err).Int("folio", doc.Folio).Msg("no se pudo persistir PDF_FALLIDO")
	}
	p.log.Warn().Int("folio", doc.Folio).Str("kind", string(uerr.Kind)).Msg("fallo parcial: XML disponible")
	return &domain.PartialFailure{XMLURL: doc.XMLURL, Err: uerr}
}

func folioSeq(folio int) string { return strconv.Itoa(folio) }
