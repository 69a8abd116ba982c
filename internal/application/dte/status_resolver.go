package dte

import (
	"context"
	"fmt"

	"github.com/beevik/etree"

	"github.com/altiro-cl/dte-api/internal/domain"
	"github.com/altiro-cl/dte-api/internal/domain/entity"
	"github.com/altiro-cl/dte-api/internal/domain/repository"
	"github.com/altiro-cl/dte-api/pkg/logger"
)

// StatusReport payload crudo de una consulta de estado, más los campos
// ESTADO/GLOSA cuando el XML del SII los trae.
type StatusReport struct {
	StatusCode int
	Reason     string
	Body       string
	Estado     string
	Glosa      string
}

// StatusResolver consulta el estado de envíos y documentos ante el SII.
//
// La ruta de lectura no persiste nada: los estados del SII pueden revisarse
// varias veces antes de quedar firmes, así que el resultado es una foto
// informativa y la persistencia (si se quiere) es del caller.
type StatusResolver struct {
	gw        FiscalGateway
	store     ArtifactStore
	certs     CertificateProvider
	companies repository.CompanyRepository
	ambiente  int
	log       *logger.Logger
}

// NewStatusResolver construye el resolver.
func NewStatusResolver(gw FiscalGateway, store ArtifactStore, certs CertificateProvider, companies repository.CompanyRepository, ambiente int, log *logger.Logger) *StatusResolver {
	return &StatusResolver{gw: gw, store: store, certs: certs, companies: companies, ambiente: ambiente, log: log.ForComponent("status-resolver")}
}

// ResolveEnvioStatus consulta el estado de un envío por su track ID.
func (r *StatusResolver) ResolveEnvioStatus(ctx context.Context, empresaID, trackID string) (*StatusReport, error) {
	company, cred, err := r.resolve(ctx, empresaID)
	if err != nil {
		return nil, err
	}
	resp, err := r.gw.ConsultarEnvio(ctx, cred, company.RUT, trackID, r.ambiente)
	if err != nil {
		return nil, domain.NewUpstreamUnreachable(err)
	}
	if !resp.OK() {
		return nil, domain.NewUpstreamRejected(domain.KindUpstreamRejected, resp.StatusCode, resp.Reason, resp.Text())
	}
	return buildReport(resp), nil
}

// ResolveDocumentValidation valida un documento ya generado (no
// necesariamente enviado) contra el validador del gateway.
func (r *StatusResolver) ResolveDocumentValidation(ctx context.Context, empresaID string, folio int) (*StatusReport, error) {
	if _, _, err := r.resolve(ctx, empresaID); err != nil {
		return nil, err
	}
	dteXML, err := r.store.Get(ctx, empresaID, KindGD, folioSeq(folio))
	if err != nil {
		return nil, fmt.Errorf("%w: XML del folio %d", domain.ErrNotFound, folio)
	}
	resp, err := r.gw.ValidarDTE(ctx, dteXML, folio)
	if err != nil {
		return nil, domain.NewUpstreamUnreachable(err)
	}
	if !resp.OK() {
		return nil, domain.NewUpstreamRejected(domain.KindUpstreamRejected, resp.StatusCode, resp.Reason, resp.Text())
	}
	return buildReport(resp), nil
}

// ResolveDocumentStatus consulta el estado de aceptación de un documento
// por sus atributos declarados (cuando no se conoce el track ID).
func (r *StatusResolver) ResolveDocumentStatus(ctx context.Context, empresaID string, consulta ConsultaEstadoDTE) (*StatusReport, error) {
	company, cred, err := r.resolve(ctx, empresaID)
	if err != nil {
		return nil, err
	}
	consulta.RutEmpresa = company.RUT
	if consulta.TipoDTE == 0 {
		consulta.TipoDTE = entity.TipoGuiaDespacho
	}
	resp, err := r.gw.ConsultarEstadoDTE(ctx, cred, consulta)
	if err != nil {
		return nil, domain.NewUpstreamUnreachable(err)
	}
	if !resp.OK() {
		return nil, domain.NewUpstreamRejected(domain.KindUpstreamRejected, resp.StatusCode, resp.Reason, resp.Text())
	}
	return buildReport(resp), nil
}

func (r *StatusResolver) resolve(ctx context.Context, empresaID string) (*entity.Company, Credential, error) {
	company, err := loadCompany(ctx, r.companies, empresaID)
	if err != nil {
		return nil, Credential{}, err
	}
	cred, err := r.certs.GetCredential(ctx, company)
	if err != nil {
		return nil, Credential{}, err
	}
	return company, cred, nil
}

// buildReport arma el reporte con el payload verbatim; ESTADO y GLOSA se
// extraen del XML si están (tolerante: payloads no-XML quedan solo crudos).
func buildReport(resp GatewayResponse) *StatusReport {
	report := &StatusReport{
		StatusCode: resp.StatusCode,
		Reason:     resp.Reason,
		Body:       resp.Text(),
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(resp.Body); err != nil {
		return report
	}
	if el := doc.FindElement("//ESTADO"); el != nil {
		report.Estado = el.Text()
	}
	if el := doc.FindElement("//GLOSA"); el != nil {
		report.Glosa = el.Text()
	}
	return report
}
