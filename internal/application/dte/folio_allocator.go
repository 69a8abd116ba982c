package dte

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/altiro-cl/dte-api/internal/domain"
	"github.com/altiro-cl/dte-api/internal/domain/entity"
	"github.com/altiro-cl/dte-api/internal/domain/repository"
	"github.com/altiro-cl/dte-api/pkg/logger"
)

// FolioAllocator solicita rangos de folios al SII a través del gateway.
// El consumo de folios es autoritativo upstream: aquí no se persiste nada,
// el CAF queda aprovisionado externamente en el bucket.
type FolioAllocator struct {
	gw        FiscalGateway
	certs     CertificateProvider
	companies repository.CompanyRepository
	ambiente  int
	log       *logger.Logger
}

// NewFolioAllocator construye el allocator.
func NewFolioAllocator(gw FiscalGateway, certs CertificateProvider, companies repository.CompanyRepository, ambiente int, log *logger.Logger) *FolioAllocator {
	return &FolioAllocator{gw: gw, certs: certs, companies: companies, ambiente: ambiente, log: log.ForComponent("folio-allocator")}
}

// Allocate solicita un bloque contiguo de `cantidad` folios del tipo indicado.
// El gateway responde con el CAF; del CAF se extrae el rango (RNG/D .. RNG/H).
func (a *FolioAllocator) Allocate(ctx context.Context, empresaID string, tipoDTE, cantidad int) (entity.FolioRange, error) {
	if cantidad <= 0 {
		return entity.FolioRange{}, fmt.Errorf("%w: cantidad de folios debe ser positiva", domain.ErrValidation)
	}
	if tipoDTE == 0 {
		tipoDTE = entity.TipoGuiaDespacho
	}

	company, cred, err := a.resolve(ctx, empresaID)
	if err != nil {
		return entity.FolioRange{}, err
	}

	resp, err := a.gw.SolicitarFolios(ctx, cred, company.RUT, tipoDTE, cantidad, a.ambiente)
	if err != nil {
		return entity.FolioRange{}, domain.NewUpstreamUnreachable(err)
	}
	if !resp.OK() {
		return entity.FolioRange{}, domain.NewUpstreamRejected(domain.KindUpstreamRejected, resp.StatusCode, resp.Reason, resp.Text())
	}

	desde, hasta, err := parseCAFRange(resp.Body)
	if err != nil {
		return entity.FolioRange{}, fmt.Errorf("parsear CAF devuelto por el gateway: %w", err)
	}

	rango := entity.FolioRange{EmpresaID: empresaID, TipoDTE: tipoDTE, Desde: desde, Hasta: hasta}
	a.log.Info().
		Str("empresa", empresaID).
		Int("tipo_dte", tipoDTE).
		Int("desde", desde).
		Int("hasta", hasta).
		Msg("folios asignados")
	return rango, nil
}

// AvailableCount consulta los folios disponibles del tipo indicado.
// Operación de solo lectura; no muta nada ni aquí ni upstream.
func (a *FolioAllocator) AvailableCount(ctx context.Context, empresaID string, tipoDTE int) (int, error) {
	if tipoDTE == 0 {
		tipoDTE = entity.TipoGuiaDespacho
	}
	company, cred, err := a.resolve(ctx, empresaID)
	if err != nil {
		return 0, err
	}

	resp, err := a.gw.ConsultarFoliosDisponibles(ctx, cred, company.RUT, tipoDTE, a.ambiente)
	if err != nil {
		return 0, domain.NewUpstreamUnreachable(err)
	}
	if !resp.OK() {
		return 0, domain.NewUpstreamRejected(domain.KindUpstreamRejected, resp.StatusCode, resp.Reason, resp.Text())
	}
	return parseAvailable(resp.Body)
}

func (a *FolioAllocator) resolve(ctx context.Context, empresaID string) (*entity.Company, Credential, error) {
	company, err := loadCompany(ctx, a.companies, empresaID)
	if err != nil {
		return nil, Credential{}, err
	}
	cred, err := a.certs.GetCredential(ctx, company)
	if err != nil {
		return nil, Credential{}, err
	}
	return company, cred, nil
}

// parseCAFRange extrae el rango autorizado del XML del CAF: AUTORIZACION/CAF/DA/RNG.
func parseCAFRange(cafXML []byte) (desde, hasta int, err error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(cafXML); err != nil {
		return 0, 0, err
	}
	d := doc.FindElement("//RNG/D")
	h := doc.FindElement("//RNG/H")
	if d == nil || h == nil {
		return 0, 0, fmt.Errorf("el CAF no contiene el rango RNG/D..RNG/H")
	}
	desde, err = strconv.Atoi(strings.TrimSpace(d.Text()))
	if err != nil {
		return 0, 0, fmt.Errorf("RNG/D inválido: %w", err)
	}
	hasta, err = strconv.Atoi(strings.TrimSpace(h.Text()))
	if err != nil {
		return 0, 0, fmt.Errorf("RNG/H inválido: %w", err)
	}
	return desde, hasta, nil
}

// parseAvailable interpreta la respuesta de folios disponibles: un entero
// plano o un objeto JSON {"foliosDisponibles": n}.
func parseAvailable(body []byte) (int, error) {
	text := strings.TrimSpace(string(body))
	if n, err := strconv.Atoi(text); err == nil {
		return n, nil
	}
	var payload struct {
		FoliosDisponibles int `json:"foliosDisponibles"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		return payload.FoliosDisponibles, nil
	}
	return 0, fmt.Errorf("respuesta de folios disponibles no interpretable: %q", text)
}
