package dte

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/altiro-cl/dte-api/internal/domain"
	"github.com/altiro-cl/dte-api/internal/domain/entity"
	"github.com/altiro-cl/dte-api/internal/domain/repository"
	"github.com/altiro-cl/dte-api/pkg/logger"
)

// TrackIDSendFailed centinela cuando el gateway responde 200 sin trackId.
// Hay consumidores que dependen de este string exacto; no se "corrige".
const TrackIDSendFailed = "Send Failed"

// EnvioDispatcher despacha un sobre ya generado al SII y registra el
// track ID resultante.
//
// El endpoint upstream es conocido por fallar a nivel de transporte o de
// token; el orquestador puede repetir Dispatch para el mismo sobre sin
// riesgo local: el XML del sobre es inmutable y aquí no se escribe nada
// antes de un 200. La idempotencia del lado del SII no está garantizada.
type EnvioDispatcher struct {
	gw         FiscalGateway
	store      ArtifactStore
	certs      CertificateProvider
	companies  repository.CompanyRepository
	docs       repository.DocumentRepository
	envelopes  repository.EnvelopeRepository
	dispatches repository.DispatchRepository
	ambiente   int
	log        *logger.Logger
}

// NewEnvioDispatcher construye el dispatcher.
func NewEnvioDispatcher(
	gw FiscalGateway,
	store ArtifactStore,
	certs CertificateProvider,
	companies repository.CompanyRepository,
	docs repository.DocumentRepository,
	envelopes repository.EnvelopeRepository,
	dispatches repository.DispatchRepository,
	ambiente int,
	log *logger.Logger,
) *EnvioDispatcher {
	return &EnvioDispatcher{
		gw:         gw,
		store:      store,
		certs:      certs,
		companies:  companies,
		docs:       docs,
		envelopes:  envelopes,
		dispatches: dispatches,
		ambiente:   ambiente,
		log:        log.ForComponent("envio-dispatcher"),
	}
}

// Dispatch envía el sobre al SII. Devuelve el track ID del envío, o el
// centinela "Send Failed" si el 200 vino sin trackId (el sobre igual pasa
// a ENVIADO: el transporte fue aceptado).
func (d *EnvioDispatcher) Dispatch(ctx context.Context, empresaID, sobreID string) (string, error) {
	company, err := loadCompany(ctx, d.companies, empresaID)
	if err != nil {
		return "", err
	}
	cred, err := d.certs.GetCredential(ctx, company)
	if err != nil {
		return "", err
	}

	env, err := d.envelopes.GetByID(ctx, empresaID, sobreID)
	if err != nil {
		return "", err
	}
	if env == nil {
		return "", fmt.Errorf("%w: sobre %s", domain.ErrNotFound, sobreID)
	}

	sobreXML, err := d.store.Get(ctx, empresaID, KindSobre, sobreID)
	if err != nil {
		return "", fmt.Errorf("XML del sobre %s no recuperable: %w", sobreID, err)
	}

	envio := InfoEnvio{SobreID: sobreID, RutEmpresa: company.RUT, Ambiente: d.ambiente}
	resp, err := d.gw.EnviarSobre(ctx, cred, envio, sobreXML)
	if err != nil {
		return "", domain.NewUpstreamUnreachable(err)
	}
	if !resp.OK() {
		return "", domain.NewUpstreamRejected(domain.KindUpstreamRejected, resp.StatusCode, resp.Reason, resp.Text())
	}

	trackID := extractTrackID(resp.Body)
	if trackID == TrackIDSendFailed {
		d.log.Warn().Str("sobre", sobreID).Msg("200 sin trackId: se registra el centinela")
	}

	rec := &entity.DispatchRecord{
		ID:         uuid.New().String(),
		EnvelopeID: sobreID,
		TrackID:    trackID,
		SentAt:     time.Now(),
		LastStatus: "PENDIENTE",
	}
	if err := d.dispatches.Create(ctx, rec); err != nil {
		return "", err
	}
	if err := d.envelopes.UpdateEstado(ctx, empresaID, sobreID, entity.SobreEnviado); err != nil {
		return "", err
	}
	if err := d.docs.UpdateEstadoByFolios(ctx, empresaID, entity.TipoGuiaDespacho, env.Folios, entity.EstadoEnviado); err != nil {
		return "", err
	}

	d.log.Info().Str("empresa", empresaID).Str("sobre", sobreID).Str("track_id", trackID).Msg("sobre despachado")
	return trackID, nil
}

// extractTrackID saca el trackId del body JSON; ausencia → centinela.
func extractTrackID(body []byte) string {
	var payload struct {
		TrackID string `json:"trackId"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.TrackID == "" {
		return TrackIDSendFailed
	}
	return payload.TrackID
}
