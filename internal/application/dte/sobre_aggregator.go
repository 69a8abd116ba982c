package dte

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/altiro-cl/dte-api/internal/domain"
	"github.com/altiro-cl/dte-api/internal/domain/entity"
	"github.com/altiro-cl/dte-api/internal/domain/repository"
	"github.com/altiro-cl/dte-api/pkg/logger"
)

// SobreAggregator agrupa folios ya generados en un sobre de envío.
//
// Invariante: un folio pertenece a lo sumo a un sobre. El chequeo y el
// commit se hacen bajo un lock por empresa; dos agregaciones concurrentes
// de la misma empresa no pueden reclamar el mismo folio.
type SobreAggregator struct {
	gw        FiscalGateway
	store     ArtifactStore
	certs     CertificateProvider
	companies repository.CompanyRepository
	docs      repository.DocumentRepository
	envelopes repository.EnvelopeRepository
	tx        SobreTxRunner
	log       *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSobreAggregator construye el aggregator. tx puede ser nil: en ese caso
// el commit se hace con los repos directos (sin transacción DB).
func NewSobreAggregator(
	gw FiscalGateway,
	store ArtifactStore,
	certs CertificateProvider,
	companies repository.CompanyRepository,
	docs repository.DocumentRepository,
	envelopes repository.EnvelopeRepository,
	tx SobreTxRunner,
	log *logger.Logger,
) *SobreAggregator {
	return &SobreAggregator{
		gw:        gw,
		store:     store,
		certs:     certs,
		companies: companies,
		docs:      docs,
		envelopes: envelopes,
		tx:        tx,
		log:       log.ForComponent("sobre-aggregator"),
		locks:     map[string]*sync.Mutex{},
	}
}

// Aggregate crea un sobre con los folios indicados. Precondiciones:
// cada folio con XML generado y sin sobre previo; violarlas es ErrConflict
// (fatal, el caller debe corregir el conjunto). Si el gateway rechaza la
// generación no se escribe nada: la operación es naturalmente reintenable.
func (s *SobreAggregator) Aggregate(ctx context.Context, empresaID string, folios []int, caratula Caratula) (*entity.Envelope, error) {
	if len(folios) == 0 {
		return nil, fmt.Errorf("%w: el sobre requiere al menos un folio", domain.ErrValidation)
	}
	folios = dedupeSorted(folios)

	company, err := loadCompany(ctx, s.companies, empresaID)
	if err != nil {
		return nil, err
	}
	cred, err := s.certs.GetCredential(ctx, company)
	if err != nil {
		return nil, err
	}
	if caratula.RutEmisor == "" {
		caratula.RutEmisor = company.RUT
	}

	// Claim-check-then-commit atómico por empresa.
	lock := s.companyLock(empresaID)
	lock.Lock()
	defer lock.Unlock()

	docs, err := s.docs.ListByFolios(ctx, empresaID, entity.TipoGuiaDespacho, folios)
	if err != nil {
		return nil, err
	}
	byFolio := make(map[int]*entity.Document, len(docs))
	for _, d := range docs {
		byFolio[d.Folio] = d
	}
	for _, f := range folios {
		d, ok := byFolio[f]
		if !ok {
			return nil, fmt.Errorf("%w: folio %d sin documento generado", domain.ErrConflict, f)
		}
		if !d.GeneradoOK() {
			return nil, fmt.Errorf("%w: folio %d en estado %s, no ensobrable", domain.ErrConflict, f, d.Estado)
		}
	}

	taken, err := s.envelopes.EnvelopedFolios(ctx, empresaID, folios)
	if err != nil {
		return nil, err
	}
	if len(taken) > 0 {
		return nil, fmt.Errorf("%w: folios ya ensobrados: %v", domain.ErrConflict, taken)
	}

	partes := make([]SobreParte, 0, len(folios))
	for _, f := range folios {
		xml, err := s.store.Get(ctx, empresaID, KindGD, folioSeq(f))
		if err != nil {
			return nil, fmt.Errorf("XML del folio %d no recuperable: %w", f, err)
		}
		partes = append(partes, SobreParte{Folio: f, XML: xml})
	}

	resp, err := s.gw.GenerarSobre(ctx, cred, caratula, partes)
	if err != nil {
		return nil, domain.NewUpstreamUnreachable(err)
	}
	if !resp.OK() {
		// Sin estado parcial: los folios quedan tal cual, re-agregables.
		return nil, domain.NewUpstreamRejected(domain.KindUpstreamRejected, resp.StatusCode, resp.Reason, resp.Text())
	}

	env := &entity.Envelope{
		ID:        uuid.New().String(),
		EmpresaID: empresaID,
		Folios:    folios,
		Estado:    entity.SobreGenerado,
		CreatedAt: time.Now(),
	}
	xmlURL, err := s.store.Put(ctx, empresaID, KindSobre, env.ID, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("subir XML del sobre: %w", err)
	}
	env.XMLURL = xmlURL

	commit := func(envelopes repository.EnvelopeRepository, docs repository.DocumentRepository) error {
		if err := envelopes.Create(ctx, env); err != nil {
			return err
		}
		return docs.UpdateEstadoByFolios(ctx, empresaID, entity.TipoGuiaDespacho, folios, entity.EstadoEnsobrado)
	}
	if s.tx != nil {
		err = s.tx.RunSobre(ctx, commit)
	} else {
		err = commit(s.envelopes, s.docs)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("empresa", empresaID).Str("sobre", env.ID).Ints("folios", folios).Msg("sobre generado")
	return env, nil
}

func (s *SobreAggregator) companyLock(empresaID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[empresaID]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[empresaID] = l
	return l
}

func dedupeSorted(folios []int) []int {
	seen := make(map[int]struct{}, len(folios))
	out := make([]int, 0, len(folios))
	for _, f := range folios {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Ints(out)
	return out
}
