package dte_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altiro-cl/dte-api/internal/application/dte"
	"github.com/altiro-cl/dte-api/internal/domain"
	"github.com/altiro-cl/dte-api/internal/domain/entity"
)

type aggregatorEnv struct {
	gw         *fakeGateway
	store      *memStore
	docs       *memDocRepo
	envelopes  *memEnvelopeRepo
	aggregator *dte.SobreAggregator
}

// newAggregatorEnv deja los folios indicados ya generados (XML en el bucket,
// documento en XML_GENERADO).
func newAggregatorEnv(t *testing.T, folios ...int) *aggregatorEnv {
	t.Helper()
	gw := &fakeGateway{sobreResp: ok("<EnvioDTE><SetDTE/></EnvioDTE>")}
	store := newMemStore()
	docs := newMemDocRepo()
	envelopes := newMemEnvelopeRepo()

	ctx := context.Background()
	now := time.Now()
	for _, f := range folios {
		_, err := store.Put(ctx, testEmpresaID, dte.KindGD, strconv.Itoa(f), []byte("<DTE folio='"+strconv.Itoa(f)+"'/>"))
		require.NoError(t, err)
		docs.seed(&entity.Document{
			ID:        "doc-" + strconv.Itoa(f),
			EmpresaID: testEmpresaID,
			TipoDTE:   entity.TipoGuiaDespacho,
			Folio:     f,
			Estado:    entity.EstadoXMLGenerado,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	aggregator := dte.NewSobreAggregator(
		gw, store, staticCerts{},
		newMemCompanyRepo(testCompany()), docs, envelopes, nil, testLogger(),
	)
	return &aggregatorEnv{gw: gw, store: store, docs: docs, envelopes: envelopes, aggregator: aggregator}
}

func testCaratula() dte.Caratula {
	return dte.Caratula{
		RutEnvia:    "11111111-1",
		RutReceptor: "60803000-K",
		FchResol:    "2020-01-01",
		NroResol:    0,
	}
}

func TestAggregate_CreaSobreYEnsobraFolios(t *testing.T) {
	env := newAggregatorEnv(t, 10, 11, 12)
	ctx := context.Background()

	sobre, err := env.aggregator.Aggregate(ctx, testEmpresaID, []int{12, 10, 11}, testCaratula())
	require.NoError(t, err)

	assert.Equal(t, []int{10, 11, 12}, sobre.Folios, "los folios quedan deduplicados y ordenados")
	assert.Equal(t, entity.SobreGenerado, sobre.Estado)
	assert.NotEmpty(t, sobre.XMLURL)

	// El XML del sobre quedó en el bucket bajo el ID del sobre.
	xml, err := env.store.Get(ctx, testEmpresaID, dte.KindSobre, sobre.ID)
	require.NoError(t, err)
	assert.Equal(t, "<EnvioDTE><SetDTE/></EnvioDTE>", string(xml))

	// Todos los documentos pasaron a ENSOBRADO.
	for _, f := range []int{10, 11, 12} {
		doc, err := env.docs.GetByFolio(ctx, testEmpresaID, entity.TipoGuiaDespacho, f)
		require.NoError(t, err)
		assert.Equal(t, entity.EstadoEnsobrado, doc.Estado, "folio %d", f)
	}

	// El gateway recibió los tres XML.
	assert.Len(t, env.gw.generarSobreXMLs, 3)
}

func TestAggregate_FolioYaEnsobrado_Conflicto(t *testing.T) {
	env := newAggregatorEnv(t, 10, 11, 12)
	ctx := context.Background()

	env.envelopes.seed(&entity.Envelope{
		ID:        "sobre-previo",
		EmpresaID: testEmpresaID,
		Folios:    []int{11},
		Estado:    entity.SobreEnviado,
		CreatedAt: time.Now(),
	})

	_, err := env.aggregator.Aggregate(ctx, testEmpresaID, []int{10, 11, 12}, testCaratula())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict, "un folio ya ensobrado debe rechazar el conjunto completo")

	// 10 y 12 no quedaron tocados: re-agregarlos sin el 11 funciona.
	sobre, err := env.aggregator.Aggregate(ctx, testEmpresaID, []int{10, 12}, testCaratula())
	require.NoError(t, err)
	assert.Equal(t, []int{10, 12}, sobre.Folios)
}

func TestAggregate_FolioSinDocumento_Conflicto(t *testing.T) {
	env := newAggregatorEnv(t, 10)
	_, err := env.aggregator.Aggregate(context.Background(), testEmpresaID, []int{10, 99}, testCaratula())
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestAggregate_FolioFallido_Conflicto(t *testing.T) {
	env := newAggregatorEnv(t, 10)
	env.docs.seed(&entity.Document{
		ID:        "doc-20",
		EmpresaID: testEmpresaID,
		TipoDTE:   entity.TipoGuiaDespacho,
		Folio:     20,
		Estado:    entity.EstadoFallido,
	})
	_, err := env.aggregator.Aggregate(context.Background(), testEmpresaID, []int{10, 20}, testCaratula())
	assert.ErrorIs(t, err, domain.ErrConflict, "un folio FALLIDO no es ensobrable")
}

func TestAggregate_FolioConPDFFallido_SiEsEnsobrable(t *testing.T) {
	env := newAggregatorEnv(t, 10)
	ctx := context.Background()
	_, err := env.store.Put(ctx, testEmpresaID, dte.KindGD, "21", []byte("<DTE folio='21'/>"))
	require.NoError(t, err)
	env.docs.seed(&entity.Document{
		ID:        "doc-21",
		EmpresaID: testEmpresaID,
		TipoDTE:   entity.TipoGuiaDespacho,
		Folio:     21,
		Estado:    entity.EstadoPDFFallido,
	})

	sobre, err := env.aggregator.Aggregate(ctx, testEmpresaID, []int{10, 21}, testCaratula())
	require.NoError(t, err, "PDF_FALLIDO tiene XML válido y debe poder ensobrarse")
	assert.Equal(t, []int{10, 21}, sobre.Folios)
}

func TestAggregate_GatewayRechaza_NadaSeEscribe(t *testing.T) {
	env := newAggregatorEnv(t, 10, 11)
	env.gw.sobreResp = rejected(500, "envelope error")
	ctx := context.Background()

	_, err := env.aggregator.Aggregate(ctx, testEmpresaID, []int{10, 11}, testCaratula())
	require.Error(t, err)

	var uerr *domain.UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.True(t, uerr.Retryable())

	// Los folios siguen libres: el reintento funciona.
	env.gw.sobreResp = ok("<EnvioDTE/>")
	_, err = env.aggregator.Aggregate(ctx, testEmpresaID, []int{10, 11}, testCaratula())
	require.NoError(t, err)
}

func TestAggregate_SinFolios_Validacion(t *testing.T) {
	env := newAggregatorEnv(t)
	_, err := env.aggregator.Aggregate(context.Background(), testEmpresaID, nil, testCaratula())
	assert.ErrorIs(t, err, domain.ErrValidation)
}
