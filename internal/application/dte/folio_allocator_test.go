package dte_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altiro-cl/dte-api/internal/application/dte"
	"github.com/altiro-cl/dte-api/internal/domain"
	"github.com/altiro-cl/dte-api/internal/domain/entity"
)

const testCAF = `<AUTORIZACION>
  <CAF version="1.0">
    <DA>
      <RE>77068553-2</RE>
      <TD>52</TD>
      <RNG><D>101</D><H>105</H></RNG>
      <FA>2026-08-29</FA>
    </DA>
  </CAF>
</AUTORIZACION>`

func newAllocator(gw *fakeGateway) *dte.FolioAllocator {
	return dte.NewFolioAllocator(gw, staticCerts{}, newMemCompanyRepo(testCompany()), 0, testLogger())
}

func TestAllocate_ExtraeRangoDelCAF(t *testing.T) {
	allocator := newAllocator(&fakeGateway{foliosResp: ok(testCAF)})

	rango, err := allocator.Allocate(context.Background(), testEmpresaID, entity.TipoGuiaDespacho, 5)
	require.NoError(t, err)

	assert.Equal(t, 101, rango.Desde)
	assert.Equal(t, 105, rango.Hasta)
	assert.Equal(t, 5, rango.Cantidad())
	assert.Equal(t, entity.TipoGuiaDespacho, rango.TipoDTE)
}

func TestAllocate_TipoPorDefecto(t *testing.T) {
	allocator := newAllocator(&fakeGateway{foliosResp: ok(testCAF)})

	rango, err := allocator.Allocate(context.Background(), testEmpresaID, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, entity.TipoGuiaDespacho, rango.TipoDTE, "tipo 0 debe resolver a guía de despacho")
}

func TestAllocate_CantidadInvalida(t *testing.T) {
	allocator := newAllocator(&fakeGateway{})
	_, err := allocator.Allocate(context.Background(), testEmpresaID, entity.TipoGuiaDespacho, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAllocate_GatewayRechaza(t *testing.T) {
	allocator := newAllocator(&fakeGateway{foliosResp: rejected(403, "sin folios autorizados")})

	_, err := allocator.Allocate(context.Background(), testEmpresaID, entity.TipoGuiaDespacho, 5)
	require.Error(t, err)

	var uerr *domain.UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, 403, uerr.StatusCode)
	assert.Contains(t, uerr.Body, "sin folios autorizados")
}

func TestAllocate_CAFSinRango(t *testing.T) {
	allocator := newAllocator(&fakeGateway{foliosResp: ok("<AUTORIZACION><CAF/></AUTORIZACION>")})
	_, err := allocator.Allocate(context.Background(), testEmpresaID, entity.TipoGuiaDespacho, 5)
	assert.Error(t, err, "un CAF sin RNG/D..RNG/H no es interpretable")
}

func TestAvailableCount_EnteroPlano(t *testing.T) {
	allocator := newAllocator(&fakeGateway{disponiblesResp: ok("42")})

	n, err := allocator.AvailableCount(context.Background(), testEmpresaID, entity.TipoGuiaDespacho)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestAvailableCount_ObjetoJSON(t *testing.T) {
	allocator := newAllocator(&fakeGateway{disponiblesResp: ok(`{"foliosDisponibles": 17}`)})

	n, err := allocator.AvailableCount(context.Background(), testEmpresaID, entity.TipoGuiaDespacho)
	require.NoError(t, err)
	assert.Equal(t, 17, n)
}

func TestAvailableCount_RespuestaNoInterpretable(t *testing.T) {
	allocator := newAllocator(&fakeGateway{disponiblesResp: ok("<html>mantencion</html>")})
	_, err := allocator.AvailableCount(context.Background(), testEmpresaID, entity.TipoGuiaDespacho)
	assert.Error(t, err)
}

func TestAllocate_EmpresaSinRUTRegistrado_DerivaDelID(t *testing.T) {
	gw := &fakeGateway{foliosResp: ok(testCAF)}
	company := testCompany()
	company.RUT = "" // registro antiguo sin el RUT con guión
	allocator := dte.NewFolioAllocator(gw, staticCerts{}, newMemCompanyRepo(company), 0, testLogger())

	_, err := allocator.Allocate(context.Background(), testEmpresaID, entity.TipoGuiaDespacho, 5)
	require.NoError(t, err)
	assert.Equal(t, testRUT, gw.foliosRutEmpresa, "el RUT con guión se deriva del empresaID")
}

func TestAllocate_EmpresaInexistente(t *testing.T) {
	allocator := newAllocator(&fakeGateway{foliosResp: ok(testCAF)})
	_, err := allocator.Allocate(context.Background(), "111111111", entity.TipoGuiaDespacho, 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
