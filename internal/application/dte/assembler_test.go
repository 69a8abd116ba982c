package dte_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altiro-cl/dte-api/internal/application/dte"
	"github.com/altiro-cl/dte-api/internal/domain"
	"github.com/altiro-cl/dte-api/internal/domain/entity"
)

func TestAssemble_DocumentoPendiente(t *testing.T) {
	assembler := dte.NewDocumentAssembler()
	raw := guiaRequest(123).Documento

	doc, err := assembler.Assemble(raw, 123, testCompany())
	require.NoError(t, err)

	assert.Equal(t, entity.EstadoPendiente, doc.Estado)
	assert.Equal(t, testEmpresaID, doc.EmpresaID)
	assert.Equal(t, entity.TipoGuiaDespacho, doc.TipoDTE)
	assert.Equal(t, 123, doc.Folio)
	assert.Equal(t, "12345678-5", doc.RutReceptor)
	assert.Len(t, doc.Detalle, 1)
	assert.NotEmpty(t, doc.ID)
}

func TestAssemble_FolioNoCoincide(t *testing.T) {
	assembler := dte.NewDocumentAssembler()
	raw := guiaRequest(123).Documento

	_, err := assembler.Assemble(raw, 999, testCompany())
	assert.ErrorIs(t, err, domain.ErrValidation, "el folio declarado debe coincidir con el asignado")
}

func TestAssemble_ReceptorSinRut(t *testing.T) {
	assembler := dte.NewDocumentAssembler()
	raw := guiaRequest(123).Documento
	raw.Encabezado.Receptor.Rut = ""

	_, err := assembler.Assemble(raw, 123, testCompany())
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAssemble_RutReceptorConDVIncorrecto(t *testing.T) {
	assembler := dte.NewDocumentAssembler()
	raw := guiaRequest(123).Documento
	raw.Encabezado.Receptor.Rut = "12345678-9"

	_, err := assembler.Assemble(raw, 123, testCompany())
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAssemble_FechaInvalida(t *testing.T) {
	assembler := dte.NewDocumentAssembler()
	raw := guiaRequest(123).Documento
	raw.Encabezado.IdentificacionDTE.FechaEmision = "29-08-2026"

	_, err := assembler.Assemble(raw, 123, testCompany())
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAssemble_LineaSinNombre(t *testing.T) {
	assembler := dte.NewDocumentAssembler()
	raw := guiaRequest(123).Documento
	raw.Detalles[0].Nombre = ""

	_, err := assembler.Assemble(raw, 123, testCompany())
	assert.ErrorIs(t, err, domain.ErrValidation)
}
