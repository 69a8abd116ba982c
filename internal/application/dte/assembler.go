package dte

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/altiro-cl/dte-api/internal/application/dto"
	"github.com/altiro-cl/dte-api/internal/domain"
	"github.com/altiro-cl/dte-api/internal/domain/entity"
	"github.com/altiro-cl/dte-api/pkg/rut"
)

// DocumentAssembler transforma el payload del caller en un Document
// canónico. Transformación pura: sin I/O.
type DocumentAssembler struct{}

// NewDocumentAssembler construye el assembler.
func NewDocumentAssembler() *DocumentAssembler {
	return &DocumentAssembler{}
}

// Assemble valida el payload contra el folio del caller y construye el
// documento en estado PENDIENTE. Un folio que no coincide es un error de
// validación fatal, no se reintenta.
func (s *DocumentAssembler) Assemble(raw dto.GuiaDespachoDocumento, folio int, company *entity.Company) (*entity.Document, error) {
	ident := raw.Encabezado.IdentificacionDTE
	if ident.Folio != folio {
		return nil, fmt.Errorf("%w: el folio declarado (%d) no coincide con el folio asignado (%d)",
			domain.ErrValidation, ident.Folio, folio)
	}
	tipo := ident.TipoDTE
	if tipo == 0 {
		tipo = entity.TipoGuiaDespacho
	}
	if raw.Encabezado.Receptor.Rut == "" {
		return nil, fmt.Errorf("%w: receptor sin RUT", domain.ErrValidation)
	}
	if err := rut.Validate(raw.Encabezado.Receptor.Rut); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	fecha, err := time.Parse("2006-01-02", ident.FechaEmision)
	if err != nil {
		return nil, fmt.Errorf("%w: fecha_emision debe ser yyyy-MM-dd: %v", domain.ErrValidation, err)
	}

	detalle := make([]entity.DocumentLine, len(raw.Detalles))
	for i, d := range raw.Detalles {
		if d.Nombre == "" {
			return nil, fmt.Errorf("%w: línea %d sin nombre", domain.ErrValidation, i+1)
		}
		detalle[i] = entity.DocumentLine{Nombre: d.Nombre, Cantidad: d.Cantidad, Precio: d.Precio}
	}

	now := time.Now()
	return &entity.Document{
		ID:           uuid.New().String(),
		EmpresaID:    company.ID,
		TipoDTE:      tipo,
		Folio:        folio,
		RutReceptor:  raw.Encabezado.Receptor.Rut,
		FechaEmision: fecha,
		MontoTotal:   raw.Encabezado.Totales.MontoTotal,
		Detalle:      detalle,
		Estado:       entity.EstadoPendiente,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
