package repository

import (
	"context"

	"github.com/altiro-cl/dte-api/internal/domain/entity"
)

// EnvelopeRepository acceso a sobres de envío y su membresía de folios.
type EnvelopeRepository interface {
	// Create persiste el sobre junto con sus folios (conjunto congelado).
	// Debe fallar si algún folio ya pertenece a otro sobre de la empresa.
	Create(ctx context.Context, env *entity.Envelope) error
	// GetByID devuelve (nil, nil) si el sobre no existe.
	GetByID(ctx context.Context, empresaID, id string) (*entity.Envelope, error)
	// EnvelopedFolios devuelve el subconjunto de folios que ya pertenecen
	// a algún sobre (abierto o enviado) de la empresa.
	EnvelopedFolios(ctx context.Context, empresaID string, folios []int) ([]int, error)
	UpdateEstado(ctx context.Context, empresaID, id, estado string) error
}

// DispatchRepository acceso a los registros de despacho (track IDs del SII).
type DispatchRepository interface {
	Create(ctx context.Context, rec *entity.DispatchRecord) error
	// GetByEnvelope devuelve (nil, nil) si el sobre nunca se ha despachado.
	GetByEnvelope(ctx context.Context, envelopeID string) (*entity.DispatchRecord, error)
	UpdateLastStatus(ctx context.Context, id, status string) error
}
