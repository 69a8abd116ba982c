package repository

import (
	"context"

	"github.com/altiro-cl/dte-api/internal/domain/entity"
)

// DocumentRepository acceso a documentos (DTEs) y su ciclo de vida.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	// UpdateArtifacts persiste estado y URLs de artefactos (XML/PDF) del documento.
	UpdateArtifacts(ctx context.Context, doc *entity.Document) error
	// GetByFolio devuelve (nil, nil) si no existe documento para ese folio.
	GetByFolio(ctx context.Context, empresaID string, tipoDTE, folio int) (*entity.Document, error)
	// ListByFolios devuelve los documentos de la empresa cuyos folios están en la lista.
	ListByFolios(ctx context.Context, empresaID string, tipoDTE int, folios []int) ([]*entity.Document, error)
	// UpdateEstadoByFolios transiciona en bloque el estado de un conjunto de folios.
	UpdateEstadoByFolios(ctx context.Context, empresaID string, tipoDTE int, folios []int, estado string) error
}
