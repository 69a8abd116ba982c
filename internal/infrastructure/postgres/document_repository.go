package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/altiro-cl/dte-api/internal/domain"
	"github.com/altiro-cl/dte-api/internal/domain/entity"
	"github.com/altiro-cl/dte-api/internal/domain/repository"
)

// Asegura que DocumentRepo implementa repository.DocumentRepository.
var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo implementación sobre PostgreSQL (usable con pool o tx).
// El detalle de líneas se guarda como JSONB: el detalle nunca se consulta
// por línea, solo viaja entero hacia el gateway.
type DocumentRepo struct {
	q Querier
}

// NewDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDocumentRepository(q Querier) *DocumentRepo {
	return &DocumentRepo{q: q}
}

// Create persiste un documento nuevo. El par (empresa, tipo, folio) es único.
func (r *DocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	detalle, err := json.Marshal(doc.Detalle)
	if err != nil {
		return fmt.Errorf("serializar detalle: %w", err)
	}
	query := `
		INSERT INTO documents (id, empresa_id, tipo_dte, folio, rut_receptor, fecha_emision,
			monto_total, detalle, estado, xml_url, pdf_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err = r.q.Exec(ctx, query,
		doc.ID, doc.EmpresaID, doc.TipoDTE, doc.Folio, doc.RutReceptor, doc.FechaEmision,
		doc.MontoTotal, detalle, doc.Estado, nullIfEmpty(doc.XMLURL), nullIfEmpty(doc.PDFURL),
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: folio %d ya registrado para la empresa %s", domain.ErrConflict, doc.Folio, doc.EmpresaID)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// UpdateArtifacts persiste estado, URLs de artefactos y el contenido del
// documento (regenerar un folio puede cambiar receptor, montos y detalle).
func (r *DocumentRepo) UpdateArtifacts(ctx context.Context, doc *entity.Document) error {
	detalle, err := json.Marshal(doc.Detalle)
	if err != nil {
		return fmt.Errorf("serializar detalle: %w", err)
	}
	query := `
		UPDATE documents
		SET rut_receptor = $2, fecha_emision = $3, monto_total = $4, detalle = $5,
			estado = $6, xml_url = $7, pdf_url = $8, updated_at = $9
		WHERE id = $1`
	cmd, err := r.q.Exec(ctx, query,
		doc.ID, doc.RutReceptor, doc.FechaEmision, doc.MontoTotal, detalle,
		doc.Estado, nullIfEmpty(doc.XMLURL), nullIfEmpty(doc.PDFURL), doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: documento %s", domain.ErrNotFound, doc.ID)
	}
	return nil
}

// GetByFolio obtiene el documento de un folio. Devuelve (nil, nil) si no existe.
func (r *DocumentRepo) GetByFolio(ctx context.Context, empresaID string, tipoDTE, folio int) (*entity.Document, error) {
	query := `
		SELECT id, empresa_id, tipo_dte, folio, rut_receptor, fecha_emision,
			monto_total, detalle, estado, COALESCE(xml_url, ''), COALESCE(pdf_url, ''),
			created_at, updated_at
		FROM documents WHERE empresa_id = $1 AND tipo_dte = $2 AND folio = $3`
	doc, err := scanDocument(r.q.QueryRow(ctx, query, empresaID, tipoDTE, folio))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// ListByFolios devuelve los documentos de la empresa cuyos folios están en la lista.
func (r *DocumentRepo) ListByFolios(ctx context.Context, empresaID string, tipoDTE int, folios []int) ([]*entity.Document, error) {
	query := `
		SELECT id, empresa_id, tipo_dte, folio, rut_receptor, fecha_emision,
			monto_total, detalle, estado, COALESCE(xml_url, ''), COALESCE(pdf_url, ''),
			created_at, updated_at
		FROM documents
		WHERE empresa_id = $1 AND tipo_dte = $2 AND folio = ANY($3)
		ORDER BY folio`
	rows, err := r.q.Query(ctx, query, empresaID, tipoDTE, folios)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var list []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		list = append(list, doc)
	}
	return list, rows.Err()
}

// UpdateEstadoByFolios transiciona en bloque el estado de un conjunto de folios.
func (r *DocumentRepo) UpdateEstadoByFolios(ctx context.Context, empresaID string, tipoDTE int, folios []int, estado string) error {
	query := `
		UPDATE documents SET estado = $4, updated_at = now()
		WHERE empresa_id = $1 AND tipo_dte = $2 AND folio = ANY($3)`
	if _, err := r.q.Exec(ctx, query, empresaID, tipoDTE, folios, estado); err != nil {
		return fmt.Errorf("update estado folios: %w", err)
	}
	return nil
}

// pgxScanner cubre pgx.Row y pgx.Rows para compartir el scan.
type pgxScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row pgxScanner) (*entity.Document, error) {
	var d entity.Document
	var detalle []byte
	if err := row.Scan(
		&d.ID, &d.EmpresaID, &d.TipoDTE, &d.Folio, &d.RutReceptor, &d.FechaEmision,
		&d.MontoTotal, &detalle, &d.Estado, &d.XMLURL, &d.PDFURL,
		&d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(detalle) > 0 {
		if err := json.Unmarshal(detalle, &d.Detalle); err != nil {
			return nil, fmt.Errorf("deserializar detalle: %w", err)
		}
	}
	return &d, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
