package postgres

import (
	"context"
	"fmt"

	"github.com/altiro-cl/dte-api/internal/domain"
	"github.com/altiro-cl/dte-api/internal/domain/entity"
	"github.com/altiro-cl/dte-api/internal/domain/repository"
)

// Asegura que EnvelopeRepo implementa repository.EnvelopeRepository.
var _ repository.EnvelopeRepository = (*EnvelopeRepo)(nil)

// EnvelopeRepo implementación sobre PostgreSQL (usable con pool o tx).
//
// La membresía de folios vive en sobre_folios con constraint único sobre
// (empresa_id, folio): la exclusividad "un folio pertenece a lo más a un
// sobre" la garantiza la base, no solo la validación previa de la app.
type EnvelopeRepo struct {
	q Querier
}

// NewEnvelopeRepository construye el adaptador. Pasar pool o tx (Querier).
func NewEnvelopeRepository(q Querier) *EnvelopeRepo {
	return &EnvelopeRepo{q: q}
}

// Create persiste el sobre y su conjunto de folios (congelado desde aquí).
// Folio ya ensobrado → domain.ErrConflict vía el constraint único.
func (r *EnvelopeRepo) Create(ctx context.Context, env *entity.Envelope) error {
	query := `
		INSERT INTO sobres (id, empresa_id, xml_url, estado, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.q.Exec(ctx, query,
		env.ID, env.EmpresaID, nullIfEmpty(env.XMLURL), env.Estado, env.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert sobre: %w", err)
	}

	for _, folio := range env.Folios {
		if _, err := r.q.Exec(ctx,
			`INSERT INTO sobre_folios (sobre_id, empresa_id, folio) VALUES ($1, $2, $3)`,
			env.ID, env.EmpresaID, folio,
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: el folio %d ya pertenece a otro sobre", domain.ErrConflict, folio)
			}
			return fmt.Errorf("insert sobre_folio %d: %w", folio, err)
		}
	}
	return nil
}

// GetByID obtiene un sobre con sus folios. Devuelve (nil, nil) si no existe.
func (r *EnvelopeRepo) GetByID(ctx context.Context, empresaID, id string) (*entity.Envelope, error) {
	query := `
		SELECT id, empresa_id, COALESCE(xml_url, ''), estado, created_at
		FROM sobres WHERE empresa_id = $1 AND id = $2`
	var env entity.Envelope
	err := r.q.QueryRow(ctx, query, empresaID, id).Scan(
		&env.ID, &env.EmpresaID, &env.XMLURL, &env.Estado, &env.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sobre: %w", err)
	}

	rows, err := r.q.Query(ctx,
		`SELECT folio FROM sobre_folios WHERE sobre_id = $1 ORDER BY folio`, id)
	if err != nil {
		return nil, fmt.Errorf("folios del sobre: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var folio int
		if err := rows.Scan(&folio); err != nil {
			return nil, fmt.Errorf("scan folio: %w", err)
		}
		env.Folios = append(env.Folios, folio)
	}
	return &env, rows.Err()
}

// EnvelopedFolios devuelve el subconjunto de folios que ya pertenecen a algún sobre de la empresa.
func (r *EnvelopeRepo) EnvelopedFolios(ctx context.Context, empresaID string, folios []int) ([]int, error) {
	query := `
		SELECT folio FROM sobre_folios
		WHERE empresa_id = $1 AND folio = ANY($2)
		ORDER BY folio`
	rows, err := r.q.Query(ctx, query, empresaID, folios)
	if err != nil {
		return nil, fmt.Errorf("folios ensobrados: %w", err)
	}
	defer rows.Close()

	var taken []int
	for rows.Next() {
		var folio int
		if err := rows.Scan(&folio); err != nil {
			return nil, fmt.Errorf("scan folio: %w", err)
		}
		taken = append(taken, folio)
	}
	return taken, rows.Err()
}

// UpdateEstado transiciona el estado del sobre.
func (r *EnvelopeRepo) UpdateEstado(ctx context.Context, empresaID, id, estado string) error {
	cmd, err := r.q.Exec(ctx,
		`UPDATE sobres SET estado = $3 WHERE empresa_id = $1 AND id = $2`,
		empresaID, id, estado)
	if err != nil {
		return fmt.Errorf("update estado sobre: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: sobre %s", domain.ErrNotFound, id)
	}
	return nil
}

// Asegura que DispatchRepo implementa repository.DispatchRepository.
var _ repository.DispatchRepository = (*DispatchRepo)(nil)

// DispatchRepo registros de despacho (track IDs del SII) sobre PostgreSQL.
type DispatchRepo struct {
	q Querier
}

// NewDispatchRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDispatchRepository(q Querier) *DispatchRepo {
	return &DispatchRepo{q: q}
}

// Create persiste el registro de un despacho.
func (r *DispatchRepo) Create(ctx context.Context, rec *entity.DispatchRecord) error {
	query := `
		INSERT INTO despachos (id, sobre_id, track_id, sent_at, last_status)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.q.Exec(ctx, query,
		rec.ID, rec.EnvelopeID, rec.TrackID, rec.SentAt, rec.LastStatus,
	); err != nil {
		return fmt.Errorf("insert despacho: %w", err)
	}
	return nil
}

// GetByEnvelope devuelve el despacho más reciente del sobre, o (nil, nil) si nunca se despachó.
func (r *DispatchRepo) GetByEnvelope(ctx context.Context, envelopeID string) (*entity.DispatchRecord, error) {
	query := `
		SELECT id, sobre_id, track_id, sent_at, last_status
		FROM despachos WHERE sobre_id = $1
		ORDER BY sent_at DESC LIMIT 1`
	var rec entity.DispatchRecord
	err := r.q.QueryRow(ctx, query, envelopeID).Scan(
		&rec.ID, &rec.EnvelopeID, &rec.TrackID, &rec.SentAt, &rec.LastStatus,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get despacho: %w", err)
	}
	return &rec, nil
}

// UpdateLastStatus actualiza el último estado conocido del despacho.
func (r *DispatchRepo) UpdateLastStatus(ctx context.Context, id, status string) error {
	cmd, err := r.q.Exec(ctx,
		`UPDATE despachos SET last_status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update despacho: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: despacho %s", domain.ErrNotFound, id)
	}
	return nil
}
