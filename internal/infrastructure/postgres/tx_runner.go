package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/altiro-cl/dte-api/internal/application/dte"
	"github.com/altiro-cl/dte-api/internal/domain/repository"
)

// Asegura que TxRunner implementa dte.SobreTxRunner.
var _ dte.SobreTxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunSobre inicia una transacción, ejecuta fn con repos atados a la tx y hace
// Commit o Rollback. La creación del sobre y la transición de sus folios a
// ENSOBRADO quedan atómicas.
func (r *TxRunner) RunSobre(ctx context.Context, fn func(
	envelopes repository.EnvelopeRepository,
	docs repository.DocumentRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	envelopeRepo := NewEnvelopeRepository(tx)
	docRepo := NewDocumentRepository(tx)

	if err := fn(envelopeRepo, docRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
