package repository

import (
	"context"

	"github.com/altiro-cl/dte-api/internal/domain/entity"
)

// CompanyRepository acceso a empresas emisoras.
type CompanyRepository interface {
	Create(ctx context.Context, company *entity.Company) error
	// GetByID devuelve (nil, nil) si la empresa no existe.
	GetByID(ctx context.Context, id string) (*entity.Company, error)
}
