package dte

import (
	"context"
	"fmt"

	"github.com/altiro-cl/dte-api/internal/domain"
	"github.com/altiro-cl/dte-api/internal/domain/entity"
	"github.com/altiro-cl/dte-api/internal/domain/repository"
	"github.com/altiro-cl/dte-api/pkg/rut"
)

// loadCompany resuelve la empresa emisora por su ID. El gateway exige el RUT
// con guión; si el registro no lo trae, se deriva del ID (el empresaID es el
// mismo RUT sin puntos ni guión, dígito verificador incluido).
func loadCompany(ctx context.Context, companies repository.CompanyRepository, empresaID string) (*entity.Company, error) {
	company, err := companies.GetByID(ctx, empresaID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, fmt.Errorf("%w: empresa %s", domain.ErrNotFound, empresaID)
	}
	if company.RUT == "" {
		derived, derr := rut.FromEmpresaID(company.ID)
		if derr != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, derr)
		}
		company.RUT = derived
	}
	return company, nil
}
