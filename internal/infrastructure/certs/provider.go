package certs

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/crypto/pkcs12"

	"github.com/altiro-cl/dte-api/internal/application/dte"
	"github.com/altiro-cl/dte-api/internal/domain"
	"github.com/altiro-cl/dte-api/internal/domain/entity"
	"github.com/altiro-cl/dte-api/pkg/logger"
)

var _ dte.CertificateProvider = (*StoreProvider)(nil)

// seq fija del certificado dentro del bucket: hay exactamente uno por empresa.
const certSeq = "certificado"

// StoreProvider resuelve la credencial de firma de una empresa desde el
// bucket de artefactos. El .pfx se valida una vez (que abra con la password
// registrada) y queda cacheado: el certificado de una empresa rota rara vez
// y cada emisión lo adjunta al gateway.
type StoreProvider struct {
	store dte.ArtifactStore
	log   *logger.Logger

	mu    sync.RWMutex
	cache map[string]dte.Credential
}

// NewStoreProvider construye el provider.
func NewStoreProvider(store dte.ArtifactStore, log *logger.Logger) *StoreProvider {
	return &StoreProvider{
		store: store,
		log:   log.ForComponent("cert-provider"),
		cache: make(map[string]dte.Credential),
	}
}

// GetCredential devuelve la credencial de firma de la empresa.
// Certificado ausente → domain.ErrNotFound; password incorrecta o .pfx
// corrupto → domain.ErrValidation.
func (p *StoreProvider) GetCredential(ctx context.Context, company *entity.Company) (dte.Credential, error) {
	p.mu.RLock()
	cred, ok := p.cache[company.ID]
	p.mu.RUnlock()
	if ok {
		return cred, nil
	}

	pfx, err := p.store.Get(ctx, company.ID, dte.KindCert, certSeq)
	if err != nil {
		return dte.Credential{}, fmt.Errorf("certificado de la empresa %s: %w", company.ID, err)
	}

	// Validación temprana: un .pfx que no abre localmente tampoco va a
	// firmar en el gateway, y el diagnóstico aquí es mucho más claro.
	if _, _, err := pkcs12.Decode(pfx, company.CertPassword); err != nil {
		return dte.Credential{}, fmt.Errorf("%w: certificado de %s no abre con la password registrada: %v",
			domain.ErrValidation, company.ID, err)
	}

	cred = dte.Credential{
		RutFirmante: company.RUT,
		Password:    company.CertPassword,
		PFX:         pfx,
	}

	p.mu.Lock()
	p.cache[company.ID] = cred
	p.mu.Unlock()

	p.log.Debug().Str("empresa", company.ID).Msg("credencial de firma cargada")
	return cred, nil
}
