package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/altiro-cl/dte-api/internal/application/dte"
	"github.com/altiro-cl/dte-api/internal/domain"
)

var _ dte.ArtifactStore = (*MemoryStore)(nil)

// MemoryStore implementación en memoria del store de artefactos, para
// desarrollo local sin bucket y para tests. Las URLs usan el esquema mem://
// para que salte a la vista si una se filtra a un entorno real.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore construye el store vacío.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, empresaID, kind, seq string, data []byte) (string, error) {
	key := objectName(empresaID, kind, seq)
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp
	return "mem://" + key, nil
}

func (s *MemoryStore) Get(_ context.Context, empresaID, kind, seq string) ([]byte, error) {
	key := objectName(empresaID, kind, seq)
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}
