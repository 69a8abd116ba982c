package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/altiro-cl/dte-api/internal/application/dte"
	"github.com/altiro-cl/dte-api/internal/domain"
	"github.com/altiro-cl/dte-api/pkg/logger"
)

var _ dte.ArtifactStore = (*GCSStore)(nil)

// GCSStore almacena los artefactos de emisión en un bucket de Cloud Storage.
//
// Layout de objetos: empresa/{empresaID}/{kind}/{seq}{ext}. La extensión se
// deriva del tipo de artefacto (.xml para CAF/GD/SOBRE, .pdf para GD-PDF,
// .png para LOGO, .pfx para CERT).
type GCSStore struct {
	client *gcs.Client
	bucket string
	log    *logger.Logger
}

// NewGCSStore construye el store sobre un cliente ya autenticado.
func NewGCSStore(client *gcs.Client, bucket string, log *logger.Logger) *GCSStore {
	return &GCSStore{client: client, bucket: bucket, log: log.ForComponent("gcs-store")}
}

// Put sube el artefacto y devuelve su URL pública canónica. La escritura
// sobreescribe: regenerar un folio reemplaza el artefacto anterior.
func (s *GCSStore) Put(ctx context.Context, empresaID, kind, seq string, data []byte) (string, error) {
	object := objectName(empresaID, kind, seq)
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType(kind)

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("escribir %s en bucket %s: %w", object, s.bucket, err)
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return "", fmt.Errorf("finalizar %s (HTTP %d): %w", object, gerr.Code, err)
		}
		return "", fmt.Errorf("finalizar %s: %w", object, err)
	}

	url := fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, object)
	s.log.Debug().Str("object", object).Int("bytes", len(data)).Msg("artefacto subido")
	return url, nil
}

// Get descarga el artefacto; objeto inexistente → domain.ErrNotFound.
func (s *GCSStore) Get(ctx context.Context, empresaID, kind, seq string) ([]byte, error) {
	object := objectName(empresaID, kind, seq)
	r, err := s.client.Bucket(s.bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, object)
		}
		return nil, fmt.Errorf("abrir %s: %w", object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("leer %s: %w", object, err)
	}
	return data, nil
}

func objectName(empresaID, kind, seq string) string {
	return path.Join("empresa", empresaID, strings.ToLower(kind), seq+extension(kind))
}

func extension(kind string) string {
	switch kind {
	case dte.KindGDPDF:
		return ".pdf"
	case dte.KindLogo:
		return ".png"
	case dte.KindCert:
		return ".pfx"
	default:
		return ".xml"
	}
}

func contentType(kind string) string {
	switch kind {
	case dte.KindGDPDF:
		return "application/pdf"
	case dte.KindLogo:
		return "image/png"
	case dte.KindCert:
		return "application/octet-stream"
	default:
		return "application/xml"
	}
}
