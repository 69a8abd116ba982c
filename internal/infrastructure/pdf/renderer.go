package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/altiro-cl/dte-api/internal/application/dte"
	"github.com/altiro-cl/dte-api/pkg/config"
	"github.com/altiro-cl/dte-api/pkg/logger"
)

var _ dte.PDFRenderer = (*HTTPRenderer)(nil)

// HTTPRenderer renderiza HTML a PDF contra un servicio Gotenberg
// (endpoint /forms/chromium/convert/html). El HTML llega ya sustituido:
// timbre y logo van embebidos como data URIs, así que el render no
// necesita acceso a ningún recurso externo.
type HTTPRenderer struct {
	httpClient *http.Client
	baseURL    string
	log        *logger.Logger
}

// NewHTTPRenderer construye el renderer.
func NewHTTPRenderer(cfg config.PDFConfig, log *logger.Logger) *HTTPRenderer {
	return &HTTPRenderer{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(cfg.RendererURL, "/"),
		log:        log.ForComponent("pdf-renderer"),
	}
}

// Render convierte el HTML a PDF y devuelve los bytes del archivo.
func (r *HTTPRenderer) Render(ctx context.Context, html string) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, fmt.Errorf("pdf: armar multipart: %w", err)
	}
	if _, err := io.WriteString(part, html); err != nil {
		return nil, fmt.Errorf("pdf: escribir HTML: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("pdf: cerrar multipart: %w", err)
	}

	url := r.baseURL + "/forms/chromium/convert/html"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("pdf: crear request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pdf: llamada al renderer fallida: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20)) // max 32 MB
	if err != nil {
		return nil, fmt.Errorf("pdf: leer respuesta: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pdf: renderer respondió %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	r.log.Debug().Int("bytes", len(body)).Msg("PDF renderizado")
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
