package simpleapi

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
)

var _ dte.FiscalGateway = (*Client)(nil)

// Client implementa dte.FiscalGateway contra SimpleAPI (servicios.simpleapi.cl
// para folios, api.simpleapi.cl para el resto). Todas las llamadas son
// multipart/form-data: un campo "input" con la estructura serializada más
// cero o más archivos adjuntos (certificado .pfx, XMLs referenciados).
//
// El cliente nunca interpreta el status: devuelve {status, reason, body}
// tal cual y reserva el error Go para fallos de transporte.
type Client struct {
	httpClient *http.Client
	apiBase    string
	foliosBase string
	authToken  string
}

// NewClient construye el cliente con un timeout generoso: la generación de
// sobres con muchos folios puede tardar varios segundos.
func NewClient(cfg config.SIIConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiBase:    strings.TrimRight(cfg.APIBaseURL, "/"),
		foliosBase: strings.TrimRight(cfg.FoliosBaseURL, "/"),
		authToken:  cfg.AuthToken,
	}
}

// filePart archivo adjunto de la petición multipart.
type filePart struct {
	filename string
	content  []byte
}

func certPart(cred dte.Credential) filePart {
	return filePart{filename: "certificado.pfx", content: cred.PFX}
}

func xmlPart(kind string, seq string, content []byte) filePart {
	return filePart{filename: fmt.Sprintf("%s_%s.xml", kind, seq), content: content}
}

// post arma y ejecuta la petición multipart. input vacío omite el campo.
func (c *Client) post(ctx context.Context, url, input string, files []filePart) (dte.GatewayResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if input != "" {
		if err := w.WriteField("input", input); err != nil {
			return dte.GatewayResponse{}, fmt.Errorf("simpleapi: campo input: %w", err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.filename)
		if err != nil {
			return dte.GatewayResponse{}, fmt.Errorf("simpleapi: adjuntar %s: %w", f.filename, err)
		}
		if _, err := part.Write(f.content); err != nil {
			return dte.GatewayResponse{}, fmt.Errorf("simpleapi: escribir %s: %w", f.filename, err)
		}
	}
	if err := w.Close(); err != nil {
		return dte.GatewayResponse{}, fmt.Errorf("simpleapi: cerrar multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return dte.GatewayResponse{}, fmt.Errorf("simpleapi: crear request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return dte.GatewayResponse{}, fmt.Errorf("simpleapi: timeout o cancelación: %w", ctx.Err())
		}
		return dte.GatewayResponse{}, fmt.Errorf("simpleapi: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20)) // max 8 MB
	if err != nil {
		return dte.GatewayResponse{}, fmt.Errorf("simpleapi: leer respuesta: %w", err)
	}

	return dte.GatewayResponse{
		StatusCode: resp.StatusCode,
		Reason:     reasonPhrase(resp),
		Body:       body,
	}, nil
}

// reasonPhrase extrae el reason del status line ("200 OK" → "OK").
func reasonPhrase(resp *http.Response) string {
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprintf("%d", resp.StatusCode)))
}
