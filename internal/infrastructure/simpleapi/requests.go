package simpleapi

import (
	"context"
	"fmt"
	"strconv"

	"github.com/altiro-cl/dte-api/internal/application/dte"
	"github.com/altiro-cl/dte-api/internal/domain/entity"
)

// Builders tipados por endpoint. Cada método arma su inputDict y delega la
// serialización y el transporte a encode.go / client.go.

func certDict(cred dte.Credential) inputDict {
	return inputDict{
		{"Rut", cred.RutFirmante},
		{"Password", cred.Password},
	}
}

// SolicitarFolios solicita un bloque de folios del tipo indicado.
// POST {foliosBase}/folios/get/{tipo}/{cantidad}
func (c *Client) SolicitarFolios(ctx context.Context, cred dte.Credential, rutEmpresa string, tipoDTE, cantidad, ambiente int) (dte.GatewayResponse, error) {
	url := fmt.Sprintf("%s/folios/get/%d/%d", c.foliosBase, tipoDTE, cantidad)
	input := inputDict{
		{"Rut", cred.RutFirmante},
		{"Password", cred.Password},
		{"RutEmpresa", rutEmpresa},
		{"Ambiente", ambiente},
	}
	return c.post(ctx, url, input.encode(), []filePart{certPart(cred)})
}

// ConsultarFoliosDisponibles consulta los folios restantes del tipo indicado.
// POST {foliosBase}/folios/get/{tipo}/
func (c *Client) ConsultarFoliosDisponibles(ctx context.Context, cred dte.Credential, rutEmpresa string, tipoDTE, ambiente int) (dte.GatewayResponse, error) {
	url := fmt.Sprintf("%s/folios/get/%d/", c.foliosBase, tipoDTE)
	input := inputDict{
		{"Rut", cred.RutFirmante},
		{"Password", cred.Password},
		{"RutEmpresa", rutEmpresa},
		{"Ambiente", ambiente},
	}
	return c.post(ctx, url, input.encode(), []filePart{certPart(cred)})
}

// GenerarDTE genera y firma el XML del documento. Adjunta el certificado y
// el CAF que autoriza el folio.
// POST {apiBase}/dte/generar
func (c *Client) GenerarDTE(ctx context.Context, cred dte.Credential, doc *entity.Document, cafXML []byte) (dte.GatewayResponse, error) {
	detalles := make([]inputDict, len(doc.Detalle))
	for i, l := range doc.Detalle {
		detalles[i] = inputDict{
			{"NmbItem", l.Nombre},
			{"QtyItem", l.Cantidad},
			{"PrcItem", l.Precio},
		}
	}
	documento := inputDict{
		{"Encabezado", inputDict{
			{"IdentificacionDTE", inputDict{
				{"TipoDTE", doc.TipoDTE},
				{"Folio", doc.Folio},
				{"FechaEmision", doc.FechaEmision.Format("2006-01-02")},
			}},
			{"Receptor", inputDict{
				{"Rut", doc.RutReceptor},
			}},
			{"Totales", inputDict{
				{"MntTotal", doc.MontoTotal},
			}},
		}},
		{"Detalles", detalles},
	}
	input := inputDict{
		{"Documento", documento},
		{"Certificado", certDict(cred)},
	}
	files := []filePart{
		certPart(cred),
		xmlPart("CAF", strconv.Itoa(doc.Folio), cafXML),
	}
	return c.post(ctx, c.apiBase+"/dte/generar", input.encode(), files)
}

// GenerarTimbre genera el timbre electrónico (PNG base64) a partir del XML
// ya generado. Sin campo input: solo el archivo.
// POST {apiBase}/impresion/timbre
func (c *Client) GenerarTimbre(ctx context.Context, dteXML []byte, folio int) (dte.GatewayResponse, error) {
	files := []filePart{xmlPart("GD", strconv.Itoa(folio), dteXML)}
	return c.post(ctx, c.apiBase+"/impresion/timbre", "", files)
}

// GenerarSobre genera el sobre de envío con la carátula y los XML de todos
// los folios incluidos.
// POST {apiBase}/envio/generar
func (c *Client) GenerarSobre(ctx context.Context, cred dte.Credential, caratula dte.Caratula, partes []dte.SobreParte) (dte.GatewayResponse, error) {
	input := inputDict{
		{"Certificado", certDict(cred)},
		{"Caratula", inputDict{
			{"RutEmisor", caratula.RutEmisor},
			{"RutEnvia", caratula.RutEnvia},
			{"RutReceptor", caratula.RutReceptor},
			{"FchResol", caratula.FchResol},
			{"NroResol", caratula.NroResol},
		}},
	}
	files := make([]filePart, 0, len(partes)+1)
	files = append(files, certPart(cred))
	for _, p := range partes {
		files = append(files, xmlPart("GD", strconv.Itoa(p.Folio), p.XML))
	}
	return c.post(ctx, c.apiBase+"/envio/generar", input.encode(), files)
}

// EnviarSobre despacha un sobre ya generado al SII.
// POST {apiBase}/envio/enviar
func (c *Client) EnviarSobre(ctx context.Context, cred dte.Credential, envio dte.InfoEnvio, sobreXML []byte) (dte.GatewayResponse, error) {
	input := inputDict{
		{"RutEmpresa", envio.RutEmpresa},
		{"Ambiente", envio.Ambiente},
		{"Certificado", certDict(cred)},
	}
	files := []filePart{
		certPart(cred),
		xmlPart("SOBRE", envio.SobreID, sobreXML),
	}
	return c.post(ctx, c.apiBase+"/envio/enviar", input.encode(), files)
}

// ConsultarEnvio consulta el estado de un envío por track ID.
// POST {apiBase}/consulta/envio
func (c *Client) ConsultarEnvio(ctx context.Context, cred dte.Credential, rutEmpresa, trackID string, ambiente int) (dte.GatewayResponse, error) {
	input := inputDict{
		{"RutEmpresa", rutEmpresa},
		{"TrackId", trackID},
		{"Ambiente", ambiente},
		{"ServidorBoletaREST", "false"},
		{"Certificado", certDict(cred)},
	}
	return c.post(ctx, c.apiBase+"/consulta/envio", input.encode(), []filePart{certPart(cred)})
}

// ValidarDTE valida un XML ya generado contra el validador del proveedor.
// El input "{Tipo:1}" es literal: así lo espera el endpoint.
// POST {apiBase}/consulta/validador
func (c *Client) ValidarDTE(ctx context.Context, dteXML []byte, folio int) (dte.GatewayResponse, error) {
	files := []filePart{xmlPart("GD", strconv.Itoa(folio), dteXML)}
	return c.post(ctx, c.apiBase+"/consulta/validador", "{Tipo:1}", files)
}

// ConsultarEstadoDTE consulta el estado de aceptación de un documento por
// sus atributos declarados.
// POST {apiBase}/consulta/dte
func (c *Client) ConsultarEstadoDTE(ctx context.Context, cred dte.Credential, consulta dte.ConsultaEstadoDTE) (dte.GatewayResponse, error) {
	input := inputDict{
		{"Certificado", certDict(cred)},
		{"RutEmpresa", consulta.RutEmpresa},
		{"RutReceptor", consulta.RutReceptor},
		{"Folio", consulta.Folio},
		{"Total", consulta.Monto},
		{"FechaDTE", consulta.FechaDTE},
		{"Tipo", consulta.TipoDTE},
		{"Ambiente", consulta.Ambiente},
		{"ServidorBoletaREST", "false"},
	}
	return c.post(ctx, c.apiBase+"/consulta/dte", input.encode(), []filePart{certPart(cred)})
}
