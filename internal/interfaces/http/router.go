package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/altiro-cl/dte-api/internal/application/dte"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	FolioAllocator *dte.FolioAllocator
	Pipeline       *dte.GenerationPipeline
	Aggregator     *dte.SobreAggregator
	Dispatcher     *dte.EnvioDispatcher
	Resolver       *dte.StatusResolver
	JWTSecret      string
}

// Router registra las rutas de la API. Todas las rutas de negocio van bajo
// el middleware de auth: cada token está acotado a una empresa.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	// Folios
	folioHandler := NewFolioHandler(deps.FolioAllocator)
	folios := api.Group("/folios")
	folios.Post("/:empresaID", folioHandler.Allocate)
	folios.Get("/:empresaID", folioHandler.Available)

	// Guías de despacho
	dteHandler := NewDTEHandler(deps.Pipeline, deps.Resolver)
	dteGroup := api.Group("/dte")
	dteGroup.Post("/:empresaID", dteHandler.Generate)
	dteGroup.Get("/:empresaID/consultar-estado", dteHandler.ConsultarEstado)
	dteGroup.Get("/:empresaID/:folio/validar", dteHandler.Validate)

	// Sobres de envío
	sobreHandler := NewSobreHandler(deps.Aggregator, deps.Dispatcher, deps.Resolver)
	sobres := api.Group("/sobre")
	sobres.Post("/:empresaID", sobreHandler.Aggregate)
	sobres.Post("/:empresaID/enviar", sobreHandler.Dispatch)
	sobres.Get("/:empresaID/:trackID", sobreHandler.Status)
}
