package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/altiro-cl/dte-api/internal/application/dte"
	"github.com/altiro-cl/dte-api/internal/infrastructure/certs"
	infrapdf "github.com/altiro-cl/dte-api/internal/infrastructure/pdf"
	"github.com/altiro-cl/dte-api/internal/infrastructure/postgres"
	"github.com/altiro-cl/dte-api/internal/infrastructure/simpleapi"
	"github.com/altiro-cl/dte-api/internal/infrastructure/storage"
	httpRouter "github.com/altiro-cl/dte-api/internal/interfaces/http"
	"github.com/altiro-cl/dte-api/pkg/config"
	"github.com/altiro-cl/dte-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Int("ambiente_sii", cfg.SII.Ambiente).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	companyRepo := postgres.NewCompanyRepository(pool)
	docRepo := postgres.NewDocumentRepository(pool)
	envelopeRepo := postgres.NewEnvelopeRepository(pool)
	dispatchRepo := postgres.NewDispatchRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Bucket de artefactos. Sin STORAGE_BUCKET solo se permite el store en
	// memoria en development (artefactos volátiles, útil para probar en local).
	var store dte.ArtifactStore
	if cfg.Storage.Bucket != "" {
		gcsClient, err := gcs.NewClient(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("cliente de Cloud Storage")
		}
		defer gcsClient.Close()
		store = storage.NewGCSStore(gcsClient, cfg.Storage.Bucket, log)
	} else {
		if cfg.App.Env != "development" {
			log.Fatal().Msg("STORAGE_BUCKET es obligatorio fuera de development")
		}
		log.Warn().Msg("sin STORAGE_BUCKET: usando store en memoria (artefactos volátiles)")
		store = storage.NewMemoryStore()
	}

	gateway := simpleapi.NewClient(cfg.SII)
	certProvider := certs.NewStoreProvider(store, log)
	renderer := infrapdf.NewHTTPRenderer(cfg.PDF, log)

	folioAllocator := dte.NewFolioAllocator(gateway, certProvider, companyRepo, cfg.SII.Ambiente, log)
	pipeline := dte.NewGenerationPipeline(gateway, store, certProvider, renderer, companyRepo, docRepo, log)
	aggregator := dte.NewSobreAggregator(gateway, store, certProvider, companyRepo, docRepo, envelopeRepo, txRunner, log)
	dispatcher := dte.NewEnvioDispatcher(gateway, store, certProvider, companyRepo, docRepo, envelopeRepo, dispatchRepo, cfg.SII.Ambiente, log)
	resolver := dte.NewStatusResolver(gateway, store, certProvider, companyRepo, cfg.SII.Ambiente, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 30,
		WriteTimeout: time.Second * 90, // la generación de sobres grandes tarda
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "DTE API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		FolioAllocator: folioAllocator,
		Pipeline:       pipeline,
		Aggregator:     aggregator,
		Dispatcher:     dispatcher,
		Resolver:       resolver,
		JWTSecret:      cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
