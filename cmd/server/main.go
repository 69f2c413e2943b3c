package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/dicom-study-loader/internal/adapters"
	"github.com/otcheredev/dicom-study-loader/internal/cache"
	"github.com/otcheredev/dicom-study-loader/internal/config"
	"github.com/otcheredev/dicom-study-loader/internal/database"
	"github.com/otcheredev/dicom-study-loader/internal/extractor"
	"github.com/otcheredev/dicom-study-loader/internal/handlers"
	"github.com/otcheredev/dicom-study-loader/internal/imaging"
	"github.com/otcheredev/dicom-study-loader/internal/metrics"
	"github.com/otcheredev/dicom-study-loader/internal/middleware"
	"github.com/otcheredev/dicom-study-loader/internal/models"
	"github.com/otcheredev/dicom-study-loader/internal/parser"
	"github.com/otcheredev/dicom-study-loader/internal/recents"
	"github.com/otcheredev/dicom-study-loader/internal/repository"
	"github.com/otcheredev/dicom-study-loader/internal/services"
	"github.com/otcheredev/dicom-study-loader/internal/source"
	"github.com/otcheredev/dicom-study-loader/internal/storage"
	"github.com/otcheredev/dicom-study-loader/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	log.Info().Msg("Starting DICOM study loader")

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer)
	}

	// Key-value storage for handles, recents and the persisted cache
	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.Close()
	log.Info().Str("backend", cfg.Storage.Backend).Str("path", cfg.Storage.Path).Msg("Storage opened")

	checks := map[string]handlers.Check{
		"storage": func(ctx context.Context) error {
			_, err := store.Get(ctx, "health")
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return err
		},
	}

	loaderOpts := []services.Option{
		services.WithRecents(recents.NewManager(store, recents.WithLimit(cfg.Loader.RecentLimit))),
		services.WithMetrics(m),
	}
	handleStore := source.NewHandleStore(store, nil)
	loaderOpts = append(loaderOpts, services.WithHandleStore(handleStore))

	// Initialize cache
	if cfg.Cache.Enabled {
		cacheImpl, err := cache.New(cfg.Cache.Type, cache.RedisOptions{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, store)
		if err != nil {
			log.Fatal().Err(err).Str("type", cfg.Cache.Type).Msg("Failed to initialize cache")
		}
		defer cacheImpl.Close()
		loaderOpts = append(loaderOpts, services.WithStudyCache(cache.NewStudyCache(cacheImpl)))
		checks["cache"] = func(ctx context.Context) error {
			_, err := cacheImpl.Exists(ctx, "health")
			return err
		}
		log.Info().Str("type", cfg.Cache.Type).Msg("Study cache initialized")
	} else {
		log.Info().Msg("Study cache disabled")
	}

	// Load audit trail
	var auditRepo *repository.LoadAuditRepository
	if cfg.Database.Enabled {
		dbConfig := database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			LogLevel: cfg.Database.LogLevel,
		}
		if err := database.Connect(dbConfig); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer database.Close()

		auditRepo = repository.NewLoadAuditRepository()
		loaderOpts = append(loaderOpts, services.WithAuditRecorder(auditRepo))
		checks["database"] = database.Ping
	}

	// Parsing pipeline
	registry, err := imaging.NewMemoryRegistry(cfg.Loader.ImageRegistrySize)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create image registry")
	}
	ex, err := extractor.New(cfg.Loader.ExtraTags...)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid EXTRA_TAGS")
	}
	studyLoader := services.NewStudyLoader(parser.New(ex, registry, parser.WithMetrics(m)), loaderOpts...)

	// Vision detector
	adapterFactory := adapters.NewAdapterFactory()
	defer adapterFactory.CloseAll()

	var visionHandler *handlers.VisionHandler
	if cfg.Vision.Enabled {
		detector, err := adapterFactory.GetAdapter(models.DetectorConfig{
			Name:     "vision",
			Type:     models.DetectorTypeSidecar,
			Endpoint: cfg.Vision.BaseURL,
			Timeout:  cfg.Vision.Timeout,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create vision detector")
		}
		visionHandler = handlers.NewVisionHandler(detector)
		log.Info().Str("endpoint", cfg.Vision.BaseURL).Msg("Vision detector enabled")
	}

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(checks)
	studyHandler := handlers.NewStudyHandler(studyLoader, handleStore,
		handlers.WithUploadSpool(cfg.Loader.UploadDir, cfg.Loader.UploadRetention))
	defer studyHandler.Close()
	recentsHandler := handlers.NewRecentsHandler(studyLoader)
	cacheHandler := handlers.NewCacheHandler(studyLoader)
	imageHandler := handlers.NewImageHandler(registry)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Responses other than images are JSON; compress them
		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Compress(5))

			r.Post("/studies/load", studyHandler.Load)
			r.Post("/studies/upload", studyHandler.Upload)

			r.Get("/recents", recentsHandler.List)
			r.Delete("/recents", recentsHandler.Clear)
			r.Post("/recents/{index}/reload", recentsHandler.Reload)

			r.Delete("/cache", cacheHandler.Clear)
			r.Delete("/cache/{key}", cacheHandler.Evict)

			if auditRepo != nil {
				r.Get("/audits", handlers.NewAuditHandler(auditRepo).List)
			}
			if visionHandler != nil {
				r.Post("/vision/detect", visionHandler.Detect)
				r.Get("/vision/status", visionHandler.Status)
			}
		})

		r.Get("/images/{imageId}", imageHandler.Get)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
