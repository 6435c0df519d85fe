package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/liamcoop/premium/internal/config"
	"github.com/liamcoop/premium/internal/logger"
	"github.com/liamcoop/premium/internal/metrics"
	"github.com/liamcoop/premium/predictions"
	"github.com/liamcoop/premium/premium"
	_ "github.com/lib/pq"
)

const maxBodyBytes = 1 << 20

type pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	cfg      *config.Config
	pipeline *premium.Pipeline
	store    predictions.Store
	cache    predictions.Cache
	router   *chi.Mux
}

// NewServer wires handlers around a loaded pipeline. cache may be nil.
func NewServer(cfg *config.Config, pipeline *premium.Pipeline, store predictions.Store, cache predictions.Cache) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		store:    store,
		cache:    cache,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	r.Use(middleware.RequestSize(maxBodyBytes))

	r.Get("/", s.handleRoot)
	r.Post("/predict", s.handlePredict)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/schema", s.handleSchema)
		r.Post("/predict", s.handlePredict)
		r.Post("/predict/batch", s.handlePredictBatch)

		r.Get("/predictions", s.handleListPredictions)
		r.Get("/predictions/{id}", s.handleGetPrediction)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger tags the context with the request ID and logs each request
// once it completes
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		switch {
		case status >= 500:
			logger.ErrorHttp5xx()
		case status >= 400:
			logger.WarnHttp4xx(status)
		}
		logger.L(ctx).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "API running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":        "healthy",
		"artifact":      s.pipeline.Artifact().Name(),
		"model_version": s.pipeline.Artifact().Version(),
	}

	if p, ok := s.store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			body["status"] = "unhealthy"
			body["error"] = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		body["audit"] = "postgres"
	} else {
		body["audit"] = "memory"
	}

	respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, schemaResponse(s.pipeline))
}

func pipelineOptions(cfg *config.Config) premium.Options {
	return premium.Options{
		StrictSchema: cfg.StrictSchema,
		Floor:        cfg.PremiumFloor,
		Decimals:     cfg.PremiumDecimals,
	}
}

// openStore uses Postgres when DATABASE_URL is set and memory otherwise
func openStore(ctx context.Context, cfg *config.Config) (predictions.Store, *sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return predictions.NewMemoryStore(), nil, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return predictions.NewPostgresStore(db), db, nil
}

// openCache layers the local cache in front of Redis when both are
// configured. An unreachable Redis degrades to the local cache.
func openCache(ctx context.Context, cfg *config.Config) (predictions.Cache, func()) {
	noop := func() {}
	if !cfg.CacheEnabled() {
		return nil, noop
	}

	var local predictions.Cache
	if cfg.CacheSize > 0 {
		local = predictions.NewMemoryCache(predictions.CacheConfig{TTL: cfg.CacheTTL, Size: cfg.CacheSize})
	}
	if cfg.RedisURL == "" {
		return local, noop
	}

	shared, err := predictions.NewRedisCache(ctx, cfg.RedisURL, cfg.CacheTTL)
	if err != nil {
		logger.Warn("Redis unavailable, using local cache only", "error", err)
		return local, noop
	}
	closeFn := func() { _ = shared.Close() }
	if local == nil {
		return shared, closeFn
	}
	return predictions.NewTieredCache(local, shared), closeFn
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", "error", err)
	}
	if level, err := logger.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	// the process never serves without a valid artifact
	pipeline, err := premium.Load(cfg.ArtifactPath, pipelineOptions(cfg))
	if err != nil {
		var unavailable *premium.ArtifactUnavailableError
		if errors.As(err, &unavailable) {
			logger.Fatal("Scoring artifact unavailable", "source", unavailable.Source, "error", unavailable.Err)
		}
		logger.Fatal("Failed to build pipeline", "error", err)
	}
	artifact := pipeline.Artifact()
	metrics.ArtifactInfo.WithLabelValues(artifact.Name(), artifact.Version()).Set(1)
	logger.Info("Loaded scoring artifact",
		"name", artifact.Name(),
		"version", artifact.Version(),
		"source", artifact.Source(),
		"segments", artifact.Segments(),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, db, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to connect to audit database", "error", err)
	}
	if db != nil {
		defer db.Close()
		go metrics.StartDBStatsCollector(ctx, db, 15*time.Second)
	}

	cache, closeCache := openCache(ctx, cfg)
	defer closeCache()

	server := NewServer(cfg, pipeline, store, cache)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	_ = logger.Shutdown(shutdownCtx)
	logger.Info("Server stopped")
}
