package ui

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"sync"
	"time"

	"exoai/internal/analysis"
	"exoai/internal/api"
	"exoai/internal/telemetry"
	"exoai/internal/upload"
	"exoai/ports"
	"exoai/ui/middleware"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// Options holds the server dependencies and settings
type Options struct {
	Predictor      ports.PredictorPort
	Store          ports.SessionRepository
	Metrics        *telemetry.Metrics
	CookieName     string
	SessionTTL     time.Duration
	MaxUploadBytes int64
	GinMode        string
}

// Server represents the web server for the ExoAI dashboard
type Server struct {
	router    *gin.Engine
	templates *template.Template
	predictor ports.PredictorPort
	store     ports.SessionRepository
	metrics   *telemetry.Metrics

	cookieName     string
	sessionTTL     time.Duration
	maxUploadBytes int64

	// one memoizing projector per session, so paging does not re-filter
	projectors *cache.Cache
	inflight   sync.Map

	uploadNotes  template.HTML
	metricsNotes template.HTML
}

// NewServer creates a new web server instance
func NewServer(opts Options) (*Server, error) {
	if opts.Predictor == nil || opts.Store == nil {
		return nil, fmt.Errorf("predictor and session store are required")
	}
	if opts.GinMode != "" {
		gin.SetMode(opts.GinMode)
	}
	if opts.CookieName == "" {
		opts.CookieName = "exoai_session"
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 2 * time.Hour
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = upload.MaxFileSize
	}
	if opts.Metrics == nil {
		m, err := telemetry.NewMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
		opts.Metrics = m
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	uploadNotes, err := loadContent("upload")
	if err != nil {
		return nil, err
	}
	metricsNotes, err := loadContent("metrics")
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	s := &Server{
		router:         router,
		templates:      templates,
		predictor:      opts.Predictor,
		store:          opts.Store,
		metrics:        opts.Metrics,
		cookieName:     opts.CookieName,
		sessionTTL:     opts.SessionTTL,
		maxUploadBytes: opts.MaxUploadBytes,
		projectors:     cache.New(opts.SessionTTL, opts.SessionTTL*2),
		uploadNotes:    uploadNotes,
		metricsNotes:   metricsNotes,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/debug/prometheus", gin.WrapH(s.metrics.Handler()))

	pages := s.router.Group("/", middleware.EnsureSession(s.cookieName, s.sessionTTL))
	pages.GET("/", s.handleUploadPage)
	pages.POST("/upload", s.handleUpload)
	pages.GET("/analysis", s.handleAnalysis)
	pages.GET("/analysis/export.csv", s.handleExportCSV)
	pages.GET("/analysis/export.xlsx", s.handleExportXLSX)
	pages.GET("/metrics", s.handleMetrics)

	// JSON endpoints live on a chi router that sees paths without the /api prefix
	apiHandler := api.NewHandler(s.predictor, s.store, middleware.SessionFromRequest)
	pages.Any("/api/*path", gin.WrapH(http.StripPrefix("/api", apiHandler.Router())))
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] Starting ExoAI dashboard on http://%s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("[Server] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// projectorFor returns the session's projector, creating it on first use
func (s *Server) projectorFor(sessionID string) *analysis.Projector {
	if cached, found := s.projectors.Get(sessionID); found {
		if p, ok := cached.(*analysis.Projector); ok {
			return p
		}
	}
	p := analysis.NewProjector()
	if err := s.projectors.Add(sessionID, p, cache.DefaultExpiration); err != nil {
		// another request created it first
		if cached, found := s.projectors.Get(sessionID); found {
			if existing, ok := cached.(*analysis.Projector); ok {
				return existing
			}
		}
	}
	return p
}

// forgetProjector drops the memo after a new upload replaces the data
func (s *Server) forgetProjector(sessionID string) {
	s.projectors.Delete(sessionID)
}
