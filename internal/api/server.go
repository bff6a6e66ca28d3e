// Package api provides the CedarPress document service REST API.
package api

import (
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/CedarPress/core/cache"
	"github.com/FocuswithJustin/CedarPress/core/catalog"
	"github.com/FocuswithJustin/CedarPress/core/document"
	"github.com/FocuswithJustin/CedarPress/core/fetch"
	"github.com/FocuswithJustin/CedarPress/core/typeset"
	"github.com/FocuswithJustin/CedarPress/internal/ledger"
	"github.com/FocuswithJustin/CedarPress/internal/logging"
	"github.com/FocuswithJustin/CedarPress/internal/server"
)

// Server wires the document pipeline behind HTTP handlers: catalog
// client, provisioner, typesetter, run ledger, job store, and the
// WebSocket hub.
type Server struct {
	cfg         Config
	catalog     *catalog.Client
	provisioner *fetch.Provisioner
	typesetter  document.Typesetter
	ledger      *ledger.Store
	docCache    *cache.DocumentCache
	hub         *Hub
	jobs        *JobStore
	upgrader    websocket.Upgrader
	started     time.Time
}

// NewServer validates the configuration and assembles the service.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.WorkingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	s := &Server{
		cfg: cfg,
		catalog: catalog.New(catalog.Config{
			URL: cfg.CatalogURL,
			TTL: cfg.CatalogTTL,
		}),
		provisioner: fetch.NewProvisioner(fetch.Config{Timeout: cfg.FetchTimeout}),
		docCache:    cache.NewDefaultDocumentCache(),
		hub:         NewHub(),
		jobs:        NewJobStore(),
		upgrader:    newUpgrader(cfg.AllowedOrigins),
		started:     time.Now(),
	}

	if cfg.TypesetCommand != "" {
		s.typesetter = typeset.New(typeset.Config{
			Command:  cfg.TypesetCommand,
			Engine:   cfg.TypesetEngine,
			Template: cfg.TypesetTemplate,
		})
	}

	if cfg.LedgerPath != "" {
		store, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			return nil, err
		}
		s.ledger = store
	}

	return s, nil
}

// Close releases the server's resources.
func (s *Server) Close() error {
	if s.ledger != nil {
		return s.ledger.Close()
	}
	return nil
}

// newGenerator builds a pipeline generator sharing the server's
// collaborators. Each async job gets its own generator so its progress
// callback stays scoped to that job.
func (s *Server) newGenerator(progress document.Progress) (*document.Generator, error) {
	deps := document.Deps{
		Resolver:    s.catalog,
		Provisioner: s.provisioner,
		Typesetter:  s.typesetter,
		Cache:       s.docCache,
		Progress:    progress,
	}
	if s.ledger != nil {
		deps.Recorder = s.ledger
	}

	return document.New(document.Config{
		WorkingDir: s.cfg.WorkingDir,
		OutputDir:  s.cfg.OutputDir,
	}, deps)
}

// Routes configures all HTTP routes.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health/status", s.handleHealthStatus)
	mux.HandleFunc("/api/v1/documents", s.handleDocuments)
	mux.HandleFunc("/api/v1/documents/", s.handleDocumentByKey)
	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobByID)
	mux.HandleFunc("/ws/jobs/", s.handleJobSocket)
	mux.HandleFunc("/api/v1/language_codes", s.handleLanguageCodes)
	mux.HandleFunc("/api/v1/language_codes_and_names", s.handleLanguageCodesAndNames)
	mux.HandleFunc("/api/v1/resource_types", s.handleResourceTypes)
	mux.HandleFunc("/api/v1/resource_codes", s.handleResourceCodes)

	return mux
}

// RecoveryMiddleware turns handler panics into 500 responses instead of
// dropped connections.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.ErrorContext(r.Context(), "handler panic",
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()))
				respondError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Start runs the hub and serves the API until the listener fails.
func (s *Server) Start() error {
	go s.hub.Run()

	protocol := "http"
	wsProtocol := "ws"
	if s.cfg.TLS.Enabled {
		protocol = "https"
		wsProtocol = "wss"
		logging.Info("TLS enabled", "cert_file", s.cfg.TLS.CertFile)
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}
	logging.ServerStartup("rest_api", protocol, s.cfg.Port,
		"websocket_protocol", wsProtocol,
		"working_dir", server.AbsPath(s.cfg.WorkingDir),
		"output_dir", server.AbsPath(s.cfg.OutputDir))

	// Build middleware chain, innermost first
	var handler http.Handler = RecoveryMiddleware(s.Routes())

	cspConfig := server.DocumentCSPConfig()
	handler = server.SecurityHeaders(cspConfig, handler)

	if s.cfg.Auth.Enabled {
		handler = AuthMiddleware(s.cfg.Auth, handler)
		logging.Info("authentication enabled", "note", "API key required")
	} else {
		logging.Info("authentication disabled", "note", "all requests allowed")
	}

	if s.cfg.RateLimitRequests > 0 {
		rateLimitConfig := RateLimiterConfig{
			RequestsPerMinute: s.cfg.RateLimitRequests,
			BurstSize:         s.cfg.RateLimitBurst,
		}
		if rateLimitConfig.BurstSize == 0 {
			rateLimitConfig.BurstSize = 10
		}
		rateLimiter := NewRateLimiter(rateLimitConfig)
		handler = rateLimiter.Middleware(handler)
		logging.Info("rate limiting enabled",
			"requests_per_minute", rateLimitConfig.RequestsPerMinute,
			"burst_size", rateLimitConfig.BurstSize)
	}

	corsConfig := server.CORSConfig{
		AllowedOrigins: s.cfg.AllowedOrigins,
	}
	handler = server.CORSMiddleware(corsConfig, handler)

	handler = logging.CombinedMiddleware(handler)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if s.cfg.TLS.Enabled {
		return http.ListenAndServeTLS(addr, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile, handler)
	}
	return http.ListenAndServe(addr, handler)
}
