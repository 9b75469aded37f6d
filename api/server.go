// Package api provides the HTTP read API for coinsync.
//
// It serves the coin catalog merged with the freshest cached prices, the raw
// data table, service health, and a WebSocket stream of price updates.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/seenimoa/coinsync/internal/config"
	"github.com/seenimoa/coinsync/internal/pricecache"
	"github.com/seenimoa/coinsync/internal/scheduler"
	"github.com/seenimoa/coinsync/internal/store"
)

const (
	// maxListedCoins caps GET /coins, and GET /airtable-data unless
	// configured otherwise.
	maxListedCoins = 20

	msgInternal = "Internal server error"
	msgNotFound = "Coin not found"
)

// JobLister reports background job status for /health.
type JobLister interface {
	Jobs() []scheduler.JobStatus
}

// Deps are the collaborators the server reads from.
type Deps struct {
	Config  *config.Config
	Store   store.Store
	Cache   *pricecache.Cache
	Jobs    JobLister // optional
	Hub     *WSHub    // optional; created when nil
	Log     zerolog.Logger
	Version string
}

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	store   store.Store
	cache   *pricecache.Cache
	jobs    JobLister
	wsHub   *WSHub
	log     zerolog.Logger
	version string
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(d Deps) *Server {
	hub := d.Hub
	if hub == nil {
		hub = NewWSHub(d.Log)
	}
	version := d.Version
	if version == "" {
		version = "dev"
	}

	srv := &Server{
		cfg:     d.Config,
		store:   d.Store,
		cache:   d.Cache,
		jobs:    d.Jobs,
		wsHub:   hub,
		log:     d.Log.With().Str("component", "api").Logger(),
		version: version,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub; it doubles as the event publisher for the
// background jobs.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.wsHub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	origins := []string{"*"}
	if s.cfg != nil && len(s.cfg.Server.CORSOrigins) > 0 {
		origins = s.cfg.Server.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/coins", s.handleCoins)
	r.Get("/coins/price/{coinId}", s.handleCoinPrice)
	r.Get("/airtable-data", s.handleTableData)

	r.Get("/health", s.handleHealth)
	r.Get("/config", s.handleGetConfig)
	r.Get("/ws/prices", s.handleWebSocket)

	return r
}

// requestLogger logs one line per request with zerolog.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Str("client_ip", r.RemoteAddr).
					Str("request_id", middleware.GetReqID(r.Context())).
					Msg("HTTP Request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
