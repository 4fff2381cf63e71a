package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mselser95/coinflip/internal/reserve"
	"github.com/mselser95/coinflip/internal/settlement"
	"github.com/mselser95/coinflip/pkg/healthprobe"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// CallerHeader carries the authenticated account of the caller. Authentication
// happens upstream of this service.
const CallerHeader = "X-Caller-Address"

// ReserveMonitor reports the latest reserve health check.
type ReserveMonitor interface {
	Status() reserve.Status
}

// CommitmentSource publishes the oracle's server seed commitment.
type CommitmentSource interface {
	Commitment() common.Hash
}

// DevLedger is the in-process token, exposed for local funding only.
type DevLedger interface {
	Mint(account common.Address, amount uint64) error
	Approve(owner common.Address, spender common.Address, amount uint64)
}

// Server provides the settlement API plus metrics and health checks.
type Server struct {
	server        *http.Server
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
}

// Config holds server configuration.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker
	Engine        settlement.Engine
	Access        settlement.Authorizer
	House         common.Address

	Monitor    ReserveMonitor   // optional
	Commitment CommitmentSource // optional
	Stream     http.Handler     // optional, served on /ws
	DevLedger  DevLedger        // optional, enables /api/dev
}

// New creates a new HTTP server.
func New(cfg *Config) (*Server, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.HealthChecker == nil {
		return nil, errors.New("health checker cannot be nil")
	}
	if cfg.Engine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if cfg.DevLedger != nil && cfg.Access == nil {
		return nil, errors.New("access control cannot be nil when dev ledger is enabled")
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(countRequests)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	// Long-lived stream connections stay outside the request timeout.
	if cfg.Stream != nil {
		r.Handle("/ws", cfg.Stream)
	}

	h := &handler{
		engine:     cfg.Engine,
		access:     cfg.Access,
		house:      cfg.House,
		monitor:    cfg.Monitor,
		commitment: cfg.Commitment,
		dev:        cfg.DevLedger,
		logger:     cfg.Logger,
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/params", h.getParams)
		r.Put("/params/coefficient", h.setCoefficient)
		r.Put("/params/stake-bounds", h.setStakeBounds)

		r.Post("/wagers", h.placeWager)
		r.Get("/wagers/{id}", h.getWager)
		r.Post("/wagers/{id}/confirm", h.confirmWager)
		r.Get("/players/{address}/pending", h.pendingWager)

		r.Get("/reserve", h.getReserve)
		r.Post("/reserve/withdraw", h.withdraw)

		if cfg.Commitment != nil {
			r.Get("/oracle/commitment", h.getCommitment)
		}

		if cfg.DevLedger != nil {
			r.Post("/dev/mint", h.mint)
			r.Post("/dev/approve", h.approve)
		}
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server:        server,
		logger:        cfg.Logger,
		healthChecker: cfg.HealthChecker,
	}, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
