// Package server exposes the portfolio engine over a REST API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"investtrack/internal/engine"
	"investtrack/types"
)

// Store is the persistence surface the handlers read and write.
type Store interface {
	CreatePortfolio(ctx context.Context, name, description string, initialCash decimal.Decimal) (*types.Portfolio, error)
	GetPortfolio(ctx context.Context, id int64) (*types.Portfolio, error)
	ListPortfolios(ctx context.Context) ([]types.Portfolio, error)
	UpdatePortfolio(ctx context.Context, id int64, name, description string) (*types.Portfolio, error)
	DeletePortfolio(ctx context.Context, id int64) error
	GetPositions(ctx context.Context, portfolioId int64) ([]types.Position, error)
	CreateAsset(ctx context.Context, ticker, name string, assetType types.AssetType) (*types.Asset, error)
	GetAsset(ctx context.Context, id int64) (*types.Asset, error)
	ListAssets(ctx context.Context) ([]types.Asset, error)
	UpdateAssetPrice(ctx context.Context, id int64, price decimal.Decimal) error
	GetTransactions(ctx context.Context, portfolioId int64, limit int) ([]types.Transaction, error)
}

// Trader executes buy, sell and cash operations.
type Trader interface {
	BuyAsset(ctx context.Context, portfolioId, assetId int64, quantity, price decimal.Decimal) (*types.Position, error)
	SellAsset(ctx context.Context, portfolioId, assetId int64, quantity, price decimal.Decimal) (*types.Position, error)
	DepositCash(ctx context.Context, portfolioId int64, amount decimal.Decimal, notes string) error
	WithdrawCash(ctx context.Context, portfolioId int64, amount decimal.Decimal, notes string) error
	RecordDividend(ctx context.Context, portfolioId, assetId int64, amount decimal.Decimal, notes string) error
}

// Analytics computes metrics, projections and backtests.
type Analytics interface {
	Metrics(ctx context.Context, portfolioId int64) (*engine.MetricsSnapshot, error)
	RunSimulation(ctx context.Context, portfolioId int64, cfg engine.SimulationConfig) (*engine.SimulationResult, error)
	RunBacktest(ctx context.Context, portfolioId int64, strategy engine.Strategy, days int) (*engine.BacktestResult, error)
}

// PriceSource fetches live market prices.
type PriceSource interface {
	FetchPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// Config holds server configuration
type Config struct {
	Port      int
	Log       zerolog.Logger
	Store     Store
	Trader    Trader
	Analytics Analytics
	Prices    PriceSource
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	store     Store
	trader    Trader
	analytics Analytics
	prices    PriceSource
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		store:     cfg.Store,
		trader:    cfg.Trader,
		analytics: cfg.Analytics,
		prices:    cfg.Prices,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/portfolios", func(r chi.Router) {
			r.Get("/", s.handleListPortfolios)
			r.Post("/", s.handleCreatePortfolio)

			r.Route("/{portfolioId}", func(r chi.Router) {
				r.Get("/", s.handleGetPortfolio)
				r.Put("/", s.handleUpdatePortfolio)
				r.Delete("/", s.handleDeletePortfolio)

				r.Post("/deposit", s.handleDeposit)
				r.Post("/withdraw", s.handleWithdraw)
				r.Post("/dividends", s.handleDividend)

				r.Get("/positions", s.handleListPositions)
				r.Post("/positions/buy", s.handleBuy)
				r.Post("/positions/sell", s.handleSell)

				r.Get("/transactions", s.handleListTransactions)

				r.Get("/metrics", s.handleMetrics)
				r.Post("/simulate", s.handleSimulate)
				r.Post("/backtest", s.handleBacktest)
			})
		})

		r.Route("/assets", func(r chi.Router) {
			r.Get("/", s.handleListAssets)
			r.Post("/", s.handleCreateAsset)
			r.Get("/{assetId}", s.handleGetAsset)
			r.Post("/{assetId}/refresh-price", s.handleRefreshPrice)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
