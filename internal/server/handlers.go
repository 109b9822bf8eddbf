package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"investtrack/internal/engine"
	"investtrack/internal/repository"
	"investtrack/internal/trading"
	"investtrack/types"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type portfolioRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InitialCash decimal.Decimal `json:"initialCash"`
}

func (s *Server) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.InitialCash.IsNegative() {
		s.writeError(w, http.StatusBadRequest, "initialCash must not be negative")
		return
	}

	portfolio, err := s.store.CreatePortfolio(r.Context(), req.Name, req.Description, req.InitialCash)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, portfolio)
}

func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := s.store.ListPortfolios(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if portfolios == nil {
		portfolios = []types.Portfolio{}
	}
	s.writeJSON(w, http.StatusOK, portfolios)
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathId(w, r, "portfolioId")
	if !ok {
		return
	}
	portfolio, err := s.store.GetPortfolio(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, portfolio)
}

func (s *Server) handleUpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathId(w, r, "portfolioId")
	if !ok {
		return
	}
	var req portfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	portfolio, err := s.store.UpdatePortfolio(r.Context(), id, req.Name, req.Description)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, portfolio)
}

func (s *Server) handleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathId(w, r, "portfolioId")
	if !ok {
		return
	}
	if err := s.store.DeletePortfolio(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cashRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Notes  string          `json:"notes"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleCashFlow(w, r, s.trader.DepositCash)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleCashFlow(w, r, s.trader.WithdrawCash)
}

func (s *Server) handleCashFlow(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, portfolioId int64, amount decimal.Decimal, notes string) error) {
	id, ok := s.pathId(w, r, "portfolioId")
	if !ok {
		return
	}
	var req cashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := apply(r.Context(), id, req.Amount, req.Notes); err != nil {
		s.writeServiceError(w, err)
		return
	}

	portfolio, err := s.store.GetPortfolio(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, portfolio)
}

type dividendRequest struct {
	AssetId int64           `json:"assetId"`
	Amount  decimal.Decimal `json:"amount"`
	Notes   string          `json:"notes"`
}

func (s *Server) handleDividend(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathId(w, r, "portfolioId")
	if !ok {
		return
	}
	var req dividendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.trader.RecordDividend(r.Context(), id, req.AssetId, req.Amount, req.Notes); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathId(w, r, "portfolioId")
	if !ok {
		return
	}
	if _, err := s.store.GetPortfolio(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	positions, err := s.store.GetPositions(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	out := make([]positionResponse, 0, len(positions))
	for i := range positions {
		out = append(out, newPositionResponse(&positions[i]))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// positionResponse decorates a stored position with its derived valuation.
type positionResponse struct {
	types.Position
	CurrentValue  decimal.Decimal `json:"currentValue"`
	CostBasis     decimal.Decimal `json:"costBasis"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnl"`
	PnLPercent    decimal.Decimal `json:"pnlPercentage"`
}

func newPositionResponse(pos *types.Position) positionResponse {
	return positionResponse{
		Position:      *pos,
		CurrentValue:  pos.CurrentValue(),
		CostBasis:     pos.CostBasis(),
		UnrealizedPnL: pos.UnrealizedPnL(),
		PnLPercent:    pos.PnLPercent(),
	}
}

type tradeRequest struct {
	AssetId  int64           `json:"assetId"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, s.trader.BuyAsset)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, s.trader.SellAsset)
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, portfolioId, assetId int64, quantity, price decimal.Decimal) (*types.Position, error)) {
	id, ok := s.pathId(w, r, "portfolioId")
	if !ok {
		return
	}
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	position, err := apply(r.Context(), id, req.AssetId, req.Quantity, req.Price)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if position == nil {
		// Position fully closed.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, newPositionResponse(position))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathId(w, r, "portfolioId")
	if !ok {
		return
	}
	if _, err := s.store.GetPortfolio(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	transactions, err := s.store.GetTransactions(r.Context(), id, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if transactions == nil {
		transactions = []types.Transaction{}
	}
	s.writeJSON(w, http.StatusOK, transactions)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathId(w, r, "portfolioId")
	if !ok {
		return
	}
	snapshot, err := s.analytics.Metrics(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathId(w, r, "portfolioId")
	if !ok {
		return
	}

	var cfg engine.SimulationConfig
	if v := r.URL.Query().Get("iterations"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "iterations must be a positive integer")
			return
		}
		cfg.Iterations = parsed
	}
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		cfg.Days = parsed
	}

	result, err := s.analytics.RunSimulation(r.Context(), id, cfg)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathId(w, r, "portfolioId")
	if !ok {
		return
	}

	var strategy engine.Strategy
	if err := json.NewDecoder(r.Body).Decode(&strategy); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	result, err := s.analytics.RunBacktest(r.Context(), id, strategy, days)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type assetRequest struct {
	Ticker string          `json:"ticker"`
	Name   string          `json:"name"`
	Type   types.AssetType `json:"type"`
}

func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var req assetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Ticker == "" || req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "ticker and name are required")
		return
	}
	switch req.Type {
	case types.AssetTypeStock, types.AssetTypeCrypto, types.AssetTypeEtf, types.AssetTypeBond:
	default:
		s.writeError(w, http.StatusBadRequest, "unknown asset type")
		return
	}

	asset, err := s.store.CreateAsset(r.Context(), req.Ticker, req.Name, req.Type)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, asset)
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.store.ListAssets(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if assets == nil {
		assets = []types.Asset{}
	}
	s.writeJSON(w, http.StatusOK, assets)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathId(w, r, "assetId")
	if !ok {
		return
	}
	asset, err := s.store.GetAsset(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, asset)
}

func (s *Server) handleRefreshPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathId(w, r, "assetId")
	if !ok {
		return
	}
	asset, err := s.store.GetAsset(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	price, err := s.prices.FetchPrice(r.Context(), asset.Ticker)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err := s.store.UpdateAssetPrice(r.Context(), id, price); err != nil {
		s.writeServiceError(w, err)
		return
	}

	asset, err = s.store.GetAsset(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, asset)
}

func (s *Server) pathId(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, param+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps domain errors onto HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrPortfolioNotFound),
		errors.Is(err, repository.ErrAssetNotFound),
		errors.Is(err, repository.ErrPositionNotFound),
		errors.Is(err, repository.ErrTransactionNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrDuplicateName):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInsufficientQuantity),
		errors.Is(err, engine.ErrInsufficientCash),
		errors.Is(err, engine.ErrNoPositions),
		errors.Is(err, engine.ErrInvalidStrategy),
		errors.Is(err, trading.ErrInactiveAsset),
		errors.Is(err, trading.ErrTooManyPositions):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("Unhandled service error")
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
