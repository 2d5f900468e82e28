package server

import (
	"net/http"
	"time"

	"github.com/bobmcallan/pacer/internal/common"
	"github.com/bobmcallan/pacer/internal/models"
)

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": common.GetVersion(),
		"time":    s.app.Clock.Now().Format(time.RFC3339),
	})
}

// handleVersion handles GET /api/version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// handleTargetToday handles GET /api/portfolios/{id}/target/today
func (s *Server) handleTargetToday(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	now := s.app.Clock.Now()
	row, err := s.app.TargetService.GetOrCreate(r.Context(), portfolioID, now)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	carryover, err := s.app.TargetService.Carryover(r.Context(), portfolioID, now)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	effective := row.EffectiveTarget()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"target":           row,
		"effective_target": effective,
		"gap":              effective - row.EarnedActual,
		"carryover":        carryover,
	})
}

// handleTargetEarned handles PUT /api/portfolios/{id}/target/earned
func (s *Server) handleTargetEarned(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if !RequireMethod(w, r, http.MethodPut) {
		return
	}

	var req struct {
		Amount float64 `json:"amount"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	row, err := s.app.TargetService.RecordEarned(r.Context(), portfolioID, s.app.Clock.Now(), req.Amount)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, row)
}

// handleTargetUser handles PUT /api/portfolios/{id}/target/user.
// A null amount clears the override.
func (s *Server) handleTargetUser(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if !RequireMethod(w, r, http.MethodPut) {
		return
	}

	var req struct {
		Amount *float64 `json:"amount"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	row, err := s.app.TargetService.SetUserTarget(r.Context(), portfolioID, s.app.Clock.Now(), req.Amount)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, row)
}

// handleAdvisorRefresh handles POST /api/portfolios/{id}/advisor/refresh.
// This is the on-demand generation cycle; oracle failure surfaces as 502 here,
// unlike the scheduled cycle which degrades silently.
func (s *Server) handleAdvisorRefresh(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	result, err := s.app.AdvisorService.RunCycle(r.Context(), portfolioID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// handleScorecard handles GET /api/portfolios/{id}/scorecard
func (s *Server) handleScorecard(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	card, err := s.app.ScorecardService.Build(r.Context(), portfolioID, s.app.Clock.Now())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, card)
}

// handleSignalList handles GET /api/portfolios/{id}/signals?status=
func (s *Server) handleSignalList(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	status := models.SignalStatus(r.URL.Query().Get("status"))
	signals, err := s.app.SignalService.List(r.Context(), portfolioID, status)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio_id": portfolioID,
		"signals":      signals,
	})
}

// handleHoldings handles PUT /api/portfolios/{id}/holdings, replacing the
// holdings snapshot used for SELL admission and P&L sizing.
func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if !RequireMethod(w, r, http.MethodPut) {
		return
	}

	var req struct {
		Holdings []models.Holding `json:"holdings"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	for _, h := range req.Holdings {
		if h.Symbol == "" || h.Quantity < 0 {
			WriteError(w, http.StatusBadRequest, "Holdings need a symbol and non-negative quantity")
			return
		}
	}

	portfolio := &models.Portfolio{ID: portfolioID, Holdings: req.Holdings}
	if err := s.app.Storage.PortfolioStore().Save(r.Context(), portfolio); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, portfolio)
}

// handleSignalGet handles GET /api/signals/{id}
func (s *Server) handleSignalGet(w http.ResponseWriter, r *http.Request, signalID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sig, err := s.app.SignalService.Get(r.Context(), signalID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, sig)
}

// handleSignalAck handles POST /api/signals/{id}/ack. Acting on an already
// settled signal returns 200 with changed=false.
func (s *Server) handleSignalAck(w http.ResponseWriter, r *http.Request, signalID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Action string `json:"action"`
		Actor  string `json:"actor"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := s.app.SignalService.Acknowledge(r.Context(), signalID, models.AckAction(req.Action), req.Actor)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// handleSignalAudits handles GET /api/signals/{id}/audits
func (s *Server) handleSignalAudits(w http.ResponseWriter, r *http.Request, signalID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	audits, err := s.app.SignalService.ListAudits(r.Context(), signalID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"signal_id": signalID,
		"audits":    audits,
	})
}
