package server

import (
	"net/http"
	"strings"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)

	// Portfolio-scoped resources
	mux.HandleFunc("/api/portfolios/", s.routePortfolios)

	// Signals
	mux.HandleFunc("/api/signals/", s.routeSignals)
}

// routePortfolios dispatches /api/portfolios/{id}/... by suffix.
func (s *Server) routePortfolios(w http.ResponseWriter, r *http.Request) {
	id := PathParam(r, "/api/portfolios/", "/")
	if id == "" {
		WriteError(w, http.StatusNotFound, "Portfolio id is required")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/portfolios/"+id)
	switch rest {
	case "/target/today":
		s.handleTargetToday(w, r, id)
	case "/target/earned":
		s.handleTargetEarned(w, r, id)
	case "/target/user":
		s.handleTargetUser(w, r, id)
	case "/advisor/refresh":
		s.handleAdvisorRefresh(w, r, id)
	case "/scorecard":
		s.handleScorecard(w, r, id)
	case "/signals":
		s.handleSignalList(w, r, id)
	case "/holdings":
		s.handleHoldings(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// routeSignals dispatches /api/signals/{id} and /api/signals/{id}/...
func (s *Server) routeSignals(w http.ResponseWriter, r *http.Request) {
	id := PathParam(r, "/api/signals/", "/")
	if id == "" {
		WriteError(w, http.StatusNotFound, "Signal id is required")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/signals/"+id)
	switch rest {
	case "":
		s.handleSignalGet(w, r, id)
	case "/ack":
		s.handleSignalAck(w, r, id)
	case "/audits":
		s.handleSignalAudits(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}
