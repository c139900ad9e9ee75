package handlers

import (
	"net/http"

	"betledger/internal/stats"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.tracker.Summary())
}

// SeriesResponse is the chart data, oldest day first
type SeriesResponse struct {
	Points []stats.Point `json:"points"`
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, SeriesResponse{Points: s.tracker.Series()})
}
