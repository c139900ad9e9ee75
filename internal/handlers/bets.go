package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"betledger/internal/auth"
	"betledger/internal/ledger"
	"betledger/internal/stats"
)

// BetsResponse is the list view: the filtered bets plus per-tab counts
type BetsResponse struct {
	Filter ledger.Filter `json:"filter"`
	Bets   []ledger.Bet  `json:"bets"`
	Counts stats.Counts  `json:"counts"`
}

// BetResponse wraps a single bet. Warning is set when the change is only
// held in memory.
type BetResponse struct {
	Bet     ledger.Bet `json:"bet"`
	Warning string     `json:"warning,omitempty"`
}

// DeleteResponse is returned after a delete
type DeleteResponse struct {
	Deleted string `json:"deleted"`
	Warning string `json:"warning,omitempty"`
}

func (s *Server) handleListBets(w http.ResponseWriter, r *http.Request) {
	f, err := ledger.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	bets := s.tracker.Bets(f)
	if bets == nil {
		bets = []ledger.Bet{}
	}
	respondJSON(w, http.StatusOK, BetsResponse{
		Filter: f,
		Bets:   bets,
		Counts: s.tracker.Summary().Counts,
	})
}

func (s *Server) handleGetBet(w http.ResponseWriter, r *http.Request) {
	b, err := s.tracker.Bet(chi.URLParam(r, "id"))
	if err != nil {
		s.respondWithLedgerError(w, r, "get_bet", err)
		return
	}
	respondJSON(w, http.StatusOK, BetResponse{Bet: b})
}

func (s *Server) handleCreateBet(w http.ResponseWriter, r *http.Request) {
	var raw ledger.RawFields
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		respondWithError(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	b, err := s.tracker.CreateBet(r.Context(), raw)
	if err != nil {
		s.respondWithLedgerError(w, r, "create_bet", err)
		return
	}

	userID, _ := auth.GetUserIDFromContext(r.Context())
	s.log.Info("bet_created", zap.Int64("user_id", userID), zap.String("bet_id", b.ID))
	respondJSON(w, http.StatusCreated, BetResponse{Bet: b, Warning: s.warning()})
}

func (s *Server) handleUpdateBet(w http.ResponseWriter, r *http.Request) {
	var raw ledger.RawFields
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		respondWithError(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	b, err := s.tracker.UpdateBet(r.Context(), chi.URLParam(r, "id"), raw)
	if err != nil {
		s.respondWithLedgerError(w, r, "update_bet", err)
		return
	}

	userID, _ := auth.GetUserIDFromContext(r.Context())
	s.log.Info("bet_updated", zap.Int64("user_id", userID), zap.String("bet_id", b.ID))
	respondJSON(w, http.StatusOK, BetResponse{Bet: b, Warning: s.warning()})
}

func (s *Server) handleDeleteBet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.tracker.DeleteBet(r.Context(), id); err != nil {
		s.respondWithLedgerError(w, r, "delete_bet", err)
		return
	}

	userID, _ := auth.GetUserIDFromContext(r.Context())
	s.log.Info("bet_deleted", zap.Int64("user_id", userID), zap.String("bet_id", id))
	respondJSON(w, http.StatusOK, DeleteResponse{Deleted: id, Warning: s.warning()})
}
