package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"betledger/internal/auth"
	"betledger/internal/ledger"
	"betledger/internal/tracker"
)

// Server exposes the tracker over JSON
type Server struct {
	tracker *tracker.Tracker
	log     *zap.Logger
	authMW  func(http.Handler) http.Handler
	webDir  string
	origins []string
}

// NewServer wires handlers to t. authMW guards /api routes; nil disables auth.
func NewServer(t *tracker.Tracker, log *zap.Logger, authMW func(http.Handler) http.Handler, webDir string) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if authMW == nil {
		authMW = func(next http.Handler) http.Handler { return next }
	}
	return &Server{tracker: t, log: log, authMW: authMW, webDir: webDir}
}

// WithCORS lets browsers on origins call the API
func (s *Server) WithCORS(origins []string) *Server {
	s.origins = origins
	return s
}

// Router builds the route tree
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", auth.InitDataHeader},
			MaxAge:         86400,
		}))
	}
	r.Use(s.authMW)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", s.handlePing)

		r.Route("/bets", func(r chi.Router) {
			r.Get("/", s.handleListBets)
			r.Post("/", s.handleCreateBet)
			r.Get("/{id}", s.handleGetBet)
			r.Put("/{id}", s.handleUpdateBet)
			r.Delete("/{id}", s.handleDeleteBet)
		})

		r.Get("/stats", s.handleStats)
		r.Get("/series", s.handleSeries)
		r.Get("/note", s.handleGetNote)
		r.Put("/note", s.handlePutNote)
	})

	if s.webDir != "" {
		if _, err := os.Stat(s.webDir); err == nil {
			r.Handle("/*", http.FileServer(http.Dir(s.webDir)))
		}
	}
	return r
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, message string, statusCode int, details map[string]string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message, Details: details})
}

// respondWithLedgerError maps tracker errors to status codes
func (s *Server) respondWithLedgerError(w http.ResponseWriter, r *http.Request, action string, err error) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithError(w, "invalid bet", http.StatusBadRequest, verr.Fields)
	case errors.Is(err, ledger.ErrNotFound):
		respondWithError(w, "bet not found", http.StatusNotFound, nil)
	default:
		s.log.Error(action+"_failed", zap.String("path", r.URL.Path), zap.Error(err))
		respondWithError(w, "internal error", http.StatusInternalServerError, nil)
	}
}

// warning returns the pending persist failure text, or "" when storage is in sync
func (s *Server) warning() string {
	if err := s.tracker.PersistWarning(); err != nil {
		return err.Error()
	}
	return ""
}
