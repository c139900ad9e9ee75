package handlers

import (
	"encoding/json"
	"net/http"
)

// NoteBody is the note payload in both directions
type NoteBody struct {
	Text    string `json:"text"`
	Warning string `json:"warning,omitempty"`
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, NoteBody{Text: s.tracker.Note()})
}

func (s *Server) handlePutNote(w http.ResponseWriter, r *http.Request) {
	var body NoteBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	s.tracker.SetNote(r.Context(), body.Text)
	respondJSON(w, http.StatusOK, NoteBody{Text: s.tracker.Note(), Warning: s.warning()})
}
