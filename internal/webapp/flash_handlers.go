package webapp

import (
	"net/http"
	"strconv"

	"github.com/gajeshbhat/snapcraft.io/internal/flash"
)

type flashCreateRequest struct {
	Message   string `json:"message"`
	Category  string `json:"category"`
	RequestID string `json:"request_id"`
}

type flashCreateResponse struct {
	RequestID string `json:"request_id"`
}

func (s *Server) handleFlashCreate(w http.ResponseWriter, r *http.Request) {
	var req flashCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}

	id := s.flashes.Flash(s.scope(r), req.Message, req.Category, req.RequestID)
	if id == "" {
		respondError(w, http.StatusInternalServerError, "not_stored", "message was not stored")
		return
	}
	respondJSON(w, http.StatusCreated, flashCreateResponse{RequestID: id})
}

func (s *Server) handleFlashGet(w http.ResponseWriter, r *http.Request) {
	requestID := r.URL.Query().Get("request_id")
	if requestID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query parameter request_id is required")
		return
	}

	entries := s.flashes.Get(s.scope(r), requestID, r.URL.Query()["category"]...)
	respondJSON(w, http.StatusOK, map[string]any{
		"messages": flashPayload(entries, withCategories(r)),
	})
}

func (s *Server) handleFlashGetAll(w http.ResponseWriter, r *http.Request) {
	entries := s.flashes.GetAll(s.scope(r), r.URL.Query()["category"]...)
	respondJSON(w, http.StatusOK, map[string]any{
		"messages": flashPayload(entries, withCategories(r)),
	})
}

func (s *Server) handleFlashExists(w http.ResponseWriter, r *http.Request) {
	has := s.flashes.Has(s.scope(r), r.URL.Query().Get("request_id"))
	respondJSON(w, http.StatusOK, map[string]any{"has_messages": has})
}

func (s *Server) handleFlashClear(w http.ResponseWriter, r *http.Request) {
	s.flashes.Clear(s.scope(r), r.URL.Query().Get("request_id"))
	w.WriteHeader(http.StatusNoContent)
}

func withCategories(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("with_categories"))
	return v
}

// flashPayload projects entries into the wire shape: bare message strings
// by default, category-tagged objects when requested. Empty results encode
// as [] rather than null.
func flashPayload(entries []flash.Entry, withCategories bool) any {
	if withCategories {
		if entries == nil {
			entries = []flash.Entry{}
		}
		return entries
	}
	messages := make([]string, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, e.Message)
	}
	return messages
}
