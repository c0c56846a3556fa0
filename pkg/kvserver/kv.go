package kvserver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/minutespa/minutespa/internal/errors"
	"github.com/minutespa/minutespa/pkg/medium"
)

// keyParam returns the decoded {key} URL parameter. Keys are path-escaped by
// clients, so "a/b" arrives as "a%2Fb".
func keyParam(r *http.Request) (string, bool) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

// errorBody is the JSON error payload.
type errorBody struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	body := errorBody{Message: err.Error()}
	if e, ok := errors.As(err); ok {
		body.Code = e.Code
		body.Message = e.Message
		if e.Detail != "" {
			body.Message += ": " + e.Detail
		}
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	lister, ok := s.medium.(medium.Lister)
	if !ok {
		writeJSON(w, http.StatusOK, []string{})
		return
	}
	keys, err := lister.Keys(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		s.logger.Warn("list keys failed", "error", err)
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, keys)
}

func (s *Server) handleHasKey(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(r)
	if !ok || s.medium == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	found, err := s.medium.Has(r.Context(), key)
	if err != nil {
		s.logger.Warn("medium probe failed", "key", key, "error", err)
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(r)
	if !ok || s.medium == nil {
		http.NotFound(w, r)
		return
	}
	value, found, err := s.medium.Get(r.Context(), key)
	if err != nil {
		s.logger.Warn("medium read failed", "key", key, "error", err)
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, value)
}

func (s *Server) handlePutKey(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if s.medium == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("M021").WithDetail("no medium configured"))
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxValueBytes))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	if err := s.medium.Set(r.Context(), key, string(body)); err != nil {
		s.logger.Warn("medium write failed", "key", key, "error", err)
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if s.medium != nil {
		if err := s.medium.Remove(r.Context(), key); err != nil {
			s.logger.Warn("medium remove failed", "key", key, "error", err)
			s.writeError(w, http.StatusBadGateway, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
