package kvserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/minutespa/minutespa/internal/errors"
	"github.com/minutespa/minutespa/pkg/appstate"
)

func (s *Server) bus(w http.ResponseWriter, r *http.Request) (*appstate.Bus, bool) {
	b, err := s.registry.For(chi.URLParam(r, "store"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	return b, true
}

func queryFlag(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

func (s *Server) handleStateKeys(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bus(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b.Keys())
}

func (s *Server) handleStateGet(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bus(w, r)
	if !ok {
		return
	}
	key, ok := keyParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	v, found := b.Get(key)
	if !found {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleStateSet sets a key from a JSON body. ?persist=1 writes it through
// to the medium.
func (s *Server) handleStateSet(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bus(w, r)
	if !ok {
		return
	}
	key, ok := keyParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	var value any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.config.MaxValueBytes))
	if err := dec.Decode(&value); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("M002").Wrap(err))
		return
	}

	var opts []appstate.SetOption
	if queryFlag(r, "persist") {
		opts = append(opts, appstate.Persist())
	}
	if _, err := b.Set(key, value, opts...); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStateDelete deletes a key. ?broadcast=1 notifies subscribers first.
func (s *Server) handleStateDelete(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bus(w, r)
	if !ok {
		return
	}
	key, ok := keyParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	var opts []appstate.DeleteOption
	if queryFlag(r, "broadcast") {
		opts = append(opts, appstate.Broadcast())
	}
	if err := b.Delete(key, opts...); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch errors.CodeOf(err) {
	case "M002", "M003":
		return http.StatusBadRequest
	case "M021", "M022", "M023":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
