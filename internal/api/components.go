package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/uts-core/internal/component"
	"github.com/nerrad567/uts-core/internal/location"
	"github.com/nerrad567/uts-core/internal/manager"
)

// CreateComponentRequest is the body of POST /components.
type CreateComponentRequest struct {
	// Location in the form "kind:ClassName/name".
	Location string            `json:"location"`
	Options  component.Options `json:"options,omitempty"`

	// Init starts the component straight after adding it.
	Init bool `json:"init,omitempty"`
}

// InitComponentRequest is the optional body of POST .../init. Options are
// only used when the component has to be added first.
type InitComponentRequest struct {
	Options component.Options `json:"options,omitempty"`
}

// ComponentResponse is a component's status plus the details it reports
// about itself, if it implements component.Describer.
type ComponentResponse struct {
	manager.Status
	Details map[string]any `json:"details,omitempty"`
}

// handleListComponents returns every registered component, optionally
// filtered by ?kind=.
func (s *Server) handleListComponents(w http.ResponseWriter, r *http.Request) {
	var kind location.Kind
	if v := r.URL.Query().Get("kind"); v != "" {
		k, err := location.ParseKind(v)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		kind = k
	}

	all := s.manager.List()
	components := make([]manager.Status, 0, len(all))
	for _, st := range all {
		if kind == "" || st.Location.Kind == kind {
			components = append(components, st)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"components": components,
		"count":      len(components),
	})
}

// handleComponentStats returns component counts by kind and state.
func (s *Server) handleComponentStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Stats())
}

// handleCreateComponent adds a component and optionally initialises it.
func (s *Server) handleCreateComponent(w http.ResponseWriter, r *http.Request) {
	var req CreateComponentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	loc, err := location.Parse(req.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	if req.Init {
		err = s.manager.Init(r.Context(), loc, req.Options)
	} else {
		err = s.manager.Add(loc, req.Options)
	}
	if err != nil {
		writeManagerError(w, err)
		return
	}

	st, ok := s.manager.Status(loc)
	if !ok {
		writeInternalError(w, "component vanished after add")
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// handleGetComponent returns one component's status.
func (s *Server) handleGetComponent(w http.ResponseWriter, r *http.Request) {
	loc, ok := pathLocation(w, r)
	if !ok {
		return
	}
	st, found := s.manager.Status(loc)
	if !found {
		writeNotFound(w, "component not found: "+loc.String())
		return
	}

	resp := ComponentResponse{Status: st}
	if c, err := s.manager.Lookup(loc); err == nil {
		if d, ok := c.(component.Describer); ok {
			resp.Details = d.Describe()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRemoveComponent unregisters a component without calling its
// Shutdown callback.
func (s *Server) handleRemoveComponent(w http.ResponseWriter, r *http.Request) {
	loc, ok := pathLocation(w, r)
	if !ok {
		return
	}
	if !s.manager.Remove(loc) {
		writeNotFound(w, "component not found: "+loc.String())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleInitComponent initialises a component, adding it first if needed,
// and starts its main.
func (s *Server) handleInitComponent(w http.ResponseWriter, r *http.Request) {
	loc, ok := pathLocation(w, r)
	if !ok {
		return
	}

	var req InitComponentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.manager.Init(r.Context(), loc, req.Options); err != nil {
		writeManagerError(w, err)
		return
	}

	st, found := s.manager.Status(loc)
	if !found {
		writeInternalError(w, "component vanished after init")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleShutdownComponent stops and removes a component.
func (s *Server) handleShutdownComponent(w http.ResponseWriter, r *http.Request) {
	loc, ok := pathLocation(w, r)
	if !ok {
		return
	}
	if err := s.manager.ShutdownComponent(r.Context(), loc); err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location": loc,
		"state":    "removed",
	})
}

// pathLocation builds the location from the {kind}/{class}/{name} route
// parameters, writing a 400 when they are malformed.
func pathLocation(w http.ResponseWriter, r *http.Request) (location.Location, bool) {
	kind, err := location.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return location.Location{}, false
	}
	loc, err := location.New(kind, chi.URLParam(r, "class"), chi.URLParam(r, "name"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return location.Location{}, false
	}
	return loc, true
}
