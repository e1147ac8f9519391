package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/reggaepotato22/krugerr-brendt/internal/currency"
	"github.com/reggaepotato22/krugerr-brendt/internal/domain"
	"github.com/reggaepotato22/krugerr-brendt/internal/reconcile"
	"github.com/reggaepotato22/krugerr-brendt/internal/service"
)

type propertyResponse struct {
	Property domain.Property   `json:"property"`
	Written  reconcile.Written `json:"written"`
}

type projectResponse struct {
	Project domain.Project    `json:"project"`
	Written reconcile.Written `json:"written"`
}

// displayCurrency picks ?currency=, then the visitor's saved preference,
// then the default. ok is false after a 400 was written.
func (s *Server) displayCurrency(w http.ResponseWriter, r *http.Request) (currency.Code, bool) {
	if raw := r.URL.Query().Get("currency"); raw != "" {
		code, ok := currency.ParseCode(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unsupported currency")
			return "", false
		}
		return code, true
	}
	if visitor := visitorID(r); visitor != "" && s.deps.Preferences != nil {
		prefs, err := s.deps.Preferences.Get(r.Context(), visitor)
		if err == nil {
			return prefs.Currency, true
		}
		s.logger.Warn("failed to load visitor preferences", "error", err)
	}
	return currency.Default, true
}

func propertyFilter(r *http.Request) service.PropertyFilter {
	q := r.URL.Query()
	featured, _ := strconv.ParseBool(q.Get("featured"))
	return service.PropertyFilter{
		Type:     domain.ListingType(q.Get("type")),
		Status:   domain.PropertyStatus(q.Get("status")),
		Featured: featured,
		Query:    q.Get("q"),
	}
}

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	target, ok := s.displayCurrency(w, r)
	if !ok {
		return
	}
	props, err := s.deps.Catalog.ListProperties(r.Context(), propertyFilter(r), target)
	if err != nil {
		s.writeServiceError(w, err, "failed to list properties")
		return
	}
	writeJSON(w, http.StatusOK, props)
}

func (s *Server) handleAdminListProperties(w http.ResponseWriter, r *http.Request) {
	props, err := s.deps.Catalog.ListProperties(r.Context(), propertyFilter(r), currency.Default)
	if err != nil {
		s.writeServiceError(w, err, "failed to list properties")
		return
	}
	writeJSON(w, http.StatusOK, props)
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	target, ok := s.displayCurrency(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	view, err := s.deps.Catalog.GetProperty(r.Context(), id, target, true)
	if err != nil {
		s.writeServiceError(w, err, "failed to load property", "property_id", id)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCreateProperty(w http.ResponseWriter, r *http.Request) {
	var p domain.Property
	if !decodeJSON(w, r, &p) {
		return
	}
	created, written, err := s.deps.Catalog.CreateProperty(r.Context(), p)
	if err != nil {
		s.writeServiceError(w, err, "failed to create property")
		return
	}
	writeJSON(w, http.StatusCreated, propertyResponse{Property: created, Written: written})
}

func (s *Server) handleUpdateProperty(w http.ResponseWriter, r *http.Request) {
	var p domain.Property
	if !decodeJSON(w, r, &p) {
		return
	}
	id := chi.URLParam(r, "id")
	updated, written, err := s.deps.Catalog.UpdateProperty(r.Context(), id, p)
	if err != nil {
		s.writeServiceError(w, err, "failed to update property", "property_id", id)
		return
	}
	writeJSON(w, http.StatusOK, propertyResponse{Property: updated, Written: written})
}

func (s *Server) handleDeleteProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Catalog.DeleteProperty(r.Context(), id); err != nil {
		s.writeServiceError(w, err, "failed to delete property", "property_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	target, ok := s.displayCurrency(w, r)
	if !ok {
		return
	}
	status := domain.ProjectStatus(r.URL.Query().Get("status"))
	writeJSON(w, http.StatusOK, s.deps.Catalog.ListProjects(r.Context(), status, target))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	target, ok := s.displayCurrency(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	view, err := s.deps.Catalog.GetProject(r.Context(), id, target)
	if err != nil {
		s.writeServiceError(w, err, "failed to load project", "project_id", id)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var p domain.Project
	if !decodeJSON(w, r, &p) {
		return
	}
	created, written, err := s.deps.Catalog.CreateProject(r.Context(), p)
	if err != nil {
		s.writeServiceError(w, err, "failed to create project")
		return
	}
	writeJSON(w, http.StatusCreated, projectResponse{Project: created, Written: written})
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var p domain.Project
	if !decodeJSON(w, r, &p) {
		return
	}
	id := chi.URLParam(r, "id")
	updated, written, err := s.deps.Catalog.UpdateProject(r.Context(), id, p)
	if err != nil {
		s.writeServiceError(w, err, "failed to update project", "project_id", id)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Project: updated, Written: written})
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Catalog.DeleteProject(r.Context(), id); err != nil {
		s.writeServiceError(w, err, "failed to delete project", "project_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
