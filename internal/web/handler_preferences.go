package web

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/reggaepotato22/krugerr-brendt/internal/analytics"
)

const (
	visitorHeader = "X-Visitor-ID"
	visitorCookie = "visitor_id"
	maxVisitorID  = 64
)

// visitorID reads the anonymous visitor id from the header, the cookie or
// ?visitor=, in that order.
func visitorID(r *http.Request) string {
	id := r.Header.Get(visitorHeader)
	if id == "" {
		if c, err := r.Cookie(visitorCookie); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		id = r.URL.Query().Get("visitor")
	}
	if len(id) > maxVisitorID {
		return ""
	}
	return id
}

// ensureVisitor returns the request's visitor id, issuing a fresh one in a
// cookie when the request carries none.
func ensureVisitor(w http.ResponseWriter, r *http.Request) string {
	if visitor := visitorID(r); visitor != "" {
		return visitor
	}
	visitor := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookie,
		Value:    visitor,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return visitor
}

type preferencesResponse struct {
	VisitorID string `json:"visitorId,omitempty"`
	analytics.Preferences
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Rates.Get(r.Context()))
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	visitor := visitorID(r)
	if visitor == "" {
		writeJSON(w, http.StatusOK, preferencesResponse{Preferences: analytics.DefaultPreferences()})
		return
	}
	prefs, err := s.deps.Preferences.Get(r.Context(), visitor)
	if err != nil {
		s.writeServiceError(w, err, "failed to load preferences")
		return
	}
	writeJSON(w, http.StatusOK, preferencesResponse{VisitorID: visitor, Preferences: prefs})
}

// handleSetPreferences saves preferences, issuing a visitor id cookie on
// the first save.
func (s *Server) handleSetPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs analytics.Preferences
	if !decodeJSON(w, r, &prefs) {
		return
	}

	visitor := ensureVisitor(w, r)
	saved, err := s.deps.Preferences.Set(r.Context(), visitor, prefs)
	if err != nil {
		s.writeServiceError(w, err, "failed to save preferences")
		return
	}
	writeJSON(w, http.StatusOK, preferencesResponse{VisitorID: visitor, Preferences: saved})
}
