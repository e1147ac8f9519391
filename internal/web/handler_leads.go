package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reggaepotato22/krugerr-brendt/internal/domain"
	"github.com/reggaepotato22/krugerr-brendt/internal/reconcile"
	"github.com/reggaepotato22/krugerr-brendt/internal/service"
)

type inquiryResponse struct {
	Inquiry domain.Inquiry    `json:"inquiry"`
	Written reconcile.Written `json:"written"`
}

func (s *Server) handleSubmitInquiry(w http.ResponseWriter, r *http.Request) {
	var in service.InquiryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	inq, written, err := s.deps.Leads.Submit(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, err, "failed to submit inquiry")
		return
	}
	if s.deps.Events != nil {
		s.deps.Events.InquiryReceived(inq)
	}
	writeJSON(w, http.StatusCreated, inquiryResponse{Inquiry: inq, Written: written})
}

func (s *Server) handleListInquiries(w http.ResponseWriter, r *http.Request) {
	status := domain.InquiryStatus(r.URL.Query().Get("status"))
	writeJSON(w, http.StatusOK, s.deps.Leads.List(status))
}

func (s *Server) handleGetInquiry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inq, err := s.deps.Leads.Get(id)
	if err != nil {
		s.writeServiceError(w, err, "failed to load inquiry", "inquiry_id", id)
		return
	}
	writeJSON(w, http.StatusOK, inq)
}

func (s *Server) handleUpdateInquiry(w http.ResponseWriter, r *http.Request) {
	var upd service.InquiryUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	id := chi.URLParam(r, "id")
	inq, written, err := s.deps.Leads.Update(r.Context(), id, upd)
	if err != nil {
		s.writeServiceError(w, err, "failed to update inquiry", "inquiry_id", id)
		return
	}
	writeJSON(w, http.StatusOK, inquiryResponse{Inquiry: inq, Written: written})
}

func (s *Server) handleDeleteInquiry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Leads.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, err, "failed to delete inquiry", "inquiry_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req service.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.VisitorID = ensureVisitor(w, r)
	reply, err := s.deps.Chats.Send(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err, "failed to send chat message", "session_id", req.SessionID)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	status := domain.ChatStatus(r.URL.Query().Get("status"))
	writeJSON(w, http.StatusOK, s.deps.Chats.List(status))
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := s.deps.Chats.Get(id)
	if err != nil {
		s.writeServiceError(w, err, "failed to load chat session", "session_id", id)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleArchiveChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := s.deps.Chats.Archive(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err, "failed to archive chat session", "session_id", id)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Chats.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, err, "failed to delete chat session", "session_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
