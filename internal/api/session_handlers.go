package api

import (
	"fmt"
	"net/http"

	"askai/internal/chat"
	"askai/internal/domain"
	"askai/internal/session"
)

// handleListSessions serves the sidebar: ?q=, ?archived=true, ?period=
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.workspace(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	sessions := svc.Sessions().Search(session.Query{
		Text:     q.Get("q"),
		Archived: q.Get("archived") == "true",
		Period:   session.ParsePeriod(q.Get("period")),
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"activeId": svc.Sessions().ActiveID(),
	})
}

// handleCreateSession creates a session and makes it active
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
	}

	cs := svc.Sessions().CreateSession(req.Title)
	if err := svc.Sessions().SetActive(cs.ID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cs)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.workspace(w, r)
	if !ok {
		return
	}
	cs, err := svc.Sessions().Session(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var patch domain.SessionPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeError(w, err)
		return
	}

	id := r.PathValue("id")
	if svc.Busy(id) && patch.Messages != nil {
		s.writeError(w, fmt.Errorf("cannot replace messages: %w", chat.ErrBusy))
		return
	}
	if err := svc.Sessions().UpdateSession(id, patch); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSession(w, svc, id)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.workspace(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if svc.Busy(id) {
		s.writeError(w, chat.ErrBusy)
		return
	}
	svc.Sessions().DeleteSession(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleArchiveSession(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.workspace(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := svc.Sessions().ArchiveSession(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSession(w, svc, id)
}

func (s *Server) handleDuplicateSession(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.workspace(w, r)
	if !ok {
		return
	}
	dup, err := svc.Sessions().DuplicateSession(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dup)
}

func (s *Server) handleActivateSession(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.workspace(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := svc.Sessions().SetActive(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSession(w, svc, id)
}

func (s *Server) handleExportSession(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.workspace(w, r)
	if !ok {
		return
	}
	name, data, err := svc.ExportSession(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(data)
}

// handleEditMessage rewrites a message's content, keeping the original
func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	id := r.PathValue("id")
	if svc.Busy(id) {
		s.writeError(w, chat.ErrBusy)
		return
	}
	if err := svc.Sessions().EditMessage(id, r.PathValue("mid"), req.Content); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSession(w, svc, id)
}

func (s *Server) writeSession(w http.ResponseWriter, svc *chat.Service, id string) {
	cs, err := svc.Sessions().Session(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}
