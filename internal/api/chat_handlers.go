package api

import (
	"net/http"

	"askai/internal/chat"
	"askai/internal/domain"
)

// handleSend posts a message to sessionId, or to the active session when it
// is empty. Completion failures are part of the returned transcript, so this
// answers 200 for them too.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req struct {
		SessionID   string              `json:"sessionId"`
		Content     string              `json:"content"`
		Attachments []domain.Attachment `json:"attachments"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	cs, err := s.settings.Load(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	ex, err := svc.SendMessage(r.Context(), cs, req.SessionID, req.Content, req.Attachments)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req struct {
		SessionID string `json:"sessionId"`
		MessageID string `json:"messageId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.MessageID == "" {
		s.writeError(w, domain.Reason(domain.ErrInvalidInput, "messageId is required"))
		return
	}

	cs, err := s.settings.Load(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	ex, err := svc.Regenerate(r.Context(), cs, req.SessionID, req.MessageID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ex == nil {
		// nothing to regenerate
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cs, err := s.settings.Load(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch domain.SettingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeError(w, err)
		return
	}
	cs, err := s.settings.Update(r.Context(), userID(r), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (s *Server) handleResetSettings(w http.ResponseWriter, r *http.Request) {
	cs, err := s.settings.Reset(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (s *Server) handleExportAll(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.workspace(w, r)
	if !ok {
		return
	}
	data, err := svc.ExportAll(r.Context(), s.settings)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+chat.AllDataFilename+`"`)
	w.Write(data)
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if err := svc.ClearAll(r.Context(), s.settings); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
