package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

type sendMessageRequest struct {
	Content string `json:"content"`
}

// chatStream joins the mission room and streams room events over SSE until
// the client disconnects.
func (s *Server) chatStream(w http.ResponseWriter, r *http.Request) {
	u := authUserFromContext(r.Context())
	missionID, err := parseUUIDParam(r, "missionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid missionId")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}

	connectionID := uuid.NewString()
	result, client, err := s.chatSvc.Join(r.Context(), connectionID, u.UserID, missionID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// First frame carries the participant list and recent-message page.
	joined, _ := json.Marshal(result)
	_, _ = w.Write([]byte("event: joined\ndata: "))
	_, _ = w.Write(joined)
	_, _ = w.Write([]byte("\n\n"))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case ev, open := <-client.Events():
			if !open {
				s.chatSvc.Disconnect(missionID, connectionID)
				return
			}
			payload, _ := json.Marshal(ev)
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ctx.Done():
			s.chatSvc.Disconnect(missionID, connectionID)
			return
		}
	}
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	u := authUserFromContext(r.Context())
	missionID, err := parseUUIDParam(r, "missionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid missionId")
		return
	}
	var req sendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	msg, err := s.chatSvc.Send(r.Context(), u.UserID, missionID, req.Content)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (s *Server) recentMessages(w http.ResponseWriter, r *http.Request) {
	u := authUserFromContext(r.Context())
	missionID, err := parseUUIDParam(r, "missionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid missionId")
		return
	}
	msgs, err := s.chatSvc.Recent(r.Context(), u.UserID, missionID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"mission_id": missionID, "messages": msgs})
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	u := authUserFromContext(r.Context())
	messageID, err := parseUUIDParam(r, "messageId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid messageId")
		return
	}
	if err := s.chatSvc.Delete(r.Context(), u.UserID, messageID); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"message_id": messageID, "deleted": true})
}
