package api

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/MikeSquared-Agency/ava/internal/conversation"
	"github.com/MikeSquared-Agency/ava/internal/session"
)

// sessionHeader lets a client carry its own session token instead of being
// identified by network origin.
const sessionHeader = "X-Session-ID"

type startChatResponse struct {
	ThreadID string `json:"threadId"`
}

type askRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"threadId,omitempty"`
}

type askResponse struct {
	Reply string `json:"reply"`
}

// startChat handles POST /start-chat. The new thread replaces any thread the
// client was bound to.
func (s *Server) startChat(w http.ResponseWriter, r *http.Request) {
	var profile conversation.Profile
	if err := decodeBody(r, &profile); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	client := clientID(r)
	threadID, err := s.conversations.StartConversation(r.Context(), profile)
	if err != nil {
		s.logger.Error("start chat failed", "client", client, "error", err)
		writeError(w, http.StatusInternalServerError, "Could not start chat.")
		return
	}

	s.sessions.Replace(client, threadID)
	writeJSON(w, http.StatusOK, startChatResponse{ThreadID: threadID})
}

// ask handles POST /ask. Without a threadId the client's bound thread is
// used, opened on first contact.
func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message is required.")
		return
	}

	client := clientID(r)
	threadID := strings.TrimSpace(req.ThreadID)
	if threadID == "" {
		var err error
		threadID, err = s.sessions.Bind(r.Context(), client)
		if err != nil {
			s.logger.Error("session bind failed", "client", client, "error", err)
			writeError(w, http.StatusInternalServerError, "Error fetching AVA response.")
			return
		}
	}

	reply, err := s.conversations.SendTurn(r.Context(), threadID, req.Message)
	if err != nil {
		s.logger.Error("ask failed", "client", client, "thread_id", threadID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error fetching AVA response.")
		return
	}

	writeJSON(w, http.StatusOK, askResponse{Reply: reply})
}

// resetSession handles DELETE /session.
func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Reset(clientID(r))
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody decodes a JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// clientID identifies the caller by session header, falling back to the
// remote address as rewritten by middleware.RealIP.
func clientID(r *http.Request) session.ClientID {
	if id := strings.TrimSpace(r.Header.Get(sessionHeader)); id != "" {
		return session.ClientID(id)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return session.ClientID(r.RemoteAddr)
	}
	return session.ClientID(host)
}
