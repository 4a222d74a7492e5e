package guruhealserver

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/sandeepstele/guruheal-agent/pkg/chat"
)

// ChatStreamRequest is the request payload for a streaming chat exchange.
type ChatStreamRequest struct {
	Prompt          string `json:"prompt"`
	ConversationID  string `json:"conversation_id"`
	Locale          string `json:"locale,omitempty"`
	EnableWebSearch bool   `json:"enable_web_search,omitempty"`
}

// ndjsonWriter emits one JSON document per line, flushing after each so
// clients see frames as they are produced.
type ndjsonWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	enc     *json.Encoder
}

func newNDJSONWriter(w http.ResponseWriter) *ndjsonWriter {
	flusher, _ := w.(http.Flusher)
	return &ndjsonWriter{w: w, flusher: flusher, enc: json.NewEncoder(w)}
}

func (n *ndjsonWriter) WriteFrame(frame chat.WireMessage) error {
	if err := n.enc.Encode(frame); err != nil {
		return err
	}
	if n.flusher != nil {
		n.flusher.Flush()
	}
	return nil
}

func (s *Server) streamChat(w http.ResponseWriter, req *http.Request) {
	var request ChatStreamRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		log.WithError(err).Error("error parsing chat request")
		failureResponse(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	if request.Prompt == "" {
		failureResponse(w, http.StatusBadRequest, "Prompt is required")
		return
	}

	conversationID, err := uuid.Parse(request.ConversationID)
	if err != nil {
		failureResponse(w, http.StatusBadRequest, "Invalid conversation id")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	err = s.orchestrator.Run(req.Context(), chat.ChatRequest{
		Prompt:          request.Prompt,
		ConversationID:  conversationID,
		Locale:          request.Locale,
		EnableWebSearch: request.EnableWebSearch,
	}, newNDJSONWriter(w))
	if err != nil {
		// The stream already carried an error frame; status is committed.
		log.WithError(err).WithField("conversationID", conversationID).Error("chat exchange failed")
	}
}

func (s *Server) jsonCreateConversation(w http.ResponseWriter, req *http.Request) {
	user := req.URL.Query().Get("user_id")
	if user == "" {
		failureResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}

	id, err := s.store.CreateConversation(req.Context(), user)
	if err != nil {
		log.WithError(err).Error("error creating conversation")
		failureResponse(w, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	RespondWithJSON(http.StatusCreated, w, map[string]string{
		"conversation_id": id.String(),
	})
}

func (s *Server) jsonGetConversation(w http.ResponseWriter, req *http.Request) {
	id, err := uuid.Parse(mux.Vars(req)["id"])
	if err != nil {
		failureResponse(w, http.StatusBadRequest, "Invalid conversation id")
		return
	}

	messages, err := s.store.FetchFullHistory(req.Context(), id)
	if err != nil {
		log.WithError(err).WithField("conversationID", id).Error("error fetching conversation")
		failureResponse(w, storeErrorStatus(err), err.Error())
		return
	}

	RespondWithJSON(http.StatusOK, w, messages)
}

func (s *Server) jsonDeleteConversation(w http.ResponseWriter, req *http.Request) {
	id, err := uuid.Parse(mux.Vars(req)["id"])
	if err != nil {
		failureResponse(w, http.StatusBadRequest, "Invalid conversation id")
		return
	}

	if err := s.store.DeleteConversation(req.Context(), id); err != nil {
		log.WithError(err).WithField("conversationID", id).Error("error deleting conversation")
		failureResponse(w, storeErrorStatus(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) jsonListConversations(w http.ResponseWriter, req *http.Request) {
	user := mux.Vars(req)["user"]

	summaries, err := s.store.ListConversations(req.Context(), user)
	if err != nil {
		log.WithError(err).WithField("user", user).Error("error listing conversations")
		failureResponse(w, http.StatusInternalServerError, "Failed to list conversations")
		return
	}

	RespondWithJSON(http.StatusOK, w, summaries)
}

func (s *Server) jsonHealth(w http.ResponseWriter, req *http.Request) {
	sqlDB, err := s.db.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(req.Context())
	}
	if err != nil {
		log.WithError(err).Error("health check failed")
		failureResponse(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	RespondWithJSON(http.StatusOK, w, map[string]string{"status": "ok"})
}
