// File: internal/handlers/chat_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lunahq/luna/internal/domain"
	"github.com/lunahq/luna/internal/middleware"
	"github.com/lunahq/luna/internal/services"
)

type ChatHandler struct {
	ChatService *services.ChatService
}

func NewChatHandler(cs *services.ChatService) *ChatHandler {
	return &ChatHandler{ChatService: cs}
}

// attachmentPayload is the wire form of an uploaded image.
type attachmentPayload struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

func (p *attachmentPayload) toDomain() (*domain.Attachment, error) {
	if p == nil {
		return nil, nil
	}
	att := &domain.Attachment{MimeType: p.MimeType, Data: p.Data}
	if att.MimeType == "" || att.Data == "" {
		return nil, errors.New("attachment requires mimeType and data")
	}
	if att.DecodedSize() > domain.MaxAttachmentBytes {
		return nil, fmt.Errorf("attachment exceeds %d byte limit", domain.MaxAttachmentBytes)
	}
	return att, nil
}

// GetMessages returns the active session's messages plus the status flags
// the rendering layer polls.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	messages := h.ChatService.Messages(r.Context(), identity)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages":     messages,
		"activeChatId": h.ChatService.ActiveChatID(r.Context(), identity),
		"isLoading":    h.ChatService.IsLoading(),
		"isLocked":     h.ChatService.IsLocked(r.Context(), identity),
	})
}

// GetHistory returns the session list, most recent first.
func (h *ChatHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	history := h.ChatService.History(r.Context(), identity)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"activeChatId": history.ActiveChatID,
		"sessions":     history.SortedSessions(),
	})
}

// NewChat creates and activates a fresh session.
func (h *ChatHandler) NewChat(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	session := h.ChatService.StartNewChat(r.Context(), identity)
	writeJSON(w, http.StatusCreated, session)
}

// SwitchChat activates another session.
func (h *ChatHandler) SwitchChat(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	chatID := mux.Vars(r)["id"]
	if !h.ChatService.SwitchChat(r.Context(), identity, chatID) {
		writeError(w, "Unknown chat", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"activeChatId": chatID})
}

// DeleteChat removes a session.
func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	h.ChatService.DeleteChat(r.Context(), identity, mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

// StopGeneration requests the in-flight response to settle.
func (h *ChatHandler) StopGeneration(w http.ResponseWriter, r *http.Request) {
	h.ChatService.StopGeneration()
	w.WriteHeader(http.StatusAccepted)
}

// SendMessage streams one conversational turn back as server-sent events.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message    string             `json:"message"`
		Attachment *attachmentPayload `json:"attachment,omitempty"`
		Version    string             `json:"version,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}
	attachment, err := req.Attachment.toDomain()
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	identity := middleware.IdentityFrom(r.Context())
	h.streamTurn(w, r, func(onDelta func(string) error) error {
		return h.ChatService.SendMessage(r.Context(), identity, req.Message, attachment, req.Version, onDelta)
	})
}

// Regenerate re-issues the last user turn.
func (h *ChatHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Version string `json:"version,omitempty"`
	}
	// An empty body is fine here.
	_ = json.NewDecoder(r.Body).Decode(&req)

	identity := middleware.IdentityFrom(r.Context())
	h.streamTurn(w, r, func(onDelta func(string) error) error {
		return h.ChatService.Regenerate(r.Context(), identity, req.Version, onDelta)
	})
}

// StudyTopic streams a templated explanation turn.
func (h *ChatHandler) StudyTopic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic   string `json:"topic"`
		Version string `json:"version,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}

	identity := middleware.IdentityFrom(r.Context())
	h.streamTurn(w, r, func(onDelta func(string) error) error {
		return h.ChatService.StudyTopic(r.Context(), identity, req.Topic, req.Version, onDelta)
	})
}

// CodeAssistant streams a templated code-review turn.
func (h *ChatHandler) CodeAssistant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code    string `json:"code"`
		Version string `json:"version,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}

	identity := middleware.IdentityFrom(r.Context())
	h.streamTurn(w, r, func(onDelta func(string) error) error {
		return h.ChatService.CodeAssistant(r.Context(), identity, req.Code, req.Version, onDelta)
	})
}

// DebugSession opens a fresh session and streams a diagnosis of a reported
// rendering-layer fault.
func (h *ChatHandler) DebugSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
		Stack   string `json:"stack"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}

	identity := middleware.IdentityFrom(r.Context())
	h.streamTurn(w, r, func(onDelta func(string) error) error {
		return h.ChatService.DebugPrompt(r.Context(), identity, req.Message, req.Stack, onDelta)
	})
}

// GenerateImage runs the image action and returns the updated message list.
func (h *ChatHandler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}

	identity := middleware.IdentityFrom(r.Context())
	h.runAction(w, r, identity, func() error {
		return h.ChatService.GenerateImage(r.Context(), identity, req.Prompt)
	})
}

// EditImage runs the image-edit action.
func (h *ChatHandler) EditImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt     string             `json:"prompt"`
		Attachment *attachmentPayload `json:"attachment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}
	attachment, err := req.Attachment.toDomain()
	if err != nil || attachment == nil {
		writeError(w, "Image edit requires an attachment", http.StatusBadRequest)
		return
	}

	identity := middleware.IdentityFrom(r.Context())
	h.runAction(w, r, identity, func() error {
		return h.ChatService.EditImage(r.Context(), identity, req.Prompt, *attachment)
	})
}

// GenerateVideo runs the long-polling video action.
func (h *ChatHandler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}

	identity := middleware.IdentityFrom(r.Context())
	h.runAction(w, r, identity, func() error {
		return h.ChatService.GenerateVideo(r.Context(), identity, req.Prompt)
	})
}

// SearchQuery runs the grounded search action.
func (h *ChatHandler) SearchQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}

	identity := middleware.IdentityFrom(r.Context())
	h.runAction(w, r, identity, func() error {
		return h.ChatService.SearchQuery(r.Context(), identity, req.Query)
	})
}

// runAction executes a dispatcher action synchronously and responds with the
// resulting message list. Actions settle into the conversation whether they
// succeed or fail, so the only error statuses are pre-flight refusals.
func (h *ChatHandler) runAction(w http.ResponseWriter, r *http.Request, identity string, fn func() error) {
	if err := fn(); err != nil {
		writeRefusal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": h.ChatService.Messages(r.Context(), identity),
	})
}

// streamTurn runs a streaming send, emitting each fragment as an SSE data
// event and a final "done" event carrying the settled message list.
func (h *ChatHandler) streamTurn(w http.ResponseWriter, r *http.Request, send func(onDelta func(string) error) error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	onDelta := func(fragment string) error {
		payload, err := json.Marshal(fragment)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := send(onDelta); err != nil {
		// Refused before streaming began; the SSE headers are not yet
		// written because no fragment arrived.
		writeRefusal(w, err)
		return
	}

	identity := middleware.IdentityFrom(r.Context())
	final, err := json.Marshal(map[string]interface{}{
		"messages": h.ChatService.Messages(r.Context(), identity),
	})
	if err == nil {
		fmt.Fprintf(w, "event: done\ndata: %s\n\n", final)
		flusher.Flush()
	}
}

func writeRefusal(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrGenerationInFlight):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrGuestLimitReached):
		writeError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, services.ErrEmptyPrompt):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeJSON is a helper for sending JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError is a helper for sending JSON error responses.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
