package chat

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zxlitianshu/Kekari-agent/pkg/handlers"
	"github.com/zxlitianshu/Kekari-agent/pkg/routes"
)

// SessionHeader carries the session id on chat-completions responses.
const SessionHeader = "X-Session-ID"

// sessionHeaders are checked in order for a caller-supplied session id.
var sessionHeaders = []string{
	"X-Session-ID",
	"Session-ID",
	"X-Client-ID",
	"Client-ID",
	"X-Request-ID",
	"Request-ID",
}

// CompletionMessage is one message of a chat-completions request. Content
// is either a string or a list of typed parts.
type CompletionMessage struct {
	Role    string          `json:"role" validate:"required"`
	Content json.RawMessage `json:"content"`
}

// CompletionRequest is the subset of the chat-completions request the
// service understands. Only the last user message is taken as the turn;
// earlier messages are already in the session history.
type CompletionRequest struct {
	Model    string              `json:"model"`
	Messages []CompletionMessage `json:"messages" validate:"required,min=1,dive"`
	Stream   bool                `json:"stream"`
	User     string              `json:"user,omitempty"`
}

type completionChoice struct {
	Index        int                `json:"index"`
	Message      *completionContent `json:"message,omitempty"`
	Delta        *completionContent `json:"delta,omitempty"`
	FinishReason *string            `json:"finish_reason"`
}

type completionContent struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type completionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
	Usage   *completionUsage   `json:"usage,omitempty"`
}

type completionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type modelList struct {
	Object string      `json:"object"`
	Data   []modelInfo `json:"data"`
}

type modelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// CompletionRoutes returns the OpenAI-compatible endpoints.
func (h *Handler) CompletionRoutes() routes.Group {
	return routes.Group{
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/chat/completions", Handler: h.Completions},
			{Method: "GET", Pattern: "/models", Handler: h.Models},
		},
	}
}

// Completions answers a chat-completions request with one turn. When
// stream is set the reply is sent as server-sent events.
func (h *Handler) Completions(w http.ResponseWriter, r *http.Request) {
	var req CompletionRequest
	if status, err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.RespondError(w, h.logger, status, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	text, err := lastUserMessage(req.Messages)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	sessionID := SessionID(r, req.User)
	reply, err := h.sys.PostTurn(r.Context(), sessionID, text)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.Header().Set(SessionHeader, reply.SessionID)

	model := req.Model
	if model == "" {
		model = h.model
	}
	resp := completionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Created: time.Now().Unix(),
		Model:   model,
	}

	if req.Stream {
		h.stream(w, resp, reply.Message)
		return
	}

	stop := "stop"
	resp.Object = "chat.completion"
	resp.Choices = []completionChoice{{
		Message:      &completionContent{Role: "assistant", Content: reply.Message},
		FinishReason: &stop,
	}}
	resp.Usage = &completionUsage{}
	handlers.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) stream(w http.ResponseWriter, resp completionResponse, message string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	resp.Object = "chat.completion.chunk"

	stop := "stop"
	chunks := []completionChoice{
		{Delta: &completionContent{Role: "assistant"}},
		{Delta: &completionContent{Content: message}},
		{Delta: &completionContent{}, FinishReason: &stop},
	}
	for _, c := range chunks {
		resp.Choices = []completionChoice{c}
		data, err := json.Marshal(resp)
		if err != nil {
			h.logger.Error("chunk encode failed", "error", err)
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

// Models lists the single model this service answers as.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, modelList{
		Object: "list",
		Data: []modelInfo{{
			ID:      h.model,
			Object:  "model",
			Created: time.Now().Unix(),
			OwnedBy: "kekari",
		}},
	})
}

// SessionID picks the session for a chat-completions request: the first
// session header present, then the request's user field, then a stable
// fingerprint of the client address and user agent.
func SessionID(r *http.Request, user string) string {
	for _, name := range sessionHeaders {
		if v := strings.TrimSpace(r.Header.Get(name)); v != "" {
			return v
		}
	}
	if user = strings.TrimSpace(user); user != "" {
		return user
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	sum := sha256.Sum256([]byte(host + "|" + r.UserAgent()))
	return "client-" + hex.EncodeToString(sum[:8])
}

func lastUserMessage(messages []CompletionMessage) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role != "user" {
			continue
		}
		text, err := messageText(m.Content)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	return "", ErrNoUserMessage
}

func messageText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("unsupported message content: %w", err)
	}
	var texts []string
	for _, p := range parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n"), nil
}
