package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Terpedia/functional-flavors/internal/contextutil"
	"github.com/Terpedia/functional-flavors/internal/rag"
	"github.com/Terpedia/functional-flavors/internal/service"
	"github.com/Terpedia/functional-flavors/internal/storage"
)

// ChatHandler handles HTTP requests from the chat widget.
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// ChatContext is the widget-supplied context accompanying a message.
type ChatContext struct {
	ConversationHistory []storage.Message `json:"conversationHistory"`
	PageURL             string            `json:"pageUrl"`
	PageTitle           string            `json:"pageTitle"`
}

// ChatRequest represents the HTTP request payload for chat.
type ChatRequest struct {
	Message   string      `json:"message"`
	SessionID string      `json:"sessionId"`
	Context   ChatContext `json:"context"`
}

// ChatResponse represents the HTTP response payload for chat.
type ChatResponse struct {
	Reply     string         `json:"reply"`
	ReplyHTML string         `json:"replyHtml"`
	Citations []rag.Citation `json:"citations"`
	Degraded  bool           `json:"degraded,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP handles HTTP requests for chat.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	svcResp, err := h.chatService.ProcessChat(ctx, service.ChatRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		PageURL:   req.Context.PageURL,
		PageTitle: req.Context.PageTitle,
		History:   req.Context.ConversationHistory,
	})
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to process chat request")
		return
	}

	resp := ChatResponse{
		Reply:     svcResp.Reply,
		ReplyHTML: svcResp.ReplyHTML,
		Citations: svcResp.Citations,
		Degraded:  svcResp.Degraded,
	}
	if resp.Citations == nil {
		resp.Citations = []rag.Citation{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// handleServiceError maps service errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, ctx context.Context, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "service error", "error", err)

	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation error: %s", validationErr.Error()))
		return
	}

	if errors.Is(err, service.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Resource not found")
		return
	}
	if errors.Is(err, service.ErrExternalService) {
		writeError(w, http.StatusBadGateway, "External service error")
		return
	}

	writeError(w, http.StatusInternalServerError, defaultMsg)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
