package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Terpedia/functional-flavors/internal/rag"
	"github.com/Terpedia/functional-flavors/internal/service"
)

type stubChatService struct{}

func (stubChatService) ProcessChat(ctx context.Context, req service.ChatRequest) (service.ChatResponse, error) {
	return service.ChatResponse{Reply: "ok"}, nil
}

type stubEngine struct{}

func (stubEngine) Retrieve(ctx context.Context, query string) rag.Result { return rag.Result{} }
func (stubEngine) Reload()                                               {}

func newTestRouter() http.Handler {
	return NewRouter(&Deps{
		ChatService: stubChatService{},
		RAGEngine:   stubEngine{},
	})
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
	}{
		{name: "health", method: http.MethodGet, target: "/healthz", wantStatus: http.StatusOK},
		{name: "chat", method: http.MethodPost, target: "/api/chat", body: `{"message":"hi"}`, wantStatus: http.StatusOK},
		{name: "search without query", method: http.MethodGet, target: "/api/search", wantStatus: http.StatusBadRequest},
		{name: "reindex absent without pipeline", method: http.MethodPost, target: "/api/reindex", wantStatus: http.StatusNotFound},
		{name: "unknown route", method: http.MethodGet, target: "/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.target, body)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("%s %s status = %v, want %v", tt.method, tt.target, w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://terpedia.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %v, want %v", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://terpedia.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want request origin echoed", got)
	}
}
