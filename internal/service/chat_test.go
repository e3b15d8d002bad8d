package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Terpedia/functional-flavors/internal/answer"
	"github.com/Terpedia/functional-flavors/internal/indexer"
	"github.com/Terpedia/functional-flavors/internal/rag"
	"github.com/Terpedia/functional-flavors/internal/storage"
)

type fakeEngine struct {
	result rag.Result
}

func (e *fakeEngine) Retrieve(ctx context.Context, query string) rag.Result { return e.result }
func (e *fakeEngine) Reload()                                               {}

type fakeSessions struct {
	stored  map[string][]storage.Message
	histErr error
	saveErr error
	saves   int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{stored: map[string][]storage.Message{}}
}

func (s *fakeSessions) History(ctx context.Context, sessionID string) ([]storage.Message, error) {
	if s.histErr != nil {
		return nil, s.histErr
	}
	return s.stored[sessionID], nil
}

func (s *fakeSessions) SaveHistory(ctx context.Context, sessionID string, history []storage.Message) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.stored[sessionID] = history
	return nil
}

func retrievedFixture() rag.Result {
	chunk := indexer.Chunk{
		PageTitle: "Terpedia",
		PageURL:   "/index.html",
		Text:      "Terpedia is a comprehensive encyclopedia of terpenes and their documented effects.",
	}
	return rag.Result{
		ContextText: chunk.Text,
		Chunks:      []rag.ScoredChunk{{Chunk: chunk, Score: 18}},
		Citations:   []rag.Citation{{Title: "Terpedia", URL: "/index.html"}},
	}
}

func newTestService(engine rag.Engine, sessions storage.SessionStore) ChatService {
	return NewChatService(engine, answer.NewAssembler(nil), sessions)
}

func TestChatService_ProcessChat(t *testing.T) {
	t.Run("empty message is a validation error", func(t *testing.T) {
		svc := newTestService(&fakeEngine{}, newFakeSessions())

		_, err := svc.ProcessChat(context.Background(), ChatRequest{Message: ""})
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("ProcessChat() error = %v, want ValidationError", err)
		}
		if validationErr.Field != "message" {
			t.Errorf("Field = %q, want %q", validationErr.Field, "message")
		}
	})

	t.Run("successful request returns reply with citations", func(t *testing.T) {
		svc := newTestService(&fakeEngine{result: retrievedFixture()}, newFakeSessions())

		resp, err := svc.ProcessChat(context.Background(), ChatRequest{
			SessionID: "s1",
			Message:   "what is terpedia",
		})
		if err != nil {
			t.Fatalf("ProcessChat() error = %v", err)
		}
		if resp.Reply == "" {
			t.Error("Reply is empty")
		}
		if resp.ReplyHTML == "" {
			t.Error("ReplyHTML is empty")
		}
		if len(resp.Citations) != 1 || resp.Citations[0].URL != "/index.html" {
			t.Errorf("Citations = %+v, want the retrieved page", resp.Citations)
		}
		if resp.Degraded {
			t.Error("Degraded = true, want false")
		}
	})

	t.Run("turn persisted for session", func(t *testing.T) {
		sessions := newFakeSessions()
		svc := newTestService(&fakeEngine{result: retrievedFixture()}, sessions)

		if _, err := svc.ProcessChat(context.Background(), ChatRequest{SessionID: "s1", Message: "what is terpedia"}); err != nil {
			t.Fatalf("ProcessChat() error = %v", err)
		}

		saved := sessions.stored["s1"]
		if len(saved) != 2 {
			t.Fatalf("stored %d turns, want 2", len(saved))
		}
		if saved[0].Role != "user" || saved[1].Role != "assistant" {
			t.Errorf("turn roles = %s, %s; want user, assistant", saved[0].Role, saved[1].Role)
		}
	})

	t.Run("no persistence without session id", func(t *testing.T) {
		sessions := newFakeSessions()
		svc := newTestService(&fakeEngine{result: retrievedFixture()}, sessions)

		if _, err := svc.ProcessChat(context.Background(), ChatRequest{Message: "what is terpedia"}); err != nil {
			t.Fatalf("ProcessChat() error = %v", err)
		}
		if sessions.saves != 0 {
			t.Errorf("saves = %d, want 0 for anonymous request", sessions.saves)
		}
	})

	t.Run("stored history preferred over request history", func(t *testing.T) {
		sessions := newFakeSessions()
		sessions.stored["s1"] = []storage.Message{
			{Role: "user", Text: "earlier question"},
			{Role: "assistant", Text: "earlier answer"},
		}
		svc := newTestService(&fakeEngine{result: retrievedFixture()}, sessions)

		if _, err := svc.ProcessChat(context.Background(), ChatRequest{
			SessionID: "s1",
			Message:   "what is terpedia",
			History:   []storage.Message{{Role: "user", Text: "client-side only"}},
		}); err != nil {
			t.Fatalf("ProcessChat() error = %v", err)
		}

		saved := sessions.stored["s1"]
		if len(saved) != 4 {
			t.Fatalf("stored %d turns, want stored history plus new turn pair", len(saved))
		}
		if saved[0].Text != "earlier question" {
			t.Errorf("first stored turn = %q, want server-side history kept", saved[0].Text)
		}
	})

	t.Run("history capped at ten turns", func(t *testing.T) {
		sessions := newFakeSessions()
		for i := 0; i < 12; i++ {
			sessions.stored["s1"] = append(sessions.stored["s1"], storage.Message{Role: "user", Text: "old"})
		}
		svc := newTestService(&fakeEngine{result: retrievedFixture()}, sessions)

		if _, err := svc.ProcessChat(context.Background(), ChatRequest{SessionID: "s1", Message: "what is terpedia"}); err != nil {
			t.Fatalf("ProcessChat() error = %v", err)
		}
		if got := len(sessions.stored["s1"]); got != historyCap {
			t.Errorf("stored %d turns, want cap of %d", got, historyCap)
		}
	})

	t.Run("session store failures degrade, never fail the request", func(t *testing.T) {
		sessions := newFakeSessions()
		sessions.histErr = errors.New("db locked")
		sessions.saveErr = errors.New("db locked")
		svc := newTestService(&fakeEngine{result: retrievedFixture()}, sessions)

		resp, err := svc.ProcessChat(context.Background(), ChatRequest{SessionID: "s1", Message: "what is terpedia"})
		if err != nil {
			t.Fatalf("ProcessChat() error = %v, want session errors swallowed", err)
		}
		if resp.Reply == "" {
			t.Error("Reply is empty")
		}
	})

	t.Run("degraded retrieval is surfaced", func(t *testing.T) {
		svc := newTestService(&fakeEngine{result: rag.Result{Degraded: true}}, newFakeSessions())

		resp, err := svc.ProcessChat(context.Background(), ChatRequest{Message: "anything"})
		if err != nil {
			t.Fatalf("ProcessChat() error = %v", err)
		}
		if !resp.Degraded {
			t.Error("Degraded = false, want true")
		}
		if resp.Reply == "" {
			t.Error("Reply is empty in degraded mode")
		}
	})
}

func TestChatService_LastQueryWins(t *testing.T) {
	sessions := newFakeSessions()
	svc := newTestService(&fakeEngine{result: retrievedFixture()}, sessions).(*chatService)

	// Simulate a stale in-flight query: its stamp is superseded before completion.
	stale := svc.stamp("s1")
	_ = svc.stamp("s1")

	if svc.isLatest("s1", stale) {
		t.Error("superseded stamp still reported as latest")
	}

	// The newest query persists its turn as usual.
	if _, err := svc.ProcessChat(context.Background(), ChatRequest{SessionID: "s1", Message: "newest question"}); err != nil {
		t.Fatalf("ProcessChat() error = %v", err)
	}
	if sessions.saves != 1 {
		t.Errorf("saves = %d, want 1", sessions.saves)
	}
}
