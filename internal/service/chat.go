package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chat_service.go -package=mocks -mock_names=ChatService=MockChatService github.com/Terpedia/functional-flavors/internal/service ChatService

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Terpedia/functional-flavors/internal/answer"
	"github.com/Terpedia/functional-flavors/internal/contextutil"
	"github.com/Terpedia/functional-flavors/internal/rag"
	"github.com/Terpedia/functional-flavors/internal/storage"
)

// historyCap is the number of most recent turns kept as conversation context.
const historyCap = 10

// ChatRequest represents a chat request in the domain layer.
type ChatRequest struct {
	SessionID string
	Message   string
	PageURL   string
	PageTitle string
	// History supplied by the caller, used when no stored session exists.
	History []storage.Message
}

// ChatResponse represents a chat response in the domain layer.
type ChatResponse struct {
	Reply     string
	ReplyHTML string
	Citations []rag.Citation
	Degraded  bool
}

// ChatService runs the retrieval and answer pipeline for one query.
type ChatService interface {
	ProcessChat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// chatService implements ChatService.
type chatService struct {
	engine    rag.Engine
	assembler *answer.Assembler
	sessions  storage.SessionStore

	// Last-query-wins: each query is sequence-stamped per session, and a
	// completion that has been superseded by a newer query does not write its
	// turn back to the session.
	mu     sync.Mutex
	latest map[string]uint64
	seq    atomic.Uint64
}

// NewChatService creates a new ChatService.
func NewChatService(engine rag.Engine, assembler *answer.Assembler, sessions storage.SessionStore) ChatService {
	return &chatService{
		engine:    engine,
		assembler: assembler,
		sessions:  sessions,
		latest:    map[string]uint64{},
	}
}

// ProcessChat retrieves context for the query, assembles an answer and appends
// the completed turn to the session history. It fails only on invalid input;
// every downstream failure degrades to a fallback answer.
func (s *chatService) ProcessChat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if req.Message == "" {
		logger.WarnContext(ctx, "empty message in chat request")
		return ChatResponse{}, &ValidationError{
			Field:   "message",
			Message: "cannot be empty",
		}
	}

	stamp := s.stamp(req.SessionID)

	history := req.History
	if req.SessionID != "" {
		stored, err := s.sessions.History(ctx, req.SessionID)
		if err != nil {
			logger.WarnContext(ctx, "failed to load session history, continuing without it", "error", err)
		} else if len(stored) > 0 {
			history = stored
		}
	}
	history = lastTurns(history, historyCap)

	retrieved := s.engine.Retrieve(ctx, req.Message)

	reply := s.assembler.Answer(ctx, answer.Request{
		Query:     req.Message,
		Retrieved: retrieved,
		History:   history,
		PageURL:   req.PageURL,
		PageTitle: req.PageTitle,
	})

	if req.SessionID != "" && s.isLatest(req.SessionID, stamp) {
		turns := append(history,
			storage.Message{Role: "user", Text: req.Message},
			storage.Message{Role: "assistant", Text: reply},
		)
		if err := s.sessions.SaveHistory(ctx, req.SessionID, lastTurns(turns, historyCap)); err != nil {
			logger.WarnContext(ctx, "failed to persist session history", "error", err)
		}
	}

	logger.InfoContext(ctx, "chat request processed",
		"message_length", len(req.Message),
		"reply_length", len(reply),
		"citations", len(retrieved.Citations),
		"degraded", retrieved.Degraded,
	)

	return ChatResponse{
		Reply:     reply,
		ReplyHTML: answer.FormatHTML(reply),
		Citations: retrieved.Citations,
		Degraded:  retrieved.Degraded,
	}, nil
}

// stamp registers a new query for a session and returns its sequence number.
func (s *chatService) stamp(sessionID string) uint64 {
	n := s.seq.Add(1)
	if sessionID == "" {
		return n
	}
	s.mu.Lock()
	s.latest[sessionID] = n
	s.mu.Unlock()
	return n
}

// isLatest reports whether no newer query has been stamped for the session.
func (s *chatService) isLatest(sessionID string, stamp uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[sessionID] == stamp
}

func lastTurns(history []storage.Message, n int) []storage.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
