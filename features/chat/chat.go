package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tessera/backend/features/project"
	"tessera/backend/internal/enrich"
	"tessera/backend/internal/retrieval"
)

type Chat struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID        string               `json:"id"`
	ChatID    string               `json:"chat_id"`
	Role      string               `json:"role"` // user or assistant
	Content   string               `json:"content"`
	Citations []retrieval.Citation `json:"citations,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

type Repository interface {
	CreateChat(ctx context.Context, c *Chat) error
	GetChat(ctx context.Context, id string) (*Chat, error)
	ListByProject(ctx context.Context, projectID string) ([]Chat, error)
	DeleteChat(ctx context.Context, id string) error

	SaveMessage(ctx context.Context, m *Message) error
	GetMessages(ctx context.Context, chatID string) ([]Message, error)
}

// SettingsProvider resolves a project's retrieval configuration.
type SettingsProvider interface {
	GetSettings(ctx context.Context, projectID string) (*project.Settings, error)
}

// DocumentDirectory scopes retrieval to the project's documents and
// resolves filenames for citations.
type DocumentDirectory interface {
	IDsByProject(ctx context.Context, projectID string) ([]string, error)
	Filenames(ctx context.Context, documentIDs []string) (map[string]string, error)
}

// Retriever is the retrieval engine surface the chat flow uses.
type Retriever interface {
	Retrieve(ctx context.Context, query string, documentIDs []string, params retrieval.Params) ([]retrieval.Chunk, error)
}

type Service struct {
	repo      Repository
	settings  SettingsProvider
	documents DocumentDirectory
	retriever Retriever
	llm       enrich.LLM
}

func NewService(repo Repository, settings SettingsProvider, documents DocumentDirectory, retriever Retriever, llm enrich.LLM) *Service {
	return &Service{
		repo:      repo,
		settings:  settings,
		documents: documents,
		retriever: retriever,
		llm:       llm,
	}
}

func (s *Service) Create(ctx context.Context, projectID, title string) (*Chat, error) {
	if title == "" {
		title = "New Chat"
	}
	c := &Chat{ProjectID: projectID, Title: title}
	if err := s.repo.CreateChat(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

type Detail struct {
	Chat
	Messages []Message `json:"messages"`
}

func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	c, err := s.repo.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.repo.GetMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []Message{}
	}
	return &Detail{Chat: *c, Messages: messages}, nil
}

func (s *Service) List(ctx context.Context, projectID string) ([]Chat, error) {
	return s.repo.ListByProject(ctx, projectID)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteChat(ctx, id)
}

// Exchange is one question-answer round trip.
type Exchange struct {
	UserMessage Message `json:"userMessage"`
	AIMessage   Message `json:"aiMessage"`
}

// Ask runs the full query path: persist the user message, retrieve context
// for the project's documents under its configured strategy, invoke the
// model grounded on that context, persist the assistant reply with its
// citations.
func (s *Service) Ask(ctx context.Context, projectID, chatID, content string) (*Exchange, error) {
	userMsg := &Message{ChatID: chatID, Role: "user", Content: content}
	if err := s.repo.SaveMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	settings, err := s.settings.GetSettings(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	documentIDs, err := s.documents.IDsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("resolve project documents: %w", err)
	}

	chunks, err := s.retriever.Retrieve(ctx, content, documentIDs, settings.Params())
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	slog.InfoContext(ctx, "retrieved context", "strategy", settings.RAGStrategy, "chunks", len(chunks))

	ragContext, err := retrieval.BuildContext(ctx, s.documents, chunks)
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}

	answer, err := s.llm.Invoke(ctx, enrich.Message{
		Text:   buildGroundedPrompt(ragContext, content),
		Images: ragContext.Images,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke model: %w", err)
	}

	aiMsg := &Message{ChatID: chatID, Role: "assistant", Content: answer, Citations: ragContext.Citations}
	if err := s.repo.SaveMessage(ctx, aiMsg); err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}

	return &Exchange{UserMessage: *userMsg, AIMessage: *aiMsg}, nil
}
