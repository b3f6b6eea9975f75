package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/llm"
	"github.com/parleyhq/parley/internal/retrieval"
	"github.com/parleyhq/parley/internal/storage"
	"github.com/parleyhq/parley/pkg/types"
)

// historyLimit is how many prior messages are replayed to the model,
// including the message being answered.
const historyLimit = 11

var (
	// ErrNotAISession is returned when the session exists but is not an AI
	// chat, so there is no bot to answer.
	ErrNotAISession = errors.New("chat: session is not an AI chat")

	// ErrNoUserMessage is returned when the session has no user message to
	// respond to.
	ErrNoUserMessage = errors.New("chat: no user message to respond to")
)

// Retriever is the slice of the retrieval engine the responder needs.
type Retriever interface {
	Retrieve(ctx context.Context, botID, userID, query string, opts retrieval.Options) *types.RAGContext
}

// PreferenceLearner consumes user messages for preference extraction.
type PreferenceLearner interface {
	LearnFromMessage(ctx context.Context, userID, message string)
}

// Responder generates bot replies for AI chat sessions.
type Responder struct {
	registry  *Registry
	chats     storage.ChatStore
	retriever Retriever
	client    llm.ChatClient
	learner   PreferenceLearner
	logger    *log.Logger

	// learnAsync controls whether preference learning runs in a goroutine.
	// Tests disable it to avoid racing the assertions.
	learnAsync bool
}

// NewResponder creates a responder. A nil learner disables preference
// learning; a nil logger falls back to the standard logger.
func NewResponder(registry *Registry, chats storage.ChatStore, retriever Retriever, client llm.ChatClient, learner PreferenceLearner, logger *log.Logger) *Responder {
	if logger == nil {
		logger = log.Default()
	}
	return &Responder{
		registry:   registry,
		chats:      chats,
		retriever:  retriever,
		client:     client,
		learner:    learner,
		logger:     logger,
		learnAsync: true,
	}
}

// Respond generates and persists the bot's reply to the latest user message
// in the session. It returns the saved assistant message.
func (r *Responder) Respond(ctx context.Context, sessionID string) (*types.ChatMessage, error) {
	session, err := r.chats.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsAI {
		return nil, ErrNotAISession
	}

	bot, err := r.registry.Get(session.BotID)
	if err != nil {
		return nil, err
	}

	latest, err := r.chats.LatestUserMessage(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoUserMessage
		}
		return nil, err
	}

	history, err := r.chats.ListMessages(ctx, sessionID, historyLimit)
	if err != nil {
		return nil, err
	}

	// Retrieval degrades to a safe empty context on any failure, so the
	// reply path never stalls on the knowledge base.
	rag := r.retriever.Retrieve(ctx, session.BotID, session.UserID, latest.Content, retrieval.Options{})

	messages := buildMessages(bot, latest.SenderName, rag.FormattedContext, history)

	reply, err := r.client.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("chat: completion failed: %w", err)
	}

	aiMsg := &types.ChatMessage{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		SenderID:    types.AssistantSenderID,
		SenderName:  bot.Name,
		Content:     reply,
		IsRead:      true,
		IsDelivered: true,
		CreatedAt:   time.Now(),
	}
	if err := r.chats.SaveMessage(ctx, aiMsg); err != nil {
		return nil, err
	}

	if err := r.chats.MarkRead(ctx, latest.ID); err != nil {
		r.logger.Printf("chat: failed to mark message %s read: %v", latest.ID, err)
	}

	if r.learner != nil {
		if r.learnAsync {
			// Fire and forget: learning must not delay the reply, and the
			// request context may be gone by the time it finishes.
			go r.learner.LearnFromMessage(context.Background(), session.UserID, latest.Content)
		} else {
			r.learner.LearnFromMessage(ctx, session.UserID, latest.Content)
		}
	}

	return aiMsg, nil
}

// buildMessages assembles the prompt: a system message carrying the bot's
// persona, the user's name when known, and the retrieved context, followed
// by the conversation history in order.
func buildMessages(bot types.Bot, userName, formattedContext string, history []types.ChatMessage) []llm.Message {
	var sb strings.Builder
	sb.WriteString(bot.SystemPrompt)
	sb.WriteString("\n")
	if userName != "" {
		sb.WriteString(fmt.Sprintf("The user's name is %s.\n", userName))
	}
	sb.WriteString(formattedContext)

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: sb.String()})

	for _, m := range history {
		role := llm.RoleUser
		if m.FromAssistant() {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}

	return messages
}
