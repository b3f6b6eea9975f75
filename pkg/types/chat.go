package types

import "time"

// AssistantSenderID is the reserved sender ID for bot-authored messages.
const AssistantSenderID = "ai-assistant"

// Bot is a configured assistant identity. Bots are loaded from the YAML
// registry at startup and are read-only at runtime.
type Bot struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	SystemPrompt string `json:"systemPrompt" yaml:"system_prompt"`
}

// ChatSession is a conversation between a user and a bot.
type ChatSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	BotID     string    `json:"botId"`
	IsAI      bool      `json:"isAI"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChatMessage is a single message within a session. Bot replies carry
// AssistantSenderID as the sender and the bot's name as SenderName.
type ChatMessage struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	SenderID    string    `json:"senderId"`
	SenderName  string    `json:"senderName"`
	Content     string    `json:"content"`
	IsRead      bool      `json:"isRead"`
	IsDelivered bool      `json:"isDelivered"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FromAssistant reports whether the message was authored by the bot.
func (m *ChatMessage) FromAssistant() bool {
	return m.SenderID == AssistantSenderID
}
