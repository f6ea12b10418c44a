package services

import (
	"context"

	"astroconnect_go_backend/internal/models"
)

// KeyValueStore persists small values across process restarts. Absence or
// failure is treated as "use default" by callers.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// MessageStore is the remote persistence for session messages. Insert failure
// must not be treated as fatal by callers; it triggers local fallback.
type MessageStore interface {
	Insert(ctx context.Context, sessionID, sender, content string) error
	Query(ctx context.Context, sessionID string) ([]models.Message, error)
}

// MessageFeed is the push delivery mechanism for newly inserted messages.
// Delivery is at-least-once; dedup belongs to the consumer.
type MessageFeed interface {
	Subscribe(sessionID string) <-chan models.Message
	Unsubscribe(sessionID string, ch <-chan models.Message)
}

// SessionStore records session lifecycle for history. Best-effort: callers
// log and continue on failure.
type SessionStore interface {
	SaveSession(ctx context.Context, session *models.ChatSession) error
	EndSession(ctx context.Context, sessionID string) error
}

// AstrologerLister resolves the marketplace roster.
type AstrologerLister interface {
	ListAstrologers(ctx context.Context) ([]models.Astrologer, error)
	GetAstrologer(ctx context.Context, astrologerID string) (*models.Astrologer, error)
}

// ChatTurn is one prior exchange in a conversation sent to the AI proxy.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompleter is the chat-completion proxy boundary. Implementations may
// fail; callers always degrade to a simulated response.
type ChatCompleter interface {
	Complete(ctx context.Context, systemPrompt string, history []ChatTurn) (string, error)
}
