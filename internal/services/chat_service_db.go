package services

import (
	"context"

	"astroconnect_go_backend/internal/models"
	"astroconnect_go_backend/internal/utils/broker"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatServiceDB is the GORM-backed remote message store. A successful insert
// is published to the feed so subscribers receive the canonical copy.
type ChatServiceDB struct {
	db   *gorm.DB
	feed *broker.Broker
}

func NewChatServiceDB(db *gorm.DB, feed *broker.Broker) *ChatServiceDB {
	return &ChatServiceDB{db: db, feed: feed}
}

// Insert persists a message under a server-assigned id and timestamp, then
// publishes it for feed delivery.
func (s *ChatServiceDB) Insert(ctx context.Context, sessionID, sender, content string) error {
	msg := models.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Sender:    sender,
		Content:   content,
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return err
	}
	s.feed.Publish(sessionID, msg)
	return nil
}

// Query retrieves all messages for a session ordered by creation time.
func (s *ChatServiceDB) Query(ctx context.Context, sessionID string) ([]models.Message, error) {
	var messages []models.Message
	result := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at asc").
		Find(&messages)
	if result.Error != nil {
		return nil, result.Error
	}
	return messages, nil
}

// SaveSession creates or updates the session record.
func (s *ChatServiceDB) SaveSession(ctx context.Context, session *models.ChatSession) error {
	result := s.db.WithContext(ctx).
		Where(models.ChatSession{SessionID: session.SessionID}).
		Assign(session).
		FirstOrCreate(session)
	return result.Error
}

// EndSession marks the session inactive and stamps its end time.
func (s *ChatServiceDB) EndSession(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).
		Model(&models.ChatSession{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  gorm.Expr("NOW()"),
		}).Error
}

// GetSession retrieves a session record by its public id.
func (s *ChatServiceDB) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	result := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session)
	if result.Error != nil {
		return nil, result.Error
	}
	return &session, nil
}
