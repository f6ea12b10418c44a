package models

import (
	"time"

	"gorm.io/gorm"
)

// Sender values for Message. The set is closed; anything else is a bug.
const (
	SenderUser       = "user"
	SenderAstrologer = "astrologer"
)

type ChatSession struct {
	gorm.Model
	SessionID    string `gorm:"index;unique"`
	AstrologerID string `gorm:"index"`
	IsActive     bool
	StartedAt    time.Time
	EndedAt      *time.Time
}

// Message is append-only once created. The string ID doubles as the
// deduplication key between a local fallback append and feed delivery.
type Message struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"index" json:"session_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
