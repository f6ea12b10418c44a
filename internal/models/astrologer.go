package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Astrologer struct {
	gorm.Model
	AstrologerID string          `gorm:"index;unique" json:"id"`
	Name         string          `json:"name"`
	Specialty    string          `json:"specialty,omitempty"`
	PricePerMin  decimal.Decimal `gorm:"type:numeric(10,2)" json:"price_per_min"`
	Rating       float64         `json:"rating,omitempty"`
	AvatarURL    string          `json:"avatar_url,omitempty"`
	IsOnline     bool            `gorm:"index" json:"is_online"`
}
