package services

import (
	"errors"
	"math/rand"
	"strings"
)

var ErrUnknownZodiacSign = errors.New("unknown zodiac sign")

var zodiacSigns = []string{
	"Aries", "Taurus", "Gemini", "Cancer",
	"Leo", "Virgo", "Libra", "Scorpio",
	"Sagittarius", "Capricorn", "Aquarius", "Pisces",
}

var dailyPredictions = []string{
	"Today is a day of great potential. The stars align to bring you unexpected opportunities in your career.",
	"Your emotional depth will be your strength today. Connect with loved ones and share your feelings.",
	"Financial gains are foreseen. Be wise with your investments and trust your intuition.",
	"A new connection could blossom into something significant. Keep your heart open to new possibilities.",
	"Challenge yourself to step out of your comfort zone. Growth happens when you embrace the unknown.",
	"Patience is key today. Do not rush into decisions; let the universe guide you at the right pace.",
	"Your creativity is at an all-time high. Use this energy to start a new project or hobby.",
	"Focus on your health and well-being. A balanced mind leads to a balanced life.",
	"Travel is on the horizon. Whether physical or spiritual, a journey awaits you.",
	"Conflict may arise, but your diplomatic skills will help resolve it peacefully.",
}

// PredictionService serves canned daily predictions per zodiac sign.
type PredictionService struct{}

func NewPredictionService() *PredictionService {
	return &PredictionService{}
}

func (s *PredictionService) Signs() []string {
	out := make([]string, len(zodiacSigns))
	copy(out, zodiacSigns)
	return out
}

func (s *PredictionService) DailyPrediction(sign string) (string, error) {
	valid := false
	for _, known := range zodiacSigns {
		if strings.EqualFold(known, sign) {
			valid = true
			break
		}
	}
	if !valid {
		return "", ErrUnknownZodiacSign
	}
	return dailyPredictions[rand.Intn(len(dailyPredictions))], nil
}
