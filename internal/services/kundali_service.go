package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"astroconnect_go_backend/internal/metrics"
	"astroconnect_go_backend/internal/models"

	"github.com/rs/zerolog"
)

const kundaliSystemPrompt = `You are an expert Vedic astrologer. Based on the birth details provided, generate a personalized Kundali (birth chart) analysis. You must respond with ONLY a valid JSON object (no markdown, no extra text) with this exact structure:
{
  "sunSign": "zodiac sign",
  "moonSign": "moon sign/rashi",
  "ascendant": "rising sign/lagna",
  "nakshatra": "birth star",
  "rashi": "moon sign in Hindi",
  "personality": "2-3 sentence personality description",
  "strengths": ["strength 1", "strength 2", "strength 3"],
  "challenges": ["challenge 1", "challenge 2", "challenge 3"],
  "luckyElements": {
    "number": "lucky number",
    "color": "lucky color",
    "day": "lucky day",
    "gemstone": "recommended gemstone"
  }
}`

var ErrKundaliGeneration = errors.New("failed to generate kundali")

// genericKundali is the clearly-generic substitute used when the model's
// response cannot be parsed into a usable chart.
func genericKundali() *models.KundaliChart {
	return &models.KundaliChart{
		SunSign:     "Aries",
		MoonSign:    "Taurus",
		Ascendant:   "Leo",
		Nakshatra:   "Rohini",
		Rashi:       "Vrishabha",
		Personality: "Based on your birth details, you have a strong and determined personality with natural leadership qualities.",
		Strengths:   []string{"Natural leader", "Creative thinker", "Emotionally resilient"},
		Challenges:  []string{"Can be stubborn", "May overthink decisions", "Needs to balance work and rest"},
		LuckyElements: models.LuckyElements{
			Number:   "7",
			Color:    "Gold",
			Day:      "Sunday",
			Gemstone: "Ruby",
		},
	}
}

// KundaliService generates structured birth-chart analyses through the AI
// proxy. This is the one path where a total failure surfaces to the user.
type KundaliService struct {
	completer ChatCompleter
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

func NewKundaliService(completer ChatCompleter, m *metrics.Metrics, logger zerolog.Logger) *KundaliService {
	return &KundaliService{
		completer: completer,
		metrics:   m,
		log:       logger.With().Str("component", "kundali").Logger(),
	}
}

// GenerateKundali produces a chart for the given birth details. A malformed
// model response falls back to the generic chart; only a transport failure
// propagates as ErrKundaliGeneration.
func (s *KundaliService) GenerateKundali(ctx context.Context, birth models.BirthDetails) (*models.KundaliChart, error) {
	userPrompt := fmt.Sprintf(`Generate a Kundali for:
Name: %s
Gender: %s
Date of Birth: %s
Time of Birth: %s
Place of Birth: %s

Calculate their Vedic astrological chart and provide insights.`,
		birth.Name, birth.Gender, birth.DateOfBirth, birth.TimeOfBirth, birth.BirthPlace)

	start := time.Now()
	content, err := s.completer.Complete(ctx, kundaliSystemPrompt, []ChatTurn{{Role: "user", Content: userPrompt}})
	status := "ok"
	if err != nil {
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.AIRequests.WithLabelValues("kundali", status).Inc()
		s.metrics.AILatency.WithLabelValues("kundali", status).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.log.Error().Err(err).Msg("kundali generation failed")
		return nil, ErrKundaliGeneration
	}

	chart, err := parseKundali(content)
	if err != nil {
		s.log.Warn().Err(err).Msg("unparseable kundali response, substituting generic chart")
		return genericKundali(), nil
	}
	return chart, nil
}

// parseKundali extracts the first JSON object from the model's reply.
func parseKundali(content string) (*models.KundaliChart, error) {
	begin := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if begin < 0 || end <= begin {
		return nil, errors.New("no JSON object found in response")
	}

	var chart models.KundaliChart
	if err := json.Unmarshal([]byte(content[begin:end+1]), &chart); err != nil {
		return nil, err
	}
	if chart.SunSign == "" || chart.MoonSign == "" {
		return nil, errors.New("incomplete chart in response")
	}
	return &chart, nil
}
