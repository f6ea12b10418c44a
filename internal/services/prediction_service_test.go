package services_test

import (
	"testing"

	"astroconnect_go_backend/internal/services"

	"github.com/stretchr/testify/assert"
)

func TestDailyPredictionAcceptsAnyCaseSign(t *testing.T) {
	svc := services.NewPredictionService()

	for _, sign := range []string{"Aries", "aries", "SCORPIO"} {
		prediction, err := svc.DailyPrediction(sign)
		assert.NoError(t, err)
		assert.NotEmpty(t, prediction)
	}
}

func TestDailyPredictionRejectsUnknownSign(t *testing.T) {
	svc := services.NewPredictionService()

	_, err := svc.DailyPrediction("ophiuchus")
	assert.ErrorIs(t, err, services.ErrUnknownZodiacSign)
}

func TestSignsListsAllTwelve(t *testing.T) {
	svc := services.NewPredictionService()

	signs := svc.Signs()
	assert.Len(t, signs, 12)
	assert.Contains(t, signs, "Capricorn")
}
