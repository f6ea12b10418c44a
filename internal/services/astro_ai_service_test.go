package services_test

import (
	"context"
	"strings"
	"testing"

	"astroconnect_go_backend/internal/services"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestChatReturnsModelReply(t *testing.T) {
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("The stars favor bold moves this week.", nil)

	svc := services.NewAstroAIService(completer, nil, zerolog.Nop())
	reply := svc.Chat(context.Background(), []services.ChatTurn{{Role: "user", Content: "What does my week look like?"}}, nil)
	assert.Equal(t, "The stars favor bold moves this week.", reply)
}

func TestChatFallsBackToSimulationOnTransportFailure(t *testing.T) {
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", assert.AnError)

	svc := services.NewAstroAIService(completer, nil, zerolog.Nop())
	reply := svc.Chat(context.Background(), []services.ChatTurn{
		{Role: "user", Content: "Will my career improve this year?"},
		{Role: "assistant", Content: "Tell me more."},
	}, nil)
	assert.Contains(t, reply, "career")
}

func TestChatWithBirthDetailsSendsEnrichedPrompt(t *testing.T) {
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "Jaipur")
	}), mock.Anything).Return("Personalized insight.", nil)

	svc := services.NewAstroAIService(completer, nil, zerolog.Nop())
	reply := svc.Chat(context.Background(), []services.ChatTurn{{Role: "user", Content: "Hello"}}, &testBirthDetails)
	assert.Equal(t, "Personalized insight.", reply)
	completer.AssertExpectations(t)
}

func TestSimulatedReplyMatchesKeywords(t *testing.T) {
	svc := services.NewAstroAIService(new(MockCompleter), nil, zerolog.Nop())

	assert.Contains(t, svc.SimulatedReply("Will I find LOVE soon?"), "Venus")
	assert.Contains(t, svc.SimulatedReply("money troubles"), "career")
	assert.Contains(t, svc.SimulatedReply("how is my health"), "6th house")
	assert.NotEmpty(t, svc.SimulatedReply("something else entirely"))
}

func TestSimulatedLiveReplyIsNeverEmpty(t *testing.T) {
	svc := services.NewAstroAIService(new(MockCompleter), nil, zerolog.Nop())
	for i := 0; i < 20; i++ {
		assert.NotEmpty(t, svc.SimulatedLiveReply())
	}
}
