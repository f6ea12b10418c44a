package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"astroconnect_go_backend/internal/metrics"
	"astroconnect_go_backend/internal/models"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
)

const astroChatSystemPrompt = `You are an expert Vedic astrologer and spiritual guide. You provide insightful, compassionate guidance on astrology, horoscopes, planetary influences, Kundali matching, auspicious timings (muhurat), doshas, and spiritual matters.

Keep responses concise but informative. Use Hindi terms where appropriate (like Rashi, Nakshatra, Graha) with English explanations. Add relevant emojis occasionally. Be warm and respectful, addressing users with "Namaste" when appropriate.`

// GenAICompleter implements ChatCompleter on top of the Gemini client.
type GenAICompleter struct {
	client    *genai.Client
	modelName string
}

func NewGenAICompleter(client *genai.Client, modelName string) *GenAICompleter {
	return &GenAICompleter{client: client, modelName: modelName}
}

func (g *GenAICompleter) Complete(ctx context.Context, systemPrompt string, history []ChatTurn) (string, error) {
	if len(history) == 0 {
		return "", errors.New("empty conversation history")
	}

	model := g.client.GenerativeModel(g.modelName)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

	session := model.StartChat()
	for _, turn := range history[:len(history)-1] {
		role := "user"
		if turn.Role == "assistant" {
			role = "model"
		}
		session.History = append(session.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(history[len(history)-1].Content))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("empty response from model")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}
	if out.Len() == 0 {
		return "", errors.New("no text content in response")
	}
	return out.String(), nil
}

var simulatedChatResponses = []string{
	"The planetary alignments suggest a period of transformation for you. It's a good time to focus on personal growth.",
	"Based on the cosmic energy, I see new opportunities coming your way. Stay open to unexpected changes.",
	"Your chart indicates a strong influence of Jupiter, bringing wisdom and expansion to your current situation.",
	"Saturn's presence might bring some challenges, but they are tests of your resilience and will lead to long-term success.",
	"In matters of relationships, Venus favors harmony right now. Communication will be key to resolving any conflicts.",
	"The Moon's phase affects your emotional state. Take some time for self-reflection and meditation.",
	"Mars gives you the energy to pursue your goals, but be wary of impulsive decisions. Channel your energy wisely.",
	"Mercury is direct, which is great for clear thinking and making important decisions regarding your career.",
}

var simulatedLiveReplies = []string{
	"The stars are aligning in your favor. I sense great energy around you.",
	"Your birth chart shows a strong connection to Venus. Love and beauty guide your path.",
	"Mercury is in retrograde, so communication may feel challenging. Take time to reflect.",
	"I see Jupiter's blessing upon you. Expansion and growth await in your near future.",
	"The moon's phases suggest this is a time for new beginnings. Trust your intuition.",
	"Saturn teaches patience. The challenges you face now will shape your strength.",
	"Your aura radiates positive energy. The universe is conspiring in your favor.",
	"Mars gives you courage. Now is the time to take bold action towards your dreams.",
}

// AstroAIService answers free-form astrology questions via the AI proxy and
// degrades to a canned simulation whenever the proxy is unreachable.
type AstroAIService struct {
	completer ChatCompleter
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

func NewAstroAIService(completer ChatCompleter, m *metrics.Metrics, logger zerolog.Logger) *AstroAIService {
	return &AstroAIService{
		completer: completer,
		metrics:   m,
		log:       logger.With().Str("component", "astro_ai").Logger(),
	}
}

// Chat continues a conversation. Transport failure is never surfaced; the
// reply falls back to keyword-matched simulation.
func (s *AstroAIService) Chat(ctx context.Context, history []ChatTurn, birth *models.BirthDetails) string {
	systemPrompt := astroChatSystemPrompt
	if birth != nil {
		systemPrompt += fmt.Sprintf(`

The user has provided their birth details:
Name: %s
Gender: %s
Date of Birth: %s
Time of Birth: %s
Place of Birth: %s

Use this information to provide personalized astrological insights when relevant.`,
			birth.Name, birth.Gender, birth.DateOfBirth, birth.TimeOfBirth, birth.BirthPlace)
	}

	start := time.Now()
	reply, err := s.completer.Complete(ctx, systemPrompt, history)
	status := "ok"
	if err != nil {
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.AIRequests.WithLabelValues("chat", status).Inc()
		s.metrics.AILatency.WithLabelValues("chat", status).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("AI proxy unavailable, switching to simulation mode")
		lastUser := ""
		for i := len(history) - 1; i >= 0; i-- {
			if history[i].Role == "user" {
				lastUser = history[i].Content
				break
			}
		}
		return s.SimulatedReply(lastUser)
	}
	return reply
}

// SimulatedReply picks a canned answer, with keyword matching for the
// common question categories.
func (s *AstroAIService) SimulatedReply(userMessage string) string {
	lower := strings.ToLower(userMessage)
	switch {
	case strings.Contains(lower, "love") || strings.Contains(lower, "relationship") || strings.Contains(lower, "marriage"):
		return "Venus is shining brightly in your sector of relationships. Deep connections are favoring you, but patience is required for long-term stability."
	case strings.Contains(lower, "career") || strings.Contains(lower, "job") || strings.Contains(lower, "money"):
		return "The 10th house of career shows activity. Hard work puts you in favor, and financial gains are likely if you remain disciplined."
	case strings.Contains(lower, "health"):
		return "Your 6th house suggests paying attention to daily routines. Minor adjustments to diet and sleep will bring significant energy improvements."
	}
	return simulatedChatResponses[rand.Intn(len(simulatedChatResponses))]
}

// SimulatedLiveReply returns a canned astrologer reply for the metered live
// chat flow.
func (s *AstroAIService) SimulatedLiveReply() string {
	return simulatedLiveReplies[rand.Intn(len(simulatedLiveReplies))]
}
