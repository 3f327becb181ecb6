package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agrisense/irrigation-backend/internal/chat"
	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/state"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"go.uber.org/zap"
)

// ChatResponse is one assistant reply plus which provider produced it
type ChatResponse struct {
	Reply    string `json:"reply"`
	Provider string `json:"provider"`
}

const staticReply = "I can help with questions about your irrigation system, soil moisture, " +
	"weather and watering schedules. The live dashboard shows current sensor values."

// ChatService answers user questions through a provider fallback chain. It
// never returns an error to the caller; when every provider fails it falls
// back to a weather summary or a static reply.
type ChatService struct {
	cfg         *config.Config
	providers   []chat.Provider
	sharedState *state.SharedState
	logger      *utils.Logger
}

// NewChatService creates the chat service with providers in fallback order
func NewChatService(cfg *config.Config, sharedState *state.SharedState, logger *utils.Logger) *ChatService {
	log := logger.Named("chat_service")
	return &ChatService{
		cfg: cfg,
		providers: []chat.Provider{
			chat.NewGeminiProvider(cfg.Chat, log),
			chat.NewOpenRouterProvider(cfg.Chat, log),
		},
		sharedState: sharedState,
		logger:      log,
	}
}

// Ask answers one user message. Input beyond the configured limit is
// truncated rather than rejected.
func (s *ChatService) Ask(ctx context.Context, message string) *ChatResponse {
	message = strings.TrimSpace(message)
	if message == "" {
		return &ChatResponse{Reply: staticReply, Provider: "static"}
	}
	if max := s.cfg.Chat.MaxInputChars; max > 0 && len(message) > max {
		message = message[:max]
	}

	timeout := time.Duration(s.cfg.Chat.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	for _, p := range s.providers {
		if !p.Available() {
			continue
		}
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		reply, err := p.Ask(reqCtx, message)
		cancel()
		if err != nil {
			s.logger.Warn("Chat provider failed, trying next",
				zap.String("provider", p.Name()), zap.Error(err))
			continue
		}
		return &ChatResponse{Reply: reply, Provider: p.Name()}
	}

	if reply, ok := s.weatherReply(message); ok {
		return &ChatResponse{Reply: reply, Provider: "weather"}
	}
	return &ChatResponse{Reply: staticReply, Provider: "static"}
}

// weatherReply answers weather questions from the cached snapshot when no AI
// provider is reachable
func (s *ChatService) weatherReply(message string) (string, bool) {
	lower := strings.ToLower(message)
	if !strings.Contains(lower, "weather") && !strings.Contains(lower, "rain") &&
		!strings.Contains(lower, "temperature") && !strings.Contains(lower, "forecast") {
		return "", false
	}

	w := s.sharedState.Weather()
	if w.FetchedAt.IsZero() {
		return "", false
	}

	advice := "Irrigation recommended."
	if w.RainProbPct > 50 {
		advice = "Rain likely, consider skipping irrigation."
	}
	return fmt.Sprintf("%s weather today: %.1f C, %.0f%% humidity, rain chance %.0f%%. %s",
		w.City, w.Temperature, w.Humidity, w.RainProbPct, advice), true
}
