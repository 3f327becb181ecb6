package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/utils"
)

// GeminiProvider answers through the Google Gemini API. A fresh client is
// created per request so a dead connection never wedges the chain.
type GeminiProvider struct {
	cfg    config.ChatConfig
	logger *utils.Logger
}

// NewGeminiProvider creates the Gemini chat provider
func NewGeminiProvider(cfg config.ChatConfig, logger *utils.Logger) *GeminiProvider {
	return &GeminiProvider{cfg: cfg, logger: logger.Named("gemini")}
}

// Name identifies the provider
func (p *GeminiProvider) Name() string { return "gemini" }

// Available reports whether an API key is configured
func (p *GeminiProvider) Available() bool { return p.cfg.GeminiAPIKey != "" }

// Ask sends one message to Gemini and returns the text reply
func (p *GeminiProvider) Ask(ctx context.Context, message string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(p.cfg.GeminiAPIKey))
	if err != nil {
		return "", fmt.Errorf("%w: gemini client: %v", utils.ErrProvider, err)
	}
	defer client.Close()

	model := client.GenerativeModel(p.cfg.GeminiModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemPrompt)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(message))
	if err != nil {
		return "", fmt.Errorf("%w: gemini generate: %v", utils.ErrProvider, err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	reply := strings.TrimSpace(sb.String())
	if reply == "" {
		return "", fmt.Errorf("%w: gemini returned an empty reply", utils.ErrProvider)
	}
	return reply, nil
}
