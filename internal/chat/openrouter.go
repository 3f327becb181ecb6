package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/utils"
)

const openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouterProvider answers through the OpenRouter chat-completions API,
// the secondary hop in the fallback chain.
type OpenRouterProvider struct {
	cfg    config.ChatConfig
	http   *http.Client
	logger *utils.Logger
}

// NewOpenRouterProvider creates the OpenRouter chat provider
func NewOpenRouterProvider(cfg config.ChatConfig, logger *utils.Logger) *OpenRouterProvider {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenRouterProvider{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logger.Named("openrouter"),
	}
}

// Name identifies the provider
func (p *OpenRouterProvider) Name() string { return "openrouter" }

// Available reports whether an API key is configured
func (p *OpenRouterProvider) Available() bool { return p.cfg.OpenRouterAPIKey != "" }

type openRouterRequest struct {
	Model    string              `json:"model"`
	Messages []openRouterMessage `json:"messages"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Ask sends one message to OpenRouter and returns the text reply
func (p *OpenRouterProvider) Ask(ctx context.Context, message string) (string, error) {
	payload, err := json.Marshal(openRouterRequest{
		Model: p.cfg.OpenRouterModel,
		Messages: []openRouterMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: message},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: openrouter marshal: %v", utils.ErrProvider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openRouterURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: openrouter request: %v", utils.ErrProvider, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.OpenRouterAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: openrouter call: %v", utils.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: openrouter returned %d: %s", utils.ErrProvider, resp.StatusCode, string(body))
	}

	var out openRouterResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: openrouter decode: %v", utils.ErrProvider, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: openrouter returned no choices", utils.ErrProvider)
	}
	reply := strings.TrimSpace(out.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("%w: openrouter returned an empty reply", utils.ErrProvider)
	}
	return reply, nil
}
