package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/tordrt/ldmgen/internal/config"
)

const systemPrompt = "You are a senior data modeller. Answer with a single JSON object that matches the requested shape exactly. Do not add prose or markdown."

// OpenAIClient talks to the OpenAI chat completions API or any compatible server
type OpenAIClient struct {
	cfg    config.LLMConfig
	logger *slog.Logger

	mu     sync.Mutex
	client *openai.Client
}

// NewOpenAI creates a client from configuration. It is not ready until Init succeeds.
func NewOpenAI(cfg config.LLMConfig, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{cfg: cfg, logger: logger}
}

// Ready reports whether Init has succeeded
func (c *OpenAIClient) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil
}

// Init builds the API client. A base URL without a key is allowed for local servers.
func (c *OpenAIClient) Init(ctx context.Context) error {
	if c.cfg.APIKey == "" && c.cfg.BaseURL == "" {
		return ErrNotConfigured
	}

	oc := openai.DefaultConfig(c.cfg.APIKey)
	if c.cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(c.cfg.BaseURL, "/")
	}

	c.mu.Lock()
	c.client = openai.NewClientWithConfig(oc)
	c.mu.Unlock()
	c.logger.Debug("llm client initialised", "model", c.cfg.Model, "baseURL", oc.BaseURL)
	return nil
}

// Send runs one chat completion in JSON mode
func (c *OpenAIClient) Send(ctx context.Context, prompt string) (json.RawMessage, error) {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return nil, ErrNotReady
	}

	c.logger.Debug("llm request", "model", c.cfg.Model, "promptBytes", len(prompt))
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("llm response", "responseBytes", len(content), "totalTokens", resp.Usage.TotalTokens)
	return ExtractJSON(content)
}
