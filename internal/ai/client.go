package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/solvia-digital/whatsflow/internal/domain"
)

// defaultSystemPrompt steers the model when the flow sheet carries none.
const defaultSystemPrompt = "Eres el asistente virtual de la firma. " +
	"Responde en español, breve y cordial."

// PromptSource supplies the sheet-configured system prompt.
type PromptSource interface {
	SystemPrompt(ctx context.Context) (string, error)
}

// HistoryReader supplies recent conversation turns as completion context.
type HistoryReader interface {
	RecentMessages(ctx context.Context, userID string, n int) ([]domain.StoredMessage, error)
}

// Config holds completion-client configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	HistoryLimit   int
	RequestTimeout time.Duration
}

// Client is the openai-go backed Responder.
type Client struct {
	oa           openai.Client
	model        string
	historyLimit int
	timeout      time.Duration
	prompts      PromptSource
	history      HistoryReader
}

// NewClient creates a completion client. prompts and history are optional;
// without them the client falls back to the default prompt and a
// single-turn request.
func NewClient(cfg Config, prompts PromptSource, history HistoryReader) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		oa: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
		),
		model:        cfg.Model,
		historyLimit: cfg.HistoryLimit,
		timeout:      timeout,
		prompts:      prompts,
		history:      history,
	}
}

// Reply completes the user's message with system prompt and recent history
// as context. All failures wrap ErrService.
func (c *Client) Reply(ctx context.Context, userID, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(c.systemPrompt(ctx)),
	}
	messages = append(messages, c.historyMessages(ctx, userID)...)
	messages = append(messages, openai.UserMessage(text))

	completion, err := c.oa.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrService, err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", ErrService)
	}
	return completion.Choices[0].Message.Content, nil
}

func (c *Client) systemPrompt(ctx context.Context) string {
	if c.prompts == nil {
		return defaultSystemPrompt
	}
	prompt, err := c.prompts.SystemPrompt(ctx)
	if err != nil || prompt == "" {
		if err != nil {
			slog.Warn("failed to fetch system prompt, using default", "error", err)
		}
		return defaultSystemPrompt
	}
	return prompt
}

func (c *Client) historyMessages(ctx context.Context, userID string) []openai.ChatCompletionMessageParamUnion {
	if c.history == nil || c.historyLimit <= 0 {
		return nil
	}
	stored, err := c.history.RecentMessages(ctx, userID, c.historyLimit)
	if err != nil {
		slog.Warn("failed to load history for completion context", "user_id", userID, "error", err)
		return nil
	}

	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(stored))
	for _, m := range stored {
		switch m.Role {
		case domain.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
