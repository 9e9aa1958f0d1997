package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

// Vision describes images through any OpenAI-compatible multimodal endpoint.
// It backs the relay's vision collaborator; nothing in the streaming path
// depends on it, and the relay runs fine without one configured.
type Vision struct {
	model string

	client *goopenai.Client

	logger *slog.Logger
}

// NewVision creates a Vision instance against the endpoint at baseURL using
// the given API key and model. An empty baseURL targets the OpenAI API.
func NewVision(apiKey, baseURL, model string, logger *slog.Logger) Vision {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return Vision{
		model:  model,
		client: goopenai.NewClientWithConfig(cfg),
		logger: logger.With(slog.String("module", "vision")),
	}
}

// Describe sends a base64-encoded image together with a prompt and returns
// the model's textual description. The image may be raw base64 or a complete
// data URL; a bare payload is assumed to be JPEG.
func (v Vision) Describe(ctx context.Context, imageB64, prompt string) (string, error) {
	if imageB64 == "" {
		return "", errors.New("image is required")
	}
	if prompt == "" {
		prompt = "Describe this image."
	}

	imageURL := imageB64
	if !strings.HasPrefix(imageURL, "data:") {
		imageURL = "data:image/jpeg;base64," + imageURL
	}

	req := goopenai.ChatCompletionRequest{
		Model: v.model,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role: goopenai.ChatMessageRoleUser,
				MultiContent: []goopenai.ChatMessagePart{
					{
						Type: goopenai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: goopenai.ChatMessagePartTypeImageURL,
						ImageURL: &goopenai.ChatMessageImageURL{
							URL: imageURL,
						},
					},
				},
			},
		},
	}

	resp, err := v.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices found")
	}

	v.logger.Debug("Described image", slog.Int("promptLen", len(prompt)))

	return resp.Choices[0].Message.Content, nil
}
