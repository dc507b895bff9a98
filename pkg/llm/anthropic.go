package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicClient struct {
	client    *anthropic.Client
	model     anthropic.Model
	modelName string
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{
		client:    &client,
		model:     anthropic.Model("claude-haiku-4-5"),
		modelName: "claude-4.5-haiku",
	}
}

func (c *AnthropicClient) ScoreItem(ctx context.Context, input ScoreInput) (*ScoreResult, error) {
	userPrompt := fmt.Sprintf("Headline: %s\nDescription: %s", input.Title, input.Description)

	content, err := c.complete(ctx, scoringSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	result, err := parseScoreResponse(content)
	if err != nil {
		return nil, err
	}

	result.ModelUsed = c.modelName
	return result, nil
}

func (c *AnthropicClient) ExtractChanges(ctx context.Context, text string) (*ExtractResult, error) {
	content, err := c.complete(ctx, extractionSystemPrompt, text)
	if err != nil {
		return nil, err
	}

	result, err := parseExtractResponse(content)
	if err != nil {
		return nil, err
	}

	result.ModelUsed = c.modelName
	return result, nil
}

func (c *AnthropicClient) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})

	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	if len(resp.Content) == 0 {
		return "", fmt.Errorf("no response from anthropic")
	}

	return resp.Content[0].Text, nil
}
