// Package openai backs narration with the OpenAI chat completion API.
package openai

import (
	"context"
	"fmt"

	"github.com/hindsightlab/hindsight/internal/llm"
	"github.com/sashabaranov/go-openai"
)

const defaultModel = "gpt-4o"

// Provider implements llm.Provider over OpenAI.
type Provider struct {
	client *openai.Client
	model  string
}

// New creates an OpenAI provider.
func New(apiKey, model string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key required")
	}
	if model == "" {
		model = defaultModel
	}
	return &Provider{client: openai.NewClient(apiKey), model: model}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "openai"
}

// Complete sends the prompt as a single chat turn.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	resp, err := p.client.CreateChatCompletion(ctx, buildRequest(p.model, req))
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}

	text := ""
	finishReason := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
		finishReason = string(resp.Choices[0].FinishReason)
	}

	return &llm.Response{
		Text: text,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		FinishReason: finishReason,
	}, nil
}

func buildRequest(model string, req llm.Request) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	}
}
