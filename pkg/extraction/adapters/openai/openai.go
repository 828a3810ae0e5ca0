// Package openai implements fact extraction on the OpenAI chat
// completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	apperrors "github.com/931405/mem1/pkg/errors"
	"github.com/931405/mem1/pkg/extraction"
	"github.com/931405/mem1/pkg/log"
	"github.com/931405/mem1/pkg/mem/ltm"
)

var (
	// ErrEmptyAPIKey is returned when the API key is missing.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o-mini"

const systemPrompt = `You are the fact extraction stage of a long-term memory
system. From the conversation turn you are given, extract durable facts
about the user: preferences, personal details, habits, plans, and
relationships. Ignore small talk and anything only relevant to this turn.

Respond with a JSON object of the form:
{"facts": [{"fact": "...", "category": "...", "confidence": 0.9}]}

category is one of: personal, preference, work, habit, plan, relationship,
other. confidence is your certainty in [0, 1]. Return {"facts": []} when
there is nothing worth remembering. Output only the JSON.`

// Config holds the configuration for the OpenAI extraction adapter.
type Config struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the chat model, e.g. "gpt-4o-mini".
	Model string
	// BaseURL overrides the API endpoint (for proxies and testing).
	BaseURL string
}

// OpenAIExtractor implements extraction.Extractor using the OpenAI API.
type OpenAIExtractor struct {
	client *openai.Client
	model  string
}

// NewOpenAIExtractor creates a new OpenAI extraction adapter.
func NewOpenAIExtractor(config Config) (*OpenAIExtractor, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIExtractor{
		client: openai.NewClientWithConfig(clientConfig),
		model:  config.Model,
	}, nil
}

// Extract implements extraction.Extractor.
func (e *OpenAIExtractor) Extract(ctx context.Context, req extraction.Request) ([]ltm.Fact, error) {
	prompt := buildPrompt(req)
	log.DebugContext(ctx, "Requesting fact extraction", "model", e.model)

	response, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
		MaxTokens:   4000,
	})
	if err != nil {
		log.ErrorContext(ctx, "Extraction call failed", "error", err)
		return nil, apperrors.Wrap(apperrors.ErrExtraction, "openai chat call failed: %v", err)
	}
	if len(response.Choices) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrExtraction, "openai returned no choices")
	}

	facts, err := extraction.ParseFacts(response.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	log.DebugContext(ctx, "Extracted candidate facts", "count", len(facts))
	return facts, nil
}

func buildPrompt(req extraction.Request) string {
	var prompt strings.Builder
	if req.Summary != "" {
		fmt.Fprintf(&prompt, "[Global summary]\n%s\n\n", req.Summary)
	}
	if req.RecentContext != "" {
		fmt.Fprintf(&prompt, "%s\n", req.RecentContext)
	}
	fmt.Fprintf(&prompt, "[Current turn]\nUser: %s\nAI: %s\n", req.UserMessage, req.AIResponse)
	return prompt.String()
}
