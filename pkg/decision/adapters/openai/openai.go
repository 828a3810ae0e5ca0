// Package openai implements the decision boundary on the OpenAI chat
// completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/931405/mem1/pkg/decision"
	apperrors "github.com/931405/mem1/pkg/errors"
	"github.com/931405/mem1/pkg/log"
	"github.com/931405/mem1/pkg/mem/ltm"
)

var (
	// ErrEmptyAPIKey is returned when the API key is missing.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o-mini"

const systemPrompt = `You are the decision stage of a long-term memory system.
Given a newly extracted fact and the most similar existing memories, decide
exactly one action:

- ADD: the fact is new information worth remembering
- UPDATE: the fact refines or supersedes the most similar existing memory
- DELETE: the fact contradicts the most similar existing memory
- NOOP: the fact is a duplicate or not worth acting on

Respond with JSON of the form {"action": "ADD"} and nothing else.`

// Config holds the configuration for the OpenAI decision adapter.
type Config struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the chat model, e.g. "gpt-4o-mini".
	Model string
	// BaseURL overrides the API endpoint (for proxies and testing).
	BaseURL string
}

// OpenAIDecider implements decision.Decider using the OpenAI API.
type OpenAIDecider struct {
	client *openai.Client
	model  string
}

// NewOpenAIDecider creates a new OpenAI decision adapter.
func NewOpenAIDecider(config Config) (*OpenAIDecider, error) {
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

	return &OpenAIDecider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  config.Model,
	}, nil
}

// Decide implements decision.Decider.
func (d *OpenAIDecider) Decide(ctx context.Context, candidate ltm.Fact, neighbors []ltm.SimilarityResult) (decision.Action, error) {
	prompt := buildPrompt(candidate, neighbors)
	log.DebugContext(ctx, "Requesting memory decision", "model", d.model, "neighbors", len(neighbors))

	response, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		log.ErrorContext(ctx, "Decision call failed", "error", err)
		return decision.ActionNoop, apperrors.Wrap(apperrors.ErrDecision, "openai chat call failed: %v", err)
	}
	if len(response.Choices) == 0 {
		return decision.ActionNoop, apperrors.Wrap(apperrors.ErrDecision, "openai returned no choices")
	}

	action := decision.ParseAction(response.Choices[0].Message.Content)
	log.DebugContext(ctx, "Decision made", "action", action.String())
	return action, nil
}

func buildPrompt(candidate ltm.Fact, neighbors []ltm.SimilarityResult) string {
	var prompt strings.Builder

	prompt.WriteString("[New extracted fact]\n")
	fmt.Fprintf(&prompt, "Fact: %s\n", candidate.Text)
	fmt.Fprintf(&prompt, "Category: %s\n", candidate.Category)
	fmt.Fprintf(&prompt, "Confidence: %.2f\n\n", candidate.Confidence)

	if len(neighbors) == 0 {
		prompt.WriteString("[Existing similar memories]: none\n")
		return prompt.String()
	}

	prompt.WriteString("[Existing memories]\n")
	for i, neighbor := range neighbors {
		fmt.Fprintf(&prompt, "Similar memory %d (similarity: %.2f%%):\n", i+1, neighbor.Score*100)
		fmt.Fprintf(&prompt, "  Fact: %s\n", neighbor.Fact.Text)
		fmt.Fprintf(&prompt, "  Category: %s\n", neighbor.Fact.Category)
		fmt.Fprintf(&prompt, "  Original user message: %s\n", neighbor.Turn.UserMessage)
	}
	return prompt.String()
}
