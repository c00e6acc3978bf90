// Package llm wraps the text-generation service behind a small Generator
// interface: render a named template with variables, return the model's
// text. Two backends are provided, one for any langchaingo model (Ollama in
// the default deployment) and one speaking the OpenAI chat API directly.
package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"

	"github.com/insurlab/advisor/prompt"
	"github.com/insurlab/advisor/retry"
)

// ErrGeneration marks a failed or empty text-generation call. Callers
// recover locally (placeholder question, fallback recommendation); it is
// never surfaced raw to an end user.
var ErrGeneration = errors.New("text generation failed")

// Generator invokes the text-generation service with a named template.
type Generator interface {
	Invoke(ctx context.Context, templateName string, vars map[string]any) (string, error)
}

// Reasoning models wrap deliberation in <think> blocks that must never
// reach displayed output.
var thinkPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripReasoning removes reasoning markup and trims the result.
func StripReasoning(text string) string {
	text = thinkPattern.ReplaceAllString(text, "")
	// An unterminated block means the model never left deliberation.
	if idx := strings.Index(text, "<think>"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// LangChainGenerator adapts any langchaingo llms.Model.
type LangChainGenerator struct {
	model  llms.Model
	policy retry.Policy
}

var _ Generator = (*LangChainGenerator)(nil)

// NewLangChainGenerator wraps model. Generation does not retry unless a
// policy is supplied via WithRetry.
func NewLangChainGenerator(model llms.Model) *LangChainGenerator {
	return &LangChainGenerator{model: model, policy: retry.None()}
}

// WithRetry returns a copy of the generator using the given retry policy.
func (g *LangChainGenerator) WithRetry(p retry.Policy) *LangChainGenerator {
	return &LangChainGenerator{model: g.model, policy: p}
}

// Invoke renders the named template and calls the model.
func (g *LangChainGenerator) Invoke(ctx context.Context, templateName string, vars map[string]any) (string, error) {
	text, err := prompt.Render(templateName, vars)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	output, err := retry.Do(ctx, g.policy, func(ctx context.Context) (string, error) {
		return llms.GenerateFromSinglePrompt(ctx, g.model, text)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if strings.TrimSpace(output) == "" {
		return "", fmt.Errorf("%w: empty model output", ErrGeneration)
	}
	return output, nil
}

// OpenAIGenerator speaks the OpenAI chat-completion API, which also covers
// OpenAI-compatible local servers.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	policy retry.Policy
}

var _ Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator creates a generator for the given model name. baseURL
// is optional and overrides the default API endpoint.
func NewOpenAIGenerator(apiKey, baseURL, model string) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		policy: retry.None(),
	}
}

// WithRetry returns a copy of the generator using the given retry policy.
func (g *OpenAIGenerator) WithRetry(p retry.Policy) *OpenAIGenerator {
	return &OpenAIGenerator{client: g.client, model: g.model, policy: p}
}

// Invoke renders the named template and calls the chat-completion API.
func (g *OpenAIGenerator) Invoke(ctx context.Context, templateName string, vars map[string]any) (string, error) {
	text, err := prompt.Render(templateName, vars)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	output, err := retry.Do(ctx, g.policy, func(ctx context.Context) (string, error) {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: g.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: text},
			},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("no choices in completion response")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if strings.TrimSpace(output) == "" {
		return "", fmt.Errorf("%w: empty model output", ErrGeneration)
	}
	return output, nil
}
