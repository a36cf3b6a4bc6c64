package summary

import (
	"context"
	"fmt"

	"moonpulse/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultModel       = "gpt-4o"
	DefaultTemperature = 1.0
)

// LLMClient abstracts the OpenAI chat completions API for testability.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// Narrator turns an assembled request into prose.
type Narrator interface {
	Narrate(ctx context.Context, req domain.SummaryRequest) (string, error)
}

type OpenAINarrator struct {
	tracer      trace.Tracer
	llm         LLMClient
	model       string
	temperature float64
}

// NewOpenAINarrator accepts a nil llm; Narrate then reports a
// configuration error instead of calling out.
func NewOpenAINarrator(tracer trace.Tracer, llm LLMClient, model string, temperature float64) *OpenAINarrator {
	if model == "" {
		model = DefaultModel
	}
	return &OpenAINarrator{
		tracer:      tracer,
		llm:         llm,
		model:       model,
		temperature: temperature,
	}
}

func (n *OpenAINarrator) Narrate(ctx context.Context, req domain.SummaryRequest) (string, error) {
	ctx, span := n.tracer.Start(ctx, "summary.narrate")
	defer span.End()

	if n.llm == nil {
		return "", domain.ConfigError("OPENAI_API_KEY is not set")
	}

	prompt := req.Prompt()
	span.SetAttributes(
		attribute.String("llm.model", n.model),
		attribute.String("symbol", req.Symbol),
		attribute.Int("llm.prompt_length", len(prompt)),
	)

	completion, err := n.llm.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model:       n.model,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(n.temperature),
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("narrative generation: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("narrative generation: no choices in response")
	}

	reply := completion.Choices[0].Message.Content
	span.SetAttributes(attribute.Int("llm.reply_length", len(reply)))
	return reply, nil
}

// openaiClient wraps the official SDK's chat completions service.
type openaiClient struct {
	client openai.Client
}

func NewOpenAIClient(apiKey string) LLMClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiClient{client: client}
}

func (c *openaiClient) CreateChatCompletion(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
