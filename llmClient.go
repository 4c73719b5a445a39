package chatpod

import (
	"context"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// Define a custom type for context keys
type ContextKey string

// GenerateParams carries the per-request knobs for a generation call.
type GenerateParams struct {
	Model       string
	Temperature float64
}

// Usage is the token accounting reported by the provider for one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// LLM wraps the provider client. Beyond plain pass-through it injects session
// and customer identifiers into request metadata.
type LLM struct {
	APIKey  string
	BaseURL string
	Model   string
	client  *openai.Client
}

func NewLLM(apiKey string, baseURL string, model string) *LLM {
	var client *openai.Client
	if baseURL != "" {
		client = openai.NewClient(option.WithBaseURL(baseURL), option.WithAPIKey(apiKey))
	} else {
		client = openai.NewClient(option.WithAPIKey(apiKey))
	}
	return &LLM{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   model,
		client:  client,
	}
}

func optsWithIds(ctx context.Context, opts []option.RequestOption) []option.RequestOption {
	if sessionID, ok := ctx.Value(ContextKey("sessionID")).(string); ok {
		opts = append(opts, option.WithJSONSet("custom_identifier", sessionID))
	}

	if customerID, ok := ctx.Value(ContextKey("customerID")).(string); ok {
		opts = append(opts, option.WithJSONSet("customer_identifier", customerID))
	}

	if extraMeta, ok := ctx.Value(ContextKey("extra")).(map[string]string); ok {
		for key, value := range extraMeta {
			opts = append(opts, option.WithJSONSet(key, value))
		}
	}

	return opts
}

// New issues a non-streaming chat completion request.
func (c *LLM) New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	opts := []option.RequestOption{}
	opts = optsWithIds(ctx, opts)
	return c.client.Chat.Completions.New(ctx, params, opts...)
}

// NewStreaming issues a streaming chat completion request.
func (c *LLM) NewStreaming(ctx context.Context, params openai.ChatCompletionNewParams) *ssestream.Stream[openai.ChatCompletionChunk] {
	opts := []option.RequestOption{}
	opts = optsWithIds(ctx, opts)
	return c.client.Chat.Completions.NewStreaming(ctx, params, opts...)
}

// Generate sends the history to the provider and returns the reply as a new
// assistant message. Provider errors surface to the caller verbatim; there is
// no retry policy.
func (c *LLM) Generate(ctx context.Context, history *MessageList, params GenerateParams) (Message, Usage, error) {
	model := params.Model
	if model == "" {
		model = c.Model
	}
	completionParams := openai.ChatCompletionNewParams{
		Messages: openai.F(history.Params()),
		Model:    openai.F(model),
	}
	if params.Temperature > 0 {
		completionParams.Temperature = openai.F(params.Temperature)
	}

	completion, err := c.New(ctx, completionParams)
	if err != nil {
		return Message{}, Usage{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Message{}, Usage{}, fmt.Errorf("chat completion returned no choices")
	}

	usage := Usage{
		InputTokens:  completion.Usage.PromptTokens,
		OutputTokens: completion.Usage.CompletionTokens,
	}
	return AssistantMessage(completion.Choices[0].Message.Content), usage, nil
}

func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}
