package chatpod

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"
)

// Generator is the minimal contract the session runtime needs from a
// language-model provider. Implementations may add helper methods but only
// Generate is relied upon for a turn.
type Generator interface {
	// Generate sends a conversation history and returns the assistant reply
	// along with the provider's token usage for the call.
	Generate(ctx context.Context, history *MessageList, params GenerateParams) (Message, Usage, error)
}

// ChatStreamer is implemented by providers that can stream completion chunks.
// The session runtime prefers it over Generate when streaming is enabled.
type ChatStreamer interface {
	NewStreaming(ctx context.Context, params openai.ChatCompletionNewParams) *ssestream.Stream[openai.ChatCompletionChunk]
}

var _ Generator = &LLM{}
var _ ChatStreamer = &LLM{}
