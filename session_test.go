package chatpod

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"
)

// mockGenerator answers every Generate call with a canned reply. It records
// the histories it was asked to complete.
type mockGenerator struct {
	reply     string
	usage     Usage
	err       error
	histories []*MessageList
}

func (m *mockGenerator) Generate(ctx context.Context, history *MessageList, params GenerateParams) (Message, Usage, error) {
	m.histories = append(m.histories, history.Clone())
	if m.err != nil {
		return Message{}, Usage{}, m.err
	}
	return AssistantMessage(m.reply), m.usage, nil
}

// chunkDecoder replays canned SSE events so streaming can be exercised
// without a network connection.
type chunkDecoder struct {
	events []ssestream.Event
	idx    int
}

func (d *chunkDecoder) Next() bool {
	if d.idx < len(d.events) {
		d.idx++
		return true
	}
	return false
}

func (d *chunkDecoder) Event() ssestream.Event { return d.events[d.idx-1] }
func (d *chunkDecoder) Close() error           { return nil }
func (d *chunkDecoder) Err() error             { return nil }

// mockStreamer serves the reply as a sequence of delta chunks followed by a
// usage-only chunk, mirroring the provider's stream shape.
type mockStreamer struct {
	mockGenerator
	chunks []string
}

func (m *mockStreamer) NewStreaming(ctx context.Context, params openai.ChatCompletionNewParams) *ssestream.Stream[openai.ChatCompletionChunk] {
	var events []ssestream.Event
	for _, content := range m.chunks {
		data := fmt.Sprintf(`{"id":"chunk-1","choices":[{"index":0,"delta":{"content":%q}}]}`, content)
		events = append(events, ssestream.Event{Data: []byte(data)})
	}
	events = append(events, ssestream.Event{
		Data: []byte(`{"id":"chunk-1","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":2}}`),
	})
	return ssestream.NewStream[openai.ChatCompletionChunk](&chunkDecoder{events: events}, nil)
}

func testConfig() *Config {
	return &Config{
		Model:      "gpt-4o-mini",
		APIKey:     "test-key",
		Language:   "English",
		TrimBudget: 10,
	}
}

func drain(t *testing.T, sess *Session) []Response {
	t.Helper()
	var responses []Response
	for {
		response := sess.Out()
		responses = append(responses, response)
		if response.Type == ResponseTypeEnd {
			return responses
		}
	}
}

func TestSessionTurn(t *testing.T) {
	gen := &mockGenerator{reply: "4", usage: Usage{InputTokens: 100, OutputTokens: 10}}
	pod := NewPod(testConfig(), gen, nil)

	sess := pod.NewSession(context.Background(), "cust-1", "sess-1", nil)
	sess.In("What's 2+2?")
	responses := drain(t, sess)

	if len(responses) != 2 {
		t.Fatalf("Expected text + end responses, got %v", responses)
	}
	if responses[0].Type != ResponseTypeText || responses[0].Content != "4" {
		t.Fatalf("Expected text response '4', got %+v", responses[0])
	}

	history, err := pod.Sessions().History("sess-1")
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if history.Len() != 3 {
		t.Fatalf("Expected system+user+assistant in the log, got %d messages", history.Len())
	}
	if history.Messages[0].Role != RoleSystem {
		t.Fatalf("Expected the log to start with the system prompt, got %s", history.Messages[0].Role)
	}
	if !strings.Contains(history.Messages[0].Content, "English") {
		t.Fatalf("Expected the system prompt to carry the language, got %q", history.Messages[0].Content)
	}
	if history.Messages[1].Content != "What's 2+2?" || history.Messages[2].Content != "4" {
		t.Fatalf("Unexpected log contents: %v", messageContents(history))
	}
}

func TestSessionContinuesSameLog(t *testing.T) {
	gen := &mockGenerator{reply: "ok"}
	pod := NewPod(testConfig(), gen, nil)
	ctx := context.Background()

	first := pod.NewSession(ctx, "cust-1", "sess-1", nil)
	first.In("one")
	drain(t, first)

	second := pod.NewSession(ctx, "cust-1", "sess-1", nil)
	second.In("two")
	drain(t, second)

	history, err := pod.Sessions().History("sess-1")
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	// system + 2 turns, with the system prompt appended only once.
	if history.Len() != 5 {
		t.Fatalf("Expected 5 messages, got %d: %v", history.Len(), messageContents(history))
	}
	if len(gen.histories) != 2 {
		t.Fatalf("Expected 2 generate calls, got %d", len(gen.histories))
	}
	// The second call must have seen the first turn.
	if gen.histories[1].Len() != 4 {
		t.Fatalf("Expected the second call to see 4 messages, got %d", gen.histories[1].Len())
	}
}

func TestSessionTrimsBeforeGenerate(t *testing.T) {
	gen := &mockGenerator{reply: "r"}
	config := testConfig()
	config.TrimBudget = 3
	pod := NewPod(config, gen, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sess := pod.NewSession(ctx, "cust-1", "sess-1", nil)
		sess.In(fmt.Sprintf("question %d", i))
		drain(t, sess)
	}

	last := gen.histories[len(gen.histories)-1]
	if last.Len() > 3 {
		t.Fatalf("Expected the request history to fit the budget, got %d messages", last.Len())
	}
	if _, ok := last.LeadingSystem(); !ok {
		t.Fatalf("Expected the trimmed request to retain the system prompt")
	}
	if last.Messages[last.Len()-1].Content != "question 2" {
		t.Fatalf("Expected the latest user message last, got %q", last.Messages[last.Len()-1].Content)
	}
}

func TestSessionStreamingDeliversReplyOnce(t *testing.T) {
	streamer := &mockStreamer{chunks: []string{"Hel", "lo"}}
	config := testConfig()
	config.Stream = true
	pod := NewPod(config, streamer, nil)

	sess := pod.NewSession(context.Background(), "cust-1", "sess-stream", nil)
	sess.In("greet me")
	responses := drain(t, sess)

	var partials strings.Builder
	for _, response := range responses {
		switch response.Type {
		case ResponseTypePartialText:
			partials.WriteString(response.Content)
		case ResponseTypeText:
			t.Fatalf("Streaming turn must not also deliver a final text response, got %+v", response)
		}
	}
	if partials.String() != "Hello" {
		t.Fatalf("Expected streamed content 'Hello', got %q", partials.String())
	}

	history, err := pod.Sessions().History("sess-stream")
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	last := history.Messages[history.Len()-1]
	if last.Role != RoleAssistant || last.Content != "Hello" {
		t.Fatalf("Expected the full reply in the log, got %+v", last)
	}

	details, ok := sess.Cost()
	if !ok {
		t.Fatalf("Expected pricing for gpt-4o-mini")
	}
	if details.InputTokens != 5 || details.OutputTokens != 2 {
		t.Fatalf("Expected streamed usage to accumulate, got %+v", details)
	}
}

func TestSessionRehydratesFromDurableStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to initialize SQLite storage: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	gen := &mockGenerator{reply: "first answer"}
	pod := NewPod(testConfig(), gen, store)
	sess := pod.NewSession(ctx, "cust-1", "sess-r", nil)
	sess.In("first question")
	drain(t, sess)

	// A fresh pod simulates a process restart: the in-memory store is empty
	// but the durable store still has the conversation.
	restarted := &mockGenerator{reply: "second answer"}
	pod2 := NewPod(testConfig(), restarted, store)
	sess2 := pod2.NewSession(ctx, "cust-1", "sess-r", nil)
	sess2.In("second question")
	drain(t, sess2)

	history, err := pod2.Sessions().History("sess-r")
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if history.Len() != 5 {
		t.Fatalf("Expected system + 2 turns after restart, got %d: %v", history.Len(), messageContents(history))
	}
	systemCount := 0
	for _, msg := range history.All() {
		if msg.Role == RoleSystem {
			systemCount++
		}
	}
	if systemCount != 1 {
		t.Fatalf("Expected exactly one system prompt after rehydration, got %d", systemCount)
	}
	if len(restarted.histories) != 1 {
		t.Fatalf("Expected 1 generate call after restart, got %d", len(restarted.histories))
	}
	seen := strings.Join(messageContents(restarted.histories[0]), "\n")
	if !strings.Contains(seen, "first question") || !strings.Contains(seen, "first answer") {
		t.Fatalf("Expected the restarted turn to see the stored history, got:\n%s", seen)
	}
}

func TestSessionInAfterClose(t *testing.T) {
	gen := &mockGenerator{reply: "ok"}
	pod := NewPod(testConfig(), gen, nil)

	sess := pod.NewSession(context.Background(), "cust-1", "sess-done", nil)
	if err := sess.In("hello"); err != nil {
		t.Fatalf("First In failed: %v", err)
	}
	drain(t, sess)

	if err := sess.In("again"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Expected ErrSessionClosed, got %v", err)
	}
	if response := sess.Out(); response.Type != ResponseTypeEnd {
		t.Fatalf("Expected an end response after close, got %+v", response)
	}
}

func TestSessionGenerateError(t *testing.T) {
	gen := &mockGenerator{err: errors.New("quota exceeded")}
	pod := NewPod(testConfig(), gen, nil)

	sess := pod.NewSession(context.Background(), "cust-1", "sess-err", nil)
	sess.In("hello")
	responses := drain(t, sess)

	if responses[0].Type != ResponseTypeError {
		t.Fatalf("Expected an error response, got %+v", responses[0])
	}
	if !strings.Contains(responses[0].Content, "quota exceeded") {
		t.Fatalf("Expected the provider error to surface, got %q", responses[0].Content)
	}
}

func TestSessionCost(t *testing.T) {
	gen := &mockGenerator{reply: "ok", usage: Usage{InputTokens: 1000000, OutputTokens: 1000000}}
	pod := NewPod(testConfig(), gen, nil)

	sess := pod.NewSession(context.Background(), "cust-1", "sess-cost", nil)
	sess.In("hello")
	drain(t, sess)

	details, ok := sess.Cost()
	if !ok {
		t.Fatalf("Expected pricing for gpt-4o-mini")
	}
	if details.InputTokens != 1000000 || details.OutputTokens != 1000000 {
		t.Fatalf("Unexpected token accounting: %+v", details)
	}
	want := GPT4oMiniInputRate + GPT4oMiniOutputRate
	if details.TotalCost != want {
		t.Fatalf("Expected cost %f, got %f", want, details.TotalCost)
	}
}

func TestSessionGeneratesFreshID(t *testing.T) {
	gen := &mockGenerator{reply: "ok"}
	pod := NewPod(testConfig(), gen, nil)

	sess := pod.NewSession(context.Background(), "cust-1", "", nil)
	if sess.SessionID == "" {
		t.Fatalf("Expected a generated session ID")
	}
}
