package chatpod

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"

	"github.com/chatpod/chatpod/prompts"
)

// Pod owns the shared resources of the runtime: configuration, the session
// store, the provider client and an optional durable store. Sessions borrow
// these; they never own them.
type Pod struct {
	config   *Config
	llm      Generator
	sessions *SessionStore
	durable  Store
	logger   *slog.Logger
}

// NewPod constructs a new Pod with the given resources. durable may be nil,
// in which case history lives only in memory.
func NewPod(config *Config, llm Generator, durable Store) *Pod {
	return &Pod{
		config:   config,
		llm:      llm,
		sessions: NewSessionStore(),
		durable:  durable,
		logger:   slog.Default(),
	}
}

// Sessions exposes the in-memory session store.
func (p *Pod) Sessions() *SessionStore {
	return p.sessions
}

// rehydrateLimit caps how much stored history is loaded back into memory for
// a continued session. Trimming bounds the request size anyway, so loading
// more buys nothing.
const rehydrateLimit = 1000

// NewSession creates a conversation session for a given customer and session
// ID. A session handles a single user message per turn; the conversation log
// is keyed by sessionID, so a later session with the same ID continues the
// same conversation. When a durable store is configured and the in-memory log
// is empty, the log is rehydrated from stored history first, so a session ID
// survives process restarts.
func (p *Pod) NewSession(ctx context.Context, customerID, sessionID string, customMeta map[string]string) *Session {
	sess := newSession(ctx, customerID, sessionID, customMeta, p.config.Model)
	sess.log = p.sessions.GetOrCreate(sess.SessionID)
	if p.durable != nil && sess.log.Len() == 0 {
		stored, err := p.durable.LoadLog(sess.Ctx, sess.SessionID, rehydrateLimit, 0)
		if err != nil {
			p.logger.Error("Failed to load stored history", "sessionID", sess.SessionID, "error", err)
		} else if stored.Len() > 0 {
			sess.log.seedIfEmpty(stored.All()...)
		}
	}
	go p.run(sess)
	return sess
}

// run is the main loop for the session. It waits for one user message,
// handles the turn and ends the session.
func (p *Pod) run(sess *Session) {
	defer sess.Close()
	select {
	case <-sess.Ctx.Done():
		sess.outUserChannel <- Response{Type: ResponseTypeEnd}
	case userMessage := <-sess.inUserChannel:
		if err := p.handleTurn(sess, userMessage); err != nil {
			p.logger.Error("Turn failed", "sessionID", sess.SessionID, "error", err)
			sess.outUserChannel <- Response{
				Content: err.Error(),
				Type:    ResponseTypeError,
			}
		}
		sess.outUserChannel <- Response{Type: ResponseTypeEnd}
	}
}

// handleTurn appends the user message, trims the history to budget and asks
// the provider for a reply. The provider call works on a snapshot so no store
// lock is held during network I/O.
func (p *Pod) handleTurn(sess *Session, userMessage string) error {
	if sess.log.Len() == 0 {
		prompt, err := p.systemPrompt(sess)
		if err != nil {
			return err
		}
		if err := p.append(sess, SystemMessage(prompt)); err != nil {
			return err
		}
	}

	if err := p.append(sess, UserMessage(userMessage)); err != nil {
		return err
	}

	trimmed, err := Trim(sess.log.Snapshot(), p.config.TrimPolicy())
	if err != nil {
		return err
	}

	var reply Message
	streamed := false
	if streamer, ok := p.llm.(ChatStreamer); ok && p.config.Stream {
		reply, err = p.generateStreaming(sess, streamer, trimmed)
		streamed = true
	} else {
		reply, err = p.generate(sess, trimmed)
	}
	if err != nil {
		return err
	}

	if err := p.append(sess, reply); err != nil {
		return err
	}
	// The streaming path already delivered the reply as partial-text
	// responses; sending it again as a final text would duplicate it.
	if !streamed {
		sess.outUserChannel <- Response{
			Content: reply.Content,
			Type:    ResponseTypeText,
		}
	}
	return nil
}

func (p *Pod) generate(sess *Session, history *MessageList) (Message, error) {
	reply, usage, err := p.llm.Generate(sess.Ctx, history, GenerateParams{Model: p.config.Model})
	if err != nil {
		return Message{}, err
	}
	sess.addUsage(usage)
	return reply, nil
}

// generateStreaming consumes the provider's chunk stream, forwarding partial
// text to the caller as it arrives and accumulating the full reply.
func (p *Pod) generateStreaming(sess *Session, streamer ChatStreamer, history *MessageList) (Message, error) {
	params := openai.ChatCompletionNewParams{
		Messages: openai.F(history.Params()),
		Model:    openai.F(p.config.Model),
		StreamOptions: openai.F(openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.F(true),
		}),
	}

	stream := streamer.NewStreaming(sess.Ctx, params)
	defer stream.Close()

	completion := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		completion.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			sess.outUserChannel <- Response{
				Content: chunk.Choices[0].Delta.Content,
				Type:    ResponseTypePartialText,
			}
		}
	}
	if err := stream.Err(); err != nil {
		return Message{}, fmt.Errorf("chat completion stream failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Message{}, fmt.Errorf("chat completion stream returned no choices")
	}

	sess.addUsage(Usage{
		InputTokens:  completion.Usage.PromptTokens,
		OutputTokens: completion.Usage.CompletionTokens,
	})
	return AssistantMessage(completion.Choices[0].Message.Content), nil
}

// append writes a message to the in-memory log, then records it durably when
// a durable store is configured.
func (p *Pod) append(sess *Session, msg Message) error {
	sess.log.Append(msg)
	if p.durable == nil {
		return nil
	}
	if err := p.durable.AppendMessage(sess.Ctx, sess.SessionID, sess.CustomerID, msg); err != nil {
		return fmt.Errorf("failed to persist message: %w", err)
	}
	return nil
}

func (p *Pod) systemPrompt(sess *Session) (string, error) {
	details := sess.CustomMeta
	if p.durable != nil {
		info, err := p.durable.GetUserInfo(sess.Ctx, sess.CustomerID)
		if err != nil {
			return "", err
		}
		if len(info.CustomMeta) > 0 {
			details = info.CustomMeta
		}
	}
	return prompts.SystemPrompt(prompts.SystemPromptData{
		Language:    p.config.Language,
		UserDetails: details,
	})
}
