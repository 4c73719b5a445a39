// Package chatpod - session.go
// Session holds per-conversation state and the channel pair the caller uses
// to exchange one turn with the runtime.
package chatpod

import (
	"context"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Session holds ephemeral conversation data & references to shared resources.
type Session struct {
	Ctx        context.Context
	Cancel     context.CancelFunc
	CustomerID string
	SessionID  string
	CustomMeta map[string]string

	closeOnce sync.Once

	inUserChannel  chan string
	outUserChannel chan Response

	log *Log

	usageMu      sync.Mutex
	inputTokens  int64
	outputTokens int64
	model        string
}

func newSession(ctx context.Context, customerID, sessionID string, meta map[string]string, model string) *Session {
	if sessionID == "" {
		id, err := gonanoid.New()
		if err != nil {
			panic(err)
		}
		sessionID = id
	}
	ctx, cancel := context.WithCancel(ctx)
	ctx = context.WithValue(ctx, ContextKey("sessionID"), sessionID)
	ctx = context.WithValue(ctx, ContextKey("customerID"), customerID)
	if len(meta) > 0 {
		ctx = context.WithValue(ctx, ContextKey("extra"), meta)
	}
	return &Session{
		Ctx:            ctx,
		Cancel:         cancel,
		CustomerID:     customerID,
		SessionID:      sessionID,
		CustomMeta:     meta,
		inUserChannel:  make(chan string),
		outUserChannel: make(chan Response),
		model:          model,
	}
}

// In hands a user message to the session's run loop. It returns
// ErrSessionClosed once the session has ended.
func (s *Session) In(userMessage string) error {
	select {
	case <-s.Ctx.Done():
		return ErrSessionClosed
	case s.inUserChannel <- userMessage:
		return nil
	}
}

// Out retrieves the next response, blocking until one is available. Once the
// session has closed it returns an end response.
func (s *Session) Out() Response {
	select {
	case response := <-s.outUserChannel:
		return response
	case <-s.Ctx.Done():
		return Response{Type: ResponseTypeEnd}
	}
}

// Log returns the session's conversation log handle.
func (s *Session) Log() *Log {
	return s.log
}

// Close ends the session lifecycle. The channels are left open so late In and
// Out callers observe the cancelled context instead of a closed-channel panic.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Cancel()
	})
}

func (s *Session) addUsage(usage Usage) {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()
	s.inputTokens += usage.InputTokens
	s.outputTokens += usage.OutputTokens
}

func (s *Session) usage() (int64, int64) {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()
	return s.inputTokens, s.outputTokens
}
