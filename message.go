// Package chatpod wires a hosted chat-completion API, a prompt template and a
// keyed conversation-history store into per-session request/response turns.
package chatpod

import (
	"github.com/google/uuid"
	"github.com/openai/openai-go"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn entry in a conversation log. Immutable once created.
type Message struct {
	ID      string
	Role    Role
	Content string
}

func NewMessage(role Role, content string) Message {
	return Message{
		ID:      uuid.NewString(),
		Role:    role,
		Content: content,
	}
}

func SystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

func UserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

func AssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// Param converts the message into the provider's wire representation.
func (m Message) Param() openai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case RoleSystem:
		return openai.SystemMessage(m.Content)
	case RoleAssistant:
		return openai.AssistantMessage(m.Content)
	default:
		return openai.UserMessage(m.Content)
	}
}

// MessageList holds an ordered collection of Message to preserve the history.
type MessageList struct {
	Messages []Message
}

func NewMessageList(msgs ...Message) *MessageList {
	return &MessageList{
		Messages: append([]Message{}, msgs...),
	}
}

func (ml *MessageList) Len() int {
	return len(ml.Messages)
}

// Add appends one or more new messages to the MessageList in a FIFO order.
func (ml *MessageList) Add(msgs ...Message) {
	ml.Messages = append(ml.Messages, msgs...)
}

// AddFirst prepends a system message built from the prompt.
func (ml *MessageList) AddFirst(prompt string) {
	ml.Messages = append([]Message{SystemMessage(prompt)}, ml.Messages...)
}

func (ml *MessageList) All() []Message {
	return ml.Messages
}

func (ml *MessageList) Clone() *MessageList {
	return &MessageList{
		Messages: append([]Message{}, ml.Messages...),
	}
}

func (ml *MessageList) Clear() {
	ml.Messages = []Message{}
}

// LeadingSystem returns the leading system message, if the log starts with one.
func (ml *MessageList) LeadingSystem() (Message, bool) {
	if len(ml.Messages) > 0 && ml.Messages[0].Role == RoleSystem {
		return ml.Messages[0], true
	}
	return Message{}, false
}

// Params converts the whole list into provider wire messages.
func (ml *MessageList) Params() []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(ml.Messages))
	for _, m := range ml.Messages {
		params = append(params, m.Param())
	}
	return params
}
