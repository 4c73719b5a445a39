package chatpod

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
)

const promptFindRelevantMessages = `Identify the IDs of conversations from the history that provide context for the user's latest message. Strictly adhere to identifying only directly or indirectly referred conversations. If the latest message does not reference any prior conversation, return an empty array.

- **Input Data**:
  - <ConversationHistory>: A series of conversations, each wrapped in <Conversation ID=X></Conversation> tags, where X is the conversation ID.
  - <LatestMessage>: The current message from the user.
- **Goal**: List the IDs of past conversations required for understanding the latest message, without assuming relevance based on similarity alone.

# Output Format
- **Format**: JSON object
  - conversationIDs: A list of relevant conversation IDs, e.g., ["2"] or [] if none are relevant.

# Notes
- Focus on relevance strictly based on explicit references in the latest message.
- Avoid assumptions based on conversational similarity without explicit links.
`

type relevantConversationIDs struct {
	ConversationIDs []string `json:"conversationIDs"`
}

// FormatMessageList renders a history into a structured string where each
// user message and the assistant messages that follow it are wrapped in
// <Conversation ID=X> tags, with the whole history inside
// <ConversationHistory> tags. The current message, if any, follows inside
// <LatestMessage> tags.
func FormatMessageList(messages *MessageList, currentMessage *Message) string {
	var result strings.Builder

	fmt.Fprintf(&result, "<ConversationHistory>\n")

	conversationID := 0
	inConversation := false
	all := messages.All()

	for i, msg := range all {
		if msg.Role == RoleSystem {
			continue
		}

		if msg.Role == RoleUser && !inConversation {
			conversationID++
			fmt.Fprintf(&result, "<Conversation ID=%d>\n", conversationID)
			inConversation = true
		}

		fmt.Fprintf(&result, "%s: %s\n", speakerLabel(msg.Role), msg.Content)

		// Close the conversation once the next message starts a new turn or
		// the history ends.
		if msg.Role == RoleAssistant && inConversation {
			if i+1 >= len(all) || all[i+1].Role == RoleUser {
				fmt.Fprintf(&result, "</Conversation>\n\n")
				inConversation = false
			}
		}
	}

	if inConversation {
		fmt.Fprintf(&result, "</Conversation>\n\n")
	}

	fmt.Fprintf(&result, "</ConversationHistory>\n")

	if currentMessage != nil {
		fmt.Fprintf(&result, "\n<LatestMessage>\n")
		fmt.Fprintf(&result, "%s: %s\n", speakerLabel(currentMessage.Role), currentMessage.Content)
		fmt.Fprintf(&result, "</LatestMessage>\n")
	}

	return result.String()
}

func speakerLabel(role Role) string {
	switch role {
	case RoleUser:
		return "Human"
	case RoleAssistant:
		return "Assistant"
	default:
		return "Unknown"
	}
}

// BuildRelevantMessageHistory uses the LLM to pick the relevant portion of a
// conversation history for the current message.
//
// The history is formatted into the structure above and sent to the model
// with a JSON-schema constrained prompt that returns relevant conversation
// IDs. The result is the suffix of the history starting at the oldest
// relevant conversation, so the returned log stays contiguous. An empty ID
// list means no history is needed and an empty list is returned.
//
// This is an alternative to budget trimming for callers willing to spend an
// extra model call to keep only pertinent context.
func BuildRelevantMessageHistory(ctx context.Context, messages *MessageList, currentMessage Message, llmClient *LLM, modelName string) (*MessageList, error) {
	historyString := FormatMessageList(messages, &currentMessage)

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        openai.F("relevantConversationIDs"),
		Description: openai.F("List of conversation IDs that are relevant to the latest message"),
		Schema:      openai.F(GenerateSchema[relevantConversationIDs]()),
		Strict:      openai.Bool(true),
	}

	completion, err := llmClient.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(promptFindRelevantMessages),
			openai.UserMessage(historyString),
		}),
		Model: openai.F(modelName),
		ResponseFormat: openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
			openai.ResponseFormatJSONSchemaParam{
				Type:       openai.F(openai.ResponseFormatJSONSchemaTypeJSONSchema),
				JSONSchema: openai.F(schemaParam),
			},
		),
	})
	if err != nil {
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("relevance completion returned no choices")
	}

	relevant := relevantConversationIDs{}
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &relevant); err != nil {
		return nil, fmt.Errorf("error parsing relevance response: %w", err)
	}

	if len(relevant.ConversationIDs) == 0 {
		return NewMessageList(), nil
	}

	oldest := 0
	for _, idStr := range relevant.ConversationIDs {
		var id int
		if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
			return nil, fmt.Errorf("error parsing conversation ID %q: %w", idStr, err)
		}
		if oldest == 0 || id < oldest {
			oldest = id
		}
	}

	return suffixFromConversation(messages, oldest), nil
}

// suffixFromConversation returns the messages from the start of the n-th
// conversation (1-based, counted by user messages) to the end of the history.
func suffixFromConversation(messages *MessageList, n int) *MessageList {
	conversationID := 0
	for i, msg := range messages.All() {
		if msg.Role == RoleUser {
			conversationID++
			if conversationID == n {
				return NewMessageList(messages.All()[i:]...)
			}
		}
	}
	return NewMessageList()
}
