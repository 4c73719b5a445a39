// Package prompts builds the system prompts sent ahead of every conversation.
package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

const systemPromptTemplate = `You are a helpful assistant.
Always respond in {{.Language}}, regardless of the language the user writes in.
{{formatUserDetails .UserDetails}}`

// SystemPromptData is the input for the conversation system prompt.
type SystemPromptData struct {
	Language    string
	UserDetails map[string]string
}

// SystemPrompt renders the system prompt for a conversation.
func SystemPrompt(data SystemPromptData) (string, error) {
	prompt, err := generateFromTemplate(systemPromptTemplate, data)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(prompt), nil
}

// generateFromTemplate is a generic function that generates a prompt from any template and data.
func generateFromTemplate[T any](templateString string, data T) (string, error) {
	funcMap := template.FuncMap{
		"formatUserDetails": formatUserDetails,
	}

	tmpl, err := template.New("prompt").Funcs(funcMap).Parse(templateString)
	if err != nil {
		return "", err
	}
	var prompt bytes.Buffer
	if err := tmpl.Execute(&prompt, data); err != nil {
		return "", err
	}
	return prompt.String(), nil
}

// formatUserDetails formats known user details as key-value pairs within
// UserDetails tags.
func formatUserDetails(details map[string]string) string {
	if len(details) == 0 {
		return ""
	}

	var builder strings.Builder
	builder.WriteString("<UserDetails>\n")

	for key, value := range details {
		builder.WriteString(fmt.Sprintf("%s: %s\n", key, value))
	}

	builder.WriteString("</UserDetails>")
	return builder.String()
}
