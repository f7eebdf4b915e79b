package prompts

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

const answerTemplate = `You are a helpful voice assistant for an automotive technician.
Use the following context to answer the user's question.
If you don't know the answer, say so. Be brief and clear.
If there are multiple steps, just give one step and ask the user if they want to proceed for the next step.

Chat History:
{{.chat_history}}

Context:
{{.context}}

Question:
{{.question}}

Answer:`

const condenseTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
{{.chat_history}}
Follow Up Input: {{.question}}
Standalone question:`

const FallbackMessage = "I'm sorry, I couldn't find an answer to that. Could you please rephrase your question?"

var (
	answerPrompt   = prompts.NewPromptTemplate(answerTemplate, []string{"context", "question", "chat_history"})
	condensePrompt = prompts.NewPromptTemplate(condenseTemplate, []string{"question", "chat_history"})
)

// BuildAnswerPrompt renders the technician prompt around the retrieved context
func BuildAnswerPrompt(question, context string, history []llms.ChatMessage) (string, error) {
	prompt, err := answerPrompt.Format(map[string]any{
		"context":      context,
		"question":     question,
		"chat_history": FormatHistory(history),
	})
	if err != nil {
		return "", fmt.Errorf("failed to format answer prompt: %w", err)
	}
	return prompt, nil
}

// BuildCondensePrompt asks the model to turn a follow-up into a standalone question
func BuildCondensePrompt(question string, history []llms.ChatMessage) (string, error) {
	prompt, err := condensePrompt.Format(map[string]any{
		"question":     question,
		"chat_history": FormatHistory(history),
	})
	if err != nil {
		return "", fmt.Errorf("failed to format condense prompt: %w", err)
	}
	return prompt, nil
}

// FormatHistory renders chat memory one line per message
func FormatHistory(history []llms.ChatMessage) string {
	var builder strings.Builder

	for _, msg := range history {
		switch msg.GetType() {
		case llms.ChatMessageTypeHuman:
			builder.WriteString("Human: ")
		case llms.ChatMessageTypeAI:
			builder.WriteString("Assistant: ")
		default:
			builder.WriteString(fmt.Sprintf("%s: ", msg.GetType()))
		}
		builder.WriteString(msg.GetContent())
		builder.WriteString("\n")
	}

	return strings.TrimSuffix(builder.String(), "\n")
}

// FormatContext joins retrieved passages with blank lines
func FormatContext(passages []string) string {
	return strings.Join(passages, "\n\n")
}
