package usecases

import (
	"strings"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
)

const (
	contextualizePrompt = "Given a chat history and the latest user question " +
		"which might reference context in the chat history, " +
		"formulate a standalone question which can be understood " +
		"without the chat history. Do NOT answer the question, " +
		"just reformulate it if needed and otherwise return it as is."

	qaSystemPrompt = "You are a helpful AI assistant. Use the following context to answer the user's question."
)

// rewriteMessages builds the contextualize prompt: system, history, question.
func rewriteMessages(question string, history []entities.Turn) []entities.Turn {
	msgs := make([]entities.Turn, 0, len(history)+2)
	msgs = append(msgs, entities.SystemTurn(contextualizePrompt))
	msgs = append(msgs, history...)
	msgs = append(msgs, entities.UserTurn(question))
	return msgs
}

// qaMessages builds the conversational answer prompt.
func qaMessages(question, context string, history []entities.Turn) []entities.Turn {
	msgs := make([]entities.Turn, 0, len(history)+3)
	msgs = append(msgs,
		entities.SystemTurn(qaSystemPrompt),
		entities.SystemTurn("Context: "+context),
	)
	msgs = append(msgs, history...)
	msgs = append(msgs, entities.UserTurn(question))
	return msgs
}

// contextOnlyMessages builds the single-shot prompt used by stateless queries.
func contextOnlyMessages(question, context string) []entities.Turn {
	var sb strings.Builder
	sb.WriteString("Answer the question based only on the following context:\n")
	sb.WriteString(context)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer: ")
	return []entities.Turn{entities.UserTurn(sb.String())}
}

// window keeps the last maxTurns turns. maxTurns <= 0 keeps everything.
// The cut never starts on an assistant turn.
func window(history []entities.Turn, maxTurns int) []entities.Turn {
	if maxTurns <= 0 || len(history) <= maxTurns {
		return history
	}
	w := history[len(history)-maxTurns:]
	for len(w) > 0 && w[0].Role == entities.RoleAssistant {
		w = w[1:]
	}
	return w
}
