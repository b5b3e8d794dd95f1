package usecases

import (
	"context"
	"errors"
	"strings"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
	"github.com/0xcro3dile/ragchat-go/internal/infrastructure/logging"
)

var errEmptyRewrite = errors.New("model returned an empty standalone question")

// QuestionRewriter turns follow-up questions into standalone ones.
type QuestionRewriter struct {
	llm      ports.LLMService
	maxTurns int
	log      logging.Logger
}

// NewQuestionRewriter creates a rewriter. maxTurns bounds how much history is
// sent to the model (0 sends all of it).
func NewQuestionRewriter(llm ports.LLMService, maxTurns int, log logging.Logger) *QuestionRewriter {
	return &QuestionRewriter{llm: llm, maxTurns: maxTurns, log: logging.OrNop(log)}
}

// Rewrite returns question unchanged when history is empty, otherwise asks the
// model to resolve references against history. history is never modified.
func (r *QuestionRewriter) Rewrite(ctx context.Context, question string, history []entities.Turn) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	out, err := r.llm.Complete(ctx, rewriteMessages(question, window(history, r.maxTurns)))
	if err != nil {
		return "", &entities.GenerationError{Stage: entities.StageRewrite, Err: err}
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &entities.GenerationError{Stage: entities.StageRewrite, Err: errEmptyRewrite}
	}

	r.log.Debug("rewrote %q as %q", question, out)
	return out, nil
}
