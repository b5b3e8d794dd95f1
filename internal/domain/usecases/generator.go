package usecases

import (
	"context"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
)

// AnswerGenerator streams grounded answers.
type AnswerGenerator struct {
	llm      ports.LLMService
	maxTurns int
}

// NewAnswerGenerator creates a generator. maxTurns bounds the history sent to
// the model (0 sends all of it).
func NewAnswerGenerator(llm ports.LLMService, maxTurns int) *AnswerGenerator {
	return &AnswerGenerator{llm: llm, maxTurns: maxTurns}
}

// Generate streams answer fragments in model emission order. Any model fault,
// including a failure to start, is delivered as one terminal error fragment.
// The channel is closed when the answer ends or ctx is cancelled.
func (g *AnswerGenerator) Generate(ctx context.Context, question, contextText string, history []entities.Turn) <-chan entities.Fragment {
	out := make(chan entities.Fragment)

	go func() {
		defer close(out)

		fail := func(err error) {
			select {
			case out <- entities.Fragment{Err: &entities.GenerationError{Stage: entities.StageGenerate, Err: err}}:
			case <-ctx.Done():
			}
		}

		tokens, err := g.llm.CompleteStream(ctx, qaMessages(question, contextText, window(history, g.maxTurns)))
		if err != nil {
			if ctx.Err() == nil {
				fail(err)
			}
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case tok, ok := <-tokens:
				if !ok {
					return
				}
				if tok.Error != nil {
					if ctx.Err() == nil {
						fail(tok.Error)
					}
					return
				}
				if tok.Content != "" {
					select {
					case out <- entities.Fragment{Text: tok.Content}:
					case <-ctx.Done():
						return
					}
				}
				if tok.Done {
					return
				}
			}
		}
	}()

	return out
}
