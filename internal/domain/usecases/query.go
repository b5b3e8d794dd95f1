// Package usecases - query.go answers single questions without conversation state.
package usecases

import (
	"context"
	"strings"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
)

// QueryUseCase answers a question from retrieved context only.
type QueryUseCase struct {
	llm ports.LLMService
	sep string
}

// NewQueryUseCase creates a QueryUseCase. sep joins retrieved chunks.
func NewQueryUseCase(llm ports.LLMService, sep string) *QueryUseCase {
	return &QueryUseCase{llm: llm, sep: sep}
}

// Query retrieves context for question and generates one complete answer.
func (uc *QueryUseCase) Query(ctx context.Context, retriever *Retriever, question string) (*entities.ChatResponse, error) {
	if strings.TrimSpace(question) == "" {
		return nil, entities.ErrEmptyQuestion
	}

	results, err := retriever.Retrieve(ctx, question, 0)
	if err != nil {
		return nil, &entities.GenerationError{Stage: entities.StageRetrieve, Err: err}
	}

	answer, err := uc.llm.Complete(ctx, contextOnlyMessages(question, results.Context(uc.sep)))
	if err != nil {
		return nil, &entities.GenerationError{Stage: entities.StageGenerate, Err: err}
	}

	return &entities.ChatResponse{
		Question: question,
		Answer:   strings.TrimSpace(answer),
		Sources:  results,
	}, nil
}
