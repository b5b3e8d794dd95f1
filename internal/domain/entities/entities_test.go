package entities

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrievalResult_Context(t *testing.T) {
	res := RetrievalResult{
		{Chunk: Chunk{ID: "c1", Content: "The sky"}},
		{Chunk: Chunk{ID: "c2", Content: "is blue."}},
	}

	assert.Equal(t, "The sky is blue.", res.Context(" "))
	assert.Equal(t, "The sky\n\nis blue.", res.Context("\n\n"))
}

func TestRetrievalResult_EmptyContext(t *testing.T) {
	var res RetrievalResult
	assert.Equal(t, "", res.Context(" "))
}

func TestTurn_Constructors(t *testing.T) {
	assert.Equal(t, RoleUser, UserTurn("q").Role)
	assert.Equal(t, RoleAssistant, AssistantTurn("a").Role)
	assert.Equal(t, RoleSystem, SystemTurn("s").Role)
	assert.Equal(t, "q", UserTurn("q").Content)
}

func TestFragment_String(t *testing.T) {
	text := Fragment{Text: "blue"}
	assert.False(t, text.IsError())
	assert.Equal(t, "blue", text.String())

	failed := Fragment{Err: errors.New("model went away")}
	assert.True(t, failed.IsError())
	assert.Equal(t, "Error: model went away", failed.String())
}

func TestErrors_AsAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")

	var err error = fmt.Errorf("ask: %w", &GenerationError{
		Stage: StageRetrieve,
		Err:   &EmbeddingError{Err: cause},
	})

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, StageRetrieve, genErr.Stage)

	var embErr *EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.ErrorIs(t, err, cause)
}

func TestIngestionError_WrapsEmptyCorpus(t *testing.T) {
	err := &IngestionError{Source: "empty.txt", Err: ErrEmptyCorpus}

	assert.ErrorIs(t, err, ErrEmptyCorpus)
	assert.Contains(t, err.Error(), "empty.txt")
}

func TestSessionNotFoundError_Message(t *testing.T) {
	err := &SessionNotFoundError{SessionID: "abc"}
	assert.Contains(t, err.Error(), "abc")
}
