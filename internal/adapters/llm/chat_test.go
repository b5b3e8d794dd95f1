package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
)

// fakeModel implements llms.Model for testing
type fakeModel struct {
	chunks   []string // streamed when a streaming func is set
	response string
	err      error
	block    bool // wait for ctx before returning
	got      []llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = msgs
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	if opts.StreamingFunc != nil {
		for _, c := range f.chunks {
			if err := opts.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.response}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func collect(t *testing.T, ch <-chan ports.StreamToken) []ports.StreamToken {
	t.Helper()
	var out []ports.StreamToken
	timeout := time.After(2 * time.Second)
	for {
		select {
		case tok, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, tok)
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}
}

func TestChatModel_Complete(t *testing.T) {
	model := &fakeModel{response: "Hello there!"}
	chat := NewChatModel("test", model, nil)

	resp, err := chat.Complete(context.Background(), []entities.Turn{
		entities.SystemTurn("be brief"),
		entities.UserTurn("Hi"),
		entities.AssistantTurn("Hello"),
		entities.UserTurn("Again"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", resp)

	require.Len(t, model.got, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.got[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.got[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.got[2].Role)
	assert.Equal(t, llms.TextContent{Text: "Again"}, model.got[3].Parts[0])
}

func TestChatModel_MergesSystemTurns(t *testing.T) {
	model := &fakeModel{response: "ok"}
	chat := NewChatModel("test", model, nil)

	_, err := chat.Complete(context.Background(), []entities.Turn{
		entities.SystemTurn("You are helpful."),
		entities.SystemTurn("Context: sky"),
		entities.UserTurn("q"),
	})
	require.NoError(t, err)
	require.Len(t, model.got, 2)
	assert.Equal(t, llms.TextContent{Text: "You are helpful.\n\nContext: sky"}, model.got[0].Parts[0])
}

func TestChatModel_CompleteErrors(t *testing.T) {
	chat := NewChatModel("test", &fakeModel{err: errors.New("boom")}, nil)
	_, err := chat.Complete(context.Background(), []entities.Turn{entities.UserTurn("hi")})
	assert.ErrorContains(t, err, "boom")

	empty := NewChatModel("test", emptyModel{}, nil)
	_, err = empty.Complete(context.Background(), []entities.Turn{entities.UserTurn("hi")})
	assert.ErrorIs(t, err, errNoChoices)
}

func TestChatModel_CompleteStream(t *testing.T) {
	chat := NewChatModel("test", &fakeModel{chunks: []string{"Hello", " world", "!"}, response: "Hello world!"}, nil)

	ch, err := chat.CompleteStream(context.Background(), []entities.Turn{entities.UserTurn("hi")})
	require.NoError(t, err)

	toks := collect(t, ch)
	require.Len(t, toks, 4)
	var text strings.Builder
	for _, tok := range toks[:3] {
		text.WriteString(tok.Content)
	}
	assert.Equal(t, "Hello world!", text.String())
	assert.True(t, toks[3].Done)
	assert.NoError(t, toks[3].Error)
}

func TestChatModel_StreamFallsBackToFullResponse(t *testing.T) {
	chat := NewChatModel("test", &fakeModel{response: "all at once"}, nil)

	ch, err := chat.CompleteStream(context.Background(), []entities.Turn{entities.UserTurn("hi")})
	require.NoError(t, err)

	toks := collect(t, ch)
	require.Len(t, toks, 2)
	assert.Equal(t, "all at once", toks[0].Content)
	assert.True(t, toks[1].Done)
}

func TestChatModel_StreamError(t *testing.T) {
	chat := NewChatModel("test", &fakeModel{chunks: []string{"partial"}, err: errors.New("reset")}, nil)

	ch, err := chat.CompleteStream(context.Background(), []entities.Turn{entities.UserTurn("hi")})
	require.NoError(t, err)

	toks := collect(t, ch)
	require.Len(t, toks, 2)
	assert.Equal(t, "partial", toks[0].Content)
	assert.ErrorContains(t, toks[1].Error, "reset")
}

func TestChatModel_StreamCancel(t *testing.T) {
	chat := NewChatModel("test", &fakeModel{block: true}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := chat.CompleteStream(ctx, []entities.Turn{entities.UserTurn("hi")})
	require.NoError(t, err)
	cancel()

	// Cancellation closes the channel without an error token.
	for _, tok := range collect(t, ch) {
		assert.NoError(t, tok.Error)
	}
}

type emptyModel struct{}

func (emptyModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}

func (emptyModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", nil
}

func TestOpen_OpenAICompatibleEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "The sky is blue."},
				"finish_reason": "stop",
			}},
		})
	}))
	defer server.Close()

	backend, err := Open(context.Background(), Spec{
		Name: "openai", Vendor: "openai", Model: "gpt-4o-mini", Endpoint: server.URL, APIKey: "test-key",
	})
	require.NoError(t, err)
	assert.NotNil(t, backend.Embedder)

	chat := NewChatModel("openai", backend.Model, nil)
	resp, err := chat.Complete(context.Background(), []entities.Turn{entities.UserTurn("What color is the sky?")})
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", resp)
}

func TestOpen_Vendors(t *testing.T) {
	ollamaBackend, err := Open(context.Background(), Spec{Name: "local", Vendor: "ollama", Model: "llama3.2", EmbeddingModel: "nomic-embed-text"})
	require.NoError(t, err)
	assert.NotNil(t, ollamaBackend.Embedder)

	claude, err := Open(context.Background(), Spec{Name: "claude", Vendor: "Anthropic", Model: "claude-3-5-sonnet-latest", APIKey: "k"})
	require.NoError(t, err)
	assert.Nil(t, claude.Embedder)

	_, err = Open(context.Background(), Spec{Name: "x", Vendor: "mystery"})
	assert.ErrorContains(t, err, "unsupported provider")

	_, err = Open(context.Background(), Spec{Name: "gpt", Vendor: "openai"})
	assert.ErrorContains(t, err, "API key not set")

	assert.Contains(t, Vendors(), "gemini")
	assert.Contains(t, Vendors(), "cohere")
}
