package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/cohere"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Spec describes one configured model vendor.
type Spec struct {
	Name           string // Registry key, used in logs
	Vendor         string // openai, anthropic, gemini, ollama, cohere
	Model          string
	EmbeddingModel string
	Endpoint       string
	APIKey         string
}

// Backend is an opened vendor. Embedder is nil when the vendor cannot embed.
type Backend struct {
	Model    llms.Model
	Embedder embeddings.EmbedderClient
}

type opener func(ctx context.Context, s Spec) (llms.Model, error)

var vendors = map[string]opener{
	"openai":    openOpenAI,
	"anthropic": openAnthropic,
	"gemini":    openGemini,
	"googleai":  openGemini,
	"ollama":    openOllama,
	"cohere":    openCohere,
}

// needsKey lists vendors that refuse to start without an API key.
var needsKey = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"gemini":    true,
	"googleai":  true,
	"cohere":    true,
}

// Vendors returns the supported vendor names.
func Vendors() []string {
	names := make([]string, 0, len(vendors))
	for name := range vendors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the langchaingo client for s.
func Open(ctx context.Context, s Spec) (*Backend, error) {
	vendor := strings.ToLower(s.Vendor)
	open, ok := vendors[vendor]
	if !ok {
		return nil, fmt.Errorf("unsupported provider %q", s.Vendor)
	}
	if needsKey[vendor] && s.APIKey == "" {
		return nil, fmt.Errorf("provider %s: API key not set", s.Name)
	}

	model, err := open(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("loading provider %s: %w", s.Name, err)
	}

	b := &Backend{Model: model}
	if c, ok := model.(embeddings.EmbedderClient); ok {
		b.Embedder = c
	}
	// Ollama embeds with the client's own model.
	if vendor == "ollama" && s.EmbeddingModel != "" && s.EmbeddingModel != s.Model {
		emb, err := openOllama(ctx, Spec{Model: s.EmbeddingModel, Endpoint: s.Endpoint})
		if err != nil {
			return nil, fmt.Errorf("loading provider %s embeddings: %w", s.Name, err)
		}
		if c, ok := emb.(embeddings.EmbedderClient); ok {
			b.Embedder = c
		}
	}
	return b, nil
}

func openOpenAI(_ context.Context, s Spec) (llms.Model, error) {
	opts := []openai.Option{openai.WithToken(s.APIKey)}
	if s.Model != "" {
		opts = append(opts, openai.WithModel(s.Model))
	}
	if s.EmbeddingModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(s.EmbeddingModel))
	}
	if s.Endpoint != "" {
		opts = append(opts, openai.WithBaseURL(s.Endpoint))
	}
	return openai.New(opts...)
}

func openAnthropic(_ context.Context, s Spec) (llms.Model, error) {
	opts := []anthropic.Option{anthropic.WithToken(s.APIKey)}
	if s.Model != "" {
		opts = append(opts, anthropic.WithModel(s.Model))
	}
	if s.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(s.Endpoint))
	}
	return anthropic.New(opts...)
}

func openGemini(ctx context.Context, s Spec) (llms.Model, error) {
	opts := []googleai.Option{googleai.WithAPIKey(s.APIKey)}
	if s.Model != "" {
		opts = append(opts, googleai.WithDefaultModel(s.Model))
	}
	if s.EmbeddingModel != "" {
		opts = append(opts, googleai.WithDefaultEmbeddingModel(s.EmbeddingModel))
	}
	return googleai.New(ctx, opts...)
}

func openOllama(_ context.Context, s Spec) (llms.Model, error) {
	model := s.Model
	if model == "" {
		model = "llama3.2"
	}
	opts := []ollama.Option{ollama.WithModel(model)}
	if s.Endpoint != "" {
		opts = append(opts, ollama.WithServerURL(s.Endpoint))
	}
	return ollama.New(opts...)
}

func openCohere(_ context.Context, s Spec) (llms.Model, error) {
	opts := []cohere.Option{cohere.WithToken(s.APIKey)}
	if s.Model != "" {
		opts = append(opts, cohere.WithModel(s.Model))
	}
	if s.Endpoint != "" {
		opts = append(opts, cohere.WithBaseURL(s.Endpoint))
	}
	return cohere.New(opts...)
}
