package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultModelsPath is where the provider registry is looked up by default.
const DefaultModelsPath = "models.yaml"

// HashingVendor is the offline embedder. It cannot chat.
const HashingVendor = "hashing"

// defaultKeyEnv maps vendors to their conventional API key variable.
var defaultKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"googleai":  "GEMINI_API_KEY",
	"cohere":    "COHERE_API_KEY",
}

// ProviderConfig is one entry of the registry.
type ProviderConfig struct {
	ProviderName   string `yaml:"provider_name"` // Vendor, defaults to the registry key
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
	Endpoint       string `yaml:"endpoint"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Dimensions     int    `yaml:"dimensions"` // Hashing embedder only
}

// APIKey reads the provider's key from the environment.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// Registry is the set of configured model providers.
type Registry struct {
	DefaultProvider   string                    `yaml:"default_provider"`
	EmbeddingProvider string                    `yaml:"embedding_provider"` // Defaults to DefaultProvider
	Providers         map[string]ProviderConfig `yaml:"providers"`
}

// DefaultRegistry is used when no registry file exists: a local ollama model
// for chat and embeddings.
func DefaultRegistry() *Registry {
	r := &Registry{
		DefaultProvider: "ollama",
		Providers: map[string]ProviderConfig{
			"ollama": {Model: "llama3.2", EmbeddingModel: "nomic-embed-text", Endpoint: "http://localhost:11434"},
		},
	}
	r.normalize()
	return r
}

// LoadProviders reads the registry at path. A missing file at the default
// path yields DefaultRegistry.
func LoadProviders(path string) (*Registry, error) {
	if path == "" {
		path = DefaultModelsPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultModelsPath {
			return DefaultRegistry(), nil
		}
		return nil, fmt.Errorf("reading provider registry: %w", err)
	}
	return ParseProviders(bytes.NewReader(data))
}

// ParseProviders decodes a registry. Unknown keys are rejected.
func ParseProviders(r io.Reader) (*Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var reg Registry
	if err := dec.Decode(&reg); err != nil {
		return nil, fmt.Errorf("decoding provider registry: %w", err)
	}
	reg.normalize()
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *Registry) normalize() {
	if r.EmbeddingProvider == "" {
		r.EmbeddingProvider = r.DefaultProvider
	}
	for name, p := range r.Providers {
		if p.ProviderName == "" {
			p.ProviderName = name
		}
		p.ProviderName = strings.ToLower(p.ProviderName)
		if p.APIKeyEnv == "" {
			p.APIKeyEnv = defaultKeyEnv[p.ProviderName]
		}
		r.Providers[name] = p
	}
}

// Validate checks that the default and embedding providers exist.
func (r *Registry) Validate() error {
	if len(r.Providers) == 0 {
		return errors.New("provider registry: no providers configured")
	}
	if r.DefaultProvider == "" {
		return errors.New("provider registry: default_provider must be set")
	}
	p, ok := r.Providers[r.DefaultProvider]
	if !ok {
		return fmt.Errorf("provider registry: default provider %q not configured", r.DefaultProvider)
	}
	if p.ProviderName == HashingVendor {
		return fmt.Errorf("provider registry: %q cannot be the default provider, it only embeds", r.DefaultProvider)
	}
	if _, ok := r.Providers[r.EmbeddingProvider]; !ok {
		return fmt.Errorf("provider registry: embedding provider %q not configured", r.EmbeddingProvider)
	}
	return nil
}

// Get returns the named provider.
func (r *Registry) Get(name string) (ProviderConfig, error) {
	p, ok := r.Providers[name]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

// Names returns the configured provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Providers))
	for name := range r.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
