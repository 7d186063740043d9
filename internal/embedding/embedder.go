// Package embedding provides the embedding functions collections are created with,
// resolved by name: a local hashing embedder plus Ollama, OpenAI and Voyage AI backends.
package embedding

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Embedder defines the interface for text embedding providers.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	// More efficient than multiple Embed calls for bulk operations.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the name of the embedding model being used.
	Model() string

	// Dimension returns the embedding vector dimension, or 0 if the provider decides.
	Dimension() int
}

// Embedding function names accepted by create_collection.
const (
	FunctionDefault = "default"
	FunctionOllama  = "ollama"
	FunctionOpenAI  = "openai"
	FunctionVoyage  = "voyageai"
)

// Config holds provider settings for the named embedding functions.
type Config struct {
	// Ollama server URL and model.
	OllamaHost  string
	OllamaModel string

	// OpenAI API key and embedding model.
	OpenAIAPIKey string
	OpenAIModel  string

	// Voyage AI API key and model.
	VoyageAPIKey string
	VoyageModel  string
}

// UnknownFunctionError is returned for an embedding function name that is not registered.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown embedding function: %s", e.Name)
}

type factory func(cfg Config) (Embedder, error)

var factories = map[string]factory{
	FunctionDefault: func(Config) (Embedder, error) { return NewHashEmbedder(DefaultHashDimension), nil },
	FunctionOllama:  newOllamaEmbedder,
	FunctionOpenAI:  newOpenAIEmbedder,
	FunctionVoyage: func(cfg Config) (Embedder, error) {
		return NewVoyageClient(cfg.VoyageAPIKey, cfg.VoyageModel, 0)
	},
}

// Names returns the registered embedding function names, sorted.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provider resolves embedding functions by name and caches the constructed clients.
// All methods are safe for concurrent use.
type Provider struct {
	cfg Config

	mu        sync.Mutex
	embedders map[string]Embedder
}

// NewProvider creates a provider for the given settings.
func NewProvider(cfg Config) *Provider {
	return &Provider{
		cfg:       cfg,
		embedders: make(map[string]Embedder),
	}
}

// Get returns the embedder for name. An empty name selects FunctionDefault.
func (p *Provider) Get(name string) (Embedder, error) {
	if name == "" {
		name = FunctionDefault
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.embedders[name]; ok {
		return e, nil
	}
	f, ok := factories[name]
	if !ok {
		return nil, &UnknownFunctionError{Name: name}
	}
	e, err := f(p.cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s embedder: %w", name, err)
	}
	p.embedders[name] = e
	return e, nil
}

// Known reports whether name is a registered embedding function.
func Known(name string) bool {
	if name == "" {
		return true
	}
	_, ok := factories[name]
	return ok
}
