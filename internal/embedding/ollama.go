package embedding

import (
	"context"
	"fmt"
	"strings"

	chromem "github.com/philippgille/chromem-go"
)

const (
	// DefaultOllamaModel is the local embedding model used when none is configured.
	DefaultOllamaModel = "nomic-embed-text"

	// OllamaDimension is the vector dimension of nomic-embed-text.
	OllamaDimension = 768

	defaultOllamaBaseURL = "http://localhost:11434/api"
)

// OllamaEmbedder generates embeddings with a local Ollama instance.
// Requests go through chromem-go's Ollama embedding function, one text at a time.
type OllamaEmbedder struct {
	model     string
	dimension int
	embed     chromem.EmbeddingFunc
}

// NewOllamaEmbedder creates an embedder for model served at baseURL
// (e.g. "http://localhost:11434"). The "/api" suffix is added when missing.
func NewOllamaEmbedder(model string, dimension int, baseURL string) *OllamaEmbedder {
	if model == "" {
		model = DefaultOllamaModel
	}
	if dimension <= 0 {
		dimension = OllamaDimension
	}
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(baseURL, "/api") {
		baseURL += "/api"
	}
	return &OllamaEmbedder{
		model:     model,
		dimension: dimension,
		embed:     chromem.NewEmbeddingFuncOllama(model, baseURL),
	}
}

func (e *OllamaEmbedder) Dimension() int { return e.dimension }

func (e *OllamaEmbedder) Model() string { return e.model }

func (e *OllamaEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vec, err := e.embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("ollama embed text %d: %w", i, err)
		}
		out = append(out, vec)
	}
	return out, nil
}
