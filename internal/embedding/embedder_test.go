package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vectors [][]float32
	err     error
	calls   [][]string
}

func (s *stubEmbedder) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	s.calls = append(s.calls, texts)
	return s.vectors, s.err
}

func (s *stubEmbedder) Dimension() int { return 2 }
func (s *stubEmbedder) Model() string  { return "stub" }

// TestToChromemFunc verifies single-text embedding goes through the Embedder.
func TestToChromemFunc(t *testing.T) {
	stub := &stubEmbedder{vectors: [][]float32{{0.6, 0.8}}}
	fn := ToChromemFunc(stub)

	vec, err := fn(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6, 0.8}, vec)
	assert.Equal(t, [][]string{{"hello"}}, stub.calls)
}

// TestToChromemFunc_Errors verifies embedder failures and empty results surface.
func TestToChromemFunc_Errors(t *testing.T) {
	boom := errors.New("boom")
	_, err := ToChromemFunc(&stubEmbedder{err: boom})(context.Background(), "x")
	assert.ErrorIs(t, err, boom)

	_, err = ToChromemFunc(&stubEmbedder{})(context.Background(), "x")
	assert.Error(t, err)
}

// TestEmbedderDefaults verifies zero values fall back to model defaults.
func TestEmbedderDefaults(t *testing.T) {
	o := NewOpenAIEmbedder(nil, "", 0, 0)
	assert.Equal(t, DefaultOpenAIModel, o.Model())
	assert.Equal(t, OpenAIDimension, o.Dimension())
	assert.Equal(t, DefaultBatchSize, o.batchSize)

	l := NewOllamaEmbedder("", 0, "")
	assert.Equal(t, DefaultOllamaModel, l.Model())
	assert.Equal(t, OllamaDimension, l.Dimension())
}

// TestToFloat32 verifies vector conversion.
func TestToFloat32(t *testing.T) {
	assert.Equal(t, []float32{1, 0.5}, toFloat32([]float64{1, 0.5}))
}
