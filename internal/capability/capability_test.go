package capability

import (
	"context"
	"errors"
	"testing"
	"time"

	registryembed "github.com/resonancelabs/resonance-service/internal/registry/embed"
	registrygenerate "github.com/resonancelabs/resonance-service/internal/registry/generate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOpts = Options{
	MaxAttempts:    2,
	BackoffInitial: time.Millisecond,
	BackoffMax:     5 * time.Millisecond,
	Timeout:        time.Second,
}

type fakeEmbedder struct {
	name      string
	dimension int
	calls     int
	failFirst int
	err       error
}

func (f *fakeEmbedder) ModelName() string { return f.name }
func (f *fakeEmbedder) Dimension() int    { return f.dimension }

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.calls <= f.failFirst {
		return nil, errors.New("transient failure")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, f.dimension)
		vec[0] = 1
		out[i] = vec
	}
	return out, nil
}

func TestFailoverEmbedderUsesPrimary(t *testing.T) {
	primary := &fakeEmbedder{name: "primary", dimension: 4}
	fallback := &fakeEmbedder{name: "fallback", dimension: 4}
	f := NewFailoverEmbedder(4, testOpts, primary, fallback)

	vecs, err := f.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls)
}

func TestFailoverEmbedderRetriesTransientErrors(t *testing.T) {
	primary := &fakeEmbedder{name: "primary", dimension: 4, failFirst: 1}
	f := NewFailoverEmbedder(4, testOpts, primary)

	vecs, err := f.EmbedTexts(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, 2, primary.calls)
}

func TestFailoverEmbedderFallsBack(t *testing.T) {
	primary := &fakeEmbedder{name: "primary", dimension: 4, err: errors.New("down")}
	fallback := &fakeEmbedder{name: "fallback", dimension: 4}
	f := NewFailoverEmbedder(4, testOpts, primary, fallback)

	vecs, err := f.EmbedTexts(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, 1, fallback.calls)
}

func TestFailoverEmbedderAllProvidersDown(t *testing.T) {
	primary := &fakeEmbedder{name: "primary", dimension: 4, err: errors.New("down")}
	fallback := &fakeEmbedder{name: "fallback", dimension: 4, err: errors.New("also down")}
	f := NewFailoverEmbedder(4, testOpts, primary, fallback)

	_, err := f.EmbedTexts(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFailoverEmbedderDimensionMismatchIsPermanent(t *testing.T) {
	// Provider reports dimension 8 but the chain requires 4; the mismatch
	// must not be retried.
	primary := &fakeEmbedder{name: "primary", dimension: 8}
	f := NewFailoverEmbedder(4, testOpts, primary)

	_, err := f.EmbedTexts(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Equal(t, 1, primary.calls)
}

func TestFailoverEmbedderEmptyInput(t *testing.T) {
	primary := &fakeEmbedder{name: "primary", dimension: 4}
	f := NewFailoverEmbedder(4, testOpts, primary)

	vecs, err := f.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Equal(t, 0, primary.calls)
}

type fakeGenerator struct {
	name  string
	text  string
	err   error
	calls int
}

func (f *fakeGenerator) Name() string { return f.name }
func (f *fakeGenerator) Generate(ctx context.Context, req registrygenerate.Request) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func TestFailoverGeneratorFallsBack(t *testing.T) {
	primary := &fakeGenerator{name: "primary", err: errors.New("down")}
	fallback := &fakeGenerator{name: "fallback", text: "synthesized insight"}
	f := NewFailoverGenerator(testOpts, primary, fallback)

	text, err := f.Generate(context.Background(), registrygenerate.Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "synthesized insight", text)
	assert.Equal(t, int(testOpts.MaxAttempts), primary.calls)
}

func TestFailoverGeneratorAllDown(t *testing.T) {
	primary := &fakeGenerator{name: "primary", err: errors.New("down")}
	f := NewFailoverGenerator(testOpts, primary)

	_, err := f.Generate(context.Background(), registrygenerate.Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

var _ registryembed.Embedder = (*FailoverEmbedder)(nil)
var _ registrygenerate.Generator = (*FailoverGenerator)(nil)
