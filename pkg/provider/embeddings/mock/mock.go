// Package mock provides a test double for the embeddings.Provider interface.
//
// Provider returns pre-canned vectors without a live model and records every
// text submitted for embedding:
//
//	p := &mock.Provider{DimensionsValue: 4, ModelIDValue: "test-embed"}
//	vec, _ := p.Embed(ctx, "hero attack dir 1 hp 0.80")
package mock

import (
	"context"
	"sync"

	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/embeddings"
)

var _ embeddings.Provider = (*Provider)(nil)

// EmbedCall records a single Embed invocation.
type EmbedCall struct {
	Ctx  context.Context
	Text string
}

// EmbedBatchCall records a single EmbedBatch invocation. Texts is a copy of
// the input slice.
type EmbedBatchCall struct {
	Ctx   context.Context
	Texts []string
}

// Provider is a recording mock for embeddings.Provider. When no result is
// configured, Embed and EmbedBatch return zero vectors of DimensionsValue
// length so pipeline code downstream still sees correctly sized embeddings.
type Provider struct {
	mu sync.Mutex

	// EmbedResult and EmbedErr control what Embed returns.
	EmbedResult []float32
	EmbedErr    error

	// EmbedBatchResult and EmbedBatchErr control what EmbedBatch returns.
	EmbedBatchResult [][]float32
	EmbedBatchErr    error

	// DimensionsValue is returned by Dimensions and sizes default vectors.
	DimensionsValue int

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// EmbedCalls and EmbedBatchCalls record invocations in order.
	EmbedCalls      []EmbedCall
	EmbedBatchCalls []EmbedBatchCall
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, EmbedCall{Ctx: ctx, Text: text})
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	if p.EmbedResult != nil {
		return p.EmbedResult, nil
	}
	return make([]float32, p.DimensionsValue), nil
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]string, len(texts))
	copy(cp, texts)
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, EmbedBatchCall{Ctx: ctx, Texts: cp})
	if p.EmbedBatchErr != nil {
		return nil, p.EmbedBatchErr
	}
	if p.EmbedBatchResult != nil {
		return p.EmbedBatchResult, nil
	}
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = make([]float32, p.DimensionsValue)
	}
	return vecs, nil
}

func (p *Provider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.DimensionsValue
}

func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelIDValue
}

// Reset clears recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = nil
	p.EmbedBatchCalls = nil
}
