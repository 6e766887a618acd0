package service

import (
	"context"
	"errors"

	"github.com/cloo-solutions/agentkb/internal/domain"
)

// EmbeddingProvider turns text into vectors. Implementations are bound to
// a single credential.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) (domain.Embedding, error)
	// EmbedMany returns one embedding per input, in input order.
	EmbedMany(ctx context.Context, texts []string) ([]domain.Embedding, error)
}

// SegmentGenerator asks a generative model to split text into titled,
// self-contained segments.
type SegmentGenerator interface {
	GenerateSegments(ctx context.Context, model, text string) ([]domain.SegmentDraft, error)
}

// ProviderFactory builds provider clients for a credential. Implementations
// may cache clients per credential.
type ProviderFactory interface {
	Embedder(apiKey string) EmbeddingProvider
	Generator(apiKey string) SegmentGenerator
}

// providerError classifies an embedding provider error.
func providerError(err error) error {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrProviderTimeout.WithCause(err)
	}
	return domain.ErrProviderFailure.WithCause(err)
}

// generationError classifies a semantic segmentation error.
func generationError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrProviderTimeout.WithCause(err)
	}
	return domain.ErrGenerationFailure.WithCause(err)
}
