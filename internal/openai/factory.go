package openai

import (
	"context"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/service"
)

// Factory builds provider clients per agent credential. Underlying HTTP
// clients are cached by key.
type Factory struct {
	cfg          Config
	defaultModel string
	clients      sync.Map // apiKey -> *openai.Client
	newAPI       func(apiKey string) *openai.Client
}

// NewFactory creates a factory sharing cfg across credentials.
func NewFactory(cfg Config, defaultModel string) *Factory {
	f := &Factory{cfg: cfg.withDefaults(), defaultModel: defaultModel}
	f.newAPI = func(apiKey string) *openai.Client { return newAPIClient(apiKey, f.cfg.BaseURL) }
	return f
}

func (f *Factory) api(apiKey string) *openai.Client {
	if c, ok := f.clients.Load(apiKey); ok {
		return c.(*openai.Client)
	}
	c, _ := f.clients.LoadOrStore(apiKey, f.newAPI(apiKey))
	return c.(*openai.Client)
}

func (f *Factory) Embedder(apiKey string) service.EmbeddingProvider {
	return &Client{api: f.api(apiKey), cfg: f.cfg}
}

func (f *Factory) Generator(apiKey string) service.SegmentGenerator {
	g, err := newGenerator(f.api(apiKey), f.cfg, f.defaultModel)
	if err != nil {
		return failingGenerator{err: err}
	}
	return g
}

// EmbeddingModel returns the configured embedding model name.
func (f *Factory) EmbeddingModel() string {
	return f.cfg.EmbeddingModel
}

type failingGenerator struct {
	err error
}

func (g failingGenerator) GenerateSegments(context.Context, string, string) ([]domain.SegmentDraft, error) {
	return nil, g.err
}
