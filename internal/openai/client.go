package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/retry"
)

const (
	// DefaultEmbeddingModel is the model used for indexing and queries
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions matches the vector column width
	DefaultEmbeddingDimensions = 1536
	// DefaultTimeout bounds one provider call including retries
	DefaultTimeout = 30 * time.Second
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoEmbeddingData is returned when the provider answers without vectors
	ErrNoEmbeddingData = errors.New("no embedding data returned")
)

// EmbeddingAPI is the subset of the go-openai client used for embeddings.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

type Config struct {
	BaseURL             string
	EmbeddingModel      string
	EmbeddingDimensions int
	Timeout             time.Duration
	MaxAttempts         int
	Logger              *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = string(DefaultEmbeddingModel)
	}
	if c.EmbeddingDimensions <= 0 {
		c.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

func (c Config) retryConfig() retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = c.MaxAttempts
	rc.Retryable = IsRetryable
	rc.Logger = c.Logger
	return rc
}

// Client embeds text with one credential.
type Client struct {
	api EmbeddingAPI
	cfg Config
}

// NewClient creates a client for apiKey with default settings.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(apiKey, Config{})
}

// NewClientWithConfig creates a client for apiKey with explicit configuration.
func NewClientWithConfig(apiKey string, cfg Config) *Client {
	return &Client{api: newAPIClient(apiKey, cfg.BaseURL), cfg: cfg.withDefaults()}
}

func newAPIClient(apiKey, baseURL string) *openai.Client {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// Embed embeds one text. UsedTokens carries the provider's prompt usage.
func (c *Client) Embed(ctx context.Context, text string) (domain.Embedding, error) {
	if text == "" {
		return domain.Embedding{}, ErrEmptyText
	}

	resp, err := c.create(ctx, []string{text})
	if err != nil {
		return domain.Embedding{}, err
	}
	return domain.Embedding{Vector: resp.Data[0].Embedding, UsedTokens: resp.Usage.PromptTokens}, nil
}

// EmbedMany embeds texts in one request and returns vectors in input order.
// Usage is reported for the whole request, so UsedTokens stays zero.
func (c *Client) EmbedMany(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyText
		}
	}

	resp, err := c.create(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([]domain.Embedding, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = domain.Embedding{Vector: d.Embedding}
	}
	if len(texts) == 1 {
		out[0].UsedTokens = resp.Usage.PromptTokens
	}
	return out, nil
}

func (c *Client) create(ctx context.Context, input []string) (openai.EmbeddingResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req := openai.EmbeddingRequest{
		Input:      input,
		Model:      openai.EmbeddingModel(c.cfg.EmbeddingModel),
		Dimensions: c.cfg.EmbeddingDimensions,
	}

	resp, err := retry.DoWithResult(ctx, c.cfg.retryConfig(), func() (openai.EmbeddingResponse, error) {
		return c.api.CreateEmbeddings(ctx, req)
	})
	if err != nil {
		return openai.EmbeddingResponse{}, fmt.Errorf("failed to create embedding: %w", deadlineError(ctx, err))
	}
	if len(resp.Data) == 0 {
		return openai.EmbeddingResponse{}, ErrNoEmbeddingData
	}
	for _, d := range resp.Data {
		if len(d.Embedding) != c.cfg.EmbeddingDimensions {
			return openai.EmbeddingResponse{}, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.cfg.EmbeddingDimensions, len(d.Embedding))
		}
	}
	return resp, nil
}

// deadlineError makes a timed-out call match context.DeadlineExceeded even
// when the transport error does not wrap it.
func deadlineError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

// IsRetryable reports whether a provider error is transient: rate limits,
// server errors and transport failures are, client errors are not.
func IsRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
