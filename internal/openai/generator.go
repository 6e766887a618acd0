package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/metrics"
	"github.com/cloo-solutions/agentkb/internal/retry"
)

// DefaultGenerationModel splits documents when the agent names no model.
const DefaultGenerationModel = "gpt-4o-mini"

// ErrNoChoices is returned when the completion carries no message.
var ErrNoChoices = errors.New("completion returned no choices")

const segmentationPrompt = `You split knowledge documents for a retrieval-augmented WhatsApp assistant.
Divide the text into self-contained segments of roughly 300 to 1500 characters.
Never cut a sentence in half. Each segment must make sense on its own and be
useful when retrieved without its neighbours. Give every segment a short,
descriptive title. Keep the original language and wording; do not summarize,
invent or drop information.`

// ChatAPI is the subset of the go-openai client used for generation.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type generatedSegment struct {
	Title   string `json:"title" description:"Short descriptive title"`
	Content string `json:"content" description:"Verbatim segment text"`
}

type generatedSegments struct {
	Segments []generatedSegment `json:"segments"`
}

// Generator splits text into titled segments with a structured chat completion.
type Generator struct {
	api          ChatAPI
	cfg          Config
	defaultModel string
	schema       *jsonschema.Definition
}

// NewGenerator creates a generator for apiKey.
func NewGenerator(apiKey string, cfg Config) (*Generator, error) {
	return newGenerator(newAPIClient(apiKey, cfg.BaseURL), cfg, DefaultGenerationModel)
}

func newGenerator(api ChatAPI, cfg Config, defaultModel string) (*Generator, error) {
	schema, err := jsonschema.GenerateSchemaForType(generatedSegments{})
	if err != nil {
		return nil, fmt.Errorf("build segment schema: %w", err)
	}
	if defaultModel == "" {
		defaultModel = DefaultGenerationModel
	}
	return &Generator{api: api, cfg: cfg.withDefaults(), defaultModel: defaultModel, schema: schema}, nil
}

// GenerateSegments returns the segments the model produced for text, in
// order. Segments with empty content are dropped.
func (g *Generator) GenerateSegments(ctx context.Context, model, text string) ([]domain.SegmentDraft, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if model == "" {
		model = g.defaultModel
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: segmentationPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "knowledge_segments",
				Schema: g.schema,
				Strict: true,
			},
		},
	}

	start := time.Now()
	resp, err := retry.DoWithResult(ctx, g.cfg.retryConfig(), func() (openai.ChatCompletionResponse, error) {
		return g.api.CreateChatCompletion(ctx, req)
	})
	metrics.GenerationDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("segment generation: %w", deadlineError(ctx, err))
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	var out generatedSegments
	if err := g.schema.Unmarshal(resp.Choices[0].Message.Content, &out); err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}

	drafts := make([]domain.SegmentDraft, 0, len(out.Segments))
	for _, s := range out.Segments {
		content := strings.TrimSpace(s.Content)
		if content == "" {
			continue
		}
		drafts = append(drafts, domain.SegmentDraft{Title: strings.TrimSpace(s.Title), Content: content})
	}
	return drafts, nil
}
