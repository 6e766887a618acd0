// Package telemetry wraps Sentry tracing and error capture.
package telemetry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/logger"
)

const (
	serverName   = "agentkb"
	flushTimeout = 5 * time.Second
)

type Config struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
	Debug            bool
}

// Init configures the global Sentry client. The returned func flushes
// buffered events and is safe to call when Sentry is disabled.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate <= 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		ServerName:       serverName,
		Debug:            cfg.Debug,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		TracesSampler:    sampler(cfg.TracesSampleRate),
	})
	if err != nil {
		return func() {}, err
	}

	logger.Info("sentry initialized",
		zap.String("environment", cfg.Environment),
		zap.Float64("traces_sample_rate", cfg.TracesSampleRate),
	)
	return func() { sentry.Flush(flushTimeout) }, nil
}

// sampler never traces probes, keeps child spans with their parent and
// samples root transactions at rate.
func sampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		switch ctx.Span.Name {
		case "GET /health", "GET /metrics":
			return 0
		}
		if ctx.Parent != nil {
			if ctx.Parent.Sampled.Bool() {
				return 1
			}
			return 0
		}
		return rate
	}
}

// SpanAttributes are the tags service spans carry. Empty fields are skipped.
type SpanAttributes struct {
	OrgID      string
	AgentID    string
	DocumentID string
	SegmentID  string
	Operation  string
}

func (a SpanAttributes) apply(span *sentry.Span) {
	for tag, v := range map[string]string{
		"org_id":      a.OrgID,
		"agent_id":    a.AgentID,
		"document_id": a.DocumentID,
		"segment_id":  a.SegmentID,
	} {
		if v != "" {
			span.SetTag(tag, v)
		}
	}
	if a.Operation != "" {
		span.SetData("operation", a.Operation)
	}
}

type Span struct {
	inner *sentry.Span
}

// StartSpan opens a child of the span in ctx, or a new transaction when
// there is none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}
	attrs.apply(span)
	return span.Context(), &Span{inner: span}
}

func (s *Span) End() {
	if s != nil && s.inner != nil {
		s.inner.Finish()
	}
}

// SetError sets the span status from err's domain code. Only server-side
// failures are reported as Sentry events.
func (s *Span) SetError(err error) {
	if s == nil || s.inner == nil || err == nil {
		return
	}
	status, report := classify(err)
	s.inner.Status = status
	if report {
		CaptureError(s.inner.Context(), err)
	}
}

func classify(err error) (sentry.SpanStatus, bool) {
	switch domain.CodeOf(err) {
	case domain.ErrCodeValidation:
		return sentry.SpanStatusInvalidArgument, false
	case domain.ErrCodeNotFound:
		return sentry.SpanStatusNotFound, false
	case domain.ErrCodeAlreadyExists:
		return sentry.SpanStatusAlreadyExists, false
	case domain.ErrCodeUnauthorized, domain.ErrCodeForbidden:
		return sentry.SpanStatusPermissionDenied, false
	case domain.ErrCodeMissingCredential:
		return sentry.SpanStatusFailedPrecondition, false
	case domain.ErrCodeProviderTimeout:
		return sentry.SpanStatusDeadlineExceeded, true
	case domain.ErrCodeProviderFailure, domain.ErrCodeGenerationFailure, domain.ErrCodeStoreFailure:
		return sentry.SpanStatusUnavailable, true
	default:
		return sentry.SpanStatusInternalError, true
	}
}

// CaptureError reports err on the hub bound to ctx, or the global hub.
func CaptureError(ctx context.Context, err error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}
