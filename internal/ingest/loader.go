// Package ingest resolves the raw text of documents whose source lives in
// object storage or on the web.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/logger"
	"github.com/cloo-solutions/agentkb/internal/storage"
)

const (
	defaultFetchTimeout = 20 * time.Second
	defaultMaxBytes     = 10 << 20
	userAgent           = "agentkb-ingest/1.0"
)

// ObjectReader reads source objects from storage.
type ObjectReader interface {
	GetObject(ctx context.Context, key string) ([]byte, *storage.ObjectMetadata, error)
}

// Loader loads document text for object and url sources.
type Loader struct {
	objects    ObjectReader
	httpClient *http.Client
	maxBytes   int64
}

// NewLoader creates a Loader. objects may be nil when no object storage is
// configured; httpClient defaults to a client with a 20s timeout that
// refuses loopback, private and link-local addresses.
func NewLoader(objects ObjectReader, httpClient *http.Client) *Loader {
	if httpClient == nil {
		httpClient = newFetchClient(defaultFetchTimeout)
	}
	return &Loader{objects: objects, httpClient: httpClient, maxBytes: defaultMaxBytes}
}

// LoadText returns the text of doc. Object keys must live under orgID's
// namespace.
func (l *Loader) LoadText(ctx context.Context, orgID string, doc *domain.KnowledgeDocument) (string, error) {
	switch doc.SourceType {
	case domain.SourceTypeObject:
		return l.loadObject(ctx, orgID, doc.SourceURL)
	case domain.SourceTypeURL:
		return l.loadURL(ctx, doc.SourceURL)
	default:
		return "", domain.ErrNoSourceText
	}
}

func (l *Loader) loadObject(ctx context.Context, orgID, key string) (string, error) {
	if !domain.ObjectKeyOwnedBy(key, orgID) {
		return "", domain.ErrObjectAccessDenied.WithCause(fmt.Errorf("key %q is outside %q", key, domain.ObjectKeyPrefix(orgID)))
	}
	if l.objects == nil {
		return "", domain.ErrSourceUnavailable.WithCause(fmt.Errorf("object storage is not configured"))
	}

	body, meta, err := l.objects.GetObject(ctx, key)
	if err != nil {
		if domain.CodeOf(err) != "" {
			return "", err
		}
		return "", domain.ErrSourceUnavailable.WithCause(err)
	}

	logger.Log.Debug("loaded source object", zap.String("key", key), zap.Int("bytes", len(body)))
	return decode(body, meta.ContentType, key)
}

func (l *Loader) loadURL(ctx context.Context, rawURL string) (string, error) {
	if err := domain.ValidateSourceURL(rawURL); err != nil {
		return "", domain.ErrSourceAddressBlocked.WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", domain.ErrSourceUnavailable.WithCause(err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html, text/plain;q=0.9, */*;q=0.1")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, errBlockedTarget) {
			return "", domain.ErrSourceAddressBlocked.WithCause(err)
		}
		return "", domain.ErrSourceUnavailable.WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", domain.ErrSourceUnavailable.WithCause(fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return "", domain.ErrSourceUnavailable.WithCause(err)
	}
	if int64(len(body)) > l.maxBytes {
		return "", domain.ErrSourceUnavailable.WithCause(fmt.Errorf("%s is larger than %d bytes", rawURL, l.maxBytes))
	}

	logger.Log.Debug("fetched source url", zap.String("url", rawURL), zap.Int("bytes", len(body)))
	return decode(body, resp.Header.Get("Content-Type"), rawURL)
}

func decode(body []byte, contentType, name string) (string, error) {
	if !utf8.Valid(body) {
		return "", domain.ErrSourceUnavailable.WithCause(fmt.Errorf("%s is not UTF-8 text", name))
	}
	if isHTML(contentType, name) {
		text, err := HTMLToText(string(body))
		if err != nil {
			return "", domain.ErrSourceUnavailable.WithCause(err)
		}
		return text, nil
	}
	return strings.TrimSpace(string(body)), nil
}

func isHTML(contentType, name string) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType == "text/html" || mediaType == "application/xhtml+xml"
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".html", ".htm":
		return true
	}
	return false
}
