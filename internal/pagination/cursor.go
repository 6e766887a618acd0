// Package pagination implements keyset pagination over (created_at, id)
// ordered listings.
package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

var ErrInvalidCursor = errors.New("invalid cursor format")

// Cursor is the position of the last item on a page. Listings are ordered
// newest first, so the next page holds rows strictly before it.
type Cursor struct {
	LastID    string
	Timestamp time.Time
}

// Page is one page of a keyset listing.
type Page[T any] struct {
	Items      []T
	NextCursor string
	HasMore    bool
}

// NormalizeLimit applies the default page size and caps it.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Encode renders the cursor as an opaque, URL-safe token.
func (c Cursor) Encode() string {
	if c.LastID == "" {
		return ""
	}
	raw := c.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + c.LastID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// EncodeCursor is shorthand for Cursor{LastID, Timestamp}.Encode().
func EncodeCursor(lastID string, timestamp time.Time) string {
	return Cursor{LastID: lastID, Timestamp: timestamp}.Encode()
}

// DecodeCursor parses a token produced by Encode. An empty token is the
// first page and decodes to nil.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return nil, ErrInvalidCursor
	}

	ts, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}

	timestamp, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{LastID: id, Timestamp: timestamp}, nil
}

// Bounds returns the keyset arguments for a predicate of the form
// ($n::timestamptz IS NULL OR (created_at, id) < ($n, $m)). Both are nil on
// the first page.
func (c *Cursor) Bounds() (*time.Time, *string) {
	if c == nil {
		return nil, nil
	}
	return &c.Timestamp, &c.LastID
}

// Paginate trims items fetched with LIMIT limit+1 down to limit and derives
// the next cursor from the last item kept.
func Paginate[T any](items []T, limit int, position func(T) Cursor) Page[T] {
	page := Page[T]{Items: items}
	if len(items) <= limit {
		return page
	}

	page.Items = items[:limit]
	page.HasMore = true
	page.NextCursor = position(page.Items[limit-1]).Encode()
	return page
}
