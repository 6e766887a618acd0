package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 128
)

type ctxKey int

const (
	requestInfoKey ctxKey = iota
	orgIDKey
)

// requestInfo is shared by every middleware layer of one request. Inner
// layers fill it in so that outer layers can read it after next returns.
type requestInfo struct {
	id    string
	orgID string
}

func infoFrom(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey).(*requestInfo)
	return info
}

// RequestID propagates a caller-supplied X-Request-ID or assigns a new one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if !usableRequestID(id) {
			id = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestInfoKey, &requestInfo{id: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func usableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

func RequestIDFrom(ctx context.Context) string {
	if info := infoFrom(ctx); info != nil {
		return info.id
	}
	return ""
}

// WithOrgID marks ctx as authenticated for orgID.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	if info := infoFrom(ctx); info != nil {
		info.orgID = orgID
	}
	return context.WithValue(ctx, orgIDKey, orgID)
}

// OrgIDFrom returns the authenticated org, or "" before authentication.
func OrgIDFrom(ctx context.Context) string {
	if orgID, ok := ctx.Value(orgIDKey).(string); ok {
		return orgID
	}
	if info := infoFrom(ctx); info != nil {
		return info.orgID
	}
	return ""
}
