package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"github.com/cloo-solutions/agentkb/internal/api"
	"github.com/cloo-solutions/agentkb/internal/domain"
)

type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (string, error)
}

// APIKeyAuth resolves the bearer token to an organization. Failures are
// written as UNAUTHORIZED envelopes and never reach next.
func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r.Header.Get("Authorization"))
			if err != nil {
				api.HandleError(w, r, err)
				return
			}

			orgID, err := validator.ValidateAPIKey(r.Context(), token)
			if err != nil {
				api.HandleError(w, r, err)
				return
			}

			if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
				hub.Scope().SetTag("org_id", orgID)
			}
			next.ServeHTTP(w, r.WithContext(WithOrgID(r.Context(), orgID)))
		})
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", domain.ErrMissingAuthorization
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", domain.ErrMalformedAuthorization
	}
	return strings.TrimSpace(token), nil
}
