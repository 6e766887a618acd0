package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cloo-solutions/agentkb/internal/api"
	"github.com/cloo-solutions/agentkb/internal/api/middleware"
	"github.com/cloo-solutions/agentkb/internal/service"
)

const timeFormat = time.RFC3339

// callerFrom builds the service caller from the authenticated org. It writes
// a 401 and returns false when the request carries no org.
func callerFrom(w http.ResponseWriter, r *http.Request) (service.Caller, bool) {
	orgID := middleware.OrgIDFrom(r.Context())
	if orgID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return service.Caller{}, false
	}
	return service.OrgCaller(orgID), true
}

// decodeBody decodes a JSON request body into dst. An empty body is accepted
// when optional is set, leaving dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		api.PayloadTooLarge(w)
		return false
	}
	api.Error(w, http.StatusBadRequest, "invalid request body")
	return false
}
