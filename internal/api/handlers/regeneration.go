package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/agentkb/internal/api"
	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/service"
)

type RegenerationService interface {
	RegenerateDocumentEmbeddings(ctx context.Context, input service.RegenerateInput) (*service.RegenerationResult, error)
}

type RegenerationHandler struct {
	svc RegenerationService
}

func NewRegenerationHandler(svc RegenerationService) *RegenerationHandler {
	return &RegenerationHandler{svc: svc}
}

type RegenerateRequest struct {
	Kind string `json:"kind"`
}

type RegenerateResponse struct {
	*service.RegenerationResult
	Partial bool `json:"partial"`
}

// Regenerate re-embeds a document's segments synchronously. A partial run is
// still a success; the failures are listed in the result.
func (h *RegenerationHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req RegenerateRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	result, err := h.svc.RegenerateDocumentEmbeddings(r.Context(), service.RegenerateInput{
		Caller:     caller,
		DocumentID: chi.URLParam(r, "id"),
		Kind:       domain.SegmentKind(req.Kind),
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, RegenerateResponse{RegenerationResult: result, Partial: result.Partial()})
}
