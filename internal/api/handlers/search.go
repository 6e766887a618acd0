package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/agentkb/internal/api"
	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/service"
)

type SearchService interface {
	SearchKnowledgeByEmbedding(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query               string   `json:"query"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	Kind                string   `json:"kind"`
	Limit               int      `json:"limit"`
}

// Search handles POST /agents/{id}/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req SearchRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.Limit < 0 {
		api.Error(w, http.StatusBadRequest, "limit must be positive")
		return
	}

	out, err := h.svc.SearchKnowledgeByEmbedding(r.Context(), service.SearchInput{
		Caller:              caller,
		AgentID:             chi.URLParam(r, "id"),
		Query:               req.Query,
		SimilarityThreshold: req.SimilarityThreshold,
		Kind:                domain.SegmentKind(req.Kind),
		Limit:               req.Limit,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, out)
}
