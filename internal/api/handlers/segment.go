package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/agentkb/internal/api"
	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/service"
)

type SegmentService interface {
	ListSegments(ctx context.Context, caller service.Caller, documentID string, kind domain.SegmentKind) ([]*domain.KnowledgeSegment, error)
	UpdateSegment(ctx context.Context, input service.UpdateSegmentInput) (*domain.KnowledgeSegment, error)
	DeleteSegment(ctx context.Context, caller service.Caller, segmentID string) error
}

type SegmentHandler struct {
	svc SegmentService
}

func NewSegmentHandler(svc SegmentService) *SegmentHandler {
	return &SegmentHandler{svc: svc}
}

type UpdateSegmentRequest struct {
	Title     *string `json:"title"`
	TitlePath *string `json:"title_path"`
	Content   *string `json:"content"`
}

// SegmentResponse omits the embedding vector.
type SegmentResponse struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Kind       string `json:"kind"`
	Index      int    `json:"index"`
	Title      string `json:"title,omitempty"`
	TitlePath  string `json:"title_path,omitempty"`
	Content    string `json:"content"`
	TokenCount int    `json:"token_count"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func segmentToResponse(s *domain.KnowledgeSegment) *SegmentResponse {
	return &SegmentResponse{
		ID:         s.ID,
		DocumentID: s.DocumentID,
		Kind:       string(s.Kind),
		Index:      s.Index,
		Title:      s.Title,
		TitlePath:  s.TitlePath,
		Content:    s.Content,
		TokenCount: s.TokenCount,
		CreatedAt:  s.CreatedAt.Format(timeFormat),
		UpdatedAt:  s.UpdatedAt.Format(timeFormat),
	}
}

// List handles GET /documents/{id}/segments?kind=chunk|block.
func (h *SegmentHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	kind := domain.SegmentKind(r.URL.Query().Get("kind"))
	segments, err := h.svc.ListSegments(r.Context(), caller, chi.URLParam(r, "id"), kind)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	items := make([]*SegmentResponse, len(segments))
	for i, s := range segments {
		items[i] = segmentToResponse(s)
	}
	api.Success(w, http.StatusOK, items)
}

func (h *SegmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req UpdateSegmentRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	segment, err := h.svc.UpdateSegment(r.Context(), service.UpdateSegmentInput{
		Caller:    caller,
		SegmentID: chi.URLParam(r, "id"),
		Title:     req.Title,
		TitlePath: req.TitlePath,
		Content:   req.Content,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, segmentToResponse(segment))
}

func (h *SegmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteSegment(r.Context(), caller, id); err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"id": id})
}
