package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/agentkb/internal/api"
	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/service"
)

type DocumentService interface {
	CreateDocument(ctx context.Context, input service.CreateDocumentInput) (*domain.KnowledgeDocument, error)
	GetDocument(ctx context.Context, caller service.Caller, documentID string) (*domain.KnowledgeDocument, error)
	ListDocuments(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error)
	UpdateDocument(ctx context.Context, input service.UpdateDocumentInput) (*service.UpdateDocumentResult, error)
	DeleteDocument(ctx context.Context, caller service.Caller, documentID string) error
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type CreateDocumentRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SourceType  string `json:"source_type"`
	SourceURL   string `json:"source_url"`
}

type UpdateDocumentRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	SourceType  *string `json:"source_type"`
	SourceURL   *string `json:"source_url"`
	Enabled     *bool   `json:"enabled"`
}

type DocumentResponse struct {
	ID          string `json:"id"`
	AgentID     string `json:"agent_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	SourceType  string `json:"source_type"`
	SourceURL   string `json:"source_url,omitempty"`
	Enabled     bool   `json:"enabled"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type ListDocumentsResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

type UpdateDocumentResponse struct {
	Document           *DocumentResponse `json:"document"`
	RegenerationQueued bool              `json:"regeneration_queued"`
	RegenerationJobID  string            `json:"regeneration_job_id,omitempty"`
}

func documentToResponse(d *domain.KnowledgeDocument) *DocumentResponse {
	return &DocumentResponse{
		ID:          d.ID,
		AgentID:     d.AgentID,
		Title:       d.Title,
		Description: d.Description,
		SourceType:  string(d.SourceType),
		SourceURL:   d.SourceURL,
		Enabled:     d.Enabled,
		CreatedAt:   d.CreatedAt.Format(timeFormat),
		UpdatedAt:   d.UpdatedAt.Format(timeFormat),
	}
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req CreateDocumentRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}

	doc, err := h.svc.CreateDocument(r.Context(), service.CreateDocumentInput{
		Caller:      caller,
		AgentID:     chi.URLParam(r, "id"),
		Title:       req.Title,
		Description: req.Description,
		SourceType:  domain.SourceType(req.SourceType),
		SourceURL:   req.SourceURL,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	out, err := h.svc.ListDocuments(r.Context(), service.ListDocumentsInput{
		Caller:  caller,
		AgentID: chi.URLParam(r, "id"),
		Cursor:  query.Get("cursor"),
		Limit:   limit,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	items := make([]*DocumentResponse, len(out.Items))
	for i, d := range out.Items {
		items[i] = documentToResponse(d)
	}
	api.Success(w, http.StatusOK, ListDocumentsResponse{
		Items:   items,
		Cursor:  out.Cursor,
		HasMore: out.HasMore,
	})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	doc, err := h.svc.GetDocument(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req UpdateDocumentRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	input := service.UpdateDocumentInput{
		Caller:      caller,
		DocumentID:  chi.URLParam(r, "id"),
		Title:       req.Title,
		Description: req.Description,
		SourceURL:   req.SourceURL,
		Enabled:     req.Enabled,
	}
	if req.SourceType != nil {
		st := domain.SourceType(*req.SourceType)
		input.SourceType = &st
	}

	result, err := h.svc.UpdateDocument(r.Context(), input)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, UpdateDocumentResponse{
		Document:           documentToResponse(result.Document),
		RegenerationQueued: result.RegenerationQueued,
		RegenerationJobID:  result.RegenerationJobID,
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteDocument(r.Context(), caller, id); err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"id": id})
}
