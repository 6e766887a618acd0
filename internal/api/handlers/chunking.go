package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/agentkb/internal/api"
	"github.com/cloo-solutions/agentkb/internal/service"
)

type ChunkingService interface {
	CreateChunk(ctx context.Context, input service.CreateChunkInput) (*service.AppendResult, error)
	BulkCreateChunks(ctx context.Context, input service.BulkCreateChunksInput) (*service.AppendResult, error)
	SmartChunkDocument(ctx context.Context, input service.SmartSplitInput) (*service.AppendResult, error)
	SmartImportKnowledgeBlocks(ctx context.Context, input service.SmartSplitInput) (*service.AppendResult, error)
}

type ChunkingHandler struct {
	svc ChunkingService
}

func NewChunkingHandler(svc ChunkingService) *ChunkingHandler {
	return &ChunkingHandler{svc: svc}
}

type CreateChunkRequest struct {
	Title     string `json:"title"`
	TitlePath string `json:"title_path"`
	Content   string `json:"content"`
}

// BulkChunksRequest carries the text to split. Split fields left out of the
// request keep their defaults.
type BulkChunksRequest struct {
	Text  string              `json:"text"`
	Split service.SplitConfig `json:"split"`
}

// SmartSplitRequest carries optional inline text; without it the document's
// source is loaded.
type SmartSplitRequest struct {
	Text string `json:"text"`
}

func (h *ChunkingHandler) CreateChunk(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req CreateChunkRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	result, err := h.svc.CreateChunk(r.Context(), service.CreateChunkInput{
		Caller:     caller,
		DocumentID: chi.URLParam(r, "id"),
		Title:      req.Title,
		TitlePath:  req.TitlePath,
		Content:    req.Content,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusCreated, result)
}

func (h *ChunkingHandler) BulkCreateChunks(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	req := BulkChunksRequest{Split: service.DefaultSplitConfig()}
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.Text == "" {
		api.Error(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := h.svc.BulkCreateChunks(r.Context(), service.BulkCreateChunksInput{
		Caller:     caller,
		DocumentID: chi.URLParam(r, "id"),
		Text:       req.Text,
		Split:      req.Split,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusCreated, result)
}

func (h *ChunkingHandler) SmartChunk(w http.ResponseWriter, r *http.Request) {
	h.smartSplit(w, r, h.svc.SmartChunkDocument)
}

func (h *ChunkingHandler) ImportBlocks(w http.ResponseWriter, r *http.Request) {
	h.smartSplit(w, r, h.svc.SmartImportKnowledgeBlocks)
}

func (h *ChunkingHandler) smartSplit(
	w http.ResponseWriter,
	r *http.Request,
	split func(context.Context, service.SmartSplitInput) (*service.AppendResult, error),
) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req SmartSplitRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	result, err := split(r.Context(), service.SmartSplitInput{
		Caller:     caller,
		DocumentID: chi.URLParam(r, "id"),
		Text:       req.Text,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusCreated, result)
}
