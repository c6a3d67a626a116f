package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alex-rublevsky/rublevsky-studio/internal/repository"
	"github.com/alex-rublevsky/rublevsky-studio/internal/service"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/httputil"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/pagination"
)

// BlogHandler handles HTTP requests for journal posts.
type BlogHandler struct {
	service *service.BlogService
	logger  *slog.Logger
}

// NewBlogHandler creates a new blog HTTP handler.
func NewBlogHandler(svc *service.BlogService, logger *slog.Logger) *BlogHandler {
	return &BlogHandler{service: svc, logger: logger}
}

// ListPublished handles GET /api/v1/blog.
func (h *BlogHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

// ListAll handles GET /api/v1/admin/blog.
func (h *BlogHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *BlogHandler) list(w http.ResponseWriter, r *http.Request, publishedOnly bool) {
	params := pagination.FromRequest(r)
	posts, total, err := h.service.ListPosts(r.Context(), repository.BlogFilter{
		PublishedOnly: publishedOnly,
		Page:          params.Page,
		PerPage:       params.PerPage,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(posts, total, params))
}

// GetPublished handles GET /api/v1/blog/{slug}.
func (h *BlogHandler) GetPublished(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.GetPost(r.Context(), chi.URLParam(r, "slug"), true)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, post)
}

// GetByID handles GET /api/v1/admin/blog/{id}.
func (h *BlogHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	post, err := h.service.GetPostByID(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, post)
}

// Create handles POST /api/v1/admin/blog.
func (h *BlogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.BlogPostInput
	if !decode(w, r, &req, h.logger) {
		return
	}
	post, err := h.service.CreatePost(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, post)
}

// Update handles PUT /api/v1/admin/blog/{id}.
func (h *BlogHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req service.BlogPostInput
	if !decode(w, r, &req, h.logger) {
		return
	}
	post, err := h.service.UpdatePost(r.Context(), id.String(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, post)
}

// Delete handles DELETE /api/v1/admin/blog/{id}.
func (h *BlogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := h.service.DeletePost(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
