package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alex-rublevsky/rublevsky-studio/internal/service"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/httputil"
)

// CatalogHandler serves categories, brands and tea categories. The
// storefront handler hides inactive rows; the one returned by Admin does not.
type CatalogHandler struct {
	service    *service.CatalogService
	logger     *slog.Logger
	activeOnly bool
}

// NewCatalogHandler creates the storefront catalog handler.
func NewCatalogHandler(svc *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{service: svc, logger: logger, activeOnly: true}
}

// Admin returns a handler that also serves inactive rows.
func (h *CatalogHandler) Admin() *CatalogHandler {
	return &CatalogHandler{service: h.service, logger: h.logger}
}

// --- Categories ---

// ListCategories handles GET /categories and /admin/categories.
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.service.ListCategories(r.Context(), h.activeOnly)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cs)
}

// GetCategory handles GET /categories/{slug} and /admin/categories/{slug}.
func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCategory(r.Context(), chi.URLParam(r, "slug"), h.activeOnly)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, c)
}

// CreateCategory handles POST /admin/categories.
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req service.CategoryInput
	if !decode(w, r, &req, h.logger) {
		return
	}
	c, err := h.service.CreateCategory(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, c)
}

// UpdateCategory handles PUT /admin/categories/{slug}.
func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req service.CategoryInput
	if !decode(w, r, &req, h.logger) {
		return
	}
	c, err := h.service.UpdateCategory(r.Context(), chi.URLParam(r, "slug"), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, c)
}

// DeleteCategory handles DELETE /admin/categories/{slug}.
func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCategory(r.Context(), chi.URLParam(r, "slug")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Brands ---

// ListBrands handles GET /brands and /admin/brands.
func (h *CatalogHandler) ListBrands(w http.ResponseWriter, r *http.Request) {
	bs, err := h.service.ListBrands(r.Context(), h.activeOnly)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, bs)
}

// GetBrand handles GET /brands/{slug} and /admin/brands/{slug}.
func (h *CatalogHandler) GetBrand(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.GetBrand(r.Context(), chi.URLParam(r, "slug"), h.activeOnly)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, b)
}

// CreateBrand handles POST /admin/brands.
func (h *CatalogHandler) CreateBrand(w http.ResponseWriter, r *http.Request) {
	var req service.BrandInput
	if !decode(w, r, &req, h.logger) {
		return
	}
	b, err := h.service.CreateBrand(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, b)
}

// UpdateBrand handles PUT /admin/brands/{slug}.
func (h *CatalogHandler) UpdateBrand(w http.ResponseWriter, r *http.Request) {
	var req service.BrandInput
	if !decode(w, r, &req, h.logger) {
		return
	}
	b, err := h.service.UpdateBrand(r.Context(), chi.URLParam(r, "slug"), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, b)
}

// DeleteBrand handles DELETE /admin/brands/{slug}.
func (h *CatalogHandler) DeleteBrand(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteBrand(r.Context(), chi.URLParam(r, "slug")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Tea categories ---

// ListTeaCategories handles GET /tea-categories and /admin/tea-categories.
func (h *CatalogHandler) ListTeaCategories(w http.ResponseWriter, r *http.Request) {
	tcs, err := h.service.ListTeaCategories(r.Context(), h.activeOnly)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, tcs)
}

// GetTeaCategory handles GET /admin/tea-categories/{slug}.
func (h *CatalogHandler) GetTeaCategory(w http.ResponseWriter, r *http.Request) {
	tc, err := h.service.GetTeaCategory(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, tc)
}

// CreateTeaCategory handles POST /admin/tea-categories.
func (h *CatalogHandler) CreateTeaCategory(w http.ResponseWriter, r *http.Request) {
	var req service.TeaCategoryInput
	if !decode(w, r, &req, h.logger) {
		return
	}
	tc, err := h.service.CreateTeaCategory(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, tc)
}

// UpdateTeaCategory handles PUT /admin/tea-categories/{slug}.
func (h *CatalogHandler) UpdateTeaCategory(w http.ResponseWriter, r *http.Request) {
	var req service.TeaCategoryInput
	if !decode(w, r, &req, h.logger) {
		return
	}
	tc, err := h.service.UpdateTeaCategory(r.Context(), chi.URLParam(r, "slug"), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, tc)
}

// DeleteTeaCategory handles DELETE /admin/tea-categories/{slug}.
func (h *CatalogHandler) DeleteTeaCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTeaCategory(r.Context(), chi.URLParam(r, "slug")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
