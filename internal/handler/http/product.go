package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/repository"
	"github.com/alex-rublevsky/rublevsky-studio/internal/service"
	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/httputil"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/pagination"
)

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	service *service.ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		logger:  logger,
	}
}

// ListProducts handles GET /api/v1/products (active products only).
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

// AdminListProducts handles GET /api/v1/admin/products.
func (h *ProductHandler) AdminListProducts(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *ProductHandler) list(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	filter, err := productFilterFromRequest(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	filter.ActiveOnly = activeOnly
	params := pagination.Params{Page: filter.Page, PerPage: filter.PerPage}

	products, total, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(products, total, params))
}

// GetProduct handles GET /api/v1/products/{slug}.
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetStorefrontProduct(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// AdminGetProduct handles GET /api/v1/admin/products/{id}.
func (h *ProductHandler) AdminGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	product, err := h.service.GetProduct(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// CreateProduct handles POST /api/v1/admin/products.
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req service.ProductInput
	if !decode(w, r, &req, h.logger) {
		return
	}

	product, err := h.service.CreateProduct(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /api/v1/admin/products/{id}.
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req service.ProductInput
	if !decode(w, r, &req, h.logger) {
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), id.String(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/v1/admin/products/{id}.
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAttributes handles GET /api/v1/attributes.
func (h *ProductHandler) ListAttributes(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteData(w, http.StatusOK, domain.AttributeDefinitions())
}

func productFilterFromRequest(r *http.Request) (repository.ProductFilter, error) {
	params := pagination.FromRequest(r)
	f := repository.ProductFilter{
		CategorySlug:    queryString(r, "category"),
		BrandSlug:       queryString(r, "brand"),
		TeaCategorySlug: queryString(r, "tea_category"),
		MinPrice:        queryInt64(r, "min_price"),
		MaxPrice:        queryInt64(r, "max_price"),
		OnSale:          queryBool(r, "on_sale"),
		Featured:        queryBool(r, "featured"),
		Search:          queryString(r, "q"),
		Sort:            r.URL.Query().Get("sort"),
		Page:            params.Page,
		PerPage:         params.PerPage,
	}

	switch f.Sort {
	case "":
		f.Sort = repository.SortNewest
	case repository.SortNewest, repository.SortPriceAsc, repository.SortPriceDesc, repository.SortName:
	default:
		return f, apperrors.InvalidInput("sort must be one of: newest, price_asc, price_desc, name")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return f, apperrors.InvalidInput("min_price must not exceed max_price")
	}
	return f, nil
}
