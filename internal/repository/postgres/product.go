package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/repository"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/database"
	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/pagination"
)

const productColumns = `p.id, p.name, p.slug, p.description, p.price, p.currency, p.stock,
	p.unlimited_stock, p.is_active, p.is_featured, p.on_sale, p.discount_percent, p.weight,
	p.has_variations, p.category_slug, p.brand_slug, p.images, p.shipping_from,
	p.created_at, p.updated_at`

// effectivePrice mirrors domain.ApplyDiscount so filters and sorting use the
// price the shopper sees.
const effectivePrice = `(CASE WHEN p.on_sale AND p.discount_percent BETWEEN 1 AND 100
	THEN (p.price * (100 - p.discount_percent) + 50) / 100 ELSE p.price END)`

var productSorts = map[string]string{
	repository.SortNewest:    "p.created_at DESC, p.id",
	repository.SortPriceAsc:  effectivePrice + " ASC, p.id",
	repository.SortPriceDesc: effectivePrice + " DESC, p.id",
	repository.SortName:      "p.name ASC, p.id",
}

// Constraint names from the catalog migration, used to tell violations apart.
const (
	constraintVariationSKU   = "product_variations_sku_key"
	constraintProductCat     = "products_category_slug_fkey"
	constraintProductBrand   = "products_brand_slug_fkey"
	constraintProductTeaCats = "product_tea_categories_tea_category_slug_fkey"
)

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create inserts a product and its children in a single transaction.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateProduct", "INSERT INTO products")
	defer func() { end(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO products (id, name, slug, description, price, currency, stock, unlimited_stock,
			is_active, is_featured, on_sale, discount_percent, weight, has_variations,
			category_slug, brand_slug, images, shipping_from, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err = tx.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Slug,
		p.Description,
		p.Price,
		p.Currency,
		p.Stock,
		p.UnlimitedStock,
		p.IsActive,
		p.IsFeatured,
		p.OnSale,
		p.DiscountPercent,
		p.Weight,
		p.HasVariations,
		p.CategorySlug,
		p.BrandSlug,
		nonNil(p.Images),
		p.ShippingFrom,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return productWriteError(err, p)
	}

	if err := insertTeaCategories(ctx, tx, p); err != nil {
		return err
	}
	for i := range p.Variations {
		if err := insertVariation(ctx, tx, &p.Variations[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products p WHERE p.id = $1`, productColumns)
	return r.getOne(ctx, query, id)
}

// GetBySlug retrieves a product by its slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products p WHERE p.slug = $1`, productColumns)
	return r.getOne(ctx, query, slug)
}

// GetByIDs loads every product among ids. Missing IDs are simply absent
// from the result.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	out := make(map[string]*domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM products p WHERE p.id = ANY($1)`, productColumns)
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("query products by ids: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	if err := r.loadRelations(ctx, products); err != nil {
		return nil, err
	}
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

// List returns products matching the given filter with the total count.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) (products []domain.Product, totalCount int, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.ActiveOnly {
		conditions = append(conditions, "p.is_active = TRUE")
	}

	if filter.CategorySlug != nil {
		conditions = append(conditions, fmt.Sprintf("p.category_slug = $%d", argIndex))
		args = append(args, *filter.CategorySlug)
		argIndex++
	}

	if filter.BrandSlug != nil {
		conditions = append(conditions, fmt.Sprintf("p.brand_slug = $%d", argIndex))
		args = append(args, *filter.BrandSlug)
		argIndex++
	}

	if filter.TeaCategorySlug != nil {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM product_tea_categories ptc WHERE ptc.product_id = p.id AND ptc.tea_category_slug = $%d)", argIndex))
		args = append(args, *filter.TeaCategorySlug)
		argIndex++
	}

	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("%s >= $%d", effectivePrice, argIndex))
		args = append(args, *filter.MinPrice)
		argIndex++
	}

	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("%s <= $%d", effectivePrice, argIndex))
		args = append(args, *filter.MaxPrice)
		argIndex++
	}

	if filter.OnSale != nil {
		conditions = append(conditions, fmt.Sprintf("p.on_sale = $%d", argIndex))
		args = append(args, *filter.OnSale)
		argIndex++
	}

	if filter.Featured != nil {
		conditions = append(conditions, fmt.Sprintf("p.is_featured = $%d", argIndex))
		args = append(args, *filter.Featured)
		argIndex++
	}

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(p.name ILIKE $%d OR p.description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+*filter.Search+"%")
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy, ok := productSorts[filter.Sort]
	if !ok {
		orderBy = productSorts[repository.SortNewest]
	}

	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM products p
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, orderBy, argIndex, argIndex+1,
	)

	page := pagination.Params{Page: filter.Page, PerPage: filter.PerPage}
	args = append(args, page.Limit(), page.Offset())

	ctx, end := database.TraceQuery(ctx, "ListProducts", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	if products == nil {
		return []domain.Product{}, totalCount, nil
	}

	if err := r.loadRelations(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, totalCount, nil
}

// Update rewrites a product and reconciles its variations in one transaction.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateProduct", "UPDATE products")
	defer func() { end(err) }()

	p.UpdatedAt = time.Now().UTC()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		UPDATE products
		SET name = $1, slug = $2, description = $3, price = $4, currency = $5, stock = $6,
		    unlimited_stock = $7, is_active = $8, is_featured = $9, on_sale = $10,
		    discount_percent = $11, weight = $12, has_variations = $13, category_slug = $14,
		    brand_slug = $15, images = $16, shipping_from = $17, updated_at = $18
		WHERE id = $19`

	ct, err := tx.Exec(ctx, query,
		p.Name,
		p.Slug,
		p.Description,
		p.Price,
		p.Currency,
		p.Stock,
		p.UnlimitedStock,
		p.IsActive,
		p.IsFeatured,
		p.OnSale,
		p.DiscountPercent,
		p.Weight,
		p.HasVariations,
		p.CategorySlug,
		p.BrandSlug,
		nonNil(p.Images),
		p.ShippingFrom,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return productWriteError(err, p)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", p.ID)
	}

	keep := make([]string, 0, len(p.Variations))
	for _, v := range p.Variations {
		keep = append(keep, v.ID)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM product_variations WHERE product_id = $1 AND NOT (id = ANY($2))`,
		p.ID, keep,
	); err != nil {
		return fmt.Errorf("delete removed variations: %w", err)
	}

	for i := range p.Variations {
		if err := upsertVariation(ctx, tx, &p.Variations[i]); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM product_tea_categories WHERE product_id = $1`, p.ID); err != nil {
		return fmt.Errorf("clear tea categories: %w", err)
	}
	if err := insertTeaCategories(ctx, tx, p); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Delete removes a product from the database by its ID.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

func (r *ProductRepository) getOne(ctx context.Context, query string, arg string) (*domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", arg)
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}

	products := []domain.Product{*p}
	if err := r.loadRelations(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// loadRelations fills variations, attributes and tea categories for
// products with three queries regardless of how many products there are.
func (r *ProductRepository) loadRelations(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]string, len(products))
	index := make(map[string]*domain.Product, len(products))
	for i := range products {
		ids[i] = products[i].ID
		products[i].Variations = []domain.ProductVariation{}
		products[i].TeaCategories = []string{}
		index[products[i].ID] = &products[i]
	}

	variations, err := r.loadVariations(ctx, ids)
	if err != nil {
		return err
	}
	for _, v := range variations {
		if p, ok := index[v.ProductID]; ok {
			p.Variations = append(p.Variations, v)
		}
	}

	rows, err := r.pool.Query(ctx,
		`SELECT product_id, tea_category_slug FROM product_tea_categories
		 WHERE product_id = ANY($1) ORDER BY tea_category_slug`, ids)
	if err != nil {
		return fmt.Errorf("query tea categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID, teaSlug string
		if err := rows.Scan(&productID, &teaSlug); err != nil {
			return fmt.Errorf("scan tea category row: %w", err)
		}
		if p, ok := index[productID]; ok {
			p.TeaCategories = append(p.TeaCategories, teaSlug)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate tea category rows: %w", err)
	}
	return nil
}

func (r *ProductRepository) loadVariations(ctx context.Context, productIDs []string) ([]domain.ProductVariation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, sku, price, stock, sort_order, discount_percent, created_at, updated_at
		FROM product_variations
		WHERE product_id = ANY($1)
		ORDER BY product_id, sort_order, created_at`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("query variations: %w", err)
	}
	defer rows.Close()

	var variations []domain.ProductVariation
	byID := make(map[string]int)
	for rows.Next() {
		var v domain.ProductVariation
		if err := rows.Scan(
			&v.ID,
			&v.ProductID,
			&v.SKU,
			&v.Price,
			&v.Stock,
			&v.SortOrder,
			&v.DiscountPercent,
			&v.CreatedAt,
			&v.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan variation row: %w", err)
		}
		v.Attributes = []domain.VariationAttribute{}
		byID[v.ID] = len(variations)
		variations = append(variations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variation rows: %w", err)
	}
	if len(variations) == 0 {
		return nil, nil
	}

	attrRows, err := r.pool.Query(ctx, `
		SELECT a.id, a.variation_id, a.attribute_key, a.value
		FROM variation_attributes a
		JOIN product_variations v ON v.id = a.variation_id
		WHERE v.product_id = ANY($1)
		ORDER BY a.attribute_key`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("query variation attributes: %w", err)
	}
	defer attrRows.Close()

	for attrRows.Next() {
		var a domain.VariationAttribute
		if err := attrRows.Scan(&a.ID, &a.VariationID, &a.Key, &a.Value); err != nil {
			return nil, fmt.Errorf("scan attribute row: %w", err)
		}
		if i, ok := byID[a.VariationID]; ok {
			variations[i].Attributes = append(variations[i].Attributes, a)
		}
	}
	if err := attrRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attribute rows: %w", err)
	}
	return variations, nil
}

// scanProduct scans productColumns, plus any extra destinations (e.g. a
// window count) appended after them.
func scanProduct(row rowScanner, extra ...any) (*domain.Product, error) {
	var p domain.Product
	dest := []any{
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.Price,
		&p.Currency,
		&p.Stock,
		&p.UnlimitedStock,
		&p.IsActive,
		&p.IsFeatured,
		&p.OnSale,
		&p.DiscountPercent,
		&p.Weight,
		&p.HasVariations,
		&p.CategorySlug,
		&p.BrandSlug,
		&p.Images,
		&p.ShippingFrom,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return &p, nil
}

func insertTeaCategories(ctx context.Context, tx pgx.Tx, p *domain.Product) error {
	if len(p.TeaCategories) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO product_tea_categories (product_id, tea_category_slug)
		 SELECT $1, unnest($2::text[])`,
		p.ID, p.TeaCategories,
	)
	if err != nil {
		return productWriteError(err, p)
	}
	return nil
}

func insertVariation(ctx context.Context, tx pgx.Tx, v *domain.ProductVariation) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO product_variations (id, product_id, sku, price, stock, sort_order, discount_percent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		v.ID, v.ProductID, v.SKU, v.Price, v.Stock, v.SortOrder, v.DiscountPercent, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return variationWriteError(err, v)
	}
	return insertAttributes(ctx, tx, v)
}

// upsertVariation inserts v or updates it in place. An existing row that
// belongs to another product is left untouched and reported as invalid input.
func upsertVariation(ctx context.Context, tx pgx.Tx, v *domain.ProductVariation) error {
	ct, err := tx.Exec(ctx, `
		INSERT INTO product_variations (id, product_id, sku, price, stock, sort_order, discount_percent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET sku = EXCLUDED.sku, price = EXCLUDED.price, stock = EXCLUDED.stock,
		    sort_order = EXCLUDED.sort_order, discount_percent = EXCLUDED.discount_percent,
		    updated_at = EXCLUDED.updated_at
		WHERE product_variations.product_id = EXCLUDED.product_id`,
		v.ID, v.ProductID, v.SKU, v.Price, v.Stock, v.SortOrder, v.DiscountPercent, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return variationWriteError(err, v)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.InvalidInput(fmt.Sprintf("variation %s belongs to another product", v.ID))
	}

	if _, err := tx.Exec(ctx, `DELETE FROM variation_attributes WHERE variation_id = $1`, v.ID); err != nil {
		return fmt.Errorf("clear variation attributes: %w", err)
	}
	return insertAttributes(ctx, tx, v)
}

func insertAttributes(ctx context.Context, tx pgx.Tx, v *domain.ProductVariation) error {
	for i := range v.Attributes {
		a := &v.Attributes[i]
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.VariationID = v.ID
		if _, err := tx.Exec(ctx,
			`INSERT INTO variation_attributes (id, variation_id, attribute_key, value) VALUES ($1, $2, $3, $4)`,
			a.ID, a.VariationID, a.Key, a.Value,
		); err != nil {
			return fmt.Errorf("insert variation attribute: %w", err)
		}
	}
	return nil
}

func productWriteError(err error, p *domain.Product) error {
	if isUniqueViolation(err) {
		return apperrors.AlreadyExists("product", "slug", p.Slug)
	}
	if name, ok := pgViolation(err, sqlStateForeignKeyViolation); ok {
		switch name {
		case constraintProductCat:
			return apperrors.InvalidInput(fmt.Sprintf("category %q does not exist", deref(p.CategorySlug)))
		case constraintProductBrand:
			return apperrors.InvalidInput(fmt.Sprintf("brand %q does not exist", deref(p.BrandSlug)))
		case constraintProductTeaCats:
			return apperrors.InvalidInput("unknown tea category in " + strings.Join(p.TeaCategories, ", "))
		}
		return apperrors.InvalidInput("product references a missing category, brand or tea category")
	}
	return fmt.Errorf("write product: %w", err)
}

func variationWriteError(err error, v *domain.ProductVariation) error {
	if name, ok := pgViolation(err, sqlStateUniqueViolation); ok && (name == constraintVariationSKU || name == "") {
		return apperrors.AlreadyExists("variation", "sku", v.SKU)
	}
	return fmt.Errorf("write variation: %w", err)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
