package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/database"
	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
)

const brandColumns = `id, name, slug, logo, description, is_active, created_at, updated_at`

// BrandRepository implements brand persistence operations using PostgreSQL.
type BrandRepository struct {
	pool database.DBTX
}

// NewBrandRepository creates a new PostgreSQL-backed brand repository.
func NewBrandRepository(pool database.DBTX) *BrandRepository {
	return &BrandRepository{pool: pool}
}

// Create inserts a new brand into the database.
func (r *BrandRepository) Create(ctx context.Context, b *domain.Brand) error {
	query := `
		INSERT INTO brands (id, name, slug, logo, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		b.ID, b.Name, b.Slug, b.Logo, b.Description, b.IsActive, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("brand", "slug", b.Slug)
		}
		return fmt.Errorf("insert brand: %w", err)
	}
	return nil
}

// GetBySlug retrieves a brand by slug.
func (r *BrandRepository) GetBySlug(ctx context.Context, slug string) (*domain.Brand, error) {
	query := fmt.Sprintf(`SELECT %s FROM brands WHERE slug = $1`, brandColumns)

	b, err := scanBrand(r.pool.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan brand: %w", err)
	}
	return b, nil
}

// List returns brands ordered by name.
func (r *BrandRepository) List(ctx context.Context, activeOnly bool) ([]domain.Brand, error) {
	query := fmt.Sprintf(`SELECT %s FROM brands`, brandColumns)
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()

	brands := []domain.Brand{}
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan brand row: %w", err)
		}
		brands = append(brands, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate brand rows: %w", err)
	}
	return brands, nil
}

// Update rewrites the brand stored under slug.
func (r *BrandRepository) Update(ctx context.Context, slug string, b *domain.Brand) error {
	b.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE brands
		SET name = $1, slug = $2, logo = $3, description = $4, is_active = $5, updated_at = $6
		WHERE slug = $7
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		b.Name, b.Slug, b.Logo, b.Description, b.IsActive, b.UpdatedAt, slug,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("brand", slug)
		}
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("brand", "slug", b.Slug)
		}
		return fmt.Errorf("update brand: %w", err)
	}
	return nil
}

// Delete removes a brand; its products keep existing without one.
func (r *BrandRepository) Delete(ctx context.Context, slug string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM brands WHERE slug = $1`, slug)
	if err != nil {
		return fmt.Errorf("delete brand: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("brand", slug)
	}
	return nil
}

func scanBrand(row rowScanner) (*domain.Brand, error) {
	var b domain.Brand
	if err := row.Scan(
		&b.ID, &b.Name, &b.Slug, &b.Logo, &b.Description, &b.IsActive, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}
