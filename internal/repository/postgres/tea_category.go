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

const teaCategoryColumns = `id, name, slug, description, is_active, created_at, updated_at`

// TeaCategoryRepository persists tea categories.
type TeaCategoryRepository struct {
	pool database.DBTX
}

func NewTeaCategoryRepository(pool database.DBTX) *TeaCategoryRepository {
	return &TeaCategoryRepository{pool: pool}
}

func (r *TeaCategoryRepository) Create(ctx context.Context, tc *domain.TeaCategory) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tea_categories (id, name, slug, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tc.ID, tc.Name, tc.Slug, tc.Description, tc.IsActive, tc.CreatedAt, tc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("tea category", "slug", tc.Slug)
		}
		return fmt.Errorf("insert tea category: %w", err)
	}
	return nil
}

func (r *TeaCategoryRepository) GetBySlug(ctx context.Context, slug string) (*domain.TeaCategory, error) {
	query := fmt.Sprintf(`SELECT %s FROM tea_categories WHERE slug = $1`, teaCategoryColumns)

	tc, err := scanTeaCategory(r.pool.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan tea category: %w", err)
	}
	return tc, nil
}

func (r *TeaCategoryRepository) List(ctx context.Context, activeOnly bool) ([]domain.TeaCategory, error) {
	query := fmt.Sprintf(`SELECT %s FROM tea_categories`, teaCategoryColumns)
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tea categories: %w", err)
	}
	defer rows.Close()

	out := []domain.TeaCategory{}
	for rows.Next() {
		tc, err := scanTeaCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tea category row: %w", err)
		}
		out = append(out, *tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tea category rows: %w", err)
	}
	return out, nil
}

func (r *TeaCategoryRepository) Update(ctx context.Context, slug string, tc *domain.TeaCategory) error {
	tc.UpdatedAt = time.Now().UTC()

	err := r.pool.QueryRow(ctx, `
		UPDATE tea_categories
		SET name = $1, slug = $2, description = $3, is_active = $4, updated_at = $5
		WHERE slug = $6
		RETURNING id, created_at`,
		tc.Name, tc.Slug, tc.Description, tc.IsActive, tc.UpdatedAt, slug,
	).Scan(&tc.ID, &tc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("tea category", slug)
		}
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("tea category", "slug", tc.Slug)
		}
		return fmt.Errorf("update tea category: %w", err)
	}
	return nil
}

// Delete removes a tea category and its product links.
func (r *TeaCategoryRepository) Delete(ctx context.Context, slug string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM tea_categories WHERE slug = $1`, slug)
	if err != nil {
		return fmt.Errorf("delete tea category: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("tea category", slug)
	}
	return nil
}

func scanTeaCategory(row rowScanner) (*domain.TeaCategory, error) {
	var tc domain.TeaCategory
	if err := row.Scan(&tc.ID, &tc.Name, &tc.Slug, &tc.Description, &tc.IsActive, &tc.CreatedAt, &tc.UpdatedAt); err != nil {
		return nil, err
	}
	return &tc, nil
}
