package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/repository"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/database"
	apperrors "github.com/alex-rublevsky/rublevsky-studio/pkg/errors"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/pagination"
)

const orderColumns = `id, user_id, status, subtotal_amount, discount_amount, shipping_amount,
	total_amount, currency, notes, shipping_method, customer_email, customer_name, created_at, updated_at`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create takes stock for the order and inserts it with its items and
// addresses atomically.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateOrder", "INSERT INTO orders")
	defer func() { end(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := takeStock(ctx, tx, o.StockChanges()); err != nil {
		return err
	}

	orderQuery := `
		INSERT INTO orders (id, user_id, status, subtotal_amount, discount_amount, shipping_amount,
			total_amount, currency, notes, shipping_method, customer_email, customer_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = tx.Exec(ctx, orderQuery,
		o.ID,
		o.UserID,
		o.Status,
		o.SubtotalAmount,
		o.DiscountAmount,
		o.ShippingAmount,
		o.TotalAmount,
		o.Currency,
		o.Notes,
		o.ShippingMethod,
		o.CustomerEmail,
		o.CustomerName,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, variation_id, product_name, product_slug, sku,
			quantity, unit_amount, discount_percent, final_amount, attributes, stock_mode, weight_grams)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	for _, item := range o.Items {
		attrs, err := marshalAttributes(item.Attributes)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, itemQuery,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.VariationID,
			item.ProductName,
			item.ProductSlug,
			item.SKU,
			item.Quantity,
			item.UnitAmount,
			item.DiscountPercent,
			item.FinalAmount,
			attrs,
			item.StockMode,
			item.WeightGrams,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	addressQuery := `
		INSERT INTO addresses (id, order_id, address_type, first_name, last_name, email, phone,
			street, city, state, zip, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	for _, a := range o.Addresses {
		_, err = tx.Exec(ctx, addressQuery,
			a.ID, a.OrderID, a.AddressType, a.FirstName, a.LastName, a.Email, a.Phone,
			a.Street, a.City, a.State, a.Zip, a.Country,
		)
		if err != nil {
			return fmt.Errorf("insert address: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID retrieves an order with its items and addresses.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)

	o, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if o.Items, err = queryItems(ctx, r.pool, id); err != nil {
		return nil, err
	}
	if o.Addresses, err = r.loadAddresses(ctx, id); err != nil {
		return nil, err
	}
	return o, nil
}

// List returns orders matching the given filter with the total count.
// Items and addresses are not loaded.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.Email != nil {
		conditions = append(conditions, fmt.Sprintf("lower(customer_email) = lower($%d)", argIndex))
		args = append(args, *filter.Email)
		argIndex++
	}

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIndex))
		args = append(args, *filter.UserID)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM orders
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, argIndex, argIndex+1,
	)

	page := pagination.Params{Page: filter.Page, PerPage: filter.PerPage}
	args = append(args, page.Limit(), page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var (
		orders     = []domain.Order{}
		totalCount int
	)
	for rows.Next() {
		o, err := scanOrder(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, totalCount, nil
}

// UpdateStatus moves the order to status under a row lock. Cancelling
// returns the items' stock.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, status string) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current string
	if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NotFound("order", id)
		}
		return "", fmt.Errorf("lock order: %w", err)
	}

	if !domain.CanTransition(current, status) {
		return current, apperrors.Conflict("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("order cannot move from %s to %s", current, status))
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	); err != nil {
		return "", fmt.Errorf("update order status: %w", err)
	}

	if status == domain.OrderStatusCancelled {
		items, err := queryItems(ctx, tx, id)
		if err != nil {
			return "", err
		}
		o := domain.Order{Items: items}
		if err := returnStock(ctx, tx, o.StockChanges()); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return current, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryItems(ctx context.Context, q querier, orderID string) ([]domain.OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, variation_id, product_name, product_slug, sku,
			quantity, unit_amount, discount_percent, final_amount, attributes, stock_mode, weight_grams
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_name, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := []domain.OrderItem{}
	for rows.Next() {
		var (
			it    domain.OrderItem
			attrs []byte
		)
		if err := rows.Scan(
			&it.ID,
			&it.OrderID,
			&it.ProductID,
			&it.VariationID,
			&it.ProductName,
			&it.ProductSlug,
			&it.SKU,
			&it.Quantity,
			&it.UnitAmount,
			&it.DiscountPercent,
			&it.FinalAmount,
			&attrs,
			&it.StockMode,
			&it.WeightGrams,
		); err != nil {
			return nil, fmt.Errorf("scan order item row: %w", err)
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &it.Attributes); err != nil {
				return nil, fmt.Errorf("unmarshal item attributes: %w", err)
			}
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order item rows: %w", err)
	}
	return items, nil
}

func (r *OrderRepository) loadAddresses(ctx context.Context, orderID string) ([]domain.Address, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, address_type, first_name, last_name, email, phone, street, city, state, zip, country
		FROM addresses
		WHERE order_id = $1
		ORDER BY address_type`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query addresses: %w", err)
	}
	defer rows.Close()

	addrs := []domain.Address{}
	for rows.Next() {
		var a domain.Address
		if err := rows.Scan(
			&a.ID, &a.OrderID, &a.AddressType, &a.FirstName, &a.LastName, &a.Email,
			&a.Phone, &a.Street, &a.City, &a.State, &a.Zip, &a.Country,
		); err != nil {
			return nil, fmt.Errorf("scan address row: %w", err)
		}
		addrs = append(addrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate address rows: %w", err)
	}
	return addrs, nil
}

func scanOrder(row rowScanner, extra ...any) (*domain.Order, error) {
	var o domain.Order
	dest := []any{
		&o.ID,
		&o.UserID,
		&o.Status,
		&o.SubtotalAmount,
		&o.DiscountAmount,
		&o.ShippingAmount,
		&o.TotalAmount,
		&o.Currency,
		&o.Notes,
		&o.ShippingMethod,
		&o.CustomerEmail,
		&o.CustomerName,
		&o.CreatedAt,
		&o.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &o, nil
}

// mergeStockChanges sums changes that hit the same row and orders them by
// product then variation so concurrent checkouts lock rows in one order.
func mergeStockChanges(changes []domain.StockChange) []domain.StockChange {
	type key struct{ mode, product, variation string }
	sums := make(map[key]int, len(changes))
	var order []key
	for _, c := range changes {
		k := key{c.Mode, c.ProductID, c.VariationID}
		if _, ok := sums[k]; !ok {
			order = append(order, k)
		}
		sums[k] += c.Units
	}

	merged := make([]domain.StockChange, 0, len(order))
	for _, k := range order {
		merged = append(merged, domain.StockChange{ProductID: k.product, VariationID: k.variation, Mode: k.mode, Units: sums[k]})
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].ProductID != merged[j].ProductID {
			return merged[i].ProductID < merged[j].ProductID
		}
		return merged[i].VariationID < merged[j].VariationID
	})
	return merged
}

// takeStock locks the parent product rows, then decrements each counter
// only if enough is left. A conditional update that touches no row means
// another order got there first.
func takeStock(ctx context.Context, tx pgx.Tx, changes []domain.StockChange) error {
	changes = mergeStockChanges(changes)
	if len(changes) == 0 {
		return nil
	}

	var productIDs []string
	for _, c := range changes {
		if len(productIDs) == 0 || productIDs[len(productIDs)-1] != c.ProductID {
			productIDs = append(productIDs, c.ProductID)
		}
	}

	rows, err := tx.Query(ctx, `SELECT id FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, productIDs)
	if err != nil {
		return fmt.Errorf("lock products: %w", err)
	}
	locked := 0
	for rows.Next() {
		locked++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock products: %w", err)
	}
	if locked != len(productIDs) {
		return apperrors.Conflict("CART_CHANGED", "a product in the cart no longer exists")
	}

	for _, c := range changes {
		var (
			query string
			args  []any
		)
		switch c.Mode {
		case domain.StockModeProduct:
			query = `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1 AND stock >= $2`
			args = []any{c.ProductID, c.Units}
		case domain.StockModeVariation:
			query = `UPDATE product_variations SET stock = stock - $3, updated_at = now()
				WHERE id = $2 AND product_id = $1 AND stock >= $3`
			args = []any{c.ProductID, c.VariationID, c.Units}
		case domain.StockModeWeight:
			query = `UPDATE products SET weight = weight - $2, updated_at = now() WHERE id = $1 AND weight >= $2`
			args = []any{c.ProductID, c.Units}
		default:
			continue
		}

		ct, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return stockConflict(c)
		}
	}
	return nil
}

// returnStock reverses takeStock. Rows deleted since the order was placed
// are skipped.
func returnStock(ctx context.Context, tx pgx.Tx, changes []domain.StockChange) error {
	for _, c := range mergeStockChanges(changes) {
		var (
			query string
			args  []any
		)
		switch c.Mode {
		case domain.StockModeProduct:
			query = `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`
			args = []any{c.ProductID, c.Units}
		case domain.StockModeVariation:
			query = `UPDATE product_variations SET stock = stock + $2, updated_at = now() WHERE id = $1`
			args = []any{c.VariationID, c.Units}
		case domain.StockModeWeight:
			query = `UPDATE products SET weight = weight + $2, updated_at = now() WHERE id = $1`
			args = []any{c.ProductID, c.Units}
		default:
			continue
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("restore stock: %w", err)
		}
	}
	return nil
}

func stockConflict(c domain.StockChange) error {
	code, what := "INSUFFICIENT_STOCK", "units"
	if c.Mode == domain.StockModeWeight {
		code, what = "WEIGHT_EXCEEDED", "grams"
	}
	details := map[string]any{"product_id": c.ProductID, "requested": c.Units}
	if c.VariationID != "" {
		details["variation_id"] = c.VariationID
	}
	return apperrors.Conflict(code,
		fmt.Sprintf("not enough stock left for product %s (%d %s requested)", c.ProductID, c.Units, what),
	).WithDetails(details)
}

func marshalAttributes(attrs map[string]string) ([]byte, error) {
	if attrs == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("marshal item attributes: %w", err)
	}
	return b, nil
}
