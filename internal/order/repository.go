package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound   = errors.New("order not found")
	ErrNotPending = errors.New("order is not pending")
	ErrConflict   = errors.New("order changed concurrently")
)

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository interface {
	Insert(ctx context.Context, o *Order) error
	UpdatePending(ctx context.Context, o *Order) error
	Release(ctx context.Context, orderID string) error
	InsertItem(ctx context.Context, it *Item) error
	DeleteItems(ctx context.Context, orderID string) error
	DeletePending(ctx context.Context, orderID string) error

	Get(ctx context.Context, orderID string) (Order, error)
	Items(ctx context.Context, orderID string) ([]Item, error)
	ListPending(ctx context.Context) ([]Order, error)

	AdvanceKitchen(ctx context.Context, orderID string, from, to KitchenState) error
	ListBoard(ctx context.Context, completedSince time.Time) ([]Order, error)

	RecentItems(ctx context.Context, limit int) ([]Item, error)
}

type PostgresRepository struct {
	pool DBPool
	now  func() time.Time
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool, now: time.Now}
}

const orderColumns = `id, total_amount, payment_state, COALESCE(kitchen_state, ''), payment_method, order_type,
	COALESCE(customer_id, ''), tendered_amount, change_amount, tax_amount, tax_rate, discount_amount,
	points_redeemed, COALESCE(table_number, ''), order_date`

// Insert writes a new order as pending and unreleased. The caller releases it
// once its items are stored.
func (r *PostgresRepository) Insert(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.OrderDate.IsZero() {
		o.OrderDate = r.now().UTC()
	}
	o.PaymentState = PaymentPending
	o.KitchenState = KitchenUnreleased

	_, err := r.pool.Exec(ctx, `
		INSERT INTO orders (id, total_amount, payment_state, kitchen_state, payment_method, order_type, customer_id,
			tendered_amount, change_amount, tax_amount, tax_rate, discount_amount, points_redeemed, table_number, order_date)
		VALUES ($1, $2, $3, NULL, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12, NULLIF($13, ''), $14)
	`, o.ID, o.TotalAmount, string(o.PaymentState), string(o.PaymentMethod), string(o.OrderType), o.CustomerID,
		o.TenderedAmount, o.ChangeAmount, o.TaxAmount, o.TaxRate, o.DiscountAmount, o.PointsRedeemed, o.TableNumber, o.OrderDate)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// UpdatePending rewrites a parked order in place. Orders that already left the
// pending state are never touched.
func (r *PostgresRepository) UpdatePending(ctx context.Context, o *Order) error {
	if o.OrderDate.IsZero() {
		o.OrderDate = r.now().UTC()
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET total_amount=$2, payment_method=$3, order_type=$4, customer_id=NULLIF($5, ''),
			tendered_amount=$6, change_amount=$7, tax_amount=$8, tax_rate=$9, discount_amount=$10,
			points_redeemed=$11, table_number=NULLIF($12, ''), order_date=$13
		WHERE id=$1 AND payment_state='pending'
	`, o.ID, o.TotalAmount, string(o.PaymentMethod), string(o.OrderType), o.CustomerID,
		o.TenderedAmount, o.ChangeAmount, o.TaxAmount, o.TaxRate, o.DiscountAmount, o.PointsRedeemed, o.TableNumber, o.OrderDate)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	o.PaymentState = PaymentPending
	o.KitchenState = KitchenUnreleased
	return nil
}

// Release marks a pending order paid and hands it to the kitchen.
func (r *PostgresRepository) Release(ctx context.Context, orderID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET payment_state='completed', kitchen_state='new', kitchen_updated_at=$2
		WHERE id=$1 AND payment_state='pending'
	`, orderID, r.now().UTC())
	if err != nil {
		return fmt.Errorf("release order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

func (r *PostgresRepository) InsertItem(ctx context.Context, it *Item) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = r.now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO order_items (id, order_id, product_id, quantity, price_at_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, it.ID, it.OrderID, it.ProductID, it.Quantity, it.PriceAtTime, it.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order_item: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteItems(ctx context.Context, orderID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, orderID); err != nil {
		return fmt.Errorf("delete order_items: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeletePending(ctx context.Context, orderID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id=$1 AND payment_state='pending'`, orderID)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, orderID string) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("select order: %w", err)
	}

	o.Items, err = r.Items(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *PostgresRepository) Items(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price_at_time, created_at
		FROM order_items
		WHERE order_id=$1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order_items: %w", err)
	}
	return collectItems(rows)
}

func (r *PostgresRepository) ListPending(ctx context.Context) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE payment_state='pending'
		ORDER BY order_date DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("select pending orders: %w", err)
	}
	return collectOrders(rows)
}

// AdvanceKitchen is a compare-and-swap on kitchen_state.
func (r *PostgresRepository) AdvanceKitchen(ctx context.Context, orderID string, from, to KitchenState) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET kitchen_state=$3, kitchen_updated_at=$4
		WHERE id=$1 AND kitchen_state=$2
	`, orderID, string(from), string(to), r.now().UTC())
	if err != nil {
		return fmt.Errorf("advance kitchen state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// ListBoard returns released orders that are still in progress, plus orders
// completed at or after completedSince, newest first, with their items.
func (r *PostgresRepository) ListBoard(ctx context.Context, completedSince time.Time) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE kitchen_state IS NOT NULL
		  AND (kitchen_state <> 'completed' OR kitchen_updated_at >= $1)
		ORDER BY order_date DESC, id
	`, completedSince.UTC())
	if err != nil {
		return nil, fmt.Errorf("select board orders: %w", err)
	}
	orders, err := collectOrders(rows)
	if err != nil || len(orders) == 0 {
		return orders, err
	}

	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	itemRows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price_at_time, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at, id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("select board items: %w", err)
	}
	items, err := collectItems(itemRows)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return orders, nil
}

// RecentItems returns the newest line items across all orders.
func (r *PostgresRepository) RecentItems(ctx context.Context, limit int) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price_at_time, created_at
		FROM order_items
		ORDER BY created_at DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent items: %w", err)
	}
	return collectItems(rows)
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                                   Order
		payment, kitchen, method, orderType string
	)
	err := row.Scan(&o.ID, &o.TotalAmount, &payment, &kitchen, &method, &orderType,
		&o.CustomerID, &o.TenderedAmount, &o.ChangeAmount, &o.TaxAmount, &o.TaxRate, &o.DiscountAmount,
		&o.PointsRedeemed, &o.TableNumber, &o.OrderDate)
	if err != nil {
		return Order{}, err
	}
	o.PaymentState = PaymentState(payment)
	o.KitchenState = KitchenState(kitchen)
	o.PaymentMethod = PaymentMethod(method)
	o.OrderType = OrderType(orderType)
	return o, nil
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return orders, nil
}

func collectItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.PriceAtTime, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order_item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return items, nil
}
