package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/scoopcreamy/ninjapos/internal/cart"
)

var ErrNotFound = errors.New("product not found")

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Filter narrows the product grid. Category matches case-insensitively and
// an empty value or "all" means every category.
type Filter struct {
	Category string
	Search   string
}

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Repository interface {
	Get(ctx context.Context, productID string) (cart.Product, error)
	GetMany(ctx context.Context, productIDs []string) (map[string]cart.Product, error)
	List(ctx context.Context, f Filter) ([]cart.Product, error)
	Categories(ctx context.Context) ([]Category, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Get(ctx context.Context, productID string) (cart.Product, error) {
	var p cart.Product
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, category, price
		FROM products
		WHERE id=$1 AND deleted = false
	`, productID).Scan(&p.ID, &p.Name, &p.Category, &p.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.Product{}, ErrNotFound
		}
		return cart.Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

// GetMany includes soft-deleted products: historical orders still need their
// names after a product leaves the menu.
func (r *PostgresRepository) GetMany(ctx context.Context, productIDs []string) (map[string]cart.Product, error) {
	out := make(map[string]cart.Product, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, category, price
		FROM products
		WHERE id = ANY($1)
	`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p cart.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Price); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]cart.Product, error) {
	category := strings.ToLower(strings.TrimSpace(f.Category))
	if category == "all" {
		category = ""
	}
	search := strings.TrimSpace(f.Search)

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, category, price
		FROM products
		WHERE deleted = false
		  AND ($1 = '' OR lower(category) = $1)
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%')
		ORDER BY name
	`, category, search)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []cart.Product
	for rows.Next() {
		var p cart.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Price); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *PostgresRepository) Categories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	categories := []Category{{ID: "all", Name: "All Items"}}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
