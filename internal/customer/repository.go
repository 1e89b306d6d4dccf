package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound    = errors.New("customer not found")
	ErrPhoneTaken  = errors.New("phone already registered")
	ErrInvalidData = errors.New("name and phone are required")
)

const uniqueViolation = "23505"

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository interface {
	GetByID(ctx context.Context, id string) (Customer, error)
	GetByPhone(ctx context.Context, phone string) (Customer, error)
	Create(ctx context.Context, name, phone string) (Customer, error)
	ApplyVisit(ctx context.Context, id string, v Visit) (Customer, error)
}

type PostgresRepository struct {
	pool DBPool
	now  func() time.Time
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool, now: time.Now}
}

const selectColumns = `id, name, phone, loyalty_points, last_visit, total_visits, joined_at`

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Customer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM customers WHERE id=$1`, id)
	return scanCustomer(row)
}

func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (Customer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM customers WHERE phone=$1`, NormalizePhone(phone))
	return scanCustomer(row)
}

func (r *PostgresRepository) Create(ctx context.Context, name, phone string) (Customer, error) {
	name = strings.TrimSpace(name)
	phone = NormalizePhone(phone)
	if name == "" || phone == "" {
		return Customer{}, ErrInvalidData
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO customers (id, name, phone, loyalty_points, total_visits, joined_at)
		VALUES ($1, $2, $3, 0, 0, $4)
		RETURNING `+selectColumns,
		uuid.NewString(), name, phone, r.now().UTC(),
	)
	c, err := scanCustomer(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Customer{}, ErrPhoneTaken
		}
		return Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	return c, nil
}

// ApplyVisit settles one order against the stored balance in a single
// statement. Redemption is clamped to the balance at write time so the
// balance can never go negative, even if another terminal spent points
// since the checkout read it.
func (r *PostgresRepository) ApplyVisit(ctx context.Context, id string, v Visit) (Customer, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE customers
		SET loyalty_points = loyalty_points - LEAST(GREATEST($2, 0), loyalty_points) + GREATEST($3, 0),
		    total_visits = total_visits + 1,
		    last_visit = $4
		WHERE id=$1
		RETURNING `+selectColumns,
		id, v.Redeemed, v.Earned, v.At.UTC(),
	)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Customer{}, err
		}
		return Customer{}, fmt.Errorf("apply visit: %w", err)
	}
	return c, nil
}

// NormalizePhone strips spaces and dashes so lookups match however the
// number was typed.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.LoyaltyPoints, &c.LastVisit, &c.TotalVisits, &c.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, err
	}
	return c, nil
}
