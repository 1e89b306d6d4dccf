package punchcard

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("punch card not found")

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Repository interface {
	Get(ctx context.Context, customerID string) (Card, error)
	Apply(ctx context.Context, customerID string, fn func(Card) Card) (Card, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Get(ctx context.Context, customerID string) (Card, error) {
	c := Card{CustomerID: customerID}
	err := r.pool.QueryRow(ctx, `
		SELECT current_punches, total_completed
		FROM customer_punch_cards
		WHERE customer_id=$1
	`, customerID).Scan(&c.CurrentPunches, &c.TotalCompleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Card{}, ErrNotFound
		}
		return Card{}, fmt.Errorf("select punch card: %w", err)
	}
	return c, nil
}

// Apply creates the card on first use, then runs fn against the locked row
// and stores the result in the same transaction.
func (r *PostgresRepository) Apply(ctx context.Context, customerID string, fn func(Card) Card) (Card, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Card{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO customer_punch_cards (customer_id, current_punches, total_completed)
		VALUES ($1, 0, 0)
		ON CONFLICT (customer_id) DO NOTHING
	`, customerID); err != nil {
		return Card{}, fmt.Errorf("ensure punch card: %w", err)
	}

	current := Card{CustomerID: customerID}
	if err := tx.QueryRow(ctx, `
		SELECT current_punches, total_completed
		FROM customer_punch_cards
		WHERE customer_id=$1
		FOR UPDATE
	`, customerID).Scan(&current.CurrentPunches, &current.TotalCompleted); err != nil {
		return Card{}, fmt.Errorf("lock punch card: %w", err)
	}

	next := fn(current)
	if _, err := tx.Exec(ctx, `
		UPDATE customer_punch_cards
		SET current_punches=$2, total_completed=$3, updated_at=now()
		WHERE customer_id=$1
	`, customerID, next.CurrentPunches, next.TotalCompleted); err != nil {
		return Card{}, fmt.Errorf("update punch card: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Card{}, fmt.Errorf("commit: %w", err)
	}
	next.CustomerID = customerID
	return next, nil
}
