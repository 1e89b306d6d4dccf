package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// DBPool is the subset of *pgxpool.Pool used here.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository interface {
	Get(ctx context.Context) (Settings, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get returns the singleton settings row, falling back to Defaults when the
// table is still empty.
func (r *PostgresRepository) Get(ctx context.Context) (Settings, error) {
	var s Settings
	err := r.pool.QueryRow(ctx, `
		SELECT points_ratio, redemption_ratio, tax_percentage, punch_target, punch_min_purchase, punch_reward_name
		FROM loyalty_settings
		ORDER BY id
		LIMIT 1
	`).Scan(&s.PointsRatio, &s.RedemptionRatio, &s.TaxPercentage, &s.PunchTarget, &s.PunchMinPurchase, &s.PunchRewardName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Defaults(), nil
		}
		return Settings{}, fmt.Errorf("select loyalty settings: %w", err)
	}
	return s, nil
}
