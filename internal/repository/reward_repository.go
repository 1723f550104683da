package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
	"github.com/fairyhunter13/loyalty-ledger/internal/service"
	"github.com/fairyhunter13/loyalty-ledger/internal/tier"
	"github.com/fairyhunter13/loyalty-ledger/pkg/database"
)

const rewardColumns = `id, name, description, points_cost, is_active, minimum_tier, created_at`

// RewardRepository provides data access for the reward catalog.
type RewardRepository struct {
	pool PoolInterface
}

// NewRewardRepository creates a new RewardRepository.
func NewRewardRepository(pool PoolInterface) *RewardRepository {
	return &RewardRepository{pool: pool}
}

// Insert adds a reward to the catalog.
func (r *RewardRepository) Insert(ctx context.Context, reward *model.Reward) error {
	var minimum *string
	if reward.MinimumTier != nil {
		s := reward.MinimumTier.String()
		minimum = &s
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO rewards (id, name, description, points_cost, is_active, minimum_tier, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		reward.ID, reward.Name, reward.Description, reward.PointsCost, reward.IsActive, minimum, reward.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reward: %w", err)
	}
	return nil
}

// GetByID retrieves a reward. Returns nil, nil if the reward is not found.
func (r *RewardRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Reward, error) {
	reward, err := scanReward(r.pool.QueryRow(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reward %s: %w", id, err)
	}
	return reward, nil
}

// GetSnapshot reads a reward inside a transaction. Catalog rows are read-only to
// the workflow, so no lock is taken.
// Returns service.ErrRewardNotFound if the reward doesn't exist.
func (r *RewardRepository) GetSnapshot(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.Reward, error) {
	reward, err := scanReward(tx.QueryRow(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrRewardNotFound
		}
		return nil, fmt.Errorf("get reward snapshot %s: %w", id, err)
	}
	return reward, nil
}

// ListActive returns every active reward, cheapest first.
func (r *RewardRepository) ListActive(ctx context.Context) ([]model.Reward, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+rewardColumns+` FROM rewards WHERE is_active ORDER BY points_cost, name`)
	if err != nil {
		return nil, fmt.Errorf("list active rewards: %w", err)
	}
	rewards, err := collect(rows, scanReward)
	if err != nil {
		return nil, fmt.Errorf("scan reward: %w", err)
	}
	return rewards, nil
}

// Deactivate retires a reward. Returns service.ErrRewardNotFound if no row matched.
func (r *RewardRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE rewards SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate reward %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrRewardNotFound
	}
	return nil
}

func scanReward(row pgx.Row) (*model.Reward, error) {
	var (
		rw      model.Reward
		minimum *string
	)
	if err := row.Scan(&rw.ID, &rw.Name, &rw.Description, &rw.PointsCost, &rw.IsActive, &minimum, &rw.CreatedAt); err != nil {
		return nil, err
	}
	if minimum != nil {
		t := tier.Tier(*minimum)
		rw.MinimumTier = &t
	}
	return &rw, nil
}
