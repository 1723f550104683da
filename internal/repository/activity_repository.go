package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
)

// ActivityRepository persists free-form audit facts.
type ActivityRepository struct {
	pool PoolInterface
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(pool PoolInterface) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// Insert stores one activity and returns its id.
func (r *ActivityRepository) Insert(ctx context.Context, a model.Activity) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO activity_logs (actor_id, actor_role, target_id, target_role, description, points_delta, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		a.ActorID, string(a.ActorRole), a.TargetID, string(a.TargetRole), a.Description, a.PointsDelta, a.OccurredAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert activity: %w", err)
	}
	return id, nil
}

// ListByTarget returns the newest activities concerning targetID.
func (r *ActivityRepository) ListByTarget(ctx context.Context, targetID string, limit int) ([]model.ActivityLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, actor_id, actor_role, target_id, target_role, description, points_delta, occurred_at
		 FROM activity_logs WHERE target_id = $1 ORDER BY occurred_at DESC, id DESC LIMIT $2`,
		targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities for %s: %w", targetID, err)
	}
	logs, err := collect(rows, scanActivity)
	if err != nil {
		return nil, fmt.Errorf("scan activity: %w", err)
	}
	return logs, nil
}

func scanActivity(row pgx.Row) (*model.ActivityLog, error) {
	var (
		l                     model.ActivityLog
		actorRole, targetRole string
	)
	err := row.Scan(&l.ID, &l.ActorID, &actorRole, &l.TargetID, &targetRole, &l.Description, &l.PointsDelta, &l.OccurredAt)
	if err != nil {
		return nil, err
	}
	l.ActorRole = model.ActorRole(actorRole)
	l.TargetRole = model.ActorRole(targetRole)
	return &l, nil
}
