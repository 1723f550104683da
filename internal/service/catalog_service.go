package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
	"github.com/fairyhunter13/loyalty-ledger/internal/tier"
)

// CatalogService manages rewards. Workflow operations only ever read the catalog.
type CatalogService struct {
	rewards  RewardRepositoryInterface
	accounts AccountRepositoryInterface
	recorder ActivityRecorder
	clock    Clock
}

// NewCatalogService creates a CatalogService. recorder and clock may be nil.
func NewCatalogService(repos Repositories, recorder ActivityRecorder, clock Clock) *CatalogService {
	recorder, clock = orDefaults(recorder, clock)
	return &CatalogService{
		rewards:  repos.Rewards,
		accounts: repos.Accounts,
		recorder: recorder,
		clock:    clock,
	}
}

// Create adds an active reward to the catalog.
func (s *CatalogService) Create(ctx context.Context, req model.CreateRewardRequest) (*model.Reward, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if req.PointsCost == nil || *req.PointsCost <= 0 {
		var cost int64
		if req.PointsCost != nil {
			cost = *req.PointsCost
		}
		return nil, &InvalidAmountError{Amount: cost}
	}

	var minimum *tier.Tier
	if req.MinimumTier != "" {
		t, err := tier.Parse(req.MinimumTier)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		minimum = &t
	}

	reward := &model.Reward{
		ID:          uuid.New(),
		Name:        name,
		Description: req.Description,
		PointsCost:  *req.PointsCost,
		IsActive:    true,
		MinimumTier: minimum,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.rewards.Insert(ctx, reward); err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}

	record(ctx, s.recorder, model.Activity{
		ActorID:     "system",
		ActorRole:   model.RoleSystem,
		TargetID:    reward.ID.String(),
		TargetRole:  model.RoleSystem,
		Description: fmt.Sprintf("Reward %q created at %d points", reward.Name, reward.PointsCost),
		OccurredAt:  reward.CreatedAt,
	})
	return reward, nil
}

// Get returns a reward by id, active or not.
func (s *CatalogService) Get(ctx context.Context, id uuid.UUID) (*model.Reward, error) {
	reward, err := s.rewards.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	if reward == nil {
		return nil, ErrRewardNotFound
	}
	return reward, nil
}

// Deactivate retires a reward. Existing vouchers and requests keep referencing it.
func (s *CatalogService) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.rewards.Deactivate(ctx, id); err != nil {
		if errors.Is(err, ErrRewardNotFound) {
			return ErrRewardNotFound
		}
		return fmt.Errorf("deactivate reward: %w", err)
	}

	record(ctx, s.recorder, model.Activity{
		ActorID:     "system",
		ActorRole:   model.RoleSystem,
		TargetID:    id.String(),
		TargetRole:  model.RoleSystem,
		Description: "Reward deactivated",
		OccurredAt:  s.clock.Now(),
	})
	return nil
}

// ListAvailable returns active rewards the account can redeem right now:
// its tier meets the minimum and its balance covers the cost.
func (s *CatalogService) ListAvailable(ctx context.Context, accountID uuid.UUID) ([]model.Reward, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	rewards, err := s.rewards.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}

	available := make([]model.Reward, 0, len(rewards))
	for i := range rewards {
		if rewards[i].AvailableTo(account.HighestPoints, account.Points) {
			available = append(available, rewards[i])
		}
	}
	return available, nil
}
