package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
)

// CatalogServiceInterface defines the reward catalog operations.
type CatalogServiceInterface interface {
	Create(ctx context.Context, req model.CreateRewardRequest) (*model.Reward, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Reward, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	ListAvailable(ctx context.Context, accountID uuid.UUID) ([]model.Reward, error)
}

// RewardHandler handles HTTP requests for the reward catalog.
type RewardHandler struct {
	service   CatalogServiceInterface
	validator *validator.Validate
}

// NewRewardHandler creates a new RewardHandler.
func NewRewardHandler(svc CatalogServiceInterface, v *validator.Validate) *RewardHandler {
	return &RewardHandler{service: svc, validator: v}
}

// Create handles POST /api/rewards.
func (h *RewardHandler) Create(c *fiber.Ctx) error {
	var req model.CreateRewardRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	reward, err := h.service.Create(c.Context(), req)
	if err != nil {
		return writeError(c, err, "failed to create reward")
	}

	log.Info().
		Str("reward_id", reward.ID.String()).
		Str("name", reward.Name).
		Int64("points_cost", reward.PointsCost).
		Msg("reward created")

	return c.Status(fiber.StatusCreated).JSON(reward)
}

// Get handles GET /api/rewards/:id.
func (h *RewardHandler) Get(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	reward, err := h.service.Get(c.Context(), id)
	if err != nil {
		return writeError(c, err, "failed to get reward")
	}
	return c.JSON(reward)
}

// Deactivate handles POST /api/rewards/:id/deactivate.
func (h *RewardHandler) Deactivate(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	if err := h.service.Deactivate(c.Context(), id); err != nil {
		return writeError(c, err, "failed to deactivate reward")
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}

// ListAvailable handles GET /api/accounts/:id/rewards.
func (h *RewardHandler) ListAvailable(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	rewards, err := h.service.ListAvailable(c.Context(), id)
	if err != nil {
		return writeError(c, err, "failed to list available rewards")
	}
	return c.JSON(rewards)
}
