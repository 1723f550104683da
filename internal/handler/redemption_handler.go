package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
)

// RedemptionServiceInterface defines the redemption workflow operations.
type RedemptionServiceInterface interface {
	RedeemNow(ctx context.Context, accountID, rewardID uuid.UUID) (*model.RedemptionResult, error)
	CreateRequest(ctx context.Context, accountID, rewardID uuid.UUID) (*model.RedemptionResult, error)
	Process(ctx context.Context, requestID uuid.UUID, action model.ProcessAction, staffID, notes string) (*model.RedemptionResult, error)
	UseVoucher(ctx context.Context, voucherID, accountID uuid.UUID) (*model.RedemptionResult, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*model.RedeemRequest, error)
	ListRequests(ctx context.Context, accountID uuid.UUID) ([]model.RedeemRequest, error)
	ListPendingRequests(ctx context.Context) ([]model.RedeemRequest, error)
	ListVouchers(ctx context.Context, accountID uuid.UUID) ([]model.Voucher, error)
}

// RedemptionHandler handles redemptions, redeem requests and vouchers.
type RedemptionHandler struct {
	service   RedemptionServiceInterface
	validator *validator.Validate
}

// NewRedemptionHandler creates a new RedemptionHandler.
func NewRedemptionHandler(svc RedemptionServiceInterface, v *validator.Validate) *RedemptionHandler {
	return &RedemptionHandler{service: svc, validator: v}
}

// bindRedeem parses and validates a RedeemRewardRequest body.
func (h *RedemptionHandler) bindRedeem(c *fiber.Ctx) (accountID, rewardID uuid.UUID, ok bool, err error) {
	var req model.RedeemRewardRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return uuid.Nil, uuid.Nil, false, err
	}
	if accountID, err = uuid.Parse(req.AccountID); err != nil {
		return uuid.Nil, uuid.Nil, false, invalidID(c, "account_id")
	}
	if rewardID, err = uuid.Parse(req.RewardID); err != nil {
		return uuid.Nil, uuid.Nil, false, invalidID(c, "reward_id")
	}
	return accountID, rewardID, true, nil
}

// RedeemNow handles POST /api/redemptions.
func (h *RedemptionHandler) RedeemNow(c *fiber.Ctx) error {
	accountID, rewardID, ok, err := h.bindRedeem(c)
	if !ok {
		return err
	}

	result, err := h.service.RedeemNow(c.Context(), accountID, rewardID)
	if err != nil {
		return writeError(c, err, "failed to redeem reward")
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("account_id", accountID.String()).
		Str("reward_id", rewardID.String()).
		Str("voucher_code", result.Voucher.Code).
		Msg("reward redeemed")

	return c.Status(fiber.StatusCreated).JSON(result)
}

// CreateRequest handles POST /api/redeem-requests.
func (h *RedemptionHandler) CreateRequest(c *fiber.Ctx) error {
	accountID, rewardID, ok, err := h.bindRedeem(c)
	if !ok {
		return err
	}

	result, err := h.service.CreateRequest(c.Context(), accountID, rewardID)
	if err != nil {
		return writeError(c, err, "failed to create redeem request")
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("account_id", accountID.String()).
		Str("redeem_request_id", result.Request.ID.String()).
		Int64("points_reserved", result.Request.PointsReserved).
		Msg("redeem request created")

	return c.Status(fiber.StatusCreated).JSON(result)
}

// GetRequest handles GET /api/redeem-requests/:id.
func (h *RedemptionHandler) GetRequest(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	req, err := h.service.GetRequest(c.Context(), id)
	if err != nil {
		return writeError(c, err, "failed to get redeem request")
	}
	return c.JSON(req)
}

// ListPending handles GET /api/redeem-requests/pending.
func (h *RedemptionHandler) ListPending(c *fiber.Ctx) error {
	reqs, err := h.service.ListPendingRequests(c.Context())
	if err != nil {
		return writeError(c, err, "failed to list pending redeem requests")
	}
	return c.JSON(reqs)
}

// Process handles POST /api/redeem-requests/:id/process.
func (h *RedemptionHandler) Process(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	var req model.ProcessRequestRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	result, err := h.service.Process(c.Context(), id, model.ProcessAction(req.Action), req.StaffID, req.Notes)
	if err != nil {
		return writeError(c, err, "failed to process redeem request")
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("redeem_request_id", id.String()).
		Str("action", req.Action).
		Str("staff_id", req.StaffID).
		Msg("redeem request processed")

	return c.JSON(result)
}

// UseVoucher handles POST /api/vouchers/:id/use.
func (h *RedemptionHandler) UseVoucher(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	var req model.UseVoucherRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return invalidID(c, "account_id")
	}

	result, err := h.service.UseVoucher(c.Context(), id, accountID)
	if err != nil {
		return writeError(c, err, "failed to use voucher")
	}
	return c.JSON(result)
}

// ListVouchers handles GET /api/accounts/:id/vouchers.
func (h *RedemptionHandler) ListVouchers(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	vouchers, err := h.service.ListVouchers(c.Context(), id)
	if err != nil {
		return writeError(c, err, "failed to list vouchers")
	}
	return c.JSON(vouchers)
}

// ListRequests handles GET /api/accounts/:id/redeem-requests.
func (h *RedemptionHandler) ListRequests(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	reqs, err := h.service.ListRequests(c.Context(), id)
	if err != nil {
		return writeError(c, err, "failed to list redeem requests")
	}
	return c.JSON(reqs)
}
