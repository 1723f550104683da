package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
	"github.com/fairyhunter13/loyalty-ledger/internal/service"
)

// LedgerServiceInterface defines the account ledger operations.
type LedgerServiceInterface interface {
	OpenAccount(ctx context.Context, id uuid.UUID) (*model.BalanceResult, error)
	GetBalance(ctx context.Context, id uuid.UUID) (*model.BalanceResult, error)
	Credit(ctx context.Context, accountID uuid.UUID, amount int64, opts service.PointsOptions) (*model.BalanceResult, error)
	Debit(ctx context.Context, accountID uuid.UUID, amount int64, opts service.PointsOptions) (*model.BalanceResult, error)
	Refund(ctx context.Context, accountID uuid.UUID, amount int64, opts service.PointsOptions) (*model.BalanceResult, error)
}

// StatsServiceInterface defines the read-only account views.
type StatsServiceInterface interface {
	Summary(ctx context.Context, accountID uuid.UUID) (*model.PointsSummary, error)
	History(ctx context.Context, accountID uuid.UUID, limit int) ([]model.TransactionEntry, error)
	Activities(ctx context.Context, accountID uuid.UUID, limit int) ([]model.ActivityLog, error)
}

type adjustFunc func(ctx context.Context, accountID uuid.UUID, amount int64, opts service.PointsOptions) (*model.BalanceResult, error)

// AccountHandler handles HTTP requests for points accounts.
type AccountHandler struct {
	ledger    LedgerServiceInterface
	stats     StatsServiceInterface
	validator *validator.Validate
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(ledger LedgerServiceInterface, stats StatsServiceInterface, v *validator.Validate) *AccountHandler {
	return &AccountHandler{ledger: ledger, stats: stats, validator: v}
}

// Open handles POST /api/accounts. The body is optional.
func (h *AccountHandler) Open(c *fiber.Ctx) error {
	var req model.OpenAccountRequest
	if len(c.Body()) > 0 {
		if ok, err := bind(c, h.validator, &req); !ok {
			return err
		}
	}

	var id uuid.UUID
	if req.AccountID != "" {
		parsed, err := uuid.Parse(req.AccountID)
		if err != nil {
			return invalidID(c, "account_id")
		}
		id = parsed
	}

	balance, err := h.ledger.OpenAccount(c.Context(), id)
	if err != nil {
		return writeError(c, err, "failed to open account")
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("account_id", balance.AccountID.String()).
		Msg("account opened")

	return c.Status(fiber.StatusCreated).JSON(balance)
}

// Get handles GET /api/accounts/:id.
func (h *AccountHandler) Get(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	balance, err := h.ledger.GetBalance(c.Context(), id)
	if err != nil {
		return writeError(c, err, "failed to get balance")
	}
	return c.JSON(balance)
}

// Credit handles POST /api/accounts/:id/credit.
func (h *AccountHandler) Credit(c *fiber.Ctx) error {
	return h.adjust(c, h.ledger.Credit, "credit")
}

// Debit handles POST /api/accounts/:id/debit.
func (h *AccountHandler) Debit(c *fiber.Ctx) error {
	return h.adjust(c, h.ledger.Debit, "debit")
}

// Refund handles POST /api/accounts/:id/refund.
func (h *AccountHandler) Refund(c *fiber.Ctx) error {
	return h.adjust(c, h.ledger.Refund, "refund")
}

func (h *AccountHandler) adjust(c *fiber.Ctx, fn adjustFunc, op string) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	var req model.PointsRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	balance, err := fn(c.Context(), id, *req.Amount, service.PointsOptions{
		Description: req.Description,
		ActorID:     req.ActorID,
	})
	if err != nil {
		return writeError(c, err, "failed to "+op+" points")
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("account_id", id.String()).
		Str("operation", op).
		Int64("amount", *req.Amount).
		Int64("points", balance.Points).
		Msg("points adjusted")

	return c.JSON(balance)
}

// Stats handles GET /api/accounts/:id/stats.
func (h *AccountHandler) Stats(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	summary, err := h.stats.Summary(c.Context(), id)
	if err != nil {
		return writeError(c, err, "failed to compute points summary")
	}
	return c.JSON(summary)
}

// Transactions handles GET /api/accounts/:id/transactions?limit=N.
func (h *AccountHandler) Transactions(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	entries, err := h.stats.History(c.Context(), id, c.QueryInt("limit", 0))
	if err != nil {
		return writeError(c, err, "failed to list transactions")
	}
	return c.JSON(entries)
}

// Activities handles GET /api/accounts/:id/activities?limit=N.
func (h *AccountHandler) Activities(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return invalidID(c, "id")
	}

	logs, err := h.stats.Activities(c.Context(), id, c.QueryInt("limit", 0))
	if err != nil {
		return writeError(c, err, "failed to list activities")
	}
	return c.JSON(logs)
}
