package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
	"github.com/fairyhunter13/loyalty-ledger/internal/service"
	"github.com/fairyhunter13/loyalty-ledger/internal/validator"
)

// mockLedgerService is a mock implementation of LedgerServiceInterface.
type mockLedgerService struct {
	openFn    func(ctx context.Context, id uuid.UUID) (*model.BalanceResult, error)
	balanceFn func(ctx context.Context, id uuid.UUID) (*model.BalanceResult, error)
	creditFn  func(ctx context.Context, id uuid.UUID, amount int64, opts service.PointsOptions) (*model.BalanceResult, error)
	debitFn   func(ctx context.Context, id uuid.UUID, amount int64, opts service.PointsOptions) (*model.BalanceResult, error)
	refundFn  func(ctx context.Context, id uuid.UUID, amount int64, opts service.PointsOptions) (*model.BalanceResult, error)
}

func (m *mockLedgerService) OpenAccount(ctx context.Context, id uuid.UUID) (*model.BalanceResult, error) {
	if m.openFn != nil {
		return m.openFn(ctx, id)
	}
	return &model.BalanceResult{AccountID: id}, nil
}

func (m *mockLedgerService) GetBalance(ctx context.Context, id uuid.UUID) (*model.BalanceResult, error) {
	if m.balanceFn != nil {
		return m.balanceFn(ctx, id)
	}
	return &model.BalanceResult{AccountID: id}, nil
}

func (m *mockLedgerService) Credit(ctx context.Context, id uuid.UUID, amount int64, opts service.PointsOptions) (*model.BalanceResult, error) {
	if m.creditFn != nil {
		return m.creditFn(ctx, id, amount, opts)
	}
	return &model.BalanceResult{AccountID: id, Points: amount}, nil
}

func (m *mockLedgerService) Debit(ctx context.Context, id uuid.UUID, amount int64, opts service.PointsOptions) (*model.BalanceResult, error) {
	if m.debitFn != nil {
		return m.debitFn(ctx, id, amount, opts)
	}
	return &model.BalanceResult{AccountID: id}, nil
}

func (m *mockLedgerService) Refund(ctx context.Context, id uuid.UUID, amount int64, opts service.PointsOptions) (*model.BalanceResult, error) {
	if m.refundFn != nil {
		return m.refundFn(ctx, id, amount, opts)
	}
	return &model.BalanceResult{AccountID: id, Points: amount}, nil
}

// mockStatsService is a mock implementation of StatsServiceInterface.
type mockStatsService struct {
	summaryFn    func(ctx context.Context, id uuid.UUID) (*model.PointsSummary, error)
	historyFn    func(ctx context.Context, id uuid.UUID, limit int) ([]model.TransactionEntry, error)
	activitiesFn func(ctx context.Context, id uuid.UUID, limit int) ([]model.ActivityLog, error)
}

func (m *mockStatsService) Summary(ctx context.Context, id uuid.UUID) (*model.PointsSummary, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx, id)
	}
	return &model.PointsSummary{AccountID: id}, nil
}

func (m *mockStatsService) History(ctx context.Context, id uuid.UUID, limit int) ([]model.TransactionEntry, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, id, limit)
	}
	return []model.TransactionEntry{}, nil
}

func (m *mockStatsService) Activities(ctx context.Context, id uuid.UUID, limit int) ([]model.ActivityLog, error) {
	if m.activitiesFn != nil {
		return m.activitiesFn(ctx, id, limit)
	}
	return []model.ActivityLog{}, nil
}

// mockCatalogService is a mock implementation of CatalogServiceInterface.
type mockCatalogService struct {
	createFn     func(ctx context.Context, req model.CreateRewardRequest) (*model.Reward, error)
	getFn        func(ctx context.Context, id uuid.UUID) (*model.Reward, error)
	deactivateFn func(ctx context.Context, id uuid.UUID) error
	availableFn  func(ctx context.Context, accountID uuid.UUID) ([]model.Reward, error)
}

func (m *mockCatalogService) Create(ctx context.Context, req model.CreateRewardRequest) (*model.Reward, error) {
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	return &model.Reward{ID: uuid.New(), Name: req.Name, PointsCost: *req.PointsCost, IsActive: true}, nil
}

func (m *mockCatalogService) Get(ctx context.Context, id uuid.UUID) (*model.Reward, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &model.Reward{ID: id}, nil
}

func (m *mockCatalogService) Deactivate(ctx context.Context, id uuid.UUID) error {
	if m.deactivateFn != nil {
		return m.deactivateFn(ctx, id)
	}
	return nil
}

func (m *mockCatalogService) ListAvailable(ctx context.Context, accountID uuid.UUID) ([]model.Reward, error) {
	if m.availableFn != nil {
		return m.availableFn(ctx, accountID)
	}
	return []model.Reward{}, nil
}

// mockRedemptionService is a mock implementation of RedemptionServiceInterface.
type mockRedemptionService struct {
	redeemNowFn    func(ctx context.Context, accountID, rewardID uuid.UUID) (*model.RedemptionResult, error)
	createFn       func(ctx context.Context, accountID, rewardID uuid.UUID) (*model.RedemptionResult, error)
	processFn      func(ctx context.Context, id uuid.UUID, action model.ProcessAction, staffID, notes string) (*model.RedemptionResult, error)
	useVoucherFn   func(ctx context.Context, voucherID, accountID uuid.UUID) (*model.RedemptionResult, error)
	getRequestFn   func(ctx context.Context, id uuid.UUID) (*model.RedeemRequest, error)
	listRequestsFn func(ctx context.Context, accountID uuid.UUID) ([]model.RedeemRequest, error)
	listPendingFn  func(ctx context.Context) ([]model.RedeemRequest, error)
	listVouchersFn func(ctx context.Context, accountID uuid.UUID) ([]model.Voucher, error)
}

func (m *mockRedemptionService) RedeemNow(ctx context.Context, accountID, rewardID uuid.UUID) (*model.RedemptionResult, error) {
	if m.redeemNowFn != nil {
		return m.redeemNowFn(ctx, accountID, rewardID)
	}
	return &model.RedemptionResult{
		Balance: &model.BalanceResult{AccountID: accountID},
		Voucher: &model.Voucher{ID: uuid.New(), Code: "VCH-000000000000", AccountID: accountID, RewardID: rewardID},
	}, nil
}

func (m *mockRedemptionService) CreateRequest(ctx context.Context, accountID, rewardID uuid.UUID) (*model.RedemptionResult, error) {
	if m.createFn != nil {
		return m.createFn(ctx, accountID, rewardID)
	}
	return &model.RedemptionResult{
		Balance: &model.BalanceResult{AccountID: accountID},
		Request: &model.RedeemRequest{ID: uuid.New(), AccountID: accountID, RewardID: rewardID, Status: model.RequestPending},
	}, nil
}

func (m *mockRedemptionService) Process(ctx context.Context, id uuid.UUID, action model.ProcessAction, staffID, notes string) (*model.RedemptionResult, error) {
	if m.processFn != nil {
		return m.processFn(ctx, id, action, staffID, notes)
	}
	return &model.RedemptionResult{Request: &model.RedeemRequest{ID: id}}, nil
}

func (m *mockRedemptionService) UseVoucher(ctx context.Context, voucherID, accountID uuid.UUID) (*model.RedemptionResult, error) {
	if m.useVoucherFn != nil {
		return m.useVoucherFn(ctx, voucherID, accountID)
	}
	return &model.RedemptionResult{Voucher: &model.Voucher{ID: voucherID, AccountID: accountID, Status: model.VoucherUsed}}, nil
}

func (m *mockRedemptionService) GetRequest(ctx context.Context, id uuid.UUID) (*model.RedeemRequest, error) {
	if m.getRequestFn != nil {
		return m.getRequestFn(ctx, id)
	}
	return &model.RedeemRequest{ID: id}, nil
}

func (m *mockRedemptionService) ListRequests(ctx context.Context, accountID uuid.UUID) ([]model.RedeemRequest, error) {
	if m.listRequestsFn != nil {
		return m.listRequestsFn(ctx, accountID)
	}
	return []model.RedeemRequest{}, nil
}

func (m *mockRedemptionService) ListPendingRequests(ctx context.Context) ([]model.RedeemRequest, error) {
	if m.listPendingFn != nil {
		return m.listPendingFn(ctx)
	}
	return []model.RedeemRequest{}, nil
}

func (m *mockRedemptionService) ListVouchers(ctx context.Context, accountID uuid.UUID) ([]model.Voucher, error) {
	if m.listVouchersFn != nil {
		return m.listVouchersFn(ctx, accountID)
	}
	return []model.Voucher{}, nil
}

// testServices holds the mocks behind a test app. Nil fields get zero-value mocks.
type testServices struct {
	ledger      *mockLedgerService
	stats       *mockStatsService
	catalog     *mockCatalogService
	redemptions *mockRedemptionService
}

func setupTestApp(s testServices) *fiber.App {
	if s.ledger == nil {
		s.ledger = &mockLedgerService{}
	}
	if s.stats == nil {
		s.stats = &mockStatsService{}
	}
	if s.catalog == nil {
		s.catalog = &mockCatalogService{}
	}
	if s.redemptions == nil {
		s.redemptions = &mockRedemptionService{}
	}

	v := validator.New()
	app := fiber.New()
	RegisterRoutes(app, Handlers{
		Accounts:    NewAccountHandler(s.ledger, s.stats, v),
		Rewards:     NewRewardHandler(s.catalog, v),
		Redemptions: NewRedemptionHandler(s.redemptions, v),
		Health:      NewHealthHandler(&mockPool{}),
	})
	return app
}

// do sends a request and returns the status and raw body.
func do(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, respBody
}

// decode unmarshals a JSON response body into a generic map.
func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}
