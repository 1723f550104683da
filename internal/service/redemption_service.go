package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
	"github.com/fairyhunter13/loyalty-ledger/internal/tier"
)

// requestTransitions lists every legal RedeemRequest state change.
var requestTransitions = map[model.RequestStatus]map[model.ProcessAction]model.RequestStatus{
	model.RequestPending: {
		model.ActionApprove: model.RequestApproved,
		model.ActionReject:  model.RequestRejected,
	},
}

// nextStatus applies action to a request in status from.
func nextStatus(id uuid.UUID, from model.RequestStatus, action model.ProcessAction) (model.RequestStatus, error) {
	if from == model.RequestApproved || from == model.RequestRejected {
		return "", &AlreadyProcessedError{RequestID: id, Status: from}
	}
	to, ok := requestTransitions[from][action]
	if !ok {
		return "", fmt.Errorf("%w: %s --%s-->", ErrInvalidTransition, from, action)
	}
	return to, nil
}

// RedemptionService coordinates instant redemptions, deferred redeem requests and voucher use.
type RedemptionService struct {
	pool         TxBeginner
	accounts     AccountRepositoryInterface
	rewards      RewardRepositoryInterface
	requests     RedeemRequestRepositoryInterface
	vouchers     VoucherRepositoryInterface
	transactions TransactionRepositoryInterface
	recorder     ActivityRecorder
	clock        Clock
}

// NewRedemptionService creates a RedemptionService. recorder and clock may be nil.
func NewRedemptionService(pool TxBeginner, repos Repositories, recorder ActivityRecorder, clock Clock) *RedemptionService {
	recorder, clock = orDefaults(recorder, clock)
	return &RedemptionService{
		pool:         pool,
		accounts:     repos.Accounts,
		rewards:      repos.Rewards,
		requests:     repos.Requests,
		vouchers:     repos.Vouchers,
		transactions: repos.Transactions,
		recorder:     recorder,
		clock:        clock,
	}
}

// RedeemNow spends the reward's cost and issues an active voucher in one unit of work.
// Returns:
//   - ErrAccountNotFound / ErrRewardNotFound if either is missing
//   - ErrRewardInactive if the reward is retired
//   - TierTooLowError if the account's tier is below the reward minimum
//   - InsufficientBalanceError if the balance cannot cover the cost
func (s *RedemptionService) RedeemNow(ctx context.Context, accountID, rewardID uuid.UUID) (*model.RedemptionResult, error) {
	var (
		result model.RedemptionResult
		reward *model.Reward
	)
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		account, rw, err := s.lockForRedemption(ctx, tx, accountID, rewardID)
		if err != nil {
			return err
		}
		reward = rw
		now := s.clock.Now()

		if err := s.spend(ctx, tx, account, reward, model.TxRewardRedeemed, now); err != nil {
			return err
		}

		voucher, err := s.issueVoucher(ctx, tx, accountID, rewardID, now)
		if err != nil {
			return err
		}

		balance := account.Balance()
		result = model.RedemptionResult{Balance: &balance, Voucher: voucher}
		return nil
	})
	if err != nil {
		return nil, err
	}

	record(ctx, s.recorder, model.Activity{
		ActorID:     accountID.String(),
		ActorRole:   model.RoleCustomer,
		TargetID:    accountID.String(),
		TargetRole:  model.RoleCustomer,
		Description: fmt.Sprintf("Redeemed reward %q, voucher %s", reward.Name, result.Voucher.Code),
		PointsDelta: -reward.PointsCost,
		OccurredAt:  s.clock.Now(),
	})
	return &result, nil
}

// CreateRequest reserves the reward's cost immediately and opens a pending request for staff review.
// It runs the same checks as RedeemNow.
func (s *RedemptionService) CreateRequest(ctx context.Context, accountID, rewardID uuid.UUID) (*model.RedemptionResult, error) {
	var (
		result model.RedemptionResult
		reward *model.Reward
	)
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		account, rw, err := s.lockForRedemption(ctx, tx, accountID, rewardID)
		if err != nil {
			return err
		}
		reward = rw
		now := s.clock.Now()

		if err := s.spend(ctx, tx, account, reward, model.TxPointsRedeemed, now); err != nil {
			return err
		}

		req := &model.RedeemRequest{
			ID:             uuid.New(),
			AccountID:      accountID,
			RewardID:       rewardID,
			PointsReserved: reward.PointsCost,
			Status:         model.RequestPending,
			CreatedAt:      now,
		}
		if err := s.requests.Insert(ctx, tx, req); err != nil {
			return fmt.Errorf("insert redeem request: %w", err)
		}

		balance := account.Balance()
		result = model.RedemptionResult{Balance: &balance, Request: req}
		return nil
	})
	if err != nil {
		return nil, err
	}

	record(ctx, s.recorder, model.Activity{
		ActorID:     accountID.String(),
		ActorRole:   model.RoleCustomer,
		TargetID:    accountID.String(),
		TargetRole:  model.RoleCustomer,
		Description: fmt.Sprintf("Requested reward %q (%d points reserved)", reward.Name, reward.PointsCost),
		PointsDelta: -reward.PointsCost,
		OccurredAt:  s.clock.Now(),
	})
	return &result, nil
}

// Process moves a pending request to approved (issuing a voucher) or rejected (refunding the reservation).
// Processing a request that is not pending fails with AlreadyProcessedError and changes nothing.
func (s *RedemptionService) Process(ctx context.Context, requestID uuid.UUID, action model.ProcessAction, staffID, notes string) (*model.RedemptionResult, error) {
	if action != model.ActionApprove && action != model.ActionReject {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, action)
	}
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return nil, fmt.Errorf("%w: staff id is required", ErrInvalidRequest)
	}

	var result model.RedemptionResult
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		req, err := s.requests.GetForUpdate(ctx, tx, requestID)
		if err != nil {
			if errors.Is(err, ErrRequestNotFound) {
				return ErrRequestNotFound
			}
			return fmt.Errorf("get redeem request for update: %w", err)
		}

		to, err := nextStatus(req.ID, req.Status, action)
		if err != nil {
			return err
		}

		account, err := s.accounts.GetForUpdate(ctx, tx, req.AccountID)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return ErrAccountNotFound
			}
			return fmt.Errorf("get account for update: %w", err)
		}

		now := s.clock.Now()
		entry := &model.TransactionEntry{
			ID:        uuid.New(),
			AccountID: req.AccountID,
			RewardID:  &req.RewardID,
			CreatedAt: now,
		}

		switch to {
		case model.RequestApproved:
			if err := prepare(account, now); err != nil {
				return err
			}
			voucher, err := s.issueVoucher(ctx, tx, req.AccountID, req.RewardID, now)
			if err != nil {
				return err
			}
			req.VoucherID = &voucher.ID
			result.Voucher = voucher

			// Cost was debited when the request was created.
			entry.Type = model.TxRewardRedeemed
			entry.Amount = 0
			entry.Description = fmt.Sprintf("Redeem request %s approved", req.ID)

		case model.RequestRejected:
			if err := applyCredit(account, req.PointsReserved, now); err != nil {
				return err
			}
			if err := s.accounts.UpdateBalance(ctx, tx, account); err != nil {
				return fmt.Errorf("update balance: %w", err)
			}
			entry.Type = model.TxPointsRefunded
			entry.Amount = req.PointsReserved
			entry.Description = fmt.Sprintf("Redeem request %s rejected, points refunded", req.ID)
		}

		if err := s.transactions.Append(ctx, tx, entry); err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}

		req.Status = to
		req.ProcessedBy = staffID
		req.Notes = notes
		req.ProcessedAt = &now
		if err := s.requests.Resolve(ctx, tx, req); err != nil {
			if errors.Is(err, ErrAlreadyProcessed) {
				return &AlreadyProcessedError{RequestID: req.ID, Status: to}
			}
			return fmt.Errorf("resolve redeem request: %w", err)
		}

		balance := account.Balance()
		result.Balance = &balance
		result.Request = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	var delta int64
	if result.Request.Status == model.RequestRejected {
		delta = result.Request.PointsReserved
	}
	record(ctx, s.recorder, model.Activity{
		ActorID:     staffID,
		ActorRole:   model.RoleStaff,
		TargetID:    result.Request.AccountID.String(),
		TargetRole:  model.RoleCustomer,
		Description: fmt.Sprintf("Redeem request %s %s", result.Request.ID, result.Request.Status),
		PointsDelta: delta,
		OccurredAt:  s.clock.Now(),
	})
	return &result, nil
}

// UseVoucher consumes an active voucher owned by accountID. Used is terminal.
// Returns:
//   - ErrVoucherNotFound if the voucher does not exist
//   - ErrForbidden if it belongs to another account
//   - ErrNotApproved if its owning request is not approved
//   - AlreadyUsedError if it was used before
func (s *RedemptionService) UseVoucher(ctx context.Context, voucherID, accountID uuid.UUID) (*model.RedemptionResult, error) {
	var result model.RedemptionResult
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		voucher, err := s.vouchers.GetForUpdate(ctx, tx, voucherID)
		if err != nil {
			if errors.Is(err, ErrVoucherNotFound) {
				return ErrVoucherNotFound
			}
			return fmt.Errorf("get voucher for update: %w", err)
		}
		if voucher.AccountID != accountID {
			return fmt.Errorf("%w: voucher %s does not belong to account %s", ErrForbidden, voucherID, accountID)
		}

		req, err := s.requests.GetByVoucherID(ctx, tx, voucherID)
		if err != nil {
			return fmt.Errorf("get redeem request by voucher: %w", err)
		}
		if req != nil && req.Status != model.RequestApproved {
			return fmt.Errorf("%w: request %s is %s", ErrNotApproved, req.ID, req.Status)
		}

		if voucher.Status != model.VoucherActive {
			return &AlreadyUsedError{VoucherID: voucher.ID, UsedAt: voucher.UsedAt}
		}

		now := s.clock.Now()
		if err := s.vouchers.MarkUsed(ctx, tx, voucherID, now); err != nil {
			if errors.Is(err, ErrAlreadyUsed) {
				return &AlreadyUsedError{VoucherID: voucher.ID}
			}
			return fmt.Errorf("mark voucher used: %w", err)
		}
		voucher.Status = model.VoucherUsed
		voucher.UsedAt = &now

		result = model.RedemptionResult{Voucher: voucher, Request: req}
		return nil
	})
	if err != nil {
		return nil, err
	}

	record(ctx, s.recorder, model.Activity{
		ActorID:     accountID.String(),
		ActorRole:   model.RoleCustomer,
		TargetID:    accountID.String(),
		TargetRole:  model.RoleCustomer,
		Description: fmt.Sprintf("Used voucher %s", result.Voucher.Code),
		OccurredAt:  s.clock.Now(),
	})
	return &result, nil
}

// GetRequest returns a redeem request by id.
func (s *RedemptionService) GetRequest(ctx context.Context, id uuid.UUID) (*model.RedeemRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get redeem request: %w", err)
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// ListRequests returns an account's redeem requests, newest first.
func (s *RedemptionService) ListRequests(ctx context.Context, accountID uuid.UUID) ([]model.RedeemRequest, error) {
	reqs, err := s.requests.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list redeem requests: %w", err)
	}
	return reqs, nil
}

// ListPendingRequests returns the staff review queue, oldest first.
func (s *RedemptionService) ListPendingRequests(ctx context.Context) ([]model.RedeemRequest, error) {
	reqs, err := s.requests.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return reqs, nil
}

// ListVouchers returns an account's vouchers, newest first.
func (s *RedemptionService) ListVouchers(ctx context.Context, accountID uuid.UUID) ([]model.Voucher, error) {
	vouchers, err := s.vouchers.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	return vouchers, nil
}

// lockForRedemption locks the account row, reads the reward snapshot and runs every pre-write check.
func (s *RedemptionService) lockForRedemption(ctx context.Context, tx pgx.Tx, accountID, rewardID uuid.UUID) (*model.Account, *model.Reward, error) {
	account, err := s.accounts.GetForUpdate(ctx, tx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, nil, ErrAccountNotFound
		}
		return nil, nil, fmt.Errorf("get account for update: %w", err)
	}

	reward, err := s.rewards.GetSnapshot(ctx, tx, rewardID)
	if err != nil {
		if errors.Is(err, ErrRewardNotFound) {
			return nil, nil, ErrRewardNotFound
		}
		return nil, nil, fmt.Errorf("get reward: %w", err)
	}
	if !reward.IsActive {
		return nil, nil, ErrRewardInactive
	}

	current := tier.For(account.HighestPoints)
	if !current.Meets(reward.MinimumTier) {
		return nil, nil, &TierTooLowError{Current: current, Required: *reward.MinimumTier}
	}

	if account.Points < reward.PointsCost {
		return nil, nil, &InsufficientBalanceError{AccountID: accountID, Available: account.Points, Requested: reward.PointsCost}
	}
	return account, reward, nil
}

// spend debits the reward cost and appends the matching log entry.
func (s *RedemptionService) spend(ctx context.Context, tx pgx.Tx, account *model.Account, reward *model.Reward, txType model.TransactionType, now time.Time) error {
	if err := applyDebit(account, reward.PointsCost, now); err != nil {
		return err
	}
	if err := s.accounts.UpdateBalance(ctx, tx, account); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}

	description := fmt.Sprintf("Redeemed reward %q", reward.Name)
	if txType == model.TxPointsRedeemed {
		description = fmt.Sprintf("Reserved points for reward %q", reward.Name)
	}
	entry := &model.TransactionEntry{
		ID:          uuid.New(),
		AccountID:   account.ID,
		Type:        txType,
		Amount:      -reward.PointsCost,
		RewardID:    &reward.ID,
		Description: description,
		CreatedAt:   now,
	}
	if err := s.transactions.Append(ctx, tx, entry); err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

// issueVoucher creates an active voucher.
func (s *RedemptionService) issueVoucher(ctx context.Context, tx pgx.Tx, accountID, rewardID uuid.UUID, now time.Time) (*model.Voucher, error) {
	id := uuid.New()
	voucher := &model.Voucher{
		ID:         id,
		Code:       voucherCode(id),
		AccountID:  accountID,
		RewardID:   rewardID,
		Status:     model.VoucherActive,
		RedeemedAt: now,
	}
	if err := s.vouchers.Insert(ctx, tx, voucher); err != nil {
		return nil, fmt.Errorf("insert voucher: %w", err)
	}
	return voucher, nil
}

// voucherCode renders a human-readable code such as VCH-1A2B3C4D5E6F.
func voucherCode(id uuid.UUID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	return "VCH-" + strings.ToUpper(hex[:12])
}
