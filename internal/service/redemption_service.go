package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beanstamp/internal/constants"
	"github.com/beanstamp/internal/logger"
	"github.com/beanstamp/internal/metrics"
	"github.com/beanstamp/internal/models"
	"github.com/beanstamp/internal/repository"

	"gorm.io/gorm"
)

// RedeemInput 兑换输入
type RedeemInput struct {
	MerchantID     string
	CustomerID     string
	Cost           int64
	RewardID       uint
	IdempotencyKey string
	StaffID        string
	SessionToken   string
}

// RedeemResult 兑换结果，Replayed 表示命中幂等键返回的既有流水
type RedeemResult struct {
	Entry    *models.LedgerEntry
	Replayed bool
}

// RewardRedemptionService 积分兑换服务
type RewardRedemptionService struct {
	loyaltyRepo repository.LoyaltyRepository
	rewardRepo  repository.RewardRepository
	settings    *MerchantSettingService
	verifier    *CodeVerifier
	locker      AccountLocker
	now         func() time.Time
}

// NewRewardRedemptionService 创建积分兑换服务
func NewRewardRedemptionService(
	loyaltyRepo repository.LoyaltyRepository,
	rewardRepo repository.RewardRepository,
	settings *MerchantSettingService,
	verifier *CodeVerifier,
	locker AccountLocker,
) *RewardRedemptionService {
	if locker == nil {
		locker = noopAccountLocker{}
	}
	return &RewardRedemptionService{
		loyaltyRepo: loyaltyRepo,
		rewardRepo:  rewardRepo,
		settings:    settings,
		verifier:    verifier,
		locker:      locker,
		now:         time.Now,
	}
}

// RedeemReward 按奖励目录兑换，积分消耗取自奖励配置
func (s *RewardRedemptionService) RedeemReward(ctx context.Context, input RedeemInput) (*RedeemResult, error) {
	reward, err := s.rewardRepo.GetByID(input.RewardID)
	if err != nil {
		return nil, err
	}
	if reward == nil || reward.MerchantID != strings.TrimSpace(input.MerchantID) {
		return nil, ErrRewardNotFound
	}
	if !reward.IsActive {
		return nil, ErrRewardInactive
	}
	input.Cost = reward.PointCost
	return s.Redeem(ctx, input)
}

// Redeem 扣减积分兑换奖励，余额校验与扣减为同一条条件更新
func (s *RewardRedemptionService) Redeem(ctx context.Context, input RedeemInput) (*RedeemResult, error) {
	input.MerchantID = strings.TrimSpace(input.MerchantID)
	input.CustomerID = strings.TrimSpace(input.CustomerID)
	input.IdempotencyKey = strings.TrimSpace(input.IdempotencyKey)
	input.SessionToken = strings.TrimSpace(input.SessionToken)
	if input.CustomerID == "" {
		return nil, ErrCustomerUnknown
	}
	if input.IdempotencyKey == "" {
		return nil, ErrInvalidKey
	}
	if input.Cost <= 0 {
		return nil, ErrInvalidAmount
	}
	policy, err := s.settings.Resolve(ctx, input.MerchantID)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, input.CustomerID, input.MerchantID)
	if err != nil {
		return nil, err
	}
	defer release()

	var result RedeemResult
	err = s.loyaltyRepo.Transaction(ctx, func(tx *gorm.DB) error {
		entry, replayed, err := s.redeemTx(tx, input, policy, s.now().UTC())
		if err != nil {
			return err
		}
		result = RedeemResult{Entry: entry, Replayed: replayed}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		account, lookupErr := s.loyaltyRepo.GetAccount(input.CustomerID, input.MerchantID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		var existing *models.LedgerEntry
		if account != nil {
			existing, lookupErr = s.loyaltyRepo.GetEntryByKey(account.ID, input.IdempotencyKey)
			if lookupErr != nil {
				return nil, lookupErr
			}
		}
		if existing == nil {
			return nil, ErrAccountLocked
		}
		metrics.LedgerReplaysTotal.WithLabelValues("redeem").Inc()
		return &RedeemResult{Entry: existing, Replayed: true}, nil
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientBalance):
			metrics.RedemptionFailuresTotal.WithLabelValues("insufficient_balance").Inc()
		case errors.Is(err, ErrDailyRedemptionLimitExceeded):
			metrics.RedemptionFailuresTotal.WithLabelValues("daily_limit").Inc()
		}
		logger.Infow("ledger_redeem_rejected",
			"merchant_id", input.MerchantID,
			"customer_id", input.CustomerID,
			"cost", input.Cost,
			"error", err,
		)
		return nil, err
	}

	if result.Replayed {
		metrics.LedgerReplaysTotal.WithLabelValues("redeem").Inc()
		return &result, nil
	}
	metrics.LedgerEntriesTotal.WithLabelValues(constants.LedgerReasonRewardRedemption).Inc()
	logger.Infow("ledger_redeem_committed",
		"merchant_id", input.MerchantID,
		"customer_id", input.CustomerID,
		"account_id", result.Entry.LoyaltyAccountID,
		"entry_id", result.Entry.ID,
		"reward_id", input.RewardID,
		"delta", result.Entry.Delta,
		"balance_after", result.Entry.BalanceAfter,
		"staff_id", input.StaffID,
	)
	return &result, nil
}

func (s *RewardRedemptionService) redeemTx(tx *gorm.DB, input RedeemInput, policy *MerchantPolicy, now time.Time) (*models.LedgerEntry, bool, error) {
	repo := s.loyaltyRepo.WithTx(tx)
	account, err := repo.GetAccountForUpdate(input.CustomerID, input.MerchantID)
	if err != nil {
		return nil, false, err
	}
	if account == nil {
		return nil, false, ErrInsufficientBalance
	}

	existing, err := repo.GetEntryByKey(account.ID, input.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}

	if input.SessionToken != "" && s.verifier != nil {
		if err := s.verifier.EnsureFresh(tx, input.SessionToken, input.CustomerID, now); err != nil {
			return nil, false, err
		}
	}

	// 先做条件扣减：并发争抢同一余额时落败方得到余额不足，而非每日上限
	balance, ok, err := repo.ApplyDebit(account.ID, input.Cost, now)
	if err != nil {
		return nil, false, fmt.Errorf("apply debit: %w", err)
	}
	if !ok {
		return nil, false, ErrInsufficientBalance
	}

	// 超出每日上限时返回错误，事务回滚上面的扣减
	if policy.DailyRedemptionLimit > 0 {
		count, err := repo.CountEntriesSince(account.ID, constants.LedgerReasonRewardRedemption, policy.DayStart(now))
		if err != nil {
			return nil, false, err
		}
		if count >= int64(policy.DailyRedemptionLimit) {
			return nil, false, ErrDailyRedemptionLimitExceeded
		}
	}

	var rewardID *uint
	if input.RewardID != 0 {
		id := input.RewardID
		rewardID = &id
	}
	entry := &models.LedgerEntry{
		LoyaltyAccountID: account.ID,
		Delta:            -input.Cost,
		BalanceAfter:     balance,
		Reason:           constants.LedgerReasonRewardRedemption,
		IdempotencyKey:   input.IdempotencyKey,
		RewardID:         rewardID,
		CreatedByStaffID: strings.TrimSpace(input.StaffID),
		CreatedAt:        now,
	}
	if err := repo.CreateEntry(entry); err != nil {
		return nil, false, err
	}
	return entry, false, nil
}
