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

// CreditInput 积分入账输入
type CreditInput struct {
	MerchantID       string
	CustomerID       string
	Amount           int64
	Reason           string
	IdempotencyKey   string
	StaffID          string
	SessionToken     string // 核验会话令牌，非空时在提交前复核有效期
	CampaignID       uint
	ChurnCandidateID uint
}

// CreditResult 入账结果，Replayed 表示命中幂等键返回的既有流水
type CreditResult struct {
	Entry    *models.LedgerEntry
	Replayed bool
}

// PointAccrualService 积分入账服务
type PointAccrualService struct {
	loyaltyRepo repository.LoyaltyRepository
	churnRepo   repository.ChurnCandidateRepository
	campaigns   *CampaignService
	verifier    *CodeVerifier
	locker      AccountLocker
	now         func() time.Time
}

// NewPointAccrualService 创建积分入账服务
func NewPointAccrualService(
	loyaltyRepo repository.LoyaltyRepository,
	churnRepo repository.ChurnCandidateRepository,
	campaigns *CampaignService,
	verifier *CodeVerifier,
	locker AccountLocker,
) *PointAccrualService {
	if locker == nil {
		locker = noopAccountLocker{}
	}
	return &PointAccrualService{
		loyaltyRepo: loyaltyRepo,
		churnRepo:   churnRepo,
		campaigns:   campaigns,
		verifier:    verifier,
		locker:      locker,
		now:         time.Now,
	}
}

// Credit 为顾客入账积分，同一幂等键只生效一次
func (s *PointAccrualService) Credit(ctx context.Context, input CreditInput) (*CreditResult, error) {
	input, err := normalizeCreditInput(input)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, input.CustomerID, input.MerchantID)
	if err != nil {
		return nil, err
	}
	defer release()

	var result CreditResult
	err = s.loyaltyRepo.Transaction(ctx, func(tx *gorm.DB) error {
		entry, replayed, err := s.creditTx(tx, input, s.now().UTC())
		if err != nil {
			return err
		}
		result = CreditResult{Entry: entry, Replayed: replayed}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 并发请求已写入同一幂等键，返回已提交的流水
		existing, lookupErr := s.findEntry(input.CustomerID, input.MerchantID, input.IdempotencyKey)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing == nil {
			return nil, ErrAccountLocked
		}
		metrics.LedgerReplaysTotal.WithLabelValues("credit").Inc()
		return &CreditResult{Entry: existing, Replayed: true}, nil
	}
	if err != nil {
		return nil, err
	}

	if result.Replayed {
		metrics.LedgerReplaysTotal.WithLabelValues("credit").Inc()
		logger.Infow("ledger_credit_replayed",
			"merchant_id", input.MerchantID,
			"customer_id", input.CustomerID,
			"idempotency_key", input.IdempotencyKey,
			"entry_id", result.Entry.ID,
		)
		return &result, nil
	}
	metrics.LedgerEntriesTotal.WithLabelValues(result.Entry.Reason).Inc()
	logger.Infow("ledger_credit_committed",
		"merchant_id", input.MerchantID,
		"customer_id", input.CustomerID,
		"account_id", result.Entry.LoyaltyAccountID,
		"entry_id", result.Entry.ID,
		"delta", result.Entry.Delta,
		"balance_after", result.Entry.BalanceAfter,
		"reason", result.Entry.Reason,
		"staff_id", input.StaffID,
	)
	return &result, nil
}

func (s *PointAccrualService) creditTx(tx *gorm.DB, input CreditInput, now time.Time) (*models.LedgerEntry, bool, error) {
	repo := s.loyaltyRepo.WithTx(tx)
	account, err := repo.EnsureAccountForUpdate(input.CustomerID, input.MerchantID, now)
	if err != nil {
		return nil, false, fmt.Errorf("ensure loyalty account: %w", err)
	}
	if account == nil {
		return nil, false, ErrAccountNotFound
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

	amount := input.Amount
	var campaignID *uint
	if input.CampaignID != 0 {
		campaign, _, created, err := s.campaigns.recordParticipationTx(tx, input.MerchantID, input.CampaignID, input.CustomerID, now)
		if err != nil {
			return nil, false, err
		}
		if input.Reason == constants.LedgerReasonCampaignBonus {
			if !created {
				return nil, false, ErrCampaignAlreadyJoined
			}
			if amount == 0 {
				amount = campaign.BonusPoints
			}
		}
		campaignID = &campaign.ID
	}
	if amount <= 0 {
		return nil, false, ErrInvalidAmount
	}

	var candidateID *uint
	if input.ChurnCandidateID != 0 {
		if err := s.applyChurnOffer(tx, input, now); err != nil {
			return nil, false, err
		}
		candidateID = &input.ChurnCandidateID
	}

	balance, err := repo.ApplyCredit(account.ID, amount, now)
	if err != nil {
		return nil, false, fmt.Errorf("apply credit: %w", err)
	}
	entry := &models.LedgerEntry{
		LoyaltyAccountID: account.ID,
		Delta:            amount,
		BalanceAfter:     balance,
		Reason:           input.Reason,
		IdempotencyKey:   input.IdempotencyKey,
		CampaignID:       campaignID,
		ChurnCandidateID: candidateID,
		CreatedByStaffID: input.StaffID,
		CreatedAt:        now,
	}
	if err := repo.CreateEntry(entry); err != nil {
		return nil, false, err
	}

	// 顾客已回店，关闭快照早于本次活跃时间的召回候选
	if _, err := s.churnRepo.WithTx(tx).ClearOpenBefore(input.CustomerID, input.MerchantID, now, now); err != nil {
		return nil, false, err
	}
	return entry, false, nil
}

func (s *PointAccrualService) applyChurnOffer(tx *gorm.DB, input CreditInput, now time.Time) error {
	repo := s.churnRepo.WithTx(tx)
	candidate, err := repo.GetByIDForUpdate(input.ChurnCandidateID)
	if err != nil {
		return err
	}
	if candidate == nil || candidate.MerchantID != input.MerchantID {
		return ErrChurnCandidateNotFound
	}
	if candidate.CustomerID != input.CustomerID || candidate.Status != constants.ChurnCandidateStatusSent {
		return ErrChurnCandidateInvalid
	}
	ok, err := repo.MarkRedeemed(candidate.ID, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrChurnCandidateInvalid
	}
	return nil
}

func (s *PointAccrualService) findEntry(customerID, merchantID, key string) (*models.LedgerEntry, error) {
	account, err := s.loyaltyRepo.GetAccount(customerID, merchantID)
	if err != nil || account == nil {
		return nil, err
	}
	return s.loyaltyRepo.GetEntryByKey(account.ID, key)
}

func normalizeCreditInput(input CreditInput) (CreditInput, error) {
	input.MerchantID = strings.TrimSpace(input.MerchantID)
	input.CustomerID = strings.TrimSpace(input.CustomerID)
	input.IdempotencyKey = strings.TrimSpace(input.IdempotencyKey)
	input.Reason = strings.TrimSpace(input.Reason)
	input.SessionToken = strings.TrimSpace(input.SessionToken)
	input.StaffID = strings.TrimSpace(input.StaffID)

	if input.MerchantID == "" {
		return input, ErrMerchantRequired
	}
	if input.CustomerID == "" {
		return input, ErrCustomerUnknown
	}
	if input.IdempotencyKey == "" {
		return input, ErrInvalidKey
	}
	if input.Reason == "" {
		input.Reason = constants.LedgerReasonScanCredit
	}
	switch input.Reason {
	case constants.LedgerReasonScanCredit, constants.LedgerReasonManualCredit:
	case constants.LedgerReasonCampaignBonus:
		if input.CampaignID == 0 {
			return input, ErrCampaignInvalid
		}
	default:
		return input, ErrInvalidReason
	}
	// 活动奖励允许不传数量，由活动配置决定
	if input.Amount < 0 || (input.Amount == 0 && input.Reason != constants.LedgerReasonCampaignBonus) {
		return input, ErrInvalidAmount
	}
	return input, nil
}
