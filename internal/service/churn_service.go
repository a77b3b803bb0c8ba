package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/beanstamp/internal/cache"
	"github.com/beanstamp/internal/constants"
	"github.com/beanstamp/internal/logger"
	"github.com/beanstamp/internal/metrics"
	"github.com/beanstamp/internal/models"
	"github.com/beanstamp/internal/repository"

	"gorm.io/gorm"
)

const (
	defaultChurnBatchSize = 200
	churnDispatchLockTTL  = 2 * time.Minute
)

// ChurnOptions 流失评分参数
type ChurnOptions struct {
	TrailingWindowDays  int
	DefaultIntervalDays int
	BatchSize           int
}

// ChurnPassResult 单次评分结果
type ChurnPassResult struct {
	Merchants int `json:"merchants"`
	Scored    int `json:"scored"`
	Flagged   int `json:"flagged"`
	Cleared   int `json:"cleared"`
}

// DispatchResult 召回优惠发送结果
type DispatchResult struct {
	Sent      int `json:"sent"`
	Remaining int `json:"remaining"`
}

// ChurnService 流失召回调度服务
type ChurnService struct {
	loyaltyRepo repository.LoyaltyRepository
	churnRepo   repository.ChurnCandidateRepository
	settings    *MerchantSettingService
	scorer      RiskScorer
	sender      OfferSender
	options     ChurnOptions
	now         func() time.Time

	// 商户 ID -> *sync.Mutex
	dispatchMu sync.Map
}

// NewChurnService 创建流失召回服务
func NewChurnService(
	loyaltyRepo repository.LoyaltyRepository,
	churnRepo repository.ChurnCandidateRepository,
	settings *MerchantSettingService,
	scorer RiskScorer,
	sender OfferSender,
	options ChurnOptions,
) *ChurnService {
	if scorer == nil {
		scorer = NewThresholdRiskScorer()
	}
	if sender == nil {
		sender = LogOfferSender{}
	}
	if options.BatchSize <= 0 {
		options.BatchSize = defaultChurnBatchSize
	}
	if options.TrailingWindowDays <= 0 {
		options.TrailingWindowDays = 90
	}
	return &ChurnService{
		loyaltyRepo: loyaltyRepo,
		churnRepo:   churnRepo,
		settings:    settings,
		scorer:      scorer,
		sender:      sender,
		options:     options,
		now:         time.Now,
	}
}

// RunScoringPass 对商户（为空则全部商户）执行一轮流失评分
func (s *ChurnService) RunScoringPass(ctx context.Context, merchantID string) (ChurnPassResult, error) {
	merchantIDs := []string{strings.TrimSpace(merchantID)}
	if merchantIDs[0] == "" {
		ids, err := s.loyaltyRepo.ListMerchantIDs()
		if err != nil {
			return ChurnPassResult{}, err
		}
		merchantIDs = ids
	}

	snapshot := s.now().UTC()
	var result ChurnPassResult
	for _, id := range merchantIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.scoreMerchant(ctx, id, snapshot, &result); err != nil {
			return result, err
		}
		result.Merchants++
	}
	logger.Infow("churn_scoring_pass_finished",
		"merchant_id", merchantID,
		"merchants", result.Merchants,
		"scored", result.Scored,
		"flagged", result.Flagged,
		"cleared", result.Cleared,
	)
	return result, nil
}

func (s *ChurnService) scoreMerchant(ctx context.Context, merchantID string, snapshot time.Time, result *ChurnPassResult) error {
	var afterID uint
	for {
		accounts, _, err := s.loyaltyRepo.ListAccounts(repository.LoyaltyAccountListFilter{
			MerchantID: merchantID,
			AfterID:    afterID,
			Page:       1,
			PageSize:   s.options.BatchSize,
		})
		if err != nil {
			return err
		}
		for i := range accounts {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.scoreAccount(ctx, accounts[i].ID, snapshot, result); err != nil {
				return err
			}
			afterID = accounts[i].ID
		}
		if len(accounts) < s.options.BatchSize {
			return nil
		}
	}
}

// scoreAccount 在账户锁内评分，避免与入账清理候选交错
func (s *ChurnService) scoreAccount(ctx context.Context, accountID uint, snapshot time.Time, result *ChurnPassResult) error {
	return s.loyaltyRepo.Transaction(ctx, func(tx *gorm.DB) error {
		loyaltyRepo := s.loyaltyRepo.WithTx(tx)
		churnRepo := s.churnRepo.WithTx(tx)

		account, err := loyaltyRepo.GetAccountByID(accountID)
		if err != nil || account == nil {
			return err
		}
		account, err = loyaltyRepo.GetAccountForUpdate(account.CustomerID, account.MerchantID)
		if err != nil || account == nil {
			return err
		}
		since := snapshot.AddDate(0, 0, -s.options.TrailingWindowDays)
		visits, err := loyaltyRepo.ListAccrualTimesSince(account.ID, since)
		if err != nil {
			return err
		}
		score := s.scorer.Score(
			DaysBetween(account.LastActivityAt, snapshot),
			ExpectedVisitInterval(visits, s.options.DefaultIntervalDays),
		)
		result.Scored++

		existing, err := churnRepo.GetByCustomerMerchant(account.CustomerID, account.MerchantID)
		if err != nil {
			return err
		}
		if !score.Flagged() {
			if existing != nil && existing.IsOpen() {
				existing.Status = constants.ChurnCandidateStatusCleared
				existing.UpdatedAt = snapshot
				if err := churnRepo.Update(existing); err != nil {
					return err
				}
				result.Cleared++
			}
			return nil
		}

		candidate := supersedeCandidate(existing, account, score, snapshot)
		if candidate.ID == 0 {
			err = churnRepo.Create(candidate)
		} else {
			err = churnRepo.Update(candidate)
		}
		if err != nil {
			return err
		}
		result.Flagged++
		metrics.ChurnCandidatesTotal.WithLabelValues(score.Level).Inc()
		return nil
	})
}

// supersedeCandidate 用本轮评分覆盖候选；同一流失周期内保留审批与发送状态
func supersedeCandidate(existing *models.ChurnCandidate, account *models.LoyaltyAccount, score RiskScore, snapshot time.Time) *models.ChurnCandidate {
	candidate := existing
	sameEpisode := existing != nil && existing.IsOpen() && existing.LastActivityAt.Equal(account.LastActivityAt)
	if candidate == nil {
		candidate = &models.ChurnCandidate{
			CustomerID: account.CustomerID,
			MerchantID: account.MerchantID,
			CreatedAt:  snapshot,
		}
	}
	if !sameEpisode {
		candidate.Status = constants.ChurnCandidateStatusPending
		candidate.ApprovedAt = nil
		candidate.ApprovedByStaffID = ""
		candidate.OfferSentAt = nil
		candidate.OfferRedeemedAt = nil
	}
	candidate.LoyaltyAccountID = account.ID
	candidate.DaysSinceLastVisit = score.DaysSinceLastVisit
	candidate.ExpectedIntervalDays = models.NewRatioFromDecimal(score.ExpectedIntervalDays)
	candidate.RiskMultiplier = models.NewRatioFromDecimal(score.Multiplier)
	candidate.RiskLevel = score.Level
	if candidate.OfferSentAt == nil {
		candidate.SuggestedOfferType = score.OfferType
	}
	candidate.SnapshotAt = snapshot
	candidate.LastActivityAt = account.LastActivityAt
	candidate.UpdatedAt = snapshot
	return candidate
}

// ListCandidates 分页查询召回候选
func (s *ChurnService) ListCandidates(ctx context.Context, filter repository.ChurnCandidateListFilter) ([]models.ChurnCandidate, int64, error) {
	if strings.TrimSpace(filter.MerchantID) == "" {
		return nil, 0, ErrMerchantRequired
	}
	return s.churnRepo.List(filter)
}

// ApproveCandidate 店长审批召回候选
func (s *ChurnService) ApproveCandidate(ctx context.Context, merchantID string, id uint, staffID string) (*models.ChurnCandidate, error) {
	candidate, err := s.churnRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if candidate == nil || !sameMerchant(candidate.MerchantID, merchantID) {
		return nil, ErrChurnCandidateNotFound
	}
	ok, err := s.churnRepo.Approve(candidate.ID, staffID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrChurnCandidateInvalid
	}
	logger.Infow("churn_candidate_approved", "candidate_id", candidate.ID, "staff_id", staffID)
	return s.churnRepo.GetByID(candidate.ID)
}

// DispatchOffers 在每日上限与审批要求内发送召回优惠
func (s *ChurnService) DispatchOffers(ctx context.Context, merchantID string) (DispatchResult, error) {
	policy, err := s.settings.Resolve(ctx, merchantID)
	if err != nil {
		return DispatchResult{}, err
	}
	if policy.ChurnDailySendCap <= 0 {
		return DispatchResult{}, nil
	}

	release, err := s.lockDispatch(ctx, policy.MerchantID)
	if err != nil {
		return DispatchResult{}, err
	}
	defer release()

	now := s.now().UTC()
	sentToday, err := s.churnRepo.CountSentSince(policy.MerchantID, policy.DayStart(now))
	if err != nil {
		return DispatchResult{}, err
	}
	remaining := policy.ChurnDailySendCap - int(sentToday)
	if remaining <= 0 {
		return DispatchResult{}, nil
	}

	candidates, err := s.churnRepo.ListDispatchable(policy.MerchantID, policy.ChurnManualApproval, remaining)
	if err != nil {
		return DispatchResult{}, err
	}

	var result DispatchResult
	for i := range candidates {
		candidate := candidates[i]
		sent, err := s.dispatchOne(ctx, &candidate, now)
		if err != nil {
			return result, err
		}
		if sent {
			result.Sent++
			remaining--
		}
	}
	result.Remaining = remaining
	logger.Infow("churn_offers_dispatched",
		"merchant_id", policy.MerchantID,
		"sent", result.Sent,
		"remaining", result.Remaining,
		"manual_approval", policy.ChurnManualApproval,
	)
	return result, nil
}

// lockDispatch 同一商户的计数与发送串行执行
// 进程内互斥等待，跨进程依赖 Redis 锁，被占用时返回 ErrChurnDispatchBusy
func (s *ChurnService) lockDispatch(ctx context.Context, merchantID string) (func(), error) {
	value, _ := s.dispatchMu.LoadOrStore(merchantID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()

	key := cache.ChurnDispatchLockKey(merchantID)
	owner, ok, err := cache.TryLock(ctx, key, churnDispatchLockTTL)
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	if !ok {
		mu.Unlock()
		return nil, ErrChurnDispatchBusy
	}
	return func() {
		if err := cache.Unlock(context.Background(), key, owner); err != nil {
			logger.Warnw("churn_dispatch_lock_release_failed", "lock_key", key, "error", err)
		}
		mu.Unlock()
	}, nil
}

// dispatchOne 标记发送与外发投递在同一事务，投递失败时回滚标记
func (s *ChurnService) dispatchOne(ctx context.Context, candidate *models.ChurnCandidate, now time.Time) (bool, error) {
	sent := false
	err := s.churnRepo.Transaction(ctx, func(tx *gorm.DB) error {
		ok, err := s.churnRepo.WithTx(tx).MarkSent(candidate.ID, now)
		if err != nil || !ok {
			return err
		}
		if err := s.sender.SendChurnOffer(ctx, ChurnOffer{
			CandidateID: candidate.ID,
			CustomerID:  candidate.CustomerID,
			MerchantID:  candidate.MerchantID,
			OfferType:   candidate.SuggestedOfferType,
			RiskLevel:   candidate.RiskLevel,
		}); err != nil {
			return err
		}
		sent = true
		return nil
	})
	if err != nil {
		logger.Warnw("churn_offer_dispatch_failed", "candidate_id", candidate.ID, "error", err)
		return false, err
	}
	if sent {
		metrics.ChurnOffersSentTotal.Inc()
	}
	return sent, nil
}
