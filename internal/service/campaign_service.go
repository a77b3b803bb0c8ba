package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/beanstamp/internal/constants"
	"github.com/beanstamp/internal/logger"
	"github.com/beanstamp/internal/metrics"
	"github.com/beanstamp/internal/models"
	"github.com/beanstamp/internal/repository"

	"gorm.io/gorm"
)

// campaignTransitions 活动状态允许的切换
var campaignTransitions = map[string][]string{
	constants.CampaignStatusScheduled: {constants.CampaignStatusActive, constants.CampaignStatusEnded},
	constants.CampaignStatusActive:    {constants.CampaignStatusPaused, constants.CampaignStatusEnded},
	constants.CampaignStatusPaused:    {constants.CampaignStatusActive, constants.CampaignStatusEnded},
	constants.CampaignStatusEnded:     {},
}

func canTransition(from, to string) bool {
	for _, next := range campaignTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CreateCampaignInput 创建活动输入
type CreateCampaignInput struct {
	MerchantID         string
	Name               string
	Type               string
	StartAt            time.Time
	EndAt              time.Time
	TargetAudienceRule string
	PersonLimit        *int
	BonusPoints        int64
	Description        string
}

// SweepResult 定时巡检结果
type SweepResult struct {
	Activated int64 `json:"activated"`
	Ended     int64 `json:"ended"`
}

// CampaignService 活动生命周期引擎
type CampaignService struct {
	campaignRepo repository.CampaignRepository
	loyaltyRepo  repository.LoyaltyRepository
	churnRepo    repository.ChurnCandidateRepository
	now          func() time.Time
}

// NewCampaignService 创建活动服务
func NewCampaignService(
	campaignRepo repository.CampaignRepository,
	loyaltyRepo repository.LoyaltyRepository,
	churnRepo repository.ChurnCandidateRepository,
) *CampaignService {
	return &CampaignService{
		campaignRepo: campaignRepo,
		loyaltyRepo:  loyaltyRepo,
		churnRepo:    churnRepo,
		now:          time.Now,
	}
}

// CreateCampaign 创建活动，初始状态由时间窗口决定
func (s *CampaignService) CreateCampaign(ctx context.Context, input CreateCampaignInput) (*models.Campaign, error) {
	now := s.now().UTC()
	campaign, err := buildCampaign(input, now)
	if err != nil {
		return nil, err
	}
	if err := s.campaignRepo.Create(campaign); err != nil {
		return nil, err
	}
	logger.Infow("campaign_created",
		"campaign_id", campaign.ID,
		"merchant_id", campaign.MerchantID,
		"status", campaign.Status,
		"person_limit", campaign.PersonLimit,
	)
	return campaign, nil
}

func buildCampaign(input CreateCampaignInput, now time.Time) (*models.Campaign, error) {
	merchantID := strings.TrimSpace(input.MerchantID)
	name := strings.TrimSpace(input.Name)
	if merchantID == "" || name == "" {
		return nil, ErrCampaignInvalid
	}
	switch input.Type {
	case constants.CampaignTypeDiscount, constants.CampaignTypeReward, constants.CampaignTypeEvent:
	default:
		return nil, ErrCampaignInvalid
	}
	audience := strings.TrimSpace(input.TargetAudienceRule)
	if audience == "" {
		audience = constants.AudienceAll
	}
	if !validAudience(audience) {
		return nil, ErrCampaignInvalid
	}
	startAt := input.StartAt.UTC()
	endAt := input.EndAt.UTC()
	if startAt.IsZero() || !endAt.After(startAt) || !endAt.After(now) {
		return nil, ErrCampaignInvalid
	}
	if input.PersonLimit != nil && *input.PersonLimit <= 0 {
		return nil, ErrCampaignInvalid
	}
	if input.BonusPoints < 0 {
		return nil, ErrCampaignInvalid
	}

	campaign := &models.Campaign{
		MerchantID:         merchantID,
		Name:               name,
		Type:               input.Type,
		Status:             constants.CampaignStatusScheduled,
		StartAt:            startAt,
		EndAt:              endAt,
		TargetAudienceRule: audience,
		PersonLimit:        input.PersonLimit,
		BonusPoints:        input.BonusPoints,
		Description:        strings.TrimSpace(input.Description),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	campaign.Status = effectiveStatus(campaign, now)
	return campaign, nil
}

// GetCampaign 获取活动，读取时推进时间驱动的状态
func (s *CampaignService) GetCampaign(ctx context.Context, merchantID string, id uint) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if campaign == nil || !sameMerchant(campaign.MerchantID, merchantID) {
		return nil, ErrCampaignNotFound
	}
	if err := s.advance(s.campaignRepo, campaign, s.now().UTC()); err != nil {
		return nil, err
	}
	return campaign, nil
}

// ListCampaigns 分页查询活动，返回前推进每个活动的状态
func (s *CampaignService) ListCampaigns(ctx context.Context, filter repository.CampaignListFilter) ([]models.Campaign, int64, error) {
	now := s.now().UTC()
	if filter.Status != "" {
		// 按状态筛选前先落库到期切换，避免漏掉尚未推进的活动
		if _, err := s.Sweep(ctx, now); err != nil {
			return nil, 0, err
		}
	}
	campaigns, total, err := s.campaignRepo.List(filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range campaigns {
		if err := s.advance(s.campaignRepo, &campaigns[i], now); err != nil {
			return nil, 0, err
		}
	}
	return campaigns, total, nil
}

// ListParticipations 分页查询活动参与记录
func (s *CampaignService) ListParticipations(ctx context.Context, merchantID string, filter repository.CampaignParticipationListFilter) ([]models.CampaignParticipation, int64, error) {
	campaign, err := s.campaignRepo.GetByID(filter.CampaignID)
	if err != nil {
		return nil, 0, err
	}
	if campaign == nil || !sameMerchant(campaign.MerchantID, merchantID) {
		return nil, 0, ErrCampaignNotFound
	}
	return s.campaignRepo.ListParticipations(filter)
}

// PauseCampaign 店员手动暂停进行中的活动
func (s *CampaignService) PauseCampaign(ctx context.Context, merchantID string, id uint) (*models.Campaign, error) {
	var result *models.Campaign
	err := s.campaignRepo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.campaignRepo.WithTx(tx)
		now := s.now().UTC()
		campaign, err := s.lockCampaign(repo, merchantID, id, now)
		if err != nil {
			return err
		}
		switch campaign.Status {
		case constants.CampaignStatusEnded:
			return ErrCampaignTerminal
		case constants.CampaignStatusActive:
		default:
			return ErrCampaignInvalidTransition
		}
		if err := s.transition(repo, campaign, constants.CampaignStatusPaused, constants.CampaignPausedManual, now); err != nil {
			return err
		}
		result = campaign
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ResumeCampaign 店员手动恢复暂停的活动，可同时提高人数上限
func (s *CampaignService) ResumeCampaign(ctx context.Context, merchantID string, id uint, newPersonLimit *int) (*models.Campaign, error) {
	if newPersonLimit != nil && *newPersonLimit <= 0 {
		return nil, ErrCampaignInvalid
	}
	var result *models.Campaign
	err := s.campaignRepo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.campaignRepo.WithTx(tx)
		now := s.now().UTC()
		campaign, err := s.lockCampaign(repo, merchantID, id, now)
		if err != nil {
			return err
		}
		switch campaign.Status {
		case constants.CampaignStatusEnded:
			return ErrCampaignTerminal
		case constants.CampaignStatusPaused:
		default:
			return ErrCampaignInvalidTransition
		}

		limit := campaign.PersonLimit
		if newPersonLimit != nil {
			limit = newPersonLimit
		}
		if limit != nil && campaign.ParticipantCount >= *limit {
			return ErrCampaignFull
		}

		ok, err := repo.Resume(campaign.ID, newPersonLimit, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCampaignInvalidTransition
		}
		metrics.CampaignTransitionsTotal.WithLabelValues(campaign.Status, constants.CampaignStatusActive).Inc()
		logger.Infow("campaign_resumed",
			"campaign_id", campaign.ID,
			"previous_reason", campaign.PausedReason,
			"person_limit", limit,
		)
		campaign.Status = constants.CampaignStatusActive
		campaign.PausedReason = ""
		campaign.PersonLimit = limit
		campaign.UpdatedAt = now
		result = campaign
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordParticipation 记录顾客参与活动
func (s *CampaignService) RecordParticipation(ctx context.Context, merchantID string, campaignID uint, customerID string) (*models.CampaignParticipation, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, ErrCustomerUnknown
	}
	var result *models.CampaignParticipation
	err := s.campaignRepo.Transaction(ctx, func(tx *gorm.DB) error {
		_, participation, _, err := s.recordParticipationTx(tx, merchantID, campaignID, customerID, s.now().UTC())
		if err != nil {
			return err
		}
		result = participation
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, getErr := s.campaignRepo.GetParticipation(campaignID, customerID)
		if getErr == nil && existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// recordParticipationTx 在事务内记录参与，created 表示本次新增
func (s *CampaignService) recordParticipationTx(tx *gorm.DB, merchantID string, campaignID uint, customerID string, now time.Time) (*models.Campaign, *models.CampaignParticipation, bool, error) {
	repo := s.campaignRepo.WithTx(tx)
	campaign, err := s.lockCampaign(repo, merchantID, campaignID, now)
	if err != nil {
		return nil, nil, false, err
	}

	existing, err := repo.GetParticipation(campaign.ID, customerID)
	if err != nil {
		return nil, nil, false, err
	}
	if existing != nil {
		return campaign, existing, false, nil
	}

	switch campaign.Status {
	case constants.CampaignStatusActive:
	case constants.CampaignStatusEnded:
		return nil, nil, false, ErrCampaignTerminal
	case constants.CampaignStatusPaused:
		if campaign.IsAtCapacity() {
			return nil, nil, false, ErrCampaignFull
		}
		return nil, nil, false, ErrCampaignNotActive
	default:
		return nil, nil, false, ErrCampaignNotActive
	}

	if err := s.checkAudience(tx, campaign, customerID); err != nil {
		return nil, nil, false, err
	}

	participation := &models.CampaignParticipation{
		CampaignID: campaign.ID,
		CustomerID: customerID,
		JoinedAt:   now,
	}
	if err := repo.CreateParticipation(participation); err != nil {
		return nil, nil, false, err
	}
	ok, err := repo.IncrementParticipant(campaign.ID, now)
	if err != nil {
		return nil, nil, false, err
	}
	if !ok {
		return nil, nil, false, ErrCampaignFull
	}
	campaign.ParticipantCount++

	if campaign.IsAtCapacity() {
		paused, err := repo.PauseIfAtCapacity(campaign.ID, now)
		if err != nil {
			return nil, nil, false, err
		}
		if paused {
			metrics.CampaignTransitionsTotal.WithLabelValues(constants.CampaignStatusActive, constants.CampaignStatusPaused).Inc()
			logger.Infow("campaign_capacity_paused",
				"campaign_id", campaign.ID,
				"participant_count", campaign.ParticipantCount,
				"person_limit", *campaign.PersonLimit,
			)
			campaign.Status = constants.CampaignStatusPaused
			campaign.PausedReason = constants.CampaignPausedCapacity
		}
	}
	return campaign, participation, true, nil
}

// Sweep 批量推进到期活动的状态
func (s *CampaignService) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult
	err := s.campaignRepo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.campaignRepo.WithTx(tx)
		ended, err := repo.EndDue(now)
		if err != nil {
			return err
		}
		activated, err := repo.ActivateDue(now)
		if err != nil {
			return err
		}
		result = SweepResult{Activated: activated, Ended: ended}
		return nil
	})
	if err != nil {
		return SweepResult{}, err
	}
	if result.Activated > 0 {
		metrics.CampaignTransitionsTotal.WithLabelValues(constants.CampaignStatusScheduled, constants.CampaignStatusActive).Add(float64(result.Activated))
	}
	if result.Ended > 0 {
		metrics.CampaignTransitionsTotal.WithLabelValues("sweep", constants.CampaignStatusEnded).Add(float64(result.Ended))
	}
	return result, nil
}

func (s *CampaignService) lockCampaign(repo repository.CampaignRepository, merchantID string, id uint, now time.Time) (*models.Campaign, error) {
	campaign, err := repo.GetByIDForUpdate(id)
	if err != nil {
		return nil, err
	}
	if campaign == nil || !sameMerchant(campaign.MerchantID, merchantID) {
		return nil, ErrCampaignNotFound
	}
	if err := s.advance(repo, campaign, now); err != nil {
		return nil, err
	}
	return campaign, nil
}

// advance 将活动推进到当前时间对应的状态
func (s *CampaignService) advance(repo repository.CampaignRepository, campaign *models.Campaign, now time.Time) error {
	target := effectiveStatus(campaign, now)
	if target == campaign.Status {
		return nil
	}
	return s.transition(repo, campaign, target, "", now)
}

func (s *CampaignService) transition(repo repository.CampaignRepository, campaign *models.Campaign, to, reason string, now time.Time) error {
	from := campaign.Status
	if !canTransition(from, to) {
		return ErrCampaignInvalidTransition
	}
	ok, err := repo.TransitionStatus(campaign.ID, from, to, reason, now)
	if err != nil {
		return err
	}
	if !ok {
		// 状态已被并发修改，以库中数据为准
		latest, err := repo.GetByID(campaign.ID)
		if err != nil {
			return err
		}
		if latest == nil {
			return ErrCampaignNotFound
		}
		*campaign = *latest
		if campaign.Status == to {
			return nil
		}
		return ErrCampaignInvalidTransition
	}
	metrics.CampaignTransitionsTotal.WithLabelValues(from, to).Inc()
	logger.Infow("campaign_status_changed",
		"campaign_id", campaign.ID,
		"from", from,
		"to", to,
		"paused_reason", reason,
	)
	campaign.Status = to
	campaign.PausedReason = reason
	campaign.UpdatedAt = now
	return nil
}

// effectiveStatus 按时间窗口计算活动当前应处的状态
func effectiveStatus(campaign *models.Campaign, now time.Time) string {
	if campaign.Status == constants.CampaignStatusEnded || !now.Before(campaign.EndAt) {
		return constants.CampaignStatusEnded
	}
	if campaign.Status == constants.CampaignStatusScheduled && !now.Before(campaign.StartAt) {
		return constants.CampaignStatusActive
	}
	return campaign.Status
}

func (s *CampaignService) checkAudience(tx *gorm.DB, campaign *models.Campaign, customerID string) error {
	switch campaign.TargetAudienceRule {
	case constants.AudienceAll, "":
		return nil
	case constants.AudienceNew, constants.AudienceReturning:
		account, err := s.loyaltyRepo.WithTx(tx).GetAccount(customerID, campaign.MerchantID)
		if err != nil {
			return err
		}
		visits := 0
		if account != nil {
			visits = account.VisitCount
		}
		if campaign.TargetAudienceRule == constants.AudienceNew && visits <= 1 {
			return nil
		}
		if campaign.TargetAudienceRule == constants.AudienceReturning && visits >= 2 {
			return nil
		}
		return ErrCampaignAudienceMismatch
	case constants.AudienceAtRisk:
		open, err := s.churnRepo.WithTx(tx).HasOpen(customerID, campaign.MerchantID)
		if err != nil {
			return err
		}
		if !open {
			return ErrCampaignAudienceMismatch
		}
		return nil
	}
	return ErrCampaignAudienceMismatch
}

func validAudience(rule string) bool {
	switch rule {
	case constants.AudienceAll, constants.AudienceNew, constants.AudienceReturning, constants.AudienceAtRisk:
		return true
	}
	return false
}

// sameMerchant 空 merchantID 表示不限定商户（内部调用）
func sameMerchant(owner, merchantID string) bool {
	merchantID = strings.TrimSpace(merchantID)
	return merchantID == "" || owner == merchantID
}
