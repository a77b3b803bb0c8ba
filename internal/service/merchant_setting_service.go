package service

import (
	"context"
	"strings"
	"time"

	"github.com/beanstamp/internal/cache"
	"github.com/beanstamp/internal/logger"
	"github.com/beanstamp/internal/models"
	"github.com/beanstamp/internal/repository"
)

// MerchantSettingDefaults 商户未配置时使用的默认值
type MerchantSettingDefaults struct {
	DailyRedemptionLimit int
	ChurnDailySendCap    int
	ChurnManualApproval  bool
	Timezone             string
}

// MerchantPolicy 商户生效中的运营策略
type MerchantPolicy struct {
	MerchantID           string
	DailyRedemptionLimit int
	ChurnDailySendCap    int
	ChurnManualApproval  bool
	Location             *time.Location
}

// DayStart 返回 now 所在商户自然日的零点（UTC）
func (p *MerchantPolicy) DayStart(now time.Time) time.Time {
	loc := time.UTC
	if p != nil && p.Location != nil {
		loc = p.Location
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).UTC()
}

// MerchantSettingInput 商户设置更新输入
type MerchantSettingInput struct {
	MerchantID           string
	DailyRedemptionLimit int
	ChurnDailySendCap    int
	ChurnManualApproval  bool
	Timezone             string
}

// MerchantSettingService 商户设置服务
type MerchantSettingService struct {
	repo     repository.MerchantSettingRepository
	defaults MerchantSettingDefaults
}

// NewMerchantSettingService 创建商户设置服务
func NewMerchantSettingService(repo repository.MerchantSettingRepository, defaults MerchantSettingDefaults) *MerchantSettingService {
	return &MerchantSettingService{repo: repo, defaults: defaults}
}

// Resolve 获取商户生效策略，未配置时回退到默认值
func (s *MerchantSettingService) Resolve(ctx context.Context, merchantID string) (*MerchantPolicy, error) {
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return nil, ErrMerchantRequired
	}

	snapshot, hit, err := cache.GetMerchantSetting(ctx, merchantID)
	if err != nil {
		logger.Warnw("merchant_setting_cache_read_failed", "merchant_id", merchantID, "error", err)
	}
	if !hit {
		setting, err := s.repo.Get(merchantID)
		if err != nil {
			return nil, err
		}
		snapshot = s.snapshotOf(merchantID, setting)
		if err := cache.SetMerchantSetting(ctx, snapshot); err != nil {
			logger.Warnw("merchant_setting_cache_write_failed", "merchant_id", merchantID, "error", err)
		}
	}
	return s.policyOf(snapshot), nil
}

// Get 获取商户设置（含默认值回退）
func (s *MerchantSettingService) Get(ctx context.Context, merchantID string) (*models.MerchantSetting, error) {
	policy, err := s.Resolve(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	return &models.MerchantSetting{
		MerchantID:           policy.MerchantID,
		DailyRedemptionLimit: policy.DailyRedemptionLimit,
		ChurnDailySendCap:    policy.ChurnDailySendCap,
		ChurnManualApproval:  policy.ChurnManualApproval,
		Timezone:             policy.Location.String(),
	}, nil
}

// Update 更新商户设置
func (s *MerchantSettingService) Update(ctx context.Context, input MerchantSettingInput) (*models.MerchantSetting, error) {
	merchantID := strings.TrimSpace(input.MerchantID)
	if merchantID == "" {
		return nil, ErrMerchantRequired
	}
	if input.DailyRedemptionLimit < 0 || input.ChurnDailySendCap < 0 {
		return nil, ErrMerchantLimitSign
	}
	timezone := strings.TrimSpace(input.Timezone)
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return nil, ErrMerchantTimezone
		}
	}

	setting := &models.MerchantSetting{
		MerchantID:           merchantID,
		DailyRedemptionLimit: input.DailyRedemptionLimit,
		ChurnDailySendCap:    input.ChurnDailySendCap,
		ChurnManualApproval:  input.ChurnManualApproval,
		Timezone:             timezone,
		UpdatedAt:            time.Now().UTC(),
	}
	if err := s.repo.Upsert(setting); err != nil {
		return nil, err
	}
	if err := cache.DelMerchantSetting(ctx, merchantID); err != nil {
		logger.Warnw("merchant_setting_cache_invalidate_failed", "merchant_id", merchantID, "error", err)
	}
	logger.Infow("merchant_setting_updated",
		"merchant_id", merchantID,
		"daily_redemption_limit", setting.DailyRedemptionLimit,
		"churn_daily_send_cap", setting.ChurnDailySendCap,
		"churn_manual_approval", setting.ChurnManualApproval,
		"timezone", setting.Timezone,
	)
	return setting, nil
}

func (s *MerchantSettingService) snapshotOf(merchantID string, setting *models.MerchantSetting) *cache.MerchantSettingSnapshot {
	if setting == nil {
		return &cache.MerchantSettingSnapshot{
			MerchantID:           merchantID,
			DailyRedemptionLimit: s.defaults.DailyRedemptionLimit,
			ChurnDailySendCap:    s.defaults.ChurnDailySendCap,
			ChurnManualApproval:  s.defaults.ChurnManualApproval,
			Timezone:             s.defaults.Timezone,
		}
	}
	timezone := setting.Timezone
	if timezone == "" {
		timezone = s.defaults.Timezone
	}
	return &cache.MerchantSettingSnapshot{
		MerchantID:           merchantID,
		DailyRedemptionLimit: setting.DailyRedemptionLimit,
		ChurnDailySendCap:    setting.ChurnDailySendCap,
		ChurnManualApproval:  setting.ChurnManualApproval,
		Timezone:             timezone,
		Persisted:            true,
	}
}

func (s *MerchantSettingService) policyOf(snapshot *cache.MerchantSettingSnapshot) *MerchantPolicy {
	return &MerchantPolicy{
		MerchantID:           snapshot.MerchantID,
		DailyRedemptionLimit: snapshot.DailyRedemptionLimit,
		ChurnDailySendCap:    snapshot.ChurnDailySendCap,
		ChurnManualApproval:  snapshot.ChurnManualApproval,
		Location:             loadLocation(snapshot.Timezone),
	}
}

func loadLocation(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warnw("merchant_timezone_invalid", "timezone", name, "error", err)
		return time.UTC
	}
	return loc
}
