package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/beanstamp/internal/constants"
	"github.com/beanstamp/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CampaignRepository 活动数据访问接口
type CampaignRepository interface {
	Create(campaign *models.Campaign) error
	GetByID(id uint) (*models.Campaign, error)
	GetByIDForUpdate(id uint) (*models.Campaign, error)
	List(filter CampaignListFilter) ([]models.Campaign, int64, error)
	TransitionStatus(id uint, from, to, pausedReason string, at time.Time) (bool, error)
	Resume(id uint, personLimit *int, at time.Time) (bool, error)
	IncrementParticipant(id uint, at time.Time) (bool, error)
	PauseIfAtCapacity(id uint, at time.Time) (bool, error)
	ActivateDue(now time.Time) (int64, error)
	EndDue(now time.Time) (int64, error)
	CreateParticipation(participation *models.CampaignParticipation) error
	GetParticipation(campaignID uint, customerID string) (*models.CampaignParticipation, error)
	CountParticipations(campaignID uint) (int64, error)
	ListParticipations(filter CampaignParticipationListFilter) ([]models.CampaignParticipation, int64, error)
	WithTx(tx *gorm.DB) CampaignRepository
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// GormCampaignRepository GORM 活动仓储实现
type GormCampaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository 创建活动仓储
func NewCampaignRepository(db *gorm.DB) *GormCampaignRepository {
	return &GormCampaignRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCampaignRepository) WithTx(tx *gorm.DB) CampaignRepository {
	if tx == nil {
		return r
	}
	return &GormCampaignRepository{db: tx}
}

// Transaction 执行事务
func (r *GormCampaignRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

// Create 创建活动
func (r *GormCampaignRepository) Create(campaign *models.Campaign) error {
	return r.db.Create(campaign).Error
}

// GetByID 按ID获取活动
func (r *GormCampaignRepository) GetByID(id uint) (*models.Campaign, error) {
	return r.findByID(r.db, id)
}

// GetByIDForUpdate 按ID加锁获取活动
func (r *GormCampaignRepository) GetByIDForUpdate(id uint) (*models.Campaign, error) {
	return r.findByID(r.db.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormCampaignRepository) findByID(query *gorm.DB, id uint) (*models.Campaign, error) {
	if id == 0 {
		return nil, nil
	}
	var campaign models.Campaign
	if err := query.First(&campaign, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

// List 分页查询活动
func (r *GormCampaignRepository) List(filter CampaignListFilter) ([]models.Campaign, int64, error) {
	query := r.db.Model(&models.Campaign{})
	if filter.MerchantID != "" {
		query = query.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var campaigns []models.Campaign
	if err := query.Order("start_at desc, id desc").Find(&campaigns).Error; err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

// TransitionStatus 仅当当前状态为 from 时切换状态，返回是否切换成功
func (r *GormCampaignRepository) TransitionStatus(id uint, from, to, pausedReason string, at time.Time) (bool, error) {
	result := r.db.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", id, strings.TrimSpace(from)).
		Updates(map[string]interface{}{
			"status":        strings.TrimSpace(to),
			"paused_reason": strings.TrimSpace(pausedReason),
			"updated_at":    at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Resume 将暂停中的活动恢复为进行中，可同时调整人数上限
func (r *GormCampaignRepository) Resume(id uint, personLimit *int, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":        constants.CampaignStatusActive,
		"paused_reason": "",
		"updated_at":    at,
	}
	if personLimit != nil {
		updates["person_limit"] = *personLimit
	}
	result := r.db.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", id, constants.CampaignStatusPaused).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IncrementParticipant 进行中且未满员时原子增加参与人数
func (r *GormCampaignRepository) IncrementParticipant(id uint, at time.Time) (bool, error) {
	result := r.db.Model(&models.Campaign{}).
		Where("id = ? AND status = ? AND (person_limit IS NULL OR participant_count < person_limit)",
			id, constants.CampaignStatusActive).
		Updates(map[string]interface{}{
			"participant_count": gorm.Expr("participant_count + 1"),
			"updated_at":        at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// PauseIfAtCapacity 达到人数上限时将进行中的活动置为容量暂停
func (r *GormCampaignRepository) PauseIfAtCapacity(id uint, at time.Time) (bool, error) {
	result := r.db.Model(&models.Campaign{}).
		Where("id = ? AND status = ? AND person_limit IS NOT NULL AND participant_count >= person_limit",
			id, constants.CampaignStatusActive).
		Updates(map[string]interface{}{
			"status":        constants.CampaignStatusPaused,
			"paused_reason": constants.CampaignPausedCapacity,
			"updated_at":    at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ActivateDue 将已到开始时间且未结束的待开始活动置为进行中
func (r *GormCampaignRepository) ActivateDue(now time.Time) (int64, error) {
	result := r.db.Model(&models.Campaign{}).
		Where("status = ? AND start_at <= ? AND end_at > ?", constants.CampaignStatusScheduled, now, now).
		Updates(map[string]interface{}{
			"status":     constants.CampaignStatusActive,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// EndDue 将已到结束时间的活动置为已结束
func (r *GormCampaignRepository) EndDue(now time.Time) (int64, error) {
	result := r.db.Model(&models.Campaign{}).
		Where("status IN ? AND end_at <= ?", []string{
			constants.CampaignStatusScheduled,
			constants.CampaignStatusActive,
			constants.CampaignStatusPaused,
		}, now).
		Updates(map[string]interface{}{
			"status":        constants.CampaignStatusEnded,
			"paused_reason": "",
			"updated_at":    now,
		})
	return result.RowsAffected, result.Error
}

// CreateParticipation 写入参与记录
func (r *GormCampaignRepository) CreateParticipation(participation *models.CampaignParticipation) error {
	return r.db.Create(participation).Error
}

// GetParticipation 获取顾客在活动中的参与记录
func (r *GormCampaignRepository) GetParticipation(campaignID uint, customerID string) (*models.CampaignParticipation, error) {
	customerID = strings.TrimSpace(customerID)
	if campaignID == 0 || customerID == "" {
		return nil, nil
	}
	var participation models.CampaignParticipation
	if err := r.db.Where("campaign_id = ? AND customer_id = ?", campaignID, customerID).
		First(&participation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &participation, nil
}

// CountParticipations 统计活动参与记录数
func (r *GormCampaignRepository) CountParticipations(campaignID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.CampaignParticipation{}).
		Where("campaign_id = ?", campaignID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListParticipations 分页查询参与记录
func (r *GormCampaignRepository) ListParticipations(filter CampaignParticipationListFilter) ([]models.CampaignParticipation, int64, error) {
	query := r.db.Model(&models.CampaignParticipation{})
	if filter.CampaignID != 0 {
		query = query.Where("campaign_id = ?", filter.CampaignID)
	}
	if filter.CustomerID != "" {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var participations []models.CampaignParticipation
	if err := query.Order("id asc").Find(&participations).Error; err != nil {
		return nil, 0, err
	}
	return participations, total, nil
}
