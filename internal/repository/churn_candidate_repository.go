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

// ChurnCandidateRepository 流失召回候选数据访问接口
type ChurnCandidateRepository interface {
	GetByID(id uint) (*models.ChurnCandidate, error)
	GetByIDForUpdate(id uint) (*models.ChurnCandidate, error)
	GetByCustomerMerchant(customerID, merchantID string) (*models.ChurnCandidate, error)
	Create(candidate *models.ChurnCandidate) error
	Update(candidate *models.ChurnCandidate) error
	List(filter ChurnCandidateListFilter) ([]models.ChurnCandidate, int64, error)
	ListDispatchable(merchantID string, requireApproval bool, limit int) ([]models.ChurnCandidate, error)
	CountSentSince(merchantID string, since time.Time) (int64, error)
	HasOpen(customerID, merchantID string) (bool, error)
	Approve(id uint, staffID string, at time.Time) (bool, error)
	MarkSent(id uint, at time.Time) (bool, error)
	MarkRedeemed(id uint, at time.Time) (bool, error)
	ClearOpenBefore(customerID, merchantID string, before time.Time, at time.Time) (int64, error)
	WithTx(tx *gorm.DB) ChurnCandidateRepository
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// GormChurnCandidateRepository GORM 流失召回候选仓储实现
type GormChurnCandidateRepository struct {
	db *gorm.DB
}

// NewChurnCandidateRepository 创建流失召回候选仓储
func NewChurnCandidateRepository(db *gorm.DB) *GormChurnCandidateRepository {
	return &GormChurnCandidateRepository{db: db}
}

// WithTx 绑定事务
func (r *GormChurnCandidateRepository) WithTx(tx *gorm.DB) ChurnCandidateRepository {
	if tx == nil {
		return r
	}
	return &GormChurnCandidateRepository{db: tx}
}

// Transaction 执行事务
func (r *GormChurnCandidateRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

// GetByID 按ID获取候选
func (r *GormChurnCandidateRepository) GetByID(id uint) (*models.ChurnCandidate, error) {
	return r.findByID(r.db, id)
}

// GetByIDForUpdate 按ID加锁获取候选
func (r *GormChurnCandidateRepository) GetByIDForUpdate(id uint) (*models.ChurnCandidate, error) {
	return r.findByID(r.db.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormChurnCandidateRepository) findByID(query *gorm.DB, id uint) (*models.ChurnCandidate, error) {
	if id == 0 {
		return nil, nil
	}
	var candidate models.ChurnCandidate
	if err := query.First(&candidate, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &candidate, nil
}

// GetByCustomerMerchant 获取顾客在商户下的候选
func (r *GormChurnCandidateRepository) GetByCustomerMerchant(customerID, merchantID string) (*models.ChurnCandidate, error) {
	customerID = strings.TrimSpace(customerID)
	merchantID = strings.TrimSpace(merchantID)
	if customerID == "" || merchantID == "" {
		return nil, nil
	}
	var candidate models.ChurnCandidate
	if err := r.db.Where("customer_id = ? AND merchant_id = ?", customerID, merchantID).
		First(&candidate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &candidate, nil
}

// Create 创建候选
func (r *GormChurnCandidateRepository) Create(candidate *models.ChurnCandidate) error {
	return r.db.Create(candidate).Error
}

// Update 保存候选
func (r *GormChurnCandidateRepository) Update(candidate *models.ChurnCandidate) error {
	return r.db.Save(candidate).Error
}

// List 分页查询候选（高风险优先）
func (r *GormChurnCandidateRepository) List(filter ChurnCandidateListFilter) ([]models.ChurnCandidate, int64, error) {
	query := r.db.Model(&models.ChurnCandidate{})
	if filter.MerchantID != "" {
		query = query.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.RiskLevel != "" {
		query = query.Where("risk_level = ?", filter.RiskLevel)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var candidates []models.ChurnCandidate
	if err := query.Order("risk_multiplier desc, id asc").Find(&candidates).Error; err != nil {
		return nil, 0, err
	}
	return candidates, total, nil
}

// ListDispatchable 获取可发送召回优惠的候选
func (r *GormChurnCandidateRepository) ListDispatchable(merchantID string, requireApproval bool, limit int) ([]models.ChurnCandidate, error) {
	if limit <= 0 {
		return []models.ChurnCandidate{}, nil
	}
	statuses := []string{constants.ChurnCandidateStatusApproved}
	if !requireApproval {
		statuses = append(statuses, constants.ChurnCandidateStatusPending)
	}
	var candidates []models.ChurnCandidate
	if err := r.db.Where("merchant_id = ? AND status IN ? AND offer_sent_at IS NULL", merchantID, statuses).
		Order("risk_multiplier desc, id asc").
		Limit(limit).
		Find(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, nil
}

// CountSentSince 统计指定时间后已发送的召回优惠数
func (r *GormChurnCandidateRepository) CountSentSince(merchantID string, since time.Time) (int64, error) {
	var count int64
	if err := r.db.Model(&models.ChurnCandidate{}).
		Where("merchant_id = ? AND offer_sent_at >= ?", merchantID, since).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// HasOpen 顾客在商户下是否存在未关闭的候选
func (r *GormChurnCandidateRepository) HasOpen(customerID, merchantID string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.ChurnCandidate{}).
		Where("customer_id = ? AND merchant_id = ? AND status IN ?", customerID, merchantID, openCandidateStatuses()).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Approve 审批待处理候选
func (r *GormChurnCandidateRepository) Approve(id uint, staffID string, at time.Time) (bool, error) {
	result := r.db.Model(&models.ChurnCandidate{}).
		Where("id = ? AND status = ?", id, constants.ChurnCandidateStatusPending).
		Updates(map[string]interface{}{
			"status":               constants.ChurnCandidateStatusApproved,
			"approved_at":          at,
			"approved_by_staff_id": strings.TrimSpace(staffID),
			"updated_at":           at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkSent 标记召回优惠已发送，仅对未发送的候选生效
func (r *GormChurnCandidateRepository) MarkSent(id uint, at time.Time) (bool, error) {
	result := r.db.Model(&models.ChurnCandidate{}).
		Where("id = ? AND offer_sent_at IS NULL AND status IN ?", id, []string{
			constants.ChurnCandidateStatusPending,
			constants.ChurnCandidateStatusApproved,
		}).
		Updates(map[string]interface{}{
			"status":        constants.ChurnCandidateStatusSent,
			"offer_sent_at": at,
			"updated_at":    at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkRedeemed 标记召回优惠已核销
func (r *GormChurnCandidateRepository) MarkRedeemed(id uint, at time.Time) (bool, error) {
	result := r.db.Model(&models.ChurnCandidate{}).
		Where("id = ? AND status = ?", id, constants.ChurnCandidateStatusSent).
		Updates(map[string]interface{}{
			"status":            constants.ChurnCandidateStatusRedeemed,
			"offer_redeemed_at": at,
			"updated_at":        at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ClearOpenBefore 顾客回店后关闭快照早于 before 的候选
func (r *GormChurnCandidateRepository) ClearOpenBefore(customerID, merchantID string, before time.Time, at time.Time) (int64, error) {
	result := r.db.Model(&models.ChurnCandidate{}).
		Where("customer_id = ? AND merchant_id = ? AND status IN ? AND snapshot_at < ?",
			customerID, merchantID, openCandidateStatuses(), before).
		Updates(map[string]interface{}{
			"status":     constants.ChurnCandidateStatusCleared,
			"updated_at": at,
		})
	return result.RowsAffected, result.Error
}

func openCandidateStatuses() []string {
	return []string{
		constants.ChurnCandidateStatusPending,
		constants.ChurnCandidateStatusApproved,
		constants.ChurnCandidateStatusSent,
	}
}
