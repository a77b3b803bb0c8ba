package repository

import (
	"errors"
	"strings"

	"github.com/beanstamp/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MerchantSettingRepository 商户设置数据访问接口
type MerchantSettingRepository interface {
	Get(merchantID string) (*models.MerchantSetting, error)
	Upsert(setting *models.MerchantSetting) error
	WithTx(tx *gorm.DB) MerchantSettingRepository
}

// GormMerchantSettingRepository GORM 商户设置仓储实现
type GormMerchantSettingRepository struct {
	db *gorm.DB
}

// NewMerchantSettingRepository 创建商户设置仓储
func NewMerchantSettingRepository(db *gorm.DB) *GormMerchantSettingRepository {
	return &GormMerchantSettingRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMerchantSettingRepository) WithTx(tx *gorm.DB) MerchantSettingRepository {
	if tx == nil {
		return r
	}
	return &GormMerchantSettingRepository{db: tx}
}

// Get 获取商户设置，不存在返回 nil
func (r *GormMerchantSettingRepository) Get(merchantID string) (*models.MerchantSetting, error) {
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return nil, nil
	}
	var setting models.MerchantSetting
	if err := r.db.Where("merchant_id = ?", merchantID).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &setting, nil
}

// Upsert 写入或覆盖商户设置
func (r *GormMerchantSettingRepository) Upsert(setting *models.MerchantSetting) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "merchant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"daily_redemption_limit",
			"churn_daily_send_cap",
			"churn_manual_approval",
			"timezone",
			"updated_at",
		}),
	}).Create(setting).Error
}
