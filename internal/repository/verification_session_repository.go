package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/beanstamp/internal/models"

	"gorm.io/gorm"
)

// VerificationSessionRepository 顾客核验会话数据访问接口
type VerificationSessionRepository interface {
	Create(session *models.VerificationSession) error
	GetByToken(token string) (*models.VerificationSession, error)
	GetLatestByCustomer(customerID string) (*models.VerificationSession, error)
	GetLatestByBackupCode(code string) (*models.VerificationSession, error)
	BackupCodeInUse(code string, now time.Time) (bool, error)
	RevokeLiveByCustomer(customerID string, now time.Time) (int64, error)
	DeleteExpiredBefore(before time.Time) (int64, error)
	WithTx(tx *gorm.DB) VerificationSessionRepository
}

// GormVerificationSessionRepository GORM 核验会话仓储实现
type GormVerificationSessionRepository struct {
	db *gorm.DB
}

// NewVerificationSessionRepository 创建核验会话仓储
func NewVerificationSessionRepository(db *gorm.DB) *GormVerificationSessionRepository {
	return &GormVerificationSessionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormVerificationSessionRepository) WithTx(tx *gorm.DB) VerificationSessionRepository {
	if tx == nil {
		return r
	}
	return &GormVerificationSessionRepository{db: tx}
}

// Create 创建核验会话
func (r *GormVerificationSessionRepository) Create(session *models.VerificationSession) error {
	return r.db.Create(session).Error
}

// GetByToken 按令牌获取会话
func (r *GormVerificationSessionRepository) GetByToken(token string) (*models.VerificationSession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	var session models.VerificationSession
	if err := r.db.Where("token = ?", token).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// GetLatestByCustomer 获取顾客最近签发的会话
func (r *GormVerificationSessionRepository) GetLatestByCustomer(customerID string) (*models.VerificationSession, error) {
	return r.latest("customer_id = ?", strings.TrimSpace(customerID))
}

// GetLatestByBackupCode 获取备用码最近签发的会话
func (r *GormVerificationSessionRepository) GetLatestByBackupCode(code string) (*models.VerificationSession, error) {
	return r.latest("backup_code = ?", strings.TrimSpace(code))
}

func (r *GormVerificationSessionRepository) latest(cond string, value string) (*models.VerificationSession, error) {
	if value == "" {
		return nil, nil
	}
	var session models.VerificationSession
	result := r.db.Where(cond, value).Order("issued_at desc, id desc").Limit(1).Find(&session)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &session, nil
}

// BackupCodeInUse 备用码是否被仍有效的会话占用
func (r *GormVerificationSessionRepository) BackupCodeInUse(code string, now time.Time) (bool, error) {
	var count int64
	if err := r.db.Model(&models.VerificationSession{}).
		Where("backup_code = ? AND revoked_at IS NULL AND expires_at > ?", code, now).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// RevokeLiveByCustomer 作废顾客仍有效的会话
func (r *GormVerificationSessionRepository) RevokeLiveByCustomer(customerID string, now time.Time) (int64, error) {
	result := r.db.Model(&models.VerificationSession{}).
		Where("customer_id = ? AND revoked_at IS NULL AND expires_at > ?", customerID, now).
		Update("revoked_at", now)
	return result.RowsAffected, result.Error
}

// DeleteExpiredBefore 清理早已过期的会话
func (r *GormVerificationSessionRepository) DeleteExpiredBefore(before time.Time) (int64, error) {
	result := r.db.Where("expires_at < ?", before).Delete(&models.VerificationSession{})
	return result.RowsAffected, result.Error
}
