package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/beanstamp/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoyaltyRepository 积分账户与流水数据访问接口
type LoyaltyRepository interface {
	GetAccount(customerID, merchantID string) (*models.LoyaltyAccount, error)
	GetAccountForUpdate(customerID, merchantID string) (*models.LoyaltyAccount, error)
	GetAccountByID(id uint) (*models.LoyaltyAccount, error)
	EnsureAccountForUpdate(customerID, merchantID string, now time.Time) (*models.LoyaltyAccount, error)
	ListAccounts(filter LoyaltyAccountListFilter) ([]models.LoyaltyAccount, int64, error)
	ListAccountsByCustomer(customerID string) ([]models.LoyaltyAccount, error)
	ListMerchantIDs() ([]string, error)
	ApplyCredit(accountID uint, delta int64, at time.Time) (int64, error)
	ApplyDebit(accountID uint, cost int64, at time.Time) (int64, bool, error)
	CreateEntry(entry *models.LedgerEntry) error
	GetEntryByKey(accountID uint, idempotencyKey string) (*models.LedgerEntry, error)
	ListEntries(filter LedgerEntryListFilter) ([]models.LedgerEntry, int64, error)
	SumDeltas(accountID uint) (int64, error)
	CountEntriesSince(accountID uint, reason string, since time.Time) (int64, error)
	ListAccrualTimesSince(accountID uint, since time.Time) ([]time.Time, error)
	WithTx(tx *gorm.DB) LoyaltyRepository
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// GormLoyaltyRepository GORM 积分仓储实现
type GormLoyaltyRepository struct {
	db *gorm.DB
}

// NewLoyaltyRepository 创建积分仓储
func NewLoyaltyRepository(db *gorm.DB) *GormLoyaltyRepository {
	return &GormLoyaltyRepository{db: db}
}

// WithTx 绑定事务
func (r *GormLoyaltyRepository) WithTx(tx *gorm.DB) LoyaltyRepository {
	if tx == nil {
		return r
	}
	return &GormLoyaltyRepository{db: tx}
}

// Transaction 执行事务
func (r *GormLoyaltyRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

// GetAccount 按顾客与商户获取积分账户
func (r *GormLoyaltyRepository) GetAccount(customerID, merchantID string) (*models.LoyaltyAccount, error) {
	return r.findAccount(r.db, customerID, merchantID)
}

// GetAccountForUpdate 按顾客与商户加锁获取积分账户
func (r *GormLoyaltyRepository) GetAccountForUpdate(customerID, merchantID string) (*models.LoyaltyAccount, error) {
	return r.findAccount(r.db.Clauses(clause.Locking{Strength: "UPDATE"}), customerID, merchantID)
}

func (r *GormLoyaltyRepository) findAccount(query *gorm.DB, customerID, merchantID string) (*models.LoyaltyAccount, error) {
	customerID = strings.TrimSpace(customerID)
	merchantID = strings.TrimSpace(merchantID)
	if customerID == "" || merchantID == "" {
		return nil, nil
	}
	var account models.LoyaltyAccount
	if err := query.Where("customer_id = ? AND merchant_id = ?", customerID, merchantID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetAccountByID 按ID获取积分账户
func (r *GormLoyaltyRepository) GetAccountByID(id uint) (*models.LoyaltyAccount, error) {
	if id == 0 {
		return nil, nil
	}
	var account models.LoyaltyAccount
	if err := r.db.First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// EnsureAccountForUpdate 不存在时创建账户，并加锁返回
func (r *GormLoyaltyRepository) EnsureAccountForUpdate(customerID, merchantID string, now time.Time) (*models.LoyaltyAccount, error) {
	account := &models.LoyaltyAccount{
		CustomerID:     strings.TrimSpace(customerID),
		MerchantID:     strings.TrimSpace(merchantID),
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(account).Error; err != nil {
		return nil, err
	}
	return r.GetAccountForUpdate(customerID, merchantID)
}

// ListAccounts 分页查询积分账户
func (r *GormLoyaltyRepository) ListAccounts(filter LoyaltyAccountListFilter) ([]models.LoyaltyAccount, int64, error) {
	query := r.db.Model(&models.LoyaltyAccount{})
	if filter.CustomerID != "" {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.MerchantID != "" {
		query = query.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.AfterID > 0 {
		query = query.Where("id > ?", filter.AfterID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var accounts []models.LoyaltyAccount
	if err := query.Order("id asc").Find(&accounts).Error; err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

// ListAccountsByCustomer 获取顾客在所有商户的积分账户
func (r *GormLoyaltyRepository) ListAccountsByCustomer(customerID string) ([]models.LoyaltyAccount, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return []models.LoyaltyAccount{}, nil
	}
	var accounts []models.LoyaltyAccount
	if err := r.db.Where("customer_id = ?", customerID).Order("merchant_id asc").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListMerchantIDs 获取存在积分账户的商户列表
func (r *GormLoyaltyRepository) ListMerchantIDs() ([]string, error) {
	var ids []string
	if err := r.db.Model(&models.LoyaltyAccount{}).
		Distinct("merchant_id").
		Order("merchant_id asc").
		Pluck("merchant_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ApplyCredit 原子增加积分与到店次数，返回变动后余额
func (r *GormLoyaltyRepository) ApplyCredit(accountID uint, delta int64, at time.Time) (int64, error) {
	if err := r.db.Model(&models.LoyaltyAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"point_balance":    gorm.Expr("point_balance + ?", delta),
			"visit_count":      gorm.Expr("visit_count + 1"),
			"last_activity_at": at,
			"updated_at":       at,
		}).Error; err != nil {
		return 0, err
	}
	return r.balanceOf(accountID)
}

// ApplyDebit 余额充足时原子扣减积分，余额不足返回 false
func (r *GormLoyaltyRepository) ApplyDebit(accountID uint, cost int64, at time.Time) (int64, bool, error) {
	result := r.db.Model(&models.LoyaltyAccount{}).
		Where("id = ? AND point_balance >= ?", accountID, cost).
		Updates(map[string]interface{}{
			"point_balance": gorm.Expr("point_balance - ?", cost),
			"updated_at":    at,
		})
	if result.Error != nil {
		return 0, false, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, false, nil
	}
	balance, err := r.balanceOf(accountID)
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

func (r *GormLoyaltyRepository) balanceOf(accountID uint) (int64, error) {
	var balance int64
	if err := r.db.Model(&models.LoyaltyAccount{}).
		Where("id = ?", accountID).
		Pluck("point_balance", &balance).Error; err != nil {
		return 0, err
	}
	return balance, nil
}

// CreateEntry 写入积分流水
func (r *GormLoyaltyRepository) CreateEntry(entry *models.LedgerEntry) error {
	return r.db.Create(entry).Error
}

// GetEntryByKey 按幂等键获取流水
func (r *GormLoyaltyRepository) GetEntryByKey(accountID uint, idempotencyKey string) (*models.LedgerEntry, error) {
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if accountID == 0 || idempotencyKey == "" {
		return nil, nil
	}
	var entry models.LedgerEntry
	if err := r.db.Where("loyalty_account_id = ? AND idempotency_key = ?", accountID, idempotencyKey).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ListEntries 分页查询积分流水（按时间倒序）
func (r *GormLoyaltyRepository) ListEntries(filter LedgerEntryListFilter) ([]models.LedgerEntry, int64, error) {
	query := r.db.Model(&models.LedgerEntry{})
	if filter.LoyaltyAccountID != 0 {
		query = query.Where("loyalty_account_id = ?", filter.LoyaltyAccountID)
	}
	if filter.Reason != "" {
		query = query.Where("reason = ?", filter.Reason)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var entries []models.LedgerEntry
	if err := query.Order("id desc").Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// SumDeltas 汇总账户全部流水变动值
func (r *GormLoyaltyRepository) SumDeltas(accountID uint) (int64, error) {
	var sum int64
	if err := r.db.Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(delta), 0)").
		Where("loyalty_account_id = ?", accountID).
		Scan(&sum).Error; err != nil {
		return 0, err
	}
	return sum, nil
}

// CountEntriesSince 统计指定时间后某原因的流水条数
func (r *GormLoyaltyRepository) CountEntriesSince(accountID uint, reason string, since time.Time) (int64, error) {
	var count int64
	if err := r.db.Model(&models.LedgerEntry{}).
		Where("loyalty_account_id = ? AND reason = ? AND created_at >= ?", accountID, reason, since).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListAccrualTimesSince 获取指定时间后的入账时间（按时间正序）
func (r *GormLoyaltyRepository) ListAccrualTimesSince(accountID uint, since time.Time) ([]time.Time, error) {
	var entries []models.LedgerEntry
	if err := r.db.Select("id", "created_at").
		Where("loyalty_account_id = ? AND delta > 0 AND created_at >= ?", accountID, since).
		Order("created_at asc").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	times := make([]time.Time, 0, len(entries))
	for _, entry := range entries {
		times = append(times, entry.CreatedAt)
	}
	return times, nil
}
