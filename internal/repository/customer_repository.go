package repository

import (
	"errors"
	"strings"

	"github.com/beanstamp/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomerRepository 顾客档案引用数据访问接口
type CustomerRepository interface {
	GetByID(id string) (*models.Customer, error)
	Upsert(customer *models.Customer) error
}

// GormCustomerRepository GORM 顾客仓储实现
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository 创建顾客仓储
func NewCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// GetByID 按ID获取顾客
func (r *GormCustomerRepository) GetByID(id string) (*models.Customer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var customer models.Customer
	if err := r.db.Where("id = ?", id).First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

// Upsert 同步顾客档案
func (r *GormCustomerRepository) Upsert(customer *models.Customer) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name"}),
	}).Create(customer).Error
}
