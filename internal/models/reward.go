package models

import "time"

// Reward 商户奖励目录
type Reward struct {
	ID         uint      `gorm:"primarykey" json:"id"`                      // 主键
	MerchantID string    `gorm:"size:64;not null;index" json:"merchant_id"` // 商户ID
	Title      string    `gorm:"size:128;not null" json:"title"`            // 名称
	PointCost  int64     `gorm:"not null" json:"point_cost"`                // 所需积分
	IsActive   bool      `gorm:"not null" json:"is_active"`                 // 是否启用
	CreatedAt  time.Time `gorm:"index" json:"created_at"`                   // 创建时间
	UpdatedAt  time.Time `json:"updated_at"`                                // 更新时间
}

// TableName 指定表名
func (Reward) TableName() string {
	return "rewards"
}
