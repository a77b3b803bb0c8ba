package models

import "time"

// LoyaltyAccount 会员积分账户（顾客 + 商户唯一）
type LoyaltyAccount struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                                                         // 主键
	CustomerID     string    `gorm:"size:64;not null;uniqueIndex:idx_loyalty_accounts_customer_merchant" json:"customer_id"`       // 顾客ID
	MerchantID     string    `gorm:"size:64;not null;uniqueIndex:idx_loyalty_accounts_customer_merchant;index" json:"merchant_id"` // 商户ID
	PointBalance   int64     `gorm:"not null;default:0" json:"point_balance"`                                                      // 积分余额（不可为负）
	VisitCount     int       `gorm:"not null;default:0" json:"visit_count"`                                                        // 到店次数
	LastActivityAt time.Time `gorm:"index" json:"last_activity_at"`                                                                // 最后活跃时间
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                                                                      // 创建时间
	UpdatedAt      time.Time `json:"updated_at"`                                                                                   // 更新时间
}

// TableName 指定表名
func (LoyaltyAccount) TableName() string {
	return "loyalty_accounts"
}
