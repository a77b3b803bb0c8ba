package models

import "time"

// MerchantSetting 商户级运营设置
type MerchantSetting struct {
	MerchantID           string    `gorm:"primarykey;size:64" json:"merchant_id"`          // 商户ID
	DailyRedemptionLimit int       `gorm:"not null" json:"daily_redemption_limit"`         // 每日兑换上限（0 表示不限）
	ChurnDailySendCap    int       `gorm:"not null;default:0" json:"churn_daily_send_cap"` // 每日召回发送上限（0 表示不发送）
	ChurnManualApproval  bool      `gorm:"not null" json:"churn_manual_approval"`          // 召回是否需人工审批
	Timezone             string    `gorm:"size:64;not null;default:''" json:"timezone"`    // 时区（用于自然日计算）
	UpdatedAt            time.Time `json:"updated_at"`                                     // 更新时间
}

// TableName 指定表名
func (MerchantSetting) TableName() string {
	return "merchant_settings"
}
