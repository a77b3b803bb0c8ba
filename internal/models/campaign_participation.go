package models

import "time"

// CampaignParticipation 活动参与记录（活动 + 顾客唯一）
type CampaignParticipation struct {
	ID         uint      `gorm:"primarykey" json:"id"`                                                                                // 主键
	CampaignID uint      `gorm:"not null;uniqueIndex:idx_campaign_participations_campaign_customer" json:"campaign_id"`               // 活动ID
	CustomerID string    `gorm:"size:64;not null;uniqueIndex:idx_campaign_participations_campaign_customer;index" json:"customer_id"` // 顾客ID
	JoinedAt   time.Time `gorm:"index" json:"joined_at"`                                                                              // 参与时间
}

// TableName 指定表名
func (CampaignParticipation) TableName() string {
	return "campaign_participations"
}
