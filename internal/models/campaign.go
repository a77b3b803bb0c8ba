package models

import "time"

// Campaign 营销活动
type Campaign struct {
	ID                 uint      `gorm:"primarykey" json:"id"`                                       // 主键
	MerchantID         string    `gorm:"size:64;not null;index" json:"merchant_id"`                  // 商户ID
	Name               string    `gorm:"size:128;not null" json:"name"`                              // 名称
	Type               string    `gorm:"size:16;not null" json:"type"`                               // 类型（discount/reward/event）
	Status             string    `gorm:"size:16;not null;index" json:"status"`                       // 状态（scheduled/active/paused/ended）
	PausedReason       string    `gorm:"size:16;not null;default:''" json:"paused_reason"`           // 暂停原因（manual/capacity）
	StartAt            time.Time `gorm:"index;not null" json:"start_at"`                             // 开始时间
	EndAt              time.Time `gorm:"index;not null" json:"end_at"`                               // 结束时间
	TargetAudienceRule string    `gorm:"size:32;not null;default:'all'" json:"target_audience_rule"` // 目标人群规则
	PersonLimit        *int      `json:"person_limit"`                                               // 参与人数上限（空表示不限）
	ParticipantCount   int       `gorm:"not null;default:0" json:"participant_count"`                // 已参与人数
	BonusPoints        int64     `gorm:"not null;default:0" json:"bonus_points"`                     // 活动奖励积分
	Description        string    `gorm:"type:text" json:"description"`                               // 描述
	CreatedAt          time.Time `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt          time.Time `json:"updated_at"`                                                 // 更新时间
}

// TableName 指定表名
func (Campaign) TableName() string {
	return "campaigns"
}

// HasPersonLimit 是否设置了人数上限
func (c *Campaign) HasPersonLimit() bool {
	return c != nil && c.PersonLimit != nil
}

// IsAtCapacity 是否已达人数上限
func (c *Campaign) IsAtCapacity() bool {
	return c.HasPersonLimit() && c.ParticipantCount >= *c.PersonLimit
}
