package models

import (
	"time"

	"github.com/beanstamp/internal/constants"
)

// ChurnCandidate 流失召回候选（顾客 + 商户唯一，每轮评分覆盖）
type ChurnCandidate struct {
	ID                   uint       `gorm:"primarykey" json:"id"`                                                                         // 主键
	CustomerID           string     `gorm:"size:64;not null;uniqueIndex:idx_churn_candidates_customer_merchant" json:"customer_id"`       // 顾客ID
	MerchantID           string     `gorm:"size:64;not null;uniqueIndex:idx_churn_candidates_customer_merchant;index" json:"merchant_id"` // 商户ID
	LoyaltyAccountID     uint       `gorm:"not null;index" json:"loyalty_account_id"`                                                     // 积分账户ID
	DaysSinceLastVisit   int        `gorm:"not null" json:"days_since_last_visit"`                                                        // 距上次到店天数
	ExpectedIntervalDays Ratio      `gorm:"type:decimal(10,2);not null" json:"expected_interval_days"`                                    // 预期到店间隔（天）
	RiskMultiplier       Ratio      `gorm:"type:decimal(10,2);not null" json:"risk_multiplier"`                                           // 风险倍数
	RiskLevel            string     `gorm:"size:16;not null;index" json:"risk_level"`                                                     // 风险等级
	SuggestedOfferType   string     `gorm:"size:32;not null" json:"suggested_offer_type"`                                                 // 建议优惠类型
	Status               string     `gorm:"size:16;not null;index" json:"status"`                                                         // 状态
	SnapshotAt           time.Time  `gorm:"not null" json:"snapshot_at"`                                                                  // 评分快照时间
	LastActivityAt       time.Time  `gorm:"not null" json:"last_activity_at"`                                                             // 快照时账户最后活跃时间
	ApprovedAt           *time.Time `json:"approved_at"`                                                                                  // 审批时间
	ApprovedByStaffID    string     `gorm:"size:64" json:"approved_by_staff_id"`                                                          // 审批店员ID
	OfferSentAt          *time.Time `gorm:"index" json:"offer_sent_at"`                                                                   // 优惠发送时间
	OfferRedeemedAt      *time.Time `json:"offer_redeemed_at"`                                                                            // 优惠核销时间
	CreatedAt            time.Time  `gorm:"index" json:"created_at"`                                                                      // 创建时间
	UpdatedAt            time.Time  `json:"updated_at"`                                                                                   // 更新时间
}

// TableName 指定表名
func (ChurnCandidate) TableName() string {
	return "churn_candidates"
}

// IsOpen 候选是否仍在召回流程中
func (c *ChurnCandidate) IsOpen() bool {
	if c == nil {
		return false
	}
	switch c.Status {
	case constants.ChurnCandidateStatusCleared, constants.ChurnCandidateStatusRedeemed:
		return false
	}
	return true
}
