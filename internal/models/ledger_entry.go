package models

import "time"

// LedgerEntry 积分流水（只追加）
type LedgerEntry struct {
	ID               uint      `gorm:"primarykey" json:"id"`                                                                // 主键
	LoyaltyAccountID uint      `gorm:"not null;uniqueIndex:idx_ledger_entries_account_key;index" json:"loyalty_account_id"` // 积分账户ID
	Delta            int64     `gorm:"not null" json:"delta"`                                                               // 变动值（正数入账，负数扣减）
	BalanceAfter     int64     `gorm:"not null" json:"balance_after"`                                                       // 变动后余额
	Reason           string    `gorm:"size:32;not null;index" json:"reason"`                                                // 原因
	IdempotencyKey   string    `gorm:"size:128;not null;uniqueIndex:idx_ledger_entries_account_key" json:"idempotency_key"` // 幂等键（账户内唯一）
	RewardID         *uint     `gorm:"index" json:"reward_id,omitempty"`                                                    // 兑换的奖励ID
	CampaignID       *uint     `gorm:"index" json:"campaign_id,omitempty"`                                                  // 关联活动ID
	ChurnCandidateID *uint     `gorm:"index" json:"churn_candidate_id,omitempty"`                                           // 关联召回候选ID
	CreatedByStaffID string    `gorm:"size:64" json:"created_by_staff_id"`                                                  // 操作店员ID
	CreatedAt        time.Time `gorm:"index" json:"created_at"`                                                             // 创建时间
}

// TableName 指定表名
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
