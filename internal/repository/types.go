package repository

import "time"

// LoyaltyAccountListFilter 查询积分账户列表的过滤条件
type LoyaltyAccountListFilter struct {
	Page       int
	PageSize   int
	CustomerID string
	MerchantID string
	AfterID    uint // 游标分页：仅返回 ID 大于该值的账户
}

// LedgerEntryListFilter 查询积分流水列表的过滤条件
type LedgerEntryListFilter struct {
	Page             int
	PageSize         int
	LoyaltyAccountID uint
	Reason           string
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
}

// RewardListFilter 查询奖励目录的过滤条件
type RewardListFilter struct {
	Page       int
	PageSize   int
	MerchantID string
	ActiveOnly bool
}

// CampaignListFilter 查询活动列表的过滤条件
type CampaignListFilter struct {
	Page       int
	PageSize   int
	MerchantID string
	Status     string
	Type       string
}

// CampaignParticipationListFilter 查询活动参与记录的过滤条件
type CampaignParticipationListFilter struct {
	Page       int
	PageSize   int
	CampaignID uint
	CustomerID string
}

// ChurnCandidateListFilter 查询流失召回候选的过滤条件
type ChurnCandidateListFilter struct {
	Page       int
	PageSize   int
	MerchantID string
	Status     string
	RiskLevel  string
}
